package kernel

// Error describes a kernel error. Kernel errors are defined as package-level
// pointers to the Error structure so callers can compare them by identity.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Fatal raises err as an unrecoverable kernel condition. Fatal never returns:
// it unwinds the caller with err as the panic value. The outermost frame of
// the machine is expected to recover the value and hand it over to
// kfmt.Panic which halts the CPU.
func Fatal(err *Error) {
	panic(err)
}

// AsError extracts the *Error carried by a value returned from recover. It
// returns false if v was not raised through Fatal.
func AsError(v interface{}) (*Error, bool) {
	err, ok := v.(*Error)
	return err, ok && err != nil
}
