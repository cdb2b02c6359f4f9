// Package irq provides exception dispatching for the simulated CPU.
package irq

import (
	"io"

	"memcore/kernel/kfmt"
)

// Regs contains a snapshot of the register values when an exception occurs.
type Regs struct {
	EAX uint32
	EBX uint32
	ECX uint32
	EDX uint32
	ESI uint32
	EDI uint32
	EBP uint32

	// Info contains the error code pushed by the CPU for exceptions that
	// provide one (e.g. page faults).
	Info uint32

	// The return frame used by IRET
	EIP    uint32
	CS     uint32
	EFlags uint32
	ESP    uint32
	SS     uint32
}

// DumpTo outputs the register contents to w.
func (r *Regs) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "EAX = %08x EBX = %08x\n", r.EAX, r.EBX)
	kfmt.Fprintf(w, "ECX = %08x EDX = %08x\n", r.ECX, r.EDX)
	kfmt.Fprintf(w, "ESI = %08x EDI = %08x\n", r.ESI, r.EDI)
	kfmt.Fprintf(w, "EBP = %08x ERR = %08x\n", r.EBP, r.Info)
	kfmt.Fprintf(w, "EIP = %08x CS  = %08x\n", r.EIP, r.CS)
	kfmt.Fprintf(w, "ESP = %08x SS  = %08x\n", r.ESP, r.SS)
	kfmt.Fprintf(w, "EFL = %08x\n", r.EFlags)
}

// ExceptionNum describes an x86 CPU exception slot.
type ExceptionNum uint8

const (
	// GPFException occurs when a general protection fault occurs.
	GPFException = ExceptionNum(13)

	// PageFaultException occurs when a page directory entry or page table
	// entry is not present or when a privilege and/or RW protection check
	// fails.
	PageFaultException = ExceptionNum(14)

	// exceptionCount is the number of exception slots reserved by the
	// architecture.
	exceptionCount = 32
)

// ExceptionHandler is a function that handles a CPU exception.
type ExceptionHandler func(regs *Regs)

// Dispatcher routes raised exceptions to their registered handlers.
type Dispatcher struct {
	handlers [exceptionCount]ExceptionHandler
}

// HandleException ensures that the provided handler will be invoked when
// the exception with the given number is raised. Registering a handler for a
// slot that already has one replaces it.
func (d *Dispatcher) HandleException(num ExceptionNum, handler ExceptionHandler) {
	if int(num) >= exceptionCount {
		return
	}
	d.handlers[num] = handler
}

// Raise invokes the handler registered for num with a copy of regs. It
// returns false if no handler is registered for this exception.
func (d *Dispatcher) Raise(num ExceptionNum, regs Regs) bool {
	if int(num) >= exceptionCount || d.handlers[num] == nil {
		return false
	}

	d.handlers[num](&regs)
	return true
}
