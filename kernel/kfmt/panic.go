package kfmt

import (
	"fmt"

	"memcore/kernel"
	"memcore/kernel/cpu"
)

// haltBanner frames the panic report on the console.
const haltBanner = "\n-----------------------------------\n"

// cpuHaltFn is mocked by tests.
var cpuHaltFn = cpu.Halt

// Panic reports the value raised through kernel.Fatal (or a plain panic) on
// the console and halts the CPU. It is the landing site for fatal errors
// once they reach the outermost frame of the machine.
func Panic(e interface{}) {
	Printf(haltBanner)
	if cause := panicCause(e); cause != nil {
		Printf("[%s] unrecoverable error: %s\n", cause.Module, cause.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf(haltBanner)

	cpuHaltFn()
}

// panicCause converts a recovered value into a kernel error. Values that are
// not kernel errors are attributed to the runtime; a nil value has no cause.
func panicCause(e interface{}) *kernel.Error {
	switch t := e.(type) {
	case nil:
		return nil
	case *kernel.Error:
		return t
	case error:
		return &kernel.Error{Module: "rt", Message: t.Error()}
	case string:
		return &kernel.Error{Module: "rt", Message: t}
	default:
		return &kernel.Error{Module: "rt", Message: fmt.Sprint(t)}
	}
}
