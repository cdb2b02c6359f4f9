// Command memsim boots a simulated machine and exercises its memory manager.
package main

import (
	"github.com/tebeka/atexit"

	"memcore/kernel/kfmt"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			kfmt.Panic(r)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
