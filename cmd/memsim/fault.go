package main

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"memcore/kernel/kfmt"
)

func newFaultCmd(cfg *simConfig) *cobra.Command {
	var write, user bool

	cmd := &cobra.Command{
		Use:   "fault ADDRESS",
		Short: "Boot a machine and access ADDRESS from the current address space.",
		Long: `Boot a machine and access ADDRESS from the current address space. ` +
			`If the access violates the page permissions or touches an unmapped ` +
			`page, the page fault handler reports the fault and halts the machine.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := strconv.ParseUint(args[0], 0, 32)
			if err != nil {
				return errors.New("invalid address " + strconv.Quote(args[0]))
			}

			m, tracer, err := bootMachine(cmd, cfg)
			if err != nil {
				return err
			}

			// Flush the trace before the fault handler halts the machine
			defer closeTracer(tracer)

			m.Access(uintptr(addr), write, user)
			kfmt.Printf("access to 0x%08x permitted\n", addr)
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "perform a write access")
	cmd.Flags().BoolVar(&user, "user", false, "perform the access from user-mode")
	return cmd
}
