package main

import (
	"github.com/spf13/cobra"
)

func newBootCmd(cfg *simConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "boot",
		Short: "Boot a machine and print its memory layout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, tracer, err := bootMachine(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeTracer(tracer)

			m.Summary().Print()
			return nil
		},
	}
}
