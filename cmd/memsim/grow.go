package main

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"memcore/kernel/kfmt"
	"memcore/kernel/mm"
)

func newGrowCmd(cfg *simConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "grow SIZE...",
		Short: "Boot a machine and grow the kernel heap by each SIZE in turn.",
		Long: `Boot a machine and grow the kernel heap by each SIZE in turn. Sizes ` +
			`are rounded up to whole pages. Running out of physical frames halts ` +
			`the machine.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sizes := make([]mm.Size, 0, len(args))
			for _, arg := range args {
				size, err := mm.ParseSize(arg)
				if err != nil {
					return errors.New("invalid size " + strconv.Quote(arg))
				}
				sizes = append(sizes, size)
			}

			m, tracer, err := bootMachine(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeTracer(tracer)

			for _, size := range sizes {
				prevEnd := m.GrowHeap(uintptr(size))
				kfmt.Printf("grew heap by %s: 0x%08x -> 0x%08x\n", size, prevEnd, m.Memory.HeapEnd())
			}

			m.Summary().Print()
			return nil
		},
	}
}
