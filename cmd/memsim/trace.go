package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"memcore/internal/trace"
	"memcore/kernel/mm/vmm"
)

func newTraceCmd(cfg *simConfig) *cobra.Command {
	var (
		kind    string
		limit   int
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List the events stored in a trace database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.traceDB == "" {
				return errors.New("no trace database; set --trace-db or " + envTraceDB)
			}

			if kind != "" {
				if _, ok := vmm.ParseEventKind(kind); !ok {
					return fmt.Errorf("unknown event kind %q", kind)
				}
			}

			reader, err := trace.NewReader(cfg.traceDB)
			if err != nil {
				return err
			}
			defer reader.Close()

			out := cmd.OutOrStdout()
			if summary {
				counts, err := reader.CountByKind()
				if err != nil {
					return err
				}

				kinds := make([]string, 0, len(counts))
				for k := range counts {
					kinds = append(kinds, k)
				}
				sort.Strings(kinds)

				for _, k := range kinds {
					fmt.Fprintf(out, "%-20s %d\n", k, counts[k])
				}
				return nil
			}

			records, err := reader.List(kind, limit)
			if err != nil {
				return err
			}

			for _, rec := range records {
				fmt.Fprintf(out, "%6d %-20s virt=0x%08x phys=0x%08x detail=%d\n",
					rec.Seq, rec.Kind, rec.VirtAddr, rec.PhysAddr, rec.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only list events of this kind")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of events to list")
	cmd.Flags().BoolVar(&summary, "summary", false, "print the number of events per kind")
	return cmd
}
