package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"memcore/internal/monitor"
	"memcore/kernel/kfmt"
)

func newServeCmd(cfg *simConfig) *cobra.Command {
	var openBrowser bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Boot a machine and serve its state over HTTP until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, tracer, err := bootMachine(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeTracer(tracer)

			url, err := monitor.NewMonitor(m).
				WithPortNumber(cfg.port).
				WithBrowser(openBrowser).
				StartServer()
			if err != nil {
				return err
			}
			kfmt.Printf("serving %s; press Ctrl+C to stop\n", url)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.port, "port", 0, "port to listen on; 0 picks a random port (env "+envPort+")")
	cmd.Flags().BoolVar(&openBrowser, "open", false, "open the monitor in a browser")
	return cmd
}
