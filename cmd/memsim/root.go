package main

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"memcore/internal/machine"
	"memcore/internal/trace"
	"memcore/kernel/kfmt"
	"memcore/kernel/mm"
)

const (
	envMemory    = "MEMSIM_MEMORY"
	envKernelEnd = "MEMSIM_KERNEL_END"
	envTraceDB   = "MEMSIM_TRACE_DB"
	envPort      = "MEMSIM_PORT"

	defaultEnvFile   = ".env"
	defaultMemory    = "16M"
	defaultKernelEnd = "1M"
)

// simConfig holds the resolved machine configuration. Values come from
// flags, then the environment (optionally populated from a .env file), then
// built-in defaults.
type simConfig struct {
	envFile   string
	memory    string
	kernelEnd string
	traceDB   string
	port      int
}

func newRootCmd() *cobra.Command {
	cfg := &simConfig{}

	rootCmd := &cobra.Command{
		Use:   "memsim",
		Short: "memsim boots a simulated 32-bit machine and inspects its memory manager.",
		Long: `memsim boots a simulated 32-bit machine with a bitmap frame allocator, ` +
			`two-level paging and a growable kernel heap. Each command boots a fresh ` +
			`machine using the configured memory size and kernel image end.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.resolve(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.envFile, "env-file", defaultEnvFile, "file with MEMSIM_* variables to load")
	flags.StringVar(&cfg.memory, "memory", "", "physical memory size, e.g. 16M (env "+envMemory+")")
	flags.StringVar(&cfg.kernelEnd, "kernel-end", "", "end address of the kernel image, e.g. 1M or 0x100000 (env "+envKernelEnd+")")
	flags.StringVar(&cfg.traceDB, "trace-db", "", "SQLite file that receives memory manager events (env "+envTraceDB+")")

	rootCmd.AddCommand(
		newBootCmd(cfg),
		newGrowCmd(cfg),
		newFaultCmd(cfg),
		newTraceCmd(cfg),
		newServeCmd(cfg),
	)

	return rootCmd
}

// resolve fills unset options from the environment.
func (cfg *simConfig) resolve(cmd *cobra.Command) error {
	err := godotenv.Load(cfg.envFile)
	if err != nil && !(errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file")) {
		return err
	}

	cfg.memory = firstNonEmpty(cfg.memory, os.Getenv(envMemory), defaultMemory)
	cfg.kernelEnd = firstNonEmpty(cfg.kernelEnd, os.Getenv(envKernelEnd), defaultKernelEnd)
	cfg.traceDB = firstNonEmpty(cfg.traceDB, os.Getenv(envTraceDB))

	if !cmd.Flags().Changed("port") {
		if v := os.Getenv(envPort); v != "" {
			if cfg.port, err = strconv.Atoi(v); err != nil {
				return errors.New("invalid " + envPort + ": " + v)
			}
		}
	}

	return nil
}

func (cfg *simConfig) machineConfig() (machine.Config, error) {
	memory, err := mm.ParseSize(cfg.memory)
	if err != nil {
		return machine.Config{}, errors.New("invalid memory size " + strconv.Quote(cfg.memory))
	}

	kernelEnd, err := mm.ParseSize(cfg.kernelEnd)
	if err != nil {
		return machine.Config{}, errors.New("invalid kernel end " + strconv.Quote(cfg.kernelEnd))
	}

	return machine.Config{Memory: memory, KernelEnd: uintptr(kernelEnd)}, nil
}

// bootMachine routes kernel output to the command's stdout and boots a
// machine. If a trace database is configured, the returned tracer must be
// closed by the caller.
func bootMachine(cmd *cobra.Command, cfg *simConfig) (*machine.Machine, *trace.SQLiteTracer, error) {
	kfmt.SetOutputSink(cmd.OutOrStdout())

	mcfg, err := cfg.machineConfig()
	if err != nil {
		return nil, nil, err
	}

	var tracer *trace.SQLiteTracer
	if cfg.traceDB != "" {
		tracer = trace.NewSQLiteTracer(cfg.traceDB)
		if err = tracer.Init(); err != nil {
			return nil, nil, err
		}
		mcfg.Tracer = tracer
	}

	m, kerr := machine.Boot(mcfg)
	if kerr != nil {
		closeTracer(tracer)
		return nil, nil, kerr
	}

	return m, tracer, nil
}

func closeTracer(tracer *trace.SQLiteTracer) {
	if tracer == nil {
		return
	}

	if err := tracer.Close(); err != nil {
		kfmt.Printf("failed to write trace %s: %v\n", tracer.Path(), err)
		return
	}
	kfmt.Printf("trace written to %s\n", tracer.Path())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
