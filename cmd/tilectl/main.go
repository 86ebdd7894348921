// Package main provides tilectl, the command-line front end of tilekit: it
// inspects the simulated platform, prints tiling plans and runs operator jobs.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sys/cpu"

	"github.com/born-ml/tilekit/internal/dispatch"
	"github.com/born-ml/tilekit/internal/tiling"
)

const version = "v0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:          "tilectl",
		Short:        "Plan and run tiled tensor operators on simulated cores",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	logger := func() *slog.Logger {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			level = slog.LevelWarn
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(
		newVersionCmd(),
		newInfoCmd(),
		newPlanCmd(),
		newRunCmd(logger),
		newLaunchCmd(logger),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tilectl %s (%s)\n", version, runtime.Version())
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the default platform, CPU features and registered kernels",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			pl := tiling.DefaultPlatform()
			fmt.Fprintf(w, "GOOS/GOARCH: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(w, "Cores:       %d\n", pl.Cores)
			fmt.Fprintf(w, "UB bytes:    %d\n", pl.UBBytes)
			fmt.Fprintf(w, "Align:       %d (cache line)\n", pl.Align)
			fmt.Fprintln(w)

			switch runtime.GOARCH {
			case "amd64":
				fmt.Fprintln(w, "=== golang.org/x/sys/cpu.X86 ===")
				fmt.Fprintf(w, "  HasAVX2:     %v\n", cpu.X86.HasAVX2)
				fmt.Fprintf(w, "  HasAVX512F:  %v\n", cpu.X86.HasAVX512F)
				fmt.Fprintf(w, "  HasAVX:      %v\n", cpu.X86.HasAVX)
				fmt.Fprintf(w, "  HasFMA:      %v\n", cpu.X86.HasFMA)
			case "arm64":
				fmt.Fprintln(w, "=== golang.org/x/sys/cpu.ARM64 ===")
				fmt.Fprintf(w, "  HasASIMD:    %v\n", cpu.ARM64.HasASIMD)
				fmt.Fprintf(w, "  HasFPHP:     %v (FP16 scalar)\n", cpu.ARM64.HasFPHP)
				fmt.Fprintf(w, "  HasASIMDHP:  %v (FP16 NEON)\n", cpu.ARM64.HasASIMDHP)
				fmt.Fprintf(w, "  HasSVE:      %v\n", cpu.ARM64.HasSVE)
			}
			fmt.Fprintln(w)

			fmt.Fprintln(w, "Kernels:")
			for _, op := range dispatch.Ops() {
				t, err := dispatch.Lookup(op)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "  %-10s %d keys\n", op, len(t.Keys()))
			}
		},
	}
}
