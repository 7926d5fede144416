// Package main implements the narwhalyzer CLI tool.
//
// The narwhalyzer tool adds always-on section profiling to Go programs
// without manual bookkeeping at every call site. It works by:
//
//  1. Parsing Go source files using go/ast
//  2. Bracketing directive-marked code with profiling calls
//  3. Linking in the Narwhalyzer runtime
//  4. Building/running the instrumented code
//
// Usage:
//
//	narwhalyzer instrument main.go   # Show instrumented source
//	narwhalyzer build -o app main.go # Build with profiling
//	narwhalyzer run main.go          # Run and get a report on exit
//
// Profiled programs print the timing report to stdout when they call
// narwhal.Fini, typically from a defer in main.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/narwhalyzer/narwhalyzer/narwhal"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "narwhalyzer",
		Short:         "Section profiling for Go programs",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInstrumentCommand(),
		newBuildCommand(),
		newRunCommand(),
		newVersionCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

const rootLong = `narwhalyzer instruments Go programs with low-overhead section timing.

Mark a function or statement with a directive comment:

    //narwhalyzer:section checksum
    func checksum(data []byte) uint32 { ... }

then build or run through the tool. The program prints a timing report
(per-section counts, cumulative/min/max/mean times and call hierarchy)
when it exits.`

// toolLogger builds the CLI's logger. Instrumentation happens at build
// time, so human-readable console output is the right trade-off here.
func toolLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "narwhalyzer version %s\n", narwhal.Version)
		},
	}
}
