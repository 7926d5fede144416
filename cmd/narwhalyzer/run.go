// run.go implements the 'narwhalyzer run' command.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newRunCommand creates the 'run' subcommand: instrument, build to a
// temporary binary, execute it with the remaining arguments, and forward
// its exit code. The profiling report appears on the program's stdout
// when it calls narwhal.Fini.
func newRunCommand() *cobra.Command {
	var allFuncs bool

	cmd := &cobra.Command{
		Use:   "run <files> [-- args]",
		Short: "Run a Go program with section profiling",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			logger := toolLogger()

			sources, programArgs := splitRunArgs(args)
			if len(sources) == 0 {
				return fmt.Errorf("no Go source files specified")
			}

			tempBinary, err := os.CreateTemp("", "narwhalyzer-run-*")
			if err != nil {
				return fmt.Errorf("failed to create temp binary: %w", err)
			}
			tempPath := tempBinary.Name()
			_ = tempBinary.Close()
			defer func() { _ = os.Remove(tempPath) }()

			cfg, err := newBuildConfig(sources, tempPath, allFuncs)
			if err != nil {
				return err
			}
			if err := runBuild(cfg, logger); err != nil {
				return err
			}

			code := executeBinary(tempPath, programArgs)
			// os.Exit skips the deferred cleanup.
			_ = os.Remove(tempPath)
			os.Exit(code)
			return nil
		},
	}

	cmd.Flags().BoolVar(&allFuncs, "all-funcs", false, "instrument every function, not just directive-marked ones")

	return cmd
}

// splitRunArgs separates source files from program arguments: the
// leading run of .go files (or a single directory) is the program,
// everything after is passed to it.
func splitRunArgs(args []string) (sources, programArgs []string) {
	i := 0
	for ; i < len(args); i++ {
		if filepath.Ext(args[i]) != ".go" {
			break
		}
		sources = append(sources, args[i])
	}
	if len(sources) == 0 && i < len(args) {
		// A directory argument names the program instead.
		sources = append(sources, args[i])
		i++
	}
	return sources, args[i:]
}

// executeBinary runs the instrumented binary with the program's own
// streams attached and returns its exit code.
func executeBinary(binaryPath string, args []string) int {
	cmd := exec.Command(binaryPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing binary: %v\n", err)
		return 1
	}
	return 0
}
