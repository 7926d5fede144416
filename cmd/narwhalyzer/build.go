// build.go implements the 'narwhalyzer build' command.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/narwhalyzer/narwhalyzer/cmd/narwhalyzer/instrument"
	"github.com/narwhalyzer/narwhalyzer/cmd/narwhalyzer/runtimelink"
)

// newBuildCommand creates the 'build' subcommand.
//
// Flow:
//  1. Collect the .go files to instrument
//  2. Create a temporary workspace
//  3. Instrument sources into the workspace
//  4. Set up runtime linking (go.mod overlay)
//  5. Run 'go build' in the workspace
func newBuildCommand() *cobra.Command {
	var (
		output   string
		allFuncs bool
	)

	cmd := &cobra.Command{
		Use:   "build [files]",
		Short: "Build a Go program with section profiling",
		Long: `Build instruments the named Go source files (or the current
directory) and compiles them with the Narwhalyzer runtime linked in.`,
		RunE: func(_ *cobra.Command, args []string) error {
			logger := toolLogger()
			cfg, err := newBuildConfig(args, output, allFuncs)
			if err != nil {
				return err
			}
			return runBuild(cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output binary path")
	cmd.Flags().BoolVar(&allFuncs, "all-funcs", false, "instrument every function, not just directive-marked ones")

	return cmd
}

// buildConfig holds everything one instrumented build needs.
type buildConfig struct {
	sourceFiles []string
	outputFile  string
	allFuncs    bool
	workDir     string
}

func newBuildConfig(args []string, output string, allFuncs bool) (*buildConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if len(args) == 0 {
		args = []string{"."}
	}
	return &buildConfig{
		sourceFiles: args,
		outputFile:  output,
		allFuncs:    allFuncs,
		workDir:     cwd,
	}, nil
}

func runBuild(cfg *buildConfig, logger zerolog.Logger) error {
	ws, err := createWorkspace()
	if err != nil {
		return err
	}
	defer ws.cleanup()

	if err := instrumentSources(cfg, ws, logger); err != nil {
		return err
	}
	if err := ws.setupRuntimeLinking(cfg, logger); err != nil {
		return err
	}
	if err := ws.build(cfg); err != nil {
		return err
	}

	if cfg.outputFile != "" {
		logger.Info().Str("binary", cfg.outputFile).Msg("build succeeded")
	}
	return nil
}

// workspace is the temporary module the instrumented build runs in.
type workspace struct {
	dir    string
	srcDir string
}

func createWorkspace() (*workspace, error) {
	dir, err := os.MkdirTemp("", "narwhalyzer-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create src directory: %w", err)
	}
	return &workspace{dir: dir, srcDir: srcDir}, nil
}

func (w *workspace) cleanup() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir)
	}
}

// instrumentSources rewrites every source file into the workspace. The
// directory structure is flattened; the instrumented files form a single
// main package.
func instrumentSources(cfg *buildConfig, ws *workspace, logger zerolog.Logger) error {
	goFiles, err := collectGoFiles(cfg.sourceFiles, cfg.workDir)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}
	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	opts := instrument.Options{AllFuncs: cfg.allFuncs}
	for _, srcPath := range goFiles {
		result, err := instrument.File(srcPath, nil, opts)
		if err != nil {
			return err
		}

		outPath := filepath.Join(ws.srcDir, filepath.Base(srcPath))
		if err := os.WriteFile(outPath, []byte(result.Code), 0o644); err != nil {
			return fmt.Errorf("failed to write instrumented file %s: %w", outPath, err)
		}

		logger.Debug().
			Str("source", srcPath).
			Int("funcs", result.Stats.FuncsInstrumented).
			Int("stmts", result.Stats.StmtsInstrumented).
			Msg("instrumented")
	}
	return nil
}

// setupRuntimeLinking installs the go.mod overlay so the workspace can
// resolve the runtime import.
func (w *workspace) setupRuntimeLinking(cfg *buildConfig, logger zerolog.Logger) error {
	sourceDir := cfg.workDir
	if len(cfg.sourceFiles) > 0 && strings.HasSuffix(cfg.sourceFiles[0], ".go") {
		first := cfg.sourceFiles[0]
		if !filepath.IsAbs(first) {
			first = filepath.Join(cfg.workDir, first)
		}
		sourceDir = filepath.Dir(first)
	}

	overlayPath, err := runtimelink.ModFileOverlay(w.srcDir, sourceDir)
	if err != nil {
		return fmt.Errorf("failed to create go.mod overlay: %w", err)
	}
	if overlayPath == "" {
		// Published-module mode; go mod tidy below resolves the runtime
		// from the module cache.
		initCmd := exec.Command("go", "mod", "init", "narwhalyzer-instrumented")
		initCmd.Dir = w.srcDir
		if out, err := initCmd.CombinedOutput(); err != nil {
			return fmt.Errorf("go mod init failed: %w\n%s", err, out)
		}
	} else {
		if err := os.Rename(overlayPath, filepath.Join(w.srcDir, "go.mod")); err != nil {
			return fmt.Errorf("failed to install go.mod: %w", err)
		}
		logger.Debug().Msg("linked runtime from source checkout")
	}

	tidyCmd := exec.Command("go", "mod", "tidy")
	tidyCmd.Dir = w.srcDir
	if out, err := tidyCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("go mod tidy failed: %w\n%s", err, out)
	}
	return nil
}

// build runs 'go build' on the instrumented workspace.
func (w *workspace) build(cfg *buildConfig) error {
	args := []string{"build"}

	if cfg.outputFile != "" {
		outputPath := cfg.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(cfg.workDir, outputPath)
		}
		args = append(args, "-o", outputPath)
	}
	args = append(args, ".")

	cmd := exec.Command("go", args...)
	cmd.Dir = w.srcDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// collectGoFiles expands the source arguments into a list of .go files.
// Arguments may be files or directories; test files are skipped.
func collectGoFiles(sources []string, workDir string) ([]string, error) {
	var goFiles []string

	for _, src := range sources {
		srcPath := src
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(workDir, src)
		}

		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", src, err)
		}

		if !info.IsDir() {
			if strings.HasSuffix(srcPath, ".go") {
				goFiles = append(goFiles, srcPath)
			}
			continue
		}

		entries, err := os.ReadDir(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", srcPath, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
				continue
			}
			goFiles = append(goFiles, filepath.Join(srcPath, name))
		}
	}

	return goFiles, nil
}
