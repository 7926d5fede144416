// Package runtimelink wires instrumented programs to the Narwhalyzer
// runtime.
//
// Instrumented files import the public narwhal package. When the tool
// runs from a source checkout, the instrumented build needs a replace
// directive pointing at that checkout; runtimelink produces the go.mod
// overlay that carries it, along with any replace directives the
// original project already had.
package runtimelink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// ModulePath is the Narwhalyzer module as instrumented code requires it.
const ModulePath = "github.com/narwhalyzer/narwhalyzer"

// runtimeMarker identifies a Narwhalyzer source checkout. A plain go.mod
// check would match the user's own project.
var runtimeMarker = filepath.Join("internal", "profiler", "api")

// FindProjectRoot locates the Narwhalyzer source checkout, walking up
// from the working directory and then trying the executable's location.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, runtimeMarker)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates := []string{
			exeDir,
			filepath.Dir(exeDir),
			filepath.Dir(filepath.Dir(exeDir)),
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(filepath.Join(candidate, runtimeMarker)); err == nil {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("could not find narwhalyzer project root")
}

// ModFileOverlay writes a go.mod for the instrumented build into tempDir
// and returns its path. The module requires the Narwhalyzer runtime with
// a replace directive pointing at the local checkout, plus the replace
// directives of the project being instrumented (relative paths made
// absolute, since the temp module lives elsewhere).
//
// An empty path with nil error means the tool is not running from a
// source checkout; the build then resolves the runtime like any other
// published module.
func ModFileOverlay(tempDir, sourceDir string) (string, error) {
	projectRoot, err := FindProjectRoot()
	if err != nil {
		return "", nil
	}

	var content strings.Builder
	content.WriteString("module narwhalyzer-instrumented\n\n")
	content.WriteString("go 1.24\n\n")
	content.WriteString(fmt.Sprintf("require %s v0.0.0\n\n", ModulePath))
	content.WriteString(fmt.Sprintf("replace %s => %s\n", ModulePath, projectRoot))

	if sourceDir != "" {
		if original := findOriginalGoMod(sourceDir); original != "" {
			if directives := carriedReplaceDirectives(original); directives != "" {
				content.WriteString("\n")
				content.WriteString(directives)
			}
		}
	}

	overlayPath := filepath.Join(tempDir, "go.mod.overlay")
	if err := os.WriteFile(overlayPath, []byte(content.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write go.mod overlay: %w", err)
	}
	return overlayPath, nil
}

// findOriginalGoMod walks up from startDir to the go.mod of the project
// being instrumented. Returns "" when there is none.
func findOriginalGoMod(startDir string) string {
	dir := startDir
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// carriedReplaceDirectives re-emits the replace directives of goModPath
// with local relative targets rewritten as absolute paths.
func carriedReplaceDirectives(goModPath string) string {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return ""
	}
	mod, err := modfile.Parse(goModPath, data, nil)
	if err != nil || len(mod.Replace) == 0 {
		return ""
	}

	goModDir := filepath.Dir(goModPath)
	var out strings.Builder
	for _, rep := range mod.Replace {
		target := rep.New.Path
		if rep.New.Version == "" && isLocalPath(target) && !filepath.IsAbs(target) {
			if abs, err := filepath.Abs(filepath.Join(goModDir, target)); err == nil {
				target = abs
			}
		}

		out.WriteString("replace ")
		out.WriteString(rep.Old.Path)
		if rep.Old.Version != "" {
			out.WriteString(" " + rep.Old.Version)
		}
		out.WriteString(" => " + target)
		if rep.New.Version != "" {
			out.WriteString(" " + rep.New.Version)
		}
		out.WriteString("\n")
	}
	return out.String()
}

// isLocalPath reports whether a replace target is a filesystem path
// rather than a module path.
func isLocalPath(path string) bool {
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return true
	}
	if filepath.IsAbs(path) {
		return true
	}
	// Windows drive letter.
	if len(path) >= 2 && path[1] == ':' {
		return true
	}
	return false
}
