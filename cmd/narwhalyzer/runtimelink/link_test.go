package runtimelink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"./local", true},
		{"../sibling", true},
		{"/abs/path", true},
		{`C:\windows\path`, true},
		{"github.com/foo/bar", false},
		{"example.org/mod", false},
	}

	for _, tt := range tests {
		if got := isLocalPath(tt.path); got != tt.want {
			t.Errorf("isLocalPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFindOriginalGoMod(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	modPath := filepath.Join(root, "go.mod")
	if err := os.WriteFile(modPath, []byte("module example.org/app\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := findOriginalGoMod(nested); got != modPath {
		t.Errorf("findOriginalGoMod(%q) = %q, want %q", nested, got, modPath)
	}
}

func TestFindOriginalGoModMissing(t *testing.T) {
	// A bare temp tree has no go.mod anywhere up to the filesystem root,
	// unless the environment's temp dir lives under a module; walk from a
	// directory we control and accept either empty or a path outside it.
	dir := t.TempDir()
	if got := findOriginalGoMod(dir); strings.HasPrefix(got, dir) {
		t.Errorf("findOriginalGoMod found %q inside an empty tree", got)
	}
}

func TestCarriedReplaceDirectives(t *testing.T) {
	dir := t.TempDir()
	modPath := filepath.Join(dir, "go.mod")
	content := `module example.org/app

go 1.24

require example.org/dep v1.2.3

replace example.org/dep => ../dep
replace example.org/other v1.0.0 => example.org/fork v1.0.1
`
	if err := os.WriteFile(modPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out := carriedReplaceDirectives(modPath)

	wantLocal, err := filepath.Abs(filepath.Join(dir, "../dep"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "replace example.org/dep => "+wantLocal) {
		t.Errorf("relative replace not made absolute:\n%s", out)
	}
	if !strings.Contains(out, "replace example.org/other v1.0.0 => example.org/fork v1.0.1") {
		t.Errorf("versioned replace not carried:\n%s", out)
	}
}

func TestCarriedReplaceDirectivesNoFile(t *testing.T) {
	if out := carriedReplaceDirectives(filepath.Join(t.TempDir(), "go.mod")); out != "" {
		t.Errorf("missing go.mod produced directives: %q", out)
	}
}
