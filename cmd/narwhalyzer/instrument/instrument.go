// Package instrument implements AST-level insertion of Narwhalyzer
// profiling calls into Go source files.
//
// It is the Go counterpart of a compiler pragma pass: source regions are
// marked with a directive comment and the tool brackets them with the
// runtime's register/enter/exit calls.
//
//	//narwhalyzer:section checksum
//	func checksum(data []byte) uint32 { ... }
//
// becomes
//
//	func checksum(data []byte) uint32 {
//		defer narwhal.Begin(narwhal.Register("checksum", "main.go", 12)).End()
//		...
//	}
//
// A directive on its own line inside a function body brackets the single
// statement that follows it (typically a block or a loop) with an
// Enter/Exit pair. Statement bracketing does not survive early returns
// out of the statement; use a function-level directive when the region
// can return.
//
// Instrumentation happens at build time, so performance is not critical.
// The package is not safe for concurrent use on the same file.
package instrument

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
)

const (
	// RuntimeImportPath is the package instrumented files import to reach
	// the profiling runtime.
	RuntimeImportPath = "github.com/narwhalyzer/narwhalyzer/narwhal"

	// RuntimeImportAlias is the local name used in generated calls.
	RuntimeImportAlias = "narwhal"
)

// Options controls what gets instrumented beyond explicit directives.
type Options struct {
	// AllFuncs instruments every function that has a body, using the
	// function name as the section name. Directive-marked functions keep
	// their directive name.
	AllFuncs bool
}

// Stats counts what one file's instrumentation produced.
type Stats struct {
	// FuncsInstrumented is the number of functions bracketed with a
	// deferred scope guard.
	FuncsInstrumented int

	// StmtsInstrumented is the number of statements bracketed with an
	// explicit Enter/Exit pair.
	StmtsInstrumented int
}

// Total returns the number of sections inserted.
func (s Stats) Total() int {
	return s.FuncsInstrumented + s.StmtsInstrumented
}

// Result holds the instrumented source and its statistics.
type Result struct {
	Code  string
	Stats Stats
}

// File instruments a single Go source file and returns the rewritten
// source. src follows the go/parser contract: nil means read filename,
// otherwise it may be a string, []byte, or io.Reader.
//
// Files containing no directives (and not under Options.AllFuncs) come
// back unchanged except for formatting, with a zero Stats; callers can
// use Stats.Total to skip rewriting them.
func File(filename string, src interface{}, opts Options) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	v := newVisitor(fset, filename, opts)
	v.rewrite(file)

	if v.stats.Total() > 0 {
		injectImport(file, RuntimeImportAlias, RuntimeImportPath)
	}

	var buf bytes.Buffer
	cfg := &printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("failed to print instrumented %s: %w", filename, err)
	}

	return &Result{Code: buf.String(), Stats: v.stats}, nil
}

// injectImport adds `import alias "path"` to the file unless an import of
// path already exists.
func injectImport(file *ast.File, alias, path string) {
	quoted := fmt.Sprintf("%q", path)
	for _, imp := range file.Imports {
		if imp.Path.Value == quoted {
			return
		}
	}

	spec := &ast.ImportSpec{
		Name: ast.NewIdent(alias),
		Path: &ast.BasicLit{Kind: token.STRING, Value: quoted},
	}
	decl := &ast.GenDecl{Tok: token.IMPORT, Specs: []ast.Spec{spec}}

	file.Decls = append([]ast.Decl{decl}, file.Decls...)
	file.Imports = append(file.Imports, spec)
}
