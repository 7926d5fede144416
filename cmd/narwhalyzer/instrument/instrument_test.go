package instrument

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectiveName(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		want    string
		wantOK  bool
	}{
		{"simple", "//narwhalyzer:section checksum", "checksum", true},
		{"leading tab", "//narwhalyzer:section\tio_wait", "io_wait", true},
		{"trailing commentary", "//narwhalyzer:section load the hot loop", "load", true},
		{"nameless", "//narwhalyzer:section", "", false},
		{"nameless with space", "//narwhalyzer:section   ", "", false},
		{"different token", "//narwhalyzer:sectionfoo", "", false},
		{"unrelated comment", "// plain comment", "", false},
		{"unrelated directive", "//go:noinline", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := directiveName(tt.comment)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileInstrumentsMarkedFunction(t *testing.T) {
	src := `package main

//narwhalyzer:section checksum
func checksum(data []byte) int {
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	return sum
}
`
	result, err := File("main.go", src, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.FuncsInstrumented)
	assert.Equal(t, 0, result.Stats.StmtsInstrumented)
	assert.Contains(t, result.Code, `narwhal "github.com/narwhalyzer/narwhalyzer/narwhal"`)
	assert.Contains(t, result.Code, `defer narwhal.Begin(narwhal.Register("checksum", "main.go", 4)).End()`)
}

func TestFileDirectiveBelowProse(t *testing.T) {
	src := `package main

// checksum sums the bytes.
//narwhalyzer:section checksum
func checksum(data []byte) int {
	return len(data)
}
`
	result, err := File("main.go", src, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.FuncsInstrumented)
	assert.Contains(t, result.Code, `narwhal.Register("checksum", "main.go", 5)`)
}

func TestFileInstrumentsMarkedStatement(t *testing.T) {
	src := `package main

func work() {
	prepare()
	//narwhalyzer:section load
	for i := 0; i < 10; i++ {
		load(i)
	}
	finish()
}
`
	result, err := File("main.go", src, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Stats.FuncsInstrumented)
	assert.Equal(t, 1, result.Stats.StmtsInstrumented)
	assert.Contains(t, result.Code, `_nwCtx0 := narwhal.Enter(narwhal.Register("load", "main.go", 6))`)
	assert.Contains(t, result.Code, `narwhal.Exit(_nwCtx0)`)
}

func TestFileMixedDirectives(t *testing.T) {
	src := `package main

//narwhalyzer:section outer
func outer() {
	//narwhalyzer:section phase_a
	phaseA()
	//narwhalyzer:section phase_b
	phaseB()
}
`
	result, err := File("main.go", src, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.FuncsInstrumented)
	assert.Equal(t, 2, result.Stats.StmtsInstrumented)
	assert.Equal(t, 3, result.Stats.Total())

	// Generated context variables are unique per bracket.
	assert.Contains(t, result.Code, "_nwCtx0")
	assert.Contains(t, result.Code, "_nwCtx1")
	assert.Contains(t, result.Code, `narwhal.Register("phase_a", "main.go", 6)`)
	assert.Contains(t, result.Code, `narwhal.Register("phase_b", "main.go", 8)`)
}

func TestFileNoDirectivesUnchanged(t *testing.T) {
	src := `package main

func plain() int {
	return 42
}
`
	result, err := File("main.go", src, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Stats.Total())
	assert.NotContains(t, result.Code, "narwhal")
}

func TestFileAllFuncs(t *testing.T) {
	src := `package main

func init() {
	setup()
}

func main() {
	helper()
}

func helper() {
}

type server struct{}

func (s *server) handle() {
}
`
	result, err := File("main.go", src, Options{AllFuncs: true})
	require.NoError(t, err)

	// init and main are skipped; helper and the method are bracketed.
	assert.Equal(t, 2, result.Stats.FuncsInstrumented)
	assert.Contains(t, result.Code, `narwhal.Register("helper"`)
	assert.Contains(t, result.Code, `narwhal.Register("server.handle"`)
	assert.NotContains(t, result.Code, `narwhal.Register("main"`)
	assert.NotContains(t, result.Code, `narwhal.Register("init"`)
}

func TestFileAllFuncsKeepsDirectiveName(t *testing.T) {
	src := `package main

//narwhalyzer:section hot_loop
func compute() {
}

func other() {
}
`
	result, err := File("main.go", src, Options{AllFuncs: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stats.FuncsInstrumented)
	assert.Contains(t, result.Code, `narwhal.Register("hot_loop"`)
	assert.Contains(t, result.Code, `narwhal.Register("other"`)
	assert.NotContains(t, result.Code, `narwhal.Register("compute"`)
}

func TestFileImportInjectedOnce(t *testing.T) {
	src := `package main

import narwhal "github.com/narwhalyzer/narwhalyzer/narwhal"

//narwhalyzer:section manual
func manual() {
	narwhal.Init()
}
`
	result, err := File("main.go", src, Options{})
	require.NoError(t, err)

	// The file already imports the runtime; no duplicate is added.
	assert.Equal(t, 1, strings.Count(result.Code, `"github.com/narwhalyzer/narwhalyzer/narwhal"`))
}

func TestFileParseError(t *testing.T) {
	_, err := File("broken.go", "package {", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.go")
}
