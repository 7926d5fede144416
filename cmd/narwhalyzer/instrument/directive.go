package instrument

import (
	"go/ast"
	"strings"
)

// directivePrefix marks a comment as an instrumentation directive. The
// rest of the line is the section name.
const directivePrefix = "//narwhalyzer:section"

// directiveName extracts the section name from a directive comment line,
// or returns false when the line is not a directive. A directive with no
// name is ignored rather than treated as an error; the tool reports what
// it instrumented, and a nameless directive instruments nothing.
func directiveName(text string) (string, bool) {
	if !strings.HasPrefix(text, directivePrefix) {
		return "", false
	}
	rest := text[len(directivePrefix):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		// Some other //narwhalyzer:sectionfoo token, not ours.
		return "", false
	}
	name := strings.TrimSpace(rest)
	if name == "" {
		return "", false
	}
	// Only the first field is the name; anything after it is commentary.
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name = name[:i]
	}
	return name, true
}

// docDirective returns the section name from a declaration's doc comment
// group, scanning every line so the directive can sit below prose.
func docDirective(doc *ast.CommentGroup) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, c := range doc.List {
		if name, ok := directiveName(c.Text); ok {
			return name, true
		}
	}
	return "", false
}
