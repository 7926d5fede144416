package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
)

// visitor carries the state of one file's rewrite: where directive
// comments sit, what has been instrumented, and a counter for generated
// context variable names.
type visitor struct {
	fset     *token.FileSet
	filename string
	opts     Options
	stats    Stats

	// stmtDirectives maps a directive comment's line to its section
	// name; the directive applies to the statement starting on the next
	// line.
	stmtDirectives map[int]string

	ctxSeq int
}

func newVisitor(fset *token.FileSet, filename string, opts Options) *visitor {
	return &visitor{
		fset:           fset,
		filename:       filename,
		opts:           opts,
		stmtDirectives: make(map[int]string),
	}
}

// rewrite instruments the file in place: directive-marked (or, with
// AllFuncs, all) function bodies get a deferred scope guard, and
// directive-marked statements get an Enter/Exit bracket.
func (v *visitor) rewrite(file *ast.File) {
	v.collectStmtDirectives(file)

	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}

		name, marked := docDirective(fd.Doc)
		if !marked && v.opts.AllFuncs && instrumentableFunc(fd) {
			name = funcSectionName(fd)
			marked = true
		}
		if marked {
			v.instrumentFunc(fd, name)
		}
	}

	// Statement directives live inside bodies; walk every statement list
	// in the file.
	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.BlockStmt:
			node.List = v.rewriteStmtList(node.List)
		case *ast.CaseClause:
			node.Body = v.rewriteStmtList(node.Body)
		case *ast.CommClause:
			node.Body = v.rewriteStmtList(node.Body)
		}
		return true
	})
}

// collectStmtDirectives indexes every directive comment in the file by
// the line it sits on.
func (v *visitor) collectStmtDirectives(file *ast.File) {
	for _, group := range file.Comments {
		for _, c := range group.List {
			if name, ok := directiveName(c.Text); ok {
				v.stmtDirectives[v.fset.Position(c.Pos()).Line] = name
			}
		}
	}
}

// instrumentFunc prepends the deferred scope guard to the function body:
//
//	defer narwhal.Begin(narwhal.Register(name, file, line)).End()
//
// The guard exits the section on every return path, which is why
// function-level instrumentation uses it instead of a plain Enter/Exit
// pair.
func (v *visitor) instrumentFunc(fd *ast.FuncDecl, name string) {
	line := v.fset.Position(fd.Pos()).Line

	guard := &ast.DeferStmt{
		Call: &ast.CallExpr{
			Fun: &ast.SelectorExpr{
				X:   v.beginCall(name, line),
				Sel: ast.NewIdent("End"),
			},
		},
	}

	fd.Body.List = append([]ast.Stmt{guard}, fd.Body.List...)
	v.stats.FuncsInstrumented++
}

// rewriteStmtList brackets any statement preceded by a directive line:
//
//	//narwhalyzer:section load
//	for _, f := range files { ... }
//
// becomes
//
//	{
//		_nwCtx0 := narwhal.Enter(narwhal.Register("load", file, line))
//		for _, f := range files { ... }
//		narwhal.Exit(_nwCtx0)
//	}
func (v *visitor) rewriteStmtList(list []ast.Stmt) []ast.Stmt {
	for i, stmt := range list {
		startLine := v.fset.Position(stmt.Pos()).Line
		name, ok := v.stmtDirectives[startLine-1]
		if !ok {
			continue
		}
		// Each directive brackets exactly one statement; consuming it here
		// keeps the walk from re-wrapping the statement when it descends
		// into the block just built around it.
		delete(v.stmtDirectives, startLine-1)

		ctxVar := fmt.Sprintf("_nwCtx%d", v.ctxSeq)
		v.ctxSeq++

		enter := &ast.AssignStmt{
			Lhs: []ast.Expr{ast.NewIdent(ctxVar)},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{&ast.CallExpr{
				Fun:  runtimeSelector("Enter"),
				Args: []ast.Expr{v.registerCall(name, startLine)},
			}},
		}
		exit := &ast.ExprStmt{X: &ast.CallExpr{
			Fun:  runtimeSelector("Exit"),
			Args: []ast.Expr{ast.NewIdent(ctxVar)},
		}}

		list[i] = &ast.BlockStmt{List: []ast.Stmt{enter, stmt, exit}}
		v.stats.StmtsInstrumented++
	}
	return list
}

// beginCall builds narwhal.Begin(narwhal.Register(name, file, line)).
func (v *visitor) beginCall(name string, line int) *ast.CallExpr {
	return &ast.CallExpr{
		Fun:  runtimeSelector("Begin"),
		Args: []ast.Expr{v.registerCall(name, line)},
	}
}

// registerCall builds narwhal.Register(name, file, line) with the call
// site's source location baked in as literals, matching what a C
// preprocessor would do with __FILE__/__LINE__.
func (v *visitor) registerCall(name string, line int) *ast.CallExpr {
	return &ast.CallExpr{
		Fun: runtimeSelector("Register"),
		Args: []ast.Expr{
			&ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(name)},
			&ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(v.filename)},
			&ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(line)},
		},
	}
}

func runtimeSelector(fn string) *ast.SelectorExpr {
	return &ast.SelectorExpr{
		X:   ast.NewIdent(RuntimeImportAlias),
		Sel: ast.NewIdent(fn),
	}
}

// instrumentableFunc filters AllFuncs mode: init must stay uninstrumented
// (it can run before the runtime package's own init), and bracketing main
// is pointless because its guard would fire after the deferred Fini.
func instrumentableFunc(fd *ast.FuncDecl) bool {
	if fd.Recv == nil && (fd.Name.Name == "init" || fd.Name.Name == "main") {
		return false
	}
	return true
}

// funcSectionName derives a section name for AllFuncs mode: the function
// name, prefixed with the receiver's base type for methods.
func funcSectionName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return fd.Name.Name
	}
	return receiverTypeName(fd.Recv.List[0].Type) + "." + fd.Name.Name
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	default:
		return "recv"
	}
}
