// Package directive parses methodscan directives and documentation from
// method declarations.
//
// Directives are line comments in a method's doc comment:
//
//	//methodscan:name addLine
//	//methodscan:tag orders Order management
//	//methodscan:ignore
//	//methodscan:suffix v2
//
// The name directive overrides the exposed method name. The tag directive
// groups the method under a documentation tag, with an optional
// description. The ignore directive keeps the method from being exposed.
// The suffix directive appends #suffix to the documented path only.
package directive

import (
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

const prefix = "//methodscan:"

// Method holds what the doc comment of one method declaration says.
type Method struct {
	Recv     string // receiver type name, without pointer or type parameters
	FuncName string
	Pos      token.Position

	Summary string // first line of the doc comment
	Notes   string // remaining doc comment text

	Name           string // from //methodscan:name
	Tag            string // from //methodscan:tag
	TagDescription string
	Ignore         bool   // from //methodscan:ignore
	Suffix         string // from //methodscan:suffix
}

// Result contains the method declarations found in a package.
type Result struct {
	// Methods is keyed by the position of the method name, which matches
	// types.Func.Pos for the declared method.
	Methods map[token.Pos]*Method

	PackagePath string
	Dir         string
}

// Parse scans a Go package for methodscan directives.
//
// The pattern follows go command semantics:
//   - "." for current directory
//   - Import path like "github.com/foo/bar"
//   - Absolute or relative directory path
func Parse(pattern string) (*Result, error) {
	return ParseDir(pattern, "")
}

// ParseDir is like Parse but allows specifying a working directory.
// If dir is empty, the current directory is used.
func ParseDir(pattern, dir string) (*Result, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax,
		Dir:  dir,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %q", pattern)
	}
	if len(pkgs) > 1 {
		return nil, fmt.Errorf("multiple packages found matching %q; specify a single package", pattern)
	}

	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkg.Errors[0])
	}

	methods, err := FromFiles(pkg.Fset, pkg.Syntax)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Methods:     methods,
		PackagePath: pkg.PkgPath,
	}
	if len(pkg.GoFiles) > 0 {
		result.Dir = filepath.Dir(pkg.GoFiles[0])
	}
	return result, nil
}

// FromFiles collects every method declaration in files.
func FromFiles(fset *token.FileSet, files []*ast.File) (map[token.Pos]*Method, error) {
	methods := make(map[token.Pos]*Method)
	for _, f := range files {
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
				continue
			}
			m, err := parseMethod(fset, fn)
			if err != nil {
				return nil, err
			}
			methods[fn.Name.Pos()] = m
		}
	}
	return methods, nil
}

func parseMethod(fset *token.FileSet, fn *ast.FuncDecl) (*Method, error) {
	m := &Method{
		Recv:     recvName(fn.Recv.List[0].Type),
		FuncName: fn.Name.Name,
		Pos:      fset.Position(fn.Name.Pos()),
	}
	if fn.Doc == nil {
		return m, nil
	}

	// Text drops directive lines, leaving only prose.
	text := strings.TrimSpace(fn.Doc.Text())
	if text != "" {
		summary, notes, _ := strings.Cut(text, "\n")
		m.Summary = strings.TrimSpace(summary)
		m.Notes = strings.TrimSpace(notes)
	}

	for _, c := range fn.Doc.List {
		if !strings.HasPrefix(c.Text, prefix) {
			continue
		}
		parts := strings.Fields(strings.TrimPrefix(c.Text, prefix))
		if len(parts) == 0 {
			continue
		}
		pos := fset.Position(c.Pos())
		switch parts[0] {
		case "ignore":
			m.Ignore = true
		case "name":
			if len(parts) != 2 {
				return nil, fmt.Errorf("%s: //methodscan:name takes exactly one name", pos)
			}
			m.Name = parts[1]
		case "tag":
			if len(parts) < 2 {
				return nil, fmt.Errorf("%s: //methodscan:tag requires a tag name", pos)
			}
			m.Tag = parts[1]
			m.TagDescription = strings.Join(parts[2:], " ")
		case "suffix":
			if len(parts) != 2 {
				return nil, fmt.Errorf("%s: //methodscan:suffix takes exactly one word", pos)
			}
			m.Suffix = parts[1]
		default:
			return nil, fmt.Errorf("%s: unknown directive //methodscan:%s", pos, parts[0])
		}
	}
	return m, nil
}

func recvName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return recvName(e.X)
	case *ast.IndexExpr:
		return recvName(e.X)
	case *ast.IndexListExpr:
		return recvName(e.X)
	case *ast.Ident:
		return e.Name
	}
	return ""
}
