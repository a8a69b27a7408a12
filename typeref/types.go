// Package typeref models declared Go types as type expressions.
//
// The reflect package only sees instantiated types, so declared signatures
// (generic receivers, type parameters, nested instantiations) are described
// here with a small closed grammar that providers build from go/types or
// reflect and that the resolver rewrites into concrete expressions.
package typeref

import (
	"strconv"
	"strings"
)

// Kind identifies the category of a type expression.
type Kind int

const (
	KindClass         Kind = iota // Named or builtin type without arguments
	KindParameterized             // Generic type applied to arguments (G[A], map[K]V, *T)
	KindVar                       // Type parameter of a generic declaration
	KindWildcard                  // Bounded unknown type
	KindArray                     // Slice or array of a component type
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindClass:
		return "Class"
	case KindParameterized:
		return "Parameterized"
	case KindVar:
		return "Var"
	case KindWildcard:
		return "Wildcard"
	case KindArray:
		return "Array"
	default:
		return "Unknown"
	}
}

// Type is a type expression.
type Type interface {
	// Kind returns the expression kind for type switching.
	Kind() Kind

	// String renders the expression with fully qualified package paths.
	// Two expressions denote the same type exactly when their strings match.
	String() string

	sealed()
}

// Parameterized is a generic class applied to type arguments.
type Parameterized struct {
	Raw  *Class
	Args []Type

	// Owner is the enclosing type for nested declarations. Go has none,
	// so providers leave it nil; it is carried through resolution unchanged.
	Owner Type
}

// Var is a type parameter. Decl is the generic class that declares it.
type Var struct {
	Name string
	Decl *Class
}

// Wildcard is an unknown type constrained by optional bounds.
type Wildcard struct {
	Lower []Type
	Upper []Type
}

// GenericArray is a slice (Len < 0) or fixed-size array of Elem.
type GenericArray struct {
	Elem Type
	Len  int
}

func (*Class) Kind() Kind         { return KindClass }
func (*Parameterized) Kind() Kind { return KindParameterized }
func (*Var) Kind() Kind           { return KindVar }
func (*Wildcard) Kind() Kind      { return KindWildcard }
func (*GenericArray) Kind() Kind  { return KindArray }

func (*Class) sealed()         {}
func (*Parameterized) sealed() {}
func (*Var) sealed()           {}
func (*Wildcard) sealed()      {}
func (*GenericArray) sealed()  {}

func (c *Class) String() string         { return Format(c, nil) }
func (p *Parameterized) String() string { return Format(p, nil) }
func (v *Var) String() string           { return Format(v, nil) }
func (w *Wildcard) String() string      { return Format(w, nil) }
func (a *GenericArray) String() string  { return Format(a, nil) }

// Param returns the generic type G applied to args.
func Param(raw *Class, args ...Type) *Parameterized {
	return &Parameterized{Raw: raw, Args: args}
}

// SliceOf returns the expression []elem.
func SliceOf(elem Type) *GenericArray {
	return &GenericArray{Elem: elem, Len: -1}
}

// ArrayOf returns the expression [n]elem.
func ArrayOf(elem Type, n int) *GenericArray {
	return &GenericArray{Elem: elem, Len: n}
}

// Qualifier controls how package paths are rendered by Format.
// Returning "" omits the package.
type Qualifier func(pkgPath string) string

// ShortQualifier renders only the last element of a package path.
func ShortQualifier(pkgPath string) string {
	if i := strings.LastIndexByte(pkgPath, '/'); i >= 0 {
		return pkgPath[i+1:]
	}
	return pkgPath
}

// Format renders t in Go syntax. A nil qualifier renders full package paths.
func Format(t Type, q Qualifier) string {
	var sb strings.Builder
	writeType(&sb, t, q)
	return sb.String()
}

func writeType(sb *strings.Builder, t Type, q Qualifier) {
	switch t := t.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Class:
		if t.Pkg != "" {
			pkg := t.Pkg
			if q != nil {
				pkg = q(pkg)
			}
			if pkg != "" {
				sb.WriteString(pkg)
				sb.WriteByte('.')
			}
		}
		sb.WriteString(qualifyArgs(t.Name, q))
	case *Parameterized:
		switch {
		case t.Raw == Map && len(t.Args) == 2:
			sb.WriteString("map[")
			writeType(sb, t.Args[0], q)
			sb.WriteByte(']')
			writeType(sb, t.Args[1], q)
		case t.Raw == Pointer && len(t.Args) == 1:
			sb.WriteByte('*')
			writeType(sb, t.Args[0], q)
		default:
			writeType(sb, t.Raw, q)
			sb.WriteByte('[')
			for i, a := range t.Args {
				if i > 0 {
					sb.WriteByte(',')
				}
				writeType(sb, a, q)
			}
			sb.WriteByte(']')
		}
	case *Var:
		sb.WriteString(t.Name)
	case *Wildcard:
		sb.WriteByte('?')
		for _, l := range t.Lower {
			sb.WriteString(" super ")
			writeType(sb, l, q)
		}
		for _, u := range t.Upper {
			sb.WriteString(" extends ")
			writeType(sb, u, q)
		}
	case *GenericArray:
		sb.WriteByte('[')
		if t.Len >= 0 {
			sb.WriteString(strconv.Itoa(t.Len))
		}
		sb.WriteByte(']')
		writeType(sb, t.Elem, q)
	}
}

// qualifyArgs applies q to the package paths inside the brackets of a
// runtime instance name such as Page[example.com/shop.Order].
func qualifyArgs(name string, q Qualifier) string {
	open := strings.IndexByte(name, '[')
	if q == nil || open < 0 {
		return name
	}
	var sb strings.Builder
	sb.WriteString(name[:open])
	rest := name[open:]
	for rest != "" {
		i := strings.IndexAny(rest, "[]*, ")
		if i < 0 {
			i = len(rest)
		}
		if i == 0 {
			sb.WriteByte(rest[0])
			rest = rest[1:]
			continue
		}
		ident := rest[:i]
		if dot := strings.LastIndexByte(ident, '.'); dot >= 0 {
			if pkg := q(ident[:dot]); pkg != "" {
				sb.WriteString(pkg)
				sb.WriteByte('.')
			}
			ident = ident[dot+1:]
		}
		sb.WriteString(ident)
		rest = rest[i:]
	}
	return sb.String()
}
