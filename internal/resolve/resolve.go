// Package resolve rewrites declared type expressions into concrete ones.
//
// A type parameter is resolved against Bindings, the instantiations seen
// while walking a concrete class's embedded types. Resolution never fails
// for a missing binding: the parameter erases to the top type.
package resolve

import (
	"fmt"
	"slices"

	"github.com/broady/methodscan/typeref"
)

// maxDepth bounds chains of parameters bound to other parameters.
const maxDepth = 32

// Bindings maps a generic class (by key) to the instantiation in effect.
type Bindings map[string]*typeref.Parameterized

// BindingsOf collects the bindings visible from t. If t is itself an
// instantiation it binds its own class; embedded types of its raw class are
// then walked depth first. The first binding found for a class wins.
func BindingsOf(t typeref.Type) Bindings {
	b := Bindings{}
	b.add(t, map[string]bool{})
	return b
}

// Extend returns a copy of b overlaid with the bindings of t, so the
// nearest instantiation of a class shadows outer ones.
func (b Bindings) Extend(t typeref.Type) Bindings {
	inner := BindingsOf(t)
	out := make(Bindings, len(b)+len(inner))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range inner {
		out[k] = v
	}
	return out
}

func (b Bindings) add(t typeref.Type, seen map[string]bool) {
	var class *typeref.Class
	switch t := t.(type) {
	case *typeref.Class:
		class = t
	case *typeref.Parameterized:
		class = t.Raw
		if class == nil {
			return
		}
		if _, ok := b[class.String()]; !ok {
			b[class.String()] = t
		}
	default:
		return
	}
	if class == nil {
		return
	}
	key := class.String()
	if seen[key] {
		return
	}
	seen[key] = true
	for _, e := range class.Embeds {
		b.add(e, seen)
	}
}

// Resolve returns the concrete form of t under b.
func Resolve(t typeref.Type, b Bindings) (typeref.Type, error) {
	return resolve(t, b, 0)
}

func resolve(t typeref.Type, b Bindings, depth int) (typeref.Type, error) {
	switch t := t.(type) {
	case *typeref.Class:
		return t, nil

	case *typeref.Parameterized:
		args := make([]typeref.Type, len(t.Args))
		changed := false
		for i, a := range t.Args {
			r, err := resolve(a, b, depth)
			if err != nil {
				return nil, err
			}
			args[i] = r
			changed = changed || r != a
		}
		if !changed {
			return t, nil
		}
		return &typeref.Parameterized{Raw: t.Raw, Args: args, Owner: t.Owner}, nil

	case *typeref.Var:
		if depth >= maxDepth || t.Decl == nil {
			return typeref.Top, nil
		}
		idx := slices.Index(t.Decl.TypeParams, t.Name)
		bound, ok := b[t.Decl.String()]
		if idx < 0 || !ok || idx >= len(bound.Args) {
			return typeref.Top, nil
		}
		return resolve(bound.Args[idx], b, depth+1)

	case *typeref.Wildcard:
		switch {
		case len(t.Lower) == 1:
			return resolve(t.Lower[0], b, depth)
		case len(t.Upper) == 1:
			return resolve(t.Upper[0], b, depth)
		}
		return typeref.Top, nil

	case *typeref.GenericArray:
		elem, err := resolve(t.Elem, b, depth)
		if err != nil {
			return nil, err
		}
		if elem == t.Elem {
			return t, nil
		}
		return &typeref.GenericArray{Elem: elem, Len: t.Len}, nil
	}
	return nil, fmt.Errorf("%w: %T", typeref.ErrUnsupportedType, t)
}

// RawClass returns the class behind a resolved expression. Arrays report
// their innermost component class.
func RawClass(t typeref.Type) *typeref.Class {
	switch t := t.(type) {
	case *typeref.Class:
		return t
	case *typeref.Parameterized:
		return t.Raw
	case *typeref.GenericArray:
		return RawClass(t.Elem)
	}
	return typeref.Top
}

// Contains reports whether class appears anywhere in the resolved form of t,
// including nested type arguments and array components.
func Contains(t typeref.Type, class *typeref.Class, b Bindings) (bool, error) {
	r, err := Resolve(t, b)
	if err != nil {
		return false, err
	}
	return contains(r, class), nil
}

func contains(t typeref.Type, class *typeref.Class) bool {
	switch t := t.(type) {
	case *typeref.Class:
		return SameClass(t, class)
	case *typeref.Parameterized:
		if SameClass(t.Raw, class) {
			return true
		}
		for _, a := range t.Args {
			if contains(a, class) {
				return true
			}
		}
	case *typeref.GenericArray:
		return contains(t.Elem, class)
	}
	return false
}

// SameClass reports whether a and b denote the same declared type.
func SameClass(a, b *typeref.Class) bool {
	if a == b {
		return true
	}
	return a != nil && b != nil && a.String() == b.String()
}
