// Package carrier synthesizes the struct type that carries a method's
// arguments as one JSON document.
//
// Parameter types are first flattened into a Table of nodes linked by parent
// id (Linearize), then reassembled bottom-up into concrete type expressions
// and materialized with reflect.StructOf (Build).
package carrier

import (
	"fmt"
	"slices"

	"github.com/broady/methodscan/internal/resolve"
	"github.com/broady/methodscan/typeref"
)

// NoParent marks a top-level node, one per method parameter.
const NoParent = -1

// Node is one class occurrence in a parameter type.
type Node struct {
	ID     int
	Parent int
	Class  *typeref.Class
	Owner  typeref.Type

	// Dims lists the array dimensions wrapped around the class, outermost
	// first. -1 is a slice, n >= 0 is [n]T.
	Dims []int

	// Opaque marks a class that cannot be named outside its package.
	// It erases to the top type.
	Opaque bool
}

// IsArray reports whether the node is wrapped in at least one array.
func (n *Node) IsArray() bool {
	return len(n.Dims) > 0
}

// Table holds the nodes of one method's parameter list, keyed by id.
type Table map[int]*Node

// Children returns the nodes whose parent is id, ordered by id.
func (t Table) Children(id int) []*Node {
	var out []*Node
	for _, n := range t {
		if n.Parent == id {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b *Node) int { return a.ID - b.ID })
	return out
}

// Linearize assigns ids to every class occurring in params in pre-order,
// starting at 1. Type parameters and wildcards are resolved in place under
// b and consume no id; arrays add a dimension to their component's node.
func Linearize(params []typeref.Type, b resolve.Bindings) (Table, error) {
	l := &linearizer{table: Table{}, bindings: b}
	for _, p := range params {
		if err := l.visit(p, NoParent, nil); err != nil {
			return nil, err
		}
	}
	return l.table, nil
}

type linearizer struct {
	table    Table
	bindings resolve.Bindings
	next     int
}

func (l *linearizer) visit(t typeref.Type, parent int, dims []int) error {
	switch t := t.(type) {
	case *typeref.Var, *typeref.Wildcard:
		r, err := resolve.Resolve(t, l.bindings)
		if err != nil {
			return err
		}
		return l.visit(r, parent, dims)

	case *typeref.GenericArray:
		return l.visit(t.Elem, parent, append(slices.Clone(dims), t.Len))

	case *typeref.Class:
		l.add(t, nil, parent, dims)
		return nil

	case *typeref.Parameterized:
		id := l.add(t.Raw, t.Owner, parent, dims)
		for _, a := range t.Args {
			if err := l.visit(a, id, nil); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %T", typeref.ErrUnsupportedType, t)
}

func (l *linearizer) add(c *typeref.Class, owner typeref.Type, parent int, dims []int) int {
	l.next++
	l.table[l.next] = &Node{
		ID:     l.next,
		Parent: parent,
		Class:  c,
		Owner:  owner,
		Dims:   dims,
		Opaque: !c.Exported,
	}
	return l.next
}
