// Package discover walks the field graph of a type and reports every nested
// type reachable from it, for documentation models.
//
// The walk resolves type parameters against the bindings of the owning
// class, skips interfaces, void and the top type, never visits a type twice,
// and does not follow a field back into the type that declares it.
package discover

import (
	"fmt"
	"sort"

	"github.com/broady/methodscan/internal/resolve"
	"github.com/broady/methodscan/typeref"
)

// FieldTypes returns the types reachable from t, ordered by key. Type
// parameters in t are resolved against the embedding chain of owner.
func FieldTypes(t typeref.Type, owner *typeref.Class) ([]typeref.Type, error) {
	w := newWalker()
	if err := w.walk(t, resolve.BindingsOf(owner)); err != nil {
		return nil, err
	}
	return w.result(), nil
}

// Walker accumulates reachable types across several roots, sharing one
// visited set so a type reachable from two roots is reported once.
type Walker struct {
	w     *walker
	owner *typeref.Class
}

// NewWalker returns a walker resolving against owner.
func NewWalker(owner *typeref.Class) *Walker {
	return &Walker{w: newWalker(), owner: owner}
}

// Add walks t.
func (w *Walker) Add(t typeref.Type) error {
	return w.w.walk(t, resolve.BindingsOf(w.owner))
}

// Types returns everything found so far, ordered by key.
func (w *Walker) Types() []typeref.Type {
	return w.w.result()
}

type walker struct {
	visited map[string]bool
	found   map[string]typeref.Type
}

func newWalker() *walker {
	return &walker{
		visited: make(map[string]bool),
		found:   make(map[string]typeref.Type),
	}
}

func (w *walker) result() []typeref.Type {
	keys := make([]string, 0, len(w.found))
	for k := range w.found {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]typeref.Type, len(keys))
	for i, k := range keys {
		out[i] = w.found[k]
	}
	return out
}

// handler processes one shape. It reports whether it consumed t.
type handler func(w *walker, t typeref.Type, class *typeref.Class, b resolve.Bindings) (bool, error)

// handlers run in priority order; the first that consumes a type wins.
// The table is filled in init because the handlers recurse through walk.
var handlers []handler

func init() {
	handlers = []handler{
		(*walker).scalar,
		(*walker).array,
		(*walker).container,
		(*walker).object,
	}
}

func (w *walker) walk(t typeref.Type, b resolve.Bindings) error {
	t, err := resolve.Resolve(t, b)
	if err != nil {
		return err
	}
	class := resolve.RawClass(t)
	for _, h := range handlers {
		done, err := h(w, t, class, b)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return nil
}

func (w *walker) scalar(_ typeref.Type, class *typeref.Class, _ resolve.Bindings) (bool, error) {
	return class.Shape == typeref.ShapeScalar, nil
}

func (w *walker) array(t typeref.Type, _ *typeref.Class, b resolve.Bindings) (bool, error) {
	a, ok := t.(*typeref.GenericArray)
	if !ok {
		return false, nil
	}
	return true, w.walk(a.Elem, b)
}

// container covers collections, maps and pointers, builtin or named: the
// walk continues into the key and element types.
func (w *walker) container(t typeref.Type, class *typeref.Class, b resolve.Bindings) (bool, error) {
	switch class.Shape {
	case typeref.ShapeCollection, typeref.ShapeMap, typeref.ShapePointer:
	default:
		return false, nil
	}
	if class != typeref.Map && class != typeref.Pointer {
		// Named containers may refer to themselves (type Tree map[string]Tree).
		key := t.String()
		if w.visited[key] {
			return true, nil
		}
		w.visited[key] = true
	}
	inner := b.Extend(t)
	for _, e := range []typeref.Type{class.Key, class.Elem} {
		if e == nil {
			continue
		}
		if err := w.walk(e, inner); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (w *walker) object(t typeref.Type, class *typeref.Class, b resolve.Bindings) (bool, error) {
	switch class.Shape {
	case typeref.ShapeVoid, typeref.ShapeInterface, typeref.ShapeTop:
		return true, nil
	}

	key := t.String()
	if w.visited[key] {
		return true, nil
	}
	w.visited[key] = true
	w.visited[class.String()] = true
	w.found[key] = t

	fields, err := class.Fields()
	if err != nil {
		return true, err
	}

	inner := b.Extend(t)
	for _, f := range fields {
		ft, err := resolve.Resolve(f.Type, inner)
		if err != nil {
			return true, fmt.Errorf("field %s.%s: %w", class, f.Name, err)
		}
		if resolve.SameClass(resolve.RawClass(ft), class) {
			continue
		}
		self, err := resolve.Contains(ft, class, inner)
		if err != nil {
			return true, err
		}
		if self {
			continue
		}
		if err := w.walk(ft, inner); err != nil {
			return true, err
		}
	}
	return true, nil
}
