package carrier

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"slices"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/broady/methodscan/typeref"
)

// Carrier is the synthesized argument struct of one method.
type Carrier struct {
	// Type is a struct with one exported field per parameter, in order.
	Type reflect.Type

	// Params holds the assembled type expression of each parameter.
	Params []typeref.Type

	// Names holds the JSON name of each field.
	Names []string
}

// New returns a pointer to a fresh zero carrier value.
func (c *Carrier) New() reflect.Value {
	return reflect.New(c.Type)
}

// Build assembles the parameter types recorded in table and synthesizes the
// carrier struct for method. names supplies parameter names; missing or
// unusable names fall back to argN.
//
// Nested instantiations are assembled innermost first: the node with the
// greatest remaining parent id is always complete, because ids are assigned
// in pre-order and every child id exceeds its parent's.
func Build(method string, table Table, names []string) (*Carrier, error) {
	children := make(map[int][]*Node)
	for _, n := range table {
		children[n.Parent] = append(children[n.Parent], n)
	}
	for id := range children {
		slices.SortFunc(children[id], func(a, b *Node) int { return a.ID - b.ID })
	}

	parents := make([]int, 0, len(children))
	for id := range children {
		if id != NoParent {
			parents = append(parents, id)
		}
	}
	slices.Sort(parents)

	assembled := make(map[int]typeref.Type)
	for len(parents) > 0 {
		id := parents[len(parents)-1]
		parents = parents[:len(parents)-1]

		parent, ok := table[id]
		if !ok {
			return nil, fmt.Errorf("carrier %s: node %d has children but no entry", method, id)
		}
		kids := children[id]
		delete(children, id)

		args := make([]typeref.Type, len(kids))
		for i, k := range kids {
			if a, ok := assembled[k.ID]; ok {
				args[i] = a
			} else {
				args[i] = leaf(k)
			}
		}

		var t typeref.Type = &typeref.Parameterized{Raw: parent.Class, Args: args, Owner: parent.Owner}
		if parent.Opaque {
			t = typeref.Top
		}
		assembled[id] = wrap(t, parent.Dims)
	}

	top := children[NoParent]
	jsonNames, err := paramNames(names, len(top))
	if err != nil {
		return nil, fmt.Errorf("carrier %s: %w", method, err)
	}
	c := &Carrier{
		Params: make([]typeref.Type, len(top)),
		Names:  make([]string, len(top)),
	}
	fields := make([]reflect.StructField, len(top))
	used := make(map[string]bool)
	for i, n := range top {
		t, ok := assembled[n.ID]
		if !ok {
			t = leaf(n)
		}
		rt, err := materialize(t)
		if err != nil {
			return nil, fmt.Errorf("carrier %s: parameter %d: %w", method, i, err)
		}

		jsonName := jsonNames[i]
		goName := exported(jsonName)
		if used[goName] {
			goName = "Arg" + strconv.Itoa(i)
			for used[goName] {
				goName += "_"
			}
		}
		used[goName] = true
		c.Params[i] = t
		c.Names[i] = jsonName
		fields[i] = reflect.StructField{
			Name: goName,
			Type: rt,
			Tag:  reflect.StructTag(fmt.Sprintf(`json:%q schema:%q methodscan:"%s#%d"`, jsonName, jsonName, method, i)),
		}
	}
	if len(fields) == 0 {
		// Keeps carriers of parameterless methods distinct from each other.
		fields = append(fields, reflect.StructField{
			Name: "Method",
			Type: reflect.TypeFor[struct{}](),
			Tag:  reflect.StructTag(fmt.Sprintf(`json:"-" schema:"-" methodscan:"%s"`, method)),
		})
	}
	c.Type = reflect.StructOf(fields)
	return c, nil
}

func leaf(n *Node) typeref.Type {
	var t typeref.Type = n.Class
	if n.Opaque {
		t = typeref.Top
	}
	return wrap(t, n.Dims)
}

// wrap applies dims, outermost first, around t.
func wrap(t typeref.Type, dims []int) typeref.Type {
	for i := len(dims) - 1; i >= 0; i-- {
		t = &typeref.GenericArray{Elem: t, Len: dims[i]}
	}
	return t
}

// materialize erases an instantiation to any when one of its arguments was
// itself erased and no runtime instance exists for the erased form.
func materialize(t typeref.Type) (reflect.Type, error) {
	rt, err := typeref.Materialize(t)
	if errors.Is(err, typeref.ErrNoInstance) && typeref.ContainsTop(t) {
		return reflect.TypeFor[any](), nil
	}
	return rt, err
}

// paramNames picks the JSON name of each of n parameters. Declared names
// must be unique. Missing or unusable ones fall back to argN, with a
// trailing underscore while that collides with a declared name.
func paramNames(names []string, n int) ([]string, error) {
	out := make([]string, n)
	taken := make(map[string]bool)
	for i := range out {
		if i >= len(names) || names[i] == "_" || !token.IsIdentifier(names[i]) {
			continue
		}
		if taken[names[i]] {
			return nil, fmt.Errorf("duplicate parameter name %q", names[i])
		}
		out[i] = names[i]
		taken[names[i]] = true
	}
	for i, name := range out {
		if name != "" {
			continue
		}
		name = "arg" + strconv.Itoa(i)
		for taken[name] {
			name += "_"
		}
		out[i] = name
		taken[name] = true
	}
	return out, nil
}

func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return name
	}
	up := unicode.ToUpper(r)
	if !unicode.IsUpper(up) {
		// Identifiers starting with '_' or a caseless letter.
		return "P" + name
	}
	return string(up) + name[size:]
}
