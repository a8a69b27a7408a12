package discover

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/broady/methodscan/typeref"
)

const pkg = "example.com/shop"

func structClass(name string, fields ...typeref.Field) *typeref.Class {
	c := typeref.NewClass(pkg, name, typeref.ShapeStruct)
	c.SetFields(func() ([]typeref.Field, error) { return fields, nil })
	return c
}

func field(name string, t typeref.Type) typeref.Field {
	return typeref.Field{Name: name, JSONName: name, Type: t}
}

func keys(types []typeref.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = typeref.Format(t, typeref.ShortQualifier)
	}
	return out
}

var (
	str = typeref.Basic(reflect.String)
	i64 = typeref.Basic(reflect.Int64)
)

func TestFieldTypes_NestedStructs(t *testing.T) {
	tag := structClass("Tag", field("Name", str))
	customer := structClass("Customer", field("Email", str))
	line := structClass("OrderLine", field("SKU", str), field("Qty", i64))
	reader := typeref.NewClass("io", "Reader", typeref.ShapeInterface)
	order := structClass("Order",
		field("ID", str),
		field("Lines", typeref.SliceOf(line)),
		field("Customer", typeref.Param(typeref.Pointer, customer)),
		field("Tags", typeref.Param(typeref.Map, str, tag)),
		field("Source", reader),
		field("Extra", typeref.Top),
	)

	got, err := FieldTypes(order, nil)
	if err != nil {
		t.Fatalf("FieldTypes() error = %v", err)
	}
	want := []string{"shop.Customer", "shop.Order", "shop.OrderLine", "shop.Tag"}
	if !slices.Equal(keys(got), want) {
		t.Errorf("FieldTypes() = %v, want %v", keys(got), want)
	}
}

func TestFieldTypes_DirectSelfReference(t *testing.T) {
	node := typeref.NewClass(pkg, "Node", typeref.ShapeStruct)
	node.SetFields(func() ([]typeref.Field, error) {
		return []typeref.Field{
			field("Value", str),
			field("Next", typeref.Param(typeref.Pointer, node)),
			field("Children", typeref.SliceOf(node)),
		}, nil
	})

	got, err := FieldTypes(node, nil)
	if err != nil {
		t.Fatalf("FieldTypes() error = %v", err)
	}
	if want := []string{"shop.Node"}; !slices.Equal(keys(got), want) {
		t.Errorf("FieldTypes() = %v, want %v", keys(got), want)
	}
}

func TestFieldTypes_MutualRecursion(t *testing.T) {
	a := typeref.NewClass(pkg, "A", typeref.ShapeStruct)
	b := typeref.NewClass(pkg, "B", typeref.ShapeStruct)
	a.SetFields(func() ([]typeref.Field, error) { return []typeref.Field{field("B", typeref.Param(typeref.Pointer, b))}, nil })
	b.SetFields(func() ([]typeref.Field, error) { return []typeref.Field{field("A", typeref.Param(typeref.Pointer, a))}, nil })

	got, err := FieldTypes(a, nil)
	if err != nil {
		t.Fatalf("FieldTypes() error = %v", err)
	}
	if want := []string{"shop.A", "shop.B"}; !slices.Equal(keys(got), want) {
		t.Errorf("FieldTypes() = %v, want %v", keys(got), want)
	}
}

func TestFieldTypes_GenericSelfReference(t *testing.T) {
	// type Tree[T any] struct { Value T; Kids []Tree[T] }
	tree := typeref.NewClass(pkg, "Tree", typeref.ShapeStruct)
	tree.TypeParams = []string{"T"}
	tv := &typeref.Var{Name: "T", Decl: tree}
	tree.SetFields(func() ([]typeref.Field, error) {
		return []typeref.Field{
			field("Value", tv),
			field("Kids", typeref.SliceOf(typeref.Param(tree, tv))),
		}, nil
	})
	line := structClass("OrderLine", field("SKU", str))

	got, err := FieldTypes(typeref.Param(tree, line), nil)
	if err != nil {
		t.Fatalf("FieldTypes() error = %v", err)
	}
	want := []string{"shop.OrderLine", "shop.Tree[shop.OrderLine]"}
	if !slices.Equal(keys(got), want) {
		t.Errorf("FieldTypes() = %v, want %v", keys(got), want)
	}
}

func TestFieldTypes_ResolvesAgainstOwner(t *testing.T) {
	// type Page[T any] struct { Items []T; Total int64 }
	// type Repo[T any] struct{}
	// type Orders struct { Repo[Order] }
	// A method of Repo[T] returning Page[T] is discovered from Orders.
	order := structClass("Order", field("ID", str))
	page := typeref.NewClass(pkg, "Page", typeref.ShapeStruct)
	page.TypeParams = []string{"T"}
	page.SetFields(func() ([]typeref.Field, error) {
		return []typeref.Field{
			field("Items", typeref.SliceOf(&typeref.Var{Name: "T", Decl: page})),
			field("Total", i64),
		}, nil
	})
	repo := typeref.NewClass(pkg, "Repo", typeref.ShapeStruct)
	repo.TypeParams = []string{"T"}
	owner := structClass("Orders")
	owner.Embeds = []typeref.Type{typeref.Param(repo, order)}

	result := typeref.Param(page, &typeref.Var{Name: "T", Decl: repo})
	got, err := FieldTypes(result, owner)
	if err != nil {
		t.Fatalf("FieldTypes() error = %v", err)
	}
	want := []string{"shop.Order", "shop.Page[shop.Order]"}
	if !slices.Equal(keys(got), want) {
		t.Errorf("FieldTypes() = %v, want %v", keys(got), want)
	}
}

func TestFieldTypes_NamedRecursiveContainer(t *testing.T) {
	tree := typeref.NewClass(pkg, "Tree", typeref.ShapeMap)
	tree.Key = str
	tree.Elem = tree
	leaf := structClass("Leaf")
	holder := structClass("Holder", field("Tree", tree), field("Leaf", leaf))

	got, err := FieldTypes(holder, nil)
	if err != nil {
		t.Fatalf("FieldTypes() error = %v", err)
	}
	if want := []string{"shop.Holder", "shop.Leaf"}; !slices.Equal(keys(got), want) {
		t.Errorf("FieldTypes() = %v, want %v", keys(got), want)
	}
}

func TestFieldTypes_SkipsScalarsAndInterfaces(t *testing.T) {
	for _, typ := range []typeref.Type{str, typeref.Top, typeref.Void, typeref.NewClass("io", "Reader", typeref.ShapeInterface)} {
		got, err := FieldTypes(typ, nil)
		if err != nil {
			t.Fatalf("FieldTypes(%s) error = %v", typ, err)
		}
		if len(got) != 0 {
			t.Errorf("FieldTypes(%s) = %v, want none", typ, keys(got))
		}
	}
}

func TestFieldTypes_IntrospectionFailure(t *testing.T) {
	broken := typeref.NewClass(pkg, "Broken", typeref.ShapeStruct)
	broken.SetFields(func() ([]typeref.Field, error) { return nil, errors.New("no fields") })
	holder := structClass("Holder", field("B", broken))

	_, err := FieldTypes(holder, nil)
	if !errors.Is(err, typeref.ErrPropertyIntrospection) {
		t.Errorf("FieldTypes() error = %v, want ErrPropertyIntrospection", err)
	}
}

func TestWalker_SharedVisitedSet(t *testing.T) {
	line := structClass("OrderLine", field("SKU", str))
	order := structClass("Order", field("Lines", typeref.SliceOf(line)))

	w := NewWalker(nil)
	for _, typ := range []typeref.Type{order, typeref.SliceOf(line), str} {
		if err := w.Add(typ); err != nil {
			t.Fatalf("Add(%s) error = %v", typ, err)
		}
	}
	if want := []string{"shop.Order", "shop.OrderLine"}; !slices.Equal(keys(w.Types()), want) {
		t.Errorf("Types() = %v, want %v", keys(w.Types()), want)
	}
}

func TestFieldTypes_NestedArrays(t *testing.T) {
	line := structClass("OrderLine", field("SKU", str))
	root := typeref.SliceOf(typeref.ArrayOf(typeref.Param(typeref.Pointer, line), 2))

	got, err := FieldTypes(root, nil)
	if err != nil {
		t.Fatalf("FieldTypes() error = %v", err)
	}
	if want := []string{"shop.OrderLine"}; !slices.Equal(keys(got), want) {
		t.Errorf("FieldTypes() = %v, want %v", keys(got), want)
	}
}
