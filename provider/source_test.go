package provider

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/broady/methodscan/internal/resolve"
	"github.com/broady/methodscan/internal/testfixtures"
	"github.com/broady/methodscan/typeref"
)

func scanSource(t *testing.T, v any) (*Owner, map[string]*Method) {
	t.Helper()
	owner, err := NewSource("").Scan(context.Background(), v)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return owner, methodsByName(owner)
}

func TestSource_Scan(t *testing.T) {
	owner, methods := scanSource(t, &testfixtures.Orders{})

	if len(owner.Class.Embeds) != 1 {
		t.Fatalf("Embeds = %v, want [Repo[Order]]", owner.Class.Embeds)
	}
	if got := typeref.Format(owner.Class.Embeds[0], typeref.ShortQualifier); got != "testfixtures.Repo[testfixtures.Order]" {
		t.Errorf("embed = %s", got)
	}

	add := methods["AddOrder"]
	if add.Err != nil {
		t.Fatalf("AddOrder.Err = %v", add.Err)
	}
	if add.Params[0].Name != "id" || add.Params[1].Name != "lines" {
		t.Errorf("param names = %q, %q, want id, lines", add.Params[0].Name, add.Params[1].Name)
	}
	if !add.TakesContext {
		t.Error("AddOrder should take a context")
	}
	if add.Summary != "AddOrder creates an order from its lines." {
		t.Errorf("Summary = %q", add.Summary)
	}
	if add.Notes != "Lines are stored in the order given." {
		t.Errorf("Notes = %q", add.Notes)
	}

	save := methods["Save"]
	v, ok := save.Params[1].Type.(*typeref.Var)
	if !ok || v.Name != "T" || v.Decl == nil || v.Decl.Name != "Repo" {
		t.Fatalf("Save item type = %v, want type parameter T of Repo", save.Params[1].Type)
	}
	if save.Params[1].RType != reflect.TypeFor[testfixtures.Order]() {
		t.Errorf("Save item RType = %v", save.Params[1].RType)
	}
	if save.Summary != "Save stores an item under key." {
		t.Errorf("promoted Summary = %q", save.Summary)
	}

	list := methods["List"]
	if list.Tag != "storage" || list.TagDescription != "Generic storage operations" {
		t.Errorf("List tag = %q, %q", list.Tag, list.TagDescription)
	}
	if got := typeref.Format(list.Result, typeref.ShortQualifier); got != "testfixtures.Page[T]" {
		t.Errorf("List result = %s, want declared form", got)
	}

	if methods["Cancel"].Exposed != "cancelOrder" {
		t.Errorf("Cancel.Exposed = %q", methods["Cancel"].Exposed)
	}
	if !methods["Reset"].Ignore {
		t.Error("Reset should be ignored")
	}
	if !errors.Is(methods["Watch"].Err, typeref.ErrUnsupportedType) {
		t.Errorf("Watch.Err = %v", methods["Watch"].Err)
	}
}

func TestSource_ResolveAndMaterialize(t *testing.T) {
	owner, methods := scanSource(t, &testfixtures.Orders{})
	b := resolve.BindingsOf(owner.Class)

	tests := []struct {
		method string
		typ    func(*Method) typeref.Type
		want   reflect.Type
	}{
		{"Save", func(m *Method) typeref.Type { return m.Params[1].Type }, reflect.TypeFor[testfixtures.Order]()},
		{"SaveAll", func(m *Method) typeref.Type { return m.Params[0].Type }, reflect.TypeFor[map[string]testfixtures.Order]()},
		{"List", func(m *Method) typeref.Type { return m.Result }, reflect.TypeFor[testfixtures.Page[testfixtures.Order]]()},
		{"AddOrder", func(m *Method) typeref.Type { return m.Params[1].Type }, reflect.TypeFor[[]testfixtures.OrderLine]()},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			resolved, err := resolve.Resolve(tt.typ(methods[tt.method]), b)
			if err != nil {
				t.Fatal(err)
			}
			got, err := typeref.Materialize(resolved)
			if err != nil {
				t.Fatalf("Materialize(%s) error = %v", resolved, err)
			}
			if got != tt.want {
				t.Errorf("Materialize(%s) = %v, want %v", resolved, got, tt.want)
			}
		})
	}
}

func TestSource_MultipleParameters(t *testing.T) {
	owner, methods := scanSource(t, testfixtures.Catalog{})

	if !errors.Is(methods["Lookup"].Err, typeref.ErrUnsupportedType) {
		t.Errorf("Lookup.Err = %v, want unsupported second result", methods["Lookup"].Err)
	}

	merge := methods["Merge"]
	if merge.Err != nil {
		t.Fatalf("Merge.Err = %v", merge.Err)
	}
	if got := typeref.Format(merge.Params[1].Type, typeref.ShortQualifier); got != "map[K]V" {
		t.Errorf("prefer = %s, want map[K]V", got)
	}

	b := resolve.BindingsOf(owner.Class)
	resolved, err := resolve.Resolve(merge.Params[0].Type, b)
	if err != nil {
		t.Fatal(err)
	}
	if got := typeref.Format(resolved, typeref.ShortQualifier); got != "testfixtures.Index[string,float64]" {
		t.Errorf("resolved other = %s", got)
	}
	rt, err := typeref.Materialize(resolved)
	if err != nil {
		t.Fatal(err)
	}
	if rt != reflect.TypeFor[testfixtures.Index[string, float64]]() {
		t.Errorf("Materialize = %v", rt)
	}

	idx := resolve.RawClass(resolved)
	fields, err := idx.Fields()
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 1 || fields[0].JSONName != "entries" {
		t.Fatalf("Index fields = %v", fields)
	}
	entries, err := resolve.Resolve(fields[0].Type, b.Extend(resolved))
	if err != nil {
		t.Fatal(err)
	}
	rt, err = typeref.Materialize(entries)
	if err != nil {
		t.Fatalf("Materialize(%s) error = %v", entries, err)
	}
	if rt != reflect.TypeFor[[]testfixtures.Entry[string, float64]]() {
		t.Errorf("entries = %v", rt)
	}
}

func TestSource_NotFound(t *testing.T) {
	type local struct{}
	if _, err := NewSource("").Scan(context.Background(), local{}); err == nil {
		t.Error("Scan() of a function-local type should fail")
	}
}
