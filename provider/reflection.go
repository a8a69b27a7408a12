package provider

import (
	"context"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/broady/methodscan/typeref"
)

// Reflection builds method descriptions from runtime types alone.
type Reflection struct {
	universe *typeref.Universe
}

// NewReflection returns a reflection provider with its own class universe.
func NewReflection() *Reflection {
	return &Reflection{universe: typeref.NewUniverse()}
}

// Scan lists the exported methods of v. Parameters are named argN.
func (p *Reflection) Scan(ctx context.Context, v any) (*Owner, error) {
	rv, base, err := ownerValue(v)
	if err != nil {
		return nil, err
	}
	ownerType, err := p.TypeOf(base)
	if err != nil {
		return nil, fmt.Errorf("owner %s: %w", base, err)
	}
	class, ok := ownerType.(*typeref.Class)
	if !ok {
		return nil, fmt.Errorf("owner %s is not a named class", base)
	}

	owner := &Owner{Name: base.Name(), Class: class, Value: rv}
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m := rt.Method(i)
		bound := rv.Method(i)
		owner.Methods = append(owner.Methods, p.method(m.Name, bound))
	}
	return owner, nil
}

func (p *Reflection) method(name string, bound reflect.Value) Method {
	m := Method{Name: name, Func: bound, Result: typeref.Void}
	sig, err := splitSignature(bound.Type())
	if err != nil {
		m.Err = err
		return m
	}
	m.TakesContext = sig.takesContext
	m.ReturnsError = sig.returnsError
	for i, prt := range sig.params {
		t, err := p.TypeOf(prt)
		if err != nil {
			m.Err = fmt.Errorf("parameter %d: %w", i, err)
			return m
		}
		m.Params = append(m.Params, Param{Name: fmt.Sprintf("arg%d", i), Type: t, RType: prt})
	}
	if sig.result != nil {
		t, err := p.TypeOf(sig.result)
		if err != nil {
			m.Err = fmt.Errorf("result: %w", err)
			return m
		}
		m.Result = t
		m.ResultRType = sig.result
	}
	return m
}

var (
	timeType          = reflect.TypeFor[time.Time]()
	numberType        = reflect.TypeFor[json.Number]()
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// isScalarType reports named types that encode as a single JSON value.
func isScalarType(rt reflect.Type) bool {
	if rt == timeType || rt == numberType {
		return true
	}
	if rt.Name() == "" || rt.Kind() == reflect.Interface {
		return false
	}
	for _, m := range []reflect.Type{jsonMarshalerType, textMarshalerType} {
		if rt.Implements(m) || reflect.PointerTo(rt).Implements(m) {
			return true
		}
	}
	return false
}

// TypeOf converts a runtime type to a type expression.
func (p *Reflection) TypeOf(rt reflect.Type) (typeref.Type, error) {
	if isScalarType(rt) {
		c, _ := p.universe.Intern(typeref.Scalar(rt.PkgPath(), rt.Name(), rt))
		return c, nil
	}

	switch rt.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128,
		reflect.UnsafePointer, reflect.Invalid:
		return nil, fmt.Errorf("%w: %s", typeref.ErrUnsupportedType, rt)

	case reflect.Interface:
		if rt.NumMethod() == 0 {
			return typeref.Top, nil
		}
		c, _ := p.class(rt, typeref.ShapeInterface)
		return c, nil

	case reflect.Pointer:
		elem, err := p.TypeOf(rt.Elem())
		if err != nil {
			return nil, err
		}
		return typeref.Param(typeref.Pointer, elem), nil

	case reflect.Slice, reflect.Array:
		if rt.Name() == "" {
			elem, err := p.TypeOf(rt.Elem())
			if err != nil {
				return nil, err
			}
			if rt.Kind() == reflect.Array {
				return typeref.ArrayOf(elem, rt.Len()), nil
			}
			return typeref.SliceOf(elem), nil
		}
		c, added := p.class(rt, typeref.ShapeCollection)
		if added {
			elem, err := p.TypeOf(rt.Elem())
			if err != nil {
				return nil, err
			}
			c.Elem = elem
		}
		return c, nil

	case reflect.Map:
		if rt.Name() == "" {
			key, err := p.TypeOf(rt.Key())
			if err != nil {
				return nil, err
			}
			elem, err := p.TypeOf(rt.Elem())
			if err != nil {
				return nil, err
			}
			return typeref.Param(typeref.Map, key, elem), nil
		}
		c, added := p.class(rt, typeref.ShapeMap)
		if added {
			key, err := p.TypeOf(rt.Key())
			if err != nil {
				return nil, err
			}
			elem, err := p.TypeOf(rt.Elem())
			if err != nil {
				return nil, err
			}
			c.Key, c.Elem = key, elem
		}
		return c, nil

	case reflect.Struct:
		c, added := p.class(rt, typeref.ShapeStruct)
		if added {
			c.SetFields(func() ([]typeref.Field, error) {
				return p.structFields(rt, map[reflect.Type]bool{})
			})
			for i := 0; i < rt.NumField(); i++ {
				sf := rt.Field(i)
				if !sf.Anonymous {
					continue
				}
				et, err := p.TypeOf(derefType(sf.Type))
				if err != nil {
					return nil, err
				}
				c.Embeds = append(c.Embeds, et)
			}
		}
		return c, nil
	}

	if rt.PkgPath() == "" && rt.Name() == rt.Kind().String() {
		return typeref.Basic(rt.Kind()), nil
	}
	c, _ := p.universe.Intern(typeref.Scalar(rt.PkgPath(), rt.Name(), rt))
	return c, nil
}

// class interns a class for rt. Unnamed types are keyed by their literal.
func (p *Reflection) class(rt reflect.Type, shape typeref.Shape) (*typeref.Class, bool) {
	pkg, name := rt.PkgPath(), rt.Name()
	if name == "" {
		pkg, name = "", rt.String()
	}
	c := typeref.NewClass(pkg, name, shape)
	c.RType = rt
	return p.universe.Intern(c)
}

// structFields lists JSON-visible fields. Fields of embedded structs without
// a JSON name are promoted unless a shallower field has the same name.
func (p *Reflection) structFields(rt reflect.Type, seen map[reflect.Type]bool) ([]typeref.Field, error) {
	if seen[rt] {
		return nil, nil
	}
	seen[rt] = true

	var fields []typeref.Field
	names := make(map[string]bool)
	var promoted []reflect.Type
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		name, skip := jsonFieldName(sf.Tag.Get("json"), sf.Name)
		if skip {
			continue
		}
		if sf.Anonymous && sf.Tag.Get("json") == "" {
			if et := derefType(sf.Type); et.Kind() == reflect.Struct {
				promoted = append(promoted, et)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		t, err := p.TypeOf(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		fields = append(fields, typeref.Field{Name: sf.Name, JSONName: name, Type: t})
		names[name] = true
	}
	for _, et := range promoted {
		inner, err := p.structFields(et, seen)
		if err != nil {
			return nil, err
		}
		for _, f := range inner {
			if !names[f.JSONName] {
				fields = append(fields, f)
				names[f.JSONName] = true
			}
		}
	}
	return fields, nil
}

func derefType(rt reflect.Type) reflect.Type {
	if rt.Kind() == reflect.Pointer {
		return rt.Elem()
	}
	return rt
}

// jsonFieldName applies encoding/json tag rules.
func jsonFieldName(tag, fieldName string) (name string, skip bool) {
	if tag == "-" {
		return "", true
	}
	name, _, _ = strings.Cut(tag, ",")
	if name == "" {
		name = fieldName
	}
	return name, false
}
