package typeref

import "reflect"

var anyType = reflect.TypeFor[any]()

// Builtin classes.
var (
	// Top is the empty interface. Unresolvable and opaque types erase to it.
	Top = &Class{Name: "any", Shape: ShapeTop, Exported: true, RType: anyType}

	// Void stands for the absent result of a method that returns nothing.
	Void = &Class{Name: "void", Shape: ShapeVoid, Exported: true}

	// Map is the builtin map[K]V.
	Map = &Class{
		Name:       "map",
		Shape:      ShapeMap,
		Exported:   true,
		TypeParams: []string{"K", "V"},
	}

	// Pointer is the builtin *E.
	Pointer = &Class{
		Name:       "pointer",
		Shape:      ShapePointer,
		Exported:   true,
		TypeParams: []string{"E"},
	}
)

func init() {
	Map.Key = &Var{Name: "K", Decl: Map}
	Map.Elem = &Var{Name: "V", Decl: Map}
	Pointer.Elem = &Var{Name: "E", Decl: Pointer}
}

var basics = func() map[reflect.Kind]*Class {
	m := make(map[reflect.Kind]*Class)
	for _, rt := range []reflect.Type{
		reflect.TypeFor[bool](),
		reflect.TypeFor[string](),
		reflect.TypeFor[int](),
		reflect.TypeFor[int8](),
		reflect.TypeFor[int16](),
		reflect.TypeFor[int32](),
		reflect.TypeFor[int64](),
		reflect.TypeFor[uint](),
		reflect.TypeFor[uint8](),
		reflect.TypeFor[uint16](),
		reflect.TypeFor[uint32](),
		reflect.TypeFor[uint64](),
		reflect.TypeFor[uintptr](),
		reflect.TypeFor[float32](),
		reflect.TypeFor[float64](),
	} {
		m[rt.Kind()] = &Class{Name: rt.Name(), Shape: ShapeScalar, Exported: true, RType: rt}
	}
	return m
}()

// Basic returns the predeclared scalar class for kind, or nil if kind is
// not a JSON-encodable basic kind.
func Basic(kind reflect.Kind) *Class {
	return basics[kind]
}

// Builtin returns the predeclared class with the given name, such as
// "string", "any" or "map".
func Builtin(name string) *Class {
	switch name {
	case "any":
		return Top
	case "map":
		return Map
	case "pointer":
		return Pointer
	case "byte":
		return basics[reflect.Uint8]
	case "rune":
		return basics[reflect.Int32]
	}
	for _, c := range basics {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Scalar returns a class for a named type encoded as a single JSON value,
// such as time.Time or a type with a custom marshaler.
func Scalar(pkg, name string, rt reflect.Type) *Class {
	c := NewClass(pkg, name, ShapeScalar)
	c.RType = rt
	return c
}
