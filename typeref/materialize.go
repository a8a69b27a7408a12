package typeref

import (
	"fmt"
	"reflect"
)

// Materialize returns the runtime type denoted by a resolved expression.
// Type variables and wildcards must be resolved first.
func Materialize(t Type) (reflect.Type, error) {
	switch t := t.(type) {
	case *Class:
		switch {
		case t.Shape == ShapeTop:
			return anyType, nil
		case t.Shape == ShapeVoid:
			return nil, fmt.Errorf("%w: void has no value", ErrUnsupportedType)
		case t.RType == nil && t.Generic():
			return nil, fmt.Errorf("%w: %s used without type arguments", ErrNoInstance, t)
		case t.RType == nil:
			return nil, fmt.Errorf("%w: %s", ErrNoInstance, t)
		}
		return t.RType, nil

	case *Parameterized:
		args := make([]reflect.Type, len(t.Args))
		for i, a := range t.Args {
			rt, err := Materialize(a)
			if err != nil {
				return nil, err
			}
			args[i] = rt
		}
		switch t.Raw {
		case Map:
			if len(args) != 2 {
				return nil, fmt.Errorf("%w: map with %d arguments", ErrUnsupportedType, len(args))
			}
			return reflect.MapOf(args[0], args[1]), nil
		case Pointer:
			if len(args) != 1 {
				return nil, fmt.Errorf("%w: pointer with %d arguments", ErrUnsupportedType, len(args))
			}
			return reflect.PointerTo(args[0]), nil
		}
		if rt, ok := t.Raw.Instance(t.Args); ok {
			return rt, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoInstance, t)

	case *GenericArray:
		elem, err := Materialize(t.Elem)
		if err != nil {
			return nil, err
		}
		if t.Len >= 0 {
			return reflect.ArrayOf(t.Len, elem), nil
		}
		return reflect.SliceOf(elem), nil

	case *Var:
		return nil, fmt.Errorf("%w: unresolved type parameter %s", ErrUnsupportedType, t.Name)
	case *Wildcard:
		return nil, fmt.Errorf("%w: unresolved wildcard %s", ErrUnsupportedType, t)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, t)
}

// ContainsTop reports whether t is or mentions the top type.
func ContainsTop(t Type) bool {
	switch t := t.(type) {
	case *Class:
		return t.Shape == ShapeTop
	case *Parameterized:
		for _, a := range t.Args {
			if ContainsTop(a) {
				return true
			}
		}
	case *GenericArray:
		return ContainsTop(t.Elem)
	}
	return false
}
