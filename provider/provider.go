// Package provider turns a Go value into the list of methods it can expose,
// with each parameter described both by its declared type expression and by
// its runtime type.
//
// Two providers are available:
//   - Reflection: uses only the reflect package. Signatures are concrete,
//     parameter names fall back to argN, and there is no documentation.
//   - Source: loads the value's package with go/packages. Signatures keep
//     their declared generic form, parameter names and doc comments are
//     read from source, and //methodscan: directives are honored.
package provider

import (
	"context"
	"fmt"
	"reflect"

	"github.com/broady/methodscan/typeref"
)

// Provider scans a value for exposable methods.
type Provider interface {
	Scan(ctx context.Context, v any) (*Owner, error)
}

// Owner is a scanned value.
type Owner struct {
	// Name is the Go type name of the value, pointer stripped.
	Name string

	// Class is the class of the value. Its embedded types supply the
	// bindings used to resolve type parameters in promoted methods.
	Class *typeref.Class

	Value   reflect.Value
	Methods []Method
}

// Method is one exported method of an owner, in provider listing order.
type Method struct {
	Name   string // Go method name
	Params []Param

	// Result is the declared type of the non-error result, or typeref.Void.
	Result       typeref.Type
	ResultRType  reflect.Type
	ReturnsError bool

	// TakesContext reports a leading context.Context parameter. It is not
	// listed in Params and is supplied by the caller at invocation.
	TakesContext bool

	// Func is the method value bound to the owner.
	Func reflect.Value

	Summary        string
	Notes          string
	Exposed        string // overriding exposed name, if any
	Tag            string
	TagDescription string
	Ignore         bool
	Suffix         string // appended to the documented path as #suffix

	// Err is set when the method cannot be exposed. Callers decide whether
	// that is fatal, so an ignored method never fails a scan.
	Err error
}

// Param is one method parameter.
type Param struct {
	Name  string
	Type  typeref.Type
	RType reflect.Type
}

// ParamTypes returns the runtime types of m's parameters.
func (m *Method) ParamTypes() []reflect.Type {
	out := make([]reflect.Type, len(m.Params))
	for i, p := range m.Params {
		out[i] = p.RType
	}
	return out
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// signature is the shape of a bound method's func type.
type signature struct {
	takesContext bool
	params       []reflect.Type
	result       reflect.Type // nil when there is no non-error result
	returnsError bool
}

// splitSignature accepts func([ctx,] params...) with results (T, error),
// (T), (error) or none.
func splitSignature(ft reflect.Type) (signature, error) {
	var s signature
	if ft.IsVariadic() {
		return s, fmt.Errorf("%w: variadic method", typeref.ErrUnsupportedType)
	}
	start := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		s.takesContext = true
		start = 1
	}
	for i := start; i < ft.NumIn(); i++ {
		s.params = append(s.params, ft.In(i))
	}
	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			s.returnsError = true
		} else {
			s.result = ft.Out(0)
		}
	case 2:
		if ft.Out(1) != errorType {
			return s, fmt.Errorf("%w: second result must be error, got %s", typeref.ErrUnsupportedType, ft.Out(1))
		}
		s.result = ft.Out(0)
		s.returnsError = true
	default:
		return s, fmt.Errorf("%w: %d results", typeref.ErrUnsupportedType, ft.NumOut())
	}
	return s, nil
}

// ownerValue normalizes v and returns its value and its pointer-stripped type.
func ownerValue(v any) (reflect.Value, reflect.Type, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return rv, nil, fmt.Errorf("nil owner")
	}
	base := rv.Type()
	if base.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return rv, nil, fmt.Errorf("nil owner of type %s", base)
		}
		base = base.Elem()
	}
	if base.Name() == "" {
		return rv, nil, fmt.Errorf("owner of type %s must be a named type", rv.Type())
	}
	return rv, base, nil
}
