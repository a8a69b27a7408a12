package typeref

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strings"
	"sync"
)

var (
	// ErrUnsupportedType reports a type with no JSON form (chan, func,
	// complex numbers, unsafe pointers) or an unknown expression.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrPropertyIntrospection reports a class whose fields cannot be enumerated.
	ErrPropertyIntrospection = errors.New("property introspection failed")

	// ErrNoInstance reports a generic instantiation with no known runtime type.
	ErrNoInstance = errors.New("no runtime type for instantiation")
)

// Shape classifies how a class is traversed.
type Shape int

const (
	ShapeStruct     Shape = iota // Object with fields
	ShapeScalar                  // Encoded as a single JSON value
	ShapeInterface               // Non-empty interface
	ShapeCollection              // Named slice or array; element in Elem
	ShapeMap                     // Map; key in Key, value in Elem
	ShapePointer                 // Pointer; pointee in Elem
	ShapeTop                     // The empty interface
	ShapeVoid                    // Absence of a value
)

// String returns the string representation of the shape.
func (s Shape) String() string {
	switch s {
	case ShapeStruct:
		return "Struct"
	case ShapeScalar:
		return "Scalar"
	case ShapeInterface:
		return "Interface"
	case ShapeCollection:
		return "Collection"
	case ShapeMap:
		return "Map"
	case ShapePointer:
		return "Pointer"
	case ShapeTop:
		return "Top"
	case ShapeVoid:
		return "Void"
	default:
		return "Unknown"
	}
}

// Field is a JSON-visible field of a struct class. Promoted fields of
// embedded structs appear as fields of the embedding class; their Type is
// declared in terms of the embedded class's type parameters.
type Field struct {
	Name     string // Go field name
	JSONName string
	Type     Type
}

// FieldsFunc enumerates the fields of a class on first use.
type FieldsFunc func() ([]Field, error)

// Class is a named type, a builtin, or an anonymous composite.
type Class struct {
	Pkg   string
	Name  string
	Shape Shape

	// Exported reports whether code outside Pkg can name the type.
	// Unexported classes are treated as opaque by the carrier builder.
	Exported bool

	// TypeParams lists the declared type parameter names of a generic class.
	TypeParams []string

	// Embeds lists embedded struct types, outermost first. They play the
	// role of supertypes when collecting bindings for type parameters.
	Embeds []Type

	// Key and Elem describe collection, map and pointer shapes.
	Key  Type
	Elem Type

	// RType is the runtime type. It is nil for generic declarations.
	RType reflect.Type

	fieldsFn FieldsFunc

	mu         sync.Mutex
	fieldsDone bool
	fields     []Field
	fieldsErr  error
	instances  map[string]reflect.Type
}

// NewClass returns a class whose exported state follows Go's naming rule.
func NewClass(pkg, name string, shape Shape) *Class {
	return &Class{
		Pkg:      pkg,
		Name:     name,
		Shape:    shape,
		Exported: pkg == "" || token.IsExported(baseName(name)),
	}
}

func baseName(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

// Generic reports whether the class declares type parameters.
func (c *Class) Generic() bool {
	return len(c.TypeParams) > 0
}

// SetFields installs the function used to enumerate fields.
func (c *Class) SetFields(fn FieldsFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fieldsFn = fn
	c.fieldsDone = false
	c.fields = nil
	c.fieldsErr = nil
}

// Fields returns the class's fields. Non-struct classes have none.
// A failing enumeration is wrapped with ErrPropertyIntrospection.
func (c *Class) Fields() ([]Field, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fieldsDone {
		return c.fields, c.fieldsErr
	}
	c.fieldsDone = true
	if c.fieldsFn == nil {
		return nil, nil
	}
	c.fields, c.fieldsErr = c.fieldsFn()
	if c.fieldsErr != nil {
		c.fieldsErr = fmt.Errorf("%w: %s: %w", ErrPropertyIntrospection, c, c.fieldsErr)
	}
	return c.fields, c.fieldsErr
}

// AddInstance records the runtime type of c applied to args.
func (c *Class) AddInstance(args []Type, rt reflect.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.instances == nil {
		c.instances = make(map[string]reflect.Type)
	}
	c.instances[argsKey(args)] = rt
}

// Instance returns the runtime type of c applied to args.
func (c *Class) Instance(args []Type) (reflect.Type, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rt, ok := c.instances[argsKey(args)]
	return rt, ok
}

func argsKey(args []Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}
