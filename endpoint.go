package methodscan

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/broady/methodscan/internal/carrier"
	"github.com/broady/methodscan/internal/discover"
	"github.com/broady/methodscan/internal/resolve"
	"github.com/broady/methodscan/provider"
	"github.com/broady/methodscan/typeref"
)

// Endpoint is one exposed method. It is immutable once registered.
type Endpoint struct {
	// Name is the disambiguated exposed name, such as "orders.addOrder".
	Name    string
	Service string
	Method  string // Go method name

	Receiver reflect.Value
	Func     reflect.Value // method value bound to Receiver
	Class    *typeref.Class

	// Params are the parameter types resolved against the receiver's
	// embedding chain; ParamTypes are the runtime types the method takes.
	Params     []typeref.Type
	ParamNames []string
	ParamTypes []reflect.Type

	Result       typeref.Type
	ResultType   reflect.Type // nil for methods without a result
	ReturnsError bool
	TakesContext bool

	// Carrier is the synthesized struct a request body is decoded into.
	Carrier reflect.Type

	Tag          string
	Summary      string
	Notes        string
	ParameterDoc string
	ReturnDoc    string
	Suffix       string

	// Models are the runtime types of the struct types reachable from the
	// parameters and result.
	Models []reflect.Type

	exposed      string
	carrier      *carrier.Carrier
	interceptors []UnaryInterceptor

	// erased lists the carrier fields whose type differs from the
	// parameter type, such as opaque classes carried as any.
	erased []int
	// queryable reports whether every argument can be read from query
	// values, which GET requests require.
	queryable bool
}

// Entry describes an endpoint for documentation.
type Entry struct {
	Name           string
	Path           string // prefix?name, or prefix?name#suffix
	Tag            string
	Summary        string
	Notes          string
	ParameterModel reflect.Type
	ResponseModel  reflect.Type
	ParameterDoc   string
	ReturnDoc      string
	Models         []reflect.Type
}

// Tag is a documentation group of endpoints.
type Tag struct {
	Name        string
	Description string
}

func (ep *Endpoint) entry(prefix string) Entry {
	path := prefix + "?" + ep.Name
	if ep.Suffix != "" {
		path += "#" + ep.Suffix
	}
	return Entry{
		Name:           ep.Name,
		Path:           path,
		Tag:            ep.Tag,
		Summary:        ep.Summary,
		Notes:          ep.Notes,
		ParameterModel: ep.Carrier,
		ResponseModel:  ep.ResultType,
		ParameterDoc:   ep.ParameterDoc,
		ReturnDoc:      ep.ReturnDoc,
		Models:         ep.Models,
	}
}

func newEndpoint(service string, owner *provider.Owner, m *provider.Method, cfg *exposeConfig) (*Endpoint, error) {
	exposed := cfg.exposedName(m)
	b := resolve.BindingsOf(owner.Class)

	declared := make([]typeref.Type, len(m.Params))
	params := make([]typeref.Type, len(m.Params))
	for i, p := range m.Params {
		declared[i] = p.Type
		r, err := resolve.Resolve(p.Type, b)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		params[i] = r
	}
	result, err := resolve.Resolve(m.Result, b)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}

	table, err := carrier.Linearize(declared, b)
	if err != nil {
		return nil, err
	}
	names := cfg.names(m)
	c, err := carrier.Build(service+"."+exposed, table, names)
	if err != nil {
		return nil, err
	}

	models, err := discoverModels(owner.Class, append(params, result))
	if err != nil {
		return nil, err
	}

	paramTypes := m.ParamTypes()
	var erased []int
	for i, pt := range paramTypes {
		if c.Type.Field(i).Type != pt {
			erased = append(erased, i)
		}
	}

	summary, notes := cfg.docs(m)
	return &Endpoint{
		Service:      service,
		Method:       m.Name,
		Receiver:     owner.Value,
		Func:         m.Func,
		Class:        owner.Class,
		Params:       params,
		ParamNames:   c.Names,
		ParamTypes:   paramTypes,
		Result:       result,
		ResultType:   m.ResultRType,
		ReturnsError: m.ReturnsError,
		TakesContext: m.TakesContext,
		Carrier:      c.Type,
		Tag:          cfg.tagFor(m).Name,
		Summary:      summary,
		Notes:        notes,
		ParameterDoc: parameterDoc(c.Names, params),
		ReturnDoc:    returnDoc(result),
		Suffix:       cfg.suffix(m),
		Models:       models,
		exposed:      exposed,
		carrier:      c,
		erased:       erased,
		queryable:    queryable(c.Type),
	}, nil
}

// discoverModels materializes the struct types reachable from roots.
// Instantiations over erased arguments have no runtime type and are left
// out.
func discoverModels(owner *typeref.Class, roots []typeref.Type) ([]reflect.Type, error) {
	w := discover.NewWalker(owner)
	for _, t := range roots {
		if err := w.Add(t); err != nil {
			return nil, err
		}
	}
	var models []reflect.Type
	for _, t := range w.Types() {
		rt, err := typeref.Materialize(t)
		if errors.Is(err, typeref.ErrNoInstance) && typeref.ContainsTop(t) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", t, err)
		}
		models = append(models, rt)
	}
	return models, nil
}

func parameterDoc(names []string, params []typeref.Type) string {
	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(names[i])
		sb.WriteByte(' ')
		sb.WriteString(typeref.Format(p, typeref.ShortQualifier))
	}
	return sb.String()
}

func returnDoc(result typeref.Type) string {
	if result == typeref.Void {
		return ""
	}
	return typeref.Format(result, typeref.ShortQualifier)
}
