package provider

import (
	"context"
	"fmt"
	"go/types"
	"reflect"
	"sync"

	"golang.org/x/tools/go/packages"

	"github.com/broady/methodscan/internal/directive"
	"github.com/broady/methodscan/typeref"
)

// Source builds method descriptions from the declaring package's source.
// Methods promoted from embedded generic types keep their declared
// signatures, so their type parameters can be resolved per owner.
type Source struct {
	// Dir is the working directory for loading packages. Empty means the
	// current directory.
	Dir string

	universe *typeref.Universe

	mu   sync.Mutex
	pkgs map[string]*sourcePackage
}

type sourcePackage struct {
	pkg *packages.Package

	// docs is keyed by receiver type name and method name. Positions are
	// not comparable across loads.
	docs map[string]*directive.Method
}

// NewSource returns a source provider loading packages relative to dir.
func NewSource(dir string) *Source {
	return &Source{
		Dir:      dir,
		universe: typeref.NewUniverse(),
		pkgs:     make(map[string]*sourcePackage),
	}
}

// Scan lists the exported methods of v as declared in source.
func (p *Source) Scan(ctx context.Context, v any) (*Owner, error) {
	rv, base, err := ownerValue(v)
	if err != nil {
		return nil, err
	}
	sp, err := p.load(ctx, base.PkgPath())
	if err != nil {
		return nil, err
	}

	obj, ok := sp.pkg.Types.Scope().Lookup(base.Name()).(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("type %s not found in %s", base.Name(), base.PkgPath())
	}
	named, ok := obj.Type().(*types.Named)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a defined type", base.PkgPath(), base.Name())
	}

	b := &sourceBuilder{universe: p.universe, paired: make(map[string]bool)}
	class, err := b.classOf(named)
	if err != nil {
		return nil, fmt.Errorf("owner %s: %w", base, err)
	}
	b.pair(named, base)

	owner := &Owner{Name: base.Name(), Class: class, Value: rv}
	var recv types.Type = named
	if rv.Kind() == reflect.Pointer {
		recv = types.NewPointer(named)
	}
	mset := types.NewMethodSet(recv)
	for i := 0; i < mset.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fn, ok := mset.At(i).Obj().(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		bound := rv.MethodByName(fn.Name())
		if !bound.IsValid() {
			continue
		}
		m := b.method(fn, bound)
		p.document(ctx, &m, fn.Origin())
		owner.Methods = append(owner.Methods, m)
	}
	return owner, nil
}

func (p *Source) load(ctx context.Context, path string) (*sourcePackage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sp, ok := p.pkgs[path]; ok {
		return sp, nil
	}

	cfg := &packages.Config{
		Context: ctx,
		Dir:     p.Dir,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles |
			packages.NeedImports |
			packages.NeedTypes |
			packages.NeedSyntax |
			packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, path)
	if err != nil {
		return nil, fmt.Errorf("load package %s: %w", path, err)
	}
	if len(pkgs) != 1 {
		return nil, fmt.Errorf("load package %s: found %d packages", path, len(pkgs))
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package %s has errors: %v", pkg.PkgPath, pkg.Errors[0])
	}
	methods, err := directive.FromFiles(pkg.Fset, pkg.Syntax)
	if err != nil {
		return nil, err
	}
	sp := &sourcePackage{pkg: pkg, docs: make(map[string]*directive.Method, len(methods))}
	for _, m := range methods {
		sp.docs[m.Recv+"."+m.FuncName] = m
	}
	p.pkgs[path] = sp
	return sp, nil
}

// document copies doc comment text and directives onto m. Methods declared
// in other packages are documented when that package can be loaded.
func (p *Source) document(ctx context.Context, m *Method, fn *types.Func) {
	sig := fn.Type().(*types.Signature)
	if fn.Pkg() == nil || sig.Recv() == nil {
		return
	}
	recv := types.Unalias(sig.Recv().Type())
	if ptr, ok := recv.(*types.Pointer); ok {
		recv = types.Unalias(ptr.Elem())
	}
	named, ok := recv.(*types.Named)
	if !ok {
		return
	}
	sp, err := p.load(ctx, fn.Pkg().Path())
	if err != nil {
		return
	}
	d, ok := sp.docs[named.Obj().Name()+"."+fn.Name()]
	if !ok {
		return
	}
	m.Summary = d.Summary
	m.Notes = d.Notes
	m.Exposed = d.Name
	m.Tag = d.Tag
	m.TagDescription = d.TagDescription
	m.Ignore = d.Ignore
	m.Suffix = d.Suffix
}

type sourceBuilder struct {
	universe *typeref.Universe
	paired   map[string]bool
}

func (b *sourceBuilder) method(fn *types.Func, bound reflect.Value) Method {
	m := Method{Name: fn.Name(), Func: bound, Result: typeref.Void}
	sig, err := splitSignature(bound.Type())
	if err != nil {
		m.Err = err
		return m
	}
	m.TakesContext = sig.takesContext
	m.ReturnsError = sig.returnsError

	origin := fn.Origin()
	declared := origin.Type().(*types.Signature)
	instance := fn.Type().(*types.Signature)
	decl, err := b.receiverClass(declared)
	if err != nil {
		m.Err = err
		return m
	}

	offset := 0
	if sig.takesContext {
		offset = 1
	}
	for i, rt := range sig.params {
		v := declared.Params().At(i + offset)
		t, err := b.convert(v.Type(), decl)
		if err != nil {
			m.Err = fmt.Errorf("parameter %s: %w", v.Name(), err)
			return m
		}
		b.pair(instance.Params().At(i+offset).Type(), rt)
		m.Params = append(m.Params, Param{Name: v.Name(), Type: t, RType: rt})
	}
	if sig.result != nil {
		t, err := b.convert(declared.Results().At(0).Type(), decl)
		if err != nil {
			m.Err = fmt.Errorf("result: %w", err)
			return m
		}
		b.pair(instance.Results().At(0).Type(), sig.result)
		m.Result = t
		m.ResultRType = sig.result
	}
	return m
}

// receiverClass returns the generic declaration that owns the type
// parameters used in a method signature.
func (b *sourceBuilder) receiverClass(sig *types.Signature) (*typeref.Class, error) {
	if sig.Recv() == nil {
		return nil, nil
	}
	t := types.Unalias(sig.Recv().Type())
	if ptr, ok := t.(*types.Pointer); ok {
		t = types.Unalias(ptr.Elem())
	}
	named, ok := t.(*types.Named)
	if !ok {
		return nil, nil
	}
	return b.classOf(named)
}

func (b *sourceBuilder) convert(t types.Type, decl *typeref.Class) (typeref.Type, error) {
	t = types.Unalias(t)
	if c := b.scalar(t); c != nil {
		return c, nil
	}

	switch t := t.(type) {
	case *types.Basic:
		c := basicClass(t)
		if c == nil {
			return nil, fmt.Errorf("%w: %s", typeref.ErrUnsupportedType, t)
		}
		return c, nil

	case *types.Named:
		c, err := b.classOf(t)
		if err != nil {
			return nil, err
		}
		if t.TypeArgs().Len() == 0 {
			return c, nil
		}
		args := make([]typeref.Type, t.TypeArgs().Len())
		for i := range args {
			a, err := b.convert(t.TypeArgs().At(i), decl)
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		return typeref.Param(c, args...), nil

	case *types.Pointer:
		elem, err := b.convert(t.Elem(), decl)
		if err != nil {
			return nil, err
		}
		return typeref.Param(typeref.Pointer, elem), nil

	case *types.Slice:
		elem, err := b.convert(t.Elem(), decl)
		if err != nil {
			return nil, err
		}
		return typeref.SliceOf(elem), nil

	case *types.Array:
		elem, err := b.convert(t.Elem(), decl)
		if err != nil {
			return nil, err
		}
		return typeref.ArrayOf(elem, int(t.Len())), nil

	case *types.Map:
		key, err := b.convert(t.Key(), decl)
		if err != nil {
			return nil, err
		}
		elem, err := b.convert(t.Elem(), decl)
		if err != nil {
			return nil, err
		}
		return typeref.Param(typeref.Map, key, elem), nil

	case *types.Interface:
		if t.Empty() {
			return typeref.Top, nil
		}
		c, _ := b.universe.Intern(&typeref.Class{Name: t.String(), Shape: typeref.ShapeInterface, Exported: true})
		return c, nil

	case *types.Struct:
		c := &typeref.Class{Name: t.String(), Shape: typeref.ShapeStruct, Exported: true}
		c, added := b.universe.Intern(c)
		if added {
			c.SetFields(func() ([]typeref.Field, error) {
				return b.structFields(t, decl, map[*types.Struct]bool{})
			})
		}
		return c, nil

	case *types.TypeParam:
		name := t.Obj().Name()
		if decl != nil && t.Index() < len(decl.TypeParams) {
			// Receivers may rename the parameters of their type.
			name = decl.TypeParams[t.Index()]
		}
		return &typeref.Var{Name: name, Decl: decl}, nil
	}
	return nil, fmt.Errorf("%w: %s", typeref.ErrUnsupportedType, t)
}

// classOf interns the class of a defined type's generic origin.
func (b *sourceBuilder) classOf(named *types.Named) (*typeref.Class, error) {
	named = named.Origin()
	obj := named.Obj()
	pkg := ""
	if obj.Pkg() != nil {
		pkg = obj.Pkg().Path()
	}

	var shape typeref.Shape
	switch named.Underlying().(type) {
	case *types.Struct:
		shape = typeref.ShapeStruct
	case *types.Interface:
		shape = typeref.ShapeInterface
	case *types.Slice, *types.Array:
		shape = typeref.ShapeCollection
	case *types.Map:
		shape = typeref.ShapeMap
	case *types.Pointer:
		shape = typeref.ShapePointer
	case *types.Basic:
		shape = typeref.ShapeScalar
	default:
		return nil, fmt.Errorf("%w: %s", typeref.ErrUnsupportedType, named)
	}

	c := typeref.NewClass(pkg, obj.Name(), shape)
	for i := 0; i < named.TypeParams().Len(); i++ {
		c.TypeParams = append(c.TypeParams, named.TypeParams().At(i).Obj().Name())
	}
	c, added := b.universe.Intern(c)
	if !added {
		return c, nil
	}

	var err error
	switch u := named.Underlying().(type) {
	case *types.Struct:
		c.SetFields(func() ([]typeref.Field, error) {
			return b.structFields(u, c, map[*types.Struct]bool{})
		})
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			if !f.Embedded() {
				continue
			}
			et, err := b.convert(derefTypes(f.Type()), c)
			if err != nil {
				return nil, fmt.Errorf("embedded %s: %w", f.Name(), err)
			}
			c.Embeds = append(c.Embeds, et)
		}
	case *types.Slice:
		c.Elem, err = b.convert(u.Elem(), c)
	case *types.Array:
		c.Elem, err = b.convert(u.Elem(), c)
	case *types.Map:
		if c.Key, err = b.convert(u.Key(), c); err == nil {
			c.Elem, err = b.convert(u.Elem(), c)
		}
	case *types.Pointer:
		c.Elem, err = b.convert(u.Elem(), c)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (b *sourceBuilder) structFields(st *types.Struct, decl *typeref.Class, seen map[*types.Struct]bool) ([]typeref.Field, error) {
	if seen[st] {
		return nil, nil
	}
	seen[st] = true

	var fields []typeref.Field
	names := make(map[string]bool)
	var promoted []*types.Named
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		tag := reflect.StructTag(st.Tag(i)).Get("json")
		name, skip := jsonFieldName(tag, f.Name())
		if skip {
			continue
		}
		if f.Embedded() && tag == "" {
			if n, ok := types.Unalias(derefTypes(f.Type())).(*types.Named); ok {
				if _, isStruct := n.Underlying().(*types.Struct); isStruct {
					promoted = append(promoted, n)
					continue
				}
			}
		}
		if !f.Exported() {
			continue
		}
		t, err := b.convert(f.Type(), decl)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name(), err)
		}
		fields = append(fields, typeref.Field{Name: f.Name(), JSONName: name, Type: t})
		names[name] = true
	}
	for _, n := range promoted {
		// Promoted fields stay in terms of the embedded type's own
		// parameters; the embedding is recorded in the class's Embeds.
		ec, err := b.classOf(n)
		if err != nil {
			return nil, err
		}
		inner, err := b.structFields(n.Origin().Underlying().(*types.Struct), ec, seen)
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

// scalar returns a class for defined types that encode as one JSON value.
func (b *sourceBuilder) scalar(t types.Type) *typeref.Class {
	named, ok := t.(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return nil
	}
	pkg, name := named.Obj().Pkg().Path(), named.Obj().Name()
	var rt reflect.Type
	switch {
	case pkg == "time" && name == "Time":
		rt = timeType
	case pkg == "encoding/json" && name == "Number":
		rt = numberType
	case !hasCustomMarshaler(named):
		return nil
	}
	c, _ := b.universe.Intern(typeref.Scalar(pkg, name, rt))
	return c
}

// hasCustomMarshaler checks if a type implements json.Marshaler or encoding.TextMarshaler.
func hasCustomMarshaler(named *types.Named) bool {
	if _, ok := named.Underlying().(*types.Interface); ok {
		return false
	}
	origin := named.Origin()
	for i := 0; i < origin.NumMethods(); i++ {
		method := origin.Method(i)
		if method.Name() != "MarshalJSON" && method.Name() != "MarshalText" {
			continue
		}
		sig := method.Type().(*types.Signature)
		if sig.Params().Len() == 0 && sig.Results().Len() == 2 {
			return true
		}
	}
	return false
}

// pair walks a concrete go/types type alongside its runtime type, recording
// runtime types on classes and on generic instantiations.
func (b *sourceBuilder) pair(t types.Type, rt reflect.Type) {
	t = types.Unalias(t)
	key := t.String()
	if b.paired[key] {
		return
	}
	b.paired[key] = true

	switch t := t.(type) {
	case *types.Named:
		if c := b.scalar(t); c != nil {
			if c.RType == nil {
				c.RType = rt
			}
			return
		}
		c, err := b.classOf(t)
		if err != nil {
			return
		}
		if t.TypeArgs().Len() > 0 {
			args := make([]typeref.Type, t.TypeArgs().Len())
			for i := range args {
				a, err := b.convert(t.TypeArgs().At(i), nil)
				if err != nil {
					return
				}
				args[i] = a
			}
			c.AddInstance(args, rt)
		} else if c.RType == nil {
			c.RType = rt
		}
		b.pairUnderlying(t.Underlying(), rt)

	case *types.Struct:
		if c, ok := b.universe.Lookup(t.String()); ok && c.RType == nil {
			c.RType = rt
		}
		b.pairUnderlying(t, rt)

	case *types.Interface:
		if c, ok := b.universe.Lookup(t.String()); ok && c.RType == nil {
			c.RType = rt
		}

	default:
		b.pairUnderlying(t, rt)
	}
}

func (b *sourceBuilder) pairUnderlying(t types.Type, rt reflect.Type) {
	switch t := t.(type) {
	case *types.Struct:
		if rt.Kind() != reflect.Struct || rt.NumField() != t.NumFields() {
			return
		}
		for i := 0; i < t.NumFields(); i++ {
			b.pair(t.Field(i).Type(), rt.Field(i).Type)
		}
	case *types.Pointer:
		if rt.Kind() == reflect.Pointer {
			b.pair(t.Elem(), rt.Elem())
		}
	case *types.Slice:
		if rt.Kind() == reflect.Slice {
			b.pair(t.Elem(), rt.Elem())
		}
	case *types.Array:
		if rt.Kind() == reflect.Array {
			b.pair(t.Elem(), rt.Elem())
		}
	case *types.Map:
		if rt.Kind() == reflect.Map {
			b.pair(t.Key(), rt.Key())
			b.pair(t.Elem(), rt.Elem())
		}
	}
}

func derefTypes(t types.Type) types.Type {
	if p, ok := types.Unalias(t).(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

func basicClass(t *types.Basic) *typeref.Class {
	switch t.Kind() {
	case types.Bool:
		return typeref.Basic(reflect.Bool)
	case types.String:
		return typeref.Basic(reflect.String)
	case types.Int:
		return typeref.Basic(reflect.Int)
	case types.Int8:
		return typeref.Basic(reflect.Int8)
	case types.Int16:
		return typeref.Basic(reflect.Int16)
	case types.Int32:
		return typeref.Basic(reflect.Int32)
	case types.Int64:
		return typeref.Basic(reflect.Int64)
	case types.Uint:
		return typeref.Basic(reflect.Uint)
	case types.Uint8:
		return typeref.Basic(reflect.Uint8)
	case types.Uint16:
		return typeref.Basic(reflect.Uint16)
	case types.Uint32:
		return typeref.Basic(reflect.Uint32)
	case types.Uint64:
		return typeref.Basic(reflect.Uint64)
	case types.Uintptr:
		return typeref.Basic(reflect.Uintptr)
	case types.Float32:
		return typeref.Basic(reflect.Float32)
	case types.Float64:
		return typeref.Basic(reflect.Float64)
	}
	return nil
}
