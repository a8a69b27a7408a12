package methodscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate = validator.New()
	timeType = reflect.TypeFor[time.Time]()
)

// Invoke calls the endpoint named name with a JSON object of named
// arguments. Missing arguments take their zero value; unknown keys are
// ignored. It returns the method's result, or nil for methods without one.
//
// Failures are ErrMethodNotFound or an *InvocationError.
func (a *App) Invoke(ctx context.Context, name string, body []byte) (any, error) {
	ep, ok := a.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, name)
	}
	req, err := ep.decode(body)
	if err != nil {
		return nil, &InvocationError{Method: name, Cause: err}
	}
	return a.call(newContext(ctx, ep, nil, nil), ep, req)
}

// decode unmarshals body into a fresh carrier. Erased fields keep numbers
// as json.Number so arguments decodes the literal the client sent.
func (ep *Endpoint) decode(body []byte) (reflect.Value, error) {
	req := ep.carrier.New()
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, req.Interface()); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	if len(ep.erased) == 0 {
		return req, nil
	}

	exact := ep.carrier.New()
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(exact.Interface()); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	for _, i := range ep.erased {
		req.Elem().Field(i).Set(exact.Elem().Field(i))
	}
	return req, nil
}

// call runs the interceptor chain around the method. Any failure, including
// a panic in the method, is returned as an *InvocationError.
func (a *App) call(ctx *rpcContext, ep *Endpoint, req reflect.Value) (res any, err error) {
	handler := func(c context.Context, r any) (any, error) {
		return ep.call(c, reflect.ValueOf(r))
	}

	interceptors := make([]UnaryInterceptor, 0, len(a.interceptors)+len(ep.interceptors))
	interceptors = append(interceptors, a.interceptors...)
	interceptors = append(interceptors, ep.interceptors...)

	defer func() {
		if rec := recover(); rec != nil {
			a.log().ErrorContext(ctx, "PANIC recovered",
				slog.String("endpoint", ep.Name),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			res, err = nil, &InvocationError{Method: ep.Name, Cause: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if chain := chainInterceptors(interceptors); chain != nil {
		res, err = chain(ctx, req.Interface(), handler)
	} else {
		res, err = handler(ctx, req.Interface())
	}
	if err != nil {
		if _, ok := err.(*InvocationError); !ok {
			err = &InvocationError{Method: ep.Name, Cause: err}
		}
	}
	return res, err
}

// call splits the carrier into positional arguments and calls the method.
func (ep *Endpoint) call(ctx context.Context, req reflect.Value) (any, error) {
	args, err := ep.arguments(req)
	if err != nil {
		return nil, err
	}
	for _, arg := range args {
		if err := validateArg(arg); err != nil {
			return nil, err
		}
	}

	in := make([]reflect.Value, 0, len(args)+1)
	if ep.TakesContext {
		in = append(in, reflect.ValueOf(ctx))
	}
	in = append(in, args...)
	out := ep.Func.Call(in)

	if ep.ReturnsError {
		if e := out[len(out)-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
	}
	if ep.ResultType == nil {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// arguments converts each carrier field to the method's parameter type at
// the same position. Fields whose type differs, such as erased generic
// arguments, are re-encoded and decoded into the parameter type.
func (ep *Endpoint) arguments(req reflect.Value) ([]reflect.Value, error) {
	if req.Kind() != reflect.Pointer || req.Elem().Type() != ep.Carrier {
		return nil, fmt.Errorf("%w: request is %s, want *%s", ErrInvalidArguments, req.Type(), ep.Carrier)
	}
	fields := req.Elem()
	args := make([]reflect.Value, len(ep.ParamTypes))
	for i, pt := range ep.ParamTypes {
		fv := fields.Field(i)
		if fv.Type() == pt {
			args[i] = fv
			continue
		}
		data, err := json.Marshal(fv.Interface())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArguments, ep.ParamNames[i], err)
		}
		arg := reflect.New(pt)
		if err := json.Unmarshal(data, arg.Interface()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArguments, ep.ParamNames[i], err)
		}
		args[i] = arg.Elem()
	}
	return args, nil
}

// validateArg applies validate tags to struct arguments, pointers to
// structs, and slices and maps of them.
func validateArg(v reflect.Value) error {
	t := v.Type()
	switch t.Kind() {
	case reflect.Struct:
		if t.ConvertibleTo(timeType) {
			return nil
		}
		return validate.Struct(v.Interface())
	case reflect.Pointer:
		if v.IsNil() || t.Elem().Kind() != reflect.Struct || t.Elem().ConvertibleTo(timeType) {
			return nil
		}
		return validate.Struct(v.Interface())
	case reflect.Slice, reflect.Array, reflect.Map:
		elem := t.Elem()
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			return nil
		}
		return validate.Var(v.Interface(), "dive")
	}
	return nil
}

// writeResult encodes a successful invocation.
func (a *App) writeResult(w http.ResponseWriter, res any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if err := encodeResponse(w, res); err != nil {
		a.log().Error("failed to encode response", slog.Any("error", err))
	}
}
