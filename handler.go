package methodscan

import (
	"encoding"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"runtime/debug"
	"strings"

	"github.com/gorilla/schema"
)

var schemaDecoder = schema.NewDecoder()

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
}

// Handler returns an http.Handler serving the invocation endpoint at the
// app's path prefix. The returned handler includes all configured middleware.
//
// The method name is the first query key:
//
//	POST /swagger_scanner?orders.addOrder
//	{"id": "X", "lines": [{"sku": "A", "qty": 2}]}
//
// GET requests take the arguments from the remaining query parameters.
func (a *App) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(a.serveHTTP)
	// Apply middleware in reverse order so first added is outermost
	for i := len(a.middlewares) - 1; i >= 0; i-- {
		h = a.middlewares[i](h)
	}
	return h
}

func (a *App) serveHTTP(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			a.log().Error("PANIC recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			writeError(w, a.transformError(fmt.Errorf("panic: %v", rec)), a.logger)
		}
	}()

	if strings.TrimSuffix(req.URL.Path, "/") != strings.TrimSuffix(a.pathPrefix, "/") {
		writeError(w, NewError(CodeNotFound, "route not found"), a.logger)
		return
	}
	if req.Method != http.MethodPost && req.Method != http.MethodGet {
		writeError(w, Errorf(CodeMethodNotAllowed, "method %s not allowed, expected POST or GET", req.Method), a.logger)
		return
	}

	name, err := methodName(req.URL.RawQuery)
	if err != nil {
		writeError(w, NewError(CodeInvalidArgument, err.Error()), a.logger)
		return
	}
	ep, ok := a.Lookup(name)
	if !ok {
		writeError(w, a.transformError(fmt.Errorf("%w: %s", ErrMethodNotFound, name)), a.logger)
		return
	}

	ctx := newContext(req.Context(), ep, w, req)
	fields, err := a.decodeRequest(ep, w, req, name)
	if err != nil {
		a.log().DebugContext(ctx, "request decode failed",
			slog.String("endpoint", ep.Name),
			slog.Any("error", err))
		writeError(w, a.transformError(&InvocationError{Method: ep.Name, Cause: err}), a.logger)
		return
	}

	res, err := a.call(ctx, ep, fields)
	if err != nil {
		svcErr := a.transformError(err)
		if svcErr.Code == CodeInternal {
			a.log().ErrorContext(ctx, "invocation failed",
				slog.String("endpoint", ep.Name),
				slog.Any("error", err))
		}
		writeError(w, svcErr, a.logger)
		return
	}
	a.writeResult(w, res)
}

func (a *App) decodeRequest(ep *Endpoint, w http.ResponseWriter, req *http.Request, name string) (fields reflect.Value, err error) {
	if req.Method == http.MethodGet {
		if !ep.queryable {
			return fields, Errorf(CodeInvalidArgument, "%s takes structured arguments, send them as a JSON body with POST", ep.Name)
		}
		fields = ep.carrier.New()
		values := req.URL.Query()
		delete(values, name)
		if err := schemaDecoder.Decode(fields.Interface(), values); err != nil {
			return fields, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
		}
		return fields, nil
	}

	body := req.Body
	if body == nil {
		return ep.decode(nil)
	}
	if a.maxRequestBodySize > 0 {
		body = http.MaxBytesReader(w, body, int64(a.maxRequestBodySize))
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fields, Errorf(CodeResourceExhausted, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return fields, fmt.Errorf("%w: read body: %w", ErrInvalidArguments, err)
	}
	return ep.decode(data)
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// queryable reports whether gorilla/schema can fill every field of a
// carrier from query values: scalars, text unmarshalers, pointers to them,
// and slices of them.
func queryable(carrier reflect.Type) bool {
	for i := 0; i < carrier.NumField(); i++ {
		f := carrier.Field(i)
		if f.Tag.Get("schema") == "-" {
			continue
		}
		t := f.Type
		if t.Kind() == reflect.Slice {
			t = t.Elem()
		}
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if reflect.PointerTo(t).Implements(textUnmarshalerType) {
			continue
		}
		switch t.Kind() {
		case reflect.Bool, reflect.String,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			continue
		}
		return false
	}
	return true
}

// methodName returns the first key of a raw query string.
func methodName(rawQuery string) (string, error) {
	first, _, _ := strings.Cut(rawQuery, "&")
	key, _, _ := strings.Cut(first, "=")
	name, err := url.QueryUnescape(key)
	if err != nil {
		return "", fmt.Errorf("malformed method name: %w", err)
	}
	if name == "" {
		return "", errors.New("missing method name: expected ?<service>.<method>")
	}
	return name, nil
}
