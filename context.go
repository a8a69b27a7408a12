package methodscan

import (
	"context"
	"net/http"
)

// Context carries metadata about the invocation in progress. It is passed
// to interceptors and, when a method takes a context.Context, to the method.
type Context interface {
	context.Context

	// Service is the name of the service the endpoint was exposed under.
	Service() string

	// Method is the Go name of the method being called.
	Method() string

	// EndpointID is the disambiguated exposed name, such as "orders.addOrder".
	EndpointID() string

	// HTTPRequest returns the request, or nil for direct invocations.
	HTTPRequest() *http.Request

	// HTTPWriter returns the response writer, or nil for direct invocations.
	HTTPWriter() http.ResponseWriter
}

type contextKey struct {
	name string
}

var rpcContextKey = &contextKey{"methodscan"}

type rpcContext struct {
	context.Context
	endpoint *Endpoint
	request  *http.Request
	writer   http.ResponseWriter
}

func (c *rpcContext) Service() string                 { return c.endpoint.Service }
func (c *rpcContext) Method() string                  { return c.endpoint.Method }
func (c *rpcContext) EndpointID() string              { return c.endpoint.Name }
func (c *rpcContext) HTTPRequest() *http.Request      { return c.request }
func (c *rpcContext) HTTPWriter() http.ResponseWriter { return c.writer }

func newContext(parent context.Context, ep *Endpoint, w http.ResponseWriter, r *http.Request) *rpcContext {
	c := &rpcContext{endpoint: ep, request: r, writer: w}
	c.Context = context.WithValue(parent, rpcContextKey, c)
	return c
}

// FromContext returns the invocation Context stored in ctx. It finds the
// Context even after interceptors or methods wrap ctx; the returned Context
// then carries ctx's values and deadline.
func FromContext(ctx context.Context) (Context, bool) {
	if c, ok := ctx.(Context); ok {
		return c, true
	}
	rc, ok := ctx.Value(rpcContextKey).(*rpcContext)
	if !ok {
		return nil, false
	}
	cp := *rc
	cp.Context = ctx
	return &cp, true
}

// RequestFromContext returns the HTTP request from the context.
func RequestFromContext(ctx context.Context) *http.Request {
	if c, ok := FromContext(ctx); ok {
		return c.HTTPRequest()
	}
	return nil
}

// SetHeader sets an HTTP response header. It does nothing outside an HTTP
// invocation.
func SetHeader(ctx context.Context, key, value string) {
	if c, ok := FromContext(ctx); ok && c.HTTPWriter() != nil {
		c.HTTPWriter().Header().Set(key, value)
	}
}

// EndpointFromContext returns the exposed name of the current invocation.
func EndpointFromContext(ctx context.Context) (string, bool) {
	if c, ok := FromContext(ctx); ok {
		return c.EndpointID(), true
	}
	return "", false
}

// NewContext returns a Context for invoking ep outside an HTTP request.
// It is mostly useful for testing interceptors.
func NewContext(parent context.Context, ep *Endpoint) Context {
	return newContext(parent, ep, nil, nil)
}
