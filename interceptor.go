package methodscan

import (
	"context"
)

// HandlerFunc represents the next handler in an interceptor chain.
type HandlerFunc func(ctx context.Context, req any) (res any, err error)

// UnaryInterceptor wraps the invocation of an exposed method.
//
//	func timing(ctx methodscan.Context, req any, handler methodscan.HandlerFunc) (any, error) {
//	    start := time.Now()
//	    res, err := handler(ctx, req)
//	    log.Printf("%s took %v", ctx.EndpointID(), time.Since(start))
//	    return res, err
//	}
//
// req is a pointer to the method's carrier struct, decoded but not yet split
// into arguments, so an interceptor may inspect or modify it. res is the
// method's result, or nil for methods without one.
type UnaryInterceptor func(ctx Context, req any, handler HandlerFunc) (res any, err error)

// chainInterceptors combines multiple interceptors into a single one.
// The first interceptor in the slice is the outer-most one (runs first).
func chainInterceptors(interceptors []UnaryInterceptor) UnaryInterceptor {
	if len(interceptors) == 0 {
		return nil
	}
	if len(interceptors) == 1 {
		return interceptors[0]
	}
	return func(ctx Context, req any, handler HandlerFunc) (any, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current := interceptors[i]
			next := chain
			chain = func(c context.Context, req any) (any, error) {
				// Interceptors may pass on a wrapped context.
				mc, ok := FromContext(c)
				if !ok {
					mc = ctx
				}
				return current(mc, req, next)
			}
		}
		return chain(ctx, req)
	}
}
