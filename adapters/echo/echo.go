// Package echo mounts a methodscan App on an echo server.
package echo

import (
	"github.com/labstack/echo/v4"

	"github.com/broady/methodscan"
)

// Router is implemented by *echo.Echo and *echo.Group.
type Router interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// Mount routes GET and POST requests for the app's path prefix to its
// invocation handler.
func Mount(r Router, app *methodscan.App) {
	h := echo.WrapHandler(app.Handler())
	r.GET(app.PathPrefix(), h)
	r.POST(app.PathPrefix(), h)
}
