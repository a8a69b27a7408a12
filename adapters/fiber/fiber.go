// Package fiber mounts a methodscan App on a fiber router.
package fiber

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/broady/methodscan"
)

// Mount routes GET and POST requests for the app's path prefix to its
// invocation handler.
func Mount(r fiber.Router, app *methodscan.App) {
	h := adaptor.HTTPHandler(app.Handler())
	r.Get(app.PathPrefix(), h)
	r.Post(app.PathPrefix(), h)
}
