// Package gin mounts a methodscan App on a gin router.
package gin

import (
	"github.com/gin-gonic/gin"

	"github.com/broady/methodscan"
)

// Mount routes GET and POST requests for the app's path prefix to its
// invocation handler.
func Mount(r gin.IRoutes, app *methodscan.App) {
	h := gin.WrapH(app.Handler())
	r.GET(app.PathPrefix(), h)
	r.POST(app.PathPrefix(), h)
}
