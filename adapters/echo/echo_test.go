package echo

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/broady/methodscan"
	"github.com/broady/methodscan/testutil"
)

type calc struct{}

func (calc) Max(a, b int) int { return max(a, b) }

func TestMount(t *testing.T) {
	app := methodscan.NewApp().
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithPathPrefix("/rpc")
	app.Service("calc").MustExpose(calc{}, methodscan.ParamNames("Max", "a", "b"))

	e := echo.New()
	Mount(e, app)

	w := testutil.NewRequest().POST("/rpc").Invoke("calc.max").WithBody(`{"a":2,"b":7}`).Serve(e)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResult(t, w, 7)

	w = testutil.NewRequest().POST("/rpc").Invoke("calc.max").WithBody(`{"a":`).Serve(e)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
	testutil.AssertJSONError(t, w, "invalid_argument")
}

func TestMount_Group(t *testing.T) {
	app := methodscan.NewApp().
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithPathPrefix("/v1/rpc")
	app.Service("calc").MustExpose(calc{}, methodscan.ParamNames("Max", "a", "b"))

	e := echo.New()
	Mount(e.Group(""), app)

	w := testutil.NewRequest().GET("/v1/rpc").Invoke("calc.max").WithQuery("a", "4").WithQuery("b", "3").Serve(e)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResult(t, w, 4)
}
