package methodscan

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/broady/methodscan/internal/testfixtures"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type calc struct{}

func (calc) Sum(a, b int) int { return a + b }
func (calc) Max(a, b int) int { return max(a, b) }

func (calc) Div(a, b int) (int, error) {
	if b == 0 {
		return 0, NewError(CodeInvalidArgument, "division by zero")
	}
	return a / b, nil
}

func (calc) Fail() error { return errors.New("connection refused by 10.0.0.7") }
func (calc) Boom() { panic("boom") }

// point is unexported, so carriers erase it to any.
type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (calc) Manhattan(p point) int { return p.X + p.Y }

// recorder keeps the arguments of its last call.
type recorder struct {
	got []any
}

func (r *recorder) AddOrder(id testfixtures.OrderID, lines []testfixtures.OrderLine) {
	r.got = []any{id, lines}
}

func (r *recorder) AddLine(line testfixtures.OrderLine) testfixtures.OrderLine {
	r.got = []any{line}
	return line
}

func newCalcApp(t *testing.T) *App {
	t.Helper()
	app := NewApp().WithLogger(discardLogger())
	err := app.Service("calc").Expose(calc{},
		ParamNames("Sum", "a", "b"),
		ParamNames("Max", "a", "b"),
		ParamNames("Div", "a", "b"),
		ParamNames("Manhattan", "p"),
	)
	if err != nil {
		t.Fatalf("Expose() error = %v", err)
	}
	return app
}

func newRecorderApp(t *testing.T) (*App, *recorder) {
	t.Helper()
	rec := &recorder{}
	app := NewApp().WithLogger(discardLogger())
	err := app.Service("orders").Expose(rec,
		ParamNames("AddOrder", "id", "lines"),
		ParamNames("AddLine", "line"),
	)
	if err != nil {
		t.Fatalf("Expose() error = %v", err)
	}
	return app, rec
}
