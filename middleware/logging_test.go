package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/broady/methodscan"
)

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testContext() methodscan.Context {
	return methodscan.NewContext(context.Background(), &methodscan.Endpoint{
		Name:    "orders.addOrder",
		Service: "orders",
		Method:  "AddOrder",
	})
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestLoggingInterceptor_Success(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingInterceptor(newLogger(&buf))

	res, err := interceptor(testContext(), "req", func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if err != nil || res != "ok" {
		t.Fatalf("interceptor() = %v, %v", res, err)
	}

	recs := records(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("got %d log records, want 2", len(recs))
	}
	if recs[0]["msg"] != "invocation started" || recs[0]["method"] != "AddOrder" {
		t.Errorf("first record = %v", recs[0])
	}
	if recs[1]["msg"] != "invocation completed" || recs[1]["endpoint"] != "orders.addOrder" {
		t.Errorf("second record = %v", recs[1])
	}
	if _, ok := recs[1]["duration"]; !ok {
		t.Error("duration not logged")
	}
}

func TestLoggingInterceptor_Errors(t *testing.T) {
	tests := []struct {
		err       error
		wantLevel string
		wantCode  string
	}{
		{errors.New("disk full"), "ERROR", "internal"},
		{methodscan.NewError(methodscan.CodeNotFound, "no such order"), "WARN", "not_found"},
		{&methodscan.InvocationError{Method: "orders.addOrder", Cause: methodscan.ErrInvalidArguments}, "WARN", "invalid_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			var buf bytes.Buffer
			interceptor := LoggingInterceptor(newLogger(&buf))
			_, err := interceptor(testContext(), nil, func(context.Context, any) (any, error) {
				return nil, tt.err
			})
			if err != tt.err {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
			recs := records(t, &buf)
			last := recs[len(recs)-1]
			if last["msg"] != "invocation failed" || last["level"] != tt.wantLevel || last["code"] != tt.wantCode {
				t.Errorf("record = %v", last)
			}
		})
	}
}

func TestLoggingInterceptor_NilLogger(t *testing.T) {
	interceptor := LoggingInterceptor(nil)
	res, err := interceptor(testContext(), nil, func(context.Context, any) (any, error) {
		return 1, nil
	})
	if err != nil || res != 1 {
		t.Errorf("interceptor() = %v, %v", res, err)
	}
}

func TestLoggingInterceptor_PassesContextAndRequest(t *testing.T) {
	type key struct{}
	ctx := methodscan.NewContext(context.WithValue(context.Background(), key{}, "v"), &methodscan.Endpoint{Name: "calc.sum"})
	interceptor := LoggingInterceptor(newLogger(&bytes.Buffer{}))

	req := &struct{ A int }{A: 3}
	_, err := interceptor(ctx, req, func(ctx context.Context, got any) (any, error) {
		if ctx.Value(key{}) != "v" {
			t.Error("context value lost")
		}
		if got != req {
			t.Error("request not passed through")
		}
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
