package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/broady/methodscan/openapi"
	"github.com/broady/methodscan/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cli := &CLI{}
	parser, err := newParser(cli, &out, func(int) {})
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	err = ctx.Run(&cli.Globals)
	return out.String(), err
}

func TestVersionFrom(t *testing.T) {
	tests := []struct {
		name string
		info *debug.BuildInfo
		want string
	}{
		{"no build info", nil, "0.1.0"},
		{"installed", &debug.BuildInfo{Main: debug.Module{Version: "v0.1.0"}}, "v0.1.0"},
		{"devel", &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, "devel-0.1.0"},
		{"devel with revision", &debug.BuildInfo{
			Main:     debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abcdef123456"}},
		}, "devel-0.1.0+abcdef1"},
	}
	for _, tt := range tests {
		if got := versionFrom("0.1.0", tt.info); got != tt.want {
			t.Errorf("%s: versionFrom() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || strings.TrimSpace(out) == "" {
		t.Errorf("version = %q, %v", out, err)
	}
}

func TestListCmd(t *testing.T) {
	out, err := run(t, "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"NAME", "orders.place", "customer string, lines []orders.Line", "products.add"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestInvokeCmd(t *testing.T) {
	out, err := run(t, "invoke", "products.list", `{"limit":5}`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"result": {`) || !strings.Contains(out, `"total": 0`) {
		t.Errorf("invoke output:\n%s", out)
	}

	out, err = run(t, "invoke", "orders.get", `{"id":"o-1"}`)
	if err == nil {
		t.Error("invoke of a missing order should fail")
	}
	if !strings.Contains(out, `"code": "not_found"`) {
		t.Errorf("invoke error output:\n%s", out)
	}
}

func TestDocCmd(t *testing.T) {
	out, err := run(t, "doc", "--format", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"openapi: 3.1.0", "/swagger_scanner?orders.place"} {
		if !strings.Contains(out, want) {
			t.Errorf("doc output missing %q", want)
		}
	}
}

func TestServeCmd_Handler(t *testing.T) {
	g := &Globals{}
	e, err := g.load(&bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	docs, err := e.document()
	if err != nil {
		t.Fatal(err)
	}
	doc := openapi.Handler(docs.Document(""))

	for _, framework := range []string{"std", "gin", "echo"} {
		t.Run(framework, func(t *testing.T) {
			h := (&ServeCmd{Framework: framework}).handler(e.app, doc)

			w := testutil.NewRequest().POST("/swagger_scanner").Invoke("products.list").Serve(h)
			testutil.AssertStatus(t, w, http.StatusOK)

			w = testutil.NewRequest().GET("/openapi.json").Serve(h)
			testutil.AssertStatus(t, w, http.StatusOK)
			if !strings.Contains(w.Body.String(), "orders.place") {
				t.Error("OpenAPI document does not list orders.place")
			}
		})
	}
}

func TestShutdownOnDone(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotDeadline bool
	shutdownOnDone(ctx, logger, func(ctx context.Context) error {
		_, gotDeadline = ctx.Deadline()
		return errors.New("listener busy")
	})
	if !gotDeadline {
		t.Error("shutdown context has no deadline")
	}
	if out := buf.String(); !strings.Contains(out, "shutdown failed") || !strings.Contains(out, "listener busy") {
		t.Errorf("log output = %q", out)
	}
}
