package config

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/broady/methodscan"
	"github.com/broady/methodscan/middleware"
	"github.com/broady/methodscan/testutil"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.URLPattern != "/swagger_scanner" || cfg.Listen != ":8080" || cfg.LogLevel != "info" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "methodscan.yaml",
			content: `
url_pattern: /rpc
docs_group: internal
listen: localhost:9090
max_request_body_size: 4096
mask_internal_errors: true
log_format: json
source_packages: true
cors:
  allow_origins: [https://shop.example]
  max_age: 60
`,
		},
		{
			name: "toml",
			file: "methodscan.toml",
			content: `
url_pattern = "/rpc"
docs_group = "internal"
listen = "localhost:9090"
max_request_body_size = 4096
mask_internal_errors = true
log_format = "json"
source_packages = true

[cors]
allow_origins = ["https://shop.example"]
max_age = 60
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.URLPattern != "/rpc" || cfg.DocsGroup != "internal" || cfg.Listen != "localhost:9090" {
				t.Errorf("cfg = %+v", cfg)
			}
			if cfg.MaxRequestBodySize != 4096 || !cfg.MaskInternalErrors || !cfg.SourcePackages || cfg.LogFormat != "json" {
				t.Errorf("cfg = %+v", cfg)
			}
			if cfg.CORS == nil || cfg.CORS.MaxAge != 60 || len(cfg.CORS.AllowOrigins) != 1 {
				t.Errorf("cors = %+v", cfg.CORS)
			}
			// Unset keys keep their defaults.
			if cfg.Title != "methodscan" || cfg.LogLevel != "info" {
				t.Errorf("defaults lost: %+v", cfg)
			}
		})
	}
}

func TestLoad_Env(t *testing.T) {
	path := writeFile(t, "methodscan.yml", "listen: \":7000\"\ntitle: Shop\n")
	t.Setenv("METHODSCAN_LISTEN", ":7001")
	t.Setenv("METHODSCAN_MASK_INTERNAL_ERRORS", "true")
	t.Setenv("METHODSCAN_MAX_REQUEST_BODY_SIZE", "10")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":7001" || cfg.Title != "Shop" || !cfg.MaskInternalErrors || cfg.MaxRequestBodySize != 10 {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("METHODSCAN_SOURCE_PACKAGES", "maybe")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "METHODSCAN_SOURCE_PACKAGES") {
		t.Errorf("Load() error = %v, want bad bool", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.yaml"), "no such file"},
		{"unknown format", writeFile(t, "methodscan.ini", "x=1"), "unsupported config format"},
		{"bad yaml", writeFile(t, "bad.yaml", "listen: [:8080"), "parse"},
		{"invalid level", writeFile(t, "level.yaml", "log_level: loud"), `log_level: failed "oneof"`},
		{"invalid pattern", writeFile(t, "pattern.toml", `url_pattern = "rpc"`), `url_pattern: failed "startswith"`},
		{"invalid listen", writeFile(t, "listen.yaml", "listen: nowhere"), `listen: failed "hostname_port"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("log output = %s", out)
	}
}

type echoService struct{}

func (echoService) Echo(s string) string { return s }

func TestNewApp(t *testing.T) {
	cfg := Default()
	cfg.URLPattern = "/rpc"
	cfg.MaskInternalErrors = true
	cfg.CORS = &middleware.CORSConfig{}

	app := cfg.NewApp(cfg.Logger(io.Discard))
	app.Service("echo").MustExpose(echoService{}, methodscan.ParamNames("Echo", "s"))

	if app.PathPrefix() != "/rpc" {
		t.Errorf("PathPrefix() = %q", app.PathPrefix())
	}
	w := testutil.NewRequest().
		POST("/rpc").
		Invoke("echo.echo").
		WithHeader("Origin", "https://shop.example").
		WithBody(`{"s":"hi"}`).
		Serve(app.Handler())
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResult(t, w, "hi")
	testutil.AssertHeader(t, w, "Access-Control-Allow-Origin", "*")
}
