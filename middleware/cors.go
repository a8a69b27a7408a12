package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures CORS for the scanner endpoint. The zero value
// allows any origin to call GET and POST with a JSON body.
type CORSConfig struct {
	AllowOrigins     []string `yaml:"allow_origins" toml:"allow_origins"`
	AllowHeaders     []string `yaml:"allow_headers" toml:"allow_headers"`
	ExposeHeaders    []string `yaml:"expose_headers" toml:"expose_headers"`
	AllowCredentials bool     `yaml:"allow_credentials" toml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age" toml:"max_age" validate:"gte=0"`
}

var (
	corsMethods        = "GET, POST, OPTIONS"
	defaultCORSHeaders = []string{"Content-Type", "Authorization"}
)

// CORS returns HTTP middleware that answers preflight requests and sets
// the Access-Control headers on every response from an allowed origin.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wildcard := slices.Contains(origins, "*")
	headers := cfg.AllowHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	allowHeaders := strings.Join(headers, ", ")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			switch {
			case origin != "" && (cfg.AllowCredentials || !wildcard) && (wildcard || slices.Contains(origins, origin)):
				// "*" is not allowed together with credentials.
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			}
			if h.Get("Access-Control-Allow-Origin") != "" {
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if exposeHeaders != "" {
					h.Set("Access-Control-Expose-Headers", exposeHeaders)
				}
			}

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
