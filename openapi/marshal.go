package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Format selects the serialization of a document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Marshal serializes doc as indented JSON or as YAML.
func Marshal(doc *huma.OpenAPI, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return doc.YAML()
	default:
		return nil, fmt.Errorf("openapi: unknown format %q", format)
	}
}

// Handler serves doc as JSON, or as YAML when the request path ends in
// ".yaml".
func Handler(doc *huma.OpenAPI) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format, ct := FormatJSON, "application/json"
		if strings.HasSuffix(r.URL.Path, ".yaml") {
			format, ct = FormatYAML, "application/yaml"
		}
		b, err := Marshal(doc, format)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", ct)
		w.Write(b)
	})
}
