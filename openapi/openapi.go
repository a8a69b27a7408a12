// Package openapi documents the endpoints of a methodscan App as an
// OpenAPI 3.1 document. Each endpoint becomes a POST operation on
// "<prefix>?<name>" whose request body is the endpoint's carrier.
package openapi

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/danielgtaylor/huma/v2"

	"github.com/broady/methodscan"
)

const (
	mediaType     = "application/json"
	schemasPrefix = "#/components/schemas/"
)

// ErrAmbiguousGroup is returned when no group is configured and more than
// one document exists.
var ErrAmbiguousGroup = errors.New("openapi: several documents and no group configured")

// ErrorBody is the documented shape of a failed invocation.
type ErrorBody struct {
	Error methodscan.Error `json:"error"`
}

// Info describes newly created documents.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Generator holds named OpenAPI documents ("groups") and adds an App's
// endpoints to the configured one.
type Generator struct {
	info  Info
	group string

	mu   sync.Mutex
	docs map[string]*huma.OpenAPI
}

// New returns a Generator that augments the document named group. With an
// empty group, the only document is augmented.
func New(info Info, group string) *Generator {
	return &Generator{info: info, group: group, docs: make(map[string]*huma.OpenAPI)}
}

// Document returns the document named group, creating it if needed.
func (g *Generator) Document(group string) *huma.OpenAPI {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.document(group)
}

func (g *Generator) document(group string) *huma.OpenAPI {
	if doc, ok := g.docs[group]; ok {
		return doc
	}
	title := g.info.Title
	if group != "" {
		title = strings.TrimSpace(title + " (" + group + ")")
	}
	doc := &huma.OpenAPI{
		OpenAPI: "3.1.0",
		Info: &huma.Info{
			Title:       title,
			Version:     g.info.Version,
			Description: g.info.Description,
		},
		Paths: map[string]*huma.PathItem{},
		Components: &huma.Components{
			Schemas: huma.NewMapRegistry(schemasPrefix, huma.DefaultSchemaNamer),
		},
	}
	g.docs[group] = doc
	return doc
}

// Groups returns the names of the documents in sorted order.
func (g *Generator) Groups() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	groups := make([]string, 0, len(g.docs))
	for name := range g.docs {
		groups = append(groups, name)
	}
	slices.Sort(groups)
	return groups
}

func (g *Generator) target() (*huma.OpenAPI, error) {
	if g.group != "" {
		return g.document(g.group), nil
	}
	switch len(g.docs) {
	case 0:
		return g.document(""), nil
	case 1:
		for _, doc := range g.docs {
			return doc, nil
		}
	}
	return nil, ErrAmbiguousGroup
}

// Augment adds the tags, operations and models of app to the configured
// document and returns it. Other documents are left untouched.
func (g *Generator) Augment(app *methodscan.App) (doc *huma.OpenAPI, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	doc, err = g.target()
	if err != nil {
		return nil, err
	}
	// The schema registry panics on types it cannot describe.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("openapi: %v", r)
		}
	}()

	for _, tag := range app.Tags() {
		addTag(doc, tag)
	}
	registry := doc.Components.Schemas
	for _, e := range app.Entries() {
		for _, m := range e.Models {
			registry.Schema(m, true, "")
		}
		doc.AddOperation(operation(registry, e))
	}
	return doc, nil
}

func addTag(doc *huma.OpenAPI, tag methodscan.Tag) {
	for _, t := range doc.Tags {
		if t.Name == tag.Name {
			if t.Description == "" {
				t.Description = tag.Description
			}
			return
		}
	}
	doc.Tags = append(doc.Tags, &huma.Tag{Name: tag.Name, Description: tag.Description})
}

func operation(registry huma.Registry, e methodscan.Entry) *huma.Operation {
	return &huma.Operation{
		OperationID: e.Name,
		Method:      http.MethodPost,
		Path:        e.Path,
		Summary:     e.Summary,
		Description: e.Notes,
		Tags:        []string{e.Tag},
		RequestBody: &huma.RequestBody{
			Description: pre(e.ParameterDoc),
			Content: map[string]*huma.MediaType{
				mediaType: {Schema: registry.Schema(e.ParameterModel, true, schemaHint(e.Name, "Request"))},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: responseDescription(e.ReturnDoc),
				Content: map[string]*huma.MediaType{
					mediaType: {Schema: resultSchema(registry, e)},
				},
			},
			"default": {
				Description: "Error",
				Content: map[string]*huma.MediaType{
					mediaType: {Schema: registry.Schema(reflect.TypeFor[ErrorBody](), true, "")},
				},
			},
		},
	}
}

func resultSchema(registry huma.Registry, e methodscan.Entry) *huma.Schema {
	result := &huma.Schema{}
	if e.ResponseModel != nil {
		result = registry.Schema(e.ResponseModel, true, schemaHint(e.Name, "Result"))
	} else {
		result.Type = "null"
	}
	return &huma.Schema{
		Type:       huma.TypeObject,
		Properties: map[string]*huma.Schema{"result": result},
	}
}

func responseDescription(returnDoc string) string {
	if returnDoc == "" {
		return http.StatusText(http.StatusOK)
	}
	return pre(returnDoc)
}

// pre renders signature text, which contains brackets, inside a <pre> block.
func pre(s string) string {
	if s == "" {
		return ""
	}
	return "<pre>" + html.EscapeString(s) + "</pre>"
}

// schemaHint names anonymous types after their endpoint: "orders.addOrder(2)"
// gives "OrdersAddOrder2Request".
func schemaHint(name, suffix string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		default:
			upper = true
		}
	}
	return b.String() + suffix
}
