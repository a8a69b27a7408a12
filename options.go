package methodscan

import (
	"slices"

	"github.com/broady/methodscan/provider"
)

// ExposeOption configures how Service.Expose treats an owner's methods.
type ExposeOption func(*exposeConfig)

type exposeConfig struct {
	tag            string
	tagDescription string
	accept         func(provider.Method) bool
	ignore         []string
	only           []string
	rename         map[string]string
	paramNames     map[string][]string
	summaries      map[string][2]string
	suffixes       map[string]string
}

func newExposeConfig(service string) *exposeConfig {
	return &exposeConfig{
		tag:        service,
		rename:     make(map[string]string),
		paramNames: make(map[string][]string),
		summaries:  make(map[string][2]string),
		suffixes:   make(map[string]string),
	}
}

// WithTag groups the owner's methods under a documentation tag. The default
// tag is the service name. A //methodscan:tag directive on a method wins.
func WithTag(name, description string) ExposeOption {
	return func(c *exposeConfig) {
		c.tag = name
		c.tagDescription = description
	}
}

// Accept exposes only methods for which fn returns true.
func Accept(fn func(provider.Method) bool) ExposeOption {
	return func(c *exposeConfig) {
		c.accept = fn
	}
}

// Only exposes just the named Go methods.
func Only(methods ...string) ExposeOption {
	return func(c *exposeConfig) {
		c.only = append(c.only, methods...)
	}
}

// Ignore skips the named Go methods.
func Ignore(methods ...string) ExposeOption {
	return func(c *exposeConfig) {
		c.ignore = append(c.ignore, methods...)
	}
}

// Rename sets the exposed name of a Go method. Several methods may share an
// exposed name; later ones are suffixed with their ordinal.
func Rename(method, exposed string) ExposeOption {
	return func(c *exposeConfig) {
		c.rename[method] = exposed
	}
}

// ParamNames names the parameters of a Go method. The reflection provider
// cannot see parameter names and falls back to arg0, arg1, ...
func ParamNames(method string, names ...string) ExposeOption {
	return func(c *exposeConfig) {
		c.paramNames[method] = names
	}
}

// Describe sets the documentation summary and notes of a Go method.
func Describe(method, summary, notes string) ExposeOption {
	return func(c *exposeConfig) {
		c.summaries[method] = [2]string{summary, notes}
	}
}

// Suffix appends #suffix to the documented path of a Go method. It tells
// apart entries in documentation tools and does not change the name used to
// invoke the method.
func Suffix(method, suffix string) ExposeOption {
	return func(c *exposeConfig) {
		c.suffixes[method] = suffix
	}
}

func (c *exposeConfig) accepts(m *provider.Method) bool {
	if m.Ignore || slices.Contains(c.ignore, m.Name) {
		return false
	}
	if len(c.only) > 0 && !slices.Contains(c.only, m.Name) {
		return false
	}
	return c.accept == nil || c.accept(*m)
}

func (c *exposeConfig) exposedName(m *provider.Method) string {
	if name, ok := c.rename[m.Name]; ok {
		return name
	}
	if m.Exposed != "" {
		return m.Exposed
	}
	return exposedName(m.Name)
}

func (c *exposeConfig) names(m *provider.Method) []string {
	if names, ok := c.paramNames[m.Name]; ok {
		return names
	}
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Name
	}
	return names
}

func (c *exposeConfig) docs(m *provider.Method) (summary, notes string) {
	if d, ok := c.summaries[m.Name]; ok {
		return d[0], d[1]
	}
	return m.Summary, m.Notes
}

func (c *exposeConfig) suffix(m *provider.Method) string {
	if s, ok := c.suffixes[m.Name]; ok {
		return s
	}
	return m.Suffix
}

func (c *exposeConfig) tagFor(m *provider.Method) Tag {
	if m.Tag != "" {
		return Tag{Name: m.Tag, Description: m.TagDescription}
	}
	return Tag{Name: c.tag, Description: c.tagDescription}
}
