package methodscan

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/broady/methodscan/provider"
)

// DefaultPathPrefix is the path the invocation handler serves by default.
const DefaultPathPrefix = "/swagger_scanner"

// App is the registry of exposed methods. Services are exposed during
// start-up; after that the registry is only read.
// Use Handler() to get an http.Handler for use with http.ListenAndServe.
type App struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	order     []string
	tags      []Tag
	tagIndex  map[string]int

	provider           provider.Provider
	pathPrefix         string
	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	interceptors       []UnaryInterceptor
	middlewares        []func(http.Handler) http.Handler
	logger             *slog.Logger
	maxRequestBodySize uint64
}

// NewApp returns an empty registry using the reflection provider.
func NewApp() *App {
	return &App{
		endpoints:          make(map[string]*Endpoint),
		tagIndex:           make(map[string]int),
		provider:           provider.NewReflection(),
		pathPrefix:         DefaultPathPrefix,
		maxRequestBodySize: 1 << 20, // 1MB default
	}
}

// WithProvider sets the provider used by Service.Expose. Use
// provider.NewSource to expose generic methods with declared signatures,
// parameter names and doc comments.
func (a *App) WithProvider(p provider.Provider) *App {
	a.provider = p
	return a
}

// WithPathPrefix sets the path of the invocation endpoint.
func (a *App) WithPathPrefix(prefix string) *App {
	a.pathPrefix = prefix
	return a
}

// PathPrefix returns the path of the invocation endpoint.
func (a *App) PathPrefix() string {
	return a.pathPrefix
}

// WithErrorTransformer adds a custom error transformer.
// It returns the app for chaining.
func (a *App) WithErrorTransformer(fn ErrorTransformer) *App {
	a.errorTransformer = fn
	return a
}

// WithMaskInternalErrors enables masking of internal error messages.
// The original error is still available to interceptors and logging.
func (a *App) WithMaskInternalErrors() *App {
	a.maskInternalErrors = true
	return a
}

// WithUnaryInterceptor adds a global interceptor.
// Global interceptors run before service interceptors. Within each level,
// interceptors execute in the order they were added.
func (a *App) WithUnaryInterceptor(i UnaryInterceptor) *App {
	a.interceptors = append(a.interceptors, i)
	return a
}

// WithMiddleware adds an HTTP middleware to wrap the app.
// Middleware is applied in the order added (first added is outermost).
func (a *App) WithMiddleware(mw func(http.Handler) http.Handler) *App {
	a.middlewares = append(a.middlewares, mw)
	return a
}

// WithLogger sets a custom logger for the app.
// If not set, slog.Default() will be used.
func (a *App) WithLogger(logger *slog.Logger) *App {
	a.logger = logger
	return a
}

// WithMaxRequestBodySize sets the maximum request body size.
// A value of 0 means no limit. Default is 1MB (1 << 20).
func (a *App) WithMaxRequestBodySize(size uint64) *App {
	a.maxRequestBodySize = size
	return a
}

func (a *App) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// Service returns a namespace for exposing values. Exposed names are
// prefixed with the service name.
func (a *App) Service(name string) *Service {
	return &Service{
		app:  a,
		name: name,
	}
}

// Lookup returns the endpoint with the given exposed name.
func (a *App) Lookup(name string) (*Endpoint, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ep, ok := a.endpoints[name]
	return ep, ok
}

// Endpoints returns all endpoints in registration order.
func (a *App) Endpoints() []*Endpoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Endpoint, len(a.order))
	for i, name := range a.order {
		out[i] = a.endpoints[name]
	}
	return out
}

// Entries describes every endpoint for documentation, in registration order.
func (a *App) Entries() []Entry {
	eps := a.Endpoints()
	out := make([]Entry, len(eps))
	for i, ep := range eps {
		out[i] = ep.entry(a.pathPrefix)
	}
	return out
}

// Tags returns the documentation tags in first-registration order.
func (a *App) Tags() []Tag {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Tag(nil), a.tags...)
}

// allocateName returns owner.name for the first endpoint with that name and
// owner.name(k) for the k-th. Must be called with a.mu held.
func (a *App) allocateName(owner, name string) string {
	base := owner + "." + name
	if _, taken := a.endpoints[base]; !taken {
		return base
	}
	for k := 2; ; k++ {
		candidate := base + "(" + strconv.Itoa(k) + ")"
		if _, taken := a.endpoints[candidate]; !taken {
			return candidate
		}
	}
}

// register names ep and adds it to the registry.
func (a *App) register(ep *Endpoint, tag Tag) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ep.Name = a.allocateName(ep.Service, ep.exposed)
	if ep.Name != ep.Service+"."+ep.exposed {
		a.log().Warn("duplicate exposed name",
			slog.String("service", ep.Service),
			slog.String("method", ep.Method),
			slog.String("endpoint", ep.Name))
	}
	a.endpoints[ep.Name] = ep
	a.order = append(a.order, ep.Name)

	if i, ok := a.tagIndex[tag.Name]; ok {
		if a.tags[i].Description == "" {
			a.tags[i].Description = tag.Description
		}
	} else {
		a.tagIndex[tag.Name] = len(a.tags)
		a.tags = append(a.tags, tag)
	}
}

// Service exposes values under a common name.
type Service struct {
	app          *App
	name         string
	interceptors []UnaryInterceptor
}

// WithUnaryInterceptor adds an interceptor to this service.
// Service interceptors execute after global interceptors.
func (s *Service) WithUnaryInterceptor(i UnaryInterceptor) *Service {
	s.interceptors = append(s.interceptors, i)
	return s
}

// Expose scans v and registers one endpoint per accepted exported method.
// A method that cannot be exposed fails the whole call unless it is
// filtered out by an option or an ignore directive.
func (s *Service) Expose(v any, opts ...ExposeOption) error {
	return s.ExposeContext(context.Background(), v, opts...)
}

// ExposeContext is like Expose with a context bounding the scan.
func (s *Service) ExposeContext(ctx context.Context, v any, opts ...ExposeOption) error {
	cfg := newExposeConfig(s.name)
	for _, opt := range opts {
		opt(cfg)
	}

	owner, err := s.app.provider.Scan(ctx, v)
	if err != nil {
		return fmt.Errorf("expose %s: %w", s.name, err)
	}

	logger := s.app.log()
	var eps []*Endpoint
	var tags []Tag
	for i := range owner.Methods {
		m := &owner.Methods[i]
		if !cfg.accepts(m) {
			logger.Debug("method skipped",
				slog.String("service", s.name),
				slog.String("method", m.Name))
			continue
		}
		if m.Err != nil {
			return fmt.Errorf("expose %s.%s: %w", s.name, m.Name, m.Err)
		}
		ep, err := newEndpoint(s.name, owner, m, cfg)
		if err != nil {
			return fmt.Errorf("expose %s.%s: %w", s.name, m.Name, err)
		}
		ep.interceptors = s.interceptors
		eps = append(eps, ep)
		tags = append(tags, cfg.tagFor(m))
	}

	// Register only after every method scanned, so a failed Expose leaves
	// the registry untouched.
	for i, ep := range eps {
		s.app.register(ep, tags[i])
		logger.Debug("method exposed",
			slog.String("endpoint", ep.Name),
			slog.String("parameters", ep.ParameterDoc))
	}
	logger.Info("service exposed",
		slog.String("service", s.name),
		slog.String("owner", owner.Name),
		slog.Int("methods", len(eps)))
	return nil
}

// MustExpose is like Expose but panics on error.
func (s *Service) MustExpose(v any, opts ...ExposeOption) {
	if err := s.Expose(v, opts...); err != nil {
		panic("methodscan: " + err.Error())
	}
}

// exposedName lowercases the first rune of a Go method name.
func exposedName(method string) string {
	r, size := utf8.DecodeRuneInString(method)
	return string(unicode.ToLower(r)) + method[size:]
}
