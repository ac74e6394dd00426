package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"codesync-backend/internal/dto"
)

const (
	BackendPiston = "piston"
	BackendLocal  = "local"
)

var ErrUnsupportedLanguage = errors.New("execution: unsupported language")

type Request struct {
	Language string
	Version  string
	Source   string
	Stdin    string
}

// Backend runs source code. A program that fails to compile or exits
// non-zero is a successful Execute; errors mean the backend itself failed.
type Backend interface {
	Name() string
	Execute(ctx context.Context, req Request) (*dto.ExecuteResponse, error)
}

// BackendError is a backend failure. Body holds the raw backend payload when
// there was one.
type BackendError struct {
	Backend    string
	StatusCode int
	Body       string
	Err        error
}

func (e *BackendError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%s backend: status %d: %v", e.Backend, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
	default:
		return fmt.Sprintf("%s backend: status %d", e.Backend, e.StatusCode)
	}
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

type Route struct {
	Language string
	Backend  string
	Version  string
}

// Dispatcher picks a backend by language. It holds no retry or rate policy.
type Dispatcher struct {
	routes   map[string]Route
	fallback string
	backends map[string]Backend
}

// NewDispatcher fails when a route names a backend that was not supplied.
func NewDispatcher(routes Routes, backends ...Backend) (*Dispatcher, error) {
	d := &Dispatcher{
		routes:   make(map[string]Route, len(routes.Languages)),
		fallback: routes.Fallback,
		backends: make(map[string]Backend, len(backends)),
	}
	for _, b := range backends {
		d.backends[b.Name()] = b
	}

	for lang, rc := range routes.Languages {
		if _, ok := d.backends[rc.Backend]; !ok {
			return nil, fmt.Errorf("execution: language %q routed to unknown backend %q", lang, rc.Backend)
		}
		d.routes[lang] = Route{Language: lang, Backend: rc.Backend, Version: rc.Version}
	}
	if d.fallback != "" {
		if _, ok := d.backends[d.fallback]; !ok {
			return nil, fmt.Errorf("execution: fallback routed to unknown backend %q", d.fallback)
		}
	}
	return d, nil
}

func (d *Dispatcher) Resolve(language string) (Route, error) {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		return Route{}, ErrUnsupportedLanguage
	}
	if r, ok := d.routes[lang]; ok {
		return r, nil
	}
	if d.fallback != "" {
		return Route{Language: lang, Backend: d.fallback, Version: defaultVersion(d.fallback)}, nil
	}
	return Route{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
}

// Execute resolves the route and runs req on its backend. The route is
// returned even when the backend fails.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (*dto.ExecuteResponse, Route, error) {
	route, err := d.Resolve(req.Language)
	if err != nil {
		return nil, Route{}, err
	}

	req.Language = route.Language
	if req.Version == "" {
		req.Version = route.Version
	} else {
		route.Version = req.Version
	}

	res, err := d.backends[route.Backend].Execute(ctx, req)
	if err != nil {
		return nil, route, err
	}
	return res, route, nil
}

func (d *Dispatcher) Languages() []Route {
	out := make([]Route, 0, len(d.routes))
	for _, r := range d.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}
