// Package functions routes HTTP requests to serverless function modules.
package functions

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZacxDev/pagesgen/module"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 20

var methods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// RoutePath turns a function slug into an httprouter path: "[id]" segments
// become ":id" and a trailing "[...rest]" becomes "*rest".
func RoutePath(slug string) string {
	segments := strings.Split(strings.Trim(slug, "/"), "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, "[") || !strings.HasSuffix(seg, "]") {
			continue
		}
		name := seg[1 : len(seg)-1]
		if strings.HasPrefix(name, "...") {
			segments[i] = "*" + strings.TrimPrefix(name, "...")
		} else {
			segments[i] = ":" + name
		}
	}
	return "/" + strings.Join(segments, "/")
}

type Router struct {
	router *httprouter.Router
	routes map[string]*module.Internal
}

// NewRouter registers every function for the common HTTP methods. Routes
// that httprouter cannot tell apart are reported as an error.
func NewRouter(c *module.Collection) (r *Router, err error) {
	r = &Router{router: httprouter.New(), routes: map[string]*module.Internal{}}
	r.router.HandleMethodNotAllowed = false

	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = errors.Errorf("conflicting function routes: %v", rec)
		}
	}()

	for _, m := range c.All() {
		route := RoutePath(m.Slug)
		r.routes[route] = m
		handle := r.handle(m)
		for _, method := range methods {
			r.router.Handle(method, route, handle)
		}
		output.Debug("registered function", "slug", m.Slug, "route", route)
	}

	return r, nil
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Lookup reports whether a function serves method and path, without
// running it.
func (r *Router) Lookup(method, path string) bool {
	handle, _, _ := r.router.Lookup(method, path)
	return handle != nil
}

// Routes returns the registered route -> function table.
func (r *Router) Routes() map[string]*module.Internal {
	return r.routes
}

func (r *Router) handle(m *module.Internal) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "error reading request body", http.StatusBadRequest)
			return
		}

		freq := module.FunctionRequest{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  map[string]string{},
			Params: map[string]string{},
			Body:   string(body),
		}
		for key, values := range req.URL.Query() {
			if len(values) > 0 {
				freq.Query[key] = values[0]
			}
		}
		for _, p := range ps {
			freq.Params[p.Key] = strings.TrimPrefix(p.Value, "/")
		}

		resp, err := m.Handler(req.Context(), freq)
		if err != nil {
			output.Error("function failed", "slug", m.Slug, "err", err)
			http.Error(w, fmt.Sprintf("Error running function %s: %v", m.Slug, err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", resp.ContentType)
		w.WriteHeader(resp.Status)
		if req.Method != http.MethodHead {
			_, _ = w.Write([]byte(resp.Body))
		}
	}
}

// Entry is one function in functions.json.
type Entry struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Route string `json:"route"`
	Path  string `json:"path"`
}

type Manifest struct {
	Functions []Entry `json:"functions"`
}

// BuildManifest describes every function. Paths are made relative to base.
func BuildManifest(c *module.Collection, base string) *Manifest {
	m := &Manifest{Functions: []Entry{}}
	for _, fn := range c.All() {
		path := fn.Path
		if rel, err := filepath.Rel(base, fn.Path); err == nil {
			path = filepath.ToSlash(rel)
		}
		m.Functions = append(m.Functions, Entry{
			Name:  fn.Config.Name,
			Slug:  fn.Slug,
			Route: RoutePath(fn.Slug),
			Path:  path,
		})
	}
	return m
}

func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0644))
}
