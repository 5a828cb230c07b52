// Package handlers is the development server: pages are rendered from
// source on every request, client bundles are built in memory and browsers
// reload when a source file changes.
package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZacxDev/pagesgen/config"
	"github.com/ZacxDev/pagesgen/content"
	"github.com/ZacxDev/pagesgen/discovery"
	"github.com/ZacxDev/pagesgen/functions"
	"github.com/ZacxDev/pagesgen/javascript"
	"github.com/ZacxDev/pagesgen/loader"
	"github.com/ZacxDev/pagesgen/module"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/ZacxDev/pagesgen/render"
	"github.com/gobuffalo/plush"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

const (
	hydratePrefix = "/assets/hydrate/"
	modulesPrefix = "/assets/modules/"
)

type Options struct {
	LiveReload bool
}

type Server struct {
	structure  *config.Structure
	dev        *loader.DevLoader
	resolver   *render.DevResolver
	documents  content.Fetcher
	components *render.PlushComponents
	reload     *ReloadHub
	opts       Options
}

// NewServer serves the project described by s. documents may be nil, in
// which case only static templates render.
func NewServer(s *config.Structure, documents content.Fetcher, opts Options) *Server {
	dev := loader.NewDevLoader()
	return &Server{
		structure:  s,
		dev:        dev,
		resolver:   &render.DevResolver{Structure: s, Loader: dev},
		documents:  documents,
		components: render.NewPlushComponents(s.ComponentsRoot().GetAbsolutePath()),
		reload:     NewReloadHub(),
		opts:       opts,
	}
}

func (srv *Server) Hub() *ReloadHub {
	return srv.reload
}

func (srv *Server) SetupRouter() *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(Custom404Handler)

	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(srv.structure.Static().GetAbsolutePath()))))
	if srv.opts.LiveReload {
		router.Handle(LiveReloadPath, srv.reload)
	}

	router.HandleFunc(hydratePrefix+"{feature}.js", srv.hydrationBundle).Methods(http.MethodGet)
	router.HandleFunc(modulesPrefix+"{name}.js", srv.moduleBundle).Methods(http.MethodGet)
	router.HandleFunc("/modules/{name}", srv.modulePage).Methods(http.MethodGet)

	// Functions take precedence over feature pages with the same path.
	router.MatcherFunc(srv.matchFunction).HandlerFunc(srv.function)

	router.HandleFunc("/", srv.index).Methods(http.MethodGet)
	router.HandleFunc("/{feature}", srv.page).Methods(http.MethodGet)
	router.HandleFunc("/{feature}/{entityId}", srv.page).Methods(http.MethodGet)

	return router
}

// Watch invalidates the dev loader when sources change and, with live
// reload on, reloads every connected browser.
func (srv *Server) Watch(ctx context.Context) (*loader.Watcher, error) {
	dirs := []string{
		srv.structure.Source().GetAbsolutePath(),
		srv.structure.Static().GetAbsolutePath(),
	}
	return loader.Watch(ctx, dirs, srv.dev, func(paths []string) {
		output.Info("source changed", "files", len(paths))
		if srv.opts.LiveReload {
			srv.reload.Broadcast(ctx)
		}
	})
}

func (srv *Server) orchestrator() (*render.Orchestrator, error) {
	o := &render.Orchestrator{
		Resolver:   srv.resolver,
		Documents:  srv.documents,
		Components: srv.components,
		Mode:       module.Development,
	}
	if layout, ok := srv.structure.Layout(); ok {
		l, err := render.LoadLayout(layout.GetAbsolutePath())
		if err != nil {
			return nil, err
		}
		o.Layout = l
	}
	return o, nil
}

// clientBundle points hydration at the dev bundle endpoint when m's
// component has a client entry.
func (srv *Server) clientBundle(m *module.Internal, prefix string) render.ClientFunc {
	return func(name string) (string, bool) {
		if m.Default == nil {
			return "", false
		}
		if _, ok := javascript.ClientEntry(srv.structure.ComponentsRoot().GetAbsolutePath(), m.Default.Name); !ok {
			return "", false
		}
		return prefix + name + ".js", true
	}
}

func (srv *Server) page(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx := r.Context()

	tpl, err := srv.resolver.ResolveTemplate(ctx, vars["feature"])
	if err != nil {
		srv.failure(w, r, err)
		return
	}

	entityID := vars["entityId"]
	if entityID == "" && !tpl.IsStatic() {
		notFound(w, r, "Template "+tpl.Config.Name+" renders one page per entity. Open /"+tpl.Config.Name+"/{entityId}?locale={locale}.")
		return
	}

	o, err := srv.orchestrator()
	if err != nil {
		errorPage(w, r, err)
		return
	}
	o.Hydration = srv.clientBundle(tpl, hydratePrefix)

	locale := r.URL.Query().Get("locale")
	if locale == "" {
		locale = defaultLocale(tpl)
	}

	doc, err := o.FetchDocument(ctx, tpl, entityID, locale)
	if err != nil {
		srv.failure(w, r, err)
		return
	}

	page, err := o.RenderPage(ctx, tpl, doc)
	if err != nil {
		srv.failure(w, r, err)
		return
	}
	srv.writeHTML(w, page.HTML)
}

// defaultLocale is the stream's first declared locale, or "en".
func defaultLocale(tpl *module.Internal) string {
	if s := tpl.Config.Stream; s != nil && len(s.Localization.Locales) > 0 {
		return s.Localization.Locales[0]
	}
	return "en"
}

func (srv *Server) modulePage(w http.ResponseWriter, r *http.Request) {
	m, err := srv.findModule(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		srv.failure(w, r, err)
		return
	}

	o, err := srv.orchestrator()
	if err != nil {
		errorPage(w, r, err)
		return
	}
	o.ModuleHydration = srv.clientBundle(m, modulesPrefix)

	page, err := o.RenderModule(r.Context(), m)
	if err != nil {
		srv.failure(w, r, err)
		return
	}
	srv.writeHTML(w, page.HTML)
}

func (srv *Server) findModule(ctx context.Context, name string) (*module.Internal, error) {
	modules, err := loader.Modules(ctx, srv.dev, srv.structure)
	if err != nil {
		return nil, err
	}
	m, ok := modules.Find(name)
	if !ok {
		return nil, errors.Wrapf(render.ErrTemplateNotFound, "no module named %q", name)
	}
	return m, nil
}

func (srv *Server) hydrationBundle(w http.ResponseWriter, r *http.Request) {
	tpl, err := srv.resolver.ResolveTemplate(r.Context(), mux.Vars(r)["feature"])
	if err != nil {
		srv.failure(w, r, err)
		return
	}
	srv.serveBundle(w, r, tpl)
}

func (srv *Server) moduleBundle(w http.ResponseWriter, r *http.Request) {
	m, err := srv.findModule(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		srv.failure(w, r, err)
		return
	}
	srv.serveBundle(w, r, m)
}

func (srv *Server) serveBundle(w http.ResponseWriter, r *http.Request, m *module.Internal) {
	if m.Default == nil {
		notFound(w, r, m.Filename+" has no component to hydrate.")
		return
	}
	entry, ok := javascript.ClientEntry(srv.structure.ComponentsRoot().GetAbsolutePath(), m.Default.Name)
	if !ok {
		notFound(w, r, "Component "+m.Default.Name+" has no client entry.")
		return
	}

	js, err := javascript.BuildInMemory(entry, false)
	if err != nil {
		output.Error("bundling failed", "entry", entry, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(js)
}

func (srv *Server) functionRouter(ctx context.Context) (*functions.Router, error) {
	c, err := loader.Functions(ctx, srv.dev, srv.structure)
	if err != nil {
		return nil, err
	}
	return functions.NewRouter(c)
}

func (srv *Server) matchFunction(r *http.Request, _ *mux.RouteMatch) bool {
	fr, err := srv.functionRouter(r.Context())
	if err != nil {
		// The function handler reloads and shows the error page.
		if srv.underFunctions(r.URL.Path) {
			return true
		}
		output.Warn("functions unavailable", "err", err)
		return false
	}
	return fr.Lookup(r.Method, r.URL.Path)
}

// underFunctions reports whether urlPath starts with a top-level entry of
// the functions root. It only discovers files, so it works while a function
// fails to load.
func (srv *Server) underFunctions(urlPath string) bool {
	root := srv.structure.FunctionsRoot().GetAbsolutePath()
	paths, err := discovery.Discover([]string{root}, discovery.FunctionExtensions, discovery.Recursive)
	if err != nil {
		return false
	}

	first := strings.SplitN(strings.TrimPrefix(urlPath, "/"), "/", 2)[0]
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			continue
		}
		parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
		top := parts[0]
		if len(parts) == 1 {
			top = module.NameFromFilename(top, false)
		}
		if strings.HasPrefix(top, "[") || top == first {
			return true
		}
	}
	return false
}

func (srv *Server) function(w http.ResponseWriter, r *http.Request) {
	fr, err := srv.functionRouter(r.Context())
	if err != nil {
		errorPage(w, r, err)
		return
	}
	fr.ServeHTTP(w, r)
}

type indexEntry struct {
	Name     string
	StreamID string
}

func (srv *Server) index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	templates, err := srv.resolver.Templates(ctx)
	if err != nil {
		errorPage(w, r, err)
		return
	}
	modules, err := loader.Modules(ctx, srv.dev, srv.structure)
	if err != nil {
		errorPage(w, r, err)
		return
	}
	fns, err := loader.Functions(ctx, srv.dev, srv.structure)
	if err != nil {
		errorPage(w, r, err)
		return
	}

	entries := make([]indexEntry, 0, templates.Len())
	for _, t := range templates.All() {
		entries = append(entries, indexEntry{Name: t.Config.Name, StreamID: t.StreamID()})
	}
	sort.Slice(entries, func(i, k int) bool { return entries[i].Name < entries[k].Name })

	moduleNames := make([]string, 0, modules.Len())
	for _, m := range modules.All() {
		moduleNames = append(moduleNames, m.Config.Name)
	}
	sort.Strings(moduleNames)

	routes := make([]string, 0, fns.Len())
	for _, fn := range fns.All() {
		routes = append(routes, functions.RoutePath(fn.Slug))
	}
	sort.Strings(routes)

	pctx := plush.NewContextWithContext(ctx)
	pctx.Set("templates", entries)
	pctx.Set("modules", moduleNames)
	pctx.Set("functions", routes)

	body, err := plush.Render(indexSource, pctx)
	if err != nil {
		errorPage(w, r, errors.Wrap(err, "rendering index"))
		return
	}
	html, err := render.DefaultLayout().Render(render.LayoutData{
		Head: &module.HeadConfig{Title: "pagesgen"},
		Body: body,
	})
	if err != nil {
		errorPage(w, r, err)
		return
	}
	srv.writeHTML(w, html)
}

// failure maps missing templates, modules and documents to a 404 and
// anything else to the error page.
func (srv *Server) failure(w http.ResponseWriter, r *http.Request, err error) {
	var missingDoc *render.DocumentNotFoundError
	switch {
	case errors.Is(err, render.ErrTemplateNotFound):
		notFound(w, r, err.Error())
	case errors.As(err, &missingDoc):
		notFound(w, r, missingDoc.Error())
	default:
		errorPage(w, r, err)
	}
}

func (srv *Server) writeHTML(w http.ResponseWriter, html string) {
	if srv.opts.LiveReload {
		html = injectLiveReload(html)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}
