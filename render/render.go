// Package render turns a (template, document) pair into an HTML page and
// its redirect rules.
package render

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/ZacxDev/pagesgen/content"
	"github.com/ZacxDev/pagesgen/module"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/ZacxDev/pagesgen/utils"
	"github.com/pkg/errors"
)

const DefaultRedirectStatus = http.StatusMovedPermanently

type Redirect struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Status      int    `json:"status"`
}

type Page struct {
	Feature string
	Path    string
	// File is where the page is written under the web root.
	File                 string
	RelativePrefixToRoot string
	HTML                 string
	Redirects            []Redirect
	// RedirectErr is set when getRedirects failed. The page itself is
	// still valid.
	RedirectErr error
}

// Request identifies one page. EntityID is empty for static pages.
type Request struct {
	Feature  string
	EntityID string
	Locale   string
}

type Orchestrator struct {
	Resolver   Resolver
	Documents  content.Fetcher
	Components ComponentRenderer
	Hydration  HydrationResolver
	// ModuleHydration resolves client bundles for embeddable modules.
	ModuleHydration HydrationResolver
	Layout          *Layout
	Mode            module.Mode
}

// Generate resolves the feature's template, fetches the requested document
// and renders the page.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Page, error) {
	tpl, err := o.Resolver.ResolveTemplate(ctx, req.Feature)
	if err != nil {
		return nil, err
	}

	doc, err := o.FetchDocument(ctx, tpl, req.EntityID, req.Locale)
	if err != nil {
		return nil, err
	}

	return o.RenderPage(ctx, tpl, doc)
}

// FetchDocument returns an empty document when entityID is empty.
func (o *Orchestrator) FetchDocument(ctx context.Context, tpl *module.Internal, entityID, locale string) (module.Document, error) {
	if entityID == "" {
		return module.Document{}, nil
	}
	if o.Documents == nil {
		return nil, &RenderError{Template: tpl.Filename, Err: errors.New("no content source configured")}
	}

	doc, err := o.Documents.FetchDocument(ctx, entityID, locale, tpl.Config.Stream)
	if err != nil {
		return nil, &RenderError{Template: tpl.Filename, Err: err}
	}
	if doc == nil {
		return nil, &DocumentNotFoundError{EntityID: entityID, Locale: locale}
	}
	return doc, nil
}

// RenderPage runs transformProps, getPath, render and getRedirects for one
// document.
func (o *Orchestrator) RenderPage(ctx context.Context, tpl *module.Internal, doc module.Document) (*Page, error) {
	if doc == nil {
		doc = module.Document{}
	}
	props := module.Props{Document: doc, Meta: module.Meta{Mode: o.mode()}}

	if tpl.TransformProps != nil {
		var err error
		props, err = tpl.TransformProps(ctx, props)
		if err != nil {
			return nil, &RenderError{Template: tpl.Filename, Err: errors.Wrap(err, "transformProps")}
		}
	}

	pagePath, err := tpl.GetPath(props)
	if err != nil {
		return nil, &RenderError{Template: tpl.Filename, Err: errors.Wrap(err, "getPath")}
	}
	pagePath = strings.TrimPrefix(strings.TrimSpace(pagePath), "/")
	if pagePath == "" {
		return nil, &RenderError{Template: tpl.Filename, Err: errors.New("getPath must return a non-empty string")}
	}

	file := OutputFile(pagePath)
	renderProps := module.RenderProps{
		Props:                props,
		Path:                 pagePath,
		RelativePrefixToRoot: utils.GetRelativePrefixToRootFromPath(file),
	}

	html, err := o.renderBody(tpl, renderProps, o.Hydration, tpl.Config.Hydrate)
	if err != nil {
		return nil, &RenderError{Template: tpl.Filename, Err: err}
	}

	page := &Page{
		Feature:              tpl.Config.Name,
		Path:                 pagePath,
		File:                 file,
		RelativePrefixToRoot: renderProps.RelativePrefixToRoot,
		HTML:                 html,
	}

	if tpl.GetRedirects != nil {
		page.Redirects, page.RedirectErr = redirectsTo(tpl.GetRedirects, props, pagePath)
		if page.RedirectErr != nil {
			output.Warn("getRedirects failed", "template", tpl.Filename, "err", page.RedirectErr)
		}
	}

	return page, nil
}

func (o *Orchestrator) mode() module.Mode {
	if o.Mode == "" {
		return module.Production
	}
	return o.Mode
}

// pageExtensions are the suffixes that make a page path a file. Any other
// path is a directory-style URL, even when its last segment has a dot.
var pageExtensions = map[string]bool{
	".html": true,
	".htm":  true,
	".xml":  true,
	".txt":  true,
	".json": true,
}

// OutputFile maps a page path to the file it is written to. Directory-style
// paths get an index.html.
func OutputFile(pagePath string) string {
	if pageExtensions[strings.ToLower(path.Ext(pagePath))] {
		return pagePath
	}
	return strings.TrimSuffix(pagePath, "/") + "/index.html"
}

// ModulePath is where an embeddable module is written under the web root.
func ModulePath(name string) string {
	return "modules/" + name + ".html"
}

// RenderModule renders an embeddable module standalone. A module is always
// hydrated when it has a client bundle.
func (o *Orchestrator) RenderModule(ctx context.Context, m *module.Internal) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	props := module.Props{Document: module.Document{}, Meta: module.Meta{Mode: o.mode()}}
	pagePath := ModulePath(m.Config.Name)
	if m.GetPath != nil {
		p, err := m.GetPath(props)
		if err != nil {
			return nil, &RenderError{Template: m.Filename, Err: errors.Wrap(err, "getPath")}
		}
		if p = strings.TrimPrefix(strings.TrimSpace(p), "/"); p != "" {
			pagePath = p
		}
	}
	file := OutputFile(pagePath)
	renderProps := module.RenderProps{
		Props:                props,
		Path:                 pagePath,
		RelativePrefixToRoot: utils.GetRelativePrefixToRootFromPath(file),
	}

	hydrate := false
	if o.ModuleHydration != nil {
		_, hydrate = o.ModuleHydration.ClientPath(m.Config.Name)
	}
	html, err := o.renderBody(m, renderProps, o.ModuleHydration, hydrate)
	if err != nil {
		return nil, &RenderError{Template: m.Filename, Err: err}
	}
	return &Page{
		Feature:              m.Config.Name,
		Path:                 pagePath,
		File:                 file,
		RelativePrefixToRoot: renderProps.RelativePrefixToRoot,
		HTML:                 html,
	}, nil
}

func (o *Orchestrator) renderBody(tpl *module.Internal, props module.RenderProps, clients HydrationResolver, hydrate bool) (string, error) {
	if tpl.Render != nil {
		out, err := tpl.Render(props)
		return out, errors.Wrap(err, "render")
	}

	if o.Components == nil {
		return "", errors.New("template has no render function and no component renderer is configured")
	}
	body, err := o.Components.RenderComponent(tpl.Default.Name, props)
	if err != nil {
		return "", err
	}

	var head *module.HeadConfig
	if tpl.GetHeadConfig != nil {
		if head, err = tpl.GetHeadConfig(props); err != nil {
			return "", errors.Wrap(err, "getHeadConfig")
		}
	}
	if head == nil {
		head = &module.HeadConfig{}
	}
	if head.Title == "" {
		head.Title = tpl.Config.Name
	}

	var hydration string
	if hydrate {
		hydration, err = hydrationFor(tpl, props, clients)
		if err != nil {
			return "", err
		}
	}

	layout := o.Layout
	if layout == nil {
		layout = DefaultLayout()
	}
	return layout.Render(LayoutData{Head: head, Body: body, Hydration: hydration, Props: props})
}

func hydrationFor(tpl *module.Internal, props module.RenderProps, clients HydrationResolver) (string, error) {
	var src string
	if clients != nil {
		if client, ok := clients.ClientPath(tpl.Config.Name); ok {
			src = client
			if !strings.HasPrefix(client, "/") {
				src = props.RelativePrefixToRoot + client
			}
		}
	}
	if src == "" {
		output.Warn("hydrate is set but no client bundle was found", "template", tpl.Filename)
	}
	return hydrationMarkup(props, src)
}

func redirectsTo(fn module.RedirectsFunc, props module.Props, destination string) ([]Redirect, error) {
	sources, err := fn(props)
	if err != nil {
		return nil, err
	}
	redirects := make([]Redirect, 0, len(sources))
	for _, s := range sources {
		status := s.Status
		if status == 0 {
			status = DefaultRedirectStatus
		}
		redirects = append(redirects, Redirect{Source: s.Source, Destination: destination, Status: status})
	}
	return redirects, nil
}

// GenerateRedirects runs a dedicated redirect module for one document.
func GenerateRedirects(ctx context.Context, m *module.Internal, props module.Props) ([]Redirect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	destination, err := m.GetDestination(props)
	if err != nil {
		return nil, &RenderError{Template: m.Filename, Err: errors.Wrap(err, "getDestination")}
	}
	if destination == "" {
		return nil, &RenderError{Template: m.Filename, Err: errors.New("getDestination must return a non-empty string")}
	}
	redirects, err := redirectsTo(m.GetSources, props, destination)
	if err != nil {
		return nil, &RenderError{Template: m.Filename, Err: errors.Wrap(err, "getSources")}
	}
	return redirects, nil
}
