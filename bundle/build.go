// Package bundle produces the production build in dist and generates the
// static site from it.
package bundle

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ZacxDev/pagesgen/config"
	"github.com/ZacxDev/pagesgen/features"
	"github.com/ZacxDev/pagesgen/functions"
	"github.com/ZacxDev/pagesgen/javascript"
	"github.com/ZacxDev/pagesgen/loader"
	"github.com/ZacxDev/pagesgen/manifest"
	"github.com/ZacxDev/pagesgen/module"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/ZacxDev/pagesgen/render"
	"github.com/pkg/errors"
)

const (
	serverDir     = "server"
	componentsDir = "components"
	layoutFile    = "layout.plush.html"
)

type BuildOptions struct {
	Minify bool
}

// Build validates the whole source tree, then writes features.json, the
// fingerprinted server artifacts, the client bundles, the rendered modules
// and the page manifest. Any invalid module aborts the build before
// anything is written to dist.
func Build(ctx context.Context, s *config.Structure, opts BuildOptions) (*manifest.Page, error) {
	l := loader.SourceLoader{}

	templates, err := loader.Templates(ctx, l, s)
	if err != nil {
		return nil, err
	}
	redirects, err := loader.Redirects(ctx, l, s)
	if err != nil {
		return nil, err
	}
	fns, err := loader.Functions(ctx, l, s)
	if err != nil {
		return nil, err
	}
	modules, err := loader.Modules(ctx, l, s)
	if err != nil {
		return nil, err
	}

	if err := features.WriteFile(s.FeaturesConfig().GetAbsolutePath(), features.Emit(templates)); err != nil {
		return nil, err
	}
	output.Info("wrote features config", "path", s.FeaturesConfig().GetAbsolutePath(), "features", templates.Len())

	dist := s.Dist().GetAbsolutePath()
	server := s.ServerBundle().GetAbsolutePath()
	public := s.Public().GetAbsolutePath()
	m := manifest.New()

	for _, tpl := range templates.All() {
		dst, err := writeFingerprinted(tpl.Path, server)
		if err != nil {
			return nil, err
		}
		m.ServerPaths[tpl.Config.Name] = relSlash(dist, dst)
	}

	for _, r := range redirects.All() {
		dst, err := writeFingerprinted(r.Path, filepath.Join(server, "redirects"))
		if err != nil {
			return nil, err
		}
		m.RedirectPaths[r.Config.Name] = relSlash(dist, dst)
	}

	if _, err := copyTree(s.ComponentsRoot().GetAbsolutePath(), filepath.Join(server, componentsDir)); err != nil {
		return nil, err
	}
	if layout, ok := s.Layout(); ok {
		if err := copyFile(layout.GetAbsolutePath(), filepath.Join(server, layoutFile)); err != nil {
			return nil, err
		}
	}

	fnRoot := s.FunctionsRoot().GetAbsolutePath()
	for _, fn := range fns.All() {
		rel, err := filepath.Rel(fnRoot, fn.Path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if err := copyFile(fn.Path, filepath.Join(server, "functions", rel)); err != nil {
			return nil, err
		}
	}
	if err := functions.WriteManifest(s.FunctionsManifest().GetAbsolutePath(), functions.BuildManifest(fns, fnRoot)); err != nil {
		return nil, err
	}

	componentsRoot := s.ComponentsRoot().GetAbsolutePath()
	clientPaths, meta, err := javascript.CompileTargets(hydrationTargets(templates, componentsRoot), javascript.Options{
		OutDir:    s.Assets().Join("hydrate").GetAbsolutePath(),
		PublicDir: public,
		Minify:    opts.Minify,
	})
	if err != nil {
		return nil, err
	}
	m.ClientPaths = clientPaths

	modulePaths, moduleMeta, err := javascript.CompileTargets(hydrationTargets(modules, componentsRoot), javascript.Options{
		OutDir:    s.Assets().Join("modules").GetAbsolutePath(),
		PublicDir: public,
		Minify:    opts.Minify,
	})
	if err != nil {
		return nil, err
	}
	m.ModulePaths = modulePaths
	meta.Merge(moduleMeta)
	m.BundlerManifest = meta

	if err := renderModules(ctx, s, modules, modulePaths); err != nil {
		return nil, err
	}

	copied, err := copyTree(s.Static().GetAbsolutePath(), public)
	if err != nil {
		return nil, errors.Wrap(err, "copying static files")
	}
	output.Debug("copied static files", "count", copied)

	if err := manifest.Write(s.PageManifest().GetAbsolutePath(), m); err != nil {
		return nil, err
	}
	output.Info("build complete",
		"templates", templates.Len(),
		"redirects", redirects.Len(),
		"functions", fns.Len(),
		"modules", modules.Len(),
		"bundles", len(clientPaths)+len(modulePaths))

	return m, nil
}

// hydrationTargets picks the client entry of every module that needs one:
// templates only when hydrate is set, embeddable modules always.
func hydrationTargets(c *module.Collection, componentsRoot string) []javascript.Target {
	var targets []javascript.Target
	for _, m := range c.All() {
		if m.Default == nil {
			continue
		}
		if m.Kind == module.KindTemplate && !m.Config.Hydrate {
			continue
		}
		entry, ok := javascript.ClientEntry(componentsRoot, m.Default.Name)
		if !ok {
			if m.Kind == module.KindTemplate {
				output.Warn("hydrate is set but the component has no client entry", "template", m.Filename, "component", m.Default.Name)
			}
			continue
		}
		targets = append(targets, javascript.Target{Name: m.Config.Name, Source: entry})
	}
	return targets
}

func renderModules(ctx context.Context, s *config.Structure, modules *module.Collection, clients map[string]string) error {
	if modules.Len() == 0 {
		return nil
	}
	o := &render.Orchestrator{
		Components:      render.NewPlushComponents(s.ComponentsRoot().GetAbsolutePath()),
		ModuleHydration: render.ClientPaths(clients),
		Mode:            module.Production,
	}
	if layout, ok := s.Layout(); ok {
		l, err := render.LoadLayout(layout.GetAbsolutePath())
		if err != nil {
			return err
		}
		o.Layout = l
	}

	public := s.Public().GetAbsolutePath()
	for _, m := range modules.All() {
		page, err := o.RenderModule(ctx, m)
		if err != nil {
			return err
		}
		if err := writePage(public, page); err != nil {
			return err
		}
	}
	return nil
}

func writePage(public string, page *render.Page) error {
	dst := filepath.Join(public, filepath.FromSlash(page.File))
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(dst, []byte(page.HTML), 0644))
}

func relSlash(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
