package bundle

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ZacxDev/pagesgen/config"
	"github.com/ZacxDev/pagesgen/loader"
	"github.com/ZacxDev/pagesgen/manifest"
	"github.com/ZacxDev/pagesgen/module"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/ZacxDev/pagesgen/render"
	"github.com/ZacxDev/pagesgen/utils"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// DocumentLister enumerates the records of one stream. content.LocalStore
// implements it.
type DocumentLister interface {
	Documents(streamID string) ([]module.Document, error)
}

type GenerateOptions struct {
	Documents   DocumentLister
	Concurrency int
	// Origin enables sitemap.xml when set.
	Origin string
}

type Result struct {
	Pages     []string
	Redirects []render.Redirect
	// Failed counts pages whose generation failed. Their errors are
	// combined in the error Generate returns.
	Failed int
}

type job struct {
	tpl *module.Internal
	doc module.Document
}

// Generate renders every (template, document) pair described by the page
// manifest into the public directory. A page that fails does not stop its
// siblings; all page errors are returned together. Loading or validating a
// bundle artifact still fails the whole run.
func Generate(ctx context.Context, s *config.Structure, opts GenerateOptions) (*Result, error) {
	m, err := manifest.Read(s.PageManifest().GetAbsolutePath())
	if err != nil {
		return nil, err
	}

	dist := s.Dist().GetAbsolutePath()
	public := s.Public().GetAbsolutePath()
	bundles := loader.NewBundleLoader(loader.NewCache())
	resolver := &render.ProdResolver{Manifest: m, Dist: dist, Loader: bundles}

	o := &render.Orchestrator{
		Resolver:   resolver,
		Components: render.NewPlushComponents(filepath.Join(s.ServerBundle().GetAbsolutePath(), componentsDir)),
		Hydration:  resolver,
		Mode:       module.Production,
	}
	if layoutPath := filepath.Join(s.ServerBundle().GetAbsolutePath(), layoutFile); fileExists(layoutPath) {
		if o.Layout, err = render.LoadLayout(layoutPath); err != nil {
			return nil, err
		}
	}

	var jobs []job
	for _, feature := range m.Features() {
		tpl, err := resolver.ResolveTemplate(ctx, feature)
		if err != nil {
			return nil, err
		}
		docs, err := documentsFor(tpl, opts.Documents)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			jobs = append(jobs, job{tpl: tpl, doc: doc})
		}
	}

	res := &Result{}
	var (
		mu      sync.Mutex
		errs    error
		written = map[string]string{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(opts.Concurrency))

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			page, err := o.RenderPage(gctx, j.tpl, j.doc)
			if err == nil {
				mu.Lock()
				if other, dup := written[page.File]; dup {
					err = errors.Errorf("%s: page %s was already generated by %s", j.tpl.Filename, page.File, other)
				} else {
					written[page.File] = j.tpl.Filename
				}
				mu.Unlock()
			}
			if err == nil {
				err = writePage(public, page)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				errs = multierr.Append(errs, err)
				output.Error("page failed", "template", j.tpl.Filename, "entity", entityOf(j.doc), "err", err)
				return nil
			}
			res.Pages = append(res.Pages, page.File)
			res.Redirects = append(res.Redirects, page.Redirects...)
			output.Debug("generated page", "path", page.File)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	redirects, recordErrs, err := redirectModules(ctx, m, dist, bundles, opts.Documents)
	if err != nil {
		return nil, err
	}
	res.Redirects = append(res.Redirects, redirects...)
	errs = multierr.Append(errs, recordErrs)

	sort.Strings(res.Pages)
	sort.SliceStable(res.Redirects, func(i, k int) bool {
		return res.Redirects[i].Source < res.Redirects[k].Source
	})

	if err := writeRedirects(filepath.Join(public, "redirects.json"), res.Redirects); err != nil {
		return nil, err
	}
	if opts.Origin != "" && errs == nil {
		if err := utils.WriteSitemap(filepath.Join(public, "sitemap.xml"), opts.Origin, res.Pages, time.Now()); err != nil {
			return nil, err
		}
	}

	output.Info("generation complete", "pages", len(res.Pages), "redirects", len(res.Redirects), "failed", res.Failed)
	return res, errs
}

// documentsFor returns one empty document for a static template and the
// stream's records otherwise.
func documentsFor(m *module.Internal, docs DocumentLister) ([]module.Document, error) {
	if m.IsStatic() {
		return []module.Document{{}}, nil
	}
	if docs == nil {
		return nil, errors.Errorf("%s %s needs documents for stream %q but no content source is configured", m.Kind, m.Filename, m.StreamID())
	}
	return docs.Documents(m.StreamID())
}

// redirectModules runs every redirect module over its stream. A record
// that fails is reported in recordErrs; loading a module fails the run.
func redirectModules(ctx context.Context, m *manifest.Page, dist string, l *loader.BundleLoader, docs DocumentLister) (out []render.Redirect, recordErrs error, err error) {
	names := make([]string, 0, len(m.RedirectPaths))
	for name := range m.RedirectPaths {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dist, filepath.FromSlash(m.RedirectPaths[name]))
		raw, err := l.Load(ctx, module.KindRedirect, path)
		if err != nil {
			return nil, nil, err
		}
		r := module.Normalize(module.KindRedirect, path, raw, module.NormalizeOptions{ProdBundle: true})
		if err := module.Validate(r); err != nil {
			return nil, nil, err
		}

		records, err := documentsFor(r, docs)
		if err != nil {
			return nil, nil, err
		}
		for _, doc := range records {
			redirects, err := render.GenerateRedirects(ctx, r, module.Props{Document: doc, Meta: module.Meta{Mode: module.Production}})
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, ctx.Err()
				}
				output.Error("redirect failed", "module", r.Filename, "entity", entityOf(doc), "err", err)
				recordErrs = multierr.Append(recordErrs, err)
				continue
			}
			out = append(out, redirects...)
		}
	}
	return out, recordErrs, nil
}

func writeRedirects(path string, redirects []render.Redirect) error {
	if redirects == nil {
		redirects = []render.Redirect{}
	}
	data, err := json.MarshalIndent(redirects, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0644))
}

func concurrency(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func entityOf(doc module.Document) interface{} {
	if id, ok := doc["id"]; ok {
		return id
	}
	return doc["entityId"]
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
