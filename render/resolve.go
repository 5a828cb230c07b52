package render

import (
	"context"
	"path/filepath"

	"github.com/ZacxDev/pagesgen/config"
	"github.com/ZacxDev/pagesgen/loader"
	"github.com/ZacxDev/pagesgen/manifest"
	"github.com/ZacxDev/pagesgen/module"
	"github.com/pkg/errors"
)

// Resolver locates the template that implements a feature.
type Resolver interface {
	ResolveTemplate(ctx context.Context, feature string) (*module.Internal, error)
}

// HydrationResolver returns the client bundle for a feature. Paths starting
// with "/" are used as-is; anything else is prefixed with the page's
// relative prefix to root.
type HydrationResolver interface {
	ClientPath(feature string) (string, bool)
}

// DevResolver re-discovers and re-loads the template tree on every lookup,
// so edits show up on the next request. The DevLoader's cache keeps
// unchanged files from being re-parsed.
type DevResolver struct {
	Structure *config.Structure
	Loader    loader.Loader
}

func (r *DevResolver) Templates(ctx context.Context) (*module.Collection, error) {
	return loader.Templates(ctx, r.Loader, r.Structure)
}

func (r *DevResolver) ResolveTemplate(ctx context.Context, feature string) (*module.Internal, error) {
	c, err := r.Templates(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := c.Find(feature)
	if !ok {
		return nil, errors.Wrapf(ErrTemplateNotFound, "no template for feature %q", feature)
	}
	return m, nil
}

// ProdResolver looks features up in the page manifest and loads the
// fingerprinted server artifact it names.
type ProdResolver struct {
	Manifest *manifest.Page
	Dist     string
	Loader   *loader.BundleLoader
}

func (r *ProdResolver) ResolveTemplate(ctx context.Context, feature string) (*module.Internal, error) {
	rel, ok := r.Manifest.ServerPaths[feature]
	if !ok {
		return nil, errors.Wrapf(ErrTemplateNotFound, "no bundle entry for feature %q", feature)
	}
	path := filepath.Join(r.Dist, filepath.FromSlash(rel))

	raw, err := r.Loader.Load(ctx, module.KindTemplate, path)
	if err != nil {
		return nil, err
	}
	m := module.Normalize(module.KindTemplate, path, raw, module.NormalizeOptions{ProdBundle: true})
	if err := module.Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ClientPath serves hydration bundles straight out of the manifest.
func (r *ProdResolver) ClientPath(feature string) (string, bool) {
	p, ok := r.Manifest.ClientPaths[feature]
	return p, ok
}

// ClientPaths is a fixed feature -> bundle table, such as the page
// manifest's clientPaths or modulePaths.
type ClientPaths map[string]string

func (c ClientPaths) ClientPath(feature string) (string, bool) {
	p, ok := c[feature]
	return p, ok
}

// ClientFunc adapts a function to HydrationResolver.
type ClientFunc func(feature string) (string, bool)

func (f ClientFunc) ClientPath(feature string) (string, bool) {
	return f(feature)
}
