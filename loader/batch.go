package loader

import (
	"context"

	"github.com/ZacxDev/pagesgen/config"
	"github.com/ZacxDev/pagesgen/discovery"
	"github.com/ZacxDev/pagesgen/module"
	"github.com/ZacxDev/pagesgen/output"
)

// LoadModules loads, normalizes and validates every path, then folds the
// result into a collection. The first failure aborts the batch and no
// partial collection is returned.
func LoadModules(ctx context.Context, l Loader, kind module.Kind, paths []string, opts module.NormalizeOptions) (*module.Collection, error) {
	modules := make([]*module.Internal, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := l.Load(ctx, kind, path)
		if err != nil {
			return nil, err
		}
		m := module.Normalize(kind, path, raw, opts)
		if err := module.Validate(m); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}

	c, err := module.BuildCollection(kind, modules)
	if err != nil {
		return nil, err
	}
	output.Debug("loaded modules", "kind", kind, "count", c.Len())
	return c, nil
}

// Templates discovers and loads the project's template modules.
func Templates(ctx context.Context, l Loader, s *config.Structure) (*module.Collection, error) {
	paths, err := discovery.Discover(config.AbsolutePaths(s.TemplatesRoots()), discovery.TemplateExtensions, discovery.Shallow)
	if err != nil {
		return nil, err
	}
	return LoadModules(ctx, l, module.KindTemplate, paths, module.NormalizeOptions{})
}

func Redirects(ctx context.Context, l Loader, s *config.Structure) (*module.Collection, error) {
	paths, err := discovery.Discover(config.AbsolutePaths(s.RedirectsRoots()), discovery.RedirectExtensions, discovery.Shallow)
	if err != nil {
		return nil, err
	}
	return LoadModules(ctx, l, module.KindRedirect, paths, module.NormalizeOptions{})
}

func Functions(ctx context.Context, l Loader, s *config.Structure) (*module.Collection, error) {
	root := s.FunctionsRoot().GetAbsolutePath()
	paths, err := discovery.Discover([]string{root}, discovery.FunctionExtensions, discovery.Recursive)
	if err != nil {
		return nil, err
	}
	return LoadModules(ctx, l, module.KindFunction, paths, module.NormalizeOptions{Root: root})
}

func Modules(ctx context.Context, l Loader, s *config.Structure) (*module.Collection, error) {
	paths, err := discovery.Discover(config.AbsolutePaths(s.ModulesRoots()), discovery.ModuleExtensions, discovery.Recursive)
	if err != nil {
		return nil, err
	}
	return LoadModules(ctx, l, module.KindModule, paths, module.NormalizeOptions{})
}
