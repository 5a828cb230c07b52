package javascript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZacxDev/pagesgen/manifest"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/pkg/errors"
)

// ClientExtensions are tried in order when looking for a component's
// hydration entry next to its server template.
var ClientExtensions = []string{".client.tsx", ".client.ts", ".client.jsx", ".client.js"}

// ClientEntry returns the client entry for component name, if one exists.
func ClientEntry(componentsDir, name string) (string, bool) {
	for _, ext := range ClientExtensions {
		path := filepath.Join(componentsDir, name+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Target is one client bundle: a feature's hydration entry or a module's
// entry.
type Target struct {
	Name   string
	Source string
}

type Options struct {
	// OutDir receives the fingerprinted bundles.
	OutDir string
	// PublicDir is the web root the returned paths are relative to.
	PublicDir string
	Minify    bool
}

var engines = []api.Engine{
	{Name: api.EngineChrome, Version: "100"},
	{Name: api.EngineFirefox, Version: "100"},
	{Name: api.EngineSafari, Version: "15"},
	{Name: api.EngineEdge, Version: "100"},
}

func buildOptions(entry api.EntryPoint, minify bool) api.BuildOptions {
	return api.BuildOptions{
		EntryPointsAdvanced: []api.EntryPoint{entry},
		Bundle:              true,
		Format:              api.FormatESModule,
		MinifyWhitespace:    minify,
		MinifyIdentifiers:   minify,
		MinifySyntax:        minify,
		Engines:             engines,
		Write:               false,
	}
}

func buildError(source string, messages []api.Message) error {
	msg := messages[0].Text
	if loc := messages[0].Location; loc != nil {
		msg = fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, msg)
	}
	return errors.Errorf("bundling %s: %s", source, msg)
}

// CompileTargets bundles every target into OutDir as name_<hash>.js with an
// external source map, and returns each target's path relative to
// PublicDir along with the merged esbuild metafile.
func CompileTargets(targets []Target, opts Options) (map[string]string, *manifest.Metafile, error) {
	emitted := make(map[string]string, len(targets))
	meta := &manifest.Metafile{}

	if err := os.MkdirAll(opts.OutDir, os.ModePerm); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	for _, target := range targets {
		build := buildOptions(api.EntryPoint{InputPath: target.Source, OutputPath: target.Name}, opts.Minify)
		build.Sourcemap = api.SourceMapExternal
		build.Outdir = opts.OutDir
		build.Metafile = true

		result := api.Build(build)
		if len(result.Errors) > 0 {
			return nil, nil, buildError(target.Source, result.Errors)
		}

		m, err := manifest.ParseMetafile(result.Metafile)
		if err != nil {
			return nil, nil, err
		}
		meta.Merge(m)

		// Bundles are written before their maps so each map can find the
		// hash of its source.
		var regularFiles []api.OutputFile
		var mapFiles []api.OutputFile
		for _, out := range result.OutputFiles {
			if strings.EqualFold(filepath.Ext(out.Path), ".map") {
				mapFiles = append(mapFiles, out)
			} else {
				regularFiles = append(regularFiles, out)
			}
		}

		srcToHash := make(map[string]string)

		for _, out := range append(regularFiles, mapFiles...) {
			base := filepath.Base(out.Path)
			ext := base[strings.Index(base, "."):]
			isMap := ext == ".js.map"
			fileNameWithoutExt := base[:len(base)-len(ext)]

			var hash string
			if isMap {
				hash = srcToHash[fileNameWithoutExt]
				if hash == "" {
					return nil, nil, errors.Errorf("source map %s can not find hash for its source file", fileNameWithoutExt)
				}
			} else {
				hash = strings.ReplaceAll(out.Hash, "/", "")
				srcToHash[fileNameWithoutExt] = hash
			}

			name := fmt.Sprintf("%s_%s%s", fileNameWithoutExt, hash, ext)
			newPath := filepath.Join(opts.OutDir, name)

			contents := out.Contents
			if !isMap {
				contents = append(append([]byte{}, out.Contents...), []byte("//# sourceMappingURL="+name+".map")...)
			}

			if err := os.WriteFile(newPath, contents, 0644); err != nil {
				return nil, nil, errors.Wrapf(err, "writing %s", newPath)
			}

			if !isMap {
				rel, err := filepath.Rel(opts.PublicDir, newPath)
				if err != nil {
					return nil, nil, errors.WithStack(err)
				}
				emitted[target.Name] = filepath.ToSlash(rel)
			}
		}
	}

	return emitted, meta, nil
}

// BuildInMemory bundles one entry without touching disk. The dev server
// uses it to serve hydration bundles straight from source.
func BuildInMemory(source string, minify bool) ([]byte, error) {
	build := buildOptions(api.EntryPoint{InputPath: source}, minify)
	build.Sourcemap = api.SourceMapInline
	build.Outdir = filepath.Join(filepath.Dir(source), ".pagesgen")

	result := api.Build(build)
	if len(result.Errors) > 0 {
		return nil, buildError(source, result.Errors)
	}
	for _, out := range result.OutputFiles {
		if strings.HasSuffix(out.Path, ".js") {
			return out.Contents, nil
		}
	}
	return nil, errors.Errorf("bundling %s produced no javascript", source)
}
