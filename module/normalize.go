package module

import (
	"path/filepath"
	"strings"
)

type NormalizeOptions struct {
	// ProdBundle strips the fingerprint token that the bundle step appends
	// to artifact names, so dev and prod derive the same template name.
	ProdBundle bool
	// Root is the discovery root a function slug is computed against.
	Root string
}

// Normalize converts a raw loaded module into its fully populated internal
// form. It performs no I/O.
func Normalize(kind Kind, path string, raw *Raw, opts NormalizeOptions) *Internal {
	if raw == nil {
		raw = &Raw{}
	}

	filename := filepath.Base(path)
	templateName := NameFromFilename(filename, opts.ProdBundle)
	if opts.ProdBundle {
		filename = SourceFilename(filename)
	}

	var cfg Config
	if raw.Config != nil {
		cfg = *raw.Config
	}
	if cfg.Name == "" {
		cfg.Name = templateName
	}

	m := &Internal{
		Kind:           kind,
		Path:           path,
		Filename:       filename,
		TemplateName:   templateName,
		Config:         cfg,
		GetPath:        raw.GetPath,
		Render:         raw.Render,
		Default:        raw.Default,
		TransformProps: raw.TransformProps,
		GetHeadConfig:  raw.GetHeadConfig,
		GetRedirects:   raw.GetRedirects,
		GetDestination: raw.GetDestination,
		GetSources:     raw.GetSources,
		Handler:        raw.Handler,
	}

	if kind == KindFunction {
		m.Slug = slugFromPath(path, opts.Root, templateName)
	}

	return m
}

// NameFromFilename returns the filename up to its first dot. With
// fingerprinted set, the last "-<hash>" token is dropped as well.
func NameFromFilename(filename string, fingerprinted bool) string {
	name := filename
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	if fingerprinted {
		if i := strings.LastIndex(name, "-"); i > 0 {
			name = name[:i]
		}
	}
	return name
}

// SourceFilename drops the "-<hash>" token from a fingerprinted artifact
// name: location-3f9a1c2b.plush.html -> location.plush.html.
func SourceFilename(filename string) string {
	name, ext := filename, ""
	if i := strings.Index(filename, "."); i > 0 {
		name, ext = filename[:i], filename[i:]
	}
	if i := strings.LastIndex(name, "-"); i > 0 {
		name = name[:i]
	}
	return name + ext
}

func slugFromPath(path, root, fallback string) string {
	if root == "" {
		return fallback
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fallback
	}
	rel = filepath.ToSlash(rel)
	dir, file := "", rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		dir, file = rel[:i+1], rel[i+1:]
	}
	return dir + NameFromFilename(file, false)
}
