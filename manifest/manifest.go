// Package manifest describes the page manifest the bundle step writes and
// the production resolver reads back.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// Page maps feature names to artifacts relative to the dist directory.
type Page struct {
	ServerPaths     map[string]string `json:"serverPaths"`
	ClientPaths     map[string]string `json:"clientPaths"`
	RedirectPaths   map[string]string `json:"redirectPaths"`
	ModulePaths     map[string]string `json:"modulePaths"`
	BundlerManifest *Metafile         `json:"bundlerManifest,omitempty"`
}

func New() *Page {
	return &Page{
		ServerPaths:   map[string]string{},
		ClientPaths:   map[string]string{},
		RedirectPaths: map[string]string{},
		ModulePaths:   map[string]string{},
	}
}

// Features returns the server feature names in sorted order.
func (p *Page) Features() []string {
	names := make([]string, 0, len(p.ServerPaths))
	for name := range p.ServerPaths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Read(path string) (*Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading page manifest, run build first")
	}
	p := New()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.Wrapf(err, "parsing page manifest %s", path)
	}
	return p, nil
}

func Write(path string, p *Page) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0644))
}

// Metafile is esbuild's metafile JSON.
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
	Format  string           `json:"format,omitempty"`
}

type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

type MetafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]InputContrib `json:"inputs"`
	Imports    []MetafileImport        `json:"imports"`
	Exports    []string                `json:"exports"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
}

type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// ParseMetafile decodes the metafile string esbuild returns.
func ParseMetafile(raw string) (*Metafile, error) {
	if raw == "" {
		return nil, nil
	}
	var m Metafile
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, errors.Wrap(err, "parsing esbuild metafile")
	}
	return &m, nil
}

// Merge folds other into m.
func (m *Metafile) Merge(other *Metafile) {
	if other == nil {
		return
	}
	if m.Inputs == nil {
		m.Inputs = map[string]MetafileInput{}
	}
	if m.Outputs == nil {
		m.Outputs = map[string]MetafileOutput{}
	}
	for k, v := range other.Inputs {
		m.Inputs[k] = v
	}
	for k, v := range other.Outputs {
		m.Outputs[k] = v
	}
}
