package config

import (
	"path/filepath"
)

// Path is a project directory or file, anchored at the project root.
type Path struct {
	root string
	rel  string
}

func (p Path) GetAbsolutePath() string {
	abs, err := filepath.Abs(filepath.Join(p.root, p.rel))
	if err != nil {
		return filepath.Join(p.root, p.rel)
	}
	return abs
}

// GetRelativePath returns to expressed relative to p.
func (p Path) GetRelativePath(to string) string {
	rel, err := filepath.Rel(p.GetAbsolutePath(), to)
	if err != nil {
		return to
	}
	return filepath.ToSlash(rel)
}

func (p Path) Join(elem ...string) Path {
	return Path{root: p.root, rel: filepath.Join(append([]string{p.rel}, elem...)...)}
}

// Structure answers "where does X live" for the rest of the pipeline. No
// other package hardcodes directory names.
type Structure struct {
	project *Project
	root    Path
}

func NewStructure(project *Project) *Structure {
	root := project.Root
	if root == "" {
		root = "."
	}
	return &Structure{project: project, root: Path{root: root}}
}

func (s *Structure) Project() *Project {
	return s.project
}

func (s *Structure) Root() Path {
	return s.root
}

func (s *Structure) Source() Path {
	return s.root.Join(s.project.Dirs.Source)
}

// TemplatesRoots lists the scoped template directory ahead of the shared one.
func (s *Structure) TemplatesRoots() []Path {
	return s.scoped(s.Source().Join("templates"))
}

func (s *Structure) RedirectsRoots() []Path {
	return s.scoped(s.Source().Join("redirects"))
}

func (s *Structure) FunctionsRoot() Path {
	return s.Source().Join("functions")
}

func (s *Structure) ModulesRoots() []Path {
	return s.scoped(s.Source().Join("modules"))
}

func (s *Structure) ComponentsRoot() Path {
	return s.Source().Join("components")
}

func (s *Structure) LocalData() Path {
	return s.root.Join(s.project.Dirs.LocalData)
}

func (s *Structure) Static() Path {
	return s.root.Join(s.project.Dirs.Static)
}

func (s *Structure) Layout() (Path, bool) {
	if s.project.Layout == "" {
		return Path{}, false
	}
	return s.root.Join(s.project.Layout), true
}

func (s *Structure) FeaturesConfig() Path {
	return s.root.Join(s.project.Dirs.SiteConfig, "features.json")
}

func (s *Structure) Dist() Path {
	return s.root.Join(s.project.Dirs.Dist)
}

func (s *Structure) ServerBundle() Path {
	return s.Dist().Join("server")
}

func (s *Structure) Public() Path {
	return s.Dist().Join("public")
}

func (s *Structure) Assets() Path {
	return s.Public().Join("assets")
}

func (s *Structure) PageManifest() Path {
	return s.Dist().Join("plugin", "manifest.json")
}

func (s *Structure) FunctionsManifest() Path {
	return s.Dist().Join("plugin", "functions.json")
}

func (s *Structure) scoped(shared Path) []Path {
	if s.project.Scope == "" {
		return []Path{shared}
	}
	return []Path{shared.Join(s.project.Scope), shared}
}

// AbsolutePaths flattens paths for callers that take plain strings.
func AbsolutePaths(paths []Path) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, p.GetAbsolutePath())
	}
	return out
}
