// Package discovery enumerates module source files across ordered roots.
package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type Depth int

const (
	// Shallow only considers files directly under a root.
	Shallow Depth = iota
	// Recursive walks every subdirectory, skipping hidden entries.
	Recursive
)

var (
	TemplateExtensions = []string{".plush.html", ".plush", ".md"}
	RedirectExtensions = []string{".yaml", ".yml", ".plush"}
	FunctionExtensions = []string{".plush", ".plush.json"}
	ModuleExtensions   = []string{".plush.html"}
)

// Discover returns the files under roots whose names end in one of the
// extensions. Roots are searched in order and the first file seen with a
// given name wins, so an earlier (domain-specific) root overrides a later
// (shared) one. The name is the basename for Shallow roots and the
// root-relative path for Recursive ones. Roots that do not exist contribute
// nothing.
func Discover(roots []string, extensions []string, depth Depth) ([]string, error) {
	seen := make(map[string]bool)
	var found []string

	for _, root := range roots {
		files, err := list(root, extensions, depth)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			key, err := filepath.Rel(root, file)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			found = append(found, file)
		}
	}

	return found, nil
}

func list(root string, extensions []string, depth Depth) ([]string, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("discovery root %s is not a directory", root)
	}

	var files []string
	switch depth {
	case Shallow:
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, entry := range entries {
			if entry.IsDir() || isHidden(entry.Name()) || !hasExtension(entry.Name(), extensions) {
				continue
			}
			files = append(files, filepath.Join(root, entry.Name()))
		}
	case Recursive:
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != root && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && hasExtension(d.Name(), extensions) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func hasExtension(name string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
