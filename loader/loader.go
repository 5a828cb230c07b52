package loader

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ZacxDev/pagesgen/module"
	"github.com/pkg/errors"
)

// Loader turns a module source file into its raw export shape.
type Loader interface {
	Load(ctx context.Context, kind module.Kind, path string) (*module.Raw, error)
}

// LoadError wraps any read or compile failure with the offending path.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Cause() error {
	return e.Err
}

func loadFile(ctx context.Context, kind module.Kind, path string) (*module.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: errors.WithStack(err)}
	}
	raw, err := Parse(kind, path, src)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return raw, nil
}

// SourceLoader compiles the file on every call. Used by build-time steps
// that see each file once.
type SourceLoader struct{}

func (SourceLoader) Load(ctx context.Context, kind module.Kind, path string) (*module.Raw, error) {
	return loadFile(ctx, kind, path)
}

type stamp struct {
	modTime time.Time
	size    int64
}

type devEntry struct {
	stamp stamp
	kind  module.Kind
	raw   *module.Raw
}

// DevLoader serves the live source tree. Entries are keyed by path and
// stamped with the file's mtime and size, so an edited file is re-parsed
// even if the watcher has not called Invalidate yet.
type DevLoader struct {
	mu      sync.Mutex
	entries map[string]devEntry
}

func NewDevLoader() *DevLoader {
	return &DevLoader{entries: make(map[string]devEntry)}
}

func (l *DevLoader) Load(ctx context.Context, kind module.Kind, path string) (*module.Raw, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: errors.WithStack(err)}
	}
	current := stamp{modTime: info.ModTime(), size: info.Size()}

	l.mu.Lock()
	entry, ok := l.entries[path]
	l.mu.Unlock()
	if ok && entry.kind == kind && entry.stamp == current {
		return entry.raw, nil
	}

	raw, err := loadFile(ctx, kind, path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.entries[path] = devEntry{stamp: current, kind: kind, raw: raw}
	l.mu.Unlock()

	return raw, nil
}

// Invalidate drops the cached entry for path.
func (l *DevLoader) Invalidate(path string) {
	l.mu.Lock()
	delete(l.entries, path)
	l.mu.Unlock()
}

// Cache is an append-only path -> module store scoped to one generation
// run. Bundle artifacts are immutable, so entries are never replaced.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*module.Raw
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*module.Raw)}
}

func (c *Cache) Get(path string) (*module.Raw, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.entries[path]
	return raw, ok
}

// Put stores raw unless path is already present, and returns whichever
// entry ends up cached.
func (c *Cache) Put(path string, raw *module.Raw) *module.Raw {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[path]; ok {
		return existing
	}
	c.entries[path] = raw
	return raw
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// BundleLoader loads compiled server artifacts from dist. Loading the same
// path twice yields the same *module.Raw.
type BundleLoader struct {
	cache *Cache
}

func NewBundleLoader(cache *Cache) *BundleLoader {
	if cache == nil {
		cache = NewCache()
	}
	return &BundleLoader{cache: cache}
}

func (l *BundleLoader) Load(ctx context.Context, kind module.Kind, path string) (*module.Raw, error) {
	if raw, ok := l.cache.Get(path); ok {
		return raw, nil
	}
	raw, err := loadFile(ctx, kind, path)
	if err != nil {
		return nil, err
	}
	return l.cache.Put(path, raw), nil
}
