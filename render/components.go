package render

import (
	"html/template"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ZacxDev/pagesgen/module"
	"github.com/gobuffalo/plush"
	"github.com/pkg/errors"
)

// ComponentRenderer server-renders a named view component.
type ComponentRenderer interface {
	RenderComponent(name string, props module.RenderProps) (string, error)
}

// PlushComponents renders <Name>.plush.html files from one directory.
// Parsed templates are reused until the file's mtime changes. Components
// may nest other components with <%= component("Name") %>.
type PlushComponents struct {
	Dir string

	mu    sync.Mutex
	cache map[string]parsedComponent
}

type parsedComponent struct {
	modTime time.Time
	tmpl    *plush.Template
}

func NewPlushComponents(dir string) *PlushComponents {
	return &PlushComponents{Dir: dir, cache: map[string]parsedComponent{}}
}

func (p *PlushComponents) Path(name string) string {
	return filepath.Join(p.Dir, name+".plush.html")
}

func (p *PlushComponents) template(name string) (*plush.Template, error) {
	path := p.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "component %s", name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cache == nil {
		p.cache = map[string]parsedComponent{}
	}
	if c, ok := p.cache[path]; ok && c.modTime.Equal(info.ModTime()) {
		return c.tmpl, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	t, err := plush.Parse(string(src))
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing component %s", name)
	}
	p.cache[path] = parsedComponent{modTime: info.ModTime(), tmpl: t}
	return t, nil
}

func (p *PlushComponents) RenderComponent(name string, props module.RenderProps) (string, error) {
	return p.render(name, props, 0)
}

const maxComponentDepth = 32

func (p *PlushComponents) render(name string, props module.RenderProps, depth int) (string, error) {
	if depth > maxComponentDepth {
		return "", errors.Errorf("component %s: nesting deeper than %d", name, maxComponentDepth)
	}
	t, err := p.template(name)
	if err != nil {
		return "", err
	}

	doc := map[string]interface{}(props.Document)
	if doc == nil {
		doc = map[string]interface{}{}
	}
	ctx := plush.NewContext()
	ctx.Set("document", doc)
	ctx.Set("mode", string(props.Meta.Mode))
	ctx.Set("path", props.Path)
	ctx.Set("relativePrefixToRoot", props.RelativePrefixToRoot)
	ctx.Set("component", func(child string) (template.HTML, error) {
		out, err := p.render(child, props, depth+1)
		return template.HTML(out), err
	})

	out, err := t.Exec(ctx)
	if err != nil {
		return "", errors.Wrapf(err, "executing component %s", name)
	}
	return out, nil
}
