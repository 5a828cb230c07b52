package loader

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ZacxDev/pagesgen/module"
	"github.com/gobuffalo/plush"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type frontmatter struct {
	Config         *module.Config     `yaml:"config"`
	GetPath        string             `yaml:"getPath"`
	Component      string             `yaml:"component"`
	TransformProps *transformSpec     `yaml:"transformProps"`
	GetHeadConfig  *module.HeadConfig `yaml:"getHeadConfig"`
	GetRedirects   []redirectSpec     `yaml:"getRedirects"`
	GetDestination string             `yaml:"getDestination"`
	GetSources     []redirectSpec     `yaml:"getSources"`
	Status         int                `yaml:"status"`
	ContentType    string             `yaml:"contentType"`
}

type transformSpec struct {
	Markdown []string          `yaml:"markdown"`
	Set      map[string]string `yaml:"set"`
}

type redirectSpec struct {
	Source string `yaml:"source"`
	Status int    `yaml:"status"`
}

// UnmarshalYAML accepts either a bare source string or {source, status}.
func (r *redirectSpec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var source string
	if err := unmarshal(&source); err == nil {
		r.Source = source
		return nil
	}
	type plain redirectSpec
	return unmarshal((*plain)(r))
}

// Parse compiles a module source file into its raw export shape. The
// frontmatter declares config and the expression-valued exports; the body
// is the render function (templates) or handler (functions).
func Parse(kind module.Kind, path string, src []byte) (*module.Raw, error) {
	front, body, err := splitFrontmatter(path, string(src))
	if err != nil {
		return nil, err
	}

	var fm frontmatter
	if err := yaml.UnmarshalStrict([]byte(front), &fm); err != nil {
		return nil, errors.Wrap(err, "error parsing frontmatter")
	}

	raw := &module.Raw{Config: fm.Config}
	c := compiler{path: path}

	if fm.Component != "" {
		raw.Default = &module.Component{Name: fm.Component}
	}

	switch kind {
	case module.KindTemplate, module.KindModule:
		if fm.GetPath != "" {
			raw.GetPath = c.getPath("getPath", fm.GetPath)
		}
		if strings.TrimSpace(body) != "" {
			raw.Render = c.render(body, strings.HasSuffix(path, ".md"))
		}
		if fm.TransformProps != nil {
			raw.TransformProps = c.transformProps(fm.TransformProps)
		}
		if fm.GetHeadConfig != nil {
			raw.GetHeadConfig = c.headConfig(fm.GetHeadConfig)
		}
		if len(fm.GetRedirects) > 0 {
			raw.GetRedirects = c.redirects("getRedirects", fm.GetRedirects)
		}
	case module.KindRedirect:
		if fm.GetDestination != "" {
			raw.GetDestination = c.getPath("getDestination", fm.GetDestination)
		}
		if fm.GetSources != nil {
			raw.GetSources = c.redirects("getSources", fm.GetSources)
		}
	case module.KindFunction:
		if strings.TrimSpace(body) != "" {
			raw.Handler = c.handler(body, fm.Status, fm.ContentType)
		}
	}

	if c.err != nil {
		return nil, c.err
	}

	return raw, nil
}

func splitFrontmatter(path, src string) (string, string, error) {
	src = strings.ReplaceAll(strings.TrimPrefix(src, "\ufeff"), "\r\n", "\n")

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return src, "", nil
	}

	if !strings.HasPrefix(src, "---\n") {
		return "", src, nil
	}
	rest := src[len("---\n"):]
	if strings.HasPrefix(rest, "---\n") {
		return "", rest[len("---\n"):], nil
	}

	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		if strings.HasSuffix(rest, "\n---") {
			return strings.TrimSuffix(rest, "\n---"), "", nil
		}
		return "", "", errors.Errorf("invalid frontmatter in %s: missing closing ---", filepath.Base(path))
	}

	return rest[:end], rest[end+len("\n---\n"):], nil
}

// compiler parses every declared expression up front so that syntax errors
// surface at load time. The first error wins.
type compiler struct {
	path string
	err  error
}

func (c *compiler) parse(field, src string) *plush.Template {
	if c.err != nil {
		return nil
	}
	t, err := plush.Parse(src)
	if err != nil {
		c.err = errors.Wrapf(err, "error parsing %s", field)
		return nil
	}
	return t
}

func (c *compiler) getPath(field, src string) module.GetPathFunc {
	t := c.parse(field, src)
	return func(props module.Props) (string, error) {
		out, err := t.Exec(propsContext(props))
		if err != nil {
			return "", errors.Wrapf(err, "%s: executing %s", filepath.Base(c.path), field)
		}
		return strings.TrimSpace(out), nil
	}
}

func (c *compiler) render(body string, isMarkdown bool) module.RenderFunc {
	t := c.parse("template body", body)
	return func(props module.RenderProps) (string, error) {
		out, err := t.Exec(renderContext(props))
		if err != nil {
			return "", errors.Wrapf(err, "%s: executing template body", filepath.Base(c.path))
		}
		if isMarkdown {
			out = string(markdown.ToHTML([]byte(out), newMarkdownParser(), nil))
		}
		return out, nil
	}
}

func (c *compiler) transformProps(spec *transformSpec) module.TransformPropsFunc {
	sets := make(map[string]*plush.Template, len(spec.Set))
	for key, src := range spec.Set {
		sets[key] = c.parse("transformProps.set."+key, src)
	}
	fields := append([]string(nil), spec.Markdown...)

	return func(ctx context.Context, props module.Props) (module.Props, error) {
		doc := make(module.Document, len(props.Document)+len(sets))
		for k, v := range props.Document {
			doc[k] = v
		}
		for _, field := range fields {
			if s, ok := doc[field].(string); ok {
				doc[field] = string(markdown.ToHTML([]byte(s), newMarkdownParser(), nil))
			}
		}
		for key, t := range sets {
			out, err := t.Exec(propsContext(props))
			if err != nil {
				return module.Props{}, errors.Wrapf(err, "%s: executing transformProps.set.%s", filepath.Base(c.path), key)
			}
			doc[key] = out
		}
		return module.Props{Document: doc, Meta: props.Meta}, nil
	}
}

func (c *compiler) headConfig(spec *module.HeadConfig) module.HeadConfigFunc {
	title := c.parse("getHeadConfig.title", spec.Title)
	type tag struct {
		kind  string
		attrs map[string]*plush.Template
	}
	tags := make([]tag, 0, len(spec.Tags))
	for _, t := range spec.Tags {
		attrs := make(map[string]*plush.Template, len(t.Attributes))
		for name, src := range t.Attributes {
			attrs[name] = c.parse("getHeadConfig.tags."+name, src)
		}
		tags = append(tags, tag{kind: t.Type, attrs: attrs})
	}

	return func(props module.RenderProps) (*module.HeadConfig, error) {
		head := &module.HeadConfig{
			Charset:  spec.Charset,
			Lang:     spec.Lang,
			Viewport: spec.Viewport,
		}
		var err error
		if head.Title, err = title.Exec(renderContext(props)); err != nil {
			return nil, errors.Wrapf(err, "%s: executing getHeadConfig.title", filepath.Base(c.path))
		}
		for _, t := range tags {
			out := module.Tag{Type: t.kind, Attributes: make(map[string]string, len(t.attrs))}
			for name, tmpl := range t.attrs {
				if out.Attributes[name], err = tmpl.Exec(renderContext(props)); err != nil {
					return nil, errors.Wrapf(err, "%s: executing getHeadConfig tag attribute %s", filepath.Base(c.path), name)
				}
			}
			head.Tags = append(head.Tags, out)
		}
		return head, nil
	}
}

func (c *compiler) redirects(field string, specs []redirectSpec) module.RedirectsFunc {
	type source struct {
		tmpl   *plush.Template
		status int
	}
	sources := make([]source, 0, len(specs))
	for _, spec := range specs {
		sources = append(sources, source{tmpl: c.parse(field, spec.Source), status: spec.Status})
	}

	return func(props module.Props) ([]module.RedirectSource, error) {
		out := make([]module.RedirectSource, 0, len(sources))
		for _, s := range sources {
			rendered, err := s.tmpl.Exec(propsContext(props))
			if err != nil {
				return nil, errors.Wrapf(err, "%s: executing %s", filepath.Base(c.path), field)
			}
			rendered = strings.TrimSpace(rendered)
			if rendered == "" {
				continue
			}
			out = append(out, module.RedirectSource{Source: rendered, Status: s.status})
		}
		return out, nil
	}
}

func (c *compiler) handler(body string, status int, contentType string) module.HandlerFunc {
	t := c.parse("handler body", body)
	if status == 0 {
		status = 200
	}
	if contentType == "" {
		contentType = "application/json"
	}

	return func(ctx context.Context, req module.FunctionRequest) (*module.FunctionResponse, error) {
		pctx := plush.NewContextWithContext(ctx)
		pctx.Set("request", map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
			"query":  stringMap(req.Query),
			"params": stringMap(req.Params),
			"body":   req.Body,
		})
		out, err := t.Exec(pctx)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: executing handler", filepath.Base(c.path))
		}
		return &module.FunctionResponse{Status: status, ContentType: contentType, Body: out}, nil
	}
}

func propsContext(props module.Props) *plush.Context {
	ctx := plush.NewContext()
	doc := map[string]interface{}(props.Document)
	if doc == nil {
		doc = map[string]interface{}{}
	}
	ctx.Set("document", doc)
	ctx.Set("mode", string(props.Meta.Mode))
	return ctx
}

func renderContext(props module.RenderProps) *plush.Context {
	ctx := propsContext(props.Props)
	ctx.Set("path", props.Path)
	ctx.Set("relativePrefixToRoot", props.RelativePrefixToRoot)
	return ctx
}

func stringMap(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func newMarkdownParser() *parser.Parser {
	return parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
}
