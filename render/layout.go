package render

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"os"
	"sort"
	"strings"

	"github.com/ZacxDev/pagesgen/module"
	"github.com/gobuffalo/plush"
	"github.com/pkg/errors"
)

//go:embed layout.plush.html
var defaultLayoutSource string

const (
	PropsScriptID   = "__PAGES_PROPS__"
	defaultCharset  = "UTF-8"
	defaultViewport = "width=device-width, initial-scale=1"
	defaultLang     = "en"
)

// Layout wraps a server-rendered component in a full HTML document.
type Layout struct {
	tmpl *plush.Template
}

func DefaultLayout() *Layout {
	l, err := ParseLayout(defaultLayoutSource)
	if err != nil {
		panic(err)
	}
	return l
}

func ParseLayout(src string) (*Layout, error) {
	t, err := plush.Parse(src)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing layout")
	}
	return &Layout{tmpl: t}, nil
}

func LoadLayout(path string) (*Layout, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	l, err := ParseLayout(string(src))
	if err != nil {
		return nil, errors.Wrapf(err, "layout %s", path)
	}
	return l, nil
}

type LayoutData struct {
	Head      *module.HeadConfig
	Body      string
	Hydration string
	Props     module.RenderProps
}

func (l *Layout) Render(data LayoutData) (string, error) {
	head := data.Head
	if head == nil {
		head = &module.HeadConfig{}
	}

	ctx := plush.NewContext()
	ctx.Set("title", head.Title)
	ctx.Set("lang", orDefault(head.Lang, defaultLang))
	ctx.Set("charset", orDefault(head.Charset, defaultCharset))
	ctx.Set("viewport", orDefault(head.Viewport, defaultViewport))
	ctx.Set("headTags", template.HTML(renderTags(head.Tags)))
	ctx.Set("body", template.HTML(data.Body))
	ctx.Set("hydration", template.HTML(data.Hydration))
	ctx.Set("document", map[string]interface{}(data.Props.Document))
	ctx.Set("mode", string(data.Props.Meta.Mode))
	ctx.Set("path", data.Props.Path)
	ctx.Set("relativePrefixToRoot", data.Props.RelativePrefixToRoot)

	out, err := l.tmpl.Exec(ctx)
	if err != nil {
		return "", errors.Wrap(err, "error executing layout")
	}
	return out, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func renderTags(tags []module.Tag) string {
	var b strings.Builder
	for _, tag := range tags {
		kind := strings.ToLower(tag.Type)
		if kind == "" {
			continue
		}
		names := make([]string, 0, len(tag.Attributes))
		for name := range tag.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("<" + kind)
		for _, name := range names {
			fmt.Fprintf(&b, ` %s="%s"`, html.EscapeString(name), html.EscapeString(tag.Attributes[name]))
		}
		b.WriteString(">")
		if kind == "script" || kind == "style" {
			b.WriteString("</" + kind + ">")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// hydrationMarkup serializes props into the page and points a module script
// at the component's client bundle.
func hydrationMarkup(props module.RenderProps, src string) (string, error) {
	data, err := json.Marshal(props)
	if err != nil {
		return "", errors.Wrap(err, "serializing hydration props")
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<script id="%s" type="application/json">%s</script>`, PropsScriptID, data)
	if src != "" {
		fmt.Fprintf(&b, "\n"+`<script type="module" src="%s"></script>`, html.EscapeString(src))
	}
	return b.String(), nil
}
