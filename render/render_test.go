package render

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/ZacxDev/pagesgen/config"
	"github.com/ZacxDev/pagesgen/content"
	"github.com/ZacxDev/pagesgen/features"
	"github.com/ZacxDev/pagesgen/loader"
	"github.com/ZacxDev/pagesgen/manifest"
	"github.com/ZacxDev/pagesgen/module"
	"github.com/ZacxDev/pagesgen/utils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const locationTemplate = `---
config:
  name: location
  hydrate: true
  stream:
    $id: loc-stream
    fields: [slug]
    filter:
      entityTypes: [location]
    localization:
      locales: [en]
getPath: '<%= document["slug"] %>'
component: LocationCard
getHeadConfig:
  title: '<%= document["name"] %>'
  tags:
    - type: meta
      attributes:
        name: description
        content: 'Visit <%= document["name"] %>'
getRedirects:
  - 'stores/<%= document["slug"] %>'
  - source: legacy/<%= document["slug"] %>
    status: 302
---
`

const locationCard = `<article><h1><%= document["name"] %></h1><%= component("Hours") %></article>`

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

type project struct {
	root      string
	structure *config.Structure
}

func newProject(t *testing.T) *project {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/templates/location.plush.html", locationTemplate)
	writeFile(t, root, "src/templates/about.plush.html", "---\ngetPath: about.html\n---\n<p>about <%= relativePrefixToRoot %></p>\n")
	writeFile(t, root, "src/components/LocationCard.plush.html", locationCard)
	writeFile(t, root, "src/components/Hours.plush.html", `<p class="hours">9-5</p>`)
	writeFile(t, root, "localData/austin.json", `{"id": "loc-1", "locale": "en", "slug": "tx/austin", "name": "Austin"}`)

	v, err := config.NewViper("")
	require.NoError(t, err)
	v.Set("root", root)
	p, err := config.Load(v)
	require.NoError(t, err)

	return &project{root: root, structure: config.NewStructure(p)}
}

func (p *project) orchestrator() *Orchestrator {
	return &Orchestrator{
		Resolver:   &DevResolver{Structure: p.structure, Loader: loader.NewDevLoader()},
		Documents:  content.NewLocalStore(p.structure.LocalData().GetAbsolutePath()),
		Components: NewPlushComponents(p.structure.ComponentsRoot().GetAbsolutePath()),
		Hydration:  ClientPaths{"location": "assets/hydrate/location_ABC.js"},
		Mode:       module.Development,
	}
}

func TestEndToEnd_LocationFeature(t *testing.T) {
	p := newProject(t)
	ctx := context.Background()

	templates, err := loader.Templates(ctx, loader.SourceLoader{}, p.structure)
	require.NoError(t, err)

	location, ok := templates.Get("location")
	require.True(t, ok)

	cfg := features.Emit(mustOnly(t, location))
	require.Len(t, cfg.Features, 1)
	assert.Equal(t, "location", cfg.Features[0].Name)
	assert.NotNil(t, cfg.Features[0].EntityPageSet)
	assert.Equal(t, "loc-stream", cfg.Features[0].StreamID)
	require.Len(t, cfg.Streams, 1)
	assert.Equal(t, "loc-stream", cfg.Streams[0].ID)

	page, err := p.orchestrator().Generate(ctx, Request{Feature: "location", EntityID: "loc-1", Locale: "en"})
	require.NoError(t, err)

	assert.Equal(t, "location", page.Feature)
	assert.Equal(t, "tx/austin", page.Path)
	assert.Equal(t, "tx/austin/index.html", page.File)
	assert.Equal(t, "../../", page.RelativePrefixToRoot)

	assert.Contains(t, page.HTML, "<title>Austin</title>")
	assert.Contains(t, page.HTML, `<meta content="Visit Austin" name="description">`)
	assert.Contains(t, page.HTML, "<article><h1>Austin</h1>")
	assert.Contains(t, page.HTML, `<p class="hours">9-5</p>`)
	assert.Contains(t, page.HTML, `<script type="module" src="../../assets/hydrate/location_ABC.js"></script>`)

	propsJSON := regexp.MustCompile(`<script id="__PAGES_PROPS__" type="application/json">(.*?)</script>`).FindStringSubmatch(page.HTML)
	require.Len(t, propsJSON, 2)
	var hydrated map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(propsJSON[1]), &hydrated))
	assert.Equal(t, "tx/austin", hydrated["path"])
	assert.Equal(t, "../../", hydrated["relativePrefixToRoot"])
	assert.Equal(t, map[string]interface{}{"mode": "development"}, hydrated["__meta"])

	assert.NoError(t, page.RedirectErr)
	assert.Equal(t, []Redirect{
		{Source: "stores/tx/austin", Destination: "tx/austin", Status: 301},
		{Source: "legacy/tx/austin", Destination: "tx/austin", Status: 302},
	}, page.Redirects)
}

func mustOnly(t *testing.T, m *module.Internal) *module.Collection {
	t.Helper()
	c, err := module.BuildCollection(module.KindTemplate, []*module.Internal{m})
	require.NoError(t, err)
	return c
}

func TestGenerate_RenderIsVerbatim(t *testing.T) {
	p := newProject(t)

	page, err := p.orchestrator().Generate(context.Background(), Request{Feature: "ABOUT"})
	require.NoError(t, err)

	assert.Equal(t, "about.html", page.File)
	assert.Equal(t, "<p>about </p>\n", page.HTML)
}

func TestGenerate_TemplateNotFound(t *testing.T) {
	p := newProject(t)

	_, err := p.orchestrator().Generate(context.Background(), Request{Feature: "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestGenerate_DocumentNotFound(t *testing.T) {
	p := newProject(t)

	_, err := p.orchestrator().Generate(context.Background(), Request{Feature: "location", EntityID: "nope", Locale: "fr"})
	require.Error(t, err)

	var notFound *DocumentNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "Could not find document data for entityId and locale: nope fr", err.Error())
}

func TestRenderPage_EmptyPathIsError(t *testing.T) {
	tpl := module.Normalize(module.KindTemplate, "/src/templates/blank.plush.html", &module.Raw{
		GetPath: func(module.Props) (string, error) { return "  ", nil },
		Render:  func(module.RenderProps) (string, error) { return "x", nil },
	}, module.NormalizeOptions{})

	_, err := (&Orchestrator{}).RenderPage(context.Background(), tpl, nil)
	require.Error(t, err)

	var rerr *RenderError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "blank.plush.html", rerr.Template)
	assert.Contains(t, err.Error(), "non-empty")
}

func TestRenderPage_TransformPropsReplacesDocument(t *testing.T) {
	tpl := module.Normalize(module.KindTemplate, "/src/templates/t.plush.html", &module.Raw{
		TransformProps: func(ctx context.Context, props module.Props) (module.Props, error) {
			return module.Props{Document: module.Document{"computed": "a/b.html"}, Meta: props.Meta}, nil
		},
		GetPath: func(props module.Props) (string, error) {
			return props.Document["computed"].(string), nil
		},
		Render: func(props module.RenderProps) (string, error) {
			return string(props.Meta.Mode), nil
		},
	}, module.NormalizeOptions{})

	page, err := (&Orchestrator{}).RenderPage(context.Background(), tpl, module.Document{"original": true})
	require.NoError(t, err)
	assert.Equal(t, "a/b.html", page.Path)
	assert.Equal(t, "../", page.RelativePrefixToRoot)
	assert.Equal(t, "production", page.HTML)
}

func TestRenderPage_RedirectFailureDoesNotBlockPage(t *testing.T) {
	tpl := module.Normalize(module.KindTemplate, "/src/templates/t.plush.html", &module.Raw{
		GetPath:      func(module.Props) (string, error) { return "index.html", nil },
		Render:       func(module.RenderProps) (string, error) { return "ok", nil },
		GetRedirects: func(module.Props) ([]module.RedirectSource, error) { return nil, errors.New("boom") },
	}, module.NormalizeOptions{})

	page, err := (&Orchestrator{}).RenderPage(context.Background(), tpl, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", page.HTML)
	assert.EqualError(t, page.RedirectErr, "boom")
	assert.Empty(t, page.Redirects)
}

func TestGenerateRedirects(t *testing.T) {
	raw, err := loader.Parse(module.KindRedirect, "stores.yaml", []byte(
		"getDestination: stores/<%= document[\"slug\"] %>\ngetSources:\n  - shops/<%= document[\"slug\"] %>\n  - source: old\n    status: 308\n"))
	require.NoError(t, err)
	m := module.Normalize(module.KindRedirect, "/src/redirects/stores.yaml", raw, module.NormalizeOptions{})
	require.NoError(t, module.Validate(m))

	redirects, err := GenerateRedirects(context.Background(), m, module.Props{Document: module.Document{"slug": "austin"}})
	require.NoError(t, err)
	assert.Equal(t, []Redirect{
		{Source: "shops/austin", Destination: "stores/austin", Status: 301},
		{Source: "old", Destination: "stores/austin", Status: 308},
	}, redirects)
}

func TestProdResolver(t *testing.T) {
	dist := t.TempDir()
	writeFile(t, dist, "server/location-3f9a1c2b.plush.html", locationTemplate)

	m := manifest.New()
	m.ServerPaths["location"] = "server/location-3f9a1c2b.plush.html"
	m.ClientPaths["location"] = "assets/hydrate/location_X.js"
	r := &ProdResolver{Manifest: m, Dist: dist, Loader: loader.NewBundleLoader(loader.NewCache())}

	tpl, err := r.ResolveTemplate(context.Background(), "location")
	require.NoError(t, err)
	assert.Equal(t, "location", tpl.TemplateName)
	assert.Equal(t, "location", tpl.Config.Name)

	again, err := r.ResolveTemplate(context.Background(), "location")
	require.NoError(t, err)
	assert.Equal(t, tpl.Path, again.Path)

	client, ok := r.ClientPath("location")
	assert.True(t, ok)
	assert.Equal(t, "assets/hydrate/location_X.js", client)

	_, err = r.ResolveTemplate(context.Background(), "unknown")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestRenderModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "components/Widget.plush.html", `<div class="widget"><%= relativePrefixToRoot %></div>`)

	m := module.Normalize(module.KindModule, "/src/modules/widget.plush.html", &module.Raw{
		Default: &module.Component{Name: "Widget"},
	}, module.NormalizeOptions{})
	require.NoError(t, module.Validate(m))

	o := &Orchestrator{
		Components:      NewPlushComponents(filepath.Join(root, "components")),
		ModuleHydration: ClientPaths{"widget": "assets/modules/widget_Z.js"},
	}
	page, err := o.RenderModule(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, "modules/widget.html", page.File)
	assert.Contains(t, page.HTML, `<div class="widget">../</div>`)
	assert.Contains(t, page.HTML, `src="../assets/modules/widget_Z.js"`)
}

func TestOutputFile(t *testing.T) {
	assert.Equal(t, "tx/austin/index.html", OutputFile("tx/austin"))
	assert.Equal(t, "tx/austin/index.html", OutputFile("tx/austin/"))
	assert.Equal(t, "about.html", OutputFile("about.html"))
	assert.Equal(t, "feed.xml", OutputFile("feed.xml"))
	assert.Equal(t, "robots.txt", OutputFile("robots.txt"))
	assert.Equal(t, "About.HTM", OutputFile("About.HTM"))
}

func TestOutputFile_DottedSlugsStayDirectories(t *testing.T) {
	for _, slug := range []string{"locations/austin", "locations/st.louis", "v1.2"} {
		t.Run(slug, func(t *testing.T) {
			file := OutputFile(slug)
			assert.Equal(t, slug+"/index.html", file)
			assert.Equal(t, strings.Repeat("../", strings.Count(slug, "/")+1), utils.GetRelativePrefixToRootFromPath(file))
		})
	}
}
