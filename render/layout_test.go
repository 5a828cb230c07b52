package render

import (
	"path/filepath"
	"testing"

	"github.com/ZacxDev/pagesgen/module"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	out, err := DefaultLayout().Render(LayoutData{
		Head: &module.HeadConfig{
			Title: "Tom & Jerry",
			Tags: []module.Tag{
				{Type: "link", Attributes: map[string]string{"rel": "stylesheet", "href": "a.css?x=1&y=2"}},
				{Type: "script", Attributes: map[string]string{"src": "x.js"}},
			},
		},
		Body: "<main>hi</main>",
	})
	require.NoError(t, err)

	assert.Contains(t, out, `<html lang="en">`)
	assert.Contains(t, out, `<meta charset="UTF-8">`)
	assert.Contains(t, out, "<title>Tom &amp; Jerry</title>")
	assert.Contains(t, out, `<link href="a.css?x=1&amp;y=2" rel="stylesheet">`)
	assert.Contains(t, out, `<script src="x.js"></script>`)
	assert.Contains(t, out, `<div id="reactele"><main>hi</main></div>`)
}

func TestLoadLayout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "layout.plush.html", `<body data-path="<%= path %>"><%= body %></body>`)

	l, err := LoadLayout(path)
	require.NoError(t, err)

	out, err := l.Render(LayoutData{Body: "<b>x</b>", Props: module.RenderProps{Path: "a/b"}})
	require.NoError(t, err)
	assert.Equal(t, `<body data-path="a/b"><b>x</b></body>`, out)

	_, err = LoadLayout(filepath.Join(t.TempDir(), "missing.plush.html"))
	assert.Error(t, err)
}

func TestHydrationMarkup_EscapesScriptContent(t *testing.T) {
	out, err := hydrationMarkup(module.RenderProps{
		Props: module.Props{Document: module.Document{"bio": "</script><script>alert(1)</script>"}},
	}, "")
	require.NoError(t, err)

	assert.NotContains(t, out, "</script><script>alert")
	assert.NotContains(t, out, `type="module"`)
}

func TestPlushComponents_Missing(t *testing.T) {
	c := NewPlushComponents(t.TempDir())

	_, err := c.RenderComponent("Nope", module.RenderProps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "component Nope")
}
