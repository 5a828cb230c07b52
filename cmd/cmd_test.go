package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZacxDev/pagesgen/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, name, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestCommands(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pages.yaml", "origin: https://example.com\ngenerate:\n  concurrency: 2\n")
	writeFile(t, root, "src/templates/post.plush.html", `---
config:
  streamId: posts
getPath: 'blog/<%= document["slug"] %>'
---
<article><%= document["title"] %></article>
`)
	writeFile(t, root, "localData/posts.json", `[
		{"id": "p1", "locale": "en", "slug": "first", "title": "First", "__": {"streamId": "posts"}},
		{"id": "p2", "locale": "en", "slug": "second", "title": "Second", "__": {"streamId": "posts"}}
	]`)
	cfg := filepath.Join(root, "pages.yaml")

	require.NoError(t, run(t, "--config", cfg, "--root", root, "features"))
	fc, err := features.ReadFile(filepath.Join(root, "sites-config", "features.json"))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "posts", fc.Features[0].StreamID)

	require.NoError(t, run(t, "--config", cfg, "--root", root, "build", "--minify=false"))
	assert.FileExists(t, filepath.Join(root, "dist", "plugin", "manifest.json"))

	require.NoError(t, run(t, "--config", cfg, "--root", root, "generate"))
	assert.FileExists(t, filepath.Join(root, "dist", "public", "blog", "first", "index.html"))
	assert.FileExists(t, filepath.Join(root, "dist", "public", "blog", "second", "index.html"))
	assert.FileExists(t, filepath.Join(root, "dist", "public", "sitemap.xml"))
}

func TestGenerate_WithoutBuildFails(t *testing.T) {
	root := t.TempDir()

	err := run(t, "--config=", "--root", root, "generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run build first")
}
