package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRelativePrefixToRootFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "foobar.txt", want: ""},
		{path: "index.html", want: ""},
		{path: "tx/austin", want: "../"},
		{path: "foo/bar/foo/foobar.txt", want: "../../../"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, GetRelativePrefixToRootFromPath(tc.path))
		})
	}
}

func TestGetRelativePrefixToRootFromPath_DependsOnlyOnDepth(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("prefix has one ../ per directory segment", prop.ForAll(
		func(dirs []string, file string) bool {
			path := strings.Join(append(append([]string{}, dirs...), file), "/")
			return GetRelativePrefixToRootFromPath(path) == strings.Repeat("../", len(dirs))
		},
		gen.SliceOf(gen.Identifier()),
		gen.Identifier(),
	))

	properties.Property("segment content does not matter", prop.ForAll(
		func(a, b []string) bool {
			if len(a) != len(b) {
				return true
			}
			pa := strings.Join(append(append([]string{}, a...), "index.html"), "/")
			pb := strings.Join(append(append([]string{}, b...), "page.html"), "/")
			return GetRelativePrefixToRootFromPath(pa) == GetRelativePrefixToRootFromPath(pb)
		},
		gen.SliceOfN(3, gen.Identifier()),
		gen.SliceOfN(3, gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestGenerateSitemapContent(t *testing.T) {
	lastMod := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	content, err := GenerateSitemapContent("https://example.com/", []string{
		"tx/austin",
		"index.html",
		"robots.txt",
		"blog/index.html",
	}, lastMod)
	require.NoError(t, err)

	assert.Contains(t, content, "<loc>https://example.com/tx/austin</loc>")
	assert.Contains(t, content, "<loc>https://example.com/</loc>")
	assert.Contains(t, content, "<loc>https://example.com/blog/</loc>")
	assert.NotContains(t, content, "robots.txt")
	assert.Contains(t, content, "<lastmod>2026-10-15</lastmod>")
}

func TestWriteSitemap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "sitemap.xml")

	require.NoError(t, WriteSitemap(path, "https://example.com", []string{"index.html"}, time.Now()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))
}
