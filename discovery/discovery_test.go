package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	}
}

func TestDiscover_DomainOverridesShared(t *testing.T) {
	tmp := t.TempDir()
	domain := filepath.Join(tmp, "templates", "brand")
	shared := filepath.Join(tmp, "shared")

	writeFiles(t, domain, "test.plush.html")
	writeFiles(t, shared, "test.plush.html", "other.md")

	files, err := Discover([]string{domain, shared}, TemplateExtensions, Shallow)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(domain, "test.plush.html"),
		filepath.Join(shared, "other.md"),
	}, files)
}

func TestDiscover_DomainOnlyFileKeepsSharedFiles(t *testing.T) {
	tmp := t.TempDir()
	domain := filepath.Join(tmp, "domain")
	shared := filepath.Join(tmp, "shared")
	writeFiles(t, shared, "a.plush.html", "b.plush.html")

	before, err := Discover([]string{domain, shared}, TemplateExtensions, Shallow)
	require.NoError(t, err)

	writeFiles(t, domain, "c.plush.html")

	after, err := Discover([]string{domain, shared}, TemplateExtensions, Shallow)
	require.NoError(t, err)

	assert.Len(t, before, 2)
	assert.Len(t, after, 3)
	for _, f := range before {
		assert.Contains(t, after, f)
	}
}

func TestDiscover_EmptyInput(t *testing.T) {
	files, err := Discover(nil, TemplateExtensions, Shallow)
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = Discover([]string{filepath.Join(t.TempDir(), "missing")}, TemplateExtensions, Recursive)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_ShallowIgnoresSubdirectories(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "top.plush.html", "nested/deep.plush.html", "notes.txt", ".hidden.plush.html")

	files, err := Discover([]string{root}, TemplateExtensions, Shallow)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "top.plush.html")}, files)
}

func TestDiscover_RecursiveWalksEveryLevel(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"http/api/hello.plush",
		"http/api/users/[id].plush",
		"http/.cache/skip.plush",
		"readme.md",
	)

	files, err := Discover([]string{root}, FunctionExtensions, Recursive)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "http/api/hello.plush"),
		filepath.Join(root, "http/api/users/[id].plush"),
	}, files)
}

func TestDiscover_RootIsFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, nil, 0644))

	_, err := Discover([]string{root}, TemplateExtensions, Shallow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestDiscover_RecursiveKeysByRelativePath(t *testing.T) {
	tmp := t.TempDir()
	domain := filepath.Join(tmp, "domain")
	shared := filepath.Join(tmp, "shared")
	writeFiles(t, domain, "api/hello.plush")
	writeFiles(t, shared, "api/hello.plush", "admin/hello.plush")

	files, err := Discover([]string{domain, shared}, FunctionExtensions, Recursive)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(domain, "api/hello.plush"),
		filepath.Join(shared, "admin/hello.plush"),
	}, files)
}
