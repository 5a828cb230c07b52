package module

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getPath(props Props) (string, error) {
	return "index.html", nil
}

func render(props RenderProps) (string, error) {
	return "<html></html>", nil
}

func validTemplate() *Raw {
	return &Raw{
		GetPath: getPath,
		Render:  render,
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func TestNormalize_DefaultsName(t *testing.T) {
	m := Normalize(KindTemplate, "/src/templates/location.plush.html", validTemplate(), NormalizeOptions{})

	assert.Equal(t, "location.plush.html", m.Filename)
	assert.Equal(t, "location", m.TemplateName)
	assert.Equal(t, "location", m.Config.Name)
	assert.Equal(t, "/src/templates/location.plush.html", m.Path)
}

func TestNormalize_KeepsDeclaredName(t *testing.T) {
	raw := validTemplate()
	raw.Config = &Config{Name: "store-locator", StreamID: "stores"}

	m := Normalize(KindTemplate, "/src/templates/locator.md", raw, NormalizeOptions{})

	assert.Equal(t, "locator", m.TemplateName)
	assert.Equal(t, "store-locator", m.Config.Name)
	assert.Equal(t, "stores", m.Config.StreamID)
	assert.Nil(t, m.Config.Stream)
}

func TestNormalize_StripsFingerprintForProdBundle(t *testing.T) {
	dev := Normalize(KindTemplate, "/src/templates/store-page.plush.html", nil, NormalizeOptions{})
	prod := Normalize(KindTemplate, "/dist/server/store-page-3f9a1c2b.plush.html", nil, NormalizeOptions{ProdBundle: true})

	assert.Equal(t, "store-page", dev.TemplateName)
	assert.Equal(t, dev.TemplateName, prod.TemplateName)
	assert.Equal(t, "store-page", prod.Config.Name)
	assert.Equal(t, "store-page.plush.html", prod.Filename)
	assert.Equal(t, "/dist/server/store-page-3f9a1c2b.plush.html", prod.Path)
}

func TestSourceFilename(t *testing.T) {
	assert.Equal(t, "location.plush.html", SourceFilename("location-0ccbeb9a.plush.html"))
	assert.Equal(t, "stores.yaml", SourceFilename("stores-1a2b3c4d.yaml"))
	assert.Equal(t, "store-page.md", SourceFilename("store-page-3f9a1c2b.md"))
}

func TestNormalize_FunctionSlug(t *testing.T) {
	raw := &Raw{Handler: func(ctx context.Context, req FunctionRequest) (*FunctionResponse, error) { return nil, nil }}

	m := Normalize(KindFunction, "/src/functions/http/api/users/[id].plush", raw, NormalizeOptions{Root: "/src/functions/http"})

	assert.Equal(t, "api/users/[id]", m.Slug)
	assert.Equal(t, "[id]", m.Config.Name)
	assert.Equal(t, "api/users/[id]", m.Key())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		kind        Kind
		raw         *Raw
		errContains string
	}{
		{
			name: "valid template",
			kind: KindTemplate,
			raw:  validTemplate(),
		},
		{
			name:        "missing getPath",
			kind:        KindTemplate,
			raw:         &Raw{Render: render},
			errContains: "Template foo.plush.html is missing an exported getPath function.",
		},
		{
			name: "streamId and stream",
			kind: KindTemplate,
			raw: &Raw{
				Config:  &Config{StreamID: "a", Stream: &Stream{ID: "b"}},
				GetPath: getPath,
				Render:  render,
			},
			errContains: `Template foo.plush.html must not define both a "streamId" and a "stream".`,
		},
		{
			name:        "no default and no render",
			kind:        KindTemplate,
			raw:         &Raw{GetPath: getPath},
			errContains: "Template foo.plush.html is missing a default export or a render function.",
		},
		{
			name: "default component only",
			kind: KindTemplate,
			raw:  &Raw{GetPath: getPath, Default: &Component{Name: "Card"}},
		},
		{
			name:        "redirect without destination",
			kind:        KindRedirect,
			raw:         &Raw{GetSources: func(Props) ([]RedirectSource, error) { return nil, nil }},
			errContains: "Redirect foo.plush.html is missing an exported getDestination function.",
		},
		{
			name:        "redirect without sources",
			kind:        KindRedirect,
			raw:         &Raw{GetDestination: getPath},
			errContains: "Redirect foo.plush.html is missing an exported getSources function.",
		},
		{
			name:        "function without handler",
			kind:        KindFunction,
			raw:         &Raw{},
			errContains: "Function foo.plush.html is missing a default export handler.",
		},
		{
			name:        "module without component",
			kind:        KindModule,
			raw:         &Raw{Render: render},
			errContains: "Module foo.plush.html is missing a default export.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := Normalize(tc.kind, "/src/foo.plush.html", tc.raw, NormalizeOptions{})
			err := Validate(m)
			if tc.errContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errContains)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "foo.plush.html", verr.Filename)
		})
	}
}

func TestValidate_MissingNameIsCheckedFirst(t *testing.T) {
	m := Normalize(KindTemplate, "/src/foo.plush.html", &Raw{}, NormalizeOptions{})
	m.Config.Name = ""

	err := Validate(m)
	require.Error(t, err)
	assert.Equal(t, `Template foo.plush.html is missing a "name" in the config function.`, err.Error())
}

func TestValidate_Stream(t *testing.T) {
	base := func(loc Localization, filter StreamFilter) *Raw {
		raw := validTemplate()
		raw.Config = &Config{Stream: &Stream{
			ID:           "loc-stream",
			Fields:       []string{"slug"},
			Filter:       filter,
			Localization: loc,
		}}
		return raw
	}
	types := StreamFilter{EntityTypes: []string{"location"}}

	tests := []struct {
		name        string
		raw         *Raw
		errContains string
	}{
		{name: "locales", raw: base(Localization{Locales: []string{"en"}}, types)},
		{name: "primary", raw: base(Localization{Primary: boolPtr(true)}, types)},
		{
			name:        "both",
			raw:         base(Localization{Locales: []string{"en"}, Primary: boolPtr(true)}, types),
			errContains: "not both",
		},
		{
			name:        "neither",
			raw:         base(Localization{}, types),
			errContains: "either locales or primary",
		},
		{
			name:        "empty filter",
			raw:         base(Localization{Locales: []string{"en"}}, StreamFilter{}),
			errContains: "filter must set at least one",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := Normalize(KindTemplate, "/src/location.plush.html", tc.raw, NormalizeOptions{})
			err := Validate(m)
			if tc.errContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "Template location.plush.html declares an invalid stream")
			assert.Contains(t, err.Error(), tc.errContains)
		})
	}
}

func TestStreamWithoutIDIsStatic(t *testing.T) {
	raw := validTemplate()
	raw.Config = &Config{Stream: &Stream{
		Filter:       StreamFilter{EntityIDs: []string{"1"}},
		Localization: Localization{Locales: []string{"en"}},
	}}
	m := Normalize(KindTemplate, "/src/page.plush.html", raw, NormalizeOptions{})

	require.NoError(t, Validate(m))
	assert.True(t, m.IsStatic())
}

func TestBuildCollection(t *testing.T) {
	a := Normalize(KindTemplate, "/src/a.plush.html", validTemplate(), NormalizeOptions{})
	b := Normalize(KindTemplate, "/src/b.plush.html", validTemplate(), NormalizeOptions{})

	c, err := BuildCollection(KindTemplate, []*Internal{a, b})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	all := c.All()
	require.Len(t, all, 2)
	assert.Same(t, a, all[0])
	assert.Same(t, b, all[1])

	got, ok := c.Get("b")
	require.True(t, ok)
	assert.Same(t, b, got)

	got, ok = c.Find("B")
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = c.Get("B")
	assert.False(t, ok)
}

func TestBuildCollection_DuplicateName(t *testing.T) {
	first := validTemplate()
	first.Config = &Config{Name: "location"}
	second := validTemplate()
	second.Config = &Config{Name: "location"}

	modules := []*Internal{
		Normalize(KindTemplate, "/src/one.plush.html", first, NormalizeOptions{}),
		Normalize(KindTemplate, "/src/two.plush.html", second, NormalizeOptions{}),
	}

	c, err := BuildCollection(KindTemplate, modules)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Equal(t, `Templates must have unique feature names. Found multiple modules with "location"`, err.Error())
}

func TestBuildCollection_DuplicateFunctionSlug(t *testing.T) {
	modules := []*Internal{
		{Kind: KindFunction, Filename: "hello.plush", Slug: "api/hello"},
		{Kind: KindFunction, Filename: "hello.plush.json", Slug: "api/hello"},
	}

	_, err := BuildCollection(KindFunction, modules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Functions must have unique slugs. Found multiple modules with "api/hello"`)
}
