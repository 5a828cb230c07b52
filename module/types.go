package module

import (
	"context"
)

// module/types.go

type Kind int

const (
	KindTemplate Kind = iota
	KindRedirect
	KindFunction
	KindModule
)

func (k Kind) String() string {
	switch k {
	case KindTemplate:
		return "Template"
	case KindRedirect:
		return "Redirect"
	case KindFunction:
		return "Function"
	case KindModule:
		return "Module"
	default:
		return "Unknown"
	}
}

type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

type Meta struct {
	Mode Mode `json:"mode"`
}

// Document is one fetched content record. Static pages get an empty one.
type Document map[string]interface{}

type Props struct {
	Document Document `json:"document"`
	Meta     Meta     `json:"__meta"`
}

// RenderProps are computed by the orchestrator, never supplied by a template.
type RenderProps struct {
	Props
	Path                 string `json:"path"`
	RelativePrefixToRoot string `json:"relativePrefixToRoot"`
}

type Stream struct {
	ID           string           `yaml:"$id" json:"$id,omitempty"`
	Fields       []string         `yaml:"fields" json:"fields,omitempty"`
	Filter       StreamFilter     `yaml:"filter" json:"filter"`
	Localization Localization     `yaml:"localization" json:"localization"`
	Transform    *StreamTransform `yaml:"transform,omitempty" json:"transform,omitempty"`
}

type StreamFilter struct {
	EntityIDs      []string `yaml:"entityIds,omitempty" json:"entityIds,omitempty"`
	EntityTypes    []string `yaml:"entityTypes,omitempty" json:"entityTypes,omitempty"`
	SavedFilterIDs []string `yaml:"savedFilterIds,omitempty" json:"savedFilterIds,omitempty"`
}

func (f StreamFilter) Empty() bool {
	return len(f.EntityIDs) == 0 && len(f.EntityTypes) == 0 && len(f.SavedFilterIDs) == 0
}

// Localization holds either an explicit locale list or the primary flag.
type Localization struct {
	Locales []string `yaml:"locales,omitempty" json:"locales,omitempty"`
	Primary *bool    `yaml:"primary,omitempty" json:"primary,omitempty"`
}

type StreamTransform struct {
	ExpandOptionFields                  []string `yaml:"expandOptionFields,omitempty" json:"expandOptionFields,omitempty"`
	ReplaceOptionValuesWithDisplayNames []string `yaml:"replaceOptionValuesWithDisplayNames,omitempty" json:"replaceOptionValuesWithDisplayNames,omitempty"`
}

type Config struct {
	Name                    string   `yaml:"name"`
	StreamID                string   `yaml:"streamId"`
	Stream                  *Stream  `yaml:"stream"`
	Hydrate                 bool     `yaml:"hydrate"`
	AlternateLanguageFields []string `yaml:"alternateLanguageFields"`
}

type Component struct {
	Name string
}

type Tag struct {
	Type       string            `yaml:"type" json:"type"`
	Attributes map[string]string `yaml:"attributes" json:"attributes"`
}

type HeadConfig struct {
	Title    string `yaml:"title"`
	Charset  string `yaml:"charset"`
	Lang     string `yaml:"lang"`
	Viewport string `yaml:"viewport"`
	Tags     []Tag  `yaml:"tags"`
}

type RedirectSource struct {
	Source string `json:"source"`
	Status int    `json:"status"`
}

type FunctionRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Params map[string]string
	Body   string
}

type FunctionResponse struct {
	Status      int
	ContentType string
	Body        string
}

type (
	GetPathFunc        func(props Props) (string, error)
	TransformPropsFunc func(ctx context.Context, props Props) (Props, error)
	RenderFunc         func(props RenderProps) (string, error)
	HeadConfigFunc     func(props RenderProps) (*HeadConfig, error)
	RedirectsFunc      func(props Props) ([]RedirectSource, error)
	HandlerFunc        func(ctx context.Context, req FunctionRequest) (*FunctionResponse, error)
)

// Raw is the as-authored export shape of a module file. Every field is
// optional; Validate decides what a given Kind actually requires.
type Raw struct {
	Config         *Config
	GetPath        GetPathFunc
	Render         RenderFunc
	Default        *Component
	TransformProps TransformPropsFunc
	GetHeadConfig  HeadConfigFunc
	GetRedirects   RedirectsFunc
	GetDestination GetPathFunc
	GetSources     RedirectsFunc
	Handler        HandlerFunc
}

// Internal is the normalized module record used by the rest of the pipeline.
type Internal struct {
	Kind         Kind
	Path         string
	Filename     string
	TemplateName string
	Slug         string
	Config       Config

	GetPath        GetPathFunc
	Render         RenderFunc
	Default        *Component
	TransformProps TransformPropsFunc
	GetHeadConfig  HeadConfigFunc
	GetRedirects   RedirectsFunc
	GetDestination GetPathFunc
	GetSources     RedirectsFunc
	Handler        HandlerFunc
}

// IsStatic reports whether the template declares no stream id at all.
// A stream without a $id counts as static.
func (m *Internal) IsStatic() bool {
	return m.StreamID() == ""
}

// StreamID prefers the declared stream's $id over a bare streamId.
func (m *Internal) StreamID() string {
	if m.Config.Stream != nil && m.Config.Stream.ID != "" {
		return m.Config.Stream.ID
	}
	return m.Config.StreamID
}

// Key is the collection key: slug for functions, feature name otherwise.
func (m *Internal) Key() string {
	if m.Kind == KindFunction {
		return m.Slug
	}
	return m.Config.Name
}
