// Package features projects a template collection into the features.json
// manifest read by the publishing pipeline.
package features

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ZacxDev/pagesgen/module"
	"github.com/pkg/errors"
)

const (
	TemplateType      = "JS"
	StreamSource      = "knowledgeGraph"
	StreamDestination = "pages"
)

type Config struct {
	Features []FeatureConfig `json:"features"`
	Streams  []StreamConfig  `json:"streams,omitempty"`
}

// FeatureConfig is a static page when StaticPage is set and an entity page
// set when EntityPageSet is set. Exactly one of the two is non-nil.
type FeatureConfig struct {
	Name                    string    `json:"name"`
	StreamID                string    `json:"streamId,omitempty"`
	TemplateType            string    `json:"templateType"`
	EntityPageSet           *struct{} `json:"entityPageSet,omitempty"`
	StaticPage              *struct{} `json:"staticPage,omitempty"`
	AlternateLanguageFields []string  `json:"alternateLanguageFields,omitempty"`
}

func (f FeatureConfig) IsStatic() bool {
	return f.StaticPage != nil
}

// StreamConfig is the declared stream with the pipeline endpoints stamped
// on. The embedded fields are flattened into the same JSON object.
type StreamConfig struct {
	module.Stream
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Emit derives one feature per template and one stream per declared
// config.stream, in collection order.
func Emit(c *module.Collection) *Config {
	cfg := &Config{Features: []FeatureConfig{}}

	for _, m := range c.All() {
		feature := FeatureConfig{
			Name:                    m.Config.Name,
			StreamID:                m.StreamID(),
			TemplateType:            TemplateType,
			AlternateLanguageFields: m.Config.AlternateLanguageFields,
		}
		if m.IsStatic() {
			feature.StaticPage = &struct{}{}
		} else {
			feature.EntityPageSet = &struct{}{}
		}
		cfg.Features = append(cfg.Features, feature)

		if m.Config.Stream != nil {
			cfg.Streams = append(cfg.Streams, StreamConfig{
				Stream:      *m.Config.Stream,
				Source:      StreamSource,
				Destination: StreamDestination,
			})
		}
	}

	return cfg
}

// WriteFile merges cfg into the manifest at path. Keys other than features
// and streams are kept as they are; those two are replaced wholesale, and
// streams is dropped when cfg declares none.
func WriteFile(path string, cfg *Config) error {
	merged := map[string]json.RawMessage{}

	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(existing) > 0 {
			if err := json.Unmarshal(existing, &merged); err != nil {
				return errors.Wrapf(err, "parsing existing manifest %s", path)
			}
		}
	case !os.IsNotExist(err):
		return errors.WithStack(err)
	}

	features, err := json.Marshal(cfg.Features)
	if err != nil {
		return errors.WithStack(err)
	}
	merged["features"] = features

	if len(cfg.Streams) > 0 {
		streams, err := json.Marshal(cfg.Streams)
		if err != nil {
			return errors.WithStack(err)
		}
		merged["streams"] = streams
	} else {
		delete(merged, "streams")
	}

	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, append(out, '\n'), 0644))
}

// ReadFile reads a manifest previously written by WriteFile.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}
	return &cfg, nil
}
