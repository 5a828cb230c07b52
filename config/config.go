// Package config loads pages.yaml and resolves the project's canonical
// directories.
package config

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	ContentModeLocal   = "local"
	ContentModeDynamic = "dynamic"
)

type Project struct {
	Root     string         `mapstructure:"root" yaml:"root"`
	Origin   string         `mapstructure:"origin" yaml:"origin"`
	Scope    string         `mapstructure:"scope" yaml:"scope"`
	Layout   string         `mapstructure:"layout" yaml:"layout"`
	Dirs     DirsConfig     `mapstructure:"dirs" yaml:"dirs"`
	Content  ContentConfig  `mapstructure:"content" yaml:"content"`
	Generate GenerateConfig `mapstructure:"generate" yaml:"generate"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

type DirsConfig struct {
	Source     string `mapstructure:"source" yaml:"source"`
	Dist       string `mapstructure:"dist" yaml:"dist"`
	Static     string `mapstructure:"static" yaml:"static"`
	LocalData  string `mapstructure:"local_data" yaml:"local_data"`
	SiteConfig string `mapstructure:"site_config" yaml:"site_config"`
}

type ContentConfig struct {
	Mode    string `mapstructure:"mode" yaml:"mode"`
	Command string `mapstructure:"command" yaml:"command"`
}

type GenerateConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

type ServerConfig struct {
	Port       string `mapstructure:"port" yaml:"port"`
	LiveReload bool   `mapstructure:"live_reload" yaml:"live_reload"`
}

// NewViper returns a viper instance with defaults, PAGES_* environment
// overrides and, when present, the config file.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("root", ".")
	v.SetDefault("dirs.source", "src")
	v.SetDefault("dirs.dist", "dist")
	v.SetDefault("dirs.static", "static")
	v.SetDefault("dirs.local_data", "localData")
	v.SetDefault("dirs.site_config", "sites-config")
	v.SetDefault("content.mode", ContentModeLocal)
	v.SetDefault("content.command", "yext pages generate-test-data")
	v.SetDefault("generate.concurrency", 8)
	v.SetDefault("server.port", "5173")
	v.SetDefault("server.live_reload", true)

	v.SetEnvPrefix("PAGES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("pages")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, errors.Wrap(err, "reading config")
		}
	}

	return v, nil
}

func Load(v *viper.Viper) (*Project, error) {
	var project Project
	if err := v.Unmarshal(&project); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := validate(&project); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &project, nil
}

func validate(p *Project) error {
	switch p.Content.Mode {
	case ContentModeLocal, ContentModeDynamic:
	default:
		return errors.Errorf("content.mode must be %q or %q, got %q", ContentModeLocal, ContentModeDynamic, p.Content.Mode)
	}

	if p.Generate.Concurrency < 1 {
		return errors.Errorf("generate.concurrency must be positive, got %d", p.Generate.Concurrency)
	}

	if strings.ContainsAny(p.Scope, `/\`) || strings.Contains(p.Scope, "..") {
		return errors.Errorf("scope must be a single directory name, got %q", p.Scope)
	}

	if p.Layout != "" && filepath.IsAbs(p.Layout) {
		return errors.Errorf("layout must be relative to the project root: %s", p.Layout)
	}

	return nil
}
