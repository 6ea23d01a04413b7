// Package config provides configuration management for sitepack using Viper
// for loading from .sitepack.yml, SITEPACK_ environment overrides and flags.
//
// One canonical target schema describes how sources map to outputs. Its
// defaults reproduce the reference webpack configuration. Named variants are
// data-only overlays merged over the canonical target, so no variant ever
// repeats the full configuration.
package config

import (
	"strings"

	"dario.cat/mergo"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepack/internal/errors"
	"github.com/conneroisu/sitepack/internal/metadata"
)

// DefaultDescription is the demo site description. It contains markup and is
// meant to be rendered unescaped.
const DefaultDescription = "This is a demo project that combines <strong>Webpack</strong>, " +
	"<strong>Handlebars</strong>, and <strong>Bootstrap</strong> to create a modular, " +
	"modern web application setup."

type Config struct {
	Target   TargetConfig            `mapstructure:"target" json:"target" yaml:"target"`
	Variants map[string]TargetConfig `mapstructure:"variants" json:"variants,omitempty" yaml:"variants,omitempty"`
}

// TargetConfig is the canonical build target schema. Pointer fields
// distinguish "unset" from false so overlays can switch features off.
type TargetConfig struct {
	Root        string                   `mapstructure:"root" json:"root,omitempty" yaml:"root,omitempty"`
	Manifest    string                   `mapstructure:"manifest" json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Entries     []EntryConfig            `mapstructure:"entries" json:"entries,omitempty" yaml:"entries,omitempty"`
	Output      OutputConfig             `mapstructure:"output" json:"output" yaml:"output"`
	SourceMaps  *bool                    `mapstructure:"source_maps" json:"source_maps,omitempty" yaml:"source_maps,omitempty"`
	SplitChunks *bool                    `mapstructure:"split_chunks" json:"split_chunks,omitempty" yaml:"split_chunks,omitempty"`
	Images      *bool                    `mapstructure:"images" json:"images,omitempty" yaml:"images,omitempty"`
	Templates   TemplatesConfig          `mapstructure:"templates" json:"templates" yaml:"templates"`
	Styles      StylesConfig             `mapstructure:"styles" json:"styles" yaml:"styles"`
	Timestamp   metadata.TimestampFormat `mapstructure:"timestamp" json:"timestamp" yaml:"timestamp"`
	Site        SiteConfig               `mapstructure:"site" json:"site" yaml:"site"`
	Pages       []PageConfig             `mapstructure:"pages" json:"pages,omitempty" yaml:"pages,omitempty"`
}

type EntryConfig struct {
	Name string `mapstructure:"name" json:"name" yaml:"name"`
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

type OutputConfig struct {
	Dir           string `mapstructure:"dir" json:"dir,omitempty" yaml:"dir,omitempty"`
	Filename      string `mapstructure:"filename" json:"filename,omitempty" yaml:"filename,omitempty"`
	CSSFilename   string `mapstructure:"css_filename" json:"css_filename,omitempty" yaml:"css_filename,omitempty"`
	AssetFilename string `mapstructure:"asset_filename" json:"asset_filename,omitempty" yaml:"asset_filename,omitempty"`
	Clean         *bool  `mapstructure:"clean" json:"clean,omitempty" yaml:"clean,omitempty"`
	HashLength    int    `mapstructure:"hash_length" json:"hash_length,omitempty" yaml:"hash_length,omitempty"`
}

type TemplatesConfig struct {
	PartialsDir      string `mapstructure:"partials_dir" json:"partials_dir,omitempty" yaml:"partials_dir,omitempty"`
	InlineRequires   string `mapstructure:"inline_requires" json:"inline_requires,omitempty" yaml:"inline_requires,omitempty"`
	AssetsRoot       string `mapstructure:"assets_root" json:"assets_root,omitempty" yaml:"assets_root,omitempty"`
	KnownHelpersOnly *bool  `mapstructure:"known_helpers_only" json:"known_helpers_only,omitempty" yaml:"known_helpers_only,omitempty"`
}

type StylesConfig struct {
	IncludePaths []string `mapstructure:"include_paths" json:"include_paths,omitempty" yaml:"include_paths,omitempty"`
}

type SiteConfig struct {
	Name        string   `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty"`
	Description string   `mapstructure:"description" json:"description,omitempty" yaml:"description,omitempty"`
	Tracked     []string `mapstructure:"tracked" json:"tracked,omitempty" yaml:"tracked,omitempty"`
}

type PageConfig struct {
	Template string                 `mapstructure:"template" json:"template" yaml:"template"`
	Filename string                 `mapstructure:"filename" json:"filename" yaml:"filename"`
	Title    string                 `mapstructure:"title" json:"title,omitempty" yaml:"title,omitempty"`
	Content  string                 `mapstructure:"content" json:"content,omitempty" yaml:"content,omitempty"`
	Inject   *bool                  `mapstructure:"inject" json:"inject,omitempty" yaml:"inject,omitempty"`
	Params   map[string]interface{} `mapstructure:"params" json:"params,omitempty" yaml:"params,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// DefaultTarget returns the canonical target.
func DefaultTarget() TargetConfig {
	return TargetConfig{
		Root:     ".",
		Manifest: "package.json",
		Entries: []EntryConfig{
			{Name: "main", Path: "./src/js/index.js"},
		},
		Output: OutputConfig{
			Dir:           "dist",
			Filename:      "[name].[contenthash].bundle.js",
			CSSFilename:   "assets/css/[name].[contenthash].css",
			AssetFilename: "images/[hash][ext][query]",
			Clean:         boolPtr(true),
			HashLength:    16,
		},
		SourceMaps:  boolPtr(true),
		SplitChunks: boolPtr(true),
		Images:      boolPtr(true),
		Templates: TemplatesConfig{
			PartialsDir:      "src/templates/partials",
			InlineRequires:   "/assets/images/",
			AssetsRoot:       "src",
			KnownHelpersOnly: boolPtr(false),
		},
		Styles: StylesConfig{
			IncludePaths: []string{"node_modules"},
		},
		Timestamp: metadata.TimestampFormat{
			Locale:  metadata.DefaultLocale,
			Seconds: boolPtr(true),
			Zone:    boolPtr(true),
		},
		Site: SiteConfig{
			Description: DefaultDescription,
			Tracked:     []string{"webpack", "bootstrap"},
		},
		Pages: []PageConfig{
			{Template: "./src/templates/pages/home.hbs", Filename: "index.html"},
			{Template: "./src/templates/pages/about.hbs", Filename: "about.html"},
		},
	}
}

// Overlay merges the non-empty fields of overlay over base. Pointer fields
// replace rather than merge, so an overlay can set a flag to false.
func Overlay(base, overlay TargetConfig) (TargetConfig, error) {
	merged := base
	if err := mergo.Merge(&merged, overlay, mergo.WithOverride, mergo.WithoutDereference); err != nil {
		return TargetConfig{}, errors.NewConfigurationError(errors.CodeInvalidConfig, "cannot merge target configuration").
			WithCause(err)
	}

	return merged, nil
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v. Unknown keys are rejected so a
// misspelled option fails here rather than at render time.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var raw Config
	if err := v.UnmarshalExact(&raw); err != nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "cannot decode configuration").
			WithPath(v.ConfigFileUsed()).
			WithCause(err)
	}

	target, err := Overlay(DefaultTarget(), raw.Target)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Target:   target,
		Variants: raw.Variants,
	}
	if config.Variants == nil {
		config.Variants = make(map[string]TargetConfig)
	}

	if err := validateTarget(&config.Target); err != nil {
		return nil, err
	}

	return config, nil
}

// Resolve returns the target for the named variant; the empty name selects
// the canonical target. Names match case-insensitively, since viper folds
// the keys of a configuration file to lower case.
func (c *Config) Resolve(variant string) (TargetConfig, error) {
	if variant == "" {
		return c.Target, nil
	}

	overlay, ok := c.variant(variant)
	if !ok {
		return TargetConfig{}, errors.Configurationf(errors.CodeUnknownVariant, "unknown variant %q", variant)
	}

	target, err := Overlay(c.Target, overlay)
	if err != nil {
		return TargetConfig{}, err
	}

	if err := validateTarget(&target); err != nil {
		return TargetConfig{}, err
	}

	return target, nil
}

func (c *Config) variant(name string) (TargetConfig, bool) {
	if overlay, ok := c.Variants[name]; ok {
		return overlay, true
	}
	for key, overlay := range c.Variants {
		if strings.EqualFold(key, name) {
			return overlay, true
		}
	}

	return TargetConfig{}, false
}

// VariantNames lists the configured variants.
func (c *Config) VariantNames() []string {
	names := make([]string, 0, len(c.Variants))
	for name := range c.Variants {
		names = append(names, name)
	}

	return names
}

// Bool dereferences an optional flag.
func Bool(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}

	return *b
}
