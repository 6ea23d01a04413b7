package config

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepack/internal/errors"
)

// DefaultConfigFile is the file name searched for in the project root.
const DefaultConfigFile = ".sitepack.yml"

const configHeader = `# sitepack configuration
#
# target holds the canonical build target. variants are overlays selected
# with --variant; they only list the fields they change.

`

// StarterConfig returns the configuration written by "sitepack config init":
// the canonical target plus one example variant.
func StarterConfig() *Config {
	return &Config{
		Target: DefaultTarget(),
		Variants: map[string]TargetConfig{
			"legacy": {
				SourceMaps:  boolPtr(false),
				SplitChunks: boolPtr(false),
			},
		},
	}
}

// MarshalYAML renders cfg as a commented YAML document.
func MarshalYAML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "cannot encode configuration").
			WithCause(err)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "cannot encode configuration").
			WithCause(err)
	}

	return buf.Bytes(), nil
}

// WriteConfigFile writes cfg to filename. An existing file is only replaced
// when overwrite is set.
func WriteConfigFile(filename string, cfg *Config, overwrite bool) error {
	if _, err := os.Stat(filename); err == nil && !overwrite {
		return errors.NewConfigurationError(errors.CodeInvalidConfig, "configuration file already exists").
			WithPath(filename)
	}

	content, err := MarshalYAML(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, content, 0o644); err != nil {
		return errors.NewConfigurationError(errors.CodeInvalidConfig, "failed to write configuration file").
			WithPath(filename).
			WithCause(err)
	}

	return nil
}
