// Package manifest reads the project manifest (package.json) and derives
// the dependency version strings shown on generated pages.
package manifest

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/conneroisu/sitepack/internal/errors"
)

// Unknown is reported for tracked dependencies the manifest does not declare.
const Unknown = "Unknown"

// DefaultTracked lists the dependencies whose versions are shown by default:
// the bundler and the UI framework.
var DefaultTracked = []string{"webpack", "bootstrap"}

// Manifest is the subset of package.json the build reads.
type Manifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version,omitempty"`
	Description     string            `json:"description,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError(errors.CodeManifest, "cannot read manifest").
			WithPath(path).
			WithCause(err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.NewConfigurationError(errors.CodeManifest, "malformed manifest").
			WithPath(path).
			WithCause(err)
	}

	if strings.TrimSpace(m.Name) == "" {
		return nil, errors.NewConfigurationError(errors.CodeManifest, `manifest field "name" is required`).
			WithPath(path)
	}

	return &m, nil
}

// CleanVersion strips a single leading caret from a version range. Absent
// or empty input yields Unknown. Other range operators (~, >=, ...) are
// returned as-is.
func CleanVersion(spec *string) string {
	if spec == nil || *spec == "" {
		return Unknown
	}

	return strings.TrimPrefix(*spec, "^")
}

// DevVersion returns the cleaned devDependencies version of name.
func (m *Manifest) DevVersion(name string) string {
	spec, ok := m.DevDependencies[name]
	if !ok {
		return CleanVersion(nil)
	}

	return CleanVersion(&spec)
}

// Versions returns the cleaned version of every tracked dependency.
func (m *Manifest) Versions(tracked []string) map[string]string {
	versions := make(map[string]string, len(tracked))
	for _, name := range tracked {
		versions[name] = m.DevVersion(name)
	}

	return versions
}
