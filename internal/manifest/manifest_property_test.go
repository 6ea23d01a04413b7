//go:build property
// +build property

package manifest

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCleanVersionProperties tests version cleaning properties
func TestCleanVersionProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	version := gen.RegexMatch(`^[0-9]{1,2}\.[0-9]{1,3}\.[0-9]{1,3}$`)

	// Property: exactly one leading caret is removed
	properties.Property("caret stripped once", prop.ForAll(
		func(v string) bool {
			caret := "^" + v
			return CleanVersion(&caret) == v
		},
		version,
	))

	// Property: strings without a leading caret are returned unchanged
	properties.Property("no caret unchanged", prop.ForAll(
		func(v string) bool {
			if v == "" || strings.HasPrefix(v, "^") {
				return true
			}
			return CleanVersion(&v) == v
		},
		gen.AnyString(),
	))

	// Property: a doubled caret keeps one
	properties.Property("double caret keeps one", prop.ForAll(
		func(v string) bool {
			doubled := "^^" + v
			return CleanVersion(&doubled) == "^"+v
		},
		version,
	))

	properties.TestingRun(t)
}
