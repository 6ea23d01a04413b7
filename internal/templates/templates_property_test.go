//go:build property
// +build property

package templates

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/sitepack/internal/errors"
)

// TestRenderParameterProperties checks every demo page against its parameter bag
func TestRenderParameterProperties(t *testing.T) {
	set, root := demoSet(t)
	pages := []string{
		filepath.Join(root, "src", "templates", "pages", "home.hbs"),
		filepath.Join(root, "src", "templates", "pages", "about.hbs"),
	}

	properties := gopter.NewProperties(nil)

	// Property: a bag holding every referenced key renders, whatever else it holds
	properties.Property("complete bag renders", prop.ForAll(
		func(page int, extraKey, extraValue string) bool {
			values := demoValues()
			if _, clash := values[extraKey]; !clash {
				values[extraKey] = extraValue
			}
			_, err := set.Render(pages[page], values)
			return err == nil
		},
		gen.IntRange(0, len(pages)-1),
		gen.Identifier(),
		gen.AlphaString(),
	))

	// Property: dropping any referenced key fails with a render error naming it
	properties.Property("missing key is reported", prop.ForAll(
		func(page, pick int) bool {
			refs, err := set.References(pages[page])
			if err != nil || len(refs) == 0 {
				return false
			}
			top, _, _ := strings.Cut(refs[pick%len(refs)], ".")

			values := demoValues()
			delete(values, top)

			_, err = set.Render(pages[page], values)
			var renderErr *errors.TemplateRenderError
			if !errors.As(err, &renderErr) {
				return false
			}
			return renderErr.Key == top || strings.HasPrefix(renderErr.Key, top+".")
		},
		gen.IntRange(0, len(pages)-1),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
