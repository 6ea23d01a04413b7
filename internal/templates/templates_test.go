package templates

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepack/internal/errors"
	"github.com/conneroisu/sitepack/internal/testutils"
)

func demoValues() map[string]interface{} {
	return map[string]interface{}{
		"siteName":      "demo",
		"description":   "This is a <strong>demo</strong>.",
		"versions":      map[string]interface{}{"webpack": "5.70.0", "bootstrap": "5.2.0"},
		"copyrightYear": 2026,
		"lastUpdated":   "Saturday 17 Oct 2026, 09:05:03 am AEDT",
	}
}

func demoSet(t *testing.T) (*Set, string) {
	t.Helper()
	root := testutils.CreateTempProject(t)

	set, err := NewSet(filepath.Join(root, "src", "templates", "partials"))
	require.NoError(t, err)

	return set, root
}

func TestNewSet(t *testing.T) {
	set, root := demoSet(t)
	assert.Equal(t, []string{"footer", "header"}, set.Partials())

	testutils.WriteFile(t, root, "src/templates/partials/layout/nav.hbs", "<nav>{{siteName}}</nav>")
	testutils.WriteFile(t, root, "src/templates/partials/notes.txt", "ignored")
	set, err := NewSet(filepath.Join(root, "src", "templates", "partials"))
	require.NoError(t, err)
	assert.Equal(t, []string{"footer", "header", "layout/nav"}, set.Partials())

	empty, err := NewSet("")
	require.NoError(t, err)
	assert.Empty(t, empty.Partials())
}

func TestNewSetErrors(t *testing.T) {
	_, err := NewSet(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeMissingPartial, ""))

	dir := t.TempDir()
	testutils.WriteFile(t, dir, "broken.hbs", "{{#if x}}never closed")
	_, err = NewSet(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeTemplateSyntax, ""))
}

func TestRenderDemoPages(t *testing.T) {
	set, root := demoSet(t)

	home, err := set.Render(filepath.Join(root, "src", "templates", "pages", "home.hbs"), demoValues())
	require.NoError(t, err)
	assert.Contains(t, home, `<a class="navbar-brand" href="index.html">demo</a>`)
	assert.Contains(t, home, "This is a <strong>demo</strong>.", "description is rendered unescaped")
	assert.Contains(t, home, "&copy; 2026 demo. Last updated Saturday 17 Oct 2026, 09:05:03 am AEDT.")
	assert.Contains(t, home, "Webpack 5.70.0, Bootstrap 5.2.0")

	about, err := set.Render(filepath.Join(root, "src", "templates", "pages", "about.hbs"), demoValues())
	require.NoError(t, err)
	assert.Contains(t, about, "<title>About demo</title>")
}

func TestRenderEscapesDoubleStash(t *testing.T) {
	set, root := demoSet(t)
	path := testutils.WriteFile(t, root, "page.hbs", "<p>{{siteName}}</p>")

	out, err := set.Render(path, map[string]interface{}{"siteName": "<b>x</b>"})
	require.NoError(t, err)
	assert.Equal(t, "<p>&lt;b&gt;x&lt;/b&gt;</p>", out)
}

func TestRenderMissingParameter(t *testing.T) {
	set, root := demoSet(t)

	tests := []struct {
		name   string
		remove func(map[string]interface{})
		key    string
	}{
		{"top-level key", func(v map[string]interface{}) { delete(v, "description") }, "description"},
		{"key used only in a partial", func(v map[string]interface{}) { delete(v, "lastUpdated") }, "lastUpdated"},
		{"nested key", func(v map[string]interface{}) {
			v["versions"] = map[string]interface{}{"webpack": "5.70.0"}
		}, "versions.bootstrap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := demoValues()
			tt.remove(values)

			_, err := set.Render(filepath.Join(root, "src", "templates", "pages", "home.hbs"), values)
			require.Error(t, err)
			assert.True(t, errors.IsTemplateRenderError(err))

			var renderErr *errors.TemplateRenderError
			require.True(t, errors.As(err, &renderErr))
			assert.Equal(t, tt.key, renderErr.Key)
		})
	}
}

func TestRenderMissingPartial(t *testing.T) {
	set, root := demoSet(t)
	path := testutils.WriteFile(t, root, "page.hbs", "{{> sidebar}}")

	_, err := set.Render(path, demoValues())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeMissingPartial, ""))
}

func TestRenderMissingTemplate(t *testing.T) {
	set, root := demoSet(t)

	_, err := set.Render(filepath.Join(root, "nope.hbs"), demoValues())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeMissingTemplate, ""))
}

func TestReferences(t *testing.T) {
	set, root := demoSet(t)

	tests := []struct {
		name     string
		source   string
		expected []string
	}{
		{
			name:     "demo home page",
			source:   "",
			expected: []string{"copyrightYear", "description", "lastUpdated", "siteName", "versions.bootstrap", "versions.webpack"},
		},
		{
			name:     "conditional argument is optional",
			source:   "{{#if banner}}<p>{{banner.text}}</p>{{else}}{{siteName}}{{/if}}",
			expected: []string{"siteName"},
		},
		{
			name:     "each body resolves against the item",
			source:   "{{#each links}}<a href=\"{{url}}\">{{../siteName}} {{@index}}</a>{{/each}}",
			expected: []string{"links", "siteName"},
		},
		{
			name:     "with and @root",
			source:   "{{#with versions}}{{webpack}} {{@root.siteName}}{{/with}}",
			expected: []string{"siteName", "versions"},
		},
		{
			name:     "helper arguments",
			source:   "{{lookup versions \"webpack\"}} {{#unless (lookup flags \"hide\")}}x{{/unless}}",
			expected: []string{"flags", "versions"},
		},
		{
			name:     "partial hash keys are local",
			source:   "{{> header siteName=title}}",
			expected: []string{"title"},
		},
		{
			name:     "partial with context argument",
			source:   "{{> header page}}",
			expected: []string{"page"},
		},
		{
			name:     "comments are ignored",
			source:   "{{!-- {{ignored}} --}}<p>static</p>",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(root, "src", "templates", "pages", "home.hbs")
			if tt.source != "" {
				path = testutils.WriteFile(t, root, "refs.hbs", tt.source)
			}

			refs, err := set.References(path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, refs)
		})
	}
}

func TestReferencesRejectsUnknownHelpers(t *testing.T) {
	set, root := demoSet(t)

	path := testutils.WriteFile(t, root, "helper.hbs", "{{shout siteName}}")
	_, err := set.References(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeTemplateSyntax, ""))

	path = testutils.WriteFile(t, root, "block.hbs", "{{#shout siteName}}x{{/shout}}")
	_, err = set.References(path)
	require.Error(t, err)
}

func TestKnownHelpersOnly(t *testing.T) {
	set, root := demoSet(t)
	path := testutils.WriteFile(t, root, "section.hbs", "{{#versions}}{{webpack}}{{/versions}}")

	refs, err := set.References(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"versions"}, refs)

	set.KnownHelpersOnly = true
	_, err = set.References(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeTemplateSyntax, ""))
}

func TestRecursivePartial(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFile(t, dir, "partials/loop.hbs", "{{> loop}}")
	set, err := NewSet(filepath.Join(dir, "partials"))
	require.NoError(t, err)

	path := testutils.WriteFile(t, dir, "page.hbs", "{{> loop}}")
	_, err = set.References(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeTemplateSyntax, ""))
}

func TestHasKey(t *testing.T) {
	values := map[string]interface{}{
		"a":      map[string]string{"b": "c"},
		"nested": map[string]interface{}{"deep": map[string]interface{}{"x": nil}},
		"str":    "value",
		"ptr":    &struct{ Name string }{Name: "n"},
	}

	assert.True(t, hasKey(values, "a"))
	assert.True(t, hasKey(values, "a.b"))
	assert.False(t, hasKey(values, "a.z"))
	assert.True(t, hasKey(values, "nested.deep.x"))
	assert.False(t, hasKey(values, "str.length"))
	assert.True(t, hasKey(values, "ptr.Name"))
	assert.False(t, hasKey(values, "missing"))
}
