package markdown

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepack/internal/errors"
)

func TestRender(t *testing.T) {
	out, err := Render([]byte("# About\n\nBuilt with <strong>Go</strong>.\n\n- [x] bundles\n"))
	require.NoError(t, err)

	assert.Contains(t, out, `<h1 id="about">About</h1>`)
	assert.Contains(t, out, "<strong>Go</strong>")
	assert.Contains(t, out, `type="checkbox"`)
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "about.md")
	require.NoError(t, os.WriteFile(path, []byte("Hello *world*\n"), 0o644))

	out, err := RenderFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello <em>world</em></p>\n", out)

	_, err = RenderFile(filepath.Join(t.TempDir(), "missing.md"))
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
}
