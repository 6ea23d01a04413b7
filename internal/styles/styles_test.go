package styles

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepack/internal/errors"
	"github.com/conneroisu/sitepack/internal/testutils"
)

func TestCompileDemoStylesheet(t *testing.T) {
	root := testutils.CreateTempProject(t)

	css, err := New(nil, StyleExpanded).Compile(filepath.Join(root, "src", "scss", "main.scss"))
	require.NoError(t, err)
	assert.Contains(t, css, "color: #0d6efd")
	assert.NotContains(t, css, "$primary")
}

func TestCompileCompressed(t *testing.T) {
	css, err := New(nil, StyleCompressed).CompileString("a { b { color: red; } }", "", "inline.scss")
	require.NoError(t, err)
	assert.Equal(t, "a b{color:red}", strings.TrimRight(css, "\r\n"))
}

func TestCompileImports(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFile(t, dir, "src/scss/_variables.scss", "$gap: 4px;")
	testutils.WriteFile(t, dir, "vendor/theme/_theme.scss", ".theme { margin: $gap; }")
	main := testutils.WriteFile(t, dir, "src/scss/main.scss", "@import 'variables';\n@import 'theme/theme';\n")

	css, err := New([]string{filepath.Join(dir, "vendor")}, StyleExpanded).Compile(main)
	require.NoError(t, err)
	assert.Contains(t, css, "margin: 4px")
}

func TestCompileErrors(t *testing.T) {
	_, err := New(nil, "").Compile(filepath.Join(t.TempDir(), "missing.scss"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeMissingAsset, ""))

	_, err = New(nil, "").CompileString("a { color: $undefined; }", "", "broken.scss")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeStyle, ""))
	assert.Contains(t, err.Error(), "broken.scss")
}

func TestNewDefaultsToExpanded(t *testing.T) {
	assert.Equal(t, StyleExpanded, New(nil, "").Style)
}
