// Package styles compiles SCSS stylesheets to CSS with libsass.
package styles

import (
	"os"
	"path/filepath"

	"github.com/bep/golibsass/libsass"

	"github.com/conneroisu/sitepack/internal/errors"
)

// Style is a libsass output style name.
type Style string

const (
	StyleExpanded   Style = "expanded"
	StyleCompressed Style = "compressed"
)

// Compiler compiles SCSS files.
type Compiler struct {
	// IncludePaths are searched for @import targets after the directory of
	// the file being compiled.
	IncludePaths []string
	Style        Style
}

// New returns a compiler with the given include paths and style.
func New(includePaths []string, style Style) *Compiler {
	if style == "" {
		style = StyleExpanded
	}

	return &Compiler{
		IncludePaths: includePaths,
		Style:        style,
	}
}

// Compile compiles the SCSS file at path and returns the CSS.
func (c *Compiler) Compile(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewConfigurationError(errors.CodeMissingAsset, "cannot read stylesheet").
			WithPath(path).
			WithCause(err)
	}

	return c.CompileString(string(source), filepath.Dir(path), path)
}

// CompileString compiles SCSS source. dir is searched first for imports;
// name is only used in error messages.
func (c *Compiler) CompileString(source, dir, name string) (string, error) {
	includePaths := make([]string, 0, len(c.IncludePaths)+1)
	if dir != "" {
		includePaths = append(includePaths, dir)
	}
	includePaths = append(includePaths, c.IncludePaths...)

	transpiler, err := libsass.New(libsass.Options{
		IncludePaths: includePaths,
		OutputStyle:  libsass.ParseOutputStyle(string(c.Style)),
		Precision:    10,
	})
	if err != nil {
		return "", errors.NewConfigurationError(errors.CodeStyle, "cannot create sass compiler").
			WithPath(name).
			WithCause(err)
	}

	result, err := transpiler.Execute(source)
	if err != nil {
		return "", errors.NewConfigurationError(errors.CodeStyle, "cannot compile stylesheet").
			WithPath(name).
			WithCause(err)
	}

	return result.CSS, nil
}
