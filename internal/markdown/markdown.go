// Package markdown renders page content files into the HTML handed to page
// templates as the "content" parameter.
package markdown

import (
	"bytes"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/conneroisu/sitepack/internal/errors"
)

// New returns the converter used for page content: GitHub-flavoured
// Markdown with raw HTML passed through, like the site description.
func New() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
}

// Render converts Markdown source to HTML.
func Render(source []byte) (string, error) {
	var buf bytes.Buffer
	if err := New().Convert(source, &buf); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// RenderFile reads and converts the Markdown file at path.
func RenderFile(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewConfigurationError(errors.CodeMissingTemplate, "cannot read page content").
			WithPath(path).
			WithCause(err)
	}

	out, err := Render(source)
	if err != nil {
		return "", errors.NewConfigurationError(errors.CodeTemplateSyntax, "cannot render page content").
			WithPath(path).
			WithCause(err)
	}

	return out, nil
}
