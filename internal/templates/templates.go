// Package templates renders the site's Handlebars pages and partials.
//
// Rendering is strict: before a page executes, every key it references
// (directly or through the partials it includes) is checked against the
// page's parameter bag, and a missing key fails the render instead of
// silently producing empty output.
package templates

import (
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/aymerick/raymond/ast"
	"github.com/aymerick/raymond/parser"

	"github.com/conneroisu/sitepack/internal/errors"
)

// Extension is the file extension of templates and partials.
const Extension = ".hbs"

// Set holds the partials available to every page of a build.
type Set struct {
	// KnownHelpersOnly rejects mustache sections ({{#name}}) that are not
	// one of the built-in helpers.
	KnownHelpersOnly bool

	dir      string
	sources  map[string]string
	programs map[string]*ast.Program
}

// NewSet loads every partial under partialsDir. A partial is named by its
// path relative to the directory, without extension and with forward
// slashes. An empty partialsDir gives a set with no partials.
func NewSet(partialsDir string) (*Set, error) {
	s := &Set{
		dir:      partialsDir,
		sources:  make(map[string]string),
		programs: make(map[string]*ast.Program),
	}

	if partialsDir == "" {
		return s, nil
	}

	err := filepath.WalkDir(partialsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != Extension {
			return nil
		}

		rel, err := filepath.Rel(partialsDir, path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), Extension)

		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		program, err := parser.Parse(string(source))
		if err != nil {
			return errors.NewConfigurationError(errors.CodeTemplateSyntax, "invalid partial").
				WithPath(path).
				WithCause(err)
		}

		s.sources[name] = string(source)
		s.programs[name] = program

		return nil
	})
	if err != nil {
		if errors.IsConfigurationError(err) {
			return nil, err
		}

		return nil, errors.NewConfigurationError(errors.CodeMissingPartial, "cannot load partials").
			WithPath(partialsDir).
			WithCause(err)
	}

	return s, nil
}

// Partials returns the sorted names of the loaded partials.
func (s *Set) Partials() []string {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Render executes the template at templatePath with values.
func (s *Set) Render(templatePath string, values map[string]interface{}) (string, error) {
	source, program, err := s.parseFile(templatePath)
	if err != nil {
		return "", err
	}

	refs, err := s.collect(templatePath, program)
	if err != nil {
		return "", err
	}

	for _, ref := range refs {
		if !hasKey(values, ref) {
			return "", errors.NewTemplateRenderError(templatePath, ref)
		}
	}

	tpl, err := raymond.Parse(source)
	if err != nil {
		return "", errors.NewConfigurationError(errors.CodeTemplateSyntax, "invalid template").
			WithPath(templatePath).
			WithCause(err)
	}
	tpl.RegisterPartials(s.sources)

	out, err := tpl.Exec(values)
	if err != nil {
		renderErr := errors.NewTemplateRenderError(templatePath, "")
		renderErr.Cause = err

		return "", renderErr
	}

	return out, nil
}

// References lists, sorted, the dotted parameter paths the template at
// templatePath requires from its root context.
func (s *Set) References(templatePath string) ([]string, error) {
	_, program, err := s.parseFile(templatePath)
	if err != nil {
		return nil, err
	}

	return s.collect(templatePath, program)
}

func (s *Set) parseFile(path string) (string, *ast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, errors.NewConfigurationError(errors.CodeMissingTemplate, "cannot read template").
			WithPath(path).
			WithCause(err)
	}

	program, err := parser.Parse(string(data))
	if err != nil {
		return "", nil, errors.NewConfigurationError(errors.CodeTemplateSyntax, "invalid template").
			WithPath(path).
			WithCause(err)
	}

	return string(data), program, nil
}

// hasKey reports whether the dotted path resolves in values. Struct values
// end the walk successfully; raymond resolves their fields itself.
func hasKey(values map[string]interface{}, ref string) bool {
	var current interface{} = values

	for _, part := range strings.Split(ref, ".") {
		v := reflect.ValueOf(current)
		for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr) {
			if v.IsNil() {
				return false
			}
			v = v.Elem()
		}
		if !v.IsValid() {
			return false
		}

		switch v.Kind() {
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String {
				return true
			}
			elem := v.MapIndex(reflect.ValueOf(part).Convert(v.Type().Key()))
			if !elem.IsValid() {
				return false
			}
			current = elem.Interface()
		case reflect.Struct:
			return true
		default:
			return false
		}
	}

	return true
}
