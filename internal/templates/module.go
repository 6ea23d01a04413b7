package templates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aymerick/raymond/ast"

	"github.com/conneroisu/sitepack/internal/errors"
)

const moduleRuntime = `const escapes = {"&": "&amp;", "<": "&lt;", ">": "&gt;", '"': "&quot;", "'": "&#x27;", "` + "`" + `": "&#x60;", "=": "&#x3D;"};

function escape(value) {
  if (value == null) return "";
  if (!value) return String(value);
  return String(value).replace(/[&<>"'` + "`" + `=]/g, (c) => escapes[c]);
}

function raw(value) {
  return value == null ? "" : String(value);
}

function lookup(ctx, parts) {
  let value = ctx;
  for (const part of parts) {
    if (value == null) return undefined;
    value = value[part];
  }
  return value;
}

function truthy(value) {
  return Array.isArray(value) ? value.length > 0 : Boolean(value);
}

function present(value) {
  if (Array.isArray(value)) return value.length > 0;
  return Boolean(value) || value === 0;
}

function each(value, fn, inverse) {
  let out = "";
  let keys = [];
  if (Array.isArray(value)) {
    keys = value.map((_, index) => index);
  } else if (value != null && typeof value === "object") {
    keys = Object.keys(value);
  }
  keys.forEach((key, index) => {
    out += fn(value[key], {index, key, first: index === 0, last: index === keys.length - 1});
  });
  if (keys.length === 0 && inverse) return inverse();
  return out;
}

function within(value, fn, inverse) {
  if (present(value)) return fn(value);
  return inverse ? inverse() : "";
}
`

var dataVariables = map[string]bool{
	"index": true,
	"key":   true,
	"first": true,
	"last":  true,
}

// CompileModule turns the template at path into an ES module whose default
// export renders the template from a context object. Partials are inlined.
// Mustaches, triple-stashes and the if, unless, each and with block helpers
// are compiled to plain JavaScript; other helpers are rejected.
func (s *Set) CompileModule(path string) (string, error) {
	_, program, err := s.parseFile(path)
	if err != nil {
		return "", err
	}

	g := &moduleGenerator{
		set:      s,
		template: path,
		frames:   []frame{{ctx: "ctx"}},
		indent:   1,
	}

	var b strings.Builder
	b.WriteString("// " + filepath.Base(path) + "\n")
	b.WriteString(moduleRuntime)
	b.WriteString("\nexport default function template(ctx) {\n")
	b.WriteString("  let out = \"\";\n")
	if err := g.program(&b, program); err != nil {
		return "", err
	}
	b.WriteString("  return out;\n}\n")

	return b.String(), nil
}

// frame is one context level. each and with push a frame; ../ pops them.
type frame struct {
	ctx  string
	data string
}

type moduleGenerator struct {
	set      *Set
	template string
	partials []string
	frames   []frame
	vars     int
	indent   int
}

func (g *moduleGenerator) line(b *strings.Builder, code string) {
	b.WriteString(strings.Repeat("  ", g.indent))
	b.WriteString(code)
	b.WriteString("\n")
}

func (g *moduleGenerator) fail(format string, args ...interface{}) error {
	return errors.Configurationf(errors.CodeTemplateSyntax, format+" in templates imported from scripts", args...).
		WithPath(g.template)
}

func (g *moduleGenerator) program(b *strings.Builder, program *ast.Program) error {
	if program == nil {
		return nil
	}

	for _, node := range program.Body {
		switch n := node.(type) {
		case *ast.ContentStatement:
			g.line(b, "out += "+jsString(n.Value)+";")
		case *ast.CommentStatement:
		case *ast.MustacheStatement:
			if err := g.mustache(b, n); err != nil {
				return err
			}
		case *ast.PartialStatement:
			if err := g.partial(b, n); err != nil {
				return err
			}
		case *ast.BlockStatement:
			if err := g.block(b, n); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *moduleGenerator) mustache(b *strings.Builder, n *ast.MustacheStatement) error {
	fn := "escape"
	if n.Unescaped {
		fn = "raw"
	}

	e := n.Expression
	if len(e.Params) > 0 || e.Hash != nil {
		return g.fail("helper %q is not supported", e.HelperName())
	}

	value, err := g.value(e.Path)
	if err != nil {
		return err
	}
	g.line(b, "out += "+fn+"("+value+");")

	return nil
}

func (g *moduleGenerator) block(b *strings.Builder, n *ast.BlockStatement) error {
	e := n.Expression
	name := e.HelperName()

	switch name {
	case "if", "unless", "each", "with":
	default:
		return g.fail("block {{#%s}} is not supported", name)
	}
	if len(e.Params) != 1 {
		return g.fail("{{#%s}} takes exactly one argument", name)
	}
	if e.Hash != nil {
		return g.fail("hash arguments to {{#%s}} are not supported", name)
	}
	if n.Program != nil && len(n.Program.BlockParams) > 0 {
		return g.fail("block parameters on {{#%s}} are not supported", name)
	}

	value, err := g.value(e.Params[0])
	if err != nil {
		return err
	}

	switch name {
	case "if", "unless":
		test := "truthy(" + value + ")"
		if name == "unless" {
			test = "!" + test
		}
		g.line(b, "if ("+test+") {")
		if err := g.nested(b, n.Program); err != nil {
			return err
		}
		if n.Inverse != nil {
			g.line(b, "} else {")
			if err := g.nested(b, n.Inverse); err != nil {
				return err
			}
		}
		g.line(b, "}")

		return nil
	}

	g.vars++
	inner := frame{ctx: fmt.Sprintf("c%d", g.vars)}
	params := inner.ctx
	fn := "within"
	if name == "each" {
		inner.data = fmt.Sprintf("d%d", g.vars)
		params += ", " + inner.data
		fn = "each"
	}

	g.line(b, "out += "+fn+"("+value+", ("+params+") => {")
	g.frames = append(g.frames, inner)
	err = g.function(b, n.Program)
	g.frames = g.frames[:len(g.frames)-1]
	if err != nil {
		return err
	}

	if n.Inverse == nil {
		g.line(b, "});")

		return nil
	}

	g.line(b, "}, () => {")
	if err := g.function(b, n.Inverse); err != nil {
		return err
	}
	g.line(b, "});")

	return nil
}

// nested emits program one level deeper without a new scope.
func (g *moduleGenerator) nested(b *strings.Builder, program *ast.Program) error {
	g.indent++
	defer func() { g.indent-- }()

	return g.program(b, program)
}

// function emits program as the body of a callback returning its output.
func (g *moduleGenerator) function(b *strings.Builder, program *ast.Program) error {
	g.indent++
	defer func() { g.indent-- }()

	g.line(b, "let out = \"\";")
	if err := g.program(b, program); err != nil {
		return err
	}
	g.line(b, "return out;")

	return nil
}

// value returns the JavaScript expression for a mustache path or literal.
func (g *moduleGenerator) value(node ast.Node) (string, error) {
	switch n := node.(type) {
	case *ast.PathExpression:
		return g.path(n)
	case *ast.StringLiteral:
		return jsString(n.Value), nil
	case *ast.NumberLiteral:
		return n.Original, nil
	case *ast.BooleanLiteral:
		return n.Original, nil
	case *ast.SubExpression:
		return "", g.fail("helper %q is not supported", n.Expression.HelperName())
	default:
		return "", g.fail("expression %s is not supported", node)
	}
}

func (g *moduleGenerator) path(p *ast.PathExpression) (string, error) {
	if p.Data {
		return g.dataPath(p)
	}

	if p.Depth >= len(g.frames) {
		return "", g.fail("path %q climbs above the root context", p.Original)
	}

	return g.lookup(g.frames[len(g.frames)-1-p.Depth].ctx, p.Parts), nil
}

func (g *moduleGenerator) dataPath(p *ast.PathExpression) (string, error) {
	if len(p.Parts) > 1 && p.Parts[0] == "root" && p.Depth == 0 {
		return g.lookup(g.frames[0].ctx, p.Parts[1:]), nil
	}
	if len(p.Parts) != 1 || p.Depth > 0 || !dataVariables[p.Parts[0]] {
		return "", g.fail("path %q is not supported", p.Original)
	}

	for i := len(g.frames) - 1; i >= 0; i-- {
		if data := g.frames[i].data; data != "" {
			return data + "." + p.Parts[0], nil
		}
	}

	return "", g.fail("path %q is only available inside {{#each}}", p.Original)
}

func (g *moduleGenerator) lookup(ctx string, parts []string) string {
	if len(parts) == 0 {
		return ctx
	}
	encoded, _ := json.Marshal(parts)

	return "lookup(" + ctx + ", " + string(encoded) + ")"
}

func (g *moduleGenerator) partial(b *strings.Builder, n *ast.PartialStatement) error {
	name, cerr := partialName(n)
	if cerr != nil {
		return cerr.WithPath(g.template)
	}
	if len(n.Params) > 0 || n.Hash != nil {
		return g.fail("partial %q with arguments is not supported", name)
	}

	program, ok := g.set.programs[name]
	if !ok {
		return errors.Configurationf(errors.CodeMissingPartial, "partial %q not found", name).WithPath(g.template)
	}
	for _, active := range g.partials {
		if active == name {
			return errors.Configurationf(errors.CodeTemplateSyntax, "partial %q includes itself", name).
				WithPath(g.template)
		}
	}

	g.partials = append(g.partials, name)
	defer func() { g.partials = g.partials[:len(g.partials)-1] }()

	return g.program(b, program)
}

// jsString quotes s as a JavaScript string literal. JSON escapes U+2028
// and U+2029, so the result is valid in both.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)

	return strings.TrimSuffix(buf.String(), "\n")
}
