package templates

import (
	"sort"
	"strings"

	"github.com/aymerick/raymond/ast"

	"github.com/conneroisu/sitepack/internal/errors"
)

var builtinHelpers = map[string]bool{
	"if":     true,
	"unless": true,
	"with":   true,
	"each":   true,
	"log":    true,
	"lookup": true,
	"equal":  true,
}

// collector walks a template and the partials it includes, recording every
// path resolved against the root context.
//
// depth counts the context-changing blocks (each, with, sections, partials
// with a context argument) around the current node. A path only resolves at
// the root when its ../ count equals depth.
type collector struct {
	set      *Set
	template string
	seen     map[string]bool
	partials []string
}

func (s *Set) collect(template string, program *ast.Program) ([]string, error) {
	c := &collector{
		set:      s,
		template: template,
		seen:     make(map[string]bool),
	}

	if err := c.walk(program, 0, nil); err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(c.seen))
	for ref := range c.seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	return refs, nil
}

func (c *collector) walk(node ast.Node, depth int, guards []string) error {
	switch n := node.(type) {
	case nil:
		return nil
	case *ast.Program:
		if n == nil {
			return nil
		}
		for _, child := range n.Body {
			if err := c.walk(child, depth, guards); err != nil {
				return err
			}
		}
	case *ast.MustacheStatement:
		return c.expression(n.Expression, depth, guards)
	case *ast.BlockStatement:
		return c.block(n, depth, guards)
	case *ast.PartialStatement:
		return c.partial(n, depth, guards)
	}

	return nil
}

func (c *collector) block(n *ast.BlockStatement, depth int, guards []string) error {
	name := n.Expression.HelperName()

	switch {
	case name == "if" || name == "unless":
		// A conditional tests for presence, so its argument is optional and
		// guards the same path inside the block.
		inner := guards
		for _, param := range n.Expression.Params {
			if path, ok := param.(*ast.PathExpression); ok {
				if ref, ok := rootPath(path, depth); ok {
					inner = append(append([]string(nil), guards...), ref)
				}
				continue
			}
			if err := c.param(param, depth, guards); err != nil {
				return err
			}
		}
		if err := c.walk(n.Program, depth, inner); err != nil {
			return err
		}

		return c.walk(n.Inverse, depth, guards)

	case name == "each" || name == "with":
		if err := c.params(n.Expression, depth, guards); err != nil {
			return err
		}
		if err := c.walk(n.Program, depth+1, guards); err != nil {
			return err
		}

		return c.walk(n.Inverse, depth, guards)

	case builtinHelpers[name]:
		if err := c.params(n.Expression, depth, guards); err != nil {
			return err
		}
		if err := c.walk(n.Program, depth, guards); err != nil {
			return err
		}

		return c.walk(n.Inverse, depth, guards)

	case len(n.Expression.Params) == 0 && n.Expression.Hash == nil:
		if c.set.KnownHelpersOnly {
			return errors.Configurationf(errors.CodeTemplateSyntax,
				"section {{#%s}} is not a known helper", name).WithPath(c.template)
		}
		if path, ok := n.Expression.Path.(*ast.PathExpression); ok {
			c.require(path, depth, guards)
		}
		if err := c.walk(n.Program, depth+1, guards); err != nil {
			return err
		}

		return c.walk(n.Inverse, depth, guards)

	default:
		return errors.Configurationf(errors.CodeTemplateSyntax, "unknown helper %q", name).
			WithPath(c.template)
	}
}

func (c *collector) partial(n *ast.PartialStatement, depth int, guards []string) error {
	name, err := partialName(n)
	if err != nil {
		return err.WithPath(c.template)
	}

	program, ok := c.set.programs[name]
	if !ok {
		return errors.Configurationf(errors.CodeMissingPartial, "partial %q not found in %s", name, c.set.dir).
			WithPath(c.template)
	}

	for _, active := range c.partials {
		if active == name {
			return errors.Configurationf(errors.CodeTemplateSyntax, "partial %q includes itself", name).
				WithPath(c.template)
		}
	}

	inner := depth
	if len(n.Params) > 0 {
		if err := c.param(n.Params[0], depth, guards); err != nil {
			return err
		}
		inner = depth + 1
	}

	partialGuards := guards
	if n.Hash != nil {
		partialGuards = append([]string(nil), guards...)
		for _, pair := range n.Hash.Pairs {
			if err := c.param(pair.Val, depth, guards); err != nil {
				return err
			}
			partialGuards = append(partialGuards, pair.Key)
		}
	}

	c.partials = append(c.partials, name)
	defer func() { c.partials = c.partials[:len(c.partials)-1] }()

	return c.walk(program, inner, partialGuards)
}

func partialName(n *ast.PartialStatement) (string, *errors.ConfigurationError) {
	switch name := n.Name.(type) {
	case *ast.PathExpression:
		return name.Original, nil
	case *ast.StringLiteral:
		return name.Value, nil
	default:
		return "", errors.NewConfigurationError(errors.CodeTemplateSyntax, "dynamic partial names are not supported")
	}
}

func (c *collector) expression(e *ast.Expression, depth int, guards []string) error {
	if len(e.Params) == 0 && e.Hash == nil {
		if path, ok := e.Path.(*ast.PathExpression); ok {
			c.require(path, depth, guards)
		}

		return nil
	}

	name := e.HelperName()
	if !builtinHelpers[name] {
		return errors.Configurationf(errors.CodeTemplateSyntax, "unknown helper %q", name).
			WithPath(c.template)
	}

	return c.params(e, depth, guards)
}

func (c *collector) params(e *ast.Expression, depth int, guards []string) error {
	for _, param := range e.Params {
		if err := c.param(param, depth, guards); err != nil {
			return err
		}
	}
	if e.Hash != nil {
		for _, pair := range e.Hash.Pairs {
			if err := c.param(pair.Val, depth, guards); err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *collector) param(node ast.Node, depth int, guards []string) error {
	switch n := node.(type) {
	case *ast.PathExpression:
		c.require(n, depth, guards)
	case *ast.SubExpression:
		return c.expression(n.Expression, depth, guards)
	}

	return nil
}

func (c *collector) require(path *ast.PathExpression, depth int, guards []string) {
	ref, ok := rootPath(path, depth)
	if !ok {
		return
	}

	for _, guard := range guards {
		if ref == guard || strings.HasPrefix(ref, guard+".") {
			return
		}
	}

	c.seen[ref] = true
}

// rootPath returns the dotted path of p when it resolves against the root
// context. @root paths always do; @index, @key and friends never do.
func rootPath(p *ast.PathExpression, depth int) (string, bool) {
	if p.Data {
		if len(p.Parts) > 1 && p.Parts[0] == "root" {
			return strings.Join(p.Parts[1:], "."), true
		}

		return "", false
	}

	if len(p.Parts) == 0 || p.Depth != depth {
		return "", false
	}

	return strings.Join(p.Parts, "."), true
}
