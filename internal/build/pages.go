package build

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/sitepack/internal/assembler"
	"github.com/conneroisu/sitepack/internal/errors"
)

// requireAttributes may carry an inline asset reference.
var requireAttributes = map[string]bool{
	"src":      true,
	"href":     true,
	"poster":   true,
	"data-src": true,
}

// finishPage resolves a rendered page's inline asset references and, when
// the page asks for it, injects the entry stylesheets and scripts.
func (e *Engine) finishPage(page renderedPage, entries []entryOutputs, assets *pageAssets) (OutputFile, error) {
	filename := filepath.ToSlash(page.spec.OutputFilename)
	out := OutputFile{
		Path:   filename,
		Kind:   KindPage,
		Inputs: []string{e.relToRoot(page.spec.TemplatePath)},
	}

	doc, err := html.Parse(strings.NewReader(page.html))
	if err != nil {
		return OutputFile{}, errors.NewConfigurationError(errors.CodeOutput, "cannot parse rendered page").
			WithPath(page.spec.TemplatePath).WithCause(err)
	}

	changed := false
	prefix := e.cfg.Target.Templates.InlineRequires
	err = walk(doc, func(n *html.Node) *errors.ConfigurationError {
		for i, attr := range n.Attr {
			if !requireAttributes[attr.Key] || prefix == "" || !strings.HasPrefix(attr.Val, prefix) {
				continue
			}
			asset, err := assets.require(attr.Val)
			if err != nil {
				return err.WithPath(page.spec.TemplatePath)
			}
			n.Attr[i].Val = relativeURL(filename, asset)
			changed = true
		}
		return nil
	})
	if err != nil {
		return OutputFile{}, err
	}

	if page.spec.Inject {
		injectTags(doc, filename, entries, e.cfg.Target.SplitChunks)
		changed = true
	}

	if !changed {
		out.contents = []byte(page.html)
		out.Size = len(out.contents)
		return out, nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return OutputFile{}, errors.NewConfigurationError(errors.CodeOutput, "cannot render page").
			WithPath(page.spec.TemplatePath).WithCause(err)
	}
	buf.WriteByte('\n')
	out.contents = buf.Bytes()
	out.Size = buf.Len()

	return out, nil
}

// injectTags appends a stylesheet link and a deferred script per entry to
// the document head.
func injectTags(doc *html.Node, page string, entries []entryOutputs, module bool) {
	head := find(doc, atom.Head)
	if head == nil {
		return
	}

	for _, entry := range entries {
		if entry.Style == "" {
			continue
		}
		head.AppendChild(&html.Node{
			Type:     html.ElementNode,
			Data:     "link",
			DataAtom: atom.Link,
			Attr: []html.Attribute{
				{Key: "href", Val: relativeURL(page, entry.Style)},
				{Key: "rel", Val: "stylesheet"},
			},
		})
	}

	for _, entry := range entries {
		if entry.Script == "" {
			continue
		}
		loading := html.Attribute{Key: "defer"}
		if module {
			loading = html.Attribute{Key: "type", Val: "module"}
		}
		head.AppendChild(&html.Node{
			Type:     html.ElementNode,
			Data:     "script",
			DataAtom: atom.Script,
			Attr: []html.Attribute{
				loading,
				{Key: "src", Val: relativeURL(page, entry.Script)},
			},
		})
	}
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}

	return nil
}

func walk(n *html.Node, fn func(*html.Node) *errors.ConfigurationError) error {
	if n.Type == html.ElementNode {
		if err := fn(n); err != nil {
			return err
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := walk(c, fn); err != nil {
			return err
		}
	}

	return nil
}

// relativeURL returns the URL of target, a path relative to the output
// directory, as seen from page.
func relativeURL(page, target string) string {
	dir := path.Dir(page)
	if dir == "." {
		return target
	}

	return strings.Repeat("../", strings.Count(dir, "/")+1) + target
}

func (e *Engine) relToRoot(file string) string {
	rel, err := filepath.Rel(e.cfg.Target.Root, file)
	if err != nil {
		return filepath.ToSlash(file)
	}

	return filepath.ToSlash(rel)
}

// pageAssets copies the files pages reference through the inline-require
// prefix, fingerprinted with the asset pattern.
type pageAssets struct {
	target assembler.BuildTarget
	rules  []assembler.TransformRule
	files  map[string]OutputFile
}

func newPageAssets(target assembler.BuildTarget, rules []assembler.TransformRule) *pageAssets {
	return &pageAssets{
		target: target,
		rules:  rules,
		files:  make(map[string]OutputFile),
	}
}

// require resolves ref below the assets root, copies the file once and
// returns its URL. A ?query on ref fills the [query] placeholder of the URL;
// the written file never carries it. A #fragment is kept as is.
func (a *pageAssets) require(ref string) (string, *errors.ConfigurationError) {
	clean, fragment, _ := strings.Cut(ref, "#")
	if fragment != "" {
		fragment = "#" + fragment
	}
	clean, query, _ := strings.Cut(clean, "?")
	if query != "" {
		query = "?" + query
	}

	root := a.target.Templates.AssetsRoot
	source := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if !strings.HasPrefix(source, root+string(filepath.Separator)) {
		return "", errors.Configurationf(errors.CodeMissingAsset, "inline asset %q escapes %s", ref, root)
	}

	f, ok := a.files[source]
	if !ok {
		rule, ok := assembler.MatchRule(a.rules, source)
		if !ok || !rule.Uses(assembler.ProcessorAssetResource) {
			return "", errors.Configurationf(errors.CodeUnmatchedExtension, "no asset rule matches %q", ref)
		}

		data, err := os.ReadFile(source)
		if err != nil {
			return "", errors.Configurationf(errors.CodeMissingAsset, "inline asset %q not found under %s",
				ref, root).WithCause(err)
		}

		hash := ContentHash(data, a.target.HashLength)
		input := source
		if rel, err := filepath.Rel(a.target.Root, source); err == nil {
			input = filepath.ToSlash(rel)
		}

		f = OutputFile{
			Path:     a.resolve(source, hash, ""),
			Kind:     KindAsset,
			Hash:     hash,
			Size:     len(data),
			Inputs:   []string{input},
			contents: data,
		}
		a.files[source] = f
	}

	return a.resolve(source, f.Hash, query) + fragment, nil
}

func (a *pageAssets) resolve(source, hash, query string) string {
	return filepath.ToSlash(assembler.ResolveOutputPath("", a.target.AssetFilename, filepath.Base(source)+query, hash))
}

func (a *pageAssets) outputs() []OutputFile {
	files := make([]OutputFile, 0, len(a.files))
	for _, source := range sortedKeys(a.files) {
		files = append(files, a.files[source])
	}

	return files
}
