package build

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepack/internal/assembler"
	"github.com/conneroisu/sitepack/internal/config"
	"github.com/conneroisu/sitepack/internal/errors"
	"github.com/conneroisu/sitepack/internal/testutils"
)

func boolPtr(b bool) *bool { return &b }

func assembleDemo(t *testing.T, root string, mutate func(*config.Config), env map[string]string) *assembler.BuildConfiguration {
	t.Helper()
	cfg := testutils.CreateTestConfig()
	if mutate != nil {
		mutate(cfg)
	}

	bc, err := assembler.Assemble(cfg, assembler.Options{
		Root: root,
		Now:  testutils.FixedClock(),
		Env:  env,
	})
	require.NoError(t, err)

	return bc
}

func buildDemo(t *testing.T, bc *assembler.BuildConfiguration) *Result {
	t.Helper()
	result, err := NewEngine(bc, nil).Build(context.Background())
	require.NoError(t, err)

	return result
}

func readOutput(t *testing.T, result *Result, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(result.OutputDir, filepath.FromSlash(rel)))
	require.NoError(t, err)

	return string(data)
}

func TestBuildDemoSite(t *testing.T) {
	root := testutils.CreateTempProject(t)
	result := buildDemo(t, assembleDemo(t, root, nil, nil))

	assert.Equal(t, filepath.Join(root, "dist"), result.OutputDir)
	assert.Equal(t, assembler.ModeDevelopment, result.Mode)
	assert.NotEmpty(t, result.BuildID)
	assert.Equal(t, []string{"index.html", "about.html"}, result.Pages)

	script, ok := result.EntryFile("main", KindScript)
	require.True(t, ok)
	assert.Regexp(t, regexp.MustCompile(`^main\.[0-9a-f]{16}\.bundle\.js$`), script.Path)
	assert.Contains(t, script.Inputs, "src/js/index.js")

	style, ok := result.EntryFile("main", KindStyle)
	require.True(t, ok)
	assert.Regexp(t, regexp.MustCompile(`^assets/css/main\.[0-9a-f]{16}\.css$`), style.Path)
	assert.Contains(t, readOutput(t, result, style.Path), "color: #0d6efd")

	js := readOutput(t, result, script.Path)
	assert.Contains(t, js, "Hello from the bundle")
	assert.True(t, strings.HasSuffix(js, "//# sourceMappingURL="+filepath.Base(script.Path)+".map\n"))
	_, ok = result.File(script.Path + ".map")
	assert.True(t, ok, "source maps are on by default")

	index := readOutput(t, result, "index.html")
	assert.Contains(t, index, `<link href="`+style.Path+`" rel="stylesheet"/>`)
	assert.Contains(t, index, `<script type="module" src="`+script.Path+`"></script>`)
	assert.Contains(t, index, "Saturday 17 Oct 2026, 09:05:03 am AEDT")
	assert.Contains(t, index, "Webpack 5.70.0, Bootstrap 5.2.0")
	assert.Contains(t, index, config.DefaultDescription)

	logo := regexp.MustCompile(`src="(images/[0-9a-f]{16}\.svg)"`).FindStringSubmatch(index)
	require.Len(t, logo, 2, "inline image reference is rewritten")
	assert.Contains(t, readOutput(t, result, logo[1]), "<svg")

	about := readOutput(t, result, "about.html")
	assert.Contains(t, about, "<title>About demo</title>")
	assert.Contains(t, about, `src="`+script.Path+`"`)
}

func TestBuildIsDeterministic(t *testing.T) {
	root := testutils.CreateTempProject(t)
	bc := assembleDemo(t, root, nil, map[string]string{"NODE_ENV": "production"})

	first := buildDemo(t, bc)
	second := buildDemo(t, bc)

	require.Len(t, second.Files, len(first.Files))
	for i := range first.Files {
		assert.Equal(t, first.Files[i].Path, second.Files[i].Path)
		assert.Equal(t, first.Files[i].Hash, second.Files[i].Hash)
		assert.Equal(t, string(first.Files[i].Contents()), string(second.Files[i].Contents()))
	}
	assert.NotEqual(t, first.BuildID, second.BuildID)
}

func TestStyleChangeOnlyChangesStyleHash(t *testing.T) {
	root := testutils.CreateTempProject(t)
	first := buildDemo(t, assembleDemo(t, root, nil, nil))

	testutils.WriteFile(t, root, "src/scss/main.scss", "$primary: #198754;\n\nbody {\n  color: $primary;\n}\n")
	second := buildDemo(t, assembleDemo(t, root, nil, nil))

	firstJS, _ := first.EntryFile("main", KindScript)
	secondJS, _ := second.EntryFile("main", KindScript)
	assert.Equal(t, firstJS.Path, secondJS.Path)

	firstCSS, _ := first.EntryFile("main", KindStyle)
	secondCSS, _ := second.EntryFile("main", KindStyle)
	assert.NotEqual(t, firstCSS.Path, secondCSS.Path)

	_, err := os.Stat(filepath.Join(root, "dist", filepath.FromSlash(firstCSS.Path)))
	assert.True(t, os.IsNotExist(err), "clean builds drop stale outputs")
}

func TestBuildProductionMode(t *testing.T) {
	root := testutils.CreateTempProject(t)
	result := buildDemo(t, assembleDemo(t, root, nil, map[string]string{"NODE_ENV": "production"}))

	assert.Equal(t, assembler.ModeProduction, result.Mode)
	style, ok := result.EntryFile("main", KindStyle)
	require.True(t, ok)
	assert.Contains(t, readOutput(t, result, style.Path), "body{color:#0d6efd}")

	script, ok := result.EntryFile("main", KindScript)
	require.True(t, ok)
	assert.NotContains(t, readOutput(t, result, script.Path), "\n  greeting")
}

func TestBuildWithoutSourceMapsOrSplitting(t *testing.T) {
	root := testutils.CreateTempProject(t)
	bc := assembleDemo(t, root, func(cfg *config.Config) {
		cfg.Target.SourceMaps = boolPtr(false)
		cfg.Target.SplitChunks = boolPtr(false)
	}, nil)
	result := buildDemo(t, bc)

	for _, f := range result.Files {
		assert.NotEqual(t, KindSourceMap, f.Kind, f.Path)
	}

	script, _ := result.EntryFile("main", KindScript)
	assert.NotContains(t, readOutput(t, result, script.Path), "sourceMappingURL")
	assert.Contains(t, readOutput(t, result, "index.html"), `<script defer="" src="`+script.Path+`"></script>`)
}

func TestRenderFailureWritesNothing(t *testing.T) {
	root := testutils.CreateTempProject(t)
	testutils.WriteFile(t, root, "src/templates/pages/about.hbs", "<p>{{undefinedKey}}</p>")
	marker := testutils.WriteFile(t, root, "dist/keep.txt", "previous build")

	_, err := NewEngine(assembleDemo(t, root, nil, nil), nil).Build(context.Background())
	require.Error(t, err)

	var renderErr *errors.TemplateRenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "undefinedKey", renderErr.Key)

	entries, err := os.ReadDir(filepath.Join(root, "dist"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "previous build", string(data))
}

func TestUnmatchedExtension(t *testing.T) {
	root := testutils.CreateTempProject(t)
	testutils.WriteFile(t, root, "src/js/index.js", "import font from './font.woff2';\nconsole.log(font);\n")
	testutils.WriteFile(t, root, "src/js/font.woff2", "not really a font")

	_, err := NewEngine(assembleDemo(t, root, nil, nil), nil).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeUnmatchedExtension, ""))
	assert.Contains(t, err.Error(), "src/js/font.woff2")

	_, statErr := os.Stat(filepath.Join(root, "dist"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestImagesDisabledRejectsImageImports(t *testing.T) {
	root := testutils.CreateTempProject(t)
	testutils.WriteFile(t, root, "src/templates/pages/home.hbs", "<p>{{siteName}}</p>")
	testutils.WriteFile(t, root, "src/js/index.js", "import logo from '../assets/images/logo.svg';\nconsole.log(logo);\n")

	bc := assembleDemo(t, root, func(cfg *config.Config) {
		cfg.Target.Images = boolPtr(false)
	}, nil)
	_, err := NewEngine(bc, nil).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeUnmatchedExtension, ""))
}

func TestScriptImportsImagesAndTemplates(t *testing.T) {
	root := testutils.CreateTempProject(t)
	testutils.WriteFile(t, root, "src/templates/card.hbs", "<div class=\"card\">{{siteName}}</div>")
	testutils.WriteFile(t, root, "src/js/index.js", `import '../scss/main.scss';
import card from '../templates/card.hbs';
import logo from '../assets/images/logo.svg';

document.body.innerHTML = card({ siteName: 'demo' }) + logo;
`)

	result := buildDemo(t, assembleDemo(t, root, nil, nil))
	script, ok := result.EntryFile("main", KindScript)
	require.True(t, ok)

	js := readOutput(t, result, script.Path)
	assert.Contains(t, js, `"siteName"`)
	assert.Regexp(t, regexp.MustCompile(`"/images/[0-9a-f]{16}\.svg"`), js)
	assert.NotContains(t, js, "/assets/logo-")

	var assets []string
	for _, f := range result.Files {
		if f.Kind == KindAsset {
			assets = append(assets, f.Path)
		}
	}
	assert.Len(t, assets, 1, "the script and the page share one copy of the logo")
}

func TestScriptImportsTemplateWithBlocks(t *testing.T) {
	root := testutils.CreateTempProject(t)
	testutils.WriteFile(t, root, "src/templates/partials/greeting.hbs",
		"<h2>{{title}}</h2>{{#if mode}}<p>Built in {{mode}} mode.</p>{{/if}}<ul>{{#each items}}<li>{{@index}}: {{this}}</li>{{/each}}</ul>")
	testutils.WriteFile(t, root, "src/js/index.js", `import '../scss/main.scss';
import greeting from '../templates/partials/greeting.hbs';

document.body.innerHTML = greeting({ title: 'demo', mode: 'development', items: ['a', 'b'] });
`)

	result := buildDemo(t, assembleDemo(t, root, nil, nil))
	script, ok := result.EntryFile("main", KindScript)
	require.True(t, ok)

	js := readOutput(t, result, script.Path)
	assert.Contains(t, js, "Built in ")
	assert.Contains(t, js, `"mode"`)
	assert.Contains(t, js, `"items"`)
}

func TestInjectDisabled(t *testing.T) {
	root := testutils.CreateTempProject(t)
	bc := assembleDemo(t, root, func(cfg *config.Config) {
		cfg.Target.Pages[1].Inject = boolPtr(false)
	}, nil)
	result := buildDemo(t, bc)

	about := readOutput(t, result, "about.html")
	assert.NotContains(t, about, "<script")
	assert.NotContains(t, about, "stylesheet")
	assert.Contains(t, readOutput(t, result, "index.html"), "<script")
}

func TestPagesInSubdirectoriesUseRelativeURLs(t *testing.T) {
	root := testutils.CreateTempProject(t)
	bc := assembleDemo(t, root, func(cfg *config.Config) {
		cfg.Target.Pages = append(cfg.Target.Pages, config.PageConfig{
			Template: "./src/templates/pages/home.hbs",
			Filename: "docs/index.html",
		})
	}, nil)
	result := buildDemo(t, bc)

	script, _ := result.EntryFile("main", KindScript)
	docs := readOutput(t, result, "docs/index.html")
	assert.Contains(t, docs, `src="../`+script.Path+`"`)
	assert.Regexp(t, regexp.MustCompile(`src="\.\./images/[0-9a-f]{16}\.svg"`), docs)
}

func TestMarkdownContent(t *testing.T) {
	root := testutils.CreateTempProject(t)
	testutils.WriteFile(t, root, "src/content/guide.md", "# Guide\n\nSome *emphasis*.\n")
	testutils.WriteFile(t, root, "src/templates/pages/guide.hbs", "<html><head><title>{{title}}</title></head><body>{{{content}}}</body></html>")

	bc := assembleDemo(t, root, func(cfg *config.Config) {
		cfg.Target.Pages = append(cfg.Target.Pages, config.PageConfig{
			Template: "./src/templates/pages/guide.hbs",
			Filename: "guide.html",
			Title:    "Guide",
			Content:  "./src/content/guide.md",
		})
	}, nil)
	result := buildDemo(t, bc)

	guide := readOutput(t, result, "guide.html")
	assert.Contains(t, guide, `<h1 id="guide">Guide</h1>`)
	assert.Contains(t, guide, "<em>emphasis</em>")
	assert.Contains(t, guide, "<title>Guide</title>")
}

func TestMissingInlineAsset(t *testing.T) {
	root := testutils.CreateTempProject(t)
	testutils.WriteFile(t, root, "src/templates/pages/home.hbs", `<img src="/assets/images/missing.png">`)

	_, err := NewEngine(assembleDemo(t, root, nil, nil), nil).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewConfigurationError(errors.CodeMissingAsset, ""))
}

func TestInlineAssetQueryFillsQueryPlaceholder(t *testing.T) {
	root := testutils.CreateTempProject(t)
	testutils.WriteFile(t, root, "src/templates/pages/home.hbs",
		`<img src="/assets/images/logo.svg?v=2#icon"><img src="/assets/images/logo.svg">`)

	result := buildDemo(t, assembleDemo(t, root, nil, nil))
	page := readOutput(t, result, "index.html")
	assert.Regexp(t, regexp.MustCompile(`src="images/[0-9a-f]{16}\.svg\?v=2#icon"`), page)
	assert.Regexp(t, regexp.MustCompile(`src="images/[0-9a-f]{16}\.svg"`), page)

	var assets []string
	for _, f := range result.Files {
		if f.Kind == KindAsset {
			assets = append(assets, f.Path)
		}
	}
	require.Len(t, assets, 1, "both references share one copy")
	assert.NotContains(t, assets[0], "?")
	assert.FileExists(t, filepath.Join(result.OutputDir, filepath.FromSlash(assets[0])))
}

func TestInlineAssetCannotEscapeAssetsRoot(t *testing.T) {
	root := testutils.CreateTempProject(t)
	testutils.WriteFile(t, root, "src/templates/pages/home.hbs", `<img src="/assets/images/../../../package.json">`)

	_, err := NewEngine(assembleDemo(t, root, nil, nil), nil).Build(context.Background())
	require.Error(t, err)
}

func TestCleanFalseMergesOutput(t *testing.T) {
	root := testutils.CreateTempProject(t)
	stale := testutils.WriteFile(t, root, "dist/stale.txt", "left over")

	bc := assembleDemo(t, root, func(cfg *config.Config) {
		cfg.Target.Output.Clean = boolPtr(false)
	}, nil)
	buildDemo(t, bc)
	_, err := os.Stat(stale)
	assert.NoError(t, err)

	buildDemo(t, assembleDemo(t, root, nil, nil))
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestBuildHonoursCancellation(t *testing.T) {
	root := testutils.CreateTempProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(assembleDemo(t, root, nil, nil), nil).Build(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(root, "dist"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRelativeURL(t *testing.T) {
	tests := []struct {
		page, target, want string
	}{
		{"index.html", "main.js", "main.js"},
		{"docs/index.html", "main.js", "../main.js"},
		{"a/b/c.html", "images/x.svg", "../../images/x.svg"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeURL(tt.page, tt.target), tt.page)
	}
}
