// Package assembler turns the declarative site configuration into the
// complete BuildConfiguration handed to the build engine: the resolved build
// target, the ordered transform rules, the page specs and the metadata
// derived for this invocation.
//
// Assembly is a single synchronous pass. The clock and the environment are
// explicit inputs, so a fixed clock and environment give identical output.
package assembler

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/sitepack/internal/config"
	"github.com/conneroisu/sitepack/internal/errors"
	"github.com/conneroisu/sitepack/internal/manifest"
	"github.com/conneroisu/sitepack/internal/metadata"
)

// EnvMode is the environment variable selecting the build mode.
const EnvMode = "NODE_ENV"

// Options are the explicit inputs of one assembly.
type Options struct {
	// Root is the project directory the target root is resolved against.
	Root    string
	Variant string
	// Now supplies the build start instant. Defaults to time.Now.
	Now func() time.Time
	// Env is consulted for NODE_ENV. The process environment is never read.
	Env map[string]string
	// ModeOverride wins over NODE_ENV when set.
	ModeOverride Mode
}

// ParseMode validates a build mode name. The empty string selects development.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.TrimSpace(s)) {
	case "", ModeDevelopment:
		return ModeDevelopment, nil
	case ModeProduction:
		return ModeProduction, nil
	default:
		return "", errors.Configurationf(errors.CodeInvalidMode,
			"invalid mode %q (expected %q or %q)", s, ModeDevelopment, ModeProduction)
	}
}

// ResolveMode picks the mode from the override or the environment.
func ResolveMode(override Mode, env map[string]string) (Mode, error) {
	if override != "" {
		return ParseMode(string(override))
	}

	return ParseMode(env[EnvMode])
}

// Assemble produces the build configuration for cfg.
func Assemble(cfg *config.Config, opts Options) (*BuildConfiguration, error) {
	target, err := cfg.Resolve(opts.Variant)
	if err != nil {
		return nil, err
	}

	mode, err := ResolveMode(opts.ModeOverride, opts.Env)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	startedAt := now()

	projectRoot := opts.Root
	if projectRoot == "" {
		projectRoot = "."
	}
	root, err := filepath.Abs(filepath.Join(projectRoot, target.Root))
	if err != nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "cannot resolve project root").
			WithPath(target.Root).
			WithCause(err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "project root is not a directory").
			WithPath(root)
	}

	m, err := manifest.Load(filepath.Join(root, target.Manifest))
	if err != nil {
		return nil, err
	}

	tracked := target.Site.Tracked
	if len(tracked) == 0 {
		tracked = manifest.DefaultTracked
	}
	md, err := metadata.Derive(startedAt, m, tracked, target.Timestamp)
	if err != nil {
		return nil, err
	}

	buildTarget, err := assembleTarget(root, target)
	if err != nil {
		return nil, err
	}

	siteName := target.Site.Name
	if siteName == "" {
		siteName = m.Name
	}
	params := SiteParameters{
		SiteName:      siteName,
		Description:   target.Site.Description,
		Versions:      md.Versions,
		CopyrightYear: md.CopyrightYear,
		LastUpdated:   md.LastUpdated,
	}

	pages, err := AssemblePageSpecs(root, target.Pages, params)
	if err != nil {
		return nil, err
	}

	bc := &BuildConfiguration{
		Mode:      mode,
		Variant:   opts.Variant,
		StartedAt: startedAt,
		Target:    buildTarget,
		Rules:     AssembleTransformRules(buildTarget, mode),
		Pages:     pages,
		Metadata:  md,
		Env:       opts.Env,
	}

	if err := validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

func assembleTarget(root string, target config.TargetConfig) (BuildTarget, error) {
	bt := BuildTarget{
		Root:          root,
		OutputDir:     resolve(root, target.Output.Dir),
		Filename:      target.Output.Filename,
		CSSFilename:   target.Output.CSSFilename,
		AssetFilename: target.Output.AssetFilename,
		HashLength:    target.Output.HashLength,
		Clean:         config.Bool(target.Output.Clean, true),
		SourceMaps:    config.Bool(target.SourceMaps, true),
		SplitChunks:   config.Bool(target.SplitChunks, true),
		Images:        config.Bool(target.Images, true),
		Templates: TemplateOptions{
			PartialsDir:      resolve(root, target.Templates.PartialsDir),
			InlineRequires:   target.Templates.InlineRequires,
			AssetsRoot:       resolve(root, target.Templates.AssetsRoot),
			KnownHelpersOnly: config.Bool(target.Templates.KnownHelpersOnly, false),
		},
	}

	if bt.OutputDir == root {
		return BuildTarget{}, errors.NewConfigurationError(errors.CodeInvalidConfig,
			"output directory must not be the project root").WithPath(bt.OutputDir)
	}

	for _, e := range target.Entries {
		path := resolve(root, e.Path)
		if !isFile(path) {
			return BuildTarget{}, errors.Configurationf(errors.CodeMissingEntry, "entry %q not found", e.Name).
				WithPath(path)
		}
		bt.Entries = append(bt.Entries, Entry{Name: e.Name, Path: path})
	}

	if bt.Templates.PartialsDir != "" && !isDir(bt.Templates.PartialsDir) {
		return BuildTarget{}, errors.NewConfigurationError(errors.CodeMissingPartial, "partials directory not found").
			WithPath(bt.Templates.PartialsDir)
	}

	for _, p := range target.Styles.IncludePaths {
		bt.Styles.IncludePaths = append(bt.Styles.IncludePaths, resolve(root, p))
	}

	return bt, nil
}

// AssemblePageSpecs builds one page spec per configured page. Every page
// starts from the shared parameter bag; a page's title and params override
// single keys.
func AssemblePageSpecs(root string, pages []config.PageConfig, params SiteParameters) ([]PageSpec, error) {
	specs := make([]PageSpec, 0, len(pages))
	seen := make(map[string]string, len(pages))

	for _, page := range pages {
		templatePath := resolve(root, page.Template)
		if !isFile(templatePath) {
			return nil, errors.NewConfigurationError(errors.CodeMissingTemplate, "page template not found").
				WithPath(templatePath)
		}

		filename := filepath.ToSlash(filepath.Clean(page.Filename))
		if other, ok := seen[filename]; ok {
			return nil, errors.Configurationf(errors.CodeDuplicatePage,
				"%s and %s both write %s", other, page.Template, filename)
		}
		seen[filename] = page.Template

		spec := PageSpec{
			Template:       page.Template,
			TemplatePath:   templatePath,
			OutputFilename: filename,
			Inject:         config.Bool(page.Inject, true),
			Parameters:     params.Values(),
		}

		if page.Title != "" {
			spec.Parameters["title"] = page.Title
		}

		if page.Content != "" {
			spec.ContentPath = resolve(root, page.Content)
			if !isFile(spec.ContentPath) {
				return nil, errors.NewConfigurationError(errors.CodeMissingTemplate, "page content not found").
					WithPath(spec.ContentPath)
			}
		}

		for k, v := range page.Params {
			spec.Parameters[canonicalKey(spec.Parameters, k)] = v
		}

		specs = append(specs, spec)
	}

	return specs, nil
}

// canonicalKey maps a case-folded key back onto an existing parameter name.
// Viper lowercases map keys, so "sitename" in a config file overrides
// "siteName".
func canonicalKey(params map[string]interface{}, key string) string {
	if _, ok := params[key]; ok {
		return key
	}
	for existing := range params {
		if strings.EqualFold(existing, key) {
			return existing
		}
	}

	return key
}

func validate(bc *BuildConfiguration) error {
	for _, page := range bc.Pages {
		rule, ok := MatchRule(bc.Rules, page.TemplatePath)
		if !ok || !rule.Uses(ProcessorHandlebars) {
			return errors.NewConfigurationError(errors.CodeUnmatchedExtension,
				"page template is not handled by a template rule").WithPath(page.TemplatePath)
		}
	}

	if len(bc.Target.Entries) == 0 {
		return errors.NewConfigurationError(errors.CodeMissingEntry, "no entries")
	}

	return nil
}

func resolve(root, p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(root, filepath.FromSlash(p))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
