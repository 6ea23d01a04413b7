// Package build turns an assembled BuildConfiguration into files on disk.
// It renders every page, bundles the entries with esbuild, fingerprints the
// outputs and writes the whole build to the output directory in one step.
package build

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/sitepack/internal/assembler"
	"github.com/conneroisu/sitepack/internal/errors"
	"github.com/conneroisu/sitepack/internal/logging"
	"github.com/conneroisu/sitepack/internal/markdown"
	"github.com/conneroisu/sitepack/internal/templates"
)

// FileKind classifies an output file.
type FileKind string

const (
	KindScript    FileKind = "js"
	KindStyle     FileKind = "css"
	KindChunk     FileKind = "chunk"
	KindSourceMap FileKind = "map"
	KindAsset     FileKind = "asset"
	KindPage      FileKind = "html"
)

// OutputFile is one file of a build. Path is slash-separated and relative
// to the output directory.
type OutputFile struct {
	Path   string   `json:"path"`
	Kind   FileKind `json:"kind"`
	Entry  string   `json:"entry,omitempty"`
	Hash   string   `json:"hash,omitempty"`
	Size   int      `json:"size"`
	Inputs []string `json:"inputs,omitempty"`

	contents []byte
}

// Contents returns the bytes written for the file.
func (f OutputFile) Contents() []byte {
	return f.contents
}

// Result describes a finished build.
type Result struct {
	BuildID   string         `json:"buildId"`
	Mode      assembler.Mode `json:"mode"`
	Variant   string         `json:"variant,omitempty"`
	OutputDir string         `json:"outputDir"`
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
	Files     []OutputFile   `json:"files"`
	Pages     []string       `json:"pages"`
}

// File returns the output at path.
func (r *Result) File(path string) (OutputFile, bool) {
	for _, f := range r.Files {
		if f.Path == path {
			return f, true
		}
	}

	return OutputFile{}, false
}

// EntryFile returns the script or stylesheet emitted for entry.
func (r *Result) EntryFile(entry string, kind FileKind) (OutputFile, bool) {
	for _, f := range r.Files {
		if f.Entry == entry && f.Kind == kind {
			return f, true
		}
	}

	return OutputFile{}, false
}

// TotalSize returns the number of bytes written.
func (r *Result) TotalSize() int {
	total := 0
	for _, f := range r.Files {
		total += f.Size
	}

	return total
}

// Engine runs builds for one BuildConfiguration.
type Engine struct {
	cfg    *assembler.BuildConfiguration
	logger logging.Logger
}

// NewEngine returns an engine for cfg. A nil logger discards output.
func NewEngine(cfg *assembler.BuildConfiguration, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}

	return &Engine{
		cfg:    cfg,
		logger: logger.WithComponent("build"),
	}
}

// Config returns the configuration the engine builds.
func (e *Engine) Config() *assembler.BuildConfiguration {
	return e.cfg
}

// Build produces the site. Pages are rendered before anything is bundled
// or written, so a render failure leaves the output directory untouched.
// Everything is staged next to the output directory and moved into place
// once the whole build has succeeded.
func (e *Engine) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	target := e.cfg.Target

	result := &Result{
		BuildID:   uuid.NewString(),
		Mode:      e.cfg.Mode,
		Variant:   e.cfg.Variant,
		OutputDir: target.OutputDir,
		StartedAt: e.cfg.StartedAt,
	}
	logger := e.logger.With("build_id", result.BuildID)
	logger.Info(ctx, "Building site",
		"mode", e.cfg.Mode,
		"variant", e.cfg.Variant,
		"entries", len(target.Entries),
		"pages", len(e.cfg.Pages))

	set, err := templates.NewSet(target.Templates.PartialsDir)
	if err != nil {
		return nil, err
	}
	set.KnownHelpersOnly = target.Templates.KnownHelpersOnly

	pages, err := e.renderPages(ctx, logger, set)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundled, err := e.bundle(ctx, logger, set)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assets := newPageAssets(target, e.cfg.Rules)
	files := bundled.files
	for _, page := range pages {
		file, err := e.finishPage(page, bundled.entries, assets)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
		result.Pages = append(result.Pages, file.Path)
	}
	files = append(files, assets.outputs()...)

	files, err = dedupe(files)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := writeOutputs(target.OutputDir, files, target.Clean); err != nil {
		return nil, err
	}

	result.Files = files
	result.Duration = time.Since(start)
	logger.Info(ctx, "Build complete",
		"files", len(files),
		"bytes", result.TotalSize(),
		"duration", result.Duration.String())

	return result, nil
}

type renderedPage struct {
	spec assembler.PageSpec
	html string
}

func (e *Engine) renderPages(ctx context.Context, logger logging.Logger, set *templates.Set) ([]renderedPage, error) {
	pages := make([]renderedPage, 0, len(e.cfg.Pages))

	for _, spec := range e.cfg.Pages {
		values := spec.Values()
		if spec.ContentPath != "" {
			content, err := markdown.RenderFile(spec.ContentPath)
			if err != nil {
				return nil, err
			}
			values["content"] = content
		}

		html, err := set.Render(spec.TemplatePath, values)
		if err != nil {
			logger.Error(ctx, err, "Page failed to render", "template", spec.Template)
			return nil, err
		}
		logger.Debug(ctx, "Rendered page", "template", spec.Template, "filename", spec.OutputFilename)

		pages = append(pages, renderedPage{spec: spec, html: html})
	}

	return pages, nil
}

// dedupe sorts files by path and drops exact duplicates, which happen when
// a page and a stylesheet reference the same image.
func dedupe(files []OutputFile) ([]OutputFile, error) {
	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	out := files[:0]
	for _, f := range files {
		if n := len(out); n > 0 && out[n-1].Path == f.Path {
			if string(out[n-1].contents) != string(f.contents) {
				return nil, errors.Configurationf(errors.CodeOutput,
					"two different outputs resolve to %q", f.Path)
			}
			continue
		}
		out = append(out, f)
	}

	return out, nil
}
