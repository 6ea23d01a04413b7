package build

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/sitepack/internal/assembler"
	"github.com/conneroisu/sitepack/internal/errors"
	"github.com/conneroisu/sitepack/internal/logging"
	"github.com/conneroisu/sitepack/internal/styles"
	"github.com/conneroisu/sitepack/internal/templates"
)

const (
	chunkDir = "chunks"
	assetDir = "assets"
)

// esbuildHash matches the hash esbuild puts into asset names.
var esbuildHash = regexp.MustCompile(`-[A-Z2-7]{8}(\.[^./]*)?$`)

// scriptExtensions are loaded by esbuild itself and need no rule.
var scriptExtensions = map[string]bool{
	".js":   true,
	".mjs":  true,
	".cjs":  true,
	".jsx":  true,
	".ts":   true,
	".tsx":  true,
	".mts":  true,
	".cts":  true,
	".json": true,
}

// entryOutputs records where an entry's script and stylesheet ended up.
type entryOutputs struct {
	Name   string
	Script string
	Style  string
}

type bundle struct {
	files   []OutputFile
	entries []entryOutputs
}

type metafile struct {
	Outputs map[string]struct {
		Bytes      int    `json:"bytes"`
		EntryPoint string `json:"entryPoint"`
		Inputs     map[string]struct {
			BytesInOutput int `json:"bytesInOutput"`
		} `json:"inputs"`
	} `json:"outputs"`
}

func (e *Engine) bundle(ctx context.Context, logger logging.Logger, set *templates.Set) (*bundle, error) {
	target := e.cfg.Target
	production := e.cfg.Mode == assembler.ModeProduction

	entries := make([]api.EntryPoint, 0, len(target.Entries))
	for _, entry := range target.Entries {
		entries = append(entries, api.EntryPoint{InputPath: entry.Path, OutputPath: entry.Name})
	}

	loads := &loadState{root: target.Root}
	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entries,
		AbsWorkingDir:       target.Root,
		Outdir:              target.OutputDir,
		EntryNames:          "[name]",
		ChunkNames:          chunkDir + "/[name]-[hash]",
		AssetNames:          assetDir + "/[name]-[hash]",
		PublicPath:          "/",
		Bundle:              true,
		Write:               false,
		Metafile:            true,
		Splitting:           target.SplitChunks,
		Format:              cond(target.SplitChunks, api.FormatESModule, api.FormatIIFE),
		Sourcemap:           cond(target.SourceMaps, api.SourceMapExternal, api.SourceMapNone),
		MinifyWhitespace:    production,
		MinifyIdentifiers:   production,
		MinifySyntax:        production,
		TreeShaking:         api.TreeShakingTrue,
		Target:              api.ES2020,
		Define: map[string]string{
			"process.env.NODE_ENV": strconv.Quote(string(e.cfg.Mode)),
		},
		Plugins:  []api.Plugin{e.rulesPlugin(set, loads)},
		LogLevel: api.LogLevelSilent,
	})

	if err := loads.err(); err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			logger.Error(ctx, nil, "Bundle error", "error", msg.Text, "location", location(msg))
		}
		return nil, errors.Configurationf(errors.CodeBundle, "bundling failed: %s", result.Errors[0].Text).
			WithPath(location(result.Errors[0]))
	}
	for _, msg := range result.Warnings {
		logger.Warn(ctx, nil, "Bundle warning", "warning", msg.Text, "location", location(msg))
	}

	var meta metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return nil, errors.NewConfigurationError(errors.CodeBundle, "cannot read bundle metadata").WithCause(err)
	}

	raw := make(map[string][]byte, len(result.OutputFiles))
	for _, f := range result.OutputFiles {
		rel, err := filepath.Rel(target.OutputDir, f.Path)
		if err != nil {
			return nil, errors.NewConfigurationError(errors.CodeBundle, "bundle output outside output directory").
				WithPath(f.Path).WithCause(err)
		}
		raw[filepath.ToSlash(rel)] = f.Contents
		logger.Debug(ctx, "Bundled file", "file", filepath.ToSlash(rel), "bytes", len(f.Contents))
	}

	return e.fingerprint(raw, &meta), nil
}

// fingerprint renames esbuild's outputs to the configured patterns. Assets
// go first so scripts and stylesheets are hashed with their final URLs.
func (e *Engine) fingerprint(raw map[string][]byte, meta *metafile) *bundle {
	target := e.cfg.Target
	b := &bundle{}
	done := make(map[string]bool, len(raw))

	inputs := func(rel string) []string {
		key, err := filepath.Rel(target.Root, filepath.Join(target.OutputDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil
		}
		out, ok := meta.Outputs[filepath.ToSlash(key)]
		if !ok {
			return nil
		}
		names := make([]string, 0, len(out.Inputs))
		for name := range out.Inputs {
			names = append(names, name)
		}
		sort.Strings(names)

		return names
	}

	var urls []string
	for _, rel := range sortedKeys(raw) {
		if !strings.HasPrefix(rel, assetDir+"/") || strings.HasSuffix(rel, ".map") {
			continue
		}
		data := raw[rel]
		hash := ContentHash(data, target.HashLength)
		name := esbuildHash.ReplaceAllString(path.Base(rel), "$1")
		out := filepath.ToSlash(assembler.ResolveOutputPath("", target.AssetFilename, name, hash))

		urls = append(urls, "/"+rel, "/"+out)
		b.files = append(b.files, OutputFile{
			Path:     out,
			Kind:     KindAsset,
			Hash:     hash,
			Size:     len(data),
			Inputs:   inputs(rel),
			contents: data,
		})
		done[rel] = true
	}
	replacer := strings.NewReplacer(urls...)

	emit := func(rel string, kind FileKind, entry, pattern string) string {
		data := []byte(replacer.Replace(string(raw[rel])))
		out, hash := rel, ""
		if pattern != "" {
			hash = ContentHash(data, target.HashLength)
			out = filepath.ToSlash(assembler.ResolveOutputPath("", pattern, entry+path.Ext(rel), hash))
		}
		done[rel] = true

		if sourceMap, ok := raw[rel+".map"]; ok {
			data = appendSourceMapURL(data, path.Base(out)+".map", path.Ext(rel) == ".css")
			sourceMap = rebaseSourceMap(sourceMap, out)
			b.files = append(b.files, OutputFile{
				Path:     out + ".map",
				Kind:     KindSourceMap,
				Entry:    entry,
				Size:     len(sourceMap),
				contents: sourceMap,
			})
			done[rel+".map"] = true
		}

		b.files = append(b.files, OutputFile{
			Path:     out,
			Kind:     kind,
			Entry:    entry,
			Hash:     hash,
			Size:     len(data),
			Inputs:   inputs(rel),
			contents: data,
		})

		return out
	}

	for _, entry := range target.Entries {
		eo := entryOutputs{Name: entry.Name}
		if _, ok := raw[entry.Name+".js"]; ok {
			eo.Script = emit(entry.Name+".js", KindScript, entry.Name, target.Filename)
		}
		if _, ok := raw[entry.Name+".css"]; ok {
			eo.Style = emit(entry.Name+".css", KindStyle, entry.Name, target.CSSFilename)
		}
		b.entries = append(b.entries, eo)
	}

	// Shared chunks keep esbuild's names; entry scripts import them by path.
	for _, rel := range sortedKeys(raw) {
		if done[rel] || strings.HasSuffix(rel, ".map") {
			continue
		}
		emit(rel, KindChunk, "", "")
	}

	return b
}

func appendSourceMapURL(data []byte, url string, css bool) []byte {
	comment := "//# sourceMappingURL=" + url + "\n"
	if css {
		comment = "/*# sourceMappingURL=" + url + " */\n"
	}

	return append(data, comment...)
}

// rebaseSourceMap points the map's sources back at the project when the
// output was moved below the directory esbuild computed them from.
func rebaseSourceMap(data []byte, out string) []byte {
	depth := strings.Count(out, "/")
	if depth == 0 {
		return data
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return data
	}
	root, err := json.Marshal(strings.Repeat("../", depth))
	if err != nil {
		return data
	}
	fields["sourceRoot"] = root

	rebased, err := json.Marshal(fields)
	if err != nil {
		return data
	}

	return rebased
}

// rulesPlugin routes every file esbuild loads through the transform rules.
// Callbacks are registered in rule order, so the first matching rule wins.
func (e *Engine) rulesPlugin(set *templates.Set, loads *loadState) api.Plugin {
	return api.Plugin{
		Name: "sitepack-rules",
		Setup: func(build api.PluginBuild) {
			for _, rule := range e.cfg.Rules {
				rule := rule
				build.OnLoad(api.OnLoadOptions{Filter: rule.Test.String(), Namespace: "file"},
					func(args api.OnLoadArgs) (api.OnLoadResult, error) {
						result, err := e.transform(rule, set, args.Path)
						if err != nil {
							loads.fail(err)
							return api.OnLoadResult{}, err
						}
						return result, nil
					})
			}

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					if !scriptExtensions[strings.ToLower(filepath.Ext(args.Path))] {
						loads.unmatched(args.Path)
					}
					return api.OnLoadResult{}, nil
				})
		},
	}
}

// transform runs a rule's processors from last to first.
func (e *Engine) transform(rule assembler.TransformRule, set *templates.Set, file string) (api.OnLoadResult, error) {
	var (
		contents string
		loaded   bool
		loader   = api.LoaderDefault
	)

	for i := len(rule.Processors) - 1; i >= 0; i-- {
		switch rule.Processors[i] {
		case assembler.ProcessorHandlebars:
			module, err := set.CompileModule(file)
			if err != nil {
				return api.OnLoadResult{}, err
			}
			contents, loaded, loader = module, true, api.LoaderJS

		case assembler.ProcessorSass:
			style, _ := rule.Options["outputStyle"].(string)
			css, err := styles.New(e.cfg.Target.Styles.IncludePaths, styles.Style(style)).Compile(file)
			if err != nil {
				return api.OnLoadResult{}, err
			}
			contents, loaded, loader = css, true, api.LoaderCSS

		case assembler.ProcessorCSS:
			if !loaded {
				data, err := os.ReadFile(file)
				if err != nil {
					return api.OnLoadResult{}, errors.NewConfigurationError(errors.CodeMissingAsset,
						"cannot read stylesheet").WithPath(file).WithCause(err)
				}
				contents, loaded = string(data), true
			}
			loader = api.LoaderCSS

		case assembler.ProcessorExtractCSS:
			// CSS reached from a script entry is written to the entry's
			// sibling stylesheet rather than injected at runtime.
			loader = api.LoaderCSS

		case assembler.ProcessorAssetResource:
			data, err := os.ReadFile(file)
			if err != nil {
				return api.OnLoadResult{}, errors.NewConfigurationError(errors.CodeMissingAsset,
					"cannot read asset").WithPath(file).WithCause(err)
			}
			contents, loaded, loader = string(data), true, api.LoaderFile
		}
	}

	return api.OnLoadResult{
		Contents:   &contents,
		Loader:     loader,
		ResolveDir: filepath.Dir(file),
	}, nil
}

// loadState collects plugin failures. esbuild loads files concurrently and
// flattens plugin errors to text, so the typed error is kept here.
type loadState struct {
	root string

	mu        sync.Mutex
	first     error
	unmatches map[string]bool
}

func (s *loadState) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.first == nil {
		s.first = err
	}
}

func (s *loadState) unmatched(file string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unmatches == nil {
		s.unmatches = make(map[string]bool)
	}
	if rel, err := filepath.Rel(s.root, file); err == nil {
		file = rel
	}
	s.unmatches[filepath.ToSlash(file)] = true
}

func (s *loadState) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.first != nil {
		return s.first
	}
	if len(s.unmatches) == 0 {
		return nil
	}

	files := sortedKeys(s.unmatches)

	return errors.Configurationf(errors.CodeUnmatchedExtension,
		"no transform rule matches %s", strings.Join(files, ", ")).WithPath(files[0])
}

func location(msg api.Message) string {
	if msg.Location == nil {
		return ""
	}

	return msg.Location.File + ":" + strconv.Itoa(msg.Location.Line)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
