package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/conneroisu/sitepack/internal/errors"
)

// MaxHashLength is the number of hex digits in a content hash.
const MaxHashLength = 16

// MinHashLength keeps truncated hashes from colliding in practice.
const MinHashLength = 4

var (
	tokenPattern = regexp.MustCompile(`\[([a-z]+)(?::(\d+))?\]`)
	entryName    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	knownTokens = map[string]bool{
		"name":        true,
		"contenthash": true,
		"hash":        true,
		"ext":         true,
		"query":       true,
	}
)

// ValidationError represents a configuration validation problem with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Code        string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) fail(code, field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{
		Field:       field,
		Value:       value,
		Message:     message,
		Code:        code,
		Suggestions: suggestions,
	})
}

func (vr *ValidationResult) warn(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{
		Field:       field,
		Value:       value,
		Message:     message,
		Suggestions: suggestions,
	})
}

// ValidateTarget performs comprehensive validation of one resolved target.
// It only inspects the configuration itself; the filesystem is checked when
// the target is assembled.
func ValidateTarget(target *TargetConfig) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateEntries(target, result)
	validateOutput(target, result)
	validateTemplates(&target.Templates, result)
	validatePages(target.Pages, result)

	if _, err := target.Timestamp.Layout(); err != nil {
		result.fail(errors.CodeUnsupportedLocale, "timestamp.locale", target.Timestamp.Locale, err.Error(),
			"Supported locales: en-AU, en-GB, en-US")
	}

	if len(target.Site.Tracked) == 0 {
		result.warn("site.tracked", target.Site.Tracked, "no dependency versions will be shown",
			"Track at least the bundler and UI framework, e.g. [webpack, bootstrap]")
	}

	result.Valid = !result.HasErrors()

	return result
}

// ValidateConfigWithDetails validates the canonical target and every variant.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := ValidateTarget(&config.Target)

	for _, name := range config.VariantNames() {
		target, err := config.Resolve(name)
		if err != nil {
			var cerr *errors.ConfigurationError
			code := errors.CodeInvalidConfig
			if errors.As(err, &cerr) {
				code = cerr.Code
			}
			result.fail(code, "variants."+name, name, err.Error())

			continue
		}
		variant := ValidateTarget(&target)
		for _, w := range variant.Warnings {
			w.Field = "variants." + name + "." + w.Field
			result.Warnings = append(result.Warnings, w)
		}
	}

	result.Valid = !result.HasErrors()

	return result
}

// validateTarget returns the first validation error as a ConfigurationError.
func validateTarget(target *TargetConfig) error {
	result := ValidateTarget(target)
	if !result.HasErrors() {
		return nil
	}

	first := result.Errors[0]

	return errors.Configurationf(first.Code, "%s: %s", first.Field, first.Message)
}

func validateEntries(target *TargetConfig, result *ValidationResult) {
	if len(target.Entries) == 0 {
		result.fail(errors.CodeMissingEntry, "entries", nil, "at least one entry is required",
			"The default entry is main: ./src/js/index.js")

		return
	}

	seen := make(map[string]bool, len(target.Entries))
	for i, entry := range target.Entries {
		field := fmt.Sprintf("entries[%d]", i)
		if !entryName.MatchString(entry.Name) {
			result.fail(errors.CodeInvalidConfig, field+".name", entry.Name,
				"entry name must be non-empty and contain only letters, digits, '-' or '_'")
		}
		if seen[entry.Name] {
			result.fail(errors.CodeInvalidConfig, field+".name", entry.Name, "duplicate entry name")
		}
		seen[entry.Name] = true

		if err := validatePath(entry.Path); err != nil {
			result.fail(errors.CodeInvalidConfig, field+".path", entry.Path, err.Error())
		}
	}
}

func validateOutput(target *TargetConfig, result *ValidationResult) {
	out := &target.Output

	if err := validatePath(out.Dir); err != nil {
		result.fail(errors.CodeInvalidConfig, "output.dir", out.Dir, err.Error())
	} else if filepath.IsAbs(out.Dir) {
		result.fail(errors.CodeInvalidConfig, "output.dir", out.Dir,
			"output directory must be relative to the project root")
	}

	if out.HashLength < MinHashLength || out.HashLength > MaxHashLength {
		result.fail(errors.CodeInvalidPattern, "output.hash_length", out.HashLength,
			fmt.Sprintf("hash length must be between %d and %d", MinHashLength, MaxHashLength))
	}

	patterns := []struct {
		field   string
		pattern string
		entry   bool
	}{
		{"output.filename", out.Filename, true},
		{"output.css_filename", out.CSSFilename, true},
		{"output.asset_filename", out.AssetFilename, false},
	}
	for _, p := range patterns {
		if err := ValidatePattern(p.pattern); err != nil {
			result.fail(errors.CodeInvalidPattern, p.field, p.pattern, err.Error(),
				"Supported tokens: [name] [contenthash] [hash] [ext] [query], with optional :N length")

			continue
		}

		if !p.entry {
			if !hasHashToken(p.pattern) && !strings.Contains(p.pattern, "[name]") {
				result.fail(errors.CodeInvalidPattern, p.field, p.pattern,
					"asset pattern must contain [hash], [contenthash] or [name]")
			}

			continue
		}

		// Entry outputs must differ per entry and change name when their content does.
		if !strings.Contains(p.pattern, "[name]") {
			result.fail(errors.CodeInvalidPattern, p.field, p.pattern,
				"pattern must contain [name]", "Use [name].[contenthash] so each entry gets its own file")
		}
		if !hasHashToken(p.pattern) {
			result.fail(errors.CodeInvalidPattern, p.field, p.pattern,
				"pattern must contain [contenthash] or [hash]", "Add [contenthash] so browsers refetch changed files")
		}
	}
}

func validateTemplates(templates *TemplatesConfig, result *ValidationResult) {
	if templates.PartialsDir != "" {
		if err := validatePath(templates.PartialsDir); err != nil {
			result.fail(errors.CodeInvalidConfig, "templates.partials_dir", templates.PartialsDir, err.Error())
		}
	}

	if templates.InlineRequires != "" && !strings.HasPrefix(templates.InlineRequires, "/") {
		result.fail(errors.CodeInvalidConfig, "templates.inline_requires", templates.InlineRequires,
			"inline require prefix must be an absolute URL path", "Use /assets/images/")
	}

	if templates.AssetsRoot != "" {
		if err := validatePath(templates.AssetsRoot); err != nil {
			result.fail(errors.CodeInvalidConfig, "templates.assets_root", templates.AssetsRoot, err.Error())
		}
	}
}

func validatePages(pages []PageConfig, result *ValidationResult) {
	seen := make(map[string]bool, len(pages))
	for i, page := range pages {
		field := fmt.Sprintf("pages[%d]", i)

		if err := validatePath(page.Template); err != nil {
			result.fail(errors.CodeInvalidConfig, field+".template", page.Template, err.Error())
		} else if filepath.Ext(page.Template) != ".hbs" {
			result.warn(field+".template", page.Template, "page template does not use the .hbs extension")
		}

		if err := validatePath(page.Filename); err != nil {
			result.fail(errors.CodeInvalidConfig, field+".filename", page.Filename, err.Error())

			continue
		}

		name := filepath.ToSlash(filepath.Clean(page.Filename))
		if seen[name] {
			result.fail(errors.CodeDuplicatePage, field+".filename", page.Filename,
				"another page already writes "+name)
		}
		seen[name] = true
	}
}

// ValidatePattern checks that every bracketed token of an output filename
// pattern is known and that length suffixes are in range.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty pattern")
	}

	for _, m := range tokenPattern.FindAllStringSubmatch(pattern, -1) {
		if !knownTokens[m[1]] {
			return fmt.Errorf("unknown token [%s]", m[1])
		}
		if m[2] == "" {
			continue
		}
		if m[1] != "hash" && m[1] != "contenthash" {
			return fmt.Errorf("token [%s] does not take a length", m[1])
		}
		n, err := strconv.Atoi(m[2])
		if err != nil || n < MinHashLength || n > MaxHashLength {
			return fmt.Errorf("hash length %s out of range %d-%d", m[2], MinHashLength, MaxHashLength)
		}
	}

	rest := tokenPattern.ReplaceAllString(pattern, "t")
	if strings.ContainsAny(rest, "[]") {
		return fmt.Errorf("unbalanced brackets in %q", pattern)
	}

	return validatePath(rest)
}

func hasHashToken(pattern string) bool {
	return strings.Contains(pattern, "[hash") || strings.Contains(pattern, "[contenthash")
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
