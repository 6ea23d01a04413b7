package errors

import (
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

var suggestionsByCode = map[string][]ErrorSuggestion{
	CodeInvalidConfig: {
		{
			Title:       "Check the configuration file",
			Description: "Unknown keys and unsafe paths are rejected; validation lists every problem at once",
			Command:     "sitepack config validate",
		},
	},
	CodeUnknownVariant: {
		{
			Title:       "List the configured variants",
			Description: "Variants are the keys under variants: in the configuration file",
			Command:     "sitepack config show --format yaml",
		},
	},
	CodeInvalidMode: {
		{
			Title:   "Use a supported mode",
			Example: "sitepack build --mode production  # or NODE_ENV=development",
		},
	},
	CodeManifest: {
		{
			Title:       "Check package.json",
			Description: "The site name and dependency versions are read from the manifest named by target.manifest",
			Example:     `{"name": "demo", "devDependencies": {"webpack": "^5.70.0"}}`,
		},
	},
	CodeMissingEntry: {
		{
			Title:       "Check the entry paths",
			Description: "Entry paths are resolved against the target root",
			Example:     "entries:\n  - name: main\n    path: ./src/js/index.js",
		},
	},
	CodeMissingTemplate: {
		{
			Title:       "Check the page templates",
			Description: "Every page template and content file must exist below the target root",
			Command:     "sitepack config validate",
		},
	},
	CodeMissingPartial: {
		{
			Title:       "Check the partials directory",
			Description: "{{> name}} loads name.hbs from templates.partials_dir",
			Example:     "templates:\n  partials_dir: src/templates/partials",
		},
	},
	CodeMissingAsset: {
		{
			Title:       "Check the referenced image",
			Description: "Inline references are resolved below templates.assets_root and must stay inside it",
			Example:     `<img src="/assets/images/logo.svg">  ->  src/assets/images/logo.svg`,
		},
	},
	CodeInvalidPattern: {
		{
			Title:       "Fix the output filename pattern",
			Description: "Supported tokens are [name], [contenthash], [hash], [ext] and [query]; hash lengths run 1-16",
			Example:     "filename: \"[name].[contenthash:8].bundle.js\"",
		},
	},
	CodeDuplicatePage: {
		{
			Title:       "Give every page its own filename",
			Description: "Two pages writing the same file would overwrite each other",
		},
	},
	CodeUnsupportedLocale: {
		{
			Title:   "Use a supported timestamp locale",
			Example: "timestamp:\n  locale: en-AU  # en-GB, en-US",
		},
	},
	CodeUnmatchedExtension: {
		{
			Title:       "Enable a rule for the file type",
			Description: "Only scripts, .hbs, .scss/.css and images (when images are enabled) can be imported",
			Example:     "images: true",
		},
	},
	CodeTemplateSyntax: {
		{
			Title:       "Fix the Handlebars syntax",
			Description: "Check for unbalanced {{#block}} / {{/block}} pairs and unknown helpers",
		},
	},
	CodeStyle: {
		{
			Title:       "Fix the stylesheet",
			Description: "@import paths are resolved against the importing file and styles.include_paths",
		},
	},
	CodeOutput: {
		{
			Title:       "Check the output directory",
			Description: "The build stages its files next to output.dir; the parent directory must be writable",
		},
	},
}

// Suggestions returns the fix hints for err. Template render errors point at
// the missing parameter; configuration errors are looked up by code.
func Suggestions(err error) []ErrorSuggestion {
	var render *TemplateRenderError
	if As(err, &render) && render.Key != "" {
		return []ErrorSuggestion{
			{
				Title:       "Supply the missing parameter",
				Description: fmt.Sprintf("Add %q to the page params or rename the reference in %s", render.Key, render.Template),
				Example:     fmt.Sprintf("pages:\n  - template: %s\n    params:\n      %s: ...", render.Template, render.Key),
			},
		}
	}

	var cerr *ConfigurationError
	if As(err, &cerr) {
		return suggestionsByCode[cerr.Code]
	}

	return nil
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
	}

	return output.String()
}
