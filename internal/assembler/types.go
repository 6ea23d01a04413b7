package assembler

import (
	"regexp"
	"time"

	"github.com/conneroisu/sitepack/internal/metadata"
)

// Mode selects development or production output.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Processor identifies an external processor in a transform chain.
type Processor string

const (
	ProcessorHandlebars    Processor = "handlebars"
	ProcessorExtractCSS    Processor = "extract-css"
	ProcessorCSS           Processor = "css"
	ProcessorSass          Processor = "sass"
	ProcessorAssetResource Processor = "asset-resource"
)

// Entry is one JavaScript compilation root.
type Entry struct {
	Name string `json:"name" yaml:"name"`
	// Path is absolute.
	Path string `json:"path" yaml:"path"`
}

// TemplateOptions configures the Handlebars processor.
type TemplateOptions struct {
	PartialsDir      string `json:"partialDirs" yaml:"partialDirs"`
	InlineRequires   string `json:"inlineRequires" yaml:"inlineRequires"`
	AssetsRoot       string `json:"assetsRoot" yaml:"assetsRoot"`
	KnownHelpersOnly bool   `json:"knownHelpersOnly" yaml:"knownHelpersOnly"`
}

// StyleOptions configures the stylesheet pre-processor.
type StyleOptions struct {
	IncludePaths []string `json:"includePaths" yaml:"includePaths"`
}

// BuildTarget maps entries to outputs. All paths are absolute.
type BuildTarget struct {
	Root          string          `json:"root" yaml:"root"`
	Entries       []Entry         `json:"entries" yaml:"entries"`
	OutputDir     string          `json:"outputDir" yaml:"outputDir"`
	Filename      string          `json:"filename" yaml:"filename"`
	CSSFilename   string          `json:"cssFilename" yaml:"cssFilename"`
	AssetFilename string          `json:"assetModuleFilename" yaml:"assetModuleFilename"`
	HashLength    int             `json:"hashLength" yaml:"hashLength"`
	Clean         bool            `json:"clean" yaml:"clean"`
	SourceMaps    bool            `json:"sourceMaps" yaml:"sourceMaps"`
	SplitChunks   bool            `json:"splitChunks" yaml:"splitChunks"`
	Images        bool            `json:"images" yaml:"images"`
	Templates     TemplateOptions `json:"templates" yaml:"templates"`
	Styles        StyleOptions    `json:"styles" yaml:"styles"`
}

// TransformRule maps a file pattern to the processors that transform it.
// Processors run last to first, the way loader chains do.
type TransformRule struct {
	Name       string                 `json:"name" yaml:"name"`
	Test       *regexp.Regexp         `json:"test" yaml:"test"`
	Processors []Processor            `json:"use" yaml:"use"`
	Options    map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
}

// Uses reports whether p is part of the rule's chain.
func (r TransformRule) Uses(p Processor) bool {
	for _, q := range r.Processors {
		if q == p {
			return true
		}
	}

	return false
}

// SiteParameters is the bag shared by every page of a build.
type SiteParameters struct {
	SiteName      string            `json:"siteName" yaml:"siteName"`
	Description   string            `json:"description" yaml:"description"`
	Versions      map[string]string `json:"versions" yaml:"versions"`
	CopyrightYear int               `json:"copyrightYear" yaml:"copyrightYear"`
	LastUpdated   string            `json:"lastUpdated" yaml:"lastUpdated"`
}

// Values returns the parameters keyed the way templates reference them.
func (p SiteParameters) Values() map[string]interface{} {
	versions := make(map[string]interface{}, len(p.Versions))
	for k, v := range p.Versions {
		versions[k] = v
	}

	return map[string]interface{}{
		"siteName":      p.SiteName,
		"description":   p.Description,
		"versions":      versions,
		"copyrightYear": p.CopyrightYear,
		"lastUpdated":   p.LastUpdated,
	}
}

// PageSpec describes one generated HTML page.
type PageSpec struct {
	Template       string `json:"template" yaml:"template"`
	TemplatePath   string `json:"templatePath" yaml:"templatePath"`
	OutputFilename string `json:"filename" yaml:"filename"`
	// ContentPath is an optional Markdown file rendered into the "content"
	// parameter at build time.
	ContentPath string                 `json:"contentPath,omitempty" yaml:"contentPath,omitempty"`
	Inject      bool                   `json:"inject" yaml:"inject"`
	Parameters  map[string]interface{} `json:"templateParameters" yaml:"templateParameters"`
}

// Values returns a copy of the page's parameter bag.
func (p PageSpec) Values() map[string]interface{} {
	values := make(map[string]interface{}, len(p.Parameters)+1)
	for k, v := range p.Parameters {
		values[k] = v
	}

	return values
}

// BuildConfiguration is everything the build engine needs for one invocation.
type BuildConfiguration struct {
	Mode      Mode              `json:"mode" yaml:"mode"`
	Variant   string            `json:"variant,omitempty" yaml:"variant,omitempty"`
	StartedAt time.Time         `json:"startedAt" yaml:"startedAt"`
	Target    BuildTarget       `json:"target" yaml:"target"`
	Rules     []TransformRule   `json:"rules" yaml:"rules"`
	Pages     []PageSpec        `json:"pages" yaml:"pages"`
	Metadata  metadata.Metadata `json:"metadata" yaml:"metadata"`
	Env       map[string]string `json:"-" yaml:"-"`
}
