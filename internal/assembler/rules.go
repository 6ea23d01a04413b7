package assembler

import (
	"path/filepath"
	"regexp"
)

var (
	templateTest = regexp.MustCompile(`\.hbs$`)
	sassTest     = regexp.MustCompile(`\.scss$`)
	cssTest      = regexp.MustCompile(`\.css$`)
	imageTest    = regexp.MustCompile(`(?i)\.(png|svg|jpg|jpeg|gif|webp)$`)
)

// AssembleTransformRules returns the fixed, ordered rule list for target.
// The image rule is only present when the target enables images.
func AssembleTransformRules(target BuildTarget, mode Mode) []TransformRule {
	outputStyle := "expanded"
	if mode == ModeProduction {
		outputStyle = "compressed"
	}

	rules := []TransformRule{
		{
			Name:       "templates",
			Test:       templateTest,
			Processors: []Processor{ProcessorHandlebars},
			Options: map[string]interface{}{
				"knownHelpersOnly": target.Templates.KnownHelpersOnly,
				"inlineRequires":   target.Templates.InlineRequires,
				"partialDirs":      []string{target.Templates.PartialsDir},
			},
		},
		{
			Name:       "sass",
			Test:       sassTest,
			Processors: []Processor{ProcessorExtractCSS, ProcessorCSS, ProcessorSass},
			Options: map[string]interface{}{
				"filename":     target.CSSFilename,
				"sourceMap":    target.SourceMaps,
				"includePaths": target.Styles.IncludePaths,
				"outputStyle":  outputStyle,
			},
		},
		{
			Name:       "css",
			Test:       cssTest,
			Processors: []Processor{ProcessorExtractCSS, ProcessorCSS},
			Options: map[string]interface{}{
				"filename":  target.CSSFilename,
				"sourceMap": target.SourceMaps,
			},
		},
	}

	if target.Images {
		rules = append(rules, TransformRule{
			Name:       "images",
			Test:       imageTest,
			Processors: []Processor{ProcessorAssetResource},
			Options: map[string]interface{}{
				"filename": target.AssetFilename,
			},
		})
	}

	return rules
}

// MatchRule returns the first rule whose test matches path.
func MatchRule(rules []TransformRule, path string) (TransformRule, bool) {
	name := filepath.ToSlash(path)
	for _, rule := range rules {
		if rule.Test.MatchString(name) {
			return rule, true
		}
	}

	return TransformRule{}, false
}
