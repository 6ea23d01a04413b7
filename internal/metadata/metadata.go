// Package metadata computes the values derived fresh at every build
// invocation and injected into page templates: the copyright year, the
// last-updated timestamp and the tracked dependency versions.
//
// Nothing here reads the clock. Callers pass the instant the build started
// so that a fixed clock gives fully deterministic output.
package metadata

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/conneroisu/sitepack/internal/errors"
	"github.com/conneroisu/sitepack/internal/manifest"
)

// DefaultLocale is the locale used when a format does not name one.
const DefaultLocale = "en-AU"

// TimestampFormat selects the fields of the last-updated timestamp. Nil
// fields fall back to the locale defaults (seconds and zone shown, locale
// hour cycle).
type TimestampFormat struct {
	Locale  string `mapstructure:"locale" json:"locale,omitempty" yaml:"locale,omitempty"`
	Hour12  *bool  `mapstructure:"hour12" json:"hour12,omitempty" yaml:"hour12,omitempty"`
	Seconds *bool  `mapstructure:"seconds" json:"seconds,omitempty" yaml:"seconds,omitempty"`
	Zone    *bool  `mapstructure:"zone" json:"zone,omitempty" yaml:"zone,omitempty"`
}

type localeLayout struct {
	date   string
	hour12 bool
	marker string
}

var (
	supportedTags = []language.Tag{
		language.MustParse("en-AU"),
		language.BritishEnglish,
		language.AmericanEnglish,
	}
	supportedLayouts = []localeLayout{
		{date: "Monday 2 Jan 2006", hour12: true, marker: "pm"},
		{date: "Monday 2 Jan 2006", hour12: false, marker: "pm"},
		{date: "Monday, Jan 2, 2006", hour12: true, marker: "PM"},
	}
	matcher = language.NewMatcher(supportedTags)
)

// Layout resolves the format to a Go time layout.
func (f TimestampFormat) Layout() (string, error) {
	locale := f.Locale
	if locale == "" {
		locale = DefaultLocale
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return "", errors.NewConfigurationError(errors.CodeUnsupportedLocale, "invalid locale "+locale).
			WithCause(err)
	}

	_, idx, confidence := matcher.Match(tag)
	if confidence == language.No {
		return "", errors.Configurationf(errors.CodeUnsupportedLocale,
			"locale %s is not supported (en-AU, en-GB, en-US)", locale)
	}
	ll := supportedLayouts[idx]

	hour12 := ll.hour12
	if f.Hour12 != nil {
		hour12 = *f.Hour12
	}

	var b strings.Builder
	b.WriteString(ll.date)
	b.WriteString(", ")
	if hour12 {
		b.WriteString("03:04")
	} else {
		b.WriteString("15:04")
	}
	if f.Seconds == nil || *f.Seconds {
		b.WriteString(":05")
	}
	if hour12 {
		b.WriteString(" " + ll.marker)
	}
	if f.Zone == nil || *f.Zone {
		b.WriteString(" MST")
	}

	return b.String(), nil
}

// CopyrightYear returns the four-digit year of now.
func CopyrightYear(now time.Time) int {
	return now.Year()
}

// LastUpdated formats now with the given timestamp format.
func LastUpdated(now time.Time, format TimestampFormat) (string, error) {
	layout, err := format.Layout()
	if err != nil {
		return "", err
	}

	return now.Format(layout), nil
}

// Metadata is the derived data shared by every page of one build.
type Metadata struct {
	CopyrightYear int               `json:"copyrightYear" yaml:"copyrightYear"`
	LastUpdated   string            `json:"lastUpdated" yaml:"lastUpdated"`
	Versions      map[string]string `json:"versions" yaml:"versions"`
}

// Derive computes the metadata for a build started at now.
func Derive(now time.Time, m *manifest.Manifest, tracked []string, format TimestampFormat) (Metadata, error) {
	if m == nil {
		return Metadata{}, fmt.Errorf("derive metadata: nil manifest")
	}

	lastUpdated, err := LastUpdated(now, format)
	if err != nil {
		return Metadata{}, err
	}

	return Metadata{
		CopyrightYear: CopyrightYear(now),
		LastUpdated:   lastUpdated,
		Versions:      m.Versions(tracked),
	}, nil
}
