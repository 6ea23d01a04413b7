package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepack/internal/errors"
	"github.com/conneroisu/sitepack/internal/manifest"
)

func boolPtr(b bool) *bool { return &b }

var (
	sydney  = time.FixedZone("AEDT", 11*60*60)
	morning = time.Date(2026, time.October, 17, 9, 5, 3, 0, sydney)
)

func TestCopyrightYear(t *testing.T) {
	assert.Equal(t, 2026, CopyrightYear(morning))
	assert.Equal(t, 1999, CopyrightYear(time.Date(1999, time.December, 31, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, 2000, CopyrightYear(time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLastUpdated(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		format   TimestampFormat
		expected string
	}{
		{
			name:     "canonical en-AU",
			now:      morning,
			format:   TimestampFormat{},
			expected: "Saturday 17 Oct 2026, 09:05:03 am AEDT",
		},
		{
			name:     "en-AU afternoon",
			now:      time.Date(2026, time.October, 17, 14, 30, 0, 0, sydney),
			format:   TimestampFormat{Locale: "en-AU"},
			expected: "Saturday 17 Oct 2026, 02:30:00 pm AEDT",
		},
		{
			name:     "en-AU without seconds or zone",
			now:      morning,
			format:   TimestampFormat{Locale: "en-AU", Seconds: boolPtr(false), Zone: boolPtr(false)},
			expected: "Saturday 17 Oct 2026, 09:05 am",
		},
		{
			name:     "en-AU forced 24-hour clock",
			now:      time.Date(2026, time.October, 17, 14, 30, 0, 0, sydney),
			format:   TimestampFormat{Locale: "en-AU", Hour12: boolPtr(false)},
			expected: "Saturday 17 Oct 2026, 14:30:00 AEDT",
		},
		{
			name:     "en-GB defaults to 24-hour clock",
			now:      morning,
			format:   TimestampFormat{Locale: "en-GB"},
			expected: "Saturday 17 Oct 2026, 09:05:03 AEDT",
		},
		{
			name:     "en-US",
			now:      morning,
			format:   TimestampFormat{Locale: "en-US"},
			expected: "Saturday, Oct 17, 2026, 09:05:03 AM AEDT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LastUpdated(tt.now, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLastUpdatedUnsupportedLocale(t *testing.T) {
	_, err := LastUpdated(morning, TimestampFormat{Locale: "ja-JP"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	_, err = LastUpdated(morning, TimestampFormat{Locale: "not a locale!"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestDerive(t *testing.T) {
	m := &manifest.Manifest{
		Name:            "demo",
		DevDependencies: map[string]string{"webpack": "^5.70.0", "bootstrap": "^5.2.0"},
	}

	md, err := Derive(morning, m, manifest.DefaultTracked, TimestampFormat{})
	require.NoError(t, err)
	assert.Equal(t, 2026, md.CopyrightYear)
	assert.Equal(t, "Saturday 17 Oct 2026, 09:05:03 am AEDT", md.LastUpdated)
	assert.Equal(t, map[string]string{"webpack": "5.70.0", "bootstrap": "5.2.0"}, md.Versions)

	_, err = Derive(morning, nil, nil, TimestampFormat{})
	assert.Error(t, err)
}
