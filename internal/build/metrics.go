package build

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BuildMetrics tracks builds across a watch session.
type BuildMetrics struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	LastResult       *Result
	mutex            sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records the outcome of one build. result is nil when err is
// set.
func (bm *BuildMetrics) RecordBuild(result *Result, duration time.Duration, err error) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++
	bm.TotalDuration += duration

	if err != nil {
		bm.FailedBuilds++
	} else {
		bm.SuccessfulBuilds++
		bm.LastResult = result
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	return BuildMetrics{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		AverageDuration:  bm.AverageDuration,
		TotalDuration:    bm.TotalDuration,
		LastResult:       bm.LastResult,
	}
}

// SuccessRate returns the share of successful builds as a percentage.
func (bm *BuildMetrics) SuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalBuilds == 0 {
		return 0
	}

	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100
}

// Registry returns a Prometheus registry describing result and, when
// history is non-nil, the session counters. A nil result, as after a failed
// build, only reports the counters.
func Registry(result *Result, history *BuildMetrics) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	if result != nil {
		registerResult(registry, result)
	}

	if history != nil {
		snapshot := history.GetSnapshot()
		builds := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sitepack_builds",
			Help: "Builds run in this session by outcome.",
		}, []string{"outcome"})
		builds.WithLabelValues("success").Set(float64(snapshot.SuccessfulBuilds))
		builds.WithLabelValues("failure").Set(float64(snapshot.FailedBuilds))
		registry.MustRegister(builds)
	}

	return registry
}

func registerResult(registry *prometheus.Registry, result *Result) {
	labels := prometheus.Labels{"mode": string(result.Mode)}
	if result.Variant != "" {
		labels["variant"] = result.Variant
	}

	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "sitepack_build_duration_seconds",
		Help:        "Wall time of the last build.",
		ConstLabels: labels,
	})
	duration.Set(result.Duration.Seconds())

	pages := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "sitepack_build_pages",
		Help:        "Pages generated by the last build.",
		ConstLabels: labels,
	})
	pages.Set(float64(len(result.Pages)))

	finished := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "sitepack_build_last_success_timestamp_seconds",
		Help:        "Unix time the last successful build finished.",
		ConstLabels: labels,
	})
	finished.Set(float64(result.StartedAt.Add(result.Duration).Unix()))

	files := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "sitepack_build_output_files",
		Help:        "Output files by kind.",
		ConstLabels: labels,
	}, []string{"kind"})
	bytes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "sitepack_build_output_bytes",
		Help:        "Output bytes by kind.",
		ConstLabels: labels,
	}, []string{"kind"})
	for _, f := range result.Files {
		files.WithLabelValues(string(f.Kind)).Inc()
		bytes.WithLabelValues(string(f.Kind)).Add(float64(f.Size))
	}

	registry.MustRegister(duration, pages, finished, files, bytes)
}

// WriteMetrics writes the metrics of result in the Prometheus text format,
// for the node exporter's textfile collector.
func WriteMetrics(path string, result *Result, history *BuildMetrics) error {
	return prometheus.WriteToTextfile(path, Registry(result, history))
}
