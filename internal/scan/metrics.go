package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanwell_scan_attempts_total",
			Help: "Decode attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanwell_scans_total",
			Help: "Completed scans by winning strategy (absent when nothing decoded)",
		},
		[]string{"strategy"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanwell_scan_duration_seconds",
			Help:    "Wall time of one scan including the fallback decode",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	sessionFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanwell_session_frames_total",
			Help: "Frames scanned through sessions by candidate ordering",
		},
		[]string{"ordering"}, // ordering: cold, warm, sweep
	)
)
