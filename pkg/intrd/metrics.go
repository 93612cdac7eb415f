package intrd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Metrics names.
	MetricNameBuildInfo             = "intrd_build_info"
	MetricNameGoodness              = "intrd_goodness"
	MetricNameBaselineGoodness      = "intrd_baseline_goodness"
	MetricNameAvgIntrLoad           = "intrd_avg_intr_load"
	MetricNameSleepInterval         = "intrd_sleep_interval_seconds"
	MetricNameWindowDeltas          = "intrd_window_deltas"
	MetricNameWindowSeconds         = "intrd_window_seconds"
	MetricNameWindowResets          = "intrd_window_resets_total"
	MetricNameTicks                 = "intrd_ticks_total"
	MetricNameSnapshotLowConfidence = "intrd_snapshot_low_confidence_total"
	MetricNameReconfig              = "intrd_reconfig_total"
	MetricNameMoves                 = "intrd_moves_total"

	// Labels.
	LabelVersion = "version"
	LabelCommit  = "commit"
	LabelDate    = "date"
	LabelReason  = "reason"
	LabelResult  = "result"
	LabelOutcome = "outcome"

	// Window reset reasons.
	ResetReasonMissing    = "missing"
	ResetReasonStale      = "stale"
	ResetReasonTooFewCPUs = "too_few_cpus"
	ResetReasonReconfig   = "reconfig"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameBuildInfo,
			Help: "Build information of the interrupt balancer",
		},
		[]string{LabelVersion, LabelCommit, LabelDate},
	)

	Goodness = promauto.NewGauge(prometheus.GaugeOpts{
		Name: MetricNameGoodness,
		Help: "Goodness of the last compressed delta window (1 = balanced)",
	})

	BaselineGoodness = promauto.NewGauge(prometheus.GaugeOpts{
		Name: MetricNameBaselineGoodness,
		Help: "Goodness recorded when the planner last found nothing to move",
	})

	AvgIntrLoad = promauto.NewGauge(prometheus.GaugeOpts{
		Name: MetricNameAvgIntrLoad,
		Help: "Mean per-cpu interrupt load fraction of the last delta",
	})

	SleepInterval = promauto.NewGauge(prometheus.GaugeOpts{
		Name: MetricNameSleepInterval,
		Help: "Current sleep between samples",
	})

	WindowDeltas = promauto.NewGauge(prometheus.GaugeOpts{
		Name: MetricNameWindowDeltas,
		Help: "Number of deltas in the window",
	})

	WindowSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: MetricNameWindowSeconds,
		Help: "Time covered by the window",
	})

	WindowResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameWindowResets,
			Help: "Number of times the delta window was discarded",
		},
		[]string{LabelReason},
	)

	Ticks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameTicks,
			Help: "Number of sampling ticks by result",
		},
		[]string{LabelResult},
	)

	SnapshotLowConfidence = promauto.NewCounter(prometheus.CounterOpts{
		Name: MetricNameSnapshotLowConfidence,
		Help: "Number of snapshots whose kstat snaptime spread was too wide",
	})

	Reconfigs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameReconfig,
			Help: "Number of planning cycles by outcome",
		},
		[]string{LabelOutcome},
	)

	Moves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameMoves,
			Help: "Number of interrupt moves by result",
		},
		[]string{LabelResult},
	)
)
