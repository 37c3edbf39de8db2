// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-esapi.
//
// go-esapi is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for TPM contexts.
// It tracks handle lifecycles, session usage, property cache efficiency,
// command latency and the number of sensitive structures scrubbed before
// release.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all esapi metrics
	Namespace = "esapi"

	// Label names
	LabelCommand     = "command"
	LabelDisposition = "disposition"
	LabelKind        = "kind"
	LabelResult      = "result"
	LabelStatus      = "status"
	LabelType        = "type"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Property cache results
	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	// HandlesRegistered counts handles added to a context's registry.
	HandlesRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "handles",
			Name:      "registered_total",
			Help:      "Total number of handles registered by disposition",
		},
		[]string{LabelDisposition},
	)

	// HandlesReleased counts flush and close attempts, including the
	// teardown sweep.
	HandlesReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "handles",
			Name:      "released_total",
			Help:      "Total number of handle release attempts by disposition and status",
		},
		[]string{LabelDisposition, LabelStatus},
	)

	// HandlesLeaked counts handles still registered after a teardown sweep.
	HandlesLeaked = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "handles",
			Name:      "leaked_total",
			Help:      "Total number of handles left open after context teardown",
		},
	)

	// OpenHandles tracks handles currently registered across all contexts.
	OpenHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "handles",
			Name:      "open",
			Help:      "Number of handles currently registered across all contexts",
		},
	)

	// StructuresZeroized counts sensitive structures scrubbed by type.
	StructuresZeroized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "structures_zeroized_total",
			Help:      "Total number of sensitive structures zeroized by type",
		},
		[]string{LabelType},
	)

	// SessionsStarted counts authorization sessions started by kind and status.
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Total number of authorization sessions started by kind and status",
		},
		[]string{LabelKind, LabelStatus},
	)

	// PropertyCache counts property lookups served from cache or the TPM.
	PropertyCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "property_cache",
			Name:      "lookups_total",
			Help:      "Total number of TPM property lookups by cache result",
		},
		[]string{LabelResult},
	)

	// CommandsTotal counts TPM commands by name and status.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commands_total",
			Help:      "Total number of TPM commands by name and status",
		},
		[]string{LabelCommand, LabelStatus},
	)

	// CommandDuration tracks TPM command round trip time in seconds.
	// Buckets cover fast resource manager hits through slow RSA key generation.
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of TPM commands in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{LabelCommand},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordHandleRegistered records a handle added to a registry.
func RecordHandleRegistered(disposition string) {
	if !enabled.Load() {
		return
	}
	HandlesRegistered.WithLabelValues(disposition).Inc()
	OpenHandles.Inc()
}

// RecordHandleRemoved records a handle leaving a registry.
func RecordHandleRemoved() {
	if !enabled.Load() {
		return
	}
	OpenHandles.Dec()
}

// RecordHandleReleased records a flush or close attempt.
func RecordHandleReleased(disposition string, err error) {
	if !enabled.Load() {
		return
	}
	HandlesReleased.WithLabelValues(disposition, status(err)).Inc()
}

// RecordHandlesLeaked records handles that survived a teardown sweep. The
// registry they belong to is discarded, so they leave the open gauge.
func RecordHandlesLeaked(count int) {
	if !enabled.Load() || count <= 0 {
		return
	}
	HandlesLeaked.Add(float64(count))
	OpenHandles.Sub(float64(count))
}

// RecordZeroized records a scrubbed sensitive structure.
func RecordZeroized(structure string) {
	if !enabled.Load() {
		return
	}
	StructuresZeroized.WithLabelValues(structure).Inc()
}

// RecordSessionStarted records an authorization session start attempt.
func RecordSessionStarted(kind string, err error) {
	if !enabled.Load() {
		return
	}
	SessionsStarted.WithLabelValues(kind, status(err)).Inc()
}

// RecordPropertyLookup records whether a property lookup hit the cache.
func RecordPropertyLookup(hit bool) {
	if !enabled.Load() {
		return
	}
	if hit {
		PropertyCache.WithLabelValues(CacheHit).Inc()
		return
	}
	PropertyCache.WithLabelValues(CacheMiss).Inc()
}

// RecordCommand records a TPM command with its duration in seconds.
func RecordCommand(command string, duration float64, err error) {
	if !enabled.Load() {
		return
	}
	CommandsTotal.WithLabelValues(command, status(err)).Inc()
	CommandDuration.WithLabelValues(command).Observe(duration)
}

// Enable turns on metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable turns off metrics collection. Record* calls become no-ops.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
