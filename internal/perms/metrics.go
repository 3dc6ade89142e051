// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package perms

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/guildhall/guildhall/internal/perms/flag"
)

// Metrics for permission resolution and authorization decisions.
var (
	// resolveDuration tracks the latency of mask resolution by vocabulary.
	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guildhall_resolve_duration_seconds",
		Help:    "Histogram of permission resolution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"vocabulary"})

	// decisionsTotal counts guard decisions by effect.
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildhall_authorize_decisions_total",
		Help: "Total number of authorization decisions",
	}, []string{"effect"})

	// inconsistentReferences counts cross-guild references detected and
	// resolved to the empty mask.
	inconsistentReferences = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildhall_inconsistent_references_total",
		Help: "Total number of cross-guild references skipped during resolution",
	}, []string{"entity"})
)

func recordResolution(v flag.Vocabulary, d time.Duration) {
	resolveDuration.WithLabelValues(string(v)).Observe(d.Seconds())
}

func recordDecision(e Effect) {
	decisionsTotal.WithLabelValues(e.String()).Inc()
}

func recordInconsistentReference(entity string) {
	inconsistentReferences.WithLabelValues(entity).Inc()
}
