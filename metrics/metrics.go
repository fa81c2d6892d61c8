// Package metrics holds the prometheus collectors of the verification engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "miniapp"

var (
	// SubmissionsTotal app submissions by resulting status and operation (created/updated)
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "App submissions by decided status and operation.",
	}, []string{"status", "operation"})

	// RemoteFetchTotal remote fetches by kind (manifest/icon/challenge) and outcome
	RemoteFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_fetch_total",
		Help:      "Remote fetches by kind and outcome.",
	}, []string{"kind", "outcome"})

	// RemoteFetchSeconds remote fetch latency
	RemoteFetchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "remote_fetch_seconds",
		Help:      "Remote fetch latency.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5},
	}, []string{"kind"})

	// VerificationTransitionsTotal developer verification facts proven
	VerificationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_transitions_total",
		Help:      "Developer verification facts proven, by fact and resulting status.",
	}, []string{"fact", "status"})

	// LedgerAwardsTotal point awards by outcome (ok/failed/dropped)
	LedgerAwardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_awards_total",
		Help:      "Point awards by outcome.",
	}, []string{"outcome"})
)
