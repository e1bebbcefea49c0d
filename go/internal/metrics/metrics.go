// Package metrics exposes Prometheus collectors for the race service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "typerace"

var (
	// RoundsCreated counts rounds successfully created by this instance.
	RoundsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_created_total",
		Help:      "Rounds created by this instance.",
	})

	// RoundConflicts counts lost round-creation races. These are expected
	// near round boundaries and recovered internally.
	RoundConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "round_conflicts_total",
		Help:      "Round creation attempts that lost the uniqueness race.",
	})

	// BroadcastsSent counts typing updates published to the channel.
	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_sent_total",
		Help:      "Typing updates published to the channel.",
	})

	// BroadcastsRejected counts incoming broadcasts dropped by validation
	// or the stale-round guard.
	BroadcastsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_rejected_total",
		Help:      "Incoming broadcasts dropped as malformed or stale.",
	})

	// ResultsPersisted counts result upserts written to the store.
	ResultsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_persisted_total",
		Help:      "Result rows upserted.",
	})

	// PlayersOnline tracks the size of the presence set as seen locally.
	PlayersOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "players_online",
		Help:      "Players currently tracked as online.",
	})
)
