package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elo_sweeps_total",
		Help: "Completed season sweeps",
	}, []string{"system"})

	SweepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elo_sweep_failures_total",
		Help: "Season sweeps that stopped with an error",
	}, []string{"system"})

	MatchesRated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elo_matches_rated_total",
		Help: "Matches folded into a rating table",
	}, []string{"system"})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "elo_sweep_duration_seconds",
		Help:    "Time taken to sweep one season",
		Buckets: prometheus.DefBuckets,
	}, []string{"system"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elo_cache_hits_total",
		Help: "Sweep results served from the cache",
	})

	StoreHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elo_store_hits_total",
		Help: "Sweep results served from a stored run",
	})
)
