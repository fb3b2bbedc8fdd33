package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autocomplete_parse_seconds",
		Help:    "Time spent building a translation unit.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ParsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autocomplete_parses_total",
		Help: "Total number of frontend parse calls by outcome.",
	}, []string{"result"})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autocomplete_cache_hits_total",
		Help: "Total number of requests served by a cached translation unit.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autocomplete_cache_misses_total",
		Help: "Total number of requests that required a parse.",
	})

	CacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autocomplete_cache_evictions_total",
		Help: "Total number of translation units removed from the cache by reason.",
	}, []string{"reason"})

	CacheStaleResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autocomplete_cache_stale_results_total",
		Help: "Total number of parse results discarded because a newer unit was committed first.",
	})

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autocomplete_cache_entries",
		Help: "Current number of cached translation units.",
	})

	CompletionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autocomplete_completion_seconds",
		Help:    "End-to-end latency of a completion request.",
		Buckets: prometheus.DefBuckets,
	})

	CompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autocomplete_completions_total",
		Help: "Total number of completion requests by outcome.",
	}, []string{"result"})

	WarmupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autocomplete_warmups_total",
		Help: "Total number of files parsed ahead of completion by outcome.",
	}, []string{"result"})

	CompletionCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autocomplete_completion_candidates",
		Help:    "Number of candidates returned per completion request.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	PositionsClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autocomplete_positions_clamped_total",
		Help: "Total number of completion positions clamped into the source.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autocomplete_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
