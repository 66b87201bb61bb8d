package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	TransformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esmsh_transform_seconds",
		Help:    "Time spent transforming one module.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source_kind"})

	ResolveCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esmsh_resolve_calls_total",
		Help: "Total number of specifier resolutions recorded in dependency ledgers.",
	})

	DepsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esmsh_deps_pruned_total",
		Help: "Total number of ledger entries dropped by post-emission pruning.",
	})

	ParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esmsh_parse_errors_total",
		Help: "Total number of modules rejected with a parse error.",
	})

	StageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esmsh_stage_errors_total",
		Help: "Total number of pipeline stage failures.",
	}, []string{"stage"})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esmsh_requests_total",
		Help: "Total number of module requests served.",
	}, []string{"status"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esmsh_cache_hits_total",
		Help: "Total number of build cache hits by layer.",
	}, []string{"layer"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esmsh_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter.",
	})
)
