package preprocess

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline's Prometheus collectors.
type Metrics struct {
	Decodes       prometheus.Counter
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	Failures      *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microvol",
			Subsystem: "preprocess",
			Name:      "decodes_total",
			Help:      "Number of volumes decoded from disk.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microvol",
			Subsystem: "preprocess",
			Name:      "cache_hits_total",
			Help:      "Number of requests served from the preprocessing cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microvol",
			Subsystem: "preprocess",
			Name:      "cache_misses_total",
			Help:      "Number of requests that had to run or join a computation.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microvol",
			Subsystem: "preprocess",
			Name:      "failures_total",
			Help:      "Number of failed preprocessing runs by error kind.",
		}, []string{"kind"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "microvol",
			Subsystem: "preprocess",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each preprocessing stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.Decodes, m.CacheHits, m.CacheMisses, m.Failures, m.StageDuration)
	}
	return m
}
