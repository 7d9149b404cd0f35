package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every shardpool metric name.
const DefaultNamespace = "shardpool"

// Config holds configuration for metrics collection.
type Config struct {
	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace overrides the default "shardpool" namespace for metrics.
	Namespace string

	// Labels are constant labels added to all metrics.
	Labels prometheus.Labels

	// Buckets are the upper bounds, in seconds, of the task duration and
	// queue wait histograms. Nil means DefaultBuckets.
	Buckets []float64
}

// DefaultBuckets span sub-millisecond tasks up to ten-second ones.
var DefaultBuckets = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
		Buckets:   DefaultBuckets,
	}
}
