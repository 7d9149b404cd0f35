package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Example_customRegistry demonstrates using an isolated Prometheus registry.
func Example_customRegistry() {
	reg := prometheus.NewRegistry()
	m := NewRegistryWithConfig(Config{
		Registry:  reg,
		Namespace: "demo",
		Buckets:   []float64{.01, .1, 1},
	})

	m.TasksSubmitted.WithLabelValues("ingest").Add(8)
	m.TasksRejected.WithLabelValues("ingest", "queue_full").Add(2)

	fmt.Println(testutil.ToFloat64(m.TasksSubmitted.WithLabelValues("ingest")))
	fmt.Println(testutil.ToFloat64(m.TasksRejected.WithLabelValues("ingest", "queue_full")))

	// Output:
	// 8
	// 2
}
