// Package metrics records client-side counters and gauges.
//
// Two registries implement Registry:
//   - ScrapeRegistry (dashboard server): backed by a Prometheus registry and
//     exposed on /metrics.
//   - PushRegistry (CLI): values accumulate in memory and are sent to a
//     VictoriaMetrics/Prometheus remote write endpoint by Push.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gauge is a single value that can go up and down.
type Gauge interface {
	Set(float64)
}

// Counter is a monotonically increasing value.
type Counter interface {
	Inc()
	Add(float64)
}

// CounterVec is a Counter partitioned by labels.
type CounterVec interface {
	With(prometheus.Labels) Counter
}

// Registry creates and registers metrics.
type Registry interface {
	NewGauge(opts prometheus.GaugeOpts) (Gauge, error)
	NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error)
}

// Nop returns a Registry whose metrics discard every update.
func Nop() Registry {
	return nopRegistry{}
}

type nopRegistry struct{}

func (nopRegistry) NewGauge(prometheus.GaugeOpts) (Gauge, error) { return nopMetric{}, nil }

func (nopRegistry) NewCounterVec(prometheus.CounterOpts, []string) (CounterVec, error) {
	return nopMetric{}, nil
}

type nopMetric struct{}

func (nopMetric) Set(float64) {}
func (nopMetric) Inc() {}
func (nopMetric) Add(float64) {}
func (nopMetric) With(prometheus.Labels) Counter { return nopMetric{} }
