package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

// DefaultTimeout bounds a single remote write request.
const DefaultTimeout = 30 * time.Second

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint, e.g. "http://localhost:8428".
	URL string
	// Prefix is prepended to every metric name, followed by an underscore.
	Prefix string
	// Job and Instance are attached as labels to every series.
	Job      string
	Instance string
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

// PushRegistry keeps the latest value of every series in memory. Push sends
// all of them in one remote write request.
type PushRegistry struct {
	cfg        PushConfig
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	series map[string]*pushSeries
}

type pushSeries struct {
	name   string
	labels map[string]string
	value  float64
}

// NewPushRegistry creates a PushRegistry for the given endpoint.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &PushRegistry{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
		series:     make(map[string]*pushSeries),
	}
}

// NewGauge creates a Gauge whose value is sent on the next Push.
func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return &pushGauge{series: r.lookup(opts.Name, nil), reg: r}, nil
}

// NewCounterVec creates a CounterVec whose counters are sent on the next Push.
func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	return &pushCounterVec{reg: r, name: opts.Name}, nil
}

// Push sends every recorded series to the remote write endpoint. It is a no-op
// when nothing was recorded.
func (r *PushRegistry) Push(ctx context.Context) error {
	timeseries := r.snapshot()
	if len(timeseries) == 0 {
		return nil
	}

	data, err := proto.Marshal(&prompb.WriteRequest{Timeseries: timeseries})
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL+"/api/v1/write", bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (r *PushRegistry) lookup(name string, labels map[string]string) *pushSeries {
	key := seriesKey(name, labels)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.series[key]; ok {
		return s
	}
	s := &pushSeries{name: name, labels: labels}
	r.series[key] = s
	return s
}

func (r *PushRegistry) update(s *pushSeries, fn func(v float64) float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.value = fn(s.value)
}

// snapshot converts the recorded series into remote write form, sorted by key
// so requests are deterministic.
func (r *PushRegistry) snapshot() []prompb.TimeSeries {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ts := r.now().UnixMilli()
	out := make([]prompb.TimeSeries, 0, len(keys))
	for _, k := range keys {
		s := r.series[k]
		out = append(out, prompb.TimeSeries{
			Labels:  r.labelsFor(s),
			Samples: []prompb.Sample{{Value: s.value, Timestamp: ts}},
		})
	}
	return out
}

func (r *PushRegistry) labelsFor(s *pushSeries) []prompb.Label {
	name := s.name
	if r.cfg.Prefix != "" {
		name = r.cfg.Prefix + "_" + name
	}
	labels := []prompb.Label{{Name: "__name__", Value: name}}
	if r.cfg.Job != "" {
		labels = append(labels, prompb.Label{Name: "job", Value: r.cfg.Job})
	}
	if r.cfg.Instance != "" {
		labels = append(labels, prompb.Label{Name: "instance", Value: r.cfg.Instance})
	}

	names := make([]string, 0, len(s.labels))
	for k := range s.labels {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		labels = append(labels, prompb.Label{Name: k, Value: s.labels[k]})
	}
	return labels
}

func seriesKey(name string, labels map[string]string) string {
	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}

type pushGauge struct {
	reg    *PushRegistry
	series *pushSeries
}

func (g *pushGauge) Set(v float64) {
	g.reg.update(g.series, func(float64) float64 { return v })
}

type pushCounter struct {
	reg    *PushRegistry
	series *pushSeries
}

func (c *pushCounter) Inc() {
	c.Add(1)
}

func (c *pushCounter) Add(v float64) {
	if v < 0 {
		panic("counter cannot decrease in value")
	}
	c.reg.update(c.series, func(cur float64) float64 { return cur + v })
}

type pushCounterVec struct {
	reg  *PushRegistry
	name string
}

func (c *pushCounterVec) With(labels prometheus.Labels) Counter {
	return &pushCounter{reg: c.reg, series: c.reg.lookup(c.name, labels)}
}
