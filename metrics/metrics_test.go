package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushRegistry_Push(t *testing.T) {
	received := make(chan *prompb.WriteRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/write", r.URL.Path)
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "application/x-protobuf", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		decoded, err := snappy.Decode(nil, body)
		require.NoError(t, err)

		var req prompb.WriteRequest
		require.NoError(t, proto.Unmarshal(decoded, &req))
		received <- &req
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	registry := NewPushRegistry(PushConfig{
		URL:      server.URL,
		Prefix:   "signupdesk",
		Job:      "cli",
		Instance: "host1",
	})
	registry.now = func() time.Time { return time.UnixMilli(1000) }

	vec, err := registry.NewCounterVec(prometheus.CounterOpts{Name: "requests_total"}, []string{"operation"})
	require.NoError(t, err)
	vec.With(prometheus.Labels{"operation": "signup"}).Inc()
	vec.With(prometheus.Labels{"operation": "signup"}).Add(2)
	vec.With(prometheus.Labels{"operation": "list"}).Inc()

	gauge, err := registry.NewGauge(prometheus.GaugeOpts{Name: "activities"})
	require.NoError(t, err)
	gauge.Set(4)

	require.NoError(t, registry.Push(context.Background()))

	req := <-received
	require.Len(t, req.Timeseries, 3)

	values := map[string]float64{}
	for _, ts := range req.Timeseries {
		var parts []string
		for _, l := range ts.Labels {
			parts = append(parts, l.Name+"="+l.Value)
		}
		require.Len(t, ts.Samples, 1)
		assert.Equal(t, int64(1000), ts.Samples[0].Timestamp)
		values[strings.Join(parts, ",")] = ts.Samples[0].Value
	}
	assert.Equal(t, 4.0, values["__name__=signupdesk_activities,job=cli,instance=host1"])
	assert.Equal(t, 1.0, values["__name__=signupdesk_requests_total,job=cli,instance=host1,operation=list"])
	assert.Equal(t, 3.0, values["__name__=signupdesk_requests_total,job=cli,instance=host1,operation=signup"])
}

func TestPushRegistry_PushNothing(t *testing.T) {
	registry := NewPushRegistry(PushConfig{URL: "http://localhost:1"})
	assert.NoError(t, registry.Push(context.Background()))
}

func TestPushRegistry_PushError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad series"))
	}))
	defer server.Close()

	registry := NewPushRegistry(PushConfig{URL: server.URL})
	gauge, err := registry.NewGauge(prometheus.GaugeOpts{Name: "g"})
	require.NoError(t, err)
	gauge.Set(1)

	err = registry.Push(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400: bad series")
}

func TestScrapeRegistry(t *testing.T) {
	registry, err := NewScrapeRegistry()
	require.NoError(t, err)

	vec, err := registry.NewCounterVec(prometheus.CounterOpts{
		Name: "activityservice_requests_total",
		Help: "test",
	}, []string{"operation", "outcome"})
	require.NoError(t, err)
	vec.With(prometheus.Labels{"operation": "list", "outcome": "ok"}).Inc()

	_, err = registry.NewCounterVec(prometheus.CounterOpts{
		Name: "activityservice_requests_total",
		Help: "test",
	}, []string{"operation", "outcome"})
	assert.Error(t, err, "duplicate registration must fail")

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `activityservice_requests_total{operation="list",outcome="ok"} 1`)
}

func TestNop(t *testing.T) {
	reg := Nop()
	g, err := reg.NewGauge(prometheus.GaugeOpts{Name: "g"})
	require.NoError(t, err)
	g.Set(3)
	vec, err := reg.NewCounterVec(prometheus.CounterOpts{Name: "c"}, []string{"l"})
	require.NoError(t, err)
	vec.With(prometheus.Labels{"l": "v"}).Inc()
}
