package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelwrap/internal/logging"
	"modelwrap/model"
)

const namespace = "modelwrap"

var (
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Transform requests by protocol, direction and result code.",
	}, []string{"protocol", "direction", "code"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Transform request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"protocol", "direction"})

	CustomCounters = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "custom_counter_total",
		Help:      "COUNTER metrics reported by the model.",
	}, []string{"key"})

	CustomGauges = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "custom_gauge",
		Help:      "GAUGE metrics reported by the model.",
	}, []string{"key"})

	CustomTimers = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "custom_timer_seconds",
		Help:      "TIMER metrics reported by the model.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"key"})
)

// ObserveRequest records one finished transform call.
func ObserveRequest(protocol, direction, code string, elapsed time.Duration) {
	Requests.WithLabelValues(protocol, direction, code).Inc()
	RequestDuration.WithLabelValues(protocol, direction).Observe(elapsed.Seconds())
}

// RecordCustom mirrors model-reported metrics into the registry.
func RecordCustom(ms []model.Metric) {
	for _, m := range ms {
		switch m.Type {
		case model.Counter:
			if m.Value < 0 {
				logging.L().Warn("telemetry: negative counter skipped", "key", m.Key, "value", m.Value)
				continue
			}
			CustomCounters.WithLabelValues(m.Key).Add(m.Value)
		case model.Gauge:
			CustomGauges.WithLabelValues(m.Key).Set(m.Value)
		case model.Timer:
			CustomTimers.WithLabelValues(m.Key).Observe(m.Value / 1000)
		}
	}
}

// Expose serves /metrics on port until the returned server is shut down.
// Port 0 disables the endpoint and returns nil.
func Expose(port int) *http.Server {
	if port == 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics server stopped", "port", port, "err", err)
		}
	}()
	return srv
}
