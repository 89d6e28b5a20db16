package observability

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"alquiler_floripa/internal/domain"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "floripa", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "floripa", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	RemoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "floripa", Name: "remote_requests_total", Help: "Remote store calls."},
		[]string{"backend", "op", "status"},
	)
	RemoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "floripa", Name: "remote_request_duration_seconds",
			Help:    "Remote store call duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "floripa", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	Fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "floripa", Name: "fallback_total", Help: "Writes served by the local mirror."},
		[]string{"entity", "op"},
	)
	Probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "floripa", Name: "probe_total", Help: "Connectivity probe outcomes."},
		[]string{"result"}, // reachable|degraded
	)
	MirrorBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "floripa", Name: "mirror_bytes", Help: "Serialized size of each mirrored collection."},
		[]string{"collection"},
	)
)

// Serve exposes reg on a dedicated listener. An empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, RemoteRequests, RemoteLatency, CacheEvents,
		Fallbacks, Probes, MirrorBytes)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

// ObserveRemote records one remote store call. status is an HTTP code for the REST backend
// or LabelErr output for SQL backends.
func ObserveRemote(backend, op, status string, dur time.Duration) {
	RemoteRequests.WithLabelValues(backend, op, status).Inc()
	RemoteLatency.WithLabelValues(backend, op).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) {
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveFallback(entity domain.Collection, op string) {
	Fallbacks.WithLabelValues(string(entity), op).Inc()
}

func ObserveProbe(reachable bool) {
	if reachable {
		Probes.WithLabelValues("reachable").Inc()
		return
	}
	Probes.WithLabelValues("degraded").Inc()
}

func SetMirrorBytes(c domain.Collection, n int) {
	MirrorBytes.WithLabelValues(string(c)).Set(float64(n))
}

// LabelErr maps an error to a low-cardinality label.
func LabelErr(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRelationMissing):
		return "relation_missing"
	case errors.Is(err, domain.ErrPermission):
		return "permission"
	case errors.Is(err, domain.ErrUnreachable):
		return "unreachable"
	}
	return fmt.Sprintf("%T", err)
}
