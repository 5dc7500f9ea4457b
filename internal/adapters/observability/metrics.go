package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "crunch"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by route and status."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "provider_requests_total", Help: "Listing provider calls per attempt."},
		[]string{"endpoint", "status"},
	)
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "provider_request_duration_seconds",
			Help:    "Listing provider call duration seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"},
	)
	SearchSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "search_sessions_total", Help: "Finished search generations."},
		[]string{"outcome"}, // complete|degraded|aborted
	)
	PageFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "page_fetches_total", Help: "Settled page fetches."},
		[]string{"status"}, // ok|error|stale
	)
	Merges = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "result_merges_total", Help: "Result set merge decisions."},
		[]string{"kind"}, // insert|update|stale
	)
	ResultSize = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "result_set_size", Help: "Properties held by the current search."},
	)
)

// NewRegistry returns a registry holding every rentcrunch collector plus the
// Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency, ProviderRequests, ProviderLatency, CacheEvents,
		SearchSessions, PageFetches, Merges, ResultSize,
		collectors.NewGoCollector(),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Serve exposes reg on a dedicated listener until ctx ends. Empty addr disables it.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

// ObserveProvider records one attempt; status 0 means a transport error.
func ObserveProvider(endpoint string, status int, dur time.Duration) {
	ProviderRequests.WithLabelValues(endpoint, statusLabel(status)).Inc()
	ProviderLatency.WithLabelValues(endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveSession(outcome string) { SearchSessions.WithLabelValues(outcome).Inc() }

func ObservePage(status string) { PageFetches.WithLabelValues(status).Inc() }

func ObserveMerge(kind string) { Merges.WithLabelValues(kind).Inc() }

func SetResultSize(n int) { ResultSize.Set(float64(n)) }

func statusLabel(status int) string {
	if status == 0 {
		return "transport_error"
	}
	return strconv.Itoa(status)
}
