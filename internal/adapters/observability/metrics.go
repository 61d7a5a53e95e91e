package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "pricing"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
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
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|corrupt|set|del
	)
	Recommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "recommendations_generated_total", Help: "Price recommendations by winning rule."},
		[]string{"rule", "event"}, // rule: competitor|base, event: true|false
	)
	FeedLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "feed_fetch_duration_seconds",
			Help:    "Competitor/event feed fetch duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed", "outcome"},
	)
	IngestedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ingested_records_total", Help: "Scraped records processed by the ingestor."},
		[]string{"kind", "outcome"}, // outcome: stored|skipped|error
	)
)

// Serve exposes reg on addr in the background. Empty addr disables it; a nil
// reg falls back to the default registry.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	h := promhttp.Handler()
	if reg != nil {
		h = MetricsHandler(reg)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

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
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		Recommendations, FeedLatency, IngestedRecords)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|corrupt|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveRecommendation(rule string, event bool) {
	Recommendations.WithLabelValues(rule, strconv.FormatBool(event)).Inc()
}

func ObserveFeed(feed string, err error, dur time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	FeedLatency.WithLabelValues(feed, outcome).Observe(dur.Seconds())
}

func ObserveIngest(kind, outcome string, n int) {
	IngestedRecords.WithLabelValues(kind, outcome).Add(float64(n))
}

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
