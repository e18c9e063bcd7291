// Package metrics holds the Prometheus collectors of both cryptodash
// processes. Each Registry owns its own prometheus.Registry so tests and
// multiple servers in one process never collide on registration.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cryptodash"

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Registry bundles the collectors and the registry exposing them.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	ProxyRequests      *prometheus.CounterVec
	ProxyDuration      *prometheus.HistogramVec
	CacheLookups       *prometheus.CounterVec
	ExchangeFetches    *prometheus.CounterVec
	LoginsTotal        prometheus.Counter
	RewriteRulesLoaded *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by server and status code.",
		}, []string{"server", "code"}),
		ProxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Requests forwarded by a rewrite rule, by rule source and upstream status code.",
		}, []string{"rule", "code"}),
		ProxyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proxy_request_duration_seconds",
			Help:      "Time spent forwarding a request to its rewrite destination.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"rule"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_cache_lookups_total",
			Help:      "Exchange data cache lookups by result.",
		}, []string{"result"}),
		ExchangeFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_fetches_total",
			Help:      "Exchange data fetches from upstream APIs, by exchange and outcome.",
		}, []string{"exchange", "outcome"}),
		LoginsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Access tokens issued.",
		}),
		RewriteRulesLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rewrite_rules_loaded",
			Help:      "Rewrite rules loaded at startup, by phase.",
		}, []string{"phase"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.HTTPRequests,
		r.ProxyRequests,
		r.ProxyDuration,
		r.CacheLookups,
		r.ExchangeFetches,
		r.LoginsTotal,
		r.RewriteRulesLoaded,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveProxy records one forwarded request.
func (r *Registry) ObserveProxy(rule string, code int, d time.Duration) {
	if r == nil {
		return
	}
	r.ProxyRequests.WithLabelValues(rule, strconv.Itoa(code)).Inc()
	r.ProxyDuration.WithLabelValues(rule).Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(server string, code int) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(server, strconv.Itoa(code)).Inc()
}

// ObserveCache records a cache lookup result.
func (r *Registry) ObserveCache(result string) {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveFetch records an upstream exchange fetch.
func (r *Registry) ObserveFetch(exchange string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.ExchangeFetches.WithLabelValues(exchange, outcome).Inc()
}

// ObserveLogin records an issued token.
func (r *Registry) ObserveLogin() {
	if r == nil {
		return
	}
	r.LoginsTotal.Inc()
}

// SetRules records how many rules each phase holds.
func (r *Registry) SetRules(phase string, n int) {
	if r == nil {
		return
	}
	r.RewriteRulesLoaded.WithLabelValues(phase).Set(float64(n))
}
