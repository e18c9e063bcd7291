// Package proxy forwards requests whose rewrite rule points at another
// origin. A single Proxy serves every external rule; the rewrite result
// travels with the request context into the ReverseProxy hooks.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shaharia-lab/cryptodash/internal/metrics"
	"github.com/shaharia-lab/cryptodash/internal/rewrite"
)

// statusClientClosed labels requests the client abandoned before any
// response was written.
const statusClientClosed = 499

// Options configures a Proxy.
type Options struct {
	Logger *slog.Logger
	// PreserveHost forwards the incoming Host header instead of the
	// destination's host.
	PreserveHost bool
	// XForwarded sets X-Forwarded-For, X-Forwarded-Host and X-Forwarded-Proto.
	XForwarded bool
	// Timeout bounds the wait for upstream response headers. Zero means no limit.
	Timeout time.Duration
	// Transport overrides the upstream transport. It is still wrapped for tracing.
	Transport http.RoundTripper
	Metrics   *metrics.Registry
}

// Proxy forwards requests to external rewrite targets.
type Proxy struct {
	rp           *httputil.ReverseProxy
	logger       *slog.Logger
	metrics      *metrics.Registry
	preserveHost bool
	xForwarded   bool
}

type resultKey struct{}

// New creates a Proxy.
func New(opts Options) *Proxy {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = opts.Timeout
		transport = t
	}

	p := &Proxy{
		logger:       logger,
		metrics:      opts.Metrics,
		preserveHost: opts.PreserveHost,
		xForwarded:   opts.XForwarded,
	}
	p.rp = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		Transport:    otelhttp.NewTransport(transport),
		BufferPool:   newBufferPool(),
		ErrorHandler: p.handleError,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return p
}

// Forward sends r to result.Target and copies the upstream response to w.
// Upgrade requests are passed through.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, result *rewrite.Result) {
	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	ctx := context.WithValue(r.Context(), resultKey{}, result)
	p.rp.ServeHTTP(ww, r.WithContext(ctx))

	code := ww.Status()
	if code == 0 {
		code = statusClientClosed
		if r.Header.Get("Upgrade") != "" {
			code = http.StatusSwitchingProtocols
		}
	}
	p.metrics.ObserveProxy(result.Rule.Source, code, time.Since(start))
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	result := pr.In.Context().Value(resultKey{}).(*rewrite.Result)

	target := *result.Target
	target.Fragment = ""
	target.RawFragment = ""
	pr.Out.URL = &target

	if p.preserveHost {
		pr.Out.Host = pr.In.Host
	} else {
		pr.Out.Host = ""
	}
	if p.xForwarded {
		pr.SetXForwarded()
	}
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	result, _ := r.Context().Value(resultKey{}).(*rewrite.Result)
	attrs := []any{"path", r.URL.Path, "error", err}
	if result != nil {
		attrs = append(attrs, "rule", result.Rule.Source, "upstream", result.Target.Host)
	}

	if errors.Is(err, context.Canceled) || r.Context().Err() != nil {
		p.logger.Debug("client canceled proxied request", attrs...)
		return
	}

	p.logger.Warn("proxy upstream error", attrs...)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad gateway"})
}
