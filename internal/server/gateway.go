package server

import (
	"bytes"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shaharia-lab/cryptodash/internal/config"
	"github.com/shaharia-lab/cryptodash/internal/metrics"
	"github.com/shaharia-lab/cryptodash/internal/proxy"
)

// GatewayOptions configures the frontend gateway.
type GatewayOptions struct {
	Port  int
	Rules *config.RuleSets
	// Files is the frontend bundle. Nil selects dev mode: requests no rule
	// claims are proxied to DevServerURL.
	Files        fs.FS
	DevServerURL string
	Proxy        *proxy.Proxy
	Metrics      *metrics.Registry
	Logger       *slog.Logger
}

// NewGateway creates the server that serves the frontend bundle and applies
// redirects and rewrites. Every path except /health, /metrics and
// /_cryptodash/version goes through the rewrite pipeline.
func NewGateway(opts GatewayOptions) (*Server, error) {
	if opts.Proxy == nil {
		opts.Proxy = proxy.New(proxy.Options{Logger: opts.Logger, XForwarded: true, Metrics: opts.Metrics})
	}

	pipeline, err := NewPipeline(opts.Rules, opts.Files, opts.DevServerURL)
	if err != nil {
		return nil, err
	}
	g := &gateway{
		pipeline: pipeline,
		files:    opts.Files,
		proxy:    opts.Proxy,
		logger:   opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger("gateway", opts.Logger, opts.Metrics))

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", metricsHandler(opts.Metrics))
	r.Get("/_cryptodash/version", handleVersion)
	r.Handle("/*", g)

	return newServer("gateway", opts.Port, r, opts.Logger), nil
}

type gateway struct {
	pipeline *Pipeline
	files    fs.FS
	proxy    *proxy.Proxy
	logger   *slog.Logger
}

// ServeHTTP acts on the pipeline's decision for r.
func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt, err := g.pipeline.Resolve(r)
	if err != nil {
		g.ruleError(w, r, err)
		return
	}
	if rt.Rule != nil {
		g.logger.Debug("rule applied",
			"step", string(rt.Step),
			"source", rt.Rule.Source,
			"path", r.URL.Path,
			"target", rt.Target(),
		)
	}

	switch {
	case rt.Location != "":
		http.Redirect(w, r, rt.Location, rt.Status)
	case rt.Forward != nil:
		g.proxy.Forward(w, r, rt.Forward)
	case rt.File != "":
		g.serveFile(w, r, rt.File)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (g *gateway) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	f, err := g.files.Open(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		g.ruleError(w, r, err)
		return
	}
	content, ok := f.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(f)
		if err != nil {
			g.ruleError(w, r, err)
			return
		}
		content = bytes.NewReader(data)
	}
	http.ServeContent(w, r, name, info.ModTime(), content)
}

func (g *gateway) ruleError(w http.ResponseWriter, r *http.Request, err error) {
	g.logger.Error("gateway request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
