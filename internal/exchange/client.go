// Package exchange fetches ticker data from the public Binance and Coinbase
// APIs and caches the combined snapshot.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaharia-lab/cryptodash/internal/metrics"
	"github.com/shaharia-lab/cryptodash/internal/telemetry"
)

// Exchange names as reported in snapshots, errors and metrics.
const (
	Binance  = "binance"
	Coinbase = "coinbase"
)

// maxBodySize caps an upstream response.
const maxBodySize = 16 << 20

// Snapshot is the combined exchange data. Each field holds the upstream
// JSON document unchanged.
type Snapshot struct {
	Binance  json.RawMessage `json:"binance"`
	Coinbase json.RawMessage `json:"coinbase"`
}

// FetchError describes a failed upstream request.
type FetchError struct {
	Exchange string
	URL      string
	// Status is the upstream HTTP status, zero when no response arrived.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s data from %s: unexpected status %d", e.Exchange, e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s data from %s: %v", e.Exchange, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BinanceURL  string
	CoinbaseURL string
	Timeout     time.Duration
	Transport   http.RoundTripper
	Metrics     *metrics.Registry
}

// Client fetches snapshots from the exchange APIs.
type Client struct {
	http        *http.Client
	binanceURL  string
	coinbaseURL string
	metrics     *metrics.Registry
}

// NewClient creates a Client. Base URLs must not carry a trailing slash.
func NewClient(opts ClientOptions) *Client {
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		binanceURL:  strings.TrimSuffix(opts.BinanceURL, "/"),
		coinbaseURL: strings.TrimSuffix(opts.CoinbaseURL, "/"),
		metrics:     opts.Metrics,
	}
}

// Fetch retrieves Binance ticker prices and Coinbase products.
func (c *Client) Fetch(ctx context.Context) (_ *Snapshot, err error) {
	ctx, span := telemetry.Tracer("exchange").Start(ctx, "exchange.Fetch")
	defer func() { endSpan(span, err) }()

	binance, err := c.fetch(ctx, Binance, c.binanceURL+"/api/v3/ticker/price")
	if err != nil {
		return nil, err
	}
	coinbase, err := c.fetch(ctx, Coinbase, c.coinbaseURL+"/products")
	if err != nil {
		return nil, err
	}
	return &Snapshot{Binance: binance, Coinbase: coinbase}, nil
}

func (c *Client) fetch(ctx context.Context, exchange, url string) (_ json.RawMessage, err error) {
	ctx, span := telemetry.Tracer("exchange").Start(ctx, "exchange.fetch",
		trace.WithAttributes(attribute.String("exchange", exchange)))
	defer func() {
		c.metrics.ObserveFetch(exchange, err)
		endSpan(span, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Exchange: exchange, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cryptodash")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Exchange: exchange, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &FetchError{Exchange: exchange, URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{Exchange: exchange, URL: url, Err: err}
	}
	if !json.Valid(body) {
		return nil, &FetchError{Exchange: exchange, URL: url, Err: fmt.Errorf("response is not valid JSON")}
	}
	return json.RawMessage(body), nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
