package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/cryptodash/internal/logger"
	"github.com/shaharia-lab/cryptodash/internal/metrics"
	"github.com/shaharia-lab/cryptodash/internal/rewrite"
)

type seenRequest struct {
	URI            string
	Host           string
	ForwardedHost  string
	ForwardedProto string
	ForwardedFor   string
	Method         string
	Body           string
}

func echoBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(seenRequest{
			URI:            r.RequestURI,
			Host:           r.Host,
			ForwardedHost:  r.Header.Get("X-Forwarded-Host"),
			ForwardedProto: r.Header.Get("X-Forwarded-Proto"),
			ForwardedFor:   r.Header.Get("X-Forwarded-For"),
			Method:         r.Method,
			Body:           string(body),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// gateway wires a single rewrite rule in front of p.
func gateway(t *testing.T, p *Proxy, source, destination string) *httptest.Server {
	t.Helper()
	rule, err := rewrite.NewRule(source, destination, nil, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := rule.Apply(r)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		p.Forward(w, r, res)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func decodeSeen(t *testing.T, resp *http.Response) seenRequest {
	t.Helper()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var seen seenRequest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&seen))
	return seen
}

func TestForward_RewritesPathAndQuery(t *testing.T) {
	backend := echoBackend(t)
	p := New(Options{Logger: logger.Discard(), XForwarded: true})
	gw := gateway(t, p, "/api/:path*", backend.URL+"/api/:path*")

	tests := []struct {
		name    string
		path    string
		wantURI string
	}{
		{"single segment", "/api/users", "/api/users"},
		{"nested", "/api/users/42", "/api/users/42"},
		{"query kept", "/api/exchange-data?limit=5&sort=asc", "/api/exchange-data?limit=5&sort=asc"},
		{"escapes verbatim", "/api/files/a%2Fb%20c", "/api/files/a%2Fb%20c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(gw.URL + tt.path)
			require.NoError(t, err)
			seen := decodeSeen(t, resp)
			assert.Equal(t, tt.wantURI, seen.URI)
		})
	}
}

func TestForward_HostAndForwardedHeaders(t *testing.T) {
	backend := echoBackend(t)
	backendURL, _ := url.Parse(backend.URL)
	gwURL := func(gw *httptest.Server) string {
		u, _ := url.Parse(gw.URL)
		return u.Host
	}

	t.Run("destination host by default", func(t *testing.T) {
		p := New(Options{Logger: logger.Discard(), XForwarded: true})
		gw := gateway(t, p, "/api/:path*", backend.URL+"/api/:path*")

		resp, err := http.Get(gw.URL + "/api/ping")
		require.NoError(t, err)
		seen := decodeSeen(t, resp)
		assert.Equal(t, backendURL.Host, seen.Host)
		assert.Equal(t, gwURL(gw), seen.ForwardedHost)
		assert.Equal(t, "http", seen.ForwardedProto)
		assert.Equal(t, "127.0.0.1", seen.ForwardedFor)
	})

	t.Run("preserve host", func(t *testing.T) {
		p := New(Options{Logger: logger.Discard(), PreserveHost: true})
		gw := gateway(t, p, "/api/:path*", backend.URL+"/api/:path*")

		resp, err := http.Get(gw.URL + "/api/ping")
		require.NoError(t, err)
		seen := decodeSeen(t, resp)
		assert.Equal(t, gwURL(gw), seen.Host)
		assert.Empty(t, seen.ForwardedHost)
		assert.Empty(t, seen.ForwardedFor)
	})
}

func TestForward_PostBody(t *testing.T) {
	backend := echoBackend(t)
	p := New(Options{Logger: logger.Discard()})
	gw := gateway(t, p, "/api/:path*", backend.URL+"/api/:path*")

	resp, err := http.Post(gw.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"username":"alice","password":"secret"}`))
	require.NoError(t, err)
	seen := decodeSeen(t, resp)
	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, "/api/auth/login", seen.URI)
	assert.JSONEq(t, `{"username":"alice","password":"secret"}`, seen.Body)
}

func TestForward_UnreachableUpstream(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	reg := metrics.New()
	p := New(Options{Logger: logger.Discard(), Metrics: reg})
	gw := gateway(t, p, "/api/:path*", deadURL+"/api/:path*")

	resp, err := http.Get(gw.URL + "/api/users")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"error":"bad gateway"}`, string(body))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ProxyRequests.WithLabelValues("/api/:path*", "502")))
}

func TestForward_UpstreamTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(slow.Close)
	t.Cleanup(func() { close(release) })

	p := New(Options{Logger: logger.Discard(), Timeout: 50 * time.Millisecond})
	gw := gateway(t, p, "/api/:path*", slow.URL+"/api/:path*")

	resp, err := http.Get(gw.URL + "/api/slow")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestForward_RecordsMetrics(t *testing.T) {
	backend := echoBackend(t)
	reg := metrics.New()
	p := New(Options{Logger: logger.Discard(), Metrics: reg})
	gw := gateway(t, p, "/api/:path*", backend.URL+"/api/:path*")

	for range 3 {
		resp, err := http.Get(gw.URL + "/api/a")
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.ProxyRequests.WithLabelValues("/api/:path*", "200")))
}

func TestForward_WebsocketUpgrade(t *testing.T) {
	upgrader := websocket.Upgrader{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, append([]byte("echo:"), msg...)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(backend.Close)

	p := New(Options{Logger: logger.Discard(), XForwarded: true})
	gw := gateway(t, p, "/api/:path*", backend.URL+"/api/:path*")

	wsURL := "ws" + gw.URL[len("http"):] + "/api/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("btc")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo:btc", string(msg))
}

func TestBufferPool_Reuse(t *testing.T) {
	p := newBufferPool()
	b := p.Get()
	assert.Len(t, b, bufferSize)
	p.Put(b)
	p.Put(make([]byte, 10))
	assert.Len(t, p.Get(), bufferSize)
}
