package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/cryptodash/internal/api"
	"github.com/shaharia-lab/cryptodash/internal/auth"
	"github.com/shaharia-lab/cryptodash/internal/exchange"
	exmocks "github.com/shaharia-lab/cryptodash/internal/exchange/mocks"
	"github.com/shaharia-lab/cryptodash/internal/logger"
	stmocks "github.com/shaharia-lab/cryptodash/internal/storage/mocks"
)

type backendHarness struct {
	exchangeSvc *exmocks.MockService
	issuer      *auth.Issuer
	handler     http.Handler
}

func newBackendHarness(t *testing.T, origins ...string) *backendHarness {
	t.Helper()
	exchangeSvc := new(exmocks.MockService)
	logins := new(stmocks.MockLoginStore)
	logins.On("RecordLogin", mock.Anything, mock.Anything).Return(nil)

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	srv := NewBackend(BackendOptions{
		API:            api.New(exchangeSvc, issuer, logins, logger.Discard(), nil),
		AllowedOrigins: origins,
		Logger:         logger.Discard(),
	})
	return &backendHarness{exchangeSvc: exchangeSvc, issuer: issuer, handler: srv.Handler()}
}

func (h *backendHarness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func TestBackend_Errors(t *testing.T) {
	h := newBackendHarness(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"unknown root route", http.MethodGet, "/nope", http.StatusNotFound, `{"error":"Resource not found"}`},
		{"unknown api route", http.MethodGet, "/api/nope", http.StatusNotFound, `{"error":"Resource not found"}`},
		{"wrong method", http.MethodGet, "/api/auth/login", http.StatusMethodNotAllowed, `{"error":"Method not allowed"}`},
		{"health", http.MethodGet, "/health", http.StatusOK, `{"status":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestBackend_LoginThenExchangeData(t *testing.T) {
	h := newBackendHarness(t)
	h.exchangeSvc.On("Get", mock.Anything).Return(&exchange.Snapshot{
		Binance:  json.RawMessage(`[]`),
		Coinbase: json.RawMessage(`[]`),
	}, nil)

	w := h.do(httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"alice","password":"pw"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	var login map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	req := httptest.NewRequest(http.MethodGet, "/api/exchange-data", nil)
	req.Header.Set("Authorization", "Bearer "+login["access_token"])
	w = h.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"binance":[],"coinbase":[]}`, w.Body.String())
}

func TestBackend_PanicBecomesJSON500(t *testing.T) {
	h := newBackendHarness(t)
	h.exchangeSvc.On("Get", mock.Anything).Run(func(mock.Arguments) { panic("boom") })

	tok, err := h.issuer.Issue("alice")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/exchange-data", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Value)

	w := h.do(req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestBackend_CORS(t *testing.T) {
	t.Run("any origin by default", func(t *testing.T) {
		h := newBackendHarness(t)
		req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		w := h.do(req)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("restricted origins", func(t *testing.T) {
		h := newBackendHarness(t, "https://dash.example.com")

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		assert.Empty(t, h.do(req).Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://dash.example.com")
		assert.Equal(t, "https://dash.example.com", h.do(req).Header().Get("Access-Control-Allow-Origin"))
	})
}
