package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/cryptodash/internal/api"
	"github.com/shaharia-lab/cryptodash/internal/auth"
	"github.com/shaharia-lab/cryptodash/internal/exchange"
	exmocks "github.com/shaharia-lab/cryptodash/internal/exchange/mocks"
	"github.com/shaharia-lab/cryptodash/internal/logger"
	"github.com/shaharia-lab/cryptodash/internal/storage"
	stmocks "github.com/shaharia-lab/cryptodash/internal/storage/mocks"
)

// testHarness bundles the mocks and router used by every test.
type testHarness struct {
	exchangeSvc *exmocks.MockService
	logins      *stmocks.MockLoginStore
	issuer      *auth.Issuer
	router      chi.Router
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	exchangeSvc := new(exmocks.MockService)
	logins := new(stmocks.MockLoginStore)
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	srv := api.New(exchangeSvc, issuer, logins, logger.Discard(), nil)

	r := chi.NewRouter()
	srv.Mount(r)

	return &testHarness{
		exchangeSvc: exchangeSvc,
		logins:      logins,
		issuer:      issuer,
		router:      r,
	}
}

func (h *testHarness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *testHarness) bearer(t *testing.T, user string) string {
	t.Helper()
	tok, err := h.issuer.Issue(user)
	require.NoError(t, err)
	return "Bearer " + tok.Value
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var m map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

// ---------- Login ----------

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"valid credentials", `{"username":"alice","password":"secret"}`, http.StatusOK, ""},
		{"missing password", `{"username":"alice"}`, http.StatusBadRequest, "Missing username or password"},
		{"empty username", `{"username":"","password":"secret"}`, http.StatusBadRequest, "Missing username or password"},
		{"empty object", `{}`, http.StatusBadRequest, "Missing username or password"},
		{"invalid json", `{not json`, http.StatusBadRequest, "Missing username or password"},
		{"wrong types", `{"username":1,"password":true}`, http.StatusBadRequest, "Missing username or password"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.logins.On("RecordLogin", mock.Anything, mock.Anything).Return(nil)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := h.do(req)

			assert.Equal(t, tc.wantStatus, w.Code)
			body := decodeMap(t, w)
			if tc.wantMsg != "" {
				assert.Equal(t, tc.wantMsg, body["msg"])
				h.logins.AssertNotCalled(t, "RecordLogin", mock.Anything, mock.Anything)
				return
			}

			claims, err := h.issuer.Verify(body["access_token"])
			require.NoError(t, err)
			assert.Equal(t, "alice", claims.Subject)
		})
	}
}

func TestLogin_RecordsAudit(t *testing.T) {
	h := newHarness(t)
	h.logins.On("RecordLogin", mock.Anything, mock.MatchedBy(func(rec storage.LoginRecord) bool {
		return rec.Username == "alice" && rec.TokenID != "" &&
			rec.UserAgent == "dashboard/1.0" && rec.ExpiresAt.Sub(rec.IssuedAt) == time.Hour
	})).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice","password":"x"}`))
	req.Header.Set("User-Agent", "dashboard/1.0")
	w := h.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	h.logins.AssertExpectations(t)
}

func TestLogin_AuditFailureDoesNotFailLogin(t *testing.T) {
	h := newHarness(t)
	h.logins.On("RecordLogin", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	w := h.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice","password":"x"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeMap(t, w)["access_token"])
}

// ---------- Exchange data ----------

func TestExchangeData(t *testing.T) {
	snap := &exchange.Snapshot{
		Binance:  json.RawMessage(`[{"symbol":"BTCUSDT","price":"67000.00"}]`),
		Coinbase: json.RawMessage(`[{"id":"BTC-USD"}]`),
	}

	tests := []struct {
		name       string
		auth       string
		snap       *exchange.Snapshot
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			auth:       "valid",
			snap:       snap,
			wantStatus: http.StatusOK,
			wantBody:   `{"binance":[{"symbol":"BTCUSDT","price":"67000.00"}],"coinbase":[{"id":"BTC-USD"}]}`,
		},
		{
			name:       "upstream failure",
			auth:       "valid",
			err:        &exchange.FetchError{Exchange: exchange.Binance, Status: http.StatusServiceUnavailable},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Failed to fetch cryptocurrency data"}`,
		},
		{
			name:       "no token",
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"msg":"Missing Authorization Header"}`,
		},
		{
			name:       "invalid token",
			auth:       "Bearer not.a.token",
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `{"msg":"Token is invalid"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			if tc.snap != nil || tc.err != nil {
				h.exchangeSvc.On("Get", mock.Anything).Return(tc.snap, tc.err)
			}

			req := httptest.NewRequest(http.MethodGet, "/exchange-data", nil)
			switch tc.auth {
			case "":
			case "valid":
				req.Header.Set("Authorization", h.bearer(t, "alice"))
			default:
				req.Header.Set("Authorization", tc.auth)
			}
			w := h.do(req)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.JSONEq(t, tc.wantBody, w.Body.String())
			h.exchangeSvc.AssertExpectations(t)
		})
	}
}

// ---------- Login audit ----------

func TestListLogins(t *testing.T) {
	records := []storage.LoginRecord{{ID: 2, Username: "alice", TokenID: "t2"}, {ID: 1, Username: "alice", TokenID: "t1"}}

	tests := []struct {
		name       string
		query      string
		limit      int
		records    []storage.LoginRecord
		err        error
		wantStatus int
		wantLen    int
	}{
		{"default limit", "", 0, records, nil, http.StatusOK, 2},
		{"explicit limit", "?limit=1", 1, records[:1], nil, http.StatusOK, 1},
		{"no records", "", 0, nil, nil, http.StatusOK, 0},
		{"bad limit", "?limit=abc", 0, nil, nil, http.StatusBadRequest, -1},
		{"store error", "", 0, nil, errors.New("db locked"), http.StatusInternalServerError, -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.logins.On("ListLogins", mock.Anything, "alice", tc.limit).Return(tc.records, tc.err)

			req := httptest.NewRequest(http.MethodGet, "/auth/logins"+tc.query, nil)
			req.Header.Set("Authorization", h.bearer(t, "alice"))
			w := h.do(req)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantLen >= 0 {
				var got []storage.LoginRecord
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Len(t, got, tc.wantLen)
			}
		})
	}
}

func TestListLogins_RequiresToken(t *testing.T) {
	h := newHarness(t)
	w := h.do(httptest.NewRequest(http.MethodGet, "/auth/logins", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ---------- Version ----------

func TestVersion(t *testing.T) {
	h := newHarness(t)
	w := h.do(httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "dev", got["version"])
	assert.NotEmpty(t, got["go_version"])
}
