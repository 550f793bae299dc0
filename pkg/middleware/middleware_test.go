package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmarket/backend/pkg/auth"
	"github.com/cloudmarket/backend/pkg/logger"
	"github.com/cloudmarket/backend/pkg/response"
	"github.com/cloudmarket/backend/pkg/session"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(body))
	})
}

func TestRequestID(t *testing.T) {
	var seen any
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(logger.RequestIDKey)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestHealth(t *testing.T) {
	h := Health(http.NotFoundHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	ServiceName("items")(h).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Contains(t, rec.Body.String(), `"service":"items"`)
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestCORSAllowsConfiguredOriginWithCredentials(t *testing.T) {
	h := CORS([]string{"https://shop.example"})(okHandler(`{}`))

	req := httptest.NewRequest("OPTIONS", "/otp/request", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest("OPTIONS", "/otp/request", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestIdempotencyRejectsRepeatedKey(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	calls := 0
	h := Idempotency(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"items":[{"serial":1,"code":"1234567897"}]}`))
	}))

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/admin/mint", strings.NewReader(`{}`))
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("k1")
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Contains(t, first.Body.String(), "1234567897")

	second := send("k1")
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), response.CodeDuplicateRequest)
	assert.NotContains(t, second.Body.String(), "1234567897")
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)

	send("")
	send("k2")
	assert.Equal(t, 3, calls)
}

func TestIdempotencyStoresNoResponseBody(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	h := Idempotency(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"item_id":"x","code":"1234567897"}`))
	}))
	req := httptest.NewRequest("POST", "/admin/items/x/claim-code", nil)
	req.Header.Set("Idempotency-Key", "k1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, store.data, 1)
	for _, v := range store.data {
		assert.NotContains(t, v, "1234567897")
		assert.Equal(t, idempotencyMarker, v)
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	h := Idempotency(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	req := httptest.NewRequest("POST", "/admin/mint", nil)
	req.Header.Set("Idempotency-Key", "k1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, store.data)
}

func TestSessionTokenSources(t *testing.T) {
	req := httptest.NewRequest("GET", "/me?session_token=from-query", nil)
	assert.Equal(t, []string{"from-query"}, SessionTokens(req, "cm_session"))

	req.Header.Set("Authorization", "Bearer from-header")
	req.AddCookie(&http.Cookie{Name: "cm_session", Value: "from-cookie"})
	assert.Equal(t, []string{"from-cookie", "from-header", "from-query"}, SessionTokens(req, "cm_session"))

	assert.Empty(t, SessionTokens(httptest.NewRequest("GET", "/me", nil), "cm_session"))
}

func TestRequireSessionSkipsStaleCookie(t *testing.T) {
	signer, err := session.NewSigner("secret", time.Hour)
	require.NoError(t, err)
	token, _, err := signer.Issue(7, "Oleg")
	require.NoError(t, err)

	var got session.Payload
	h := RequireSession(signer, "cm_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFromContext(r.Context())
	}))

	for _, build := range []func(*http.Request){
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
		func(r *http.Request) { r.URL.RawQuery = "session_token=" + token },
	} {
		got = session.Payload{}
		req := httptest.NewRequest("GET", "/me", nil)
		req.AddCookie(&http.Cookie{Name: "cm_session", Value: "stale.token"})
		build(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(7), got.AccountID)
	}
}

func TestRequireSession(t *testing.T) {
	signer, err := session.NewSigner("secret", time.Hour)
	require.NoError(t, err)
	token, _, err := signer.Issue(42, "Anna")
	require.NoError(t, err)

	var got session.Payload
	h := RequireSession(signer, "cm_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFromContext(r.Context())
		assert.Equal(t, int64(42), r.Context().Value(logger.AccountIDKey))
	}))

	for _, build := range []func(*http.Request){
		func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "cm_session", Value: token}) },
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
		func(r *http.Request) { r.URL.RawQuery = "session_token=" + token },
	} {
		got = session.Payload{}
		req := httptest.NewRequest("GET", "/me", nil)
		build(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(42), got.AccountID)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/me?session_token=forged.token", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalSession(t *testing.T) {
	signer, err := session.NewSigner("secret", 0)
	require.NoError(t, err)

	var present bool
	h := OptionalSession(signer, "cm_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = SessionFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, present)
}

func TestRequireServiceToken(t *testing.T) {
	const secret = "jwt-secret"
	h := RequireServiceToken(secret, auth.ScopeMint)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ops", ClaimsFromContext(r.Context()).Subject)
	}))

	call := func(header string) int {
		req := httptest.NewRequest("POST", "/admin/mint", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	minter, err := auth.NewServiceToken("ops", []string{auth.ScopeMint}, secret, time.Hour)
	require.NoError(t, err)
	reader, err := auth.NewServiceToken("ops", []string{"items:read"}, secret, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, call("Bearer "+minter))
	assert.Equal(t, http.StatusForbidden, call("Bearer "+reader))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer nonsense"))
	assert.Equal(t, http.StatusUnauthorized, call(""))
}
