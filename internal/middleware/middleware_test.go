package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"athemaria/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	w.Write([]byte(userID))
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	token, err := tm.GenerateToken("user-1")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestValidateTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, _ := tm.GenerateToken("user-1")

	other := NewTokenManager("other-secret", time.Hour)
	_, err := other.ValidateToken(token)
	assert.Error(t, err, "wrong secret")

	expired := NewTokenManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.ValidateToken(token)
	assert.Error(t, err, "expired")

	_, err = tm.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	handler := tm.RequireAuth(echoUser)
	token, _ := tm.GenerateToken("user-1")

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"bad token", "Bearer garbage", http.StatusUnauthorized, ""},
		{"valid", "Bearer " + token, http.StatusOK, "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me/stories", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	handler := tm.OptionalAuth(echoUser)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/stories", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	token, _ := tm.GenerateToken("user-2")
	req := httptest.NewRequest(http.MethodGet, "/stories", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, "user-2", rec.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin("admin", echoUser)

	req := httptest.NewRequest(http.MethodGet, "/admin/reports", nil)
	rec := httptest.NewRecorder()
	handler(rec, req.WithContext(SetUserIDInContext(req.Context(), "someone")))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler(rec, req.WithContext(SetUserIDInContext(req.Context(), "admin")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	RequireAdmin("", echoUser)(rec, req.WithContext(SetUserIDInContext(req.Context(), "")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORSMiddleware(DefaultCORSConfig([]string{"https://athemaria.example"}))(next)

	req := httptest.NewRequest(http.MethodOptions, "/stories", nil)
	req.Header.Set("Origin", "https://athemaria.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://athemaria.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/stories", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerRecordsMetrics(t *testing.T) {
	metrics := utils.NewMetricsCollector()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stories/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	handler := RequestLogger(metrics)(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stories/abc", nil))

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Requests)
	assert.Equal(t, uint64(1), snap.Errors)
	assert.Contains(t, snap.Operations, "GET /stories/{id}")
}
