package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func echoDriver() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		driverID, _ := DriverIDFromContext(r.Context())
		w.Write([]byte(driverID))
	})
}

func TestAuth_Driver(t *testing.T) {
	handler := NewAuth(testSecret, zerolog.Nop()).Driver(echoDriver())
	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"driver_id": "driver-b",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	cases := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "bearer header", header: "Bearer " + valid, status: http.StatusOK, body: "driver-b"},
		{name: "query token", query: "?token=" + valid, status: http.StatusOK, body: "driver-b"},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "bad scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"driver_id": "x"}), status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"driver_id": "driver-b",
			"exp":       time.Now().Add(-time.Hour).Unix(),
		}), status: http.StatusUnauthorized},
		{name: "sub fallback", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "driver-c"}), status: http.StatusOK, body: "driver-c"},
		{name: "no driver claim", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": "x"}), status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestInternalKey(t *testing.T) {
	handler := InternalKey("collab-key", zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for key, status := range map[string]int{
		"collab-key": http.StatusNoContent,
		"":           http.StatusUnauthorized,
		"guess":      http.StatusUnauthorized,
	} {
		req := httptest.NewRequest(http.MethodPost, "/internal/v1/rides/offer-1/started", nil)
		req.Header.Set("X-Internal-Key", key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, "key %q", key)
	}

	unconfigured := InternalKey("", zerolog.Nop())(echoDriver())
	req := httptest.NewRequest(http.MethodPost, "/internal/v1/payments/webhook", nil)
	rec := httptest.NewRecorder()
	unconfigured.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSecurityHeadersAndRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(zerolog.New(&buf))(SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/health"`)
}
