package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

var secret = []byte("test-secret")

func sign(t *testing.T, claims jwt.MapClaims, key []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestAuthenticateAndAuthorize(t *testing.T) {
	valid := jwt.MapClaims{"sub": "tally-1", "role": RoleTally, "exp": time.Now().Add(time.Hour).Unix()}
	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "tally token", header: "Bearer " + sign(t, valid, secret), wantStatus: http.StatusNoContent},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "foreign key", header: "Bearer " + sign(t, valid, []byte("other")), wantStatus: http.StatusUnauthorized},
		{
			name:       "expired",
			header:     "Bearer " + sign(t, jwt.MapClaims{"role": RoleTally, "exp": time.Now().Add(-time.Hour).Unix()}, secret),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "other role",
			header:     "Bearer " + sign(t, jwt.MapClaims{"role": "viewer", "exp": time.Now().Add(time.Hour).Unix()}, secret),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "no role",
			header:     "Bearer " + sign(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}, secret),
			wantStatus: http.StatusForbidden,
		},
	}

	handler := Authenticate(secret)(Authorize(RoleTally)(http.HandlerFunc(ok)))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/matches/1/winner", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAuthenticateWithoutSecret(t *testing.T) {
	token := sign(t, jwt.MapClaims{"role": RoleTally}, []byte("any"))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	Authenticate(nil)(http.HandlerFunc(ok)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestParseTokenExpired(t *testing.T) {
	_, err := ParseToken(sign(t, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()}, secret), secret)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = ParseToken("not-a-token", secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaimsInContext(t *testing.T) {
	token := sign(t, jwt.MapClaims{"sub": "tally-1", "role": RoleTally}, secret)
	var subject, role string
	handler := Authenticate(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = GetSubjectFromContext(r.Context())
		role, _ = GetRoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "tally-1", subject)
	assert.Equal(t, RoleTally, role)
}

func TestDriverKey(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name       string
		hash       string
		key        string
		wantStatus int
	}{
		{name: "right key", hash: string(hashed), key: "s3cret", wantStatus: http.StatusNoContent},
		{name: "wrong key", hash: string(hashed), key: "guess", wantStatus: http.StatusUnauthorized},
		{name: "no key", hash: string(hashed), wantStatus: http.StatusUnauthorized},
		{name: "disabled", hash: "", key: "s3cret", wantStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/contests/1/advance", nil)
			if tt.key != "" {
				req.Header.Set(DriverKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			DriverKey(tt.hash)(http.HandlerFunc(ok)).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHashDriverKey(t *testing.T) {
	hashed, err := HashDriverKey("s3cret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hashed), []byte("s3cret")))
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 2)
	handler := limiter.Handler(http.HandlerFunc(ok))

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1:5000"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:5002"), "same ip, bucket empty")
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2:5000"), "other ip has its own bucket")

	now := time.Now()
	limiter.now = func() time.Time { return now.Add(2 * time.Hour) }
	limiter.Forget(time.Hour)
	assert.Empty(t, limiter.visitors)
}
