package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := FromContext(r.Context())
		_, _ = w.Write([]byte(id.TenantID + "/" + id.UserID))
	})
}

func TestMiddleware(t *testing.T) {
	valid := sign(t, jwt.MapClaims{"tid": "tenant-1", "sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})
	expired := sign(t, jwt.MapClaims{"tid": "tenant-1", "sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})
	noTenant := sign(t, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "bearer header", header: "Bearer " + valid, status: http.StatusOK, body: "tenant-1/user-1"},
		{name: "query token", query: "?token=" + valid, status: http.StatusOK, body: "tenant-1/user-1"},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "missing tenant", header: "Bearer " + noTenant, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-token", status: http.StatusUnauthorized},
	}

	h := Middleware(secret)(identityEcho())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/imports"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestFromContextRequiresBothParts(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	_, ok = FromContext(WithIdentity(context.Background(), Identity{TenantID: "tenant-1"}))
	assert.False(t, ok)

	id, ok := FromContext(WithIdentity(context.Background(), Identity{TenantID: "tenant-1", UserID: "user-1"}))
	assert.True(t, ok)
	assert.Equal(t, "user-1", id.UserID)
}
