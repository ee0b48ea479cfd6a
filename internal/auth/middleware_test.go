package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

func TestCredentialFromRequest(t *testing.T) {
	t.Run("Authorization header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		assert.Equal(t, "header-token", CredentialFromRequest(req))
	})

	t.Run("token query parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
		assert.Equal(t, "query-token", CredentialFromRequest(req))
	})

	t.Run("header wins over query parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		assert.Equal(t, "header-token", CredentialFromRequest(req))
	})

	t.Run("non-bearer header falls through to query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		assert.Equal(t, "query-token", CredentialFromRequest(req))
	})

	t.Run("no credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		assert.Equal(t, "", CredentialFromRequest(req))
	})
}

func TestMiddleware_AttachesIdentity(t *testing.T) {
	sessions := new(mockSessionStore)
	v, err := NewValidator(testSecret, sessions, zerolog.Nop())
	require.NoError(t, err)

	credential := signToken(t, testSecret, "user-a", time.Now().Add(time.Hour))
	sessions.On("ActiveSessions", mock.Anything, "user-a").Return([]string{credential}, nil).Once()

	var got gateway.Identity
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = IdentityFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodPost, "/api/push", nil)
	req.Header.Set("Authorization", "Bearer "+credential)
	rec := httptest.NewRecorder()
	Middleware(v)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	assert.Equal(t, "user-a", got.UserID)
}

func TestMiddleware_RejectsInvalidCredential(t *testing.T) {
	sessions := new(mockSessionStore)
	v, err := NewValidator(testSecret, sessions, zerolog.Nop())
	require.NoError(t, err)

	nextCalled := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { nextCalled = true })

	req := httptest.NewRequest(http.MethodPost, "/api/push", nil)
	rec := httptest.NewRecorder()
	Middleware(v)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, nextCalled)
}

func TestNoopMiddleware(t *testing.T) {
	var got gateway.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	NoopMiddleware("local-admin")(next).ServeHTTP(rec, req)

	assert.Equal(t, "local-admin", got.UserID)
}
