package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finfx/finfx-server/cmd/models"
)

func TestCanAccess(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		actorID uint
		ownerID uint
		want    bool
	}{
		{"owner reaches own record", models.RoleUser, 7, 7, true},
		{"user cannot reach foreign record", models.RoleUser, 7, 8, false},
		{"admin reaches own record", models.RoleAdmin, 1, 1, true},
		{"admin reaches foreign record", models.RoleAdmin, 1, 8, true},
		{"unknown role is treated as non-admin", "moderator", 7, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.role, tt.actorID, tt.ownerID))
		})
	}
}

func signTestToken(t *testing.T, secret string, userID string, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	var gotUserID uint
	var gotRole string
	next := func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
		gotRole, _ = GetRoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}

	t.Run("valid token passes identity through", func(t *testing.T) {
		token := signTestToken(t, "test-secret", "42", models.RoleUser, time.Hour)

		r := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AuthMiddleware(next)(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uint(42), gotUserID)
		assert.Equal(t, models.RoleUser, gotRole)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
		w := httptest.NewRecorder()

		AuthMiddleware(next)(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()

		AuthMiddleware(next)(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token := signTestToken(t, "test-secret", "42", models.RoleUser, -time.Hour)

		r := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AuthMiddleware(next)(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		token := signTestToken(t, "other-secret", "42", models.RoleUser, time.Hour)

		r := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AuthMiddleware(next)(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAdminMiddleware(t *testing.T) {
	next := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	withRole := func(r *http.Request, userID uint, role string) *http.Request {
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		ctx = context.WithValue(ctx, RoleKey, role)
		return r.WithContext(ctx)
	}

	t.Run("admin passes", func(t *testing.T) {
		r := withRole(httptest.NewRequest(http.MethodDelete, "/users/3", nil), 1, models.RoleAdmin)
		w := httptest.NewRecorder()

		AdminMiddleware(next)(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("regular user is refused", func(t *testing.T) {
		r := withRole(httptest.NewRequest(http.MethodDelete, "/users/3", nil), 7, models.RoleUser)
		w := httptest.NewRecorder()

		AdminMiddleware(next)(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing role is refused", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodDelete, "/users/3", nil)
		w := httptest.NewRecorder()

		AdminMiddleware(next)(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
