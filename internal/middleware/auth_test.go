package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/ctxkeys"
	"github.com/templui/sharebox/internal/db/dbtest"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
	"github.com/templui/sharebox/internal/service"
)

func newAuthService(t *testing.T) (*service.AuthService, repository.UserRepository) {
	t.Helper()

	database := dbtest.Open(t)
	users := repository.NewUserRepository(database)
	activity := service.NewActivityService(repository.NewActivityRepository(database))
	email := service.NewEmailService("", "noreply@example.com", "Sharebox", true)

	auth := service.NewAuthService(users, activity, email, nil,
		"middleware-secret-0123456789", time.Hour, time.Minute, 3, time.Hour, false)
	return auth, users
}

func TestAuthMiddleware(t *testing.T) {
	auth, users := newAuthService(t)

	user := &model.User{
		ID:                    "u-1",
		Username:              "alice",
		PasswordHash:          "x",
		MaxLoginAttempts:      model.DefaultMaxLoginAttempts,
		SessionTimeoutMinutes: model.DefaultSessionTimeoutMinutes,
	}
	require.NoError(t, users.Create(context.Background(), user))

	token, _, err := auth.GenerateJWT(user)
	require.NoError(t, err)

	var seen *model.User
	h := AuthMiddleware(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxkeys.User(r.Context())
	}))

	t.Run("bearer", func(t *testing.T) {
		seen = nil
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		h.ServeHTTP(httptest.NewRecorder(), r)

		require.NotNil(t, seen)
		assert.Equal(t, "alice", seen.Username)
	})

	t.Run("cookie", func(t *testing.T) {
		seen = nil
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: service.CookieName, Value: token})
		h.ServeHTTP(httptest.NewRecorder(), r)

		require.NotNil(t, seen)
	})

	t.Run("invalid cookie is cleared", func(t *testing.T) {
		seen = nil
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: service.CookieName, Value: "garbage"})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Nil(t, seen)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, service.CookieName, cookies[0].Name)
		assert.Empty(t, cookies[0].Value)
	})

	t.Run("blocked user", func(t *testing.T) {
		require.NoError(t, users.SetBlocked(context.Background(), user.ID, true))
		t.Cleanup(func() { _ = users.SetBlocked(context.Background(), user.ID, false) })

		seen = nil
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		h.ServeHTTP(httptest.NewRecorder(), r)

		assert.Nil(t, seen)
	})
}

func TestRequireAuthAndAdmin(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}

	serve := func(h http.HandlerFunc, user *model.User) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if user != nil {
			r = r.WithContext(ctxkeys.WithUser(r.Context(), user))
		}
		w := httptest.NewRecorder()
		h(w, r)
		return w.Code
	}

	member := &model.User{ID: "u-1", Username: "bob"}
	admin := &model.User{ID: "u-2", Username: "root", IsAdmin: true}

	assert.Equal(t, http.StatusUnauthorized, serve(RequireAuth(ok), nil))
	assert.Equal(t, http.StatusNoContent, serve(RequireAuth(ok), member))

	assert.Equal(t, http.StatusUnauthorized, serve(RequireAdmin(ok), nil))
	assert.Equal(t, http.StatusForbidden, serve(RequireAdmin(ok), member))
	assert.Equal(t, http.StatusNoContent, serve(RequireAdmin(ok), admin))
}
