package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/service"
)

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	w := do(s.authHandler.Login, nil, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "admin",
		"password": testPassword,
	}))
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, service.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, false, body["otp_required"])
	assert.Equal(t, cookies[0].Value, body["token"])

	t.Run("wrong password", func(t *testing.T) {
		w := do(s.authHandler.Login, nil, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
			"username": "admin",
			"password": "wrong-password-1",
		}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("missing fields", func(t *testing.T) {
		w := do(s.authHandler.Login, nil, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
			"username": "admin",
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed code", func(t *testing.T) {
		w := do(s.authHandler.VerifyOTP, nil, jsonRequest(t, http.MethodPost, "/api/auth/otp", map[string]string{
			"challenge": "abc",
			"code":      "12ab",
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown challenge", func(t *testing.T) {
		w := do(s.authHandler.VerifyOTP, nil, jsonRequest(t, http.MethodPost, "/api/auth/otp", map[string]string{
			"challenge": "abc",
			"code":      "123456",
		}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("logout clears cookie", func(t *testing.T) {
		w := do(s.authHandler.Logout, s.admin, jsonRequest(t, http.MethodPost, "/api/auth/logout", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Empty(t, cookies[0].Value)
	})
}
