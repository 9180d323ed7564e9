package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/model"
)

func TestUserHandlers(t *testing.T) {
	s := newTestServer(t)

	w := do(s.userHandler.Create, s.admin, jsonRequest(t, http.MethodPost, "/api/users", map[string]any{
		"username": "carol",
		"email":    "carol@example.com",
		"password": testPassword,
		"groups":   []string{model.GroupUsers},
	}))
	require.Equal(t, http.StatusCreated, w.Code)
	carol := decodeBody[model.User](t, w)
	assert.Equal(t, []string{model.GroupUsers}, carol.Groups)
	assert.NotContains(t, w.Body.String(), "password_hash")

	t.Run("invalid email", func(t *testing.T) {
		w := do(s.userHandler.Create, s.admin, jsonRequest(t, http.MethodPost, "/api/users", map[string]any{
			"username": "dave",
			"email":    "not-an-email",
			"password": testPassword,
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("security settings", func(t *testing.T) {
		r := jsonRequest(t, http.MethodPatch, "/api/users/"+carol.ID, map[string]any{
			"max_login_attempts":      3,
			"session_timeout_minutes": 15,
		})
		r.SetPathValue("id", carol.ID)
		w := do(s.userHandler.Update, s.admin, r)
		require.Equal(t, http.StatusOK, w.Code)

		updated := decodeBody[model.User](t, w)
		assert.Equal(t, 3, updated.MaxLoginAttempts)
		assert.Equal(t, 15, updated.SessionTimeoutMinutes)
		assert.Equal(t, "carol@example.com", updated.Email)
	})

	t.Run("block and unblock", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/users/"+carol.ID+"/block", nil)
		r.SetPathValue("id", carol.ID)
		require.Equal(t, http.StatusNoContent, do(s.userHandler.Block, s.admin, r).Code)

		got, err := s.users.ByID(r.Context(), carol.ID)
		require.NoError(t, err)
		assert.True(t, got.IsBlocked)

		r = httptest.NewRequest(http.MethodPost, "/api/users/"+carol.ID+"/unblock", nil)
		r.SetPathValue("id", carol.ID)
		require.Equal(t, http.StatusNoContent, do(s.userHandler.Unblock, s.admin, r).Code)
	})

	t.Run("admin cannot delete self", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodDelete, "/api/users/"+s.admin.ID, nil)
		r.SetPathValue("id", s.admin.ID)
		assert.Equal(t, http.StatusBadRequest, do(s.userHandler.Delete, s.admin, r).Code)
	})

	t.Run("list requires admin", func(t *testing.T) {
		w := do(s.userHandler.List, &carol, httptest.NewRequest(http.MethodGet, "/api/users", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = do(s.userHandler.List, s.admin, httptest.NewRequest(http.MethodGet, "/api/users", nil))
		require.Equal(t, http.StatusOK, w.Code)
		list := decodeBody[struct {
			Users []model.User `json:"users"`
		}](t, w)
		assert.Len(t, list.Users, 2)
	})

	t.Run("delete", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodDelete, "/api/users/"+carol.ID, nil)
		r.SetPathValue("id", carol.ID)
		require.Equal(t, http.StatusNoContent, do(s.userHandler.Delete, s.admin, r).Code)

		r = httptest.NewRequest(http.MethodGet, "/api/users/"+carol.ID, nil)
		r.SetPathValue("id", carol.ID)
		assert.Equal(t, http.StatusNotFound, do(s.userHandler.Get, s.admin, r).Code)
	})
}
