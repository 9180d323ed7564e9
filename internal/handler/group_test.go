package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/model"
)

func TestGroupHandlers(t *testing.T) {
	s := newTestServer(t)
	bob := s.createUser(t, "bob")

	w := do(s.groupHandler.Create, s.admin, jsonRequest(t, http.MethodPost, "/api/groups", map[string]any{
		"name":        "Finance",
		"description": "Budget owners",
		"permissions": []string{"Read", "Write"},
	}))
	require.Equal(t, http.StatusCreated, w.Code)
	group := decodeBody[model.Group](t, w)
	assert.ElementsMatch(t, []model.Permission{model.PermissionRead, model.PermissionWrite}, group.Permissions)

	t.Run("duplicate name", func(t *testing.T) {
		w := do(s.groupHandler.Create, s.admin, jsonRequest(t, http.MethodPost, "/api/groups", map[string]any{"name": "Finance"}))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown permission", func(t *testing.T) {
		w := do(s.groupHandler.Create, s.admin, jsonRequest(t, http.MethodPost, "/api/groups", map[string]any{
			"name":        "Ops",
			"permissions": []string{"Execute"},
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		w := do(s.groupHandler.Create, s.admin, jsonRequest(t, http.MethodPost, "/api/groups", map[string]any{
			"name":  "Ops",
			"owner": "bob",
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("members", func(t *testing.T) {
		r := jsonRequest(t, http.MethodPost, "/api/groups/"+group.ID+"/members", map[string]string{"username": "bob"})
		r.SetPathValue("id", group.ID)
		w := do(s.groupHandler.AddMember, s.admin, r)
		require.Equal(t, http.StatusNoContent, w.Code)

		r = httptest.NewRequest(http.MethodGet, "/api/groups/"+group.ID+"/members", nil)
		r.SetPathValue("id", group.ID)
		w = do(s.groupHandler.Members, bob, r)
		require.Equal(t, http.StatusOK, w.Code)
		members := decodeBody[struct {
			Members []model.User `json:"members"`
		}](t, w)
		require.Len(t, members.Members, 1)
		assert.Equal(t, "bob", members.Members[0].Username)

		r = httptest.NewRequest(http.MethodDelete, "/api/groups/"+group.ID+"/members/bob", nil)
		r.SetPathValue("id", group.ID)
		r.SetPathValue("username", "bob")
		w = do(s.groupHandler.RemoveMember, s.admin, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("replace permissions", func(t *testing.T) {
		r := jsonRequest(t, http.MethodPut, "/api/groups/"+group.ID+"/permissions", map[string]any{
			"permissions": []string{"Full Control"},
		})
		r.SetPathValue("id", group.ID)
		w := do(s.groupHandler.SetPermissions, s.admin, r)
		require.Equal(t, http.StatusOK, w.Code)

		r = httptest.NewRequest(http.MethodGet, "/api/groups/"+group.ID+"/permissions", nil)
		r.SetPathValue("id", group.ID)
		w = do(s.groupHandler.Permissions, s.admin, r)
		require.Equal(t, http.StatusOK, w.Code)
		perms := decodeBody[map[string][]model.Permission](t, w)
		assert.Equal(t, []model.Permission{model.PermissionFullControl}, perms["permissions"])
	})

	t.Run("non admin cannot change groups", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodDelete, "/api/groups/"+group.ID, nil)
		r.SetPathValue("id", group.ID)
		w := do(s.groupHandler.Delete, bob, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodDelete, "/api/groups/"+group.ID, nil)
		r.SetPathValue("id", group.ID)
		w := do(s.groupHandler.Delete, s.admin, r)
		require.Equal(t, http.StatusNoContent, w.Code)

		r = httptest.NewRequest(http.MethodGet, "/api/groups/"+group.ID, nil)
		r.SetPathValue("id", group.ID)
		w = do(s.groupHandler.Get, s.admin, r)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
