package handler

import (
	"net/http"

	"github.com/templui/sharebox/internal/service"
)

type groupHandler struct {
	groupService *service.GroupService
}

func NewGroupHandler(groupService *service.GroupService) *groupHandler {
	return &groupHandler{groupService: groupService}
}

func (h *groupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groupService.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *groupHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, err := h.groupService.ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

type groupRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Permissions []string `json:"permissions,omitempty"`
}

func (h *groupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	group, err := h.groupService.Create(r.Context(), currentUser(r), req.Name, req.Description, req.Permissions)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (h *groupHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	group, err := h.groupService.Update(r.Context(), currentUser(r), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *groupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.groupService.Delete(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *groupHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	group, err := h.groupService.ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": group.Permissions})
}

type permissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required"`
}

func (h *groupHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	perms, err := h.groupService.SetPermissions(r.Context(), currentUser(r), r.PathValue("id"), req.Permissions)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *groupHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.groupService.Members(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

type memberRequest struct {
	Username string `json:"username" validate:"required"`
}

func (h *groupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.groupService.AddMember(r.Context(), currentUser(r), r.PathValue("id"), req.Username)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *groupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.groupService.RemoveMember(r.Context(), currentUser(r), r.PathValue("id"), r.PathValue("username"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
