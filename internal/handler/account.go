package handler

import (
	"net/http"

	"github.com/templui/sharebox/internal/service"
)

// accountHandler serves the signed-in user's own account.
type accountHandler struct {
	userService *service.UserService
}

func NewAccountHandler(userService *service.UserService) *accountHandler {
	return &accountHandler{userService: userService}
}

func (h *accountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.ByID(r.Context(), currentUser(r).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

func (h *accountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.userService.ChangePassword(r.Context(), currentUser(r), req.CurrentPassword, req.NewPassword)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
