package handler

import (
	"net/http"

	"github.com/templui/sharebox/internal/service"
)

type userHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *userHandler {
	return &userHandler{userService: userService}
}

func (h *userHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context(), currentUser(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *userHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type createUserRequest struct {
	Username string   `json:"username" validate:"required"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Password string   `json:"password" validate:"required"`
	IsAdmin  bool     `json:"is_admin"`
	Groups   []string `json:"groups"`
}

func (h *userHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	user, err := h.userService.Create(r.Context(), currentUser(r), service.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
		Groups:   req.Groups,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// updateUserRequest leaves a field unchanged when it is omitted.
type updateUserRequest struct {
	Email                 *string `json:"email" validate:"omitempty,email"`
	IsAdmin               *bool   `json:"is_admin"`
	MaxLoginAttempts      *int    `json:"max_login_attempts"`
	SessionTimeoutMinutes *int    `json:"session_timeout_minutes"`
	TwoFactorEnabled      *bool   `json:"two_factor_enabled"`
	IPRestriction         *bool   `json:"ip_restriction"`
	AllowedIPs            *string `json:"allowed_ips"`
}

func (h *userHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	user, err := h.userService.Update(r.Context(), currentUser(r), r.PathValue("id"), service.UpdateUserInput{
		Email:                 req.Email,
		IsAdmin:               req.IsAdmin,
		MaxLoginAttempts:      req.MaxLoginAttempts,
		SessionTimeoutMinutes: req.SessionTimeoutMinutes,
		TwoFactorEnabled:      req.TwoFactorEnabled,
		IPRestriction:         req.IPRestriction,
		AllowedIPs:            req.AllowedIPs,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

func (h *userHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.userService.ResetPassword(r.Context(), currentUser(r), r.PathValue("id"), req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *userHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *userHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *userHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	err := h.userService.SetBlocked(r.Context(), currentUser(r), r.PathValue("id"), blocked)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *userHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.userService.Delete(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
