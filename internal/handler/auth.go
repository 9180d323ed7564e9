package handler

import (
	"net/http"
	"time"

	"github.com/templui/sharebox/internal/ctxkeys"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/service"
)

type authHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *authHandler {
	return &authHandler{authService: authService}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type otpRequest struct {
	Challenge string `json:"challenge" validate:"required"`
	Code      string `json:"code" validate:"required,len=6,numeric"`
}

type sessionResponse struct {
	User        *model.User `json:"user,omitempty"`
	Token       string      `json:"token,omitempty"`
	ExpiresAt   time.Time   `json:"expires_at,omitzero"`
	OTPRequired bool        `json:"otp_required"`
	Challenge   string      `json:"challenge,omitempty"`
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password, ctxkeys.Request(r.Context()).IP)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.respondSession(w, result)
}

// VerifyOTP completes a two-factor login started by Login.
func (h *authHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	result, err := h.authService.VerifyOTP(r.Context(), req.Challenge, req.Code, ctxkeys.Request(r.Context()).IP)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.respondSession(w, result)
}

func (h *authHandler) respondSession(w http.ResponseWriter, result *service.LoginResult) {
	if result.OTPRequired {
		writeJSON(w, http.StatusOK, sessionResponse{
			OTPRequired: true,
			Challenge:   result.Challenge,
		})
		return
	}

	h.authService.SetJWTCookie(w, result.Token, result.ExpiresAt)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      result.User,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if user := currentUser(r); user != nil {
		h.authService.Logout(r.Context(), user)
	}
	h.authService.ClearJWTCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
