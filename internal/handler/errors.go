package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/service"
)

// badRequestError carries a message that is safe to show to the client.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func errBadRequest(msg string) error {
	return &badRequestError{msg: msg}
}

var statusByError = []struct {
	err  error
	code int
}{
	{service.ErrInvalidInput, http.StatusBadRequest},
	{service.ErrInvalidPath, http.StatusBadRequest},
	{service.ErrInvalidChunk, http.StatusBadRequest},
	{service.ErrInvalidPermission, http.StatusBadRequest},
	{model.ErrUnknownPermission, http.StatusBadRequest},
	{service.ErrNotADirectory, http.StatusBadRequest},
	{service.ErrInvalidCurrentPassword, http.StatusBadRequest},

	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrInvalidOTP, http.StatusUnauthorized},
	{service.ErrOTPExpired, http.StatusUnauthorized},
	{service.ErrInvalidToken, http.StatusUnauthorized},

	{service.ErrPermissionDenied, http.StatusForbidden},
	{service.ErrAdminRequired, http.StatusForbidden},
	{service.ErrAccountBlocked, http.StatusForbidden},
	{service.ErrIPNotAllowed, http.StatusForbidden},

	{service.ErrFileNotFound, http.StatusNotFound},
	{service.ErrGroupNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrActivityNotFound, http.StatusNotFound},
	{service.ErrNotMember, http.StatusNotFound},
	{service.ErrParentNotRegistered, http.StatusNotFound},

	{service.ErrFileConflict, http.StatusConflict},
	{service.ErrFileExists, http.StatusConflict},
	{service.ErrDirectoryNotEmpty, http.StatusConflict},
	{service.ErrDuplicateGroupName, http.StatusConflict},
	{service.ErrDuplicateUsername, http.StatusConflict},
	{service.ErrAlreadyMember, http.StatusConflict},
}

// statusFor maps service errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	var badRequest *badRequestError
	if errors.As(err, &badRequest) {
		return http.StatusBadRequest
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}

	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return http.StatusInternalServerError
}

// handleError writes the error response. Server errors are logged and their
// details are not exposed.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code < http.StatusInternalServerError {
		writeError(w, r, code, err.Error())
		return
	}

	var fsErr *service.FilesystemError
	if errors.As(err, &fsErr) {
		slog.Error("filesystem operation failed",
			"error", err,
			"op", fsErr.Op,
			"path", fsErr.Path,
			"method", r.Method,
			"endpoint", r.URL.Path,
		)
	} else {
		slog.Error("request failed",
			"error", err,
			"method", r.Method,
			"endpoint", r.URL.Path,
		)
	}
	writeError(w, r, code, "internal server error")
}
