package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/templui/sharebox/internal/ctxkeys"
	"github.com/templui/sharebox/internal/model"
)

const maxJSONBody = 1 << 20

var validate = validator.New()

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := ctxkeys.RequestID(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// decodeJSON reads a single JSON object into dst and runs its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return errBadRequest("request body is empty")
	}
	if err != nil {
		return errBadRequest("invalid JSON: " + err.Error())
	}
	if dec.More() {
		return errBadRequest("request body must contain a single JSON object")
	}

	err = validate.Struct(dst)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			e := validationErrs[0]
			return errBadRequest(fmt.Sprintf("%s: failed on '%s'", strings.ToLower(e.Field()), e.Tag()))
		}
		return errBadRequest(err.Error())
	}
	return nil
}

// currentUser returns the authenticated user. Routes are wrapped in RequireAuth,
// so a nil user here is a routing mistake.
func currentUser(r *http.Request) *model.User {
	return ctxkeys.User(r.Context())
}
