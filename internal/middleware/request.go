package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/templui/sharebox/internal/ctxkeys"
)

const requestIDHeader = "X-Request-ID"

// RequestInfo stores the request id, client address and route in the context
// so that services can attach them to activity records. Proxy headers are only
// trusted when trustProxy is set.
func RequestInfo(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			info := ctxkeys.RequestInfo{
				ID:        id,
				IP:        clientIP(r, trustProxy),
				Method:    r.Method,
				Endpoint:  r.URL.Path,
				UserAgent: r.UserAgent(),
			}
			next.ServeHTTP(w, r.WithContext(ctxkeys.WithRequest(r.Context(), info)))
		})
	}
}

// clientIP extracts the client address, preferring proxy headers when trusted
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		// X-Forwarded-For: first entry is the original client
		xff := r.Header.Get("X-Forwarded-For")
		if xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}

		xri := r.Header.Get("X-Real-IP")
		if xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestIP(r *http.Request) string {
	ip := ctxkeys.Request(r.Context()).IP
	if ip == "" {
		return clientIP(r, false)
	}
	return ip
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := ctxkeys.RequestID(r.Context()); rid != "" {
		payload["request_id"] = rid
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
