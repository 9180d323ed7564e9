package ctxkeys

import (
	"context"

	"github.com/templui/sharebox/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	UserKey        contextKey = "user"
	RequestInfoKey contextKey = "request_info"
	CSRFTokenKey   contextKey = "csrf_token"
)

// RequestInfo carries the request metadata that activity records capture.
type RequestInfo struct {
	ID        string
	IP        string
	Method    string
	Endpoint  string
	UserAgent string
}

func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserKey).(*model.User)
	return user
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// Request returns the request metadata, or a zero value outside of HTTP handling.
func Request(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(RequestInfoKey).(RequestInfo)
	return info
}

func WithRequest(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, RequestInfoKey, info)
}

func RequestID(ctx context.Context) string {
	return Request(ctx).ID
}

func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(CSRFTokenKey).(string)
	return token
}

func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, CSRFTokenKey, token)
}
