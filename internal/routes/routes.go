package routes

import (
	"net/http"

	"github.com/templui/sharebox/internal/app"
	"github.com/templui/sharebox/internal/handler"
	"github.com/templui/sharebox/internal/metrics"
	"github.com/templui/sharebox/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	auth := handler.NewAuthHandler(app.AuthService)
	account := handler.NewAccountHandler(app.UserService)
	files := handler.NewFileHandler(app.FileService, app.UploadService, app.Cfg.UploadMaxChunkBytes)
	groups := handler.NewGroupHandler(app.GroupService)
	users := handler.NewUserHandler(app.UserService)
	activity := handler.NewActivityHandler(app.ActivityService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.Handle("GET /metrics", metrics.Handler())

	// Auth (rate limited per client address)
	rateLimit := middleware.RateLimit(app.RateLimiter)

	mux.HandleFunc("POST /api/auth/login", rateLimit(auth.Login))
	mux.HandleFunc("POST /api/auth/otp", rateLimit(auth.VerifyOTP))
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)

	// ============================================================================
	// AUTHENTICATED ROUTES
	// ============================================================================

	// Account
	mux.HandleFunc("GET /api/auth/me", middleware.RequireAuth(account.Me))
	mux.HandleFunc("POST /api/account/password", middleware.RequireAuth(account.ChangePassword))

	// Files (access is decided per path by the services)
	mux.HandleFunc("GET /api/files", middleware.RequireAuth(files.List))
	mux.HandleFunc("GET /api/files/details", middleware.RequireAuth(files.Details))
	mux.HandleFunc("GET /api/files/download", middleware.RequireAuth(files.Download))
	mux.HandleFunc("GET /api/files/groups", middleware.RequireAuth(files.Groups))
	mux.HandleFunc("PUT /api/files/groups", middleware.RequireAuth(files.SetGroups))
	mux.HandleFunc("POST /api/files/folders", middleware.RequireAuth(files.CreateFolder))
	mux.HandleFunc("POST /api/files/move", middleware.RequireAuth(files.Move))
	mux.HandleFunc("POST /api/files/upload", middleware.RequireAuth(files.Upload))
	mux.HandleFunc("DELETE /api/files", middleware.RequireAuth(files.Delete))

	// Groups (read for everyone signed in, changes for administrators)
	mux.HandleFunc("GET /api/groups", middleware.RequireAuth(groups.List))
	mux.HandleFunc("GET /api/groups/{id}", middleware.RequireAuth(groups.Get))
	mux.HandleFunc("GET /api/groups/{id}/members", middleware.RequireAuth(groups.Members))
	mux.HandleFunc("GET /api/groups/{id}/permissions", middleware.RequireAuth(groups.Permissions))

	// ============================================================================
	// ADMIN ROUTES
	// ============================================================================

	mux.HandleFunc("POST /api/groups", middleware.RequireAdmin(groups.Create))
	mux.HandleFunc("PUT /api/groups/{id}", middleware.RequireAdmin(groups.Update))
	mux.HandleFunc("DELETE /api/groups/{id}", middleware.RequireAdmin(groups.Delete))
	mux.HandleFunc("PUT /api/groups/{id}/permissions", middleware.RequireAdmin(groups.SetPermissions))
	mux.HandleFunc("POST /api/groups/{id}/members", middleware.RequireAdmin(groups.AddMember))
	mux.HandleFunc("DELETE /api/groups/{id}/members/{username}", middleware.RequireAdmin(groups.RemoveMember))

	mux.HandleFunc("GET /api/users", middleware.RequireAdmin(users.List))
	mux.HandleFunc("POST /api/users", middleware.RequireAdmin(users.Create))
	mux.HandleFunc("GET /api/users/{id}", middleware.RequireAdmin(users.Get))
	mux.HandleFunc("PATCH /api/users/{id}", middleware.RequireAdmin(users.Update))
	mux.HandleFunc("PUT /api/users/{id}/password", middleware.RequireAdmin(users.ResetPassword))
	mux.HandleFunc("POST /api/users/{id}/block", middleware.RequireAdmin(users.Block))
	mux.HandleFunc("POST /api/users/{id}/unblock", middleware.RequireAdmin(users.Unblock))
	mux.HandleFunc("DELETE /api/users/{id}", middleware.RequireAdmin(users.Delete))
	mux.HandleFunc("GET /api/users/{id}/activity", middleware.RequireAdmin(activity.ListForUser))

	mux.HandleFunc("GET /api/activity", middleware.RequireAdmin(activity.List))
	mux.HandleFunc("DELETE /api/activity", middleware.RequireAdmin(activity.Purge))
	mux.HandleFunc("DELETE /api/activity/{id}", middleware.RequireAdmin(activity.Delete))

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.RequestInfo(app.Cfg.TrustProxy), // request id and client address, needed by everything below
		middleware.RequestLogging,
		middleware.AuthMiddleware(app.AuthService),
		middleware.CSRFProtection(app.Cfg.CookieSecure), // only cookie sessions are checked
		metrics.Instrument, // last, so it sees the pattern the mux matched
	)

	return handler
}
