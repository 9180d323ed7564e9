package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/config"
	"github.com/templui/sharebox/internal/db"
	"github.com/templui/sharebox/internal/kvstore"
	"github.com/templui/sharebox/internal/metrics"
	"github.com/templui/sharebox/internal/middleware"
	"github.com/templui/sharebox/internal/repository"
	"github.com/templui/sharebox/internal/service"
	"github.com/templui/sharebox/internal/storage"
)

type App struct {
	Cfg             *config.Config
	DB              *sqlx.DB
	KV              kvstore.Store
	RateLimiter     *middleware.RateLimiter
	AuthService     *service.AuthService
	UserService     *service.UserService
	GroupService    *service.GroupService
	EmailService    *service.EmailService
	FileService     *service.FileService
	UploadService   *service.UploadService
	ActivityService *service.ActivityService
	AccessService   *service.AccessService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	metrics.Init()

	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	root, err := filepath.Abs(cfg.SharedFolder)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("invalid shared folder %q: %w", cfg.SharedFolder, err)
	}
	staging, err := filepath.Abs(cfg.UploadStagingPath)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("invalid upload staging path %q: %w", cfg.UploadStagingPath, err)
	}

	// One-time codes and failed login counters
	kv, err := kvstore.NewMemory()
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	// Replica (nil when no bucket is configured)
	replica, err := storage.New(ctx, cfg)
	if err != nil {
		_ = kv.Close()
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize replica: %w", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	groupRepository := repository.NewGroupRepository(database)
	fileRepository := repository.NewFileRepository(database)
	activityRepository := repository.NewActivityRepository(database)

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	activityService := service.NewActivityService(activityRepository)
	accessService := service.NewAccessService(fileRepository, root)
	fileService := service.NewFileService(
		database,
		fileRepository,
		groupRepository,
		userRepository,
		accessService,
		activityService,
		replica,
		root,
		cfg.DefaultGroups,
	)
	uploadService := service.NewUploadService(
		fileService,
		staging,
		cfg.UploadMaxChunkBytes,
		cfg.UploadMaxChunks,
		cfg.UploadStagingTTL,
	)
	groupService := service.NewGroupService(database, groupRepository, userRepository, activityService)
	userService := service.NewUserService(database, userRepository, groupRepository, fileRepository, activityService, emailService, kv)
	authService := service.NewAuthService(
		userRepository,
		activityService,
		emailService,
		kv,
		cfg.JWTSecret,
		cfg.JWTExpiry,
		cfg.OTPExpiry,
		cfg.OTPMaxAttempts,
		cfg.LoginAttemptWindow,
		cfg.CookieSecure,
	)

	// Default groups, first administrator and the root record
	bootstrap := service.NewBootstrapService(database, userRepository, groupRepository, fileService)
	admin, err := bootstrap.Run(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		_ = kv.Close()
		_ = database.Close()
		return nil, fmt.Errorf("failed to bootstrap: %w", err)
	}
	slog.Info("shared folder ready", "root", root, "admin", admin.Username)

	return &App{
		Cfg:             cfg,
		DB:              database,
		KV:              kv,
		RateLimiter:     middleware.NewRateLimiter(cfg.RateLimitAuth, cfg.RateLimitBurst),
		AuthService:     authService,
		UserService:     userService,
		GroupService:    groupService,
		EmailService:    emailService,
		FileService:     fileService,
		UploadService:   uploadService,
		ActivityService: activityService,
		AccessService:   accessService,
	}, nil
}

// Start runs background jobs until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	a.UploadService.Start(ctx)
}

func (a *App) Close() error {
	if a.KV != nil {
		err := a.KV.Close()
		if err != nil {
			slog.Error("failed to close key-value store", "error", err)
		}
	}
	return db.Close(a.DB)
}
