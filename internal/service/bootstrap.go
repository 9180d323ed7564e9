package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/db"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
	"github.com/templui/sharebox/internal/validation"
)

// BootstrapService prepares a fresh installation: the default groups, the
// first administrator and the root folder record. Running it again is a no-op.
type BootstrapService struct {
	db              *sqlx.DB
	userRepository  repository.UserRepository
	groupRepository repository.GroupRepository
	files           *FileService
}

func NewBootstrapService(
	database *sqlx.DB,
	userRepository repository.UserRepository,
	groupRepository repository.GroupRepository,
	files *FileService,
) *BootstrapService {
	return &BootstrapService{
		db:              database,
		userRepository:  userRepository,
		groupRepository: groupRepository,
		files:           files,
	}
}

func (s *BootstrapService) Run(ctx context.Context, adminUsername, adminPassword string) (*model.User, error) {
	err := s.ensureGroups(ctx)
	if err != nil {
		return nil, err
	}

	admin, err := s.ensureAdmin(ctx, adminUsername, adminPassword)
	if err != nil {
		return nil, err
	}

	_, err = s.files.EnsureRoot(ctx, admin.ID)
	if err != nil {
		return nil, err
	}

	return admin, nil
}

func (s *BootstrapService) ensureGroups(ctx context.Context) error {
	names := []string{model.GroupAdministrators, model.GroupUsers, model.GroupGuests}
	for _, name := range s.files.defaultGroups {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for _, name := range names {
		_, err := s.groupRepository.ByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrGroupNotFound) {
			return fmt.Errorf("failed to look up group %q: %w", name, err)
		}

		group := &model.Group{
			ID:        uuid.NewString(),
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}
		var perms []model.Permission
		if p, ok := model.DefaultGroupPermissions[name]; ok {
			perms = []model.Permission{p}
		}

		err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			groups := s.groupRepository.WithTx(tx)
			err := groups.Create(ctx, group)
			if err != nil {
				return err
			}
			return groups.SetPermissions(ctx, group.ID, perms)
		})
		if err != nil {
			return fmt.Errorf("failed to create group %q: %w", name, err)
		}
		slog.Info("default group created", "group", name, "permissions", permissionList(perms))
	}

	return nil
}

func (s *BootstrapService) ensureAdmin(ctx context.Context, username, password string) (*model.User, error) {
	admin, err := s.userRepository.ByUsername(ctx, username)
	if err == nil {
		return admin, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up admin user: %w", err)
	}

	err = validation.ValidateUsername(username)
	if err != nil {
		return nil, invalidInput("admin username: %v", err)
	}

	if password == "" {
		password, err = generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate admin password: %w", err)
		}
		password = password[:20]
		slog.Warn("ADMIN_PASSWORD not set, generated one for the first administrator; change it after signing in",
			"username", username,
			"password", password,
		)
	} else {
		err = validation.ValidatePassword(password)
		if err != nil {
			return nil, invalidInput("admin password: %v", err)
		}
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	admin = &model.User{
		ID:                    uuid.NewString(),
		Username:              username,
		PasswordHash:          hash,
		IsAdmin:               true,
		MaxLoginAttempts:      model.DefaultMaxLoginAttempts,
		SessionTimeoutMinutes: model.DefaultSessionTimeoutMinutes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := s.userRepository.WithTx(tx).Create(ctx, admin)
		if err != nil {
			return err
		}

		groups := s.groupRepository.WithTx(tx)
		for _, name := range []string{model.GroupAdministrators, model.GroupUsers} {
			group, err := groups.ByName(ctx, name)
			if err != nil {
				return err
			}
			err = groups.AddMember(ctx, group.ID, admin.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("admin user created", "username", username)
	return admin, nil
}
