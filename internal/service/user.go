package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/db"
	"github.com/templui/sharebox/internal/kvstore"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
	"github.com/templui/sharebox/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCurrentPassword = errors.New("current password is incorrect")

type CreateUserInput struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
	Groups   []string
}

// UpdateUserInput changes only the fields that are set.
type UpdateUserInput struct {
	Email                 *string
	IsAdmin               *bool
	MaxLoginAttempts      *int
	SessionTimeoutMinutes *int
	TwoFactorEnabled      *bool
	IPRestriction         *bool
	AllowedIPs            *string
}

type UserService struct {
	db              *sqlx.DB
	userRepository  repository.UserRepository
	groupRepository repository.GroupRepository
	fileRepository  repository.FileRepository
	activity        ActivityRecorder
	emailService    *EmailService
	kv              kvstore.Store
}

func NewUserService(
	database *sqlx.DB,
	userRepository repository.UserRepository,
	groupRepository repository.GroupRepository,
	fileRepository repository.FileRepository,
	activity ActivityRecorder,
	emailService *EmailService,
	kv kvstore.Store,
) *UserService {
	return &UserService{
		db:              database,
		userRepository:  userRepository,
		groupRepository: groupRepository,
		fileRepository:  fileRepository,
		activity:        activity,
		emailService:    emailService,
		kv:              kv,
	}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func comparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func loginAttemptsKey(userID string) string {
	return "login_attempts:" + userID
}

func requireAdmin(actor *model.User) error {
	if actor == nil || !actor.IsAdmin {
		return ErrAdminRequired
	}
	return nil
}

func (s *UserService) withGroups(ctx context.Context, user *model.User) (*model.User, error) {
	groups, err := s.groupRepository.ForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}

	user.Groups = make([]string, 0, len(groups))
	for _, g := range groups {
		user.Groups = append(user.Groups, g.Name)
	}
	return user, nil
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withGroups(ctx, user)
}

func (s *UserService) List(ctx context.Context, actor *model.User) ([]*model.User, error) {
	err := requireAdmin(actor)
	if err != nil {
		return nil, err
	}

	users, err := s.userRepository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	for _, u := range users {
		_, err = s.withGroups(ctx, u)
		if err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *UserService) Create(ctx context.Context, actor *model.User, input CreateUserInput) (*model.User, error) {
	err := requireAdmin(actor)
	if err != nil {
		return nil, err
	}

	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	err = validation.ValidateUsername(input.Username)
	if err != nil {
		return nil, invalidInput("%v", err)
	}
	err = validation.ValidateEmail(input.Email)
	if err != nil {
		return nil, invalidInput("%v", err)
	}
	err = validation.ValidatePassword(input.Password)
	if err != nil {
		return nil, invalidInput("%v", err)
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:                    uuid.NewString(),
		Username:              input.Username,
		Email:                 input.Email,
		PasswordHash:          hash,
		IsAdmin:               input.IsAdmin,
		MaxLoginAttempts:      model.DefaultMaxLoginAttempts,
		SessionTimeoutMinutes: model.DefaultSessionTimeoutMinutes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := s.userRepository.WithTx(tx).Create(ctx, user)
		if err != nil {
			return err
		}

		groups := s.groupRepository.WithTx(tx)
		for _, name := range input.Groups {
			group, err := groups.ByName(ctx, name)
			if errors.Is(err, repository.ErrGroupNotFound) {
				return fmt.Errorf("%w: %s", ErrGroupNotFound, name)
			}
			if err != nil {
				return err
			}
			err = groups.AddMember(ctx, group.ID, user.ID)
			if err != nil && !errors.Is(err, repository.ErrAlreadyMember) {
				return err
			}
		}

		entry := About(NewActivity(actor, model.ActivityCategoryUser, "user_created", "Created user "+user.Username), user.ID)
		return s.activity.Record(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user created", "username", user.Username, "by", actor.Username)
	return s.withGroups(ctx, user)
}

func (s *UserService) Update(ctx context.Context, actor *model.User, id string, input UpdateUserInput) (*model.User, error) {
	err := requireAdmin(actor)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var changes []string
	if input.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*input.Email))
		err = validation.ValidateEmail(email)
		if err != nil {
			return nil, invalidInput("%v", err)
		}
		user.Email = email
		changes = append(changes, "email")
	}
	if input.IsAdmin != nil {
		if actor.ID == user.ID && !*input.IsAdmin {
			return nil, invalidInput("you cannot remove your own administrator role")
		}
		user.IsAdmin = *input.IsAdmin
		changes = append(changes, "admin")
	}
	if input.MaxLoginAttempts != nil {
		if *input.MaxLoginAttempts < 1 || *input.MaxLoginAttempts > 100 {
			return nil, invalidInput("max login attempts must be between 1 and 100")
		}
		user.MaxLoginAttempts = *input.MaxLoginAttempts
		changes = append(changes, "max login attempts")
	}
	if input.SessionTimeoutMinutes != nil {
		if *input.SessionTimeoutMinutes < 1 || *input.SessionTimeoutMinutes > 7*24*60 {
			return nil, invalidInput("session timeout must be between 1 minute and 7 days")
		}
		user.SessionTimeoutMinutes = *input.SessionTimeoutMinutes
		changes = append(changes, "session timeout")
	}
	if input.TwoFactorEnabled != nil {
		if *input.TwoFactorEnabled && user.Email == "" {
			return nil, invalidInput("two-factor authentication requires an email address")
		}
		user.TwoFactorEnabled = *input.TwoFactorEnabled
		changes = append(changes, "two-factor")
	}
	if input.AllowedIPs != nil {
		list, err := normalizeIPList(*input.AllowedIPs)
		if err != nil {
			return nil, err
		}
		user.AllowedIPs = list
		changes = append(changes, "allowed IPs")
	}
	if input.IPRestriction != nil {
		user.IPRestriction = *input.IPRestriction
		changes = append(changes, "IP restriction")
	}
	if user.IPRestriction && len(user.AllowedIPList()) == 0 {
		return nil, invalidInput("IP restriction needs at least one allowed address")
	}

	if len(changes) == 0 {
		return s.withGroups(ctx, user)
	}
	user.UpdatedAt = time.Now().UTC()

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := s.userRepository.WithTx(tx).Update(ctx, user)
		if err != nil {
			return err
		}

		details := fmt.Sprintf("Updated %s for %s", strings.Join(changes, ", "), user.Username)
		return s.activity.Record(ctx, tx, About(NewActivity(actor, model.ActivityCategoryUser, "user_updated", details), user.ID))
	})
	if err != nil {
		return nil, err
	}

	return s.withGroups(ctx, user)
}

// normalizeIPList validates a comma separated list of addresses.
func normalizeIPList(raw string) (string, error) {
	var ips []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return "", invalidInput("invalid IP address %q", part)
		}
		ips = append(ips, addr.String())
	}
	return strings.Join(ips, ","), nil
}

// ResetPassword sets a new password for another user.
func (s *UserService) ResetPassword(ctx context.Context, actor *model.User, id, newPassword string) error {
	err := requireAdmin(actor)
	if err != nil {
		return err
	}

	user, err := s.userRepository.ByID(ctx, id)
	if err != nil {
		return err
	}

	return s.setPassword(ctx, actor, user, newPassword, "password_reset", "Reset password for "+user.Username)
}

// ChangePassword lets a user replace their own password.
func (s *UserService) ChangePassword(ctx context.Context, actor *model.User, currentPassword, newPassword string) error {
	user, err := s.userRepository.ByID(ctx, actor.ID)
	if err != nil {
		return err
	}

	err = comparePassword(currentPassword, user.PasswordHash)
	if err != nil {
		return ErrInvalidCurrentPassword
	}

	err = s.setPassword(ctx, actor, user, newPassword, "password_changed", "Changed own password")
	if err != nil {
		return err
	}

	err = s.emailService.SendPasswordChanged(ctx, user.Email, user.Username)
	if err != nil {
		slog.Warn("failed to send password changed email", "error", err, "user_id", user.ID)
	}
	return nil
}

func (s *UserService) setPassword(ctx context.Context, actor, user *model.User, password, activityType, details string) error {
	err := validation.ValidatePassword(password)
	if err != nil {
		return invalidInput("%v", err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := s.userRepository.WithTx(tx).UpdatePassword(ctx, user.ID, hash)
		if err != nil {
			return err
		}
		return s.activity.Record(ctx, tx, About(NewActivity(actor, model.ActivityCategoryUser, activityType, details), user.ID))
	})
}

// SetBlocked locks or unlocks an account. Unlocking clears the failed login counter.
func (s *UserService) SetBlocked(ctx context.Context, actor *model.User, id string, blocked bool) error {
	err := requireAdmin(actor)
	if err != nil {
		return err
	}
	if blocked && actor.ID == id {
		return invalidInput("you cannot block your own account")
	}

	user, err := s.userRepository.ByID(ctx, id)
	if err != nil {
		return err
	}

	activityType, details := "user_unblocked", "Unblocked "+user.Username
	if blocked {
		activityType, details = "user_blocked", "Blocked "+user.Username
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := s.userRepository.WithTx(tx).SetBlocked(ctx, user.ID, blocked)
		if err != nil {
			return err
		}
		return s.activity.Record(ctx, tx, About(NewActivity(actor, model.ActivityCategoryUser, activityType, details), user.ID))
	})
	if err != nil {
		return err
	}

	if !blocked {
		err = s.kv.Delete(loginAttemptsKey(user.ID))
		if err != nil {
			slog.Warn("failed to reset login attempts", "error", err, "user_id", user.ID)
		}
	}
	return nil
}

// Delete removes a user. Files they own are handed to the acting administrator.
func (s *UserService) Delete(ctx context.Context, actor *model.User, id string) error {
	err := requireAdmin(actor)
	if err != nil {
		return err
	}
	if actor.ID == id {
		return invalidInput("you cannot delete your own account")
	}

	user, err := s.userRepository.ByID(ctx, id)
	if err != nil {
		return err
	}

	var transferred int64
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		transferred, err = s.fileRepository.WithTx(tx).TransferOwnership(ctx, user.ID, actor.ID)
		if err != nil {
			return fmt.Errorf("failed to transfer file ownership: %w", err)
		}

		err = s.userRepository.WithTx(tx).Delete(ctx, user.ID)
		if err != nil {
			return err
		}

		details := fmt.Sprintf("Deleted user %s (%d files transferred to %s)", user.Username, transferred, actor.Username)
		return s.activity.Record(ctx, tx, NewActivity(actor, model.ActivityCategoryUser, "user_deleted", details))
	})
	if err != nil {
		return err
	}

	_ = s.kv.Delete(loginAttemptsKey(user.ID))
	slog.Info("user deleted", "username", user.Username, "files_transferred", transferred, "by", actor.Username)
	return nil
}
