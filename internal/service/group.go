package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/db"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
	"github.com/templui/sharebox/internal/validation"
)

type GroupService struct {
	db              *sqlx.DB
	groupRepository repository.GroupRepository
	userRepository  repository.UserRepository
	activity        ActivityRecorder
}

func NewGroupService(
	database *sqlx.DB,
	groupRepository repository.GroupRepository,
	userRepository repository.UserRepository,
	activity ActivityRecorder,
) *GroupService {
	return &GroupService{
		db:              database,
		groupRepository: groupRepository,
		userRepository:  userRepository,
		activity:        activity,
	}
}

func (s *GroupService) List(ctx context.Context) ([]*model.Group, error) {
	groups, err := s.groupRepository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	perms, err := s.groupRepository.AllPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read group permissions: %w", err)
	}
	for _, g := range groups {
		g.Permissions = perms[g.ID]
		if g.Permissions == nil {
			g.Permissions = []model.Permission{}
		}
	}
	return groups, nil
}

func (s *GroupService) ByID(ctx context.Context, id string) (*model.Group, error) {
	group, err := s.groupRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	group.Permissions, err = s.groupRepository.Permissions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read group permissions: %w", err)
	}
	return group, nil
}

func (s *GroupService) Create(ctx context.Context, actor *model.User, name, description string, permissions []string) (*model.Group, error) {
	err := requireAdmin(actor)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	err = validation.ValidateGroupName(name)
	if err != nil {
		return nil, invalidInput("%v", err)
	}

	perms, err := model.ParsePermissions(permissions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPermission, err)
	}

	group := &model.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
		Permissions: perms,
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		groups := s.groupRepository.WithTx(tx)

		err := groups.Create(ctx, group)
		if err != nil {
			return err
		}
		err = groups.SetPermissions(ctx, group.ID, perms)
		if err != nil {
			return err
		}

		details := fmt.Sprintf("Created group %s with permissions: %s", group.Name, permissionList(perms))
		return s.activity.Record(ctx, tx, NewActivity(actor, model.ActivityCategoryGroup, "group_created", details))
	})
	if err != nil {
		return nil, err
	}

	slog.Info("group created", "group", group.Name, "by", actor.Username)
	return group, nil
}

func (s *GroupService) Update(ctx context.Context, actor *model.User, id, name, description string) (*model.Group, error) {
	err := requireAdmin(actor)
	if err != nil {
		return nil, err
	}

	group, err := s.groupRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	err = validation.ValidateGroupName(name)
	if err != nil {
		return nil, invalidInput("%v", err)
	}

	oldName := group.Name
	group.Name = name
	group.Description = strings.TrimSpace(description)

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := s.groupRepository.WithTx(tx).Update(ctx, group)
		if err != nil {
			return err
		}

		details := "Updated group " + group.Name
		if oldName != group.Name {
			details = fmt.Sprintf("Renamed group %s to %s", oldName, group.Name)
		}
		return s.activity.Record(ctx, tx, NewActivity(actor, model.ActivityCategoryGroup, "group_updated", details))
	})
	if err != nil {
		return nil, err
	}

	return s.ByID(ctx, id)
}

// Delete removes a group. Its grants, memberships and file associations go with it.
func (s *GroupService) Delete(ctx context.Context, actor *model.User, id string) error {
	err := requireAdmin(actor)
	if err != nil {
		return err
	}

	group, err := s.groupRepository.ByID(ctx, id)
	if err != nil {
		return err
	}
	if group.Name == model.GroupAdministrators {
		return fmt.Errorf("%w: the %s group cannot be deleted", ErrPermissionDenied, model.GroupAdministrators)
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := s.groupRepository.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return err
		}
		return s.activity.Record(ctx, tx, NewActivity(actor, model.ActivityCategoryGroup, "group_deleted", "Deleted group "+group.Name))
	})
	if err != nil {
		return err
	}

	slog.Info("group deleted", "group", group.Name, "by", actor.Username)
	return nil
}

// SetPermissions replaces the group's grants with perms.
func (s *GroupService) SetPermissions(ctx context.Context, actor *model.User, id string, permissions []string) ([]model.Permission, error) {
	err := requireAdmin(actor)
	if err != nil {
		return nil, err
	}

	perms, err := model.ParsePermissions(permissions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPermission, err)
	}

	group, err := s.groupRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := s.groupRepository.WithTx(tx).SetPermissions(ctx, id, perms)
		if err != nil {
			return err
		}

		details := fmt.Sprintf("Set permissions for %s: %s", group.Name, permissionList(perms))
		return s.activity.Record(ctx, tx, NewActivity(actor, model.ActivityCategoryAccess, "group_permissions_updated", details))
	})
	if err != nil {
		return nil, err
	}

	return perms, nil
}

func (s *GroupService) Members(ctx context.Context, id string) ([]*model.User, error) {
	_, err := s.groupRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.groupRepository.Members(ctx, id)
}

func (s *GroupService) AddMember(ctx context.Context, actor *model.User, groupID, username string) error {
	err := requireAdmin(actor)
	if err != nil {
		return err
	}

	group, user, err := s.groupAndUser(ctx, groupID, username)
	if err != nil {
		return err
	}

	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := s.groupRepository.WithTx(tx).AddMember(ctx, group.ID, user.ID)
		if err != nil {
			return err
		}

		details := fmt.Sprintf("Added %s to %s", user.Username, group.Name)
		return s.activity.Record(ctx, tx, About(NewActivity(actor, model.ActivityCategoryGroup, "member_added", details), user.ID))
	})
}

func (s *GroupService) RemoveMember(ctx context.Context, actor *model.User, groupID, username string) error {
	err := requireAdmin(actor)
	if err != nil {
		return err
	}

	group, user, err := s.groupAndUser(ctx, groupID, username)
	if err != nil {
		return err
	}
	if group.Name == model.GroupAdministrators && user.ID == actor.ID {
		return invalidInput("you cannot remove yourself from %s", model.GroupAdministrators)
	}

	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := s.groupRepository.WithTx(tx).RemoveMember(ctx, group.ID, user.ID)
		if err != nil {
			return err
		}

		details := fmt.Sprintf("Removed %s from %s", user.Username, group.Name)
		return s.activity.Record(ctx, tx, About(NewActivity(actor, model.ActivityCategoryGroup, "member_removed", details), user.ID))
	})
}

func (s *GroupService) groupAndUser(ctx context.Context, groupID, username string) (*model.Group, *model.User, error) {
	group, err := s.groupRepository.ByID(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.userRepository.ByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, nil, err
	}

	return group, user, nil
}

func permissionList(perms []model.Permission) string {
	if len(perms) == 0 {
		return "none"
	}
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
