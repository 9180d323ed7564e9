package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/db"
	"github.com/templui/sharebox/internal/model"
)

var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrDuplicateGroupName = errors.New("group name already exists")
	ErrAlreadyMember      = errors.New("user is already a member of this group")
	ErrNotMember          = errors.New("user is not a member of this group")
)

type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	ByID(ctx context.Context, id string) (*model.Group, error)
	ByName(ctx context.Context, name string) (*model.Group, error)
	List(ctx context.Context) ([]*model.Group, error)
	Update(ctx context.Context, group *model.Group) error
	Delete(ctx context.Context, id string) error

	Permissions(ctx context.Context, groupID string) ([]model.Permission, error)
	AllPermissions(ctx context.Context) (map[string][]model.Permission, error)
	SetPermissions(ctx context.Context, groupID string, perms []model.Permission) error

	Members(ctx context.Context, groupID string) ([]*model.User, error)
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	ForUser(ctx context.Context, userID string) ([]*model.Group, error)

	WithTx(tx *sqlx.Tx) GroupRepository
}

type groupRepository struct {
	db sqlx.ExtContext
}

func NewGroupRepository(db *sqlx.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) WithTx(tx *sqlx.Tx) GroupRepository {
	return &groupRepository{db: tx}
}

func (r *groupRepository) Create(ctx context.Context, group *model.Group) error {
	query := `INSERT INTO groups (id, name, description, created_at) VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, group.ID, group.Name, group.Description, group.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateGroupName
		}
		return err
	}

	return nil
}

func (r *groupRepository) ByID(ctx context.Context, id string) (*model.Group, error) {
	group := &model.Group{}
	query := `SELECT id, name, description, created_at FROM groups WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db, group, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}

	return group, nil
}

func (r *groupRepository) ByName(ctx context.Context, name string) (*model.Group, error) {
	group := &model.Group{}
	query := `SELECT id, name, description, created_at FROM groups WHERE name = $1`

	err := sqlx.GetContext(ctx, r.db, group, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}

	return group, nil
}

// List returns every group with its member count, ordered by name.
func (r *groupRepository) List(ctx context.Context) ([]*model.Group, error) {
	var groups []*model.Group
	query := `SELECT g.id, g.name, g.description, g.created_at, COUNT(ug.user_id) AS member_count
		FROM groups g
		LEFT JOIN user_groups ug ON ug.group_id = g.id
		GROUP BY g.id, g.name, g.description, g.created_at
		ORDER BY g.name`

	err := sqlx.SelectContext(ctx, r.db, &groups, query)
	if err != nil {
		return nil, err
	}

	return groups, nil
}

func (r *groupRepository) Update(ctx context.Context, group *model.Group) error {
	query := `UPDATE groups SET name = $1, description = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, group.Name, group.Description, group.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateGroupName
		}
		return err
	}

	return requireAffected(result, ErrGroupNotFound)
}

// Delete removes the group together with its file associations, memberships
// and grants. Callers run it inside a transaction.
func (r *groupRepository) Delete(ctx context.Context, id string) error {
	for _, query := range []string{
		`DELETE FROM file_groups WHERE group_id = $1`,
		`DELETE FROM user_groups WHERE group_id = $1`,
		`DELETE FROM group_permissions WHERE group_id = $1`,
	} {
		_, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrGroupNotFound)
}

func (r *groupRepository) Permissions(ctx context.Context, groupID string) ([]model.Permission, error) {
	var perms []model.Permission
	query := `SELECT permission FROM group_permissions WHERE group_id = $1 ORDER BY permission`

	err := sqlx.SelectContext(ctx, r.db, &perms, query, groupID)
	if err != nil {
		return nil, err
	}

	return perms, nil
}

// AllPermissions returns grants keyed by group id.
func (r *groupRepository) AllPermissions(ctx context.Context) (map[string][]model.Permission, error) {
	var rows []struct {
		GroupID    string           `db:"group_id"`
		Permission model.Permission `db:"permission"`
	}
	query := `SELECT group_id, permission FROM group_permissions ORDER BY group_id, permission`

	err := sqlx.SelectContext(ctx, r.db, &rows, query)
	if err != nil {
		return nil, err
	}

	perms := make(map[string][]model.Permission)
	for _, row := range rows {
		perms[row.GroupID] = append(perms[row.GroupID], row.Permission)
	}
	return perms, nil
}

// SetPermissions replaces the group's grant set. Callers run it inside a transaction.
func (r *groupRepository) SetPermissions(ctx context.Context, groupID string, perms []model.Permission) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM group_permissions WHERE group_id = $1`, groupID)
	if err != nil {
		return err
	}

	for _, perm := range perms {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO group_permissions (group_id, permission) VALUES ($1, $2)`,
			groupID, perm,
		)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return ErrGroupNotFound
			}
			return err
		}
	}

	return nil
}

func (r *groupRepository) Members(ctx context.Context, groupID string) ([]*model.User, error) {
	var users []*model.User
	query := `SELECT u.id, u.username, u.email, u.password_hash, u.is_admin, u.is_blocked, u.max_login_attempts,
		u.session_timeout_minutes, u.two_factor_enabled, u.ip_restriction, u.allowed_ips,
		u.created_at, u.updated_at, u.last_activity_at
		FROM users u
		JOIN user_groups ug ON ug.user_id = u.id
		WHERE ug.group_id = $1
		ORDER BY u.username`

	err := sqlx.SelectContext(ctx, r.db, &users, query, groupID)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *groupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	query := `INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, userID, groupID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyMember
		}
		return err
	}

	return nil
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	query := `DELETE FROM user_groups WHERE user_id = $1 AND group_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, groupID)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrNotMember)
}

func (r *groupRepository) ForUser(ctx context.Context, userID string) ([]*model.Group, error) {
	var groups []*model.Group
	query := `SELECT g.id, g.name, g.description, g.created_at
		FROM groups g
		JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY g.name`

	err := sqlx.SelectContext(ctx, r.db, &groups, query, userID)
	if err != nil {
		return nil, err
	}

	return groups, nil
}
