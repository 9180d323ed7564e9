package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/model"
)

func seedUser(t *testing.T, database *sqlx.DB, username string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	user := &model.User{
		ID:                    uuid.NewString(),
		Username:              username,
		PasswordHash:          "hash",
		MaxLoginAttempts:      model.DefaultMaxLoginAttempts,
		SessionTimeoutMinutes: model.DefaultSessionTimeoutMinutes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	require.NoError(t, NewUserRepository(database).Create(context.Background(), user))
	return user
}

func seedGroup(t *testing.T, database *sqlx.DB, name string, perms ...model.Permission) *model.Group {
	t.Helper()
	ctx := context.Background()
	repo := NewGroupRepository(database)
	group := &model.Group{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, group))
	require.NoError(t, repo.SetPermissions(ctx, group.ID, perms))
	return group
}

func seedFile(t *testing.T, database *sqlx.DB, path, ownerID string, parentID *string) *model.FileRecord {
	t.Helper()
	file := &model.FileRecord{
		ID:        uuid.NewString(),
		Path:      path,
		OwnerID:   ownerID,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, NewFileRepository(database).Create(context.Background(), file))
	return file
}
