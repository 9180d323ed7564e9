package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/db/dbtest"
	"github.com/templui/sharebox/internal/model"
)

func TestGroupRepositoryUniqueName(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()
	repo := NewGroupRepository(database)

	g := seedGroup(t, database, "Editors")
	err := repo.Create(ctx, &model.Group{ID: "other", Name: "Editors", CreatedAt: g.CreatedAt})
	assert.ErrorIs(t, err, ErrDuplicateGroupName)

	_, err = repo.ByName(ctx, "Nobody")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestGroupRepositorySetPermissionsReplaces(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()
	repo := NewGroupRepository(database)

	g := seedGroup(t, database, "Editors", model.PermissionRead, model.PermissionWrite)

	require.NoError(t, repo.SetPermissions(ctx, g.ID, []model.Permission{model.PermissionDelete}))
	perms, err := repo.Permissions(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Permission{model.PermissionDelete}, perms)

	all, err := repo.AllPermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Permission{model.PermissionDelete}, all[g.ID])
}

func TestGroupRepositoryRejectsUnknownPermission(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()
	repo := NewGroupRepository(database)

	g := seedGroup(t, database, "Editors")
	err := repo.SetPermissions(ctx, g.ID, []model.Permission{"Owner"})
	assert.Error(t, err)
}

func TestGroupRepositoryMembership(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()
	repo := NewGroupRepository(database)

	g := seedGroup(t, database, "Editors")
	alice := seedUser(t, database, "alice")

	require.NoError(t, repo.AddMember(ctx, g.ID, alice.ID))
	assert.ErrorIs(t, repo.AddMember(ctx, g.ID, alice.ID), ErrAlreadyMember)

	members, err := repo.Members(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].Username)

	groups, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].MemberCount)

	require.NoError(t, repo.RemoveMember(ctx, g.ID, alice.ID))
	assert.ErrorIs(t, repo.RemoveMember(ctx, g.ID, alice.ID), ErrNotMember)
}

func TestGroupDeleteCascades(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()
	groups := NewGroupRepository(database)
	files := NewFileRepository(database)

	g := seedGroup(t, database, "Editors", model.PermissionModify)
	alice := seedUser(t, database, "alice")
	file := seedFile(t, database, "/srv/share/doc.txt", alice.ID, nil)
	require.NoError(t, groups.AddMember(ctx, g.ID, alice.ID))
	require.NoError(t, files.AddGroups(ctx, file.ID, []string{g.ID}))

	require.NoError(t, groups.Delete(ctx, g.ID))

	ids, err := files.GroupIDs(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	mine, err := groups.ForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)

	perms, err := groups.Permissions(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestGroupDeleteRevokesWithoutCascades(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()

	// one connection, so the pragma below applies to every statement
	database.SetMaxOpenConns(1)
	_, err := database.ExecContext(ctx, "PRAGMA foreign_keys = OFF")
	require.NoError(t, err)

	groups := NewGroupRepository(database)
	files := NewFileRepository(database)

	g := seedGroup(t, database, "Editors", model.PermissionModify)
	alice := seedUser(t, database, "alice")
	file := seedFile(t, database, "/srv/share/doc.txt", alice.ID, nil)
	require.NoError(t, groups.AddMember(ctx, g.ID, alice.ID))
	require.NoError(t, files.AddGroups(ctx, file.ID, []string{g.ID}))

	grants, err := files.Grants(ctx, file.ID, alice.ID)
	require.NoError(t, err)
	require.Equal(t, []model.Permission{model.PermissionModify}, grants)

	require.NoError(t, groups.Delete(ctx, g.ID))

	grants, err = files.Grants(ctx, file.ID, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)

	mine, err := groups.ForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}
