package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/db/dbtest"
	"github.com/templui/sharebox/internal/model"
)

func TestActivityRepositoryFilters(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()
	repo := NewActivityRepository(database)
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []struct {
		category string
		details  string
		actor    string
		at       time.Time
	}{
		{model.ActivityCategoryFile, "Uploaded /team/a.txt", alice.ID, base},
		{model.ActivityCategoryFile, "Deleted /team/b.txt", bob.ID, base.Add(time.Hour)},
		{model.ActivityCategoryGroup, "Created group Editors", alice.ID, base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		actor := e.actor
		require.NoError(t, repo.Create(ctx, &model.Activity{
			ID:        uuid.NewString(),
			Type:      "test",
			Details:   e.details,
			Category:  e.category,
			CreatedAt: e.at,
			ChangedBy: &actor,
		}))
	}

	all, err := repo.List(ctx, model.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Created group Editors", all[0].Details)
	require.NotNil(t, all[0].ChangedByName)
	assert.Equal(t, "alice", *all[0].ChangedByName)

	files, err := repo.List(ctx, model.ActivityFilter{Category: model.ActivityCategoryFile, Username: "ALI"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Uploaded /team/a.txt", files[0].Details)

	from := base.Add(30 * time.Minute)
	count, err := repo.Count(ctx, model.ActivityFilter{From: &from})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	page, err := repo.List(ctx, model.ActivityFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Deleted /team/b.txt", page[0].Details)

	require.NoError(t, repo.Delete(ctx, page[0].ID))
	assert.ErrorIs(t, repo.Delete(ctx, page[0].ID), ErrActivityNotFound)

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestActivitySurvivesUserDeletion(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()
	repo := NewActivityRepository(database)
	alice := seedUser(t, database, "alice")

	require.NoError(t, repo.Create(ctx, &model.Activity{
		ID:        uuid.NewString(),
		Type:      "login",
		Category:  model.ActivityCategoryAuth,
		CreatedAt: time.Now().UTC(),
		ChangedBy: &alice.ID,
		UserID:    &alice.ID,
	}))

	require.NoError(t, NewUserRepository(database).Delete(ctx, alice.ID))

	list, err := repo.List(ctx, model.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].ChangedBy)
	assert.Nil(t, list[0].UserID)
}
