package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/model"
)

func ptr[T any](v T) *T {
	return &v
}

func TestCreateUserValidatesInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateUserInput
	}{
		{"short username", CreateUserInput{Username: "ab", Password: testPassword}},
		{"bad email", CreateUserInput{Username: "frank", Email: "not-an-email", Password: testPassword}},
		{"weak password", CreateUserInput{Username: "frank", Password: "short"}},
		{"common password", CreateUserInput{Username: "frank", Password: "mypassword1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.Create(ctx, env.admin, tt.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	env.createUser(t, "frank")
	_, err := env.users.Create(ctx, env.admin, CreateUserInput{Username: "frank", Password: testPassword})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = env.users.Create(ctx, env.admin, CreateUserInput{Username: "gina", Password: testPassword, Groups: []string{"Nope"}})
	assert.ErrorIs(t, err, ErrGroupNotFound)
	_, err = env.userRepo.ByUsername(ctx, "gina")
	assert.ErrorIs(t, err, ErrUserNotFound, "user creation rolls back with its memberships")
}

func TestUpdateUserSecuritySettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	henry := env.createUser(t, "henry", model.GroupUsers)

	updated, err := env.users.Update(ctx, env.admin, henry.ID, UpdateUserInput{
		MaxLoginAttempts:      ptr(3),
		SessionTimeoutMinutes: ptr(15),
		IPRestriction:         ptr(true),
		AllowedIPs:            ptr(" 10.0.0.1, ::1 "),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.MaxLoginAttempts)
	assert.Equal(t, "10.0.0.1,::1", updated.AllowedIPs)
	assert.True(t, updated.IPAllowed("::1"))
	assert.False(t, updated.IPAllowed("10.0.0.2"))
	assert.Equal(t, []string{model.GroupUsers}, updated.Groups)

	_, err = env.users.Update(ctx, env.admin, henry.ID, UpdateUserInput{AllowedIPs: ptr("300.1.1.1")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.users.Update(ctx, env.admin, henry.ID, UpdateUserInput{AllowedIPs: ptr("")})
	assert.ErrorIs(t, err, ErrInvalidInput, "restriction without addresses would lock the user out")

	_, err = env.users.Update(ctx, env.admin, env.admin.ID, UpdateUserInput{IsAdmin: ptr(false)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.users.Update(ctx, henry, henry.ID, UpdateUserInput{IsAdmin: ptr(true)})
	assert.ErrorIs(t, err, ErrAdminRequired)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ivy := env.createUser(t, "ivy")

	err := env.users.ChangePassword(ctx, ivy, "wrong-current-pw", "brand-new-secret")
	assert.ErrorIs(t, err, ErrInvalidCurrentPassword)

	require.NoError(t, env.users.ChangePassword(ctx, ivy, testPassword, "brand-new-secret"))

	_, err = env.auth.Login(ctx, "ivy", testPassword, "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	res, err := env.auth.Login(ctx, "ivy", "brand-new-secret", "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestDeleteUserTransfersFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	jack := env.createUser(t, "jack", model.GroupUsers)
	_, err := env.files.CreateDirectory(ctx, jack, "/", "jack-stuff")
	require.NoError(t, err)

	assert.ErrorIs(t, env.users.Delete(ctx, env.admin, env.admin.ID), ErrInvalidInput)
	require.NoError(t, env.users.Delete(ctx, env.admin, jack.ID))

	record, err := env.files.Lookup(ctx, filepath.Join(env.root, "jack-stuff"))
	require.NoError(t, err)
	assert.Equal(t, env.admin.ID, record.OwnerID)

	_, err = env.users.ByID(ctx, jack.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	// history survives the user
	entries, _, err := env.activity.List(ctx, model.ActivityFilter{Category: model.ActivityCategoryFile})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	var found bool
	for _, e := range entries {
		if e.Details == "Created folder /jack-stuff" {
			found = true
			assert.Nil(t, e.ChangedBy)
		}
	}
	assert.True(t, found)
}
