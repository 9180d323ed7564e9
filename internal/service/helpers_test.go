package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/db/dbtest"
	"github.com/templui/sharebox/internal/kvstore"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
)

const testPassword = "correct-horse-battery"

type testEnv struct {
	db      *sqlx.DB
	root    string
	staging string
	kv      *kvstore.BadgerStore

	userRepo  repository.UserRepository
	groupRepo repository.GroupRepository
	fileRepo  repository.FileRepository

	activity *ActivityService
	access   *AccessService
	files    *FileService
	uploads  *UploadService
	groups   *GroupService
	users    *UserService
	auth     *AuthService

	admin *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database := dbtest.Open(t)
	root := filepath.Join(t.TempDir(), "shared")
	staging := filepath.Join(t.TempDir(), "staging")

	kv, err := kvstore.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	env := &testEnv{
		db:        database,
		root:      root,
		staging:   staging,
		kv:        kv,
		userRepo:  repository.NewUserRepository(database),
		groupRepo: repository.NewGroupRepository(database),
		fileRepo:  repository.NewFileRepository(database),
	}

	defaults := []string{model.GroupAdministrators, model.GroupUsers, model.GroupGuests}
	email := NewEmailService("", "noreply@example.com", "Sharebox", true)

	env.activity = NewActivityService(repository.NewActivityRepository(database))
	env.access = NewAccessService(env.fileRepo, root)
	env.files = NewFileService(database, env.fileRepo, env.groupRepo, env.userRepo, env.access, env.activity, nil, root, defaults)
	env.uploads = NewUploadService(env.files, staging, 1<<20, 100, time.Hour)
	env.groups = NewGroupService(database, env.groupRepo, env.userRepo, env.activity)
	env.users = NewUserService(database, env.userRepo, env.groupRepo, env.fileRepo, env.activity, email, kv)
	env.auth = NewAuthService(env.userRepo, env.activity, email, kv,
		"test-secret-0123456789", time.Hour, time.Minute, 3, time.Hour, false)

	bootstrap := NewBootstrapService(database, env.userRepo, env.groupRepo, env.files)
	env.admin, err = bootstrap.Run(context.Background(), "admin", testPassword)
	require.NoError(t, err)

	return env
}

func (e *testEnv) createUser(t *testing.T, username string, groups ...string) *model.User {
	t.Helper()
	user, err := e.users.Create(context.Background(), e.admin, CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
		Groups:   groups,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) createGroup(t *testing.T, name string, perms ...model.Permission) *model.Group {
	t.Helper()
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	group, err := e.groups.Create(context.Background(), e.admin, name, "", names)
	require.NoError(t, err)
	return group
}

func (e *testEnv) mkdir(t *testing.T, actor *model.User, parent, name string) string {
	t.Helper()
	record, err := e.files.CreateDirectory(context.Background(), actor, parent, name)
	require.NoError(t, err)
	return record.Path
}

// writeFile puts content on disk and registers it for owner.
func (e *testEnv) writeFile(t *testing.T, owner *model.User, rel, content string) string {
	t.Helper()
	path, err := e.files.Resolve(rel)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	_, err = e.files.RegisterFile(context.Background(), path, owner.ID)
	require.NoError(t, err)
	return path
}

func chunk(dir, uploadID string, index, total int, data string) ChunkRequest {
	return ChunkRequest{
		Directory: dir,
		UploadID:  uploadID,
		Index:     index,
		Total:     total,
		Data:      bytes.NewBufferString(data),
	}
}
