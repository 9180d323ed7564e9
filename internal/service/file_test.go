package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
)

func TestBootstrapIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bootstrap := NewBootstrapService(env.db, env.userRepo, env.groupRepo, env.files)
	again, err := bootstrap.Run(ctx, "admin", "")
	require.NoError(t, err)
	assert.Equal(t, env.admin.ID, again.ID)

	root, err := env.files.Lookup(ctx, env.root)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())

	groups, err := env.groups.List(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 3)

	associations, err := env.files.ListAssociatedGroups(ctx, env.admin, "/")
	require.NoError(t, err)
	for _, a := range associations {
		assert.True(t, a.IsAssociated, "root should carry %s", a.GroupName)
	}
}

func TestRegisterFileRequiresRegisteredParent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.files.RegisterFile(ctx, filepath.Join(env.root, "missing", "file.txt"), env.admin.ID)
	assert.ErrorIs(t, err, ErrParentNotRegistered)

	_, err = env.files.RegisterFile(ctx, "/etc/passwd", env.admin.ID)
	assert.ErrorIs(t, err, ErrInvalidPath)

	path := env.writeFile(t, env.admin, "/once.txt", "x")
	_, err = env.files.RegisterFile(ctx, path, env.admin.ID)
	assert.ErrorIs(t, err, ErrFileConflict)
}

func TestRemoveFileDropsSubtree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dir := env.mkdir(t, env.admin, "/", "projects")
	env.mkdir(t, env.admin, "/projects", "alpha")
	file := env.writeFile(t, env.admin, "/projects/alpha/plan.md", "plan")

	require.NoError(t, env.files.RemoveFile(ctx, dir))

	_, err := env.files.Lookup(ctx, file)
	assert.ErrorIs(t, err, ErrFileNotFound)

	// the filesystem is untouched
	_, err = os.Stat(file)
	assert.NoError(t, err)

	assert.ErrorIs(t, env.files.RemoveFile(ctx, dir), ErrFileNotFound)
	assert.ErrorIs(t, env.files.RemoveFile(ctx, env.root), ErrPermissionDenied)
}

func TestCreateDirectory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record, err := env.files.CreateDirectory(ctx, env.admin, "/", "docs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.root, "docs"), record.Path)

	info, err := os.Stat(record.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = env.files.CreateDirectory(ctx, env.admin, "/", "docs")
	assert.ErrorIs(t, err, ErrFileExists)

	_, err = env.files.CreateDirectory(ctx, env.admin, "/", "../escape")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.files.CreateDirectory(ctx, env.admin, "/../../etc", "x")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, *sqlx.Tx, *model.Activity) error {
	return errors.New("activity table unavailable")
}

func (failingRecorder) RecordBestEffort(context.Context, *model.Activity) {}

func TestCreateDirectoryRollsBackWhenActivityFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	files := NewFileService(env.db, env.fileRepo, env.groupRepo, env.userRepo, env.access,
		failingRecorder{}, nil, env.root, []string{model.GroupUsers})

	_, err := files.CreateDirectory(ctx, env.admin, "/", "ghost")
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(env.root, "ghost"))
	assert.True(t, os.IsNotExist(err), "folder must be removed when registration fails")

	_, err = env.fileRepo.ByPath(ctx, filepath.Join(env.root, "ghost"))
	assert.ErrorIs(t, err, repository.ErrFileNotFound)
}

func TestDeleteRequiresForceForNonEmptyFolders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dir := env.mkdir(t, env.admin, "/", "full")
	file := env.writeFile(t, env.admin, "/full/a.txt", "a")

	err := env.files.Delete(ctx, env.admin, "/full", false)
	assert.ErrorIs(t, err, ErrDirectoryNotEmpty)

	require.NoError(t, env.files.Delete(ctx, env.admin, "/full", true))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	_, err = env.files.Lookup(ctx, file)
	assert.ErrorIs(t, err, ErrFileNotFound)

	assert.ErrorIs(t, env.files.Delete(ctx, env.admin, "/full", true), ErrFileNotFound)
	assert.ErrorIs(t, env.files.Delete(ctx, env.admin, "/", true), ErrPermissionDenied)
}

func TestDeleteRequiresDeletePermission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	guest := env.createUser(t, "visitor", model.GroupGuests)
	env.writeFile(t, env.admin, "/keep.txt", "keep")

	err := env.files.Delete(ctx, guest, "/keep.txt", false)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = os.Stat(filepath.Join(env.root, "keep.txt"))
	assert.NoError(t, err)
}

func TestMoveRelocatesDescendants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mkdir(t, env.admin, "/", "src")
	env.mkdir(t, env.admin, "/src", "inner")
	env.writeFile(t, env.admin, "/src/inner/deep.txt", "deep")
	dest := env.mkdir(t, env.admin, "/", "archive")

	record, err := env.files.Move(ctx, env.admin, "/src", "/archive")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.root, "archive", "src"), record.Path)

	destRecord, err := env.files.Lookup(ctx, dest)
	require.NoError(t, err)
	assert.Equal(t, destRecord.ID, *record.ParentID)

	moved := filepath.Join(env.root, "archive", "src", "inner", "deep.txt")
	_, err = env.files.Lookup(ctx, moved)
	assert.NoError(t, err)
	_, err = os.Stat(moved)
	assert.NoError(t, err)

	_, err = env.files.Lookup(ctx, filepath.Join(env.root, "src"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = env.files.Move(ctx, env.admin, "/archive", "/archive/src")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type memoryReplica struct {
	mu      sync.Mutex
	objects map[string]string
}

func (r *memoryReplica) Put(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[strings.TrimPrefix(key, "/")] = string(data)
	return nil
}

func (r *memoryReplica) Remove(_ context.Context, key string) error {
	key = strings.TrimPrefix(key, "/")
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.objects {
		if k == key || strings.HasPrefix(k, key+"/") {
			delete(r.objects, k)
		}
	}
	return nil
}

func TestMoveFolderKeepsReplicaInSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	replica := &memoryReplica{objects: make(map[string]string)}
	env.files.replica = replica

	env.mkdir(t, env.admin, "/", "src")
	env.mkdir(t, env.admin, "/src", "inner")
	env.mkdir(t, env.admin, "/", "archive")
	path := env.writeFile(t, env.admin, "/src/inner/deep.txt", "deep")
	env.files.replicate(ctx, path)
	require.Contains(t, replica.objects, "src/inner/deep.txt")

	_, err := env.files.Move(ctx, env.admin, "/src", "/archive")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"archive/src/inner/deep.txt": "deep"}, replica.objects)
}

func TestListDirectoryHidesArtifacts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mkdir(t, env.admin, "/", "zeta")
	env.writeFile(t, env.admin, "/Beta.txt", "bb")
	env.writeFile(t, env.admin, "/alpha.txt", "a")
	require.NoError(t, os.WriteFile(filepath.Join(env.root, ".sharebox-upload-123"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "half.part"), []byte("x"), 0o644))

	entries, err := env.files.ListDirectory(ctx, env.admin, "/")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha.txt", "Beta.txt"}, names)
	assert.Equal(t, "/Beta.txt", entries[2].Path)
	assert.Equal(t, int64(2), entries[2].Size)
	assert.Equal(t, "2 B", entries[2].SizeHuman)

	_, err = env.files.ListDirectory(ctx, env.admin, "/alpha.txt")
	assert.ErrorIs(t, err, ErrNotADirectory)

	_, err = env.files.ListDirectory(ctx, env.admin, "/../")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mkdir(t, env.admin, "/", "reports")
	env.mkdir(t, env.admin, "/reports", "2024")
	env.writeFile(t, env.admin, "/reports/q1.txt", "12345")
	env.writeFile(t, env.admin, "/reports/2024/q2.txt", "123")

	details, err := env.files.Details(ctx, env.admin, "/reports")
	require.NoError(t, err)
	assert.True(t, details.IsDir)
	assert.Equal(t, "reports", details.Name)
	assert.Equal(t, "admin", details.Owner)
	assert.Equal(t, int64(8), details.Size)
	assert.Equal(t, 1, details.FileCount)
	assert.Equal(t, 1, details.DirCount)
	require.Len(t, details.Groups, 3)
	assert.Equal(t, model.GroupAdministrators, details.Groups[0].GroupName)
	assert.Equal(t, []model.Permission{model.PermissionFullControl}, details.Groups[0].Permissions)
}

func TestSetAssociatedGroupsRequiresFullControl(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	member := env.createUser(t, "member", model.GroupUsers)
	path := env.mkdir(t, env.admin, "/", "locked")

	err := env.files.SetAssociatedGroups(ctx, member, path, []model.GroupAssociation{
		{GroupName: model.GroupGuests, IsAssociated: false},
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = env.files.SetAssociatedGroups(ctx, env.admin, path, []model.GroupAssociation{
		{GroupName: "Nope", IsAssociated: true},
	})
	assert.ErrorIs(t, err, ErrGroupNotFound)
}
