package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/db"
	"github.com/templui/sharebox/internal/metrics"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
	"github.com/templui/sharebox/internal/storage"
	"github.com/templui/sharebox/internal/validation"
)

const replicaTimeout = 30 * time.Second

// FileService keeps the metadata tree in step with the shared folder on disk.
// Every public operation takes client supplied paths and resolves them first.
type FileService struct {
	db              *sqlx.DB
	fileRepository  repository.FileRepository
	groupRepository repository.GroupRepository
	userRepository  repository.UserRepository
	access          *AccessService
	activity        ActivityRecorder
	replica         storage.Replica
	root            string
	defaultGroups   []string
}

func NewFileService(
	database *sqlx.DB,
	fileRepository repository.FileRepository,
	groupRepository repository.GroupRepository,
	userRepository repository.UserRepository,
	access *AccessService,
	activity ActivityRecorder,
	replica storage.Replica,
	root string,
	defaultGroups []string,
) *FileService {
	return &FileService{
		db:              database,
		fileRepository:  fileRepository,
		groupRepository: groupRepository,
		userRepository:  userRepository,
		access:          access,
		activity:        activity,
		replica:         replica,
		root:            root,
		defaultGroups:   defaultGroups,
	}
}

func (s *FileService) Root() string {
	return s.root
}

// Resolve maps a client path onto the shared folder.
func (s *FileService) Resolve(raw string) (string, error) {
	return validation.ResolvePath(raw, s.root)
}

func (s *FileService) rel(path string) string {
	return validation.RelativePath(path, s.root)
}

// EnsureRoot creates the shared folder and its self-parented record if missing.
func (s *FileService) EnsureRoot(ctx context.Context, ownerID string) (*model.FileRecord, error) {
	err := os.MkdirAll(s.root, 0o755)
	if err != nil {
		return nil, fsError("mkdir", s.root, err)
	}

	record, err := s.fileRepository.ByPath(ctx, s.root)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, repository.ErrFileNotFound) {
		return nil, fmt.Errorf("failed to look up root record: %w", err)
	}

	record = &model.FileRecord{
		ID:        uuid.NewString(),
		Path:      s.root,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		files := s.fileRepository.WithTx(tx)

		err := files.Create(ctx, record)
		if err != nil {
			return err
		}
		err = files.SetParent(ctx, record.ID, record.ID)
		if err != nil {
			return err
		}
		record.ParentID = &record.ID

		groupIDs, err := s.defaultGroupIDs(ctx, s.groupRepository.WithTx(tx))
		if err != nil {
			return err
		}
		return files.AddGroups(ctx, record.ID, groupIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register root folder: %w", err)
	}

	slog.Info("root folder registered", "path", s.root)
	return record, nil
}

func (s *FileService) defaultGroupIDs(ctx context.Context, groups repository.GroupRepository) ([]string, error) {
	ids := make([]string, 0, len(s.defaultGroups))
	for _, name := range s.defaultGroups {
		group, err := groups.ByName(ctx, name)
		if errors.Is(err, repository.ErrGroupNotFound) {
			slog.Warn("default group does not exist, skipping", "group", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up default group %q: %w", name, err)
		}
		ids = append(ids, group.ID)
	}
	return ids, nil
}

// registerTx inserts the record for path under its parent's record and seeds
// its associations: the parent's groups, or the default groups when the parent has none.
func (s *FileService) registerTx(ctx context.Context, tx *sqlx.Tx, path, ownerID string) (*model.FileRecord, error) {
	if path == s.root {
		return nil, fmt.Errorf("%w: %s", ErrFileConflict, s.rel(path))
	}

	files := s.fileRepository.WithTx(tx)
	parentPath := filepath.Dir(path)

	parent, err := files.ByPath(ctx, parentPath)
	if errors.Is(err, repository.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrParentNotRegistered, s.rel(parentPath))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up parent record: %w", err)
	}

	record := &model.FileRecord{
		ID:        uuid.NewString(),
		Path:      path,
		OwnerID:   ownerID,
		ParentID:  &parent.ID,
		CreatedAt: time.Now().UTC(),
	}

	err = files.Create(ctx, record)
	if errors.Is(err, repository.ErrDuplicatePath) {
		return nil, fmt.Errorf("%w: %s", ErrFileConflict, s.rel(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	groupIDs, err := files.GroupIDs(ctx, parent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read parent groups: %w", err)
	}
	if len(groupIDs) == 0 {
		groupIDs, err = s.defaultGroupIDs(ctx, s.groupRepository.WithTx(tx))
		if err != nil {
			return nil, err
		}
	}

	err = files.AddGroups(ctx, record.ID, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to associate groups: %w", err)
	}

	return record, nil
}

// RegisterFile records metadata for a canonical path that already exists on disk.
func (s *FileService) RegisterFile(ctx context.Context, path, ownerID string) (*model.FileRecord, error) {
	if !filepath.IsAbs(path) || !validation.Within(path, s.root) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	var record *model.FileRecord
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		record, err = s.registerTx(ctx, tx, path, ownerID)
		if err != nil {
			return err
		}

		entry := &model.Activity{
			Type:      "file_registered",
			Category:  model.ActivityCategoryFile,
			Details:   "Registered " + s.rel(path),
			ChangedBy: &ownerID,
		}
		return s.activity.Record(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (s *FileService) Lookup(ctx context.Context, path string) (*model.FileRecord, error) {
	record, err := s.fileRepository.ByPath(ctx, path)
	if errors.Is(err, repository.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, s.rel(path))
	}
	return record, err
}

// RemoveFile drops the record for path and every record beneath it.
// The filesystem is not touched.
func (s *FileService) RemoveFile(ctx context.Context, path string) error {
	if path == s.root {
		return fmt.Errorf("%w: the root folder cannot be removed", ErrPermissionDenied)
	}

	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := s.fileRepository.WithTx(tx).DeleteTree(ctx, path)
		if errors.Is(err, repository.ErrFileNotFound) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, s.rel(path))
		}
		if err != nil {
			return fmt.Errorf("failed to delete file records: %w", err)
		}

		entry := &model.Activity{
			Type:     "file_unregistered",
			Category: model.ActivityCategoryFile,
			Details:  fmt.Sprintf("Removed %s (%d records)", s.rel(path), n),
		}
		return s.activity.Record(ctx, tx, entry)
	})
}

func (s *FileService) requireDir(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, s.rel(path))
	}
	if err != nil {
		return fsError("stat", s.rel(path), err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, s.rel(path))
	}
	return nil
}

func (s *FileService) CreateDirectory(ctx context.Context, actor *model.User, rawParent, name string) (*model.FileRecord, error) {
	err := validation.ValidateFilename(name)
	if err != nil {
		return nil, invalidInput("%v", err)
	}

	parent, err := s.Resolve(rawParent)
	if err != nil {
		return nil, err
	}

	err = s.requireDir(parent)
	if err != nil {
		return nil, err
	}

	err = s.access.Require(ctx, parent, actor.ID, model.PermissionWrite)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(parent, name)
	err = os.Mkdir(target, 0o755)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, s.rel(target))
	}
	if err != nil {
		return nil, fsError("mkdir", s.rel(target), err)
	}

	var record *model.FileRecord
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		record, err = s.registerTx(ctx, tx, target, actor.ID)
		if err != nil {
			return err
		}
		return s.activity.Record(ctx, tx, NewActivity(actor, model.ActivityCategoryFile, "folder_created", "Created folder "+s.rel(target)))
	})
	if err != nil {
		rmErr := os.Remove(target)
		if rmErr != nil {
			slog.Error("failed to remove folder after registration failure", "error", rmErr, "path", target)
		}
		return nil, err
	}

	slog.Info("folder created", "path", s.rel(target), "user", actor.Username)
	return record, nil
}

// Delete removes a file or folder. Non-empty folders require force.
// Metadata is committed first; a filesystem failure afterwards leaves an
// unregistered object on disk rather than a record without a file.
func (s *FileService) Delete(ctx context.Context, actor *model.User, raw string, force bool) error {
	path, err := s.Resolve(raw)
	if err != nil {
		return err
	}
	if path == s.root {
		return fmt.Errorf("%w: the root folder cannot be deleted", ErrPermissionDenied)
	}

	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, s.rel(path))
	}
	if err != nil {
		return fsError("stat", s.rel(path), err)
	}

	err = s.access.Require(ctx, path, actor.ID, model.PermissionDelete)
	if err != nil {
		return err
	}

	if info.IsDir() && !force {
		entries, err := os.ReadDir(path)
		if err != nil {
			return fsError("readdir", s.rel(path), err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("%w: %s", ErrDirectoryNotEmpty, s.rel(path))
		}
	}

	kind := "file"
	if info.IsDir() {
		kind = "folder"
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		_, err := s.fileRepository.WithTx(tx).DeleteTree(ctx, path)
		if err != nil && !errors.Is(err, repository.ErrFileNotFound) {
			return fmt.Errorf("failed to delete file records: %w", err)
		}
		return s.activity.Record(ctx, tx, NewActivity(actor, model.ActivityCategoryFile, kind+"_deleted", fmt.Sprintf("Deleted %s %s", kind, s.rel(path))))
	})
	if err != nil {
		return err
	}

	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		slog.Error("metadata removed but filesystem delete failed", "error", err, "path", path)
		return fsError("remove", s.rel(path), err)
	}

	s.unreplicate(ctx, path)
	slog.Info("deleted", "kind", kind, "path", s.rel(path), "user", actor.Username)
	return nil
}

// Move relocates a file or folder into destination, keeping its name.
// The rename happens first and is reverted if the metadata update fails.
func (s *FileService) Move(ctx context.Context, actor *model.User, rawSource, rawDestination string) (*model.FileRecord, error) {
	src, err := s.Resolve(rawSource)
	if err != nil {
		return nil, err
	}
	dstDir, err := s.Resolve(rawDestination)
	if err != nil {
		return nil, err
	}
	if src == s.root {
		return nil, fmt.Errorf("%w: the root folder cannot be moved", ErrPermissionDenied)
	}

	info, err := os.Lstat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, s.rel(src))
	}
	if err != nil {
		return nil, fsError("stat", s.rel(src), err)
	}

	err = s.requireDir(dstDir)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(dstDir, filepath.Base(src))
	if target == src {
		return nil, invalidInput("%s is already in %s", s.rel(src), s.rel(dstDir))
	}
	if validation.Within(dstDir, src) {
		return nil, invalidInput("a folder cannot be moved into itself")
	}

	err = s.access.Require(ctx, src, actor.ID, model.PermissionWrite)
	if err != nil {
		return nil, err
	}
	err = s.access.Require(ctx, dstDir, actor.ID, model.PermissionWrite)
	if err != nil {
		return nil, err
	}

	_, err = os.Lstat(target)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, s.rel(target))
	}

	err = os.Rename(src, target)
	if err != nil {
		return nil, fsError("rename", s.rel(src), err)
	}

	var record *model.FileRecord
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		files := s.fileRepository.WithTx(tx)

		dest, err := files.ByPath(ctx, dstDir)
		if errors.Is(err, repository.ErrFileNotFound) {
			return fmt.Errorf("%w: %s", ErrParentNotRegistered, s.rel(dstDir))
		}
		if err != nil {
			return err
		}

		err = files.Relocate(ctx, src, target, dest.ID)
		if errors.Is(err, repository.ErrDuplicatePath) {
			return fmt.Errorf("%w: %s", ErrFileConflict, s.rel(target))
		}
		if err != nil {
			return fmt.Errorf("failed to relocate file records: %w", err)
		}

		record, err = files.ByPath(ctx, target)
		if err != nil {
			return err
		}

		details := fmt.Sprintf("Moved %s to %s", s.rel(src), s.rel(target))
		return s.activity.Record(ctx, tx, NewActivity(actor, model.ActivityCategoryFile, "moved", details))
	})
	if err != nil {
		rbErr := os.Rename(target, src)
		if rbErr != nil {
			slog.Error("failed to revert rename after metadata failure", "error", rbErr, "from", target, "to", src)
		}
		return nil, err
	}

	s.unreplicate(ctx, src)
	if info.IsDir() {
		s.replicateTree(ctx, target)
	} else {
		s.replicate(ctx, target)
	}

	slog.Info("moved", "from", s.rel(src), "to", s.rel(target), "user", actor.Username)
	return record, nil
}

// ListDirectory returns the visible children of a folder, folders first.
func (s *FileService) ListDirectory(ctx context.Context, actor *model.User, raw string) ([]model.DirEntry, error) {
	path, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}

	err = s.requireDir(path)
	if err != nil {
		return nil, err
	}

	err = s.access.Require(ctx, path, actor.ID, model.PermissionRead)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fsError("readdir", s.rel(path), err)
	}

	result := make([]model.DirEntry, 0, len(entries))
	for _, e := range entries {
		if validation.IsHiddenArtifact(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}

		entry := model.DirEntry{
			Name:       e.Name(),
			Path:       s.rel(filepath.Join(path, e.Name())),
			IsDir:      e.IsDir(),
			ModifiedAt: info.ModTime().UTC(),
		}
		if !e.IsDir() {
			entry.Size = info.Size()
			entry.SizeHuman = humanize.IBytes(uint64(info.Size()))
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b model.DirEntry) int {
		if a.IsDir != b.IsDir {
			if a.IsDir {
				return -1
			}
			return 1
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	return result, nil
}

// Open returns a regular file for download after a Read check. The caller closes it.
func (s *FileService) Open(ctx context.Context, actor *model.User, raw string) (*os.File, fs.FileInfo, error) {
	path, err := s.Resolve(raw)
	if err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, s.rel(path))
	}
	if err != nil {
		return nil, nil, fsError("stat", s.rel(path), err)
	}
	if info.IsDir() {
		return nil, nil, invalidInput("%s is a folder", s.rel(path))
	}

	err = s.access.Require(ctx, path, actor.ID, model.PermissionRead)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fsError("open", s.rel(path), err)
	}
	return f, info, nil
}

// Details describes a path including its owner and the groups attached to it.
func (s *FileService) Details(ctx context.Context, actor *model.User, raw string) (*model.FileDetails, error) {
	path, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, s.rel(path))
	}
	if err != nil {
		return nil, fsError("stat", s.rel(path), err)
	}

	err = s.access.Require(ctx, path, actor.ID, model.PermissionRead)
	if err != nil {
		return nil, err
	}

	record, err := s.Lookup(ctx, path)
	if err != nil {
		return nil, err
	}

	details := &model.FileDetails{
		Name:       filepath.Base(path),
		Path:       s.rel(path),
		IsDir:      info.IsDir(),
		Size:       info.Size(),
		ModifiedAt: info.ModTime().UTC(),
		CreatedAt:  record.CreatedAt,
	}

	owner, err := s.userRepository.ByID(ctx, record.OwnerID)
	switch {
	case err == nil:
		details.Owner = owner.Username
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, fmt.Errorf("failed to look up owner: %w", err)
	}

	if info.IsDir() {
		details.Size, details.FileCount, details.DirCount, err = s.folderStats(path)
		if err != nil {
			return nil, err
		}
	}
	details.SizeHuman = humanize.IBytes(uint64(details.Size))

	details.Groups, err = s.groupGrants(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	return details, nil
}

// folderStats sums visible file sizes below path and counts its direct children.
func (s *FileService) folderStats(path string) (size int64, files, dirs int, err error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, 0, 0, fsError("readdir", s.rel(path), err)
	}
	for _, e := range entries {
		if validation.IsHiddenArtifact(e.Name()) {
			continue
		}
		if e.IsDir() {
			dirs++
		} else {
			files++
		}
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() || validation.IsHiddenArtifact(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err == nil {
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, 0, 0, fsError("walk", s.rel(path), err)
	}

	return size, files, dirs, nil
}

func (s *FileService) groupGrants(ctx context.Context, fileID string) ([]model.GroupGrant, error) {
	ids, err := s.fileRepository.GroupIDs(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to read file groups: %w", err)
	}

	perms, err := s.groupRepository.AllPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read group permissions: %w", err)
	}

	grants := make([]model.GroupGrant, 0, len(ids))
	for _, id := range ids {
		group, err := s.groupRepository.ByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to look up group: %w", err)
		}
		grants = append(grants, model.GroupGrant{
			GroupID:     id,
			GroupName:   group.Name,
			Permissions: perms[id],
		})
	}

	slices.SortFunc(grants, func(a, b model.GroupGrant) int {
		return strings.Compare(a.GroupName, b.GroupName)
	})
	return grants, nil
}

// ListAssociatedGroups returns every group with a flag telling whether it is attached to the path.
func (s *FileService) ListAssociatedGroups(ctx context.Context, actor *model.User, raw string) ([]model.GroupAssociation, error) {
	path, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}

	err = s.access.Require(ctx, path, actor.ID, model.PermissionRead)
	if err != nil {
		return nil, err
	}

	record, err := s.Lookup(ctx, path)
	if err != nil {
		return nil, err
	}

	ids, err := s.fileRepository.GroupIDs(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read file groups: %w", err)
	}

	groups, err := s.groupRepository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	associations := make([]model.GroupAssociation, 0, len(groups))
	for _, g := range groups {
		associations = append(associations, model.GroupAssociation{
			GroupName:    g.Name,
			IsAssociated: slices.Contains(ids, g.ID),
		})
	}
	return associations, nil
}

// SetAssociatedGroups attaches or detaches the named groups. Groups not
// mentioned keep their current state. Requires Full Control on the path.
func (s *FileService) SetAssociatedGroups(ctx context.Context, actor *model.User, raw string, associations []model.GroupAssociation) error {
	path, err := s.Resolve(raw)
	if err != nil {
		return err
	}

	err = s.access.Require(ctx, path, actor.ID, model.PermissionFullControl)
	if err != nil {
		return err
	}

	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		files := s.fileRepository.WithTx(tx)
		groups := s.groupRepository.WithTx(tx)

		record, err := files.ByPath(ctx, path)
		if errors.Is(err, repository.ErrFileNotFound) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, s.rel(path))
		}
		if err != nil {
			return err
		}

		var added, removed []string
		for _, a := range associations {
			group, err := groups.ByName(ctx, a.GroupName)
			if errors.Is(err, repository.ErrGroupNotFound) {
				return fmt.Errorf("%w: %s", ErrGroupNotFound, a.GroupName)
			}
			if err != nil {
				return err
			}

			if a.IsAssociated {
				err = files.AddGroups(ctx, record.ID, []string{group.ID})
				added = append(added, group.Name)
			} else {
				err = files.RemoveGroup(ctx, record.ID, group.ID)
				removed = append(removed, group.Name)
			}
			if err != nil {
				return fmt.Errorf("failed to update file groups: %w", err)
			}
		}

		details := fmt.Sprintf("Updated groups for %s (associated: %s; removed: %s)",
			s.rel(path), joinOrNone(added), joinOrNone(removed))
		return s.activity.Record(ctx, tx, NewActivity(actor, model.ActivityCategoryAccess, "file_groups_updated", details))
	})
}

func (s *FileService) replicate(ctx context.Context, path string) {
	if s.replica == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replicaTimeout)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		slog.Warn("replica: failed to open file", "error", err, "path", path)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		slog.Warn("replica: failed to stat file", "error", err, "path", path)
		return
	}

	err = s.replica.Put(ctx, s.rel(path), f, info.Size())
	if err != nil {
		metrics.ReplicaFailures.WithLabelValues("put").Inc()
		slog.Warn("replica: upload failed", "error", err, "path", s.rel(path))
	}
}

// replicateTree puts every regular file below dir, used after a folder moves
// to a new prefix.
func (s *FileService) replicateTree(ctx context.Context, dir string) {
	if s.replica == nil {
		return
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && !validation.IsHiddenArtifact(d.Name()) {
			s.replicate(ctx, path)
		}
		return nil
	})
	if err != nil {
		metrics.ReplicaFailures.WithLabelValues("put").Inc()
		slog.Warn("replica: failed to walk folder", "error", err, "path", s.rel(dir))
	}
}

func (s *FileService) unreplicate(ctx context.Context, path string) {
	if s.replica == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replicaTimeout)
	defer cancel()

	err := s.replica.Remove(ctx, s.rel(path))
	if err != nil {
		metrics.ReplicaFailures.WithLabelValues("remove").Inc()
		slog.Warn("replica: delete failed", "error", err, "path", s.rel(path))
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
