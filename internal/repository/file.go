package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/db"
	"github.com/templui/sharebox/internal/model"
)

var (
	ErrFileNotFound  = errors.New("file not found")
	ErrDuplicatePath = errors.New("path already registered")
)

type FileRepository interface {
	Create(ctx context.Context, file *model.FileRecord) error
	ByID(ctx context.Context, id string) (*model.FileRecord, error)
	ByPath(ctx context.Context, path string) (*model.FileRecord, error)
	SetParent(ctx context.Context, id, parentID string) error
	Delete(ctx context.Context, path string) error
	DeleteTree(ctx context.Context, path string) (int64, error)
	Descendants(ctx context.Context, path string) ([]*model.FileRecord, error)
	Relocate(ctx context.Context, from, to, parentID string) error
	TransferOwnership(ctx context.Context, fromUserID, toUserID string) (int64, error)

	Grants(ctx context.Context, fileID, userID string) ([]model.Permission, error)
	GroupIDs(ctx context.Context, fileID string) ([]string, error)
	AddGroups(ctx context.Context, fileID string, groupIDs []string) error
	RemoveGroup(ctx context.Context, fileID, groupID string) error

	WithTx(tx *sqlx.Tx) FileRepository
}

type fileRepository struct {
	db sqlx.ExtContext
}

func NewFileRepository(db *sqlx.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) WithTx(tx *sqlx.Tx) FileRepository {
	return &fileRepository{db: tx}
}

func (r *fileRepository) Create(ctx context.Context, file *model.FileRecord) error {
	query := `INSERT INTO files (id, path, owner_id, parent_id, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, file.ID, file.Path, file.OwnerID, file.ParentID, file.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicatePath
		}
		return err
	}

	return nil
}

func (r *fileRepository) ByID(ctx context.Context, id string) (*model.FileRecord, error) {
	file := &model.FileRecord{}
	query := `SELECT id, path, owner_id, parent_id, created_at FROM files WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db, file, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}

	return file, nil
}

func (r *fileRepository) ByPath(ctx context.Context, path string) (*model.FileRecord, error) {
	file := &model.FileRecord{}
	query := `SELECT id, path, owner_id, parent_id, created_at FROM files WHERE path = $1`

	err := sqlx.GetContext(ctx, r.db, file, query, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}

	return file, nil
}

func (r *fileRepository) SetParent(ctx context.Context, id, parentID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE files SET parent_id = $1 WHERE id = $2`, parentID, id)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrFileNotFound)
}

// Delete removes a single record. Associations cascade.
func (r *fileRepository) Delete(ctx context.Context, path string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE path = $1`, path)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrFileNotFound)
}

// DeleteTree removes the record at path and every record beneath it.
func (r *fileRepository) DeleteTree(ctx context.Context, path string) (int64, error) {
	prefix := childPrefix(path)
	query := `DELETE FROM files WHERE path = $1 OR substr(path, 1, $2) = $3`

	result, err := r.db.ExecContext(ctx, query, path, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, ErrFileNotFound
	}

	return rows, nil
}

// Descendants returns every record strictly beneath path, shallowest first.
func (r *fileRepository) Descendants(ctx context.Context, path string) ([]*model.FileRecord, error) {
	var files []*model.FileRecord
	prefix := childPrefix(path)
	query := `SELECT id, path, owner_id, parent_id, created_at FROM files
		WHERE substr(path, 1, $1) = $2 AND path <> $3
		ORDER BY path`

	err := sqlx.SelectContext(ctx, r.db, &files, query, utf8.RuneCountInString(prefix), prefix, path)
	if err != nil {
		return nil, err
	}

	return files, nil
}

// Relocate rewrites the path of the record at from, and of all its descendants,
// so they live under to. The moved record is re-parented to parentID.
// Callers run it inside a transaction.
func (r *fileRepository) Relocate(ctx context.Context, from, to, parentID string) error {
	descendants, err := r.Descendants(ctx, from)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE files SET path = $1, parent_id = $2 WHERE path = $3`,
		to, parentID, from,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicatePath
		}
		return err
	}
	err = requireAffected(result, ErrFileNotFound)
	if err != nil {
		return err
	}

	for _, d := range descendants {
		newPath := to + strings.TrimPrefix(d.Path, from)
		_, err = r.db.ExecContext(ctx, `UPDATE files SET path = $1 WHERE id = $2`, newPath, d.ID)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicatePath
			}
			return err
		}
	}

	return nil
}

func (r *fileRepository) TransferOwnership(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE files SET owner_id = $1 WHERE owner_id = $2`, toUserID, fromUserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Grants returns the permissions the user holds on the file through groups
// that are both associated with the file and joined by the user.
func (r *fileRepository) Grants(ctx context.Context, fileID, userID string) ([]model.Permission, error) {
	var perms []model.Permission
	query := `SELECT DISTINCT gp.permission
		FROM file_groups fg
		JOIN group_permissions gp ON gp.group_id = fg.group_id
		JOIN user_groups ug ON ug.group_id = fg.group_id
		WHERE fg.file_id = $1 AND ug.user_id = $2`

	err := sqlx.SelectContext(ctx, r.db, &perms, query, fileID, userID)
	if err != nil {
		return nil, err
	}

	return perms, nil
}

func (r *fileRepository) GroupIDs(ctx context.Context, fileID string) ([]string, error) {
	var ids []string
	query := `SELECT group_id FROM file_groups WHERE file_id = $1 ORDER BY group_id`

	err := sqlx.SelectContext(ctx, r.db, &ids, query, fileID)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// AddGroups associates groups with the file. Existing associations are kept.
func (r *fileRepository) AddGroups(ctx context.Context, fileID string, groupIDs []string) error {
	query := `INSERT INTO file_groups (file_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	for _, groupID := range groupIDs {
		_, err := r.db.ExecContext(ctx, query, fileID, groupID)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return ErrGroupNotFound
			}
			return err
		}
	}

	return nil
}

// RemoveGroup drops an association. Removing a missing association is not an error.
func (r *fileRepository) RemoveGroup(ctx context.Context, fileID, groupID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM file_groups WHERE file_id = $1 AND group_id = $2`, fileID, groupID)
	return err
}

func childPrefix(path string) string {
	if strings.HasSuffix(path, string(filepath.Separator)) {
		return path
	}
	return path + string(filepath.Separator)
}
