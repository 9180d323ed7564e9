package model

import (
	"time"
)

// FileRecord is the metadata row for one canonical path under the shared folder.
// The root record is its own parent.
type FileRecord struct {
	ID        string    `db:"id"`
	Path      string    `db:"path"`
	OwnerID   string    `db:"owner_id"`
	ParentID  *string   `db:"parent_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (f *FileRecord) IsRoot() bool {
	return f.ParentID != nil && *f.ParentID == f.ID
}

// GroupAssociation is one row of the association editor for a path.
type GroupAssociation struct {
	GroupName    string `json:"group_name" validate:"required"`
	IsAssociated bool   `json:"is_associated"`
}

// GroupGrant is a group attached to a file together with what it grants.
type GroupGrant struct {
	GroupID     string       `json:"group_id"`
	GroupName   string       `json:"group_name"`
	Permissions []Permission `json:"permissions"`
}

// DirEntry is a single visible child of a listed directory.
type DirEntry struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	IsDir      bool      `json:"is_dir"`
	Size       int64     `json:"size"`
	SizeHuman  string    `json:"size_human"`
	ModifiedAt time.Time `json:"modified_at"`
}

// FileDetails describes one path for the details panel.
type FileDetails struct {
	Name       string       `json:"name"`
	Path       string       `json:"path"`
	IsDir      bool         `json:"is_dir"`
	Size       int64        `json:"size"`
	SizeHuman  string       `json:"size_human"`
	ModifiedAt time.Time    `json:"modified_at"`
	CreatedAt  time.Time    `json:"created_at"`
	Owner      string       `json:"owner"`
	FileCount  int          `json:"file_count,omitempty"`
	DirCount   int          `json:"dir_count,omitempty"`
	Groups     []GroupGrant `json:"groups"`
}
