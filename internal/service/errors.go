package service

import (
	"errors"
	"fmt"

	"github.com/templui/sharebox/internal/repository"
	"github.com/templui/sharebox/internal/validation"
)

// Validation
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidPath       = validation.ErrInvalidPath
	ErrInvalidChunk      = errors.New("invalid chunk")
	ErrInvalidPermission = errors.New("invalid permission")
)

// Not found
var (
	ErrFileNotFound        = repository.ErrFileNotFound
	ErrGroupNotFound       = repository.ErrGroupNotFound
	ErrUserNotFound        = repository.ErrUserNotFound
	ErrActivityNotFound    = repository.ErrActivityNotFound
	ErrNotMember           = repository.ErrNotMember
	ErrParentNotRegistered = errors.New("parent folder is not registered")
)

// Conflict
var (
	ErrFileConflict       = repository.ErrDuplicatePath
	ErrDuplicateGroupName = repository.ErrDuplicateGroupName
	ErrDuplicateUsername  = repository.ErrDuplicateUsername
	ErrAlreadyMember      = repository.ErrAlreadyMember
	ErrFileExists         = errors.New("file or folder already exists")
	ErrDirectoryNotEmpty  = errors.New("folder is not empty")
	ErrNotADirectory      = errors.New("not a folder")
)

// Authorization
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrAdminRequired    = errors.New("administrator privileges required")
)

// FilesystemError reports a failed operation on the shared folder.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

func fsError(op, path string, err error) error {
	return &FilesystemError{Op: op, Path: path, Err: err}
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
