package validation

import (
	"errors"
	"strings"
)

// ValidateFilename checks a single path element supplied by a client, such as
// a new folder name or the name of an uploaded file.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("file name is required")
	}

	if len(name) > 255 {
		return errors.New("file name is too long (max 255 characters)")
	}

	if name == "." || name == ".." {
		return errors.New("file name is reserved")
	}

	if strings.ContainsAny(name, `/\`) {
		return errors.New("file name must not contain path separators")
	}

	if strings.ContainsRune(name, 0) {
		return errors.New("file name contains invalid characters")
	}

	// Staging artifacts are hidden from listings, so they cannot be created either
	if IsHiddenArtifact(name) {
		return errors.New("file name uses a reserved suffix")
	}

	return nil
}

// Suffixes and prefixes of in-flight upload artifacts.
const (
	PartSuffix       = ".part"
	TempSuffix       = ".tmp"
	ReassemblyPrefix = ".sharebox-upload-"
)

// IsHiddenArtifact reports whether name belongs to an unfinished upload.
func IsHiddenArtifact(name string) bool {
	return strings.HasSuffix(name, PartSuffix) ||
		strings.HasSuffix(name, TempSuffix) ||
		strings.HasPrefix(name, ReassemblyPrefix)
}
