package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ValidateUsername validates login names: 3-50 characters of letters, digits, '.', '_' or '-'.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username is required")
	}

	if len(username) < 3 || len(username) > 50 {
		return errors.New("username must be between 3 and 50 characters")
	}

	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			continue
		}
		return errors.New("username may only contain letters, digits, '.', '_' and '-'")
	}

	return nil
}

// ValidateGroupName validates group names
func ValidateGroupName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return errors.New("group name is required")
	}

	if len(trimmed) > 100 {
		return errors.New("group name is too long (max 100 characters)")
	}

	return nil
}
