package validation

import (
	"errors"
	"strings"
)

// ValidatePassword validates password strength.
// Minimum 8 characters, maximum 72 bytes (bcrypt truncates beyond that).
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	if len(password) > 72 {
		return errors.New("password must not exceed 72 characters")
	}

	lower := strings.ToLower(password)
	for _, pattern := range []string{"password", "12345678", "qwerty", "letmein"} {
		if strings.Contains(lower, pattern) {
			return errors.New("password is too common, please choose a stronger one")
		}
	}

	return nil
}
