package validation

import (
	"errors"
	"net/mail"
)

// ValidateEmail validates an optional contact address.
// An empty address is accepted; users without one cannot enable two-factor login.
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}

	if len(email) > 254 {
		return errors.New("email address is too long (max 254 characters)")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email address format")
	}

	return nil
}
