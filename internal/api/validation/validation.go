package validation

import (
	"net/mail"
	"regexp"
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var inviteCodeRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}$`)

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
