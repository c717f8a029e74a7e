package validation

import (
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores bytes past 72
)

// RegisterRequest mirrors the fields needed for registration validation.
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

// ValidateRegisterRequest validates the fields of a registration request.
func ValidateRegisterRequest(req RegisterRequest) []FieldError {
	var errs []FieldError

	email := strings.TrimSpace(req.Email)
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	} else if !validEmail(email) {
		errs = append(errs, FieldError{Field: "email", Message: "email must be a valid address"})
	}

	if len(req.Password) < minPasswordLen {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 8 characters"})
	} else if len(req.Password) > maxPasswordLen {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at most 72 bytes"})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if utf8.RuneCountInString(name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
	}

	return errs
}

// ValidateLoginRequest checks that both credentials are present.
func ValidateLoginRequest(email, password string) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(email) == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	}
	if password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}
