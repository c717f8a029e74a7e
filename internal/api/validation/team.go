package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateTeamName validates the name of a created or renamed team.
func ValidateTeamName(name string) []FieldError {
	var errs []FieldError

	name = strings.TrimSpace(name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if utf8.RuneCountInString(name) > 100 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 100 characters"})
	}

	return errs
}

// ValidateRoleChange validates the role of a role change request.
func ValidateRoleChange(role string) []FieldError {
	var errs []FieldError
	switch role {
	case "":
		errs = append(errs, FieldError{Field: "role", Message: "role is required"})
	case "admin", "member":
	default:
		errs = append(errs, FieldError{Field: "role", Message: "role must be \"admin\" or \"member\""})
	}
	return errs
}

// ValidateTransferRequest validates the target of an ownership transfer.
func ValidateTransferRequest(userID string) []FieldError {
	var errs []FieldError
	if userID == "" {
		errs = append(errs, FieldError{Field: "userId", Message: "userId is required"})
	} else if _, err := uuid.Parse(userID); err != nil {
		errs = append(errs, FieldError{Field: "userId", Message: "userId must be a valid UUID"})
	}
	return errs
}
