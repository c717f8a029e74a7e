package validation

import "strings"

// CreateInviteRequest mirrors the fields needed for invite validation.
type CreateInviteRequest struct {
	Email          string
	Role           string
	ExpiresInHours *int
}

// ValidateCreateInviteRequest validates the fields of a create invite request.
func ValidateCreateInviteRequest(req CreateInviteRequest) []FieldError {
	var errs []FieldError

	if email := strings.TrimSpace(req.Email); email != "" && !validEmail(email) {
		errs = append(errs, FieldError{Field: "email", Message: "email must be a valid address"})
	}

	switch req.Role {
	case "", "admin", "member":
	default:
		errs = append(errs, FieldError{Field: "role", Message: "role must be \"admin\" or \"member\""})
	}

	if req.ExpiresInHours != nil && *req.ExpiresInHours <= 0 {
		errs = append(errs, FieldError{Field: "expiresInHours", Message: "expiresInHours must be a positive number"})
	}

	return errs
}

// ValidateJoinRequest validates an invite code.
func ValidateJoinRequest(code string) []FieldError {
	var errs []FieldError
	code = strings.TrimSpace(code)
	if code == "" {
		errs = append(errs, FieldError{Field: "code", Message: "code is required"})
	} else if !inviteCodeRegex.MatchString(code) {
		errs = append(errs, FieldError{Field: "code", Message: "code must be 8 hexadecimal characters"})
	}
	return errs
}
