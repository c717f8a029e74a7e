package auth

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents a row in the users table.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	GitHubToken  *string
	Settings     json.RawMessage // legacy client settings blob
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is stored in the request context after authentication.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
}
