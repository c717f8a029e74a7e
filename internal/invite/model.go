package invite

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adorable-dev/adorable/internal/team"
)

// State is the lifecycle position of an invite. Only pending invites can be
// redeemed or revoked; the other states are terminal.
type State string

const (
	StatePending  State = "pending"
	StateRedeemed State = "redeemed"
	StateExpired  State = "expired"
	StateRevoked  State = "revoked"
)

// CodeLength is the number of hex characters in an invite code.
const CodeLength = 8

// Invite represents a row in the team_invites table.
type Invite struct {
	ID        uuid.UUID
	TeamID    uuid.UUID
	Code      string
	Email     *string
	Role      team.Role
	CreatedBy uuid.UUID
	ExpiresAt *time.Time
	UsedBy    *uuid.UUID
	UsedAt    *time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// State computes the invite's lifecycle state at now. Redemption wins over
// revocation and expiry, revocation over expiry.
func (i *Invite) State(now time.Time) State {
	switch {
	case i.UsedAt != nil:
		return StateRedeemed
	case i.RevokedAt != nil:
		return StateRevoked
	case i.ExpiresAt != nil && !now.Before(*i.ExpiresAt):
		return StateExpired
	default:
		return StatePending
	}
}

// CheckRedeemable returns nil when a caller with the given email may redeem
// the invite at now, or the rejection explaining why not.
func (i *Invite) CheckRedeemable(now time.Time, email string) error {
	switch i.State(now) {
	case StateRedeemed:
		return ErrInviteUsed
	case StateRevoked:
		return ErrInviteRevoked
	case StateExpired:
		return ErrInviteExpired
	}
	if i.Email != nil && !strings.EqualFold(strings.TrimSpace(*i.Email), strings.TrimSpace(email)) {
		return ErrEmailMismatch
	}
	return nil
}

// GenerateCode returns a random code of CodeLength lower-case hex characters.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating invite code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NormalizeCode lower-cases and trims a code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
