package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Webhook header names.
const (
	HeaderEvent     = "X-GitHub-Event"
	HeaderSignature = "X-Hub-Signature-256"
	HeaderDelivery  = "X-GitHub-Delivery"
)

const signaturePrefix = "sha256="

// ErrSignatureMismatch is returned when a delivery's signature does not match
// the body under the configured secret.
var ErrSignatureMismatch = errors.New("webhook signature mismatch")

// ErrNoSecret is returned when the project has no webhook secret to verify with.
var ErrNoSecret = errors.New("webhook secret not configured")

// Sign returns the X-Hub-Signature-256 value for body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of body in constant time.
func VerifySignature(body []byte, secret, header string) error {
	if secret == "" {
		return ErrNoSecret
	}
	hexSig, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return ErrSignatureMismatch
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}

// PushEvent is the subset of a push delivery the sync path reads.
type PushEvent struct {
	Ref        string     `json:"ref"`
	Before     string     `json:"before"`
	After      string     `json:"after"`
	Repository Repository `json:"repository"`
	HeadCommit *Commit    `json:"head_commit"`
	Pusher     struct {
		Name string `json:"name"`
	} `json:"pusher"`
}

// Repository identifies the repository a delivery concerns.
type Repository struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

// Commit is a commit summary inside a push delivery.
type Commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Branch returns the branch name of a refs/heads/ ref, or "" for tags.
func (e *PushEvent) Branch() string {
	branch, ok := strings.CutPrefix(e.Ref, "refs/heads/")
	if !ok {
		return ""
	}
	return branch
}
