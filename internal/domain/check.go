package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CheckStatus is the processing state of a fact-check job.
type CheckStatus string

const (
	CheckStatusPending   CheckStatus = "pending"
	CheckStatusCompleted CheckStatus = "completed"
	CheckStatusFailed    CheckStatus = "failed"
	CheckStatusNoClaims  CheckStatus = "no_claims"
)

// ParseCheckStatus validates s against the closed set of statuses.
func ParseCheckStatus(s string) (CheckStatus, error) {
	switch st := CheckStatus(s); st {
	case CheckStatusPending, CheckStatusCompleted, CheckStatusFailed, CheckStatusNoClaims:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// User is an account known through the external identity provider.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ImageURL  *string   `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Text is a submitted piece of content, addressed by the hash of its trimmed form.
type Text struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	Content   string    `json:"content"`
	WordCount string    `json:"word_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Check is one fact-check run of a text on behalf of a user.
type Check struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	UserID      string          `json:"user_id"`
	TextID      string          `json:"text_id"`
	Status      CheckStatus     `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
