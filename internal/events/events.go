package events

import (
	"context"
	"time"
)

const (
	UserRegistered         = "user_registered"
	UserLoggedIn           = "user_logged_in"
	UserLoggedOut          = "user_logged_out"
	SessionRefreshed       = "session_refreshed"
	PasswordResetRequested = "password_reset_requested"
	PasswordResetCompleted = "password_reset_completed"
	UserRoleChanged        = "user_role_changed"
)

// Event is the JSON payload written to the user events topic. Token is only
// set on password_reset_requested, for the mailer. It is the raw reset token
// in every environment, so the topic must be readable by the mailer alone:
// restrict consumer ACLs and keep it out of shared log pipelines.
type Event struct {
	Type       string     `json:"type"`
	UserID     uint       `json:"user_id"`
	Email      string     `json:"email,omitempty"`
	Track      string     `json:"track,omitempty"`
	Role       string     `json:"role,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
