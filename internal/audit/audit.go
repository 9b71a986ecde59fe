package audit

import (
	"context"
	"time"
)

const (
	LoginSucceeded         = "login_succeeded"
	LoginFailed            = "login_failed"
	Logout                 = "logout"
	RefreshFailed          = "refresh_failed"
	PasswordResetRequested = "password_reset_requested"
	PasswordResetCompleted = "password_reset_completed"
	PasswordResetFailed    = "password_reset_failed"
	RoleChanged            = "role_changed"
)

// Entry is one security decision. It never carries token values.
type Entry struct {
	Action    string    `json:"action"`
	Track     string    `json:"track,omitempty"`
	UserID    uint      `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	RemoteIP  string    `json:"remote_ip,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"@timestamp"`
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

type ipKey struct{}

func WithRemoteIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

func RemoteIP(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey{}).(string)
	return ip
}
