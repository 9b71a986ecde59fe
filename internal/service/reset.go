package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Skotchmaster/shop_auth/internal/audit"
	"github.com/Skotchmaster/shop_auth/internal/events"
	pkg_hash "github.com/Skotchmaster/shop_auth/internal/hash"
	"github.com/Skotchmaster/shop_auth/internal/logging"
	"github.com/Skotchmaster/shop_auth/internal/repo"
)

type ResetManager struct {
	Users      UserStore
	Store      ResetStore
	TTL        time.Duration
	BcryptCost int
	Events     events.Publisher
	Audit      audit.Recorder
	Now        func() time.Time
	NewToken   func() (string, error)

	pending sync.WaitGroup
}

func NewResetManager(users UserStore, store ResetStore, ttl time.Duration, bcryptCost int) *ResetManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if bcryptCost == 0 {
		bcryptCost = 10
	}
	return &ResetManager{
		Users:      users,
		Store:      store,
		TTL:        ttl,
		BcryptCost: bcryptCost,
		Events:     events.Nop{},
		Audit:      audit.Nop{},
		Now:        time.Now,
		NewToken:   pkg_hash.NewOpaqueToken,
	}
}

// ResetRequest carries the raw token only when Success is true. Callers must
// answer unknown emails exactly like known ones.
type ResetRequest struct {
	Success   bool
	Token     string
	ExpiresAt time.Time
}

func (m *ResetManager) CreateResetToken(ctx context.Context, email string) (ResetRequest, error) {
	email = normalizeEmail(email)
	l := logging.FromContext(ctx).With("svc", "auth.forgot_password")

	if email == "" {
		return ResetRequest{}, ErrValidation
	}

	user, err := m.Users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			l.Info("password_reset_skipped", "reason", "unknown email")
			m.padUnknownEmail(ctx)
			return ResetRequest{Success: false}, nil
		}
		l.Error("password_reset_failed", "status", 500, "error", err)
		return ResetRequest{}, storageErr("find user", err)
	}

	raw, err := m.NewToken()
	if err != nil {
		l.Error("password_reset_failed", "status", 500, "error", err)
		return ResetRequest{}, err
	}
	expiresAt := m.Now().Add(m.TTL).UTC().Truncate(time.Second)

	if err := m.Store.SaveResetToken(ctx, pkg_hash.Sha256Hex(raw), user.ID, expiresAt.Unix()); err != nil {
		l.Error("password_reset_failed", "status", 500, "error", err)
		return ResetRequest{}, storageErr("save reset token", err)
	}

	l.Info("password_reset_requested", "user_id", user.ID)
	m.dispatch(ctx, func(ctx context.Context) {
		m.record(ctx, audit.Entry{Action: audit.PasswordResetRequested, UserID: user.ID, Email: user.Email})
		m.notify(ctx, events.Event{
			Type:      events.PasswordResetRequested,
			UserID:    user.ID,
			Email:     user.Email,
			Token:     raw,
			ExpiresAt: &expiresAt,
		})
	})

	return ResetRequest{Success: true, Token: raw, ExpiresAt: expiresAt}, nil
}

// RedeemResetToken consumes the token, then replaces the password hash. The
// token is burnt even if the password write fails afterwards.
func (m *ResetManager) RedeemResetToken(ctx context.Context, token, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.reset_password")

	if token == "" || !ValidPassword(newPassword) {
		l.Warn("password_reset_failed", "status", 400, "reason", "token and a 6 to 72 character password are required")
		return ErrValidation
	}

	pwHash, err := pkg_hash.HashPassword(newPassword, m.BcryptCost)
	if err != nil {
		l.Error("password_reset_failed", "status", 500, "error", err)
		return err
	}

	userID, err := m.Store.ConsumeResetToken(ctx, pkg_hash.Sha256Hex(token), m.Now().Unix())
	if err != nil {
		var mapped error
		switch {
		case errors.Is(err, repo.ErrResetExpired):
			mapped = ErrResetExpired
		case errors.Is(err, repo.ErrResetUsed):
			mapped = ErrResetUsed
		case errors.Is(err, repo.ErrResetNotFound):
			mapped = ErrResetNotFound
		default:
			l.Error("password_reset_failed", "status", 500, "error", err)
			return storageErr("consume reset token", err)
		}
		l.Warn("password_reset_failed", "reason", mapped.Error())
		m.record(ctx, audit.Entry{Action: audit.PasswordResetFailed, Reason: mapped.Error()})
		return mapped
	}

	if err := m.Users.UpdatePassword(ctx, userID, pwHash); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			l.Warn("password_reset_failed", "reason", "owner no longer exists", "user_id", userID)
			return ErrResetNotFound
		}
		l.Error("password_reset_failed", "status", 500, "error", err, "user_id", userID)
		return storageErr("update password", err)
	}

	l.Info("password_reset_completed", "user_id", userID)
	m.record(ctx, audit.Entry{Action: audit.PasswordResetCompleted, UserID: userID})
	m.notify(ctx, events.Event{Type: events.PasswordResetCompleted, UserID: userID})
	return nil
}

// padUnknownEmail makes the same token draw and one store round trip as a
// known email, so response time does not reveal whether an account exists.
func (m *ResetManager) padUnknownEmail(ctx context.Context) {
	raw, err := m.NewToken()
	if err != nil {
		return
	}
	_, _ = m.Store.ConsumeResetToken(ctx, pkg_hash.Sha256Hex(raw), m.Now().Unix())
}

// dispatch runs fn after the caller returns. fn keeps the request's values
// but not its cancellation.
func (m *ResetManager) dispatch(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		fn(ctx)
	}()
}

// Wait blocks until every dispatched event and audit write has finished.
func (m *ResetManager) Wait() { m.pending.Wait() }

func (m *ResetManager) Purge(ctx context.Context) (int64, error) {
	n, err := m.Store.PurgeResetTokens(ctx, m.Now().Unix())
	if err != nil {
		return 0, storageErr("purge reset tokens", err)
	}
	return n, nil
}

func (m *ResetManager) notify(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = m.Now().UTC()
	}
	if err := m.Events.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "event", e.Type, "error", err)
	}
}

func (m *ResetManager) record(ctx context.Context, e audit.Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = m.Now().UTC()
	}
	if err := m.Audit.Record(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("audit_record_failed", "action", e.Action, "error", err)
	}
}
