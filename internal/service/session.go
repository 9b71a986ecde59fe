package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/shop_auth/internal/audit"
	"github.com/Skotchmaster/shop_auth/internal/events"
	pkg_hash "github.com/Skotchmaster/shop_auth/internal/hash"
	"github.com/Skotchmaster/shop_auth/internal/logging"
	"github.com/Skotchmaster/shop_auth/internal/models"
	"github.com/Skotchmaster/shop_auth/internal/repo"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
)

const (
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

// ValidPassword counts bytes, not runes: bcrypt reads at most 72 bytes.
func ValidPassword(p string) bool { return len(p) >= minPasswordLen && len(p) <= maxPasswordLen }

type Options struct {
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	BcryptCost            int
	RotateRevokesPrevious bool
}

type SessionManager struct {
	Users     UserStore
	Keys      *tokens.Keyring
	Blacklist *Blacklist
	Events    events.Publisher
	Audit     audit.Recorder

	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	BcryptCost            int
	RotateRevokesPrevious bool

	Now          func() time.Time
	NewSessionID func() string

	dummyOnce sync.Once
	dummyHash string
}

func NewSessionManager(users UserStore, keys *tokens.Keyring, bl *Blacklist, opts Options) *SessionManager {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 10
	}
	return &SessionManager{
		Users:                 users,
		Keys:                  keys,
		Blacklist:             bl,
		Events:                events.Nop{},
		Audit:                 audit.Nop{},
		AccessTTL:             opts.AccessTTL,
		RefreshTTL:            opts.RefreshTTL,
		BcryptCost:            opts.BcryptCost,
		RotateRevokesPrevious: opts.RotateRevokesPrevious,
		Now:                   time.Now,
		NewSessionID:          uuid.NewString,
	}
}

// Session is a freshly minted token pair bound to one session id.
type Session struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	SessionID    string
	User         models.PublicUser
}

type Status struct {
	IsAuthenticated bool
	User            *models.PublicUser
}

type LogoutResult struct {
	Revoked []string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func publicView(u *models.User, track tokens.Track) models.PublicUser {
	return models.PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: track.Role()}
}

func claimsView(c *tokens.Claims) models.PublicUser {
	return models.PublicUser{ID: c.UserID, Name: c.Name, Email: c.Email, Role: c.Role}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// checkUnknownPassword burns one bcrypt comparison so unknown emails cost
// the same as wrong passwords.
func (s *SessionManager) checkUnknownPassword(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = pkg_hash.HashPassword("not-a-real-password", s.BcryptCost)
	})
	pkg_hash.CheckPassword(s.dummyHash, password)
}

func (s *SessionManager) mint(track tokens.Track, u *models.User) (*Session, error) {
	sid := s.NewSessionID()
	base := tokens.Claims{
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      track.Role(),
		SessionID: sid,
	}

	access := base
	access.Type = tokens.TypeAccess
	accessToken, accessExp, err := s.Keys.Access(track).Issue(access, s.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh := base
	refresh.Type = tokens.TypeRefresh
	refreshToken, refreshExp, err := s.Keys.Refresh(track).Issue(refresh, s.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		SessionID:    sid,
		User:         publicView(u, track),
	}, nil
}

func (s *SessionManager) Login(ctx context.Context, track tokens.Track, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	l := logging.FromContext(ctx).With("svc", "auth.login", "track", track.String(), "email", email)

	if !track.Valid() || email == "" || password == "" {
		l.Warn("login_failed", "status", 400, "reason", "email and password are required")
		return nil, ErrValidation
	}

	user, err := s.Users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			s.checkUnknownPassword(password)
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			s.record(ctx, l, audit.Entry{Action: audit.LoginFailed, Track: track.String(), Email: email, Reason: "invalid_credentials"})
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, storageErr("find user", err)
	}

	if !pkg_hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "password mismatch", "user_id", user.ID)
		s.record(ctx, l, audit.Entry{Action: audit.LoginFailed, Track: track.String(), UserID: user.ID, Email: email, Reason: "invalid_credentials"})
		return nil, ErrInvalidCredentials
	}

	if !track.Permits(user.Role) {
		l.Warn("login_failed", "status", 403, "reason", "role not permitted on track", "user_id", user.ID)
		s.record(ctx, l, audit.Entry{Action: audit.LoginFailed, Track: track.String(), UserID: user.ID, Email: email, Reason: "forbidden"})
		return nil, ErrForbidden
	}

	sess, err := s.mint(track, user)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	l.Info("login_succeeded", "user_id", user.ID, "sid", sess.SessionID)
	s.record(ctx, l, audit.Entry{Action: audit.LoginSucceeded, Track: track.String(), UserID: user.ID, Email: email})
	s.notify(ctx, l, events.Event{Type: events.UserLoggedIn, UserID: user.ID, Email: user.Email, Track: track.String(), SessionID: sess.SessionID})
	return sess, nil
}

func (s *SessionManager) Refresh(ctx context.Context, track tokens.Track, refreshToken string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh", "track", track.String())

	if !track.Valid() {
		return nil, ErrUnauthorized
	}

	claims, err := s.Keys.Refresh(track).Verify(refreshToken)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", err.Error())
		s.record(ctx, l, audit.Entry{Action: audit.RefreshFailed, Track: track.String(), Reason: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Type != tokens.TypeRefresh || claims.SessionID == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "not a refresh token")
		return nil, ErrUnauthorized
	}
	l = l.With("user_id", claims.UserID, "sid", claims.SessionID)

	if !s.RotateRevokesPrevious {
		revoked, err := s.Blacklist.Contains(ctx, claims.SessionID)
		if err != nil {
			l.Error("refresh_failed", "status", 500, "error", err)
			return nil, err
		}
		if revoked {
			l.Warn("refresh_failed", "status", 401, "reason", "session revoked")
			s.record(ctx, l, audit.Entry{Action: audit.RefreshFailed, Track: track.String(), UserID: claims.UserID, Reason: "session_revoked"})
			return nil, ErrUnauthorized
		}
	}

	user, err := s.Users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "user no longer exists")
			return nil, ErrUnauthorized
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, storageErr("find user", err)
	}
	if !track.Permits(user.Role) {
		l.Warn("refresh_failed", "status", 401, "reason", "role no longer permitted")
		s.record(ctx, l, audit.Entry{Action: audit.RefreshFailed, Track: track.String(), UserID: user.ID, Reason: "role_revoked"})
		return nil, ErrUnauthorized
	}

	if s.RotateRevokesPrevious {
		// Winning the insert is what makes the old refresh token single-use.
		inserted, err := s.Blacklist.Add(ctx, claims.SessionID, user.ID, track)
		if err != nil {
			l.Error("refresh_failed", "status", 500, "error", err)
			return nil, err
		}
		if !inserted {
			l.Warn("refresh_failed", "status", 401, "reason", "session revoked")
			s.record(ctx, l, audit.Entry{Action: audit.RefreshFailed, Track: track.String(), UserID: user.ID, Reason: "session_revoked"})
			return nil, ErrUnauthorized
		}
	}

	sess, err := s.mint(track, user)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	l.Info("session_refreshed", "new_sid", sess.SessionID)
	s.notify(ctx, l, events.Event{Type: events.SessionRefreshed, UserID: user.ID, Track: track.String(), SessionID: sess.SessionID})
	return sess, nil
}

// Logout blacklists every session id recoverable from the given tokens.
// Invalid tokens and storage failures are logged, never returned.
func (s *SessionManager) Logout(ctx context.Context, track tokens.Track, accessToken, refreshToken string) LogoutResult {
	l := logging.FromContext(ctx).With("svc", "auth.logout", "track", track.String())

	var res LogoutResult
	if !track.Valid() {
		return res
	}

	type target struct {
		sid    string
		userID uint
	}
	var targets []target
	seen := map[string]bool{}
	for _, c := range []struct {
		raw   string
		codec *tokens.Codec
	}{
		{accessToken, s.Keys.Access(track)},
		{refreshToken, s.Keys.Refresh(track)},
	} {
		if c.raw == "" {
			continue
		}
		claims, err := c.codec.Inspect(c.raw)
		if err != nil {
			l.Debug("logout_token_ignored", "reason", err.Error())
			continue
		}
		if claims.SessionID == "" || seen[claims.SessionID] {
			continue
		}
		seen[claims.SessionID] = true
		targets = append(targets, target{sid: claims.SessionID, userID: claims.UserID})
	}

	for _, tg := range targets {
		if _, err := s.Blacklist.Add(ctx, tg.sid, tg.userID, track); err != nil {
			l.Error("logout_blacklist_failed", "sid", tg.sid, "error", err)
			continue
		}
		res.Revoked = append(res.Revoked, tg.sid)
		l.Info("user_logged_out", "user_id", tg.userID, "sid", tg.sid)
		s.record(ctx, l, audit.Entry{Action: audit.Logout, Track: track.String(), UserID: tg.userID})
		s.notify(ctx, l, events.Event{Type: events.UserLoggedOut, UserID: tg.userID, Track: track.String(), SessionID: tg.sid})
	}
	return res
}

// Status never rotates tokens. An unusable access token falls back to the
// refresh token, re-reading the user so role changes are respected.
func (s *SessionManager) Status(ctx context.Context, track tokens.Track, accessToken, refreshToken string) (Status, error) {
	l := logging.FromContext(ctx).With("svc", "auth.status", "track", track.String())

	if !track.Valid() {
		return Status{}, nil
	}

	if accessToken != "" {
		claims, err := s.Authenticate(ctx, track, accessToken)
		switch {
		case err == nil:
			u := claimsView(claims)
			return Status{IsAuthenticated: true, User: &u}, nil
		case errors.Is(err, ErrStorageUnavailable):
			l.Error("status_failed", "status", 500, "error", err)
			return Status{}, err
		}
	}

	if refreshToken == "" {
		return Status{}, nil
	}

	claims, err := s.Keys.Refresh(track).Verify(refreshToken)
	if err != nil || claims.Type != tokens.TypeRefresh || claims.SessionID == "" {
		return Status{}, nil
	}
	revoked, err := s.Blacklist.Contains(ctx, claims.SessionID)
	if err != nil {
		l.Error("status_failed", "status", 500, "error", err)
		return Status{}, err
	}
	if revoked {
		return Status{}, nil
	}

	user, err := s.Users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return Status{}, nil
		}
		l.Error("status_failed", "status", 500, "error", err)
		return Status{}, storageErr("find user", err)
	}
	if !track.Permits(user.Role) {
		return Status{}, nil
	}
	u := publicView(user, track)
	return Status{IsAuthenticated: true, User: &u}, nil
}

// Authenticate validates an access token for a protected request.
func (s *SessionManager) Authenticate(ctx context.Context, track tokens.Track, accessToken string) (*tokens.Claims, error) {
	if !track.Valid() {
		return nil, ErrUnauthorized
	}
	claims, err := s.Keys.Access(track).Verify(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Type != tokens.TypeAccess || claims.SessionID == "" || claims.Role != track.Role() {
		return nil, ErrUnauthorized
	}
	revoked, err := s.Blacklist.Contains(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (s *SessionManager) notify(ctx context.Context, l *slog.Logger, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.Now().UTC()
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		l.Warn("event_publish_failed", "event", e.Type, "error", err)
	}
}

func (s *SessionManager) record(ctx context.Context, l *slog.Logger, e audit.Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.Now().UTC()
	}
	if err := s.Audit.Record(ctx, e); err != nil {
		l.Warn("audit_record_failed", "action", e.Action, "error", err)
	}
}
