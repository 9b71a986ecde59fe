package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Skotchmaster/shop_auth/internal/audit"
	"github.com/Skotchmaster/shop_auth/internal/events"
	pkg_hash "github.com/Skotchmaster/shop_auth/internal/hash"
	"github.com/Skotchmaster/shop_auth/internal/logging"
	"github.com/Skotchmaster/shop_auth/internal/models"
	"github.com/Skotchmaster/shop_auth/internal/repo"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
)

func (s *SessionManager) Register(ctx context.Context, name, email, password string) (*models.PublicUser, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	l := logging.FromContext(ctx).With("svc", "auth.register", "email", email)

	if name == "" || email == "" || !ValidPassword(password) {
		l.Warn("register_error", "status", 400, "reason", "invalid name, email or password")
		return nil, ErrValidation
	}

	u, err := s.createUser(ctx, name, email, password, models.RoleCustomer)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			l.Warn("register_error", "status", 409, "reason", "user already exist")
		} else {
			l.Error("register_error", "status", 500, "error", err)
		}
		return nil, err
	}

	l.Info("user_registered", "user_id", u.ID)
	s.notify(ctx, l, events.Event{Type: events.UserRegistered, UserID: u.ID, Email: u.Email, Role: u.Role})
	view := publicView(u, tokens.Customer)
	return &view, nil
}

func (s *SessionManager) createUser(ctx context.Context, name, email, password, role string) (*models.User, error) {
	pwHash, err := pkg_hash.HashPassword(password, s.BcryptCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{Name: name, Email: email, PasswordHash: pwHash, Role: role}
	if err := s.Users.CreateUserIfNotExists(ctx, u); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			return nil, ErrConflict
		}
		return nil, storageErr("create user", err)
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap admin, or promotes an existing account
// with that email. The password of an existing account is left alone.
func (s *SessionManager) EnsureAdmin(ctx context.Context, name, email, password string) (*models.PublicUser, error) {
	email = normalizeEmail(email)
	l := logging.FromContext(ctx).With("svc", "auth.bootstrap", "email", email)

	if email == "" || !ValidPassword(password) {
		return nil, ErrValidation
	}

	existing, err := s.Users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			if _, err := s.Users.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
				return nil, storageErr("promote admin", err)
			}
			l.Info("admin_promoted", "user_id", existing.ID)
		}
		view := publicView(existing, tokens.Admin)
		return &view, nil
	case !errors.Is(err, repo.ErrUserNotFound):
		return nil, storageErr("find user", err)
	}

	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	u, err := s.createUser(ctx, name, email, password, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	l.Info("admin_created", "user_id", u.ID)
	view := publicView(u, tokens.Admin)
	return &view, nil
}

// ChangeRole takes effect on the user's next refresh; live access tokens keep
// their role until they expire.
func (s *SessionManager) ChangeRole(ctx context.Context, actorID, userID uint, role string) (*models.PublicUser, error) {
	l := logging.FromContext(ctx).With("svc", "auth.change_role", "actor_id", actorID, "user_id", userID)

	if userID == 0 || !models.ValidRole(role) {
		l.Warn("change_role_failed", "status", 400, "reason", "invalid role")
		return nil, ErrValidation
	}
	if actorID == userID && role != models.RoleAdmin {
		l.Warn("change_role_failed", "status", 403, "reason", "admins cannot demote themselves")
		return nil, ErrForbidden
	}

	u, err := s.Users.SetRole(ctx, userID, role)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			l.Warn("change_role_failed", "status", 404, "reason", "user not found")
			return nil, ErrNotFound
		}
		l.Error("change_role_failed", "status", 500, "error", err)
		return nil, storageErr("set role", err)
	}

	l.Info("user_role_changed", "role", role)
	s.record(ctx, l, audit.Entry{Action: audit.RoleChanged, Track: tokens.Admin.String(), UserID: userID, Reason: role})
	s.notify(ctx, l, events.Event{Type: events.UserRoleChanged, UserID: u.ID, Email: u.Email, Role: u.Role})
	return &models.PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}, nil
}
