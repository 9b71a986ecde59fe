package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shop_auth/internal/models"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
)

func TestSessionManager_Register(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()

	u, err := env.Sessions.Register(ctx, "Ana", "Ana@X.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", u.Email)
	assert.Equal(t, models.RoleCustomer, u.Role)

	stored, err := env.Repo.FindUserByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)

	_, err = env.Sessions.Register(ctx, "Ana again", "ana@x.com", "secret1")
	assert.ErrorIs(t, err, ErrConflict)

	tests := []struct {
		name, userName, email, password string
	}{
		{name: "empty name", userName: " ", email: "b@x.com", password: "secret1"},
		{name: "empty email", userName: "B", email: "", password: "secret1"},
		{name: "short password", userName: "B", email: "b@x.com", password: "12345"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Sessions.Register(ctx, tt.userName, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSessionManager_EnsureAdmin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()

	created, err := env.Sessions.EnsureAdmin(ctx, "", "root@x.com", "rootpass")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, created.Role)
	assert.Equal(t, "Administrator", created.Name)

	again, err := env.Sessions.EnsureAdmin(ctx, "", "root@x.com", "ignored-pass")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = env.Sessions.Login(ctx, tokens.Admin, "root@x.com", "rootpass")
	require.NoError(t, err, "existing password is kept")

	env.seed(t, "Ana", "ana@x.com", "secret1", models.RoleCustomer)
	_, err = env.Sessions.EnsureAdmin(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	_, err = env.Sessions.Login(ctx, tokens.Admin, "ana@x.com", "secret1")
	assert.NoError(t, err)
}

func TestSessionManager_ChangeRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	root := env.seed(t, "Root", "root@x.com", "rootpass", models.RoleAdmin)
	ana := env.seed(t, "Ana", "ana@x.com", "secret1", models.RoleCustomer)

	_, err := env.Sessions.Login(ctx, tokens.Admin, "ana@x.com", "secret1")
	require.ErrorIs(t, err, ErrForbidden)

	u, err := env.Sessions.ChangeRole(ctx, root.ID, ana.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	_, err = env.Sessions.Login(ctx, tokens.Admin, "ana@x.com", "secret1")
	require.NoError(t, err)

	_, err = env.Sessions.ChangeRole(ctx, root.ID, ana.ID, "superuser")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.Sessions.ChangeRole(ctx, root.ID, 9999, models.RoleCustomer)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.Sessions.ChangeRole(ctx, root.ID, root.ID, models.RoleCustomer)
	assert.ErrorIs(t, err, ErrForbidden)
}
