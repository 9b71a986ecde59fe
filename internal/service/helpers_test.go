package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/shop_auth/internal/db"
	"github.com/Skotchmaster/shop_auth/internal/events"
	"github.com/Skotchmaster/shop_auth/internal/models"
	"github.com/Skotchmaster/shop_auth/internal/repo"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, e events.Event) error {
	return m.Called(ctx, e).Error(0)
}

type testEnv struct {
	Repo     *repo.GormRepo
	Clock    *fakeClock
	Sessions *SessionManager
	Resets   *ResetManager
	Events   *mockPublisher
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.Open(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := repo.New(gdb, time.Second)
	clock := newClock()
	keys := tokens.NewKeyring(
		tokens.NewTrackCodecs(tokens.Customer, []byte("c-access"), []byte("c-refresh"), tokens.WithClock(clock.Now)),
		tokens.NewTrackCodecs(tokens.Admin, []byte("a-access"), []byte("a-refresh"), tokens.WithClock(clock.Now)),
	)

	bl := NewBlacklist(r, true)
	bl.Now = clock.Now

	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	sm := NewSessionManager(r, keys, bl, opts)
	sm.Now = clock.Now
	sm.Events = pub

	rm := NewResetManager(r, r, time.Hour, bcrypt.MinCost)
	rm.Now = clock.Now
	rm.Events = pub

	return &testEnv{Repo: r, Clock: clock, Sessions: sm, Resets: rm, Events: pub}
}

func defaultOptions() Options {
	return Options{AccessTTL: time.Hour, RefreshTTL: 7 * 24 * time.Hour, RotateRevokesPrevious: true}
}

func (e *testEnv) seed(t *testing.T, name, email, password, role string) *models.User {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Name: name, Email: email, PasswordHash: string(h), Role: role}
	require.NoError(t, e.Repo.CreateUserIfNotExists(context.Background(), u))
	return u
}
