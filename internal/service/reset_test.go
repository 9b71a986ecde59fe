package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shop_auth/internal/events"
	pkg_hash "github.com/Skotchmaster/shop_auth/internal/hash"
	"github.com/Skotchmaster/shop_auth/internal/models"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
)

func TestResetManager_CreateResetToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultOptions())
	u := env.seed(t, "Ana", "ana@x.com", "secret1", models.RoleCustomer)
	ctx := context.Background()

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Type == events.PasswordResetRequested && e.UserID == u.ID && e.Token != "" && e.ExpiresAt != nil
	})).Return(nil).Once()
	env.Resets.Events = pub

	req, err := env.Resets.CreateResetToken(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.True(t, req.Success)
	assert.NotEmpty(t, req.Token)
	assert.True(t, req.ExpiresAt.Equal(env.Clock.Now().Add(time.Hour)))
	env.Resets.Wait()
	pub.AssertExpectations(t)

	var stored models.PasswordResetToken
	require.NoError(t, env.Repo.DB.Where("user_id = ?", u.ID).First(&stored).Error)
	assert.Equal(t, pkg_hash.Sha256Hex(req.Token), stored.Token, "only the hash is persisted")
	assert.False(t, stored.Used)

	unknown, err := env.Resets.CreateResetToken(ctx, "ghost@x.com")
	require.NoError(t, err)
	assert.False(t, unknown.Success)
	assert.Empty(t, unknown.Token)

	_, err = env.Resets.CreateResetToken(ctx, "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

type countingResetStore struct {
	ResetStore
	mu       sync.Mutex
	saves    int
	consumes int
}

func (s *countingResetStore) SaveResetToken(ctx context.Context, hash string, userID uint, expiresAt int64) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.ResetStore.SaveResetToken(ctx, hash, userID, expiresAt)
}

func (s *countingResetStore) ConsumeResetToken(ctx context.Context, hash string, now int64) (uint, error) {
	s.mu.Lock()
	s.consumes++
	s.mu.Unlock()
	return s.ResetStore.ConsumeResetToken(ctx, hash, now)
}

func TestResetManager_CreateResetToken_UnknownEmailMatchesKnownPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultOptions())
	env.seed(t, "Ana", "ana@x.com", "secret1", models.RoleCustomer)
	ctx := context.Background()

	store := &countingResetStore{ResetStore: env.Repo}
	env.Resets.Store = store

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	env.Resets.Events = pub

	unknown, err := env.Resets.CreateResetToken(ctx, "ghost@x.com")
	require.NoError(t, err)
	assert.False(t, unknown.Success)
	env.Resets.Wait()

	store.mu.Lock()
	assert.Equal(t, 0, store.saves)
	assert.Equal(t, 1, store.consumes, "unknown emails still make one store round trip")
	store.mu.Unlock()
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)

	known, err := env.Resets.CreateResetToken(ctx, "ana@x.com")
	require.NoError(t, err)
	require.True(t, known.Success)
	env.Resets.Wait()

	store.mu.Lock()
	assert.Equal(t, 1, store.saves)
	store.mu.Unlock()
	pub.AssertNumberOfCalls(t, "Publish", 1)

	require.NoError(t, env.Resets.RedeemResetToken(ctx, known.Token, "brand-new"))
}

type blockingPublisher struct {
	release chan struct{}
	done    chan events.Event
}

func (p *blockingPublisher) Publish(ctx context.Context, e events.Event) error {
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.done <- e
	return nil
}

func TestResetManager_CreateResetToken_DoesNotWaitForPublisher(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultOptions())
	env.seed(t, "Ana", "ana@x.com", "secret1", models.RoleCustomer)

	pub := &blockingPublisher{release: make(chan struct{}), done: make(chan events.Event, 1)}
	env.Resets.Events = pub

	ctx, cancel := context.WithCancel(context.Background())
	req, err := env.Resets.CreateResetToken(ctx, "ana@x.com")
	require.NoError(t, err)
	require.True(t, req.Success)

	// the request is over; its cancellation must not drop the mailer event
	cancel()
	close(pub.release)

	select {
	case e := <-pub.done:
		assert.Equal(t, events.PasswordResetRequested, e.Type)
		assert.Equal(t, req.Token, e.Token)
	case <-time.After(5 * time.Second):
		t.Fatal("reset event was not published")
	}
	env.Resets.Wait()
}

func TestResetManager_RedeemResetToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultOptions())
	env.seed(t, "Ana", "ana@x.com", "secret1", models.RoleCustomer)
	ctx := context.Background()

	req, err := env.Resets.CreateResetToken(ctx, "ana@x.com")
	require.NoError(t, err)

	require.NoError(t, env.Resets.RedeemResetToken(ctx, req.Token, "brand-new"))

	_, err = env.Sessions.Login(ctx, tokens.Customer, "ana@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.Sessions.Login(ctx, tokens.Customer, "ana@x.com", "brand-new")
	require.NoError(t, err)

	assert.ErrorIs(t, env.Resets.RedeemResetToken(ctx, req.Token, "another1"), ErrResetUsed)
	assert.ErrorIs(t, env.Resets.RedeemResetToken(ctx, "never-issued", "another1"), ErrResetNotFound)
	assert.ErrorIs(t, env.Resets.RedeemResetToken(ctx, "", "another1"), ErrValidation)
	assert.ErrorIs(t, env.Resets.RedeemResetToken(ctx, req.Token, "short"), ErrValidation)

	stale, err := env.Resets.CreateResetToken(ctx, "ana@x.com")
	require.NoError(t, err)
	env.Clock.Advance(time.Hour)
	assert.ErrorIs(t, env.Resets.RedeemResetToken(ctx, stale.Token, "another1"), ErrResetExpired)
}

func TestResetManager_ConcurrentRedeemHasOneWinner(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultOptions())
	env.seed(t, "Ana", "ana@x.com", "secret1", models.RoleCustomer)
	ctx := context.Background()

	req, err := env.Resets.CreateResetToken(ctx, "ana@x.com")
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.Resets.RedeemResetToken(ctx, req.Token, "parallel-pass")
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrResetUsed)
	}
	assert.Equal(t, 1, wins)
}

func TestPurger_RunOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultOptions())
	env.seed(t, "Ana", "ana@x.com", "secret1", models.RoleCustomer)
	ctx := context.Background()

	sess, err := env.Sessions.Login(ctx, tokens.Customer, "ana@x.com", "secret1")
	require.NoError(t, err)
	env.Sessions.Logout(ctx, tokens.Customer, sess.AccessToken, "")
	_, err = env.Resets.CreateResetToken(ctx, "ana@x.com")
	require.NoError(t, err)

	p := &Purger{Blacklist: env.Sessions.Blacklist, Resets: env.Resets, Retention: 7 * 24 * time.Hour}

	p.RunOnce(ctx)
	ok, err := env.Repo.IsBlacklisted(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.True(t, ok, "fresh entries survive")

	env.Clock.Advance(7*24*time.Hour + time.Second)
	p.RunOnce(ctx)

	ok, err = env.Repo.IsBlacklisted(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.False(t, ok)

	var left int64
	require.NoError(t, env.Repo.DB.Model(&models.PasswordResetToken{}).Count(&left).Error)
	assert.Zero(t, left)
}

func TestPurger_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultOptions())
	p := &Purger{Blacklist: env.Sessions.Blacklist, Retention: time.Hour, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purger did not stop")
	}
}
