package repo

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shop_auth/internal/db"
	"github.com/Skotchmaster/shop_auth/internal/models"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.Open(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	return New(gdb, time.Second)
}

func seedUser(t *testing.T, r *GormRepo, email, role string) *models.User {
	t.Helper()
	u := &models.User{Name: "Ana", Email: email, PasswordHash: "hash", Role: role}
	require.NoError(t, r.CreateUserIfNotExists(context.Background(), u))
	return u
}

func TestUsers(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u := seedUser(t, r, "ana@x.com", models.RoleCustomer)
	require.NotZero(t, u.ID)

	err := r.CreateUserIfNotExists(ctx, &models.User{Name: "Other", Email: "ana@x.com", PasswordHash: "h", Role: models.RoleCustomer})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := r.FindUserByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = r.FindUserByEmail(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = r.FindUserByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, r.UpdatePassword(ctx, u.ID, "new-hash"))
	got, err = r.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.ErrorIs(t, r.UpdatePassword(ctx, 9999, "x"), ErrUserNotFound)

	promoted, err := r.SetRole(ctx, u.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)
	_, err = r.SetRole(ctx, 9999, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBlacklist(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	uid := uint(7)

	ok, err := r.IsBlacklisted(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, ok)

	entry := models.BlacklistEntry{SessionID: "sid-1", InvalidatedAt: 1000, UserID: &uid, Track: "customer"}
	inserted, err := r.AddToBlacklist(ctx, entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = r.AddToBlacklist(ctx, entry)
	require.NoError(t, err, "second insert must be a no-op")
	assert.False(t, inserted)

	var count int64
	require.NoError(t, r.DB.Model(&models.BlacklistEntry{}).Where("session_id = ?", "sid-1").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	ok, err = r.IsBlacklisted(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.AddToBlacklist(ctx, models.BlacklistEntry{SessionID: "sid-2", InvalidatedAt: 5000, Track: "admin"})
	require.NoError(t, err)

	n, err := r.PurgeBlacklist(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err = r.IsBlacklisted(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.IsBlacklisted(ctx, "sid-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConsumeResetToken(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "ana@x.com", models.RoleCustomer)

	const now = int64(10_000)
	require.NoError(t, r.SaveResetToken(ctx, "live", u.ID, now+3600))
	require.NoError(t, r.SaveResetToken(ctx, "stale", u.ID, now))

	owner, err := r.ConsumeResetToken(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, owner)

	_, err = r.ConsumeResetToken(ctx, "live", now)
	assert.ErrorIs(t, err, ErrResetUsed)

	_, err = r.ConsumeResetToken(ctx, "stale", now)
	assert.ErrorIs(t, err, ErrResetExpired)

	_, err = r.ConsumeResetToken(ctx, "missing", now)
	assert.ErrorIs(t, err, ErrResetNotFound)

	n, err := r.PurgeResetTokens(ctx, now+1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestConsumeResetToken_ConcurrentSingleWinner(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "ana@x.com", models.RoleCustomer)
	require.NoError(t, r.SaveResetToken(ctx, "race", u.ID, 20_000))

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ConsumeResetToken(ctx, "race", 10_000)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			losses = append(losses, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	require.Len(t, losses, workers-1)
	for _, err := range losses {
		assert.ErrorIs(t, err, ErrResetUsed)
	}
}

func TestRedisResetStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set; skipping redis test")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisResetStore(client, time.Second)
	s.Prefix = "auth:reset:test:" + t.Name() + ":"

	now := time.Now().Unix()
	require.NoError(t, s.SaveResetToken(ctx, "live", 42, now+3600))
	require.NoError(t, s.SaveResetToken(ctx, "stale", 42, now-1))
	t.Cleanup(func() { client.Del(ctx, s.key("live"), s.key("stale")) })

	owner, err := s.ConsumeResetToken(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, uint(42), owner)

	_, err = s.ConsumeResetToken(ctx, "live", now)
	assert.ErrorIs(t, err, ErrResetUsed)
	_, err = s.ConsumeResetToken(ctx, "stale", now)
	assert.ErrorIs(t, err, ErrResetExpired)
	_, err = s.ConsumeResetToken(ctx, "missing", now)
	assert.ErrorIs(t, err, ErrResetNotFound)
}
