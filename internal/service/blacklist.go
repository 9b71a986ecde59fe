package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/shop_auth/internal/logging"
	"github.com/Skotchmaster/shop_auth/internal/models"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
)

// Blacklist wraps the durable store with the fail-open read policy.
type Blacklist struct {
	Store    BlacklistStore
	FailOpen bool
	Now      func() time.Time
}

func NewBlacklist(store BlacklistStore, failOpen bool) *Blacklist {
	return &Blacklist{Store: store, FailOpen: failOpen, Now: time.Now}
}

// Add reports whether the session id was newly invalidated.
func (b *Blacklist) Add(ctx context.Context, sessionID string, userID uint, track tokens.Track) (bool, error) {
	entry := models.BlacklistEntry{
		SessionID:     sessionID,
		InvalidatedAt: b.Now().Unix(),
		Track:         track.String(),
	}
	if userID != 0 {
		entry.UserID = &userID
	}
	inserted, err := b.Store.AddToBlacklist(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("%w: blacklist add: %w", ErrStorageUnavailable, err)
	}
	return inserted, nil
}

func (b *Blacklist) Contains(ctx context.Context, sessionID string) (bool, error) {
	ok, err := b.Store.IsBlacklisted(ctx, sessionID)
	if err == nil {
		return ok, nil
	}
	if b.FailOpen {
		logging.FromContext(ctx).Warn("blacklist_unavailable", "policy", "fail_open", "error", err)
		return false, nil
	}
	return false, fmt.Errorf("%w: blacklist lookup: %w", ErrStorageUnavailable, err)
}

func (b *Blacklist) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	n, err := b.Store.PurgeBlacklist(ctx, b.Now().Add(-age).Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: blacklist purge: %w", ErrStorageUnavailable, err)
	}
	return n, nil
}
