package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/shop_auth/internal/logging"
)

// Purger prunes old blacklist rows and expired reset tokens on a ticker.
type Purger struct {
	Blacklist *Blacklist
	Resets    *ResetManager
	Retention time.Duration
	Interval  time.Duration
}

func (p *Purger) RunOnce(ctx context.Context) {
	l := logging.FromContext(ctx).With("svc", "auth.purge")

	if n, err := p.Blacklist.PurgeOlderThan(ctx, p.Retention); err != nil {
		l.Error("purge_failed", "table", "session_blacklist", "error", err)
	} else if n > 0 {
		l.Info("purge_completed", "table", "session_blacklist", "deleted", n)
	}

	if p.Resets == nil {
		return
	}
	if n, err := p.Resets.Purge(ctx); err != nil {
		l.Error("purge_failed", "table", "password_reset_tokens", "error", err)
	} else if n > 0 {
		l.Info("purge_completed", "table", "password_reset_tokens", "deleted", n)
	}
}

// Run blocks until ctx is cancelled.
func (p *Purger) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	p.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.RunOnce(ctx)
		}
	}
}
