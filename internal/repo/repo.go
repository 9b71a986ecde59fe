package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrResetNotFound = errors.New("reset token not found")
	ErrResetExpired  = errors.New("reset token expired")
	ErrResetUsed     = errors.New("reset token already used")
)

const defaultTimeout = 10 * time.Second

// GormRepo is the relational credential, blacklist and reset-token store.
type GormRepo struct {
	DB      *gorm.DB
	Timeout time.Duration
}

func New(db *gorm.DB, timeout time.Duration) *GormRepo {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &GormRepo{DB: db, Timeout: timeout}
}

func (r *GormRepo) withTimeout(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	return r.DB.WithContext(ctx), cancel
}
