package service

import (
	"context"

	"github.com/Skotchmaster/shop_auth/internal/models"
)

type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	CreateUserIfNotExists(ctx context.Context, u *models.User) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	SetRole(ctx context.Context, id uint, role string) (*models.User, error)
}

type BlacklistStore interface {
	AddToBlacklist(ctx context.Context, entry models.BlacklistEntry) (bool, error)
	IsBlacklisted(ctx context.Context, sessionID string) (bool, error)
	PurgeBlacklist(ctx context.Context, before int64) (int64, error)
}

type ResetStore interface {
	SaveResetToken(ctx context.Context, hash string, userID uint, expiresAt int64) error
	ConsumeResetToken(ctx context.Context, hash string, now int64) (uint, error)
	PurgeResetTokens(ctx context.Context, before int64) (int64, error)
}
