package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/shop_auth/internal/models"
)

func (r *GormRepo) SaveResetToken(ctx context.Context, hash string, userID uint, expiresAt int64) error {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	return db.Create(&models.PasswordResetToken{
		Token:     hash,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}).Error
}

// ConsumeResetToken marks the token used with a single conditional update and
// returns its owner. Only one concurrent caller can win.
func (r *GormRepo) ConsumeResetToken(ctx context.Context, hash string, now int64) (uint, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	res := db.Model(&models.PasswordResetToken{}).
		Where("token = ? AND used = ? AND expires_at > ?", hash, false, now).
		Update("used", true)
	if res.Error != nil {
		return 0, res.Error
	}

	var token models.PasswordResetToken
	if err := db.Where("token = ?", hash).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrResetNotFound
		}
		return 0, err
	}

	if res.RowsAffected == 1 {
		return token.UserID, nil
	}
	// lost the update: classify why
	switch {
	case token.Used:
		return 0, ErrResetUsed
	case token.ExpiresAt <= now:
		return 0, ErrResetExpired
	default:
		return 0, ErrResetUsed
	}
}

// PurgeResetTokens deletes tokens that expired before the given unix time.
func (r *GormRepo) PurgeResetTokens(ctx context.Context, before int64) (int64, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	res := db.Where("expires_at < ?", before).Delete(&models.PasswordResetToken{})
	return res.RowsAffected, res.Error
}
