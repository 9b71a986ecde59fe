package repo

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/shop_auth/internal/models"
)

// AddToBlacklist is idempotent on session_id. It reports whether this call
// inserted the row.
func (r *GormRepo) AddToBlacklist(ctx context.Context, entry models.BlacklistEntry) (bool, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(&entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) IsBlacklisted(ctx context.Context, sessionID string) (bool, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	var count int64
	if err := db.Model(&models.BlacklistEntry{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// PurgeBlacklist deletes entries invalidated strictly before the given unix time.
func (r *GormRepo) PurgeBlacklist(ctx context.Context, before int64) (int64, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	res := db.Where("invalidated_at < ?", before).Delete(&models.BlacklistEntry{})
	return res.RowsAffected, res.Error
}
