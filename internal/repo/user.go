package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/shop_auth/internal/models"
)

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) CreateUserIfNotExists(ctx context.Context, u *models.User) error {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	tx := db.Where("email = ?", u.Email).FirstOrCreate(u)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrEmailTaken
	}
	return nil
}

func (r *GormRepo) UpdatePassword(ctx context.Context, id uint, hash string) error {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	res := db.Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormRepo) SetRole(ctx context.Context, id uint, role string) (*models.User, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	var user models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.Role == role {
			return nil
		}
		user.Role = role
		return tx.Model(&user).Update("role", role).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
