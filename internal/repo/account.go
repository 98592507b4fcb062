package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wgdashboard/wg_dashboard/internal/models"
)

func (r *GormRepo) FindAccountByID(ctx context.Context, id uint) (*models.Account, error) {
	var acc models.Account
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&acc).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

func (r *GormRepo) FindAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var acc models.Account
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&acc).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

func (r *GormRepo) FindAccountByRefreshHash(ctx context.Context, hash string) (*models.Account, error) {
	var acc models.Account
	if err := r.DB.WithContext(ctx).Where("refresh_token_hash = ?", hash).First(&acc).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

func (r *GormRepo) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var items []models.Account
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) CreateAccount(ctx context.Context, acc *models.Account) error {
	return translate(r.DB.WithContext(ctx).Create(acc).Error)
}

func (r *GormRepo) SaveAccount(ctx context.Context, acc *models.Account) error {
	return translate(r.DB.WithContext(ctx).Save(acc).Error)
}

// DeleteAccount removes the account together with every peer it owns.
func (r *GormRepo) DeleteAccount(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", id).Delete(&models.Peer{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Account{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *GormRepo) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("username = ? AND id <> ?", username, exceptID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) AdminExists(ctx context.Context) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateAccountProfile writes the editable profile columns only, leaving
// credentials and refresh state untouched.
func (r *GormRepo) UpdateAccountProfile(ctx context.Context, id uint, username string, name *string, role string) error {
	res := r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"username": username,
			"name":     name,
			"role":     role,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) UpdatePasswordHash(ctx context.Context, accountID uint, hash string) error {
	res := r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRefreshToken unconditionally replaces the account's refresh session.
func (r *GormRepo) SetRefreshToken(ctx context.Context, accountID uint, hash string, expiry time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"refresh_token_hash":   hash,
			"refresh_token_expiry": expiry.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeRefreshToken clears the refresh session only while the stored digest
// still equals hash, so a rotation that read the same digest earlier loses.
func (r *GormRepo) RevokeRefreshToken(ctx context.Context, accountID uint, hash string) error {
	res := r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND refresh_token_hash = ?", accountID, hash).
		Updates(map[string]any{
			"refresh_token_hash":   nil,
			"refresh_token_expiry": time.Time{}.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// SwapRefreshToken replaces the refresh session only while the stored digest
// still equals oldHash. Exactly one of any number of concurrent callers
// presenting the same oldHash succeeds; the rest get ErrStale.
func (r *GormRepo) SwapRefreshToken(ctx context.Context, accountID uint, oldHash, newHash string, newExpiry time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND refresh_token_hash = ?", accountID, oldHash).
		Updates(map[string]any{
			"refresh_token_hash":   newHash,
			"refresh_token_expiry": newExpiry.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}
