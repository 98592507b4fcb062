package repo

import (
	"context"
	"errors"

	"gorm.io/gorm/clause"

	"github.com/wgdashboard/wg_dashboard/internal/models"
)

func (r *GormRepo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var s models.Setting
	err := r.DB.WithContext(ctx).Where("setting_key = ?", key).First(&s).Error
	if err != nil {
		if errors.Is(translate(err), ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return s.Value, true, nil
}

func (r *GormRepo) PutSetting(ctx context.Context, key, value string) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.Setting{Key: key, Value: value}).Error
}
