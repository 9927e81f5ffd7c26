package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/techagentng/collabhub/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository interface {
	SaveDeviceToken(ctx context.Context, token *models.DeviceToken) error
	ListDeviceTokens(ctx context.Context, userID string) ([]models.DeviceToken, error)
	DeleteDeviceToken(ctx context.Context, token string) error
}

type deviceRepo struct {
	DB *gorm.DB
}

func NewDeviceRepo(db *GormDB) DeviceRepository {
	return &deviceRepo{db.DB}
}

// SaveDeviceToken registers token, moving it to the new owner if another user had it.
func (d *deviceRepo) SaveDeviceToken(ctx context.Context, token *models.DeviceToken) error {
	err := d.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id"}),
	}).Create(token).Error
	if err != nil {
		return errors.Wrap(err, "save device token")
	}
	return nil
}

func (d *deviceRepo) ListDeviceTokens(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	if err := d.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, errors.Wrap(err, "list device tokens")
	}
	return tokens, nil
}

func (d *deviceRepo) DeleteDeviceToken(ctx context.Context, token string) error {
	if err := d.DB.WithContext(ctx).Where("token = ?", token).Delete(&models.DeviceToken{}).Error; err != nil {
		return errors.Wrap(err, "delete device token")
	}
	return nil
}
