package models

import (
	"context"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/utils"
)

// DeviceToken is a push-capable endpoint for a user. Tokens are never deleted;
// once the transport reports one as unregistered it is flipped invalid and
// kept for audit.
type DeviceToken struct {
	ID        int       `gorm:"primary_key" json:"id"`
	UserId    string    `gorm:"size:64;not null;index" json:"user_id" binding:"required"`
	Token     string    `gorm:"size:255;not null;uniqueIndex" json:"token" binding:"required"`
	Platform  string    `gorm:"size:20;not null;default:'unknown'" json:"platform"` // android | ios | web
	IsValid   *bool     `gorm:"not null;default:true" json:"is_valid"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RegisterDeviceToken upserts a token for the user. Re-registering an existing
// token refreshes ownership and platform but leaves is_valid untouched; a
// token the transport killed stays dead until the client obtains a fresh one,
// which arrives as a new row.
func RegisterDeviceToken(ctx context.Context, userId, token, platform string) (*DeviceToken, error) {
	db := config.GetDB()

	record := DeviceToken{
		UserId:   userId,
		Token:    token,
		Platform: platform,
		IsValid:  utils.NewTrue(),
	}
	err := db.WithContext(ctx).Create(&record).Error
	if err == nil {
		return &record, nil
	}
	if !utils.IsDuplicateKeyErr(err) {
		return nil, err
	}

	var existing DeviceToken
	if err := db.WithContext(ctx).Where("token = ?", token).First(&existing).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&DeviceToken{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"user_id":  userId,
			"platform": platform,
		}).Error; err != nil {
		return nil, err
	}
	existing.UserId = userId
	existing.Platform = platform
	return &existing, nil
}

// GetValidDeviceTokens resolves the user's currently-valid push endpoints.
func GetValidDeviceTokens(ctx context.Context, userId string) ([]*DeviceToken, error) {
	db := config.GetDB()

	var results []*DeviceToken
	err := db.WithContext(ctx).
		Where("user_id = ? AND is_valid = 1", userId).
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	return results, nil
}

// InvalidateDeviceToken flips is_valid to false. One-way: invalid tokens are
// never revived in place.
func InvalidateDeviceToken(ctx context.Context, tokenId int) error {
	db := config.GetDB()

	return db.WithContext(ctx).Model(&DeviceToken{}).
		Where("id = ?", tokenId).
		Update("is_valid", false).Error
}

// InvalidateDeviceTokenByValue is the client-facing unregister path.
func InvalidateDeviceTokenByValue(ctx context.Context, userId, token string) error {
	db := config.GetDB()

	return db.WithContext(ctx).Model(&DeviceToken{}).
		Where("user_id = ? AND token = ?", userId, token).
		Update("is_valid", false).Error
}
