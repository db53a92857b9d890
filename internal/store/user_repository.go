package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vouse/postqueue/internal/domain/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindOrCreate is idempotent; per spec.md §4.3, "on race, a second
// lookup after a failed insert must succeed" — the unique primary key
// on user_id makes the retry-on-conflict a plain re-read.
func (r *UserRepository) FindOrCreate(ctx context.Context, userID string) (*user.User, error) {
	var row UserRow
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err == nil {
		return rowToUser(row), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	row = UserRow{UserID: userID, Version: 1, CreatedAt: now, UpdatedAt: now}
	if createErr := r.db.WithContext(ctx).Create(&row).Error; createErr != nil {
		// lost the create race; the winner's row must now be readable.
		if refetchErr := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error; refetchErr != nil {
			return nil, refetchErr
		}
		return rowToUser(row), nil
	}
	return rowToUser(row), nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (*user.User, error) {
	var row UserRow
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToUser(row), nil
}

// Save performs a compare-and-set on version, the same optimistic-lock
// pattern post.Repository.Save uses, satisfying spec.md §5's concurrent
// connect/disconnect/refresh requirement.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	row := userToRow(u)
	result := r.db.WithContext(ctx).
		Model(&UserRow{}).
		Where("user_id = ? AND version = ?", row.UserID, row.Version-1).
		Updates(map[string]interface{}{
			"access_token_ciphertext":  row.AccessTokenCiphertext,
			"refresh_token_ciphertext": row.RefreshTokenCiphertext,
			"token_expires_at":         row.TokenExpiresAt,
			"is_connected":             row.IsConnected,
			"version":                  row.Version,
			"updated_at":               row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return user.ErrOptimisticLock
	}
	return nil
}

func rowToUser(row UserRow) *user.User {
	return user.Reconstruct(
		row.UserID, row.AccessTokenCiphertext, row.RefreshTokenCiphertext,
		row.TokenExpiresAt, row.IsConnected, row.Version, row.CreatedAt, row.UpdatedAt,
	)
}

func userToRow(u *user.User) UserRow {
	return UserRow{
		UserID:                 u.UserID(),
		AccessTokenCiphertext:  u.AccessTokenCiphertext(),
		RefreshTokenCiphertext: u.RefreshTokenCiphertext(),
		TokenExpiresAt:         u.TokenExpiresAt(),
		IsConnected:            u.IsConnected(),
		Version:                u.Version(),
		CreatedAt:              u.CreatedAt(),
		UpdatedAt:              u.UpdatedAt(),
	}
}

type DeviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// Upsert re-homes a token to a new user on conflict, per spec.md §3's
// "re-registering migrates ownership" DeviceToken invariant.
func (r *DeviceTokenRepository) Upsert(ctx context.Context, d *user.DeviceToken) error {
	var existing DeviceTokenRow
	err := r.db.WithContext(ctx).Where("token = ?", d.Token()).First(&existing).Error
	if err == nil {
		existing.UserID = d.UserID()
		existing.Platform = string(d.Platform())
		return r.db.WithContext(ctx).Save(&existing).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	row := DeviceTokenRow{
		ID: d.ID(), UserID: d.UserID(), Token: d.Token(),
		Platform: string(d.Platform()), CreatedAt: d.CreatedAt(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *DeviceTokenRepository) Delete(ctx context.Context, userID, token string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&DeviceTokenRow{}).Error
}

func (r *DeviceTokenRepository) ListForUser(ctx context.Context, userID string) ([]*user.DeviceToken, error) {
	var rows []DeviceTokenRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*user.DeviceToken, 0, len(rows))
	for _, row := range rows {
		out = append(out, user.ReconstructDeviceToken(row.ID, row.UserID, row.Token, user.DevicePlatform(row.Platform), row.CreatedAt))
	}
	return out, nil
}
