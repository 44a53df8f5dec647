package devices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/payrelay/payrelay-backend/pkg/db/models"
)

// Repository exposes push-device persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, device *models.FCMDevice) (*models.FCMDevice, error)
	FindByToken(ctx context.Context, token string) (*models.FCMDevice, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.FCMDevice, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.FCMDevice, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	DeactivateByToken(ctx context.Context, token string) error
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a devices repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert registers a token, re-binding it to the current user when the token
// was previously registered elsewhere.
func (r *repository) Upsert(ctx context.Context, device *models.FCMDevice) (*models.FCMDevice, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "device_type", "name", "is_active", "last_used_at", "updated_at",
			}),
		}).
		Create(device).Error
	if err != nil {
		return nil, err
	}
	return r.FindByToken(ctx, device.Token)
}

func (r *repository) FindByToken(ctx context.Context, token string) (*models.FCMDevice, error) {
	var device models.FCMDevice
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.FCMDevice, error) {
	var rows []models.FCMDevice
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.FCMDevice, error) {
	var rows []models.FCMDevice
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.FCMDevice{}).
		Where("id = ?", id).
		UpdateColumn("is_active", false).Error
}

func (r *repository) DeactivateByToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Model(&models.FCMDevice{}).
		Where("token = ?", token).
		UpdateColumn("is_active", false).Error
}

func (r *repository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.FCMDevice{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
}

// DeleteInactiveSince prunes deactivated devices unused since the cutoff.
func (r *repository) DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("is_active = ? AND last_used_at < ?", false, cutoff).
		Delete(&models.FCMDevice{})
	return res.RowsAffected, res.Error
}
