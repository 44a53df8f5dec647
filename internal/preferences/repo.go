package preferences

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/payrelay/payrelay-backend/pkg/db/models"
)

// Repository exposes notification-preference persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error)
	Save(ctx context.Context, prefs *models.NotificationPreference) (*models.NotificationPreference, error)
	FindByUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.NotificationPreference, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a preferences repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error) {
	var prefs models.NotificationPreference
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (r *repository) Save(ctx context.Context, prefs *models.NotificationPreference) (*models.NotificationPreference, error) {
	if err := r.db.WithContext(ctx).Save(prefs).Error; err != nil {
		return nil, err
	}
	return prefs, nil
}

func (r *repository) FindByUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.NotificationPreference, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []models.NotificationPreference
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&rows).Error
	return rows, err
}
