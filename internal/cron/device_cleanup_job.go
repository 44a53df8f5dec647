package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/payrelay/payrelay-backend/pkg/logger"
)

const deviceInactiveDays = 90

type devicesCleanupRepo interface {
	DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}

type DeviceCleanupJobParams struct {
	Logger       *logger.Logger
	Repository   devicesCleanupRepo
	InactiveDays int
}

// NewDeviceCleanupJob removes deactivated push devices that stayed unused.
func NewDeviceCleanupJob(params DeviceCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("devices repository required")
	}
	inactive := params.InactiveDays
	if inactive <= 0 {
		inactive = deviceInactiveDays
	}
	return &deviceCleanupJob{
		logg:     params.Logger,
		repo:     params.Repository,
		inactive: inactive,
		now:      time.Now,
	}, nil
}

type deviceCleanupJob struct {
	logg     *logger.Logger
	repo     devicesCleanupRepo
	inactive int
	now      func() time.Time
}

func (j *deviceCleanupJob) Name() string { return "device-cleanup" }

func (j *deviceCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.inactive) * 24 * time.Hour)
	deleted, err := j.repo.DeleteInactiveSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("device cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"inactive_days": j.inactive,
		"rows_deleted":  deleted,
	})
	j.logg.Info(logCtx, "device cleanup complete")
	return nil
}
