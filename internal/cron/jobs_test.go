package cron

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/payrelay/payrelay-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type fakeNotificationsRepo struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakeNotificationsRepo) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

type fakeDevicesRepo struct {
	cutoffs []time.Time
}

func (f *fakeDevicesRepo) DeleteInactiveSince(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 0, nil
}

type fakeLock struct {
	mu       sync.Mutex
	acquired bool
	grant    bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = true
	return f.grant, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

type countingJob struct {
	runs int
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestNotificationCleanupUsesRetentionWindow(t *testing.T) {
	repo := &fakeNotificationsRepo{deleted: 4}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     testLogger(),
		Repository: repo,
		Retention:  7,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	fixed := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	job.(*notificationCleanupJob).now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.cutoffs) != 1 {
		t.Fatalf("expected one delete call, got %d", len(repo.cutoffs))
	}
	want := fixed.Add(-7 * 24 * time.Hour)
	if !repo.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff = %v, want %v", repo.cutoffs[0], want)
	}
}

func TestNotificationCleanupPropagatesRepoError(t *testing.T) {
	repo := &fakeNotificationsRepo{err: errors.New("db down")}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error from failing repository")
	}
}

func TestDeviceCleanupDefaultsInactiveWindow(t *testing.T) {
	repo := &fakeDevicesRepo{}
	job, err := NewDeviceCleanupJob(DeviceCleanupJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	fixed := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	job.(*deviceCleanupJob).now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := fixed.Add(-deviceInactiveDays * 24 * time.Hour)
	if !repo.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff = %v, want %v", repo.cutoffs[0], want)
	}
}

func TestRunCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	lock := &fakeLock{grant: false}
	job := &countingJob{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran %d times while lock was held elsewhere", job.runs)
	}
	if lock.released != 0 {
		t.Fatal("lock released despite never being acquired")
	}
}

func TestRunCycleRunsJobsAndReleasesLock(t *testing.T) {
	lock := &fakeLock{grant: true}
	healthy := &countingJob{}
	failing := &countingJob{err: errors.New("boom")}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(healthy, failing),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if healthy.runs != 1 || failing.runs != 1 {
		t.Fatalf("job runs = %d/%d, want 1/1", healthy.runs, failing.runs)
	}
	if lock.released != 1 {
		t.Fatalf("lock released %d times, want 1", lock.released)
	}
}
