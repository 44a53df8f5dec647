package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/google/uuid"

	"github.com/payrelay/payrelay-backend/pkg/config"
	"github.com/payrelay/payrelay-backend/pkg/db/models"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	"github.com/payrelay/payrelay-backend/pkg/logger"
)

func testPublisherLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testPublisherConfig() *config.Config {
	return &config.Config{
		Outbox: config.OutboxConfig{
			BatchSize:      10,
			PollIntervalMS: 10,
			MaxAttempts:    3,
		},
	}
}

type fakeOutboxRepo struct {
	mu          sync.Mutex
	pending     []models.OutboxEvent
	fetchErr    error
	published   []uuid.UUID
	failed      []uuid.UUID
	deadLetters []uuid.UUID
}

func (f *fakeOutboxRepo) FetchUnpublished(limit int) ([]models.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.pending) == 0 {
		return nil, nil
	}
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	batch := f.pending[:limit]
	f.pending = f.pending[limit:]
	return batch, nil
}

func (f *fakeOutboxRepo) MarkPublished(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeOutboxRepo) MoveToDLQ(event models.OutboxEvent, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLetters = append(f.deadLetters, event.ID)
	return nil
}

type fakeResult struct {
	id  string
	err error
}

func (r *fakeResult) Get(context.Context) (string, error) {
	return r.id, r.err
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	messages []*gcppubsub.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	if p.err != nil {
		return &fakeResult{err: p.err}
	}
	return &fakeResult{id: "server-msg-1"}
}

func newOutboxEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"event_id": uuid.NewString()})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventTransactionCreated,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

func newTestService(t *testing.T, repo *fakeOutboxRepo, pub *fakePublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     testPublisherConfig(),
		Logger:     testPublisherLogger(),
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	event := newOutboxEvent(t, 0)
	repo := &fakeOutboxRepo{pending: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch error: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work done")
	}
	if len(repo.published) != 1 || repo.published[0] != event.ID {
		t.Fatalf("expected event %s marked published, got %v", event.ID, repo.published)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 message published, got %d", len(pub.messages))
	}
	attrs := pub.messages[0].Attributes
	if attrs["event_type"] != string(enums.EventTransactionCreated) {
		t.Fatalf("unexpected event_type attribute: %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute: %q", attrs["aggregate_id"])
	}
}

func TestProcessBatchMarksFailureOnPublishError(t *testing.T) {
	event := newOutboxEvent(t, 0)
	repo := &fakeOutboxRepo{pending: []models.OutboxEvent{event}}
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch error: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work done")
	}
	if len(repo.failed) != 1 || repo.failed[0] != event.ID {
		t.Fatalf("expected event %s marked failed, got %v", event.ID, repo.failed)
	}
	if len(repo.published) != 0 {
		t.Fatalf("did not expect published events, got %v", repo.published)
	}
	if len(repo.deadLetters) != 0 {
		t.Fatalf("did not expect dead letters, got %v", repo.deadLetters)
	}
}

func TestProcessBatchMovesToDLQAfterMaxAttempts(t *testing.T) {
	// MaxAttempts is 3 in the test config; attempt count 2 means the
	// next failure is terminal.
	event := newOutboxEvent(t, 2)
	repo := &fakeOutboxRepo{pending: []models.OutboxEvent{event}}
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	svc := newTestService(t, repo, pub)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch error: %v", err)
	}
	if len(repo.deadLetters) != 1 || repo.deadLetters[0] != event.ID {
		t.Fatalf("expected event %s in dead letters, got %v", event.ID, repo.deadLetters)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("did not expect retryable failures, got %v", repo.failed)
	}
}

func TestProcessBatchNoWork(t *testing.T) {
	repo := &fakeOutboxRepo{}
	svc := newTestService(t, repo, &fakePublisher{})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch error: %v", err)
	}
	if processed {
		t.Fatal("expected empty batch to report no work")
	}
}

func TestProcessBatchPropagatesFetchError(t *testing.T) {
	repo := &fakeOutboxRepo{fetchErr: errors.New("db down")}
	svc := newTestService(t, repo, &fakePublisher{})

	if _, err := svc.processBatch(context.Background()); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := &fakeOutboxRepo{}
	svc := newTestService(t, repo, &fakePublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}

func TestNextBackoffDoublesToCap(t *testing.T) {
	base := 500 * time.Millisecond
	got := nextBackoff(base, base, maxBackoff)
	if got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
	got = nextBackoff(8*time.Second, base, maxBackoff)
	if got != maxBackoff {
		t.Fatalf("expected cap %v, got %v", maxBackoff, got)
	}
}
