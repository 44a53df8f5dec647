package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	str, ok := value.(string)
	if !ok {
		return errors.New("unexpected value type")
	}
	f.values[key] = str
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return "", redislib.Nil
	}
	return value, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

type fakeKeyer struct{}

func (fakeKeyer) AccessSessionKey(accessID string) string {
	return "session:" + accessID
}

func newTestManager(store *fakeStore) *Manager {
	return &Manager{store: store, keyer: fakeKeyer{}, ttl: time.Hour}
}

func TestGenerateStoresRefreshToken(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	accessID := NewAccessID()
	token, err := m.Generate(context.Background(), accessID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty refresh token")
	}
	if stored := store.values["session:"+accessID]; stored != token {
		t.Fatalf("stored token %q does not match issued %q", stored, token)
	}
}

func TestRotateInvalidatesOldSession(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	oldAccessID := NewAccessID()
	oldToken, err := m.Generate(context.Background(), oldAccessID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	newAccessID, newToken, err := m.Rotate(context.Background(), oldAccessID, oldToken)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if newAccessID == oldAccessID {
		t.Fatal("expected a new access id")
	}
	if newToken == oldToken {
		t.Fatal("expected a new refresh token")
	}
	if _, ok := store.values["session:"+oldAccessID]; ok {
		t.Fatal("old session should be deleted")
	}

	// Replaying the consumed token must fail.
	if _, _, err := m.Rotate(context.Background(), oldAccessID, oldToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRotateRejectsWrongToken(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	accessID := NewAccessID()
	if _, err := m.Generate(context.Background(), accessID); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, _, err := m.Rotate(context.Background(), accessID, "forged"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if _, ok := store.values["session:"+accessID]; !ok {
		t.Fatal("session should survive a failed rotation")
	}
}

func TestRevokeAndHasSession(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	accessID := NewAccessID()
	if _, err := m.Generate(context.Background(), accessID); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	active, err := m.HasSession(context.Background(), accessID)
	if err != nil {
		t.Fatalf("HasSession: %v", err)
	}
	if !active {
		t.Fatal("expected session to be active")
	}

	if err := m.Revoke(context.Background(), accessID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	active, err = m.HasSession(context.Background(), accessID)
	if err != nil {
		t.Fatalf("HasSession after revoke: %v", err)
	}
	if active {
		t.Fatal("expected session to be gone after revoke")
	}
}
