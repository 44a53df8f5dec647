package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/payrelay/payrelay-backend/pkg/config"
	"github.com/payrelay/payrelay-backend/pkg/db/models"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	pkgerrors "github.com/payrelay/payrelay-backend/pkg/errors"
	"github.com/payrelay/payrelay-backend/pkg/security"
)

type fakeUserRepo struct {
	user         *models.User
	lastLoginIDs []uuid.UUID
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if f.user == nil || f.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return f.user, nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.lastLoginIDs = append(f.lastLoginIDs, id)
	return nil
}

type fakeSessions struct {
	accessIDs []string
}

func (f *fakeSessions) Generate(_ context.Context, accessID string) (string, error) {
	f.accessIDs = append(f.accessIDs, accessID)
	return "refresh-token", nil
}

func testHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func newLoginService(t *testing.T, repo *fakeUserRepo, sessions *fakeSessions) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "test",
			ExpirationMinutes: 15,
		},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Email:        "owner@example.com",
		PasswordHash: testHash(t, password),
		FirstName:    "Pat",
		LastName:     "Owner",
		SystemRole:   enums.SystemRoleUser,
		IsActive:     true,
	}
}

func TestLoginIssuesTokenPair(t *testing.T) {
	repo := &fakeUserRepo{user: activeUser(t, "hunter2hunter2")}
	sessions := &fakeSessions{}
	svc := newLoginService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "Owner@Example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if resp.User == nil || resp.User.Email != "owner@example.com" {
		t.Fatalf("unexpected user payload: %+v", resp.User)
	}
	if len(sessions.accessIDs) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions.accessIDs))
	}
	if len(repo.lastLoginIDs) != 1 {
		t.Fatalf("expected last login update, got %d", len(repo.lastLoginIDs))
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := &fakeUserRepo{user: activeUser(t, "hunter2hunter2")}
	svc := newLoginService(t, repo, &fakeSessions{})

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "owner@example.com",
		Password: "not-the-password",
	})
	assertUnauthorized(t, err)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc := newLoginService(t, &fakeUserRepo{}, &fakeSessions{})

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	assertUnauthorized(t, err)
}

func TestLoginRejectsDeactivatedUser(t *testing.T) {
	user := activeUser(t, "hunter2hunter2")
	user.IsActive = false
	svc := newLoginService(t, &fakeUserRepo{user: user}, &fakeSessions{})

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "owner@example.com",
		Password: "hunter2hunter2",
	})
	assertUnauthorized(t, err)
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("code = %s, want %s", typed.Code(), pkgerrors.CodeUnauthorized)
	}
}
