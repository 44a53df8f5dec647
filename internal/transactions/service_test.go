package transactions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/payrelay/payrelay-backend/pkg/db/models"
	"github.com/payrelay/payrelay-backend/pkg/enums"
	pkgerrors "github.com/payrelay/payrelay-backend/pkg/errors"
	"github.com/payrelay/payrelay-backend/pkg/outbox"
	"github.com/payrelay/payrelay-backend/pkg/pagination"
	"github.com/payrelay/payrelay-backend/pkg/types"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[uuid.UUID]*models.Transaction{}}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.CreatedAt = time.Now()
	txn.UpdatedAt = txn.CreatedAt
	clone := *txn
	f.rows[txn.ID] = &clone
	return txn, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeRepo) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ReferenceNumber == reference {
			clone := *row
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Transaction{}
	for _, row := range f.rows {
		if filter.UserID != nil && row.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && row.Status != *filter.Status {
			continue
		}
		out = append(out, *row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateConditional(ctx context.Context, id uuid.UUID, expected enums.TransactionStatus, updates map[string]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.Status != expected {
		return 0, nil
	}
	for key, value := range updates {
		switch key {
		case "status":
			row.Status = value.(enums.TransactionStatus)
		case "processing_admin_id":
			adminID := value.(uuid.UUID)
			row.ProcessingAdminID = &adminID
		case "processed_at":
			at := value.(time.Time)
			row.ProcessedAt = &at
		case "completed_at":
			at := value.(time.Time)
			row.CompletedAt = &at
		case "failure_reason":
			reason := value.(string)
			row.FailureReason = &reason
		case "notes":
			notes := value.(string)
			row.Notes = &notes
		case "documents":
			row.Documents = value.(types.DocumentList)
		}
	}
	row.UpdatedAt = time.Now()
	return 1, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) byType(eventType enums.OutboxEventType) []outbox.DomainEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []outbox.DomainEvent{}
	for _, event := range f.events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

func newTestService(t *testing.T) (Service, *fakeRepo, *fakeOutbox) {
	t.Helper()
	repo := newFakeRepo()
	events := &fakeOutbox{}
	svc, err := NewService(repo, fakeTxRunner{}, events)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, events
}

func seedPending(t *testing.T, repo *fakeRepo, userID uuid.UUID) *models.Transaction {
	t.Helper()
	txn, err := repo.Create(context.Background(), &models.Transaction{
		ReferenceNumber: "TXN-AB12CD34",
		UserID:          userID,
		Status:          enums.TransactionStatusPending,
		Amount:          decimal.NewFromInt(250),
		Currency:        enums.CurrencyUSD,
		Description:     "wire to supplier",
		ReceiverName:    "Acme Supplies",
		ReceiverAccount: "991-220",
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return txn
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != want {
		t.Fatalf("expected code %s, got %s (%v)", want, typed.Code(), err)
	}
}

func TestCreateQueuesCreatedEvent(t *testing.T) {
	svc, _, events := newTestService(t)

	txn, err := svc.Create(context.Background(), CreateInput{
		UserID:          uuid.New(),
		Amount:          decimal.NewFromFloat(120.50),
		Currency:        enums.CurrencyEUR,
		Description:     "invoice 42",
		ReceiverName:    "North Wind LLC",
		ReceiverAccount: "DE44-0001",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if txn.Status != enums.TransactionStatusPending {
		t.Fatalf("expected pending status, got %s", txn.Status)
	}
	if len(txn.ReferenceNumber) != len("TXN-AB12CD34") {
		t.Fatalf("unexpected reference format %q", txn.ReferenceNumber)
	}

	created := events.byType(enums.EventTransactionCreated)
	if len(created) != 1 {
		t.Fatalf("expected 1 created event, got %d", len(created))
	}
	if created[0].AggregateID != txn.ID {
		t.Fatalf("event aggregate mismatch")
	}
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:          uuid.New(),
		Amount:          decimal.Zero,
		Currency:        enums.CurrencyUSD,
		Description:     "zero",
		ReceiverName:    "x",
		ReceiverAccount: "y",
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestViewAsOwnerBlocksOtherUsers(t *testing.T) {
	svc, repo, _ := newTestService(t)
	txn := seedPending(t, repo, uuid.New())

	_, err := svc.ViewAsOwner(context.Background(), uuid.New(), txn.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestViewAsAdminClaimsPending(t *testing.T) {
	svc, repo, events := newTestService(t)
	txn := seedPending(t, repo, uuid.New())
	adminID := uuid.New()

	result, err := svc.ViewAsAdmin(context.Background(), adminID, txn.ID)
	if err != nil {
		t.Fatalf("ViewAsAdmin: %v", err)
	}
	if !result.Claimed {
		t.Fatalf("expected claim to land")
	}
	if result.Transaction.Status != enums.TransactionStatusProcessing {
		t.Fatalf("expected processing, got %s", result.Transaction.Status)
	}
	if result.Transaction.ProcessingAdminID == nil || *result.Transaction.ProcessingAdminID != adminID {
		t.Fatalf("expected processing admin %s", adminID)
	}
	if result.Transaction.ProcessedAt == nil {
		t.Fatalf("expected processed_at to be set")
	}

	changed := events.byType(enums.EventTransactionStatusChanged)
	if len(changed) != 1 {
		t.Fatalf("expected 1 status event, got %d", len(changed))
	}
}

func TestViewAsAdminRaceHasOneWinner(t *testing.T) {
	svc, repo, events := newTestService(t)
	txn := seedPending(t, repo, uuid.New())

	const admins = 8
	results := make([]*ViewResult, admins)
	errs := make([]error, admins)

	var wg sync.WaitGroup
	for i := 0; i < admins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.ViewAsAdmin(context.Background(), uuid.New(), txn.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < admins; i++ {
		if errs[i] != nil {
			t.Fatalf("admin %d: unexpected error %v", i, errs[i])
		}
		if results[i].Claimed {
			winners++
		}
		if results[i].Transaction.Status != enums.TransactionStatusProcessing {
			t.Fatalf("admin %d: expected processing view, got %s", i, results[i].Transaction.Status)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	changed := events.byType(enums.EventTransactionStatusChanged)
	if len(changed) != 1 {
		t.Fatalf("expected 1 status event for the claim, got %d", len(changed))
	}
}

func TestViewAsAdminDoesNotClaimOwnSubmission(t *testing.T) {
	svc, repo, events := newTestService(t)
	adminID := uuid.New()
	txn := seedPending(t, repo, adminID)

	result, err := svc.ViewAsAdmin(context.Background(), adminID, txn.ID)
	if err != nil {
		t.Fatalf("ViewAsAdmin: %v", err)
	}
	if result.Claimed {
		t.Fatalf("admin must not claim their own transaction")
	}
	if result.Transaction.Status != enums.TransactionStatusPending {
		t.Fatalf("expected pending, got %s", result.Transaction.Status)
	}
	if result.Transaction.ProcessingAdminID != nil {
		t.Fatalf("expected no processing admin, got %s", *result.Transaction.ProcessingAdminID)
	}
	if changed := events.byType(enums.EventTransactionStatusChanged); len(changed) != 0 {
		t.Fatalf("expected no status event, got %d", len(changed))
	}
}

func TestViewAsAdminNonPendingIsReadOnly(t *testing.T) {
	svc, repo, events := newTestService(t)
	owner := uuid.New()
	txn := seedPending(t, repo, owner)

	first, err := svc.ViewAsAdmin(context.Background(), uuid.New(), txn.ID)
	if err != nil {
		t.Fatalf("first view: %v", err)
	}
	if !first.Claimed {
		t.Fatalf("expected first view to claim")
	}

	second, err := svc.ViewAsAdmin(context.Background(), uuid.New(), txn.ID)
	if err != nil {
		t.Fatalf("second view: %v", err)
	}
	if second.Claimed {
		t.Fatalf("second view must not claim")
	}
	if *second.Transaction.ProcessingAdminID != *first.Transaction.ProcessingAdminID {
		t.Fatalf("claim owner must not change")
	}

	changed := events.byType(enums.EventTransactionStatusChanged)
	if len(changed) != 1 {
		t.Fatalf("expected a single claim event, got %d", len(changed))
	}
}

func TestTransitionCompleteRequiresDocument(t *testing.T) {
	svc, repo, _ := newTestService(t)
	txn := seedPending(t, repo, uuid.New())
	adminID := uuid.New()

	if _, err := svc.ViewAsAdmin(context.Background(), adminID, txn.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	_, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusCompleted,
		ActorID:       adminID,
		ActorRole:     enums.SystemRoleAdmin,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestTransitionCompleteAppendsDocument(t *testing.T) {
	svc, repo, events := newTestService(t)
	txn := seedPending(t, repo, uuid.New())
	adminID := uuid.New()

	if _, err := svc.ViewAsAdmin(context.Background(), adminID, txn.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	out, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusCompleted,
		ActorID:       adminID,
		ActorRole:     enums.SystemRoleAdmin,
		CompletionDocument: &types.DocumentRef{
			Name: "wire-receipt.pdf",
			URL:  "https://files.example.com/wire-receipt.pdf",
			Kind: "completion",
		},
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if out.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed, got %s", out.Status)
	}
	if out.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}
	if len(out.Documents) != 1 || out.Documents[0].Name != "wire-receipt.pdf" {
		t.Fatalf("expected completion document to be attached, got %+v", out.Documents)
	}

	changed := events.byType(enums.EventTransactionStatusChanged)
	if len(changed) != 2 {
		t.Fatalf("expected claim + completion events, got %d", len(changed))
	}
}

func TestTransitionCompleteAcceptsAttachedDocument(t *testing.T) {
	svc, repo, _ := newTestService(t)
	txn, err := repo.Create(context.Background(), &models.Transaction{
		ReferenceNumber: "TXN-EE55FF66",
		UserID:          uuid.New(),
		Status:          enums.TransactionStatusPending,
		Amount:          decimal.NewFromInt(90),
		Currency:        enums.CurrencyUSD,
		Description:     "prepaid order",
		ReceiverName:    "Vendor Co",
		ReceiverAccount: "001-447",
		Documents: types.DocumentList{{
			Name:       "wire-proof.pdf",
			URL:        "https://files.example.com/wire-proof.pdf",
			Kind:       "completion",
			UploadedAt: time.Now(),
		}},
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	adminID := uuid.New()
	if _, err := svc.ViewAsAdmin(context.Background(), adminID, txn.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	out, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusCompleted,
		ActorID:       adminID,
		ActorRole:     enums.SystemRoleAdmin,
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if out.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed, got %s", out.Status)
	}
	if out.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}
	if len(out.Documents) != 1 {
		t.Fatalf("expected attached document left as-is, got %+v", out.Documents)
	}
}

func TestTransitionFailRequiresReason(t *testing.T) {
	svc, repo, _ := newTestService(t)
	txn := seedPending(t, repo, uuid.New())
	adminID := uuid.New()

	_, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusFailed,
		ActorID:       adminID,
		ActorRole:     enums.SystemRoleAdmin,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestTransitionOutOfTerminalRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	owner := uuid.New()
	txn := seedPending(t, repo, owner)

	if _, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusCancelled,
		ActorID:       owner,
		ActorRole:     enums.SystemRoleUser,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusCancelled,
		ActorID:       owner,
		ActorRole:     enums.SystemRoleUser,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestTransitionSkipsProcessingRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	txn := seedPending(t, repo, uuid.New())

	_, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusCompleted,
		ActorID:       uuid.New(),
		ActorRole:     enums.SystemRoleAdmin,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestTransitionByNonClaimOwnerForbidden(t *testing.T) {
	svc, repo, _ := newTestService(t)
	txn := seedPending(t, repo, uuid.New())

	if _, err := svc.ViewAsAdmin(context.Background(), uuid.New(), txn.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	reason := "insufficient funds"
	_, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusFailed,
		ActorID:       uuid.New(),
		ActorRole:     enums.SystemRoleAdmin,
		FailureReason: &reason,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestUserCannotCancelOthersTransaction(t *testing.T) {
	svc, repo, _ := newTestService(t)
	txn := seedPending(t, repo, uuid.New())

	_, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusCancelled,
		ActorID:       uuid.New(),
		ActorRole:     enums.SystemRoleUser,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestUserCannotCompleteOwnTransaction(t *testing.T) {
	svc, repo, _ := newTestService(t)
	owner := uuid.New()
	txn := seedPending(t, repo, owner)

	if _, err := svc.ViewAsAdmin(context.Background(), uuid.New(), txn.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	_, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusCompleted,
		ActorID:       owner,
		ActorRole:     enums.SystemRoleUser,
		CompletionDocument: &types.DocumentRef{
			Name: "receipt.pdf",
			URL:  "https://files.example.com/receipt.pdf",
		},
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestAdminCannotCancel(t *testing.T) {
	svc, repo, _ := newTestService(t)
	txn := seedPending(t, repo, uuid.New())

	_, err := svc.Transition(context.Background(), TransitionInput{
		TransactionID: txn.ID,
		Target:        enums.TransactionStatusCancelled,
		ActorID:       uuid.New(),
		ActorRole:     enums.SystemRoleAdmin,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}
