package enums

import "testing"

func TestTransactionStatusLifecycle(t *testing.T) {
	cases := []struct {
		from    TransactionStatus
		to      TransactionStatus
		allowed bool
	}{
		{TransactionStatusPending, TransactionStatusProcessing, true},
		{TransactionStatusPending, TransactionStatusFailed, true},
		{TransactionStatusPending, TransactionStatusCancelled, true},
		{TransactionStatusPending, TransactionStatusCompleted, false},
		{TransactionStatusProcessing, TransactionStatusCompleted, true},
		{TransactionStatusProcessing, TransactionStatusFailed, true},
		{TransactionStatusProcessing, TransactionStatusCancelled, false},
		{TransactionStatusProcessing, TransactionStatusPending, false},
		{TransactionStatusCompleted, TransactionStatusFailed, false},
		{TransactionStatusFailed, TransactionStatusPending, false},
		{TransactionStatusCancelled, TransactionStatusProcessing, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestTransactionStatusTerminal(t *testing.T) {
	terminal := []TransactionStatus{
		TransactionStatusCompleted,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
		for _, target := range validTransactionStatuses {
			if s.CanTransitionTo(target) {
				t.Fatalf("terminal %s must not transition to %s", s, target)
			}
		}
	}
	for _, s := range []TransactionStatus{TransactionStatusPending, TransactionStatusProcessing} {
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestParseTransactionStatus(t *testing.T) {
	status, err := ParseTransactionStatus("processing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != TransactionStatusProcessing {
		t.Fatalf("got %s", status)
	}
	if _, err := ParseTransactionStatus("archived"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
