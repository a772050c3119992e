package voiceprintstore

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetActiveMissingCustomer(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.GetActive(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if rec != nil {
		t.Fatalf("GetActive() = %+v, want nil", rec)
	}
}

func TestReplaceThenGetActive(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec, err := s.Replace(ctx, "cust-1", 42)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if rec.QdrantVectorID != 42 || !rec.IsActive || rec.Verification {
		t.Fatalf("Replace() = %+v", rec)
	}

	got, err := s.GetActive(ctx, "cust-1")
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if got == nil || got.ID != rec.ID {
		t.Fatalf("GetActive() = %+v, want id %s", got, rec.ID)
	}
}

func TestReplaceSupersedesPriorRecord(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first, err := s.Replace(ctx, "cust-1", 1)
	if err != nil {
		t.Fatalf("first Replace() error = %v", err)
	}
	second, err := s.Replace(ctx, "cust-1", 2)
	if err != nil {
		t.Fatalf("second Replace() error = %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("Replace() reused the prior record id, want a fresh one")
	}

	got, err := s.GetActive(ctx, "cust-1")
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if got.QdrantVectorID != 2 {
		t.Fatalf("GetActive() after re-enroll = %+v, want vector id 2", got)
	}
}

func TestMarkVerifiedAndAppendAttemptAndHistory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec, err := s.Replace(ctx, "cust-1", 1)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	now := time.Now().UTC()
	if err := s.MarkVerified(ctx, rec.ID, now); err != nil {
		t.Fatalf("MarkVerified() error = %v", err)
	}
	if err := s.AppendAttempt(ctx, rec.ID, 4.5, 3.2, 3.0); err != nil {
		t.Fatalf("AppendAttempt() error = %v", err)
	}
	if err := s.AppendAttempt(ctx, rec.ID, 1.1, 0.5, 3.0); err != nil {
		t.Fatalf("second AppendAttempt() error = %v", err)
	}

	got, err := s.GetActive(ctx, "cust-1")
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if !got.Verification || got.LastVerifiedAt == nil {
		t.Fatalf("GetActive() after MarkVerified = %+v", got)
	}

	history, err := s.History(ctx, "cust-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History() returned %d attempts, want 2", len(history))
	}
	if history[0].RawPLDAScore != 1.1 {
		t.Fatalf("History()[0] = %+v, want the most recent attempt first", history[0])
	}
}

func TestDeleteCascadesAttempts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec, err := s.Replace(ctx, "cust-1", 1)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := s.AppendAttempt(ctx, rec.ID, 1, 1, 3.0); err != nil {
		t.Fatalf("AppendAttempt() error = %v", err)
	}

	removed, err := s.Delete(ctx, "cust-1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !removed {
		t.Fatal("Delete() = false, want true")
	}

	history, err := s.History(ctx, "cust-1")
	if err != nil {
		t.Fatalf("History() after Delete error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("History() after Delete = %v, want empty (cascade)", history)
	}
}

func TestDeleteMissingCustomerIsNotError(t *testing.T) {
	s := openTestStore(t)
	removed, err := s.Delete(context.Background(), "never-enrolled")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed {
		t.Fatal("Delete() = true for a customer that was never enrolled")
	}
}
