package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aselim/homecare-contracts/internal/config"
	"github.com/aselim/homecare-contracts/internal/model"
)

// replaceOnce performs one replacement and returns (original, successor).
func replaceOnce(t *testing.T, store *memStore, phone string, changeDate time.Time) (*model.Contract, *model.Contract) {
	t.Helper()
	svc := NewReplacementService(store, testConfig(config.ExpiredPolicyChain), zerolog.Nop())

	original := seedActiveContract(t, store, phone, date(2024, time.January, 1), date(2024, time.December, 31))
	result, err := svc.ReplaceWorker(context.Background(), ReplaceWorkerInput{
		OriginalContractID: original.ID,
		Worker:             newWorker("Worker Two"),
		ChangeDate:         changeDate,
		Principal:          operator(),
	})
	if err != nil {
		t.Fatalf("replacement failed: %v", err)
	}
	return original, result.Contract
}

func TestSignedActivatesDraft(t *testing.T) {
	store := newMemStore()
	svc := NewSignatureService(store, zerolog.Nop())

	_, successor := replaceOnce(t, store, "13800000001", date(2024, time.June, 15))

	outcome, err := svc.ApplySignatureEvent(context.Background(), SignatureEvent{
		ContractID: successor.ID,
		Type:       SignatureEventSigned,
	})
	if err != nil {
		t.Fatalf("ApplySignatureEvent failed: %v", err)
	}
	if !outcome.Applied || outcome.Status != model.ContractStatusActive {
		t.Fatalf("outcome = %+v, want applied active", outcome)
	}

	reloaded, _ := store.GetContract(context.Background(), successor.ID)
	if reloaded.ContractStatus != model.ContractStatusActive {
		t.Errorf("contract status = %s, want active", reloaded.ContractStatus)
	}

	ledger, _ := store.GetLedger(context.Background(), successor.CustomerPhone)
	if ledger.Entries[1].Status != model.LedgerEntryActive {
		t.Errorf("ledger entry status = %s, want active", ledger.Entries[1].Status)
	}
	checkInvariants(t, store)
}

func TestSignedEventIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc := NewSignatureService(store, zerolog.Nop())

	_, successor := replaceOnce(t, store, "13800000002", date(2024, time.June, 15))

	event := SignatureEvent{ContractID: successor.ID, Type: SignatureEventSigned}
	if _, err := svc.ApplySignatureEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}

	outcome, err := svc.ApplySignatureEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("duplicate delivery errored: %v", err)
	}
	if outcome.Applied {
		t.Error("duplicate delivery must be a no-op")
	}
	if outcome.Status != model.ContractStatusActive {
		t.Errorf("status after duplicate = %s, want active", outcome.Status)
	}
	checkInvariants(t, store)
}

func TestRejectedReversesReplacement(t *testing.T) {
	store := newMemStore()
	svc := NewSignatureService(store, zerolog.Nop())

	original, successor := replaceOnce(t, store, "13800000003", date(2024, time.June, 15))

	outcome, err := svc.ApplySignatureEvent(context.Background(), SignatureEvent{
		ContractID: successor.ID,
		Type:       SignatureEventRejected,
	})
	if err != nil {
		t.Fatalf("ApplySignatureEvent failed: %v", err)
	}
	if !outcome.Applied || outcome.Status != model.ContractStatusCancelled {
		t.Fatalf("outcome = %+v, want applied cancelled", outcome)
	}

	cancelled, _ := store.GetContract(context.Background(), successor.ID)
	if cancelled.ContractStatus != model.ContractStatusCancelled || cancelled.IsLatest {
		t.Errorf("successor = %s latest=%v, want cancelled non-latest", cancelled.ContractStatus, cancelled.IsLatest)
	}

	restored, _ := store.GetContract(context.Background(), original.ID)
	if restored.ContractStatus != model.ContractStatusActive {
		t.Errorf("original status = %s, want active", restored.ContractStatus)
	}
	if !restored.IsLatest {
		t.Error("original must be latest again")
	}
	if restored.ReplacedByContractID != nil {
		t.Error("forward link must be cleared")
	}
	if restored.ServiceDays != nil {
		t.Error("service days must be cleared while active")
	}

	ledger, _ := store.GetLedger(context.Background(), original.CustomerPhone)
	if len(ledger.Entries) != 2 {
		t.Fatalf("ledger has %d entries, want 2 (append-only)", len(ledger.Entries))
	}
	if ledger.Entries[0].Status != model.LedgerEntryActive {
		t.Errorf("original entry status = %s, want active", ledger.Entries[0].Status)
	}
	if ledger.Entries[1].Status != model.LedgerEntryVoided {
		t.Errorf("successor entry status = %s, want voided", ledger.Entries[1].Status)
	}
	if ledger.LatestContractID == nil || *ledger.LatestContractID != original.ID {
		t.Error("ledger latest pointer must revert to the original")
	}
	checkInvariants(t, store)
}

func TestRejectedEventIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc := NewSignatureService(store, zerolog.Nop())

	original, successor := replaceOnce(t, store, "13800000004", date(2024, time.June, 15))

	event := SignatureEvent{ContractID: successor.ID, Type: SignatureEventRejected}
	if _, err := svc.ApplySignatureEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}

	outcome, err := svc.ApplySignatureEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("duplicate delivery errored: %v", err)
	}
	if outcome.Applied {
		t.Error("duplicate delivery must be a no-op, not a double reversal")
	}

	restored, _ := store.GetContract(context.Background(), original.ID)
	if restored.ContractStatus != model.ContractStatusActive || !restored.IsLatest {
		t.Error("original state must be unchanged by the duplicate")
	}
	checkInvariants(t, store)
}

func TestExpiredEventCancelsUnchainedDraft(t *testing.T) {
	store := newMemStore()
	svc := NewSignatureService(store, zerolog.Nop())

	saved, err := store.CreateContract(context.Background(), model.Contract{
		ContractNumber: "HC-FIRST",
		CustomerID:     uuid.New(),
		CustomerName:   "Customer",
		CustomerPhone:  "13800000005",
		WorkerID:       uuid.New(),
		WorkerName:     "Worker One",
		WorkerPhone:    "+86-100",
		WorkerSalary:   5000,
		StartDate:      date(2024, time.March, 1),
		EndDate:        date(2025, time.February, 28),
		ContractStatus: model.ContractStatusDraft,
		IsLatest:       true,
	})
	if err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	outcome, err := svc.ApplySignatureEvent(context.Background(), SignatureEvent{
		ContractID: saved.ID,
		Type:       SignatureEventExpired,
	})
	if err != nil {
		t.Fatalf("ApplySignatureEvent failed: %v", err)
	}
	if !outcome.Applied || outcome.Status != model.ContractStatusCancelled {
		t.Fatalf("outcome = %+v, want applied cancelled", outcome)
	}

	ledger, _ := store.GetLedger(context.Background(), "13800000005")
	if ledger.Entries[0].Status != model.LedgerEntryVoided {
		t.Errorf("entry status = %s, want voided", ledger.Entries[0].Status)
	}
	if ledger.LatestContractID != nil {
		t.Error("ledger latest pointer must be cleared")
	}
	checkInvariants(t, store)
}

func TestSignatureEventValidation(t *testing.T) {
	store := newMemStore()
	svc := NewSignatureService(store, zerolog.Nop())

	if _, err := svc.ApplySignatureEvent(context.Background(), SignatureEvent{
		ContractID: uuid.New(),
		Type:       "approved",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown event type, got %v", err)
	}

	if _, err := svc.ApplySignatureEvent(context.Background(), SignatureEvent{
		ContractID: uuid.New(),
		Type:       SignatureEventSigned,
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown contract, got %v", err)
	}
}
