package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aselim/homecare-contracts/internal/model"
	"github.com/aselim/homecare-contracts/internal/repository"
)

// memStore implements ContractStore and LedgerStore in memory with the same
// guarded-update semantics as the SQL repositories, so the scenario tests
// exercise the real state machine without a database.
type memStore struct {
	contracts map[uuid.UUID]*model.Contract
	ledgers   map[string]*model.CustomerLedger

	// failNextReplacement simulates losing the store-level CAS race.
	failNextReplacement error
}

func newMemStore() *memStore {
	return &memStore{
		contracts: make(map[uuid.UUID]*model.Contract),
		ledgers:   make(map[string]*model.CustomerLedger),
	}
}

func (m *memStore) GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	if c, ok := m.contracts[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) GetLatestByPhone(ctx context.Context, customerPhone string) (*model.Contract, error) {
	for _, c := range m.contracts {
		if c.CustomerPhone == customerPhone && c.IsLatest && c.ContractStatus != model.ContractStatusCancelled {
			copied := *c
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) PendingReplacementExists(ctx context.Context, customerPhone string) (bool, error) {
	for _, c := range m.contracts {
		if c.CustomerPhone == customerPhone &&
			c.ContractStatus == model.ContractStatusDraft &&
			c.ReplacesContractID != nil {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateContract(ctx context.Context, contract model.Contract) (*model.Contract, error) {
	for _, existing := range m.contracts {
		if existing.CustomerPhone == contract.CustomerPhone &&
			existing.IsLatest && existing.ContractStatus != model.ContractStatusCancelled {
			return nil, repository.ErrStale
		}
	}

	saved := contract
	saved.ID = uuid.New()
	saved.CreatedAt = time.Now().UTC()
	saved.UpdatedAt = saved.CreatedAt
	m.contracts[saved.ID] = &saved

	m.upsertLedger(saved.CustomerPhone, saved.CustomerName)
	m.appendEntry(saved, model.LedgerEntryStatus(saved.ContractStatus), nil, nil)
	m.repoint(saved.CustomerPhone, &saved.ID)

	copied := saved
	return &copied, nil
}

func (m *memStore) CreateReplacement(ctx context.Context, w repository.ReplacementWrite) (*model.Contract, error) {
	if m.failNextReplacement != nil {
		err := m.failNextReplacement
		m.failNextReplacement = nil
		return nil, err
	}

	predecessor, ok := m.contracts[w.PredecessorID]
	if !ok || !predecessor.IsLatest ||
		(predecessor.ContractStatus != model.ContractStatusDraft && predecessor.ContractStatus != model.ContractStatusActive) {
		return nil, repository.ErrStale
	}

	predecessor.IsLatest = false
	predecessor.ContractStatus = w.PredecessorStatus
	days := w.PredecessorServiceDays
	predecessor.ServiceDays = &days
	reason := w.TerminationReason
	predecessor.TerminationReason = &reason
	predecessor.UpdatedAt = time.Now().UTC()

	saved := w.NewContract
	saved.ID = uuid.New()
	saved.CreatedAt = time.Now().UTC()
	saved.UpdatedAt = saved.CreatedAt
	m.contracts[saved.ID] = &saved

	if w.Chained {
		predecessor.ReplacedByContractID = &saved.ID
	}

	m.upsertLedger(saved.CustomerPhone, saved.CustomerName)
	entryStatus := model.LedgerEntryReplaced
	if w.PredecessorStatus == model.ContractStatusCompleted {
		entryStatus = model.LedgerEntryCompleted
	}
	if !m.annotateEntry(w.PredecessorID, entryStatus, &days, &reason) {
		m.appendEntry(*predecessor, entryStatus, &days, &reason)
	}
	m.appendEntry(saved, model.LedgerEntryDraft, nil, nil)
	m.repoint(saved.CustomerPhone, &saved.ID)

	copied := saved
	return &copied, nil
}

func (m *memStore) ReverseReplacement(ctx context.Context, w repository.ReversalWrite) error {
	successor, ok := m.contracts[w.SuccessorID]
	if !ok || successor.ContractStatus != model.ContractStatusDraft {
		return repository.ErrStale
	}

	successor.ContractStatus = model.ContractStatusCancelled
	successor.IsLatest = false
	reason := w.Reason
	successor.TerminationReason = &reason
	successor.UpdatedAt = time.Now().UTC()

	predecessor, ok := m.contracts[w.PredecessorID]
	if ok {
		predecessor.IsLatest = true
		predecessor.ContractStatus = model.ContractStatusActive
		predecessor.ReplacedByContractID = nil
		predecessor.ServiceDays = nil
		predecessor.TerminationReason = nil
		predecessor.UpdatedAt = time.Now().UTC()
	}

	m.annotateEntry(w.SuccessorID, model.LedgerEntryVoided, nil, &reason)
	m.clearEntry(w.PredecessorID, model.LedgerEntryActive)
	m.repoint(successor.CustomerPhone, &w.PredecessorID)
	return nil
}

func (m *memStore) CancelContract(ctx context.Context, id uuid.UUID, reason string) error {
	contract, ok := m.contracts[id]
	if !ok || contract.ContractStatus != model.ContractStatusDraft {
		return repository.ErrStale
	}
	contract.ContractStatus = model.ContractStatusCancelled
	contract.IsLatest = false
	contract.TerminationReason = &reason
	contract.UpdatedAt = time.Now().UTC()

	m.annotateEntry(id, model.LedgerEntryVoided, nil, &reason)
	if ledger, ok := m.ledgers[contract.CustomerPhone]; ok &&
		ledger.LatestContractID != nil && *ledger.LatestContractID == id {
		ledger.LatestContractID = nil
	}
	return nil
}

func (m *memStore) ActivateContract(ctx context.Context, id uuid.UUID) error {
	contract, ok := m.contracts[id]
	if !ok || contract.ContractStatus != model.ContractStatusDraft {
		return repository.ErrStale
	}
	contract.ContractStatus = model.ContractStatusActive
	contract.UpdatedAt = time.Now().UTC()
	m.annotateEntry(id, model.LedgerEntryActive, contract.ServiceDays, contract.TerminationReason)
	return nil
}

func (m *memStore) CompleteElapsed(ctx context.Context, asOf time.Time) (int64, error) {
	var completed int64
	for _, c := range m.contracts {
		if c.IsLatest && c.ContractStatus == model.ContractStatusActive && c.EndDate.Before(asOf) {
			c.ContractStatus = model.ContractStatusCompleted
			days := int(c.EndDate.Sub(c.StartDate) / (24 * time.Hour))
			c.ServiceDays = &days
			c.UpdatedAt = time.Now().UTC()
			m.annotateEntry(c.ID, model.LedgerEntryCompleted, &days, nil)
			completed++
		}
	}
	return completed, nil
}

func (m *memStore) GetLedger(ctx context.Context, customerPhone string) (*model.CustomerLedger, error) {
	ledger, ok := m.ledgers[customerPhone]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *ledger
	copied.Entries = append([]model.LedgerEntry(nil), ledger.Entries...)
	sort.Slice(copied.Entries, func(i, j int) bool {
		return copied.Entries[i].Position < copied.Entries[j].Position
	})
	return &copied, nil
}

func (m *memStore) ListCurrent(ctx context.Context, filter repository.CurrentFilter) ([]model.Contract, error) {
	var result []model.Contract
	for _, c := range m.contracts {
		if !c.IsLatest || c.ContractStatus == model.ContractStatusCancelled {
			continue
		}
		if filter.Status != nil && c.ContractStatus != *filter.Status {
			continue
		}
		if filter.EndingBefore != nil && !c.EndDate.Before(*filter.EndingBefore) {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EndDate.Equal(result[j].EndDate) {
			return result[i].CustomerPhone < result[j].CustomerPhone
		}
		return result[i].EndDate.Before(result[j].EndDate)
	})
	return result, nil
}

func (m *memStore) upsertLedger(customerPhone, customerName string) {
	if _, ok := m.ledgers[customerPhone]; !ok {
		m.ledgers[customerPhone] = &model.CustomerLedger{
			CustomerPhone: customerPhone,
			CustomerName:  customerName,
		}
		return
	}
	m.ledgers[customerPhone].CustomerName = customerName
}

func (m *memStore) appendEntry(contract model.Contract, status model.LedgerEntryStatus, serviceDays *int, reason *string) {
	ledger := m.ledgers[contract.CustomerPhone]
	ledger.Entries = append(ledger.Entries, model.LedgerEntry{
		ID:                uuid.New(),
		CustomerPhone:     contract.CustomerPhone,
		ContractID:        contract.ID,
		ContractNumber:    contract.ContractNumber,
		WorkerName:        contract.WorkerName,
		WorkerPhone:       contract.WorkerPhone,
		WorkerSalary:      contract.WorkerSalary,
		StartDate:         contract.StartDate,
		EndDate:           contract.EndDate,
		Status:            status,
		Position:          len(ledger.Entries) + 1,
		ServiceDays:       serviceDays,
		TerminationReason: reason,
	})
	ledger.TotalWorkers = len(ledger.Entries)
}

func (m *memStore) annotateEntry(contractID uuid.UUID, status model.LedgerEntryStatus, serviceDays *int, reason *string) bool {
	for _, ledger := range m.ledgers {
		for i := range ledger.Entries {
			if ledger.Entries[i].ContractID == contractID {
				ledger.Entries[i].Status = status
				ledger.Entries[i].ServiceDays = serviceDays
				ledger.Entries[i].TerminationReason = reason
				return true
			}
		}
	}
	return false
}

func (m *memStore) clearEntry(contractID uuid.UUID, status model.LedgerEntryStatus) {
	for _, ledger := range m.ledgers {
		for i := range ledger.Entries {
			if ledger.Entries[i].ContractID == contractID {
				ledger.Entries[i].Status = status
				ledger.Entries[i].ServiceDays = nil
				ledger.Entries[i].TerminationReason = nil
				return
			}
		}
	}
}

func (m *memStore) repoint(customerPhone string, latest *uuid.UUID) {
	if ledger, ok := m.ledgers[customerPhone]; ok {
		ledger.LatestContractID = latest
	}
}

// checkInvariants asserts the core guarantees after every mutation: at most
// one latest non-cancelled contract per customer, bidirectional chain links
// and ledger agreement with the contract store.
func checkInvariants(t *testing.T, store *memStore) {
	t.Helper()

	latestByCustomer := make(map[string]int)
	for _, c := range store.contracts {
		if c.IsLatest && c.ContractStatus != model.ContractStatusCancelled {
			latestByCustomer[c.CustomerPhone]++
		}
	}
	for phone, count := range latestByCustomer {
		if count > 1 {
			t.Fatalf("customer %s has %d latest contracts", phone, count)
		}
	}

	for id, c := range store.contracts {
		if c.ReplacedByContractID != nil {
			successor, ok := store.contracts[*c.ReplacedByContractID]
			if !ok {
				t.Fatalf("contract %s replaced by unknown contract", id)
			}
			if successor.ReplacesContractID == nil || *successor.ReplacesContractID != id {
				t.Fatalf("chain links disagree between %s and %s", id, successor.ID)
			}
		}
	}

	for phone, ledger := range store.ledgers {
		var latest *uuid.UUID
		for _, c := range store.contracts {
			if c.CustomerPhone == phone && c.IsLatest && c.ContractStatus != model.ContractStatusCancelled {
				id := c.ID
				latest = &id
			}
		}
		switch {
		case latest == nil && ledger.LatestContractID != nil:
			t.Fatalf("ledger for %s points at %s but customer has no latest contract", phone, ledger.LatestContractID)
		case latest != nil && (ledger.LatestContractID == nil || *ledger.LatestContractID != *latest):
			t.Fatalf("ledger for %s disagrees with contract store about the latest contract", phone)
		}
	}
}
