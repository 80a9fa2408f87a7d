package model

import (
	"time"

	"github.com/google/uuid"
)

type LedgerEntryStatus string

const (
	LedgerEntryDraft     LedgerEntryStatus = "draft"
	LedgerEntryActive    LedgerEntryStatus = "active"
	LedgerEntryReplaced  LedgerEntryStatus = "replaced"
	LedgerEntryCompleted LedgerEntryStatus = "completed"
	LedgerEntryVoided    LedgerEntryStatus = "voided"
)

// LedgerEntry is one append-only row in a customer's history: a snapshot of
// one contract at the position it entered the chain. Rows are corrected by
// annotation (status, service days, termination reason), never deleted, and
// Position is never reused.
type LedgerEntry struct {
	ID                uuid.UUID
	CustomerPhone     string
	ContractID        uuid.UUID
	ContractNumber    string
	WorkerName        string
	WorkerPhone       string
	WorkerSalary      float64
	StartDate         time.Time
	EndDate           time.Time
	Status            LedgerEntryStatus
	Position          int
	ServiceDays       *int
	TerminationReason *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CustomerLedger is the per-customer projection of the full contract chain.
// LatestContractID must always agree with the contract store's isLatest row.
type CustomerLedger struct {
	CustomerPhone    string
	CustomerName     string
	LatestContractID *uuid.UUID
	TotalWorkers     int
	Entries          []LedgerEntry
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
