package model

import (
	"time"

	"github.com/google/uuid"
)

type ContractStatus string

const (
	ContractStatusDraft     ContractStatus = "draft"
	ContractStatusActive    ContractStatus = "active"
	ContractStatusReplaced  ContractStatus = "replaced"
	ContractStatusCancelled ContractStatus = "cancelled"
	ContractStatusCompleted ContractStatus = "completed"
)

// IsTerminal reports whether a contract in this status can no longer be
// advanced by a signature event. A replaced contract is still restorable
// through reversal, but reversal is keyed on the successor, not on it.
func (s ContractStatus) IsTerminal() bool {
	switch s {
	case ContractStatusReplaced, ContractStatusCancelled, ContractStatusCompleted:
		return true
	}
	return false
}

// Contract is one bounded service agreement between a customer and a worker.
// StartDate and EndDate are date-only (midnight UTC); the interval is inclusive.
type Contract struct {
	ID             uuid.UUID
	ContractNumber string

	CustomerID    uuid.UUID
	CustomerName  string
	CustomerPhone string

	WorkerID     uuid.UUID
	WorkerName   string
	WorkerPhone  string
	WorkerSalary float64

	StartDate time.Time
	EndDate   time.Time

	ContractStatus ContractStatus
	IsLatest       bool

	ReplacesContractID   *uuid.UUID
	ReplacedByContractID *uuid.UUID

	// ServiceDays is set only once the contract is superseded or completed.
	ServiceDays       *int
	TerminationReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWorker carries the identity of the worker taking over a customer.
type NewWorker struct {
	WorkerID     uuid.UUID
	WorkerName   string
	WorkerPhone  string
	WorkerSalary float64
}
