package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aselim/homecare-contracts/internal/model"
	"github.com/aselim/homecare-contracts/internal/repository"
)

// ContractStore is the durable contract record plus the two atomic units the
// engine needs. Implemented by repository.ContractRepository.
type ContractStore interface {
	GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	GetLatestByPhone(ctx context.Context, customerPhone string) (*model.Contract, error)
	PendingReplacementExists(ctx context.Context, customerPhone string) (bool, error)
	CreateContract(ctx context.Context, contract model.Contract) (*model.Contract, error)
	CreateReplacement(ctx context.Context, w repository.ReplacementWrite) (*model.Contract, error)
	ReverseReplacement(ctx context.Context, w repository.ReversalWrite) error
	CancelContract(ctx context.Context, id uuid.UUID, reason string) error
	ActivateContract(ctx context.Context, id uuid.UUID) error
	CompleteElapsed(ctx context.Context, asOf time.Time) (int64, error)
}

// LedgerStore is the read side of the customer history projection.
// Implemented by repository.LedgerRepository.
type LedgerStore interface {
	GetLedger(ctx context.Context, customerPhone string) (*model.CustomerLedger, error)
	ListCurrent(ctx context.Context, filter repository.CurrentFilter) ([]model.Contract, error)
}
