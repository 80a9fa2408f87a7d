package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aselim/homecare-contracts/internal/model"
	"github.com/aselim/homecare-contracts/internal/repository"
)

// QueryService is the read-only projection surface. It never mutates and
// relies on the store's read consistency.
type QueryService struct {
	contracts ContractStore
	ledgers   LedgerStore
}

func NewQueryService(contracts ContractStore, ledgers LedgerStore) *QueryService {
	return &QueryService{contracts: contracts, ledgers: ledgers}
}

// Contract returns one contract by id.
func (s *QueryService) Contract(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	contract, err := s.contracts.GetContract(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return contract, nil
}

// CurrentContract returns the customer's single latest non-cancelled
// contract.
func (s *QueryService) CurrentContract(ctx context.Context, customerPhone string) (*model.Contract, error) {
	customerPhone = strings.TrimSpace(customerPhone)
	if customerPhone == "" {
		return nil, fmt.Errorf("%w: customer phone is required", ErrInvalidInput)
	}
	contract, err := s.contracts.GetLatestByPhone(ctx, customerPhone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return contract, nil
}

// History returns the customer's full ordered chain, voided entries
// included.
func (s *QueryService) History(ctx context.Context, customerPhone string) (*model.CustomerLedger, error) {
	customerPhone = strings.TrimSpace(customerPhone)
	if customerPhone == "" {
		return nil, fmt.Errorf("%w: customer phone is required", ErrInvalidInput)
	}
	ledger, err := s.ledgers.GetLedger(ctx, customerPhone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ledger, nil
}

// AllCurrentContracts returns every customer's current contract, optionally
// narrowed by status or an upcoming end date.
func (s *QueryService) AllCurrentContracts(ctx context.Context, filter repository.CurrentFilter) ([]model.Contract, error) {
	if filter.Status != nil {
		switch *filter.Status {
		case model.ContractStatusDraft, model.ContractStatusActive:
		default:
			return nil, fmt.Errorf("%w: status filter must be draft or active", ErrInvalidInput)
		}
	}
	return s.ledgers.ListCurrent(ctx, filter)
}
