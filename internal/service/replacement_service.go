package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/aselim/homecare-contracts/internal/config"
	"github.com/aselim/homecare-contracts/internal/continuity"
	"github.com/aselim/homecare-contracts/internal/model"
	"github.com/aselim/homecare-contracts/internal/repository"
)

// ReplacementService drives the worker-replacement state machine: it
// validates preconditions, computes the interval splice and hands the
// resulting atomic unit to the store.
type ReplacementService struct {
	contracts ContractStore
	cfg       *config.Config
	log       zerolog.Logger
}

func NewReplacementService(contracts ContractStore, cfg *config.Config, log zerolog.Logger) *ReplacementService {
	return &ReplacementService{contracts: contracts, cfg: cfg, log: log}
}

type ReplaceWorkerInput struct {
	OriginalContractID uuid.UUID
	Worker             model.NewWorker
	// ChangeDate defaults to today when zero.
	ChangeDate time.Time
	// AcknowledgeExpired must be set to replace a contract whose nominal
	// end date has already passed.
	AcknowledgeExpired bool
	Principal          model.Principal
}

type ReplaceWorkerResult struct {
	Contract *model.Contract
	// Expired is set when the change date fell after the original
	// contract's end date and the configured expired policy was applied.
	Expired bool
}

type CreateContractInput struct {
	CustomerID    uuid.UUID
	CustomerName  string
	CustomerPhone string
	Worker        model.NewWorker
	StartDate     time.Time
	EndDate       time.Time
	Principal     model.Principal
}

// ReplaceWorker supersedes the worker on the customer's current contract.
// The successor is created as a draft; the caller drives the external
// signing workflow that later activates or cancels it.
func (s *ReplacementService) ReplaceWorker(ctx context.Context, input ReplaceWorkerInput) (*ReplaceWorkerResult, error) {
	if !input.Principal.CanMutate() {
		return nil, ErrPermissionDenied
	}
	if input.OriginalContractID == uuid.Nil {
		return nil, fmt.Errorf("%w: original contract id is required", ErrInvalidInput)
	}
	if err := validateWorker(input.Worker); err != nil {
		return nil, err
	}

	changeDate := continuity.DateOnly(input.ChangeDate)
	if changeDate.IsZero() {
		changeDate = continuity.DateOnly(time.Now().UTC())
	}

	original, err := s.contracts.GetContract(ctx, input.OriginalContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !original.IsLatest {
		// A draft successor still awaiting its signature outcome means a
		// replacement is in flight, not merely that the caller is stale.
		if original.ReplacedByContractID != nil {
			if successor, err := s.contracts.GetContract(ctx, *original.ReplacedByContractID); err == nil &&
				successor.ContractStatus == model.ContractStatusDraft {
				return nil, ErrReplacementInProgress
			}
		}
		return nil, ErrNotLatest
	}

	switch original.ContractStatus {
	case model.ContractStatusDraft, model.ContractStatusActive:
	case model.ContractStatusReplaced:
		return nil, ErrNotLatest
	default:
		return nil, fmt.Errorf("%w: contract is %s", ErrInvalidInput, original.ContractStatus)
	}

	// A pending draft successor can only exist as the latest contract, so
	// when the original is active any pending chained draft means another
	// replacement is mid-flight. The guarded update in the store is the
	// authoritative race arbiter; this check just fails fast.
	if original.ContractStatus == model.ContractStatusActive {
		pending, err := s.contracts.PendingReplacementExists(ctx, original.CustomerPhone)
		if err != nil {
			return nil, err
		}
		if pending {
			return nil, ErrReplacementInProgress
		}
	}

	splice, err := continuity.Splice(original.StartDate, original.EndDate, changeDate)
	if err != nil {
		if errors.Is(err, continuity.ErrChangeBeforeStart) {
			return nil, fmt.Errorf("%w: change %s precedes start %s", ErrInvalidContinuity,
				changeDate.Format("2006-01-02"), original.StartDate.Format("2006-01-02"))
		}
		return nil, err
	}

	write := repository.ReplacementWrite{
		PredecessorID:          original.ID,
		PredecessorStatus:      model.ContractStatusReplaced,
		PredecessorServiceDays: splice.PredecessorServiceDays,
		TerminationReason:      fmt.Sprintf("replaced by %s", input.Worker.WorkerName),
		Chained:                true,
	}
	newStart, newEnd := splice.NewStart, splice.NewEnd

	if splice.Expired {
		if !input.AcknowledgeExpired {
			return nil, fmt.Errorf("%w: contract ended %s", ErrExpiredContract, original.EndDate.Format("2006-01-02"))
		}
		if s.cfg.Replacement.ExpiredPolicy == config.ExpiredPolicyFresh {
			// Close the original out as naturally completed and start an
			// unchained contract of the same nominal length.
			nominal := continuity.DaysBetween(original.StartDate, original.EndDate)
			write.PredecessorStatus = model.ContractStatusCompleted
			write.PredecessorServiceDays = nominal
			write.TerminationReason = "completed before replacement"
			write.Chained = false
			newEnd = newStart.AddDate(0, 0, nominal)
		}
	}

	newContract := model.Contract{
		ContractNumber: newContractNumber(changeDate),
		CustomerID:     original.CustomerID,
		CustomerName:   original.CustomerName,
		CustomerPhone:  original.CustomerPhone,
		WorkerID:       input.Worker.WorkerID,
		WorkerName:     input.Worker.WorkerName,
		WorkerPhone:    input.Worker.WorkerPhone,
		WorkerSalary:   input.Worker.WorkerSalary,
		StartDate:      newStart,
		EndDate:        newEnd,
		ContractStatus: model.ContractStatusDraft,
		IsLatest:       true,
	}
	if write.Chained {
		newContract.ReplacesContractID = &original.ID
	}
	write.NewContract = newContract

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.Replacement.TxTimeout)
	defer cancel()

	saved, err := s.contracts.CreateReplacement(txCtx, write)
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, ErrReplacementInProgress
		}
		return nil, fmt.Errorf("%w: %v", ErrReplacementFailed, err)
	}

	s.log.Info().
		Str("customer_phone", saved.CustomerPhone).
		Str("original_contract_id", original.ID.String()).
		Str("new_contract_id", saved.ID.String()).
		Bool("expired", splice.Expired).
		Msg("worker replaced")

	return &ReplaceWorkerResult{Contract: saved, Expired: splice.Expired}, nil
}

// CreateContract opens a customer's first contract (status draft until the
// signer confirms).
func (s *ReplacementService) CreateContract(ctx context.Context, input CreateContractInput) (*model.Contract, error) {
	if !input.Principal.CanMutate() {
		return nil, ErrPermissionDenied
	}
	if input.CustomerID == uuid.Nil || strings.TrimSpace(input.CustomerPhone) == "" {
		return nil, fmt.Errorf("%w: customer id and phone are required", ErrInvalidInput)
	}
	if err := validateWorker(input.Worker); err != nil {
		return nil, err
	}

	start := continuity.DateOnly(input.StartDate)
	end := continuity.DateOnly(input.EndDate)
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", ErrInvalidInput)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}

	if _, err := s.contracts.GetLatestByPhone(ctx, input.CustomerPhone); err == nil {
		return nil, ErrContractExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	contract := model.Contract{
		ContractNumber: newContractNumber(start),
		CustomerID:     input.CustomerID,
		CustomerName:   input.CustomerName,
		CustomerPhone:  input.CustomerPhone,
		WorkerID:       input.Worker.WorkerID,
		WorkerName:     input.Worker.WorkerName,
		WorkerPhone:    input.Worker.WorkerPhone,
		WorkerSalary:   input.Worker.WorkerSalary,
		StartDate:      start,
		EndDate:        end,
		ContractStatus: model.ContractStatusDraft,
		IsLatest:       true,
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.Replacement.TxTimeout)
	defer cancel()

	saved, err := s.contracts.CreateContract(txCtx, contract)
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, ErrContractExists
		}
		return nil, err
	}

	s.log.Info().
		Str("customer_phone", saved.CustomerPhone).
		Str("contract_id", saved.ID.String()).
		Msg("contract created")
	return saved, nil
}

// CompleteElapsed closes out latest active contracts whose end date has
// passed. Invoked by the operator-driven expiry sweep; the engine runs no
// timers of its own.
func (s *ReplacementService) CompleteElapsed(ctx context.Context, asOf time.Time, principal model.Principal) (int64, error) {
	if !principal.IsAdmin() {
		return 0, ErrPermissionDenied
	}
	cutoff := continuity.DateOnly(asOf)
	if cutoff.IsZero() {
		cutoff = continuity.DateOnly(time.Now().UTC())
	}

	completed, err := s.contracts.CompleteElapsed(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if completed > 0 {
		s.log.Info().Int64("completed", completed).Time("as_of", cutoff).Msg("elapsed contracts completed")
	}
	return completed, nil
}

func validateWorker(worker model.NewWorker) error {
	if worker.WorkerID == uuid.Nil {
		return fmt.Errorf("%w: worker id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(worker.WorkerName) == "" {
		return fmt.Errorf("%w: worker name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(worker.WorkerPhone) == "" {
		return fmt.Errorf("%w: worker phone is required", ErrInvalidInput)
	}
	if worker.WorkerSalary <= 0 {
		return fmt.Errorf("%w: worker salary must be positive", ErrInvalidInput)
	}
	return nil
}

func newContractNumber(day time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("HC-%s-%s", day.Format("20060102"), suffix)
}
