package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/aselim/homecare-contracts/internal/model"
	"github.com/aselim/homecare-contracts/internal/repository"
)

type SignatureEventType string

const (
	SignatureEventSigned   SignatureEventType = "signed"
	SignatureEventRejected SignatureEventType = "rejected"
	SignatureEventExpired  SignatureEventType = "expired"
)

type SignatureEvent struct {
	ContractID uuid.UUID
	Type       SignatureEventType
}

// SignatureOutcome reports what the event did. Applied is false for
// duplicate or late deliveries, which are no-ops by design of the
// at-least-once webhook contract.
type SignatureOutcome struct {
	Applied bool
	Status  model.ContractStatus
}

// SignatureService consumes asynchronous confirmation events from the
// external e-signature provider and advances contract status accordingly.
type SignatureService struct {
	contracts ContractStore
	log       zerolog.Logger
}

func NewSignatureService(contracts ContractStore, log zerolog.Logger) *SignatureService {
	return &SignatureService{contracts: contracts, log: log}
}

// ApplySignatureEvent advances the contract state machine for one provider
// event. Deduplication is by current contract status: events that arrive for
// a contract already past draft are acknowledged without effect.
func (s *SignatureService) ApplySignatureEvent(ctx context.Context, event SignatureEvent) (*SignatureOutcome, error) {
	if event.ContractID == uuid.Nil {
		return nil, fmt.Errorf("%w: contract id is required", ErrInvalidInput)
	}
	switch event.Type {
	case SignatureEventSigned, SignatureEventRejected, SignatureEventExpired:
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, event.Type)
	}

	contract, err := s.contracts.GetContract(ctx, event.ContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if contract.ContractStatus != model.ContractStatusDraft {
		s.log.Info().
			Str("contract_id", contract.ID.String()).
			Str("status", string(contract.ContractStatus)).
			Str("event", string(event.Type)).
			Msg("signature event ignored for non-draft contract")
		return &SignatureOutcome{Applied: false, Status: contract.ContractStatus}, nil
	}

	switch event.Type {
	case SignatureEventSigned:
		err = s.contracts.ActivateContract(ctx, contract.ID)
		if err == nil {
			s.log.Info().Str("contract_id", contract.ID.String()).Msg("contract activated")
			return &SignatureOutcome{Applied: true, Status: model.ContractStatusActive}, nil
		}

	case SignatureEventRejected, SignatureEventExpired:
		reason := fmt.Sprintf("signature %s", event.Type)
		if contract.ReplacesContractID != nil {
			err = s.contracts.ReverseReplacement(ctx, repository.ReversalWrite{
				SuccessorID:   contract.ID,
				PredecessorID: *contract.ReplacesContractID,
				Reason:        reason,
			})
		} else {
			err = s.contracts.CancelContract(ctx, contract.ID, reason)
		}
		if err == nil {
			s.log.Info().
				Str("contract_id", contract.ID.String()).
				Str("event", string(event.Type)).
				Msg("contract cancelled on signature outcome")
			return &SignatureOutcome{Applied: true, Status: model.ContractStatusCancelled}, nil
		}
	}

	// A concurrent delivery won the guarded update between our read and
	// write. Treat it as the duplicate it is.
	if errors.Is(err, repository.ErrStale) {
		current, getErr := s.contracts.GetContract(ctx, event.ContractID)
		if getErr != nil {
			return nil, getErr
		}
		s.log.Info().
			Str("contract_id", contract.ID.String()).
			Str("event", string(event.Type)).
			Msg("signature event lost race; already applied")
		return &SignatureOutcome{Applied: false, Status: current.ContractStatus}, nil
	}
	return nil, err
}
