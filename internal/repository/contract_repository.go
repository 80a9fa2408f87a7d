package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/aselim/homecare-contracts/internal/model"
)

const pgErrUniqueViolation = "23505"

const contractColumns = `
	id,
	contract_number,
	customer_id,
	customer_name,
	customer_phone,
	worker_id,
	worker_name,
	worker_phone,
	worker_salary,
	start_date,
	end_date,
	contract_status,
	is_latest,
	replaces_contract_id,
	replaced_by_contract_id,
	service_days,
	termination_reason,
	created_at,
	updated_at
`

// ReplacementWrite is the single atomic unit of a worker replacement: the
// predecessor relink, the successor insert and the ledger appends commit
// together or not at all.
type ReplacementWrite struct {
	// NewContract is the fully built successor (status draft, latest).
	NewContract model.Contract
	// PredecessorID is the contract being superseded. The update is
	// guarded: it must still be the latest draft/active row, otherwise
	// the whole write fails with ErrStale.
	PredecessorID uuid.UUID
	// PredecessorStatus is "replaced" for a chained replacement or
	// "completed" under the fresh expired policy.
	PredecessorStatus      model.ContractStatus
	PredecessorServiceDays int
	TerminationReason      string
	// Chained links the two contracts via replaces/replaced-by. Unset
	// under the fresh expired policy.
	Chained bool
}

// ReversalWrite undoes a replacement after the signer rejected the successor.
type ReversalWrite struct {
	SuccessorID   uuid.UUID
	PredecessorID uuid.UUID
	Reason        string
}

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+contractColumns+`
		FROM contracts
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&contract).Error
	if err != nil {
		return nil, err
	}
	if contract.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &contract, nil
}

func (r *ContractRepository) GetLatestByPhone(ctx context.Context, customerPhone string) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+contractColumns+`
		FROM contracts
		WHERE customer_phone = ?
			AND is_latest
			AND contract_status <> 'cancelled'
		LIMIT 1
	`, customerPhone).Scan(&contract).Error
	if err != nil {
		return nil, err
	}
	if contract.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &contract, nil
}

// PendingReplacementExists reports whether a draft successor is already in
// flight for the customer, i.e. a replacement awaiting its signature outcome.
func (r *ContractRepository) PendingReplacementExists(ctx context.Context, customerPhone string) (bool, error) {
	var pending bool
	err := r.db.WithContext(ctx).Raw(`
		SELECT EXISTS (
			SELECT 1 FROM contracts
			WHERE customer_phone = ?
				AND contract_status = 'draft'
				AND replaces_contract_id IS NOT NULL
		)
	`, customerPhone).Scan(&pending).Error
	if err != nil {
		return false, err
	}
	return pending, nil
}

// CreateContract inserts a customer's first (or unchained) contract and its
// ledger entry as one transaction.
func (r *ContractRepository) CreateContract(ctx context.Context, contract model.Contract) (*model.Contract, error) {
	var saved model.Contract
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := insertContract(tx, contract)
		if err != nil {
			return err
		}
		saved = *inserted

		if err := upsertLedgerHeader(tx, saved.CustomerPhone, saved.CustomerName); err != nil {
			return err
		}
		if err := appendLedgerEntry(tx, saved, model.LedgerEntryStatus(saved.ContractStatus), nil, nil); err != nil {
			return err
		}
		return repointLedger(tx, saved.CustomerPhone, &saved.ID)
	})
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &saved, nil
}

// CreateReplacement performs the replacement atomic unit. The predecessor is
// relinked first under a guard on is_latest, so a racing replacement loses
// with ErrStale instead of producing a second latest contract. The partial
// unique index on (customer_phone) is the final backstop; a violation is
// reported the same way.
func (r *ContractRepository) CreateReplacement(ctx context.Context, w ReplacementWrite) (*model.Contract, error) {
	var saved model.Contract
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE contracts
			SET is_latest = FALSE,
				contract_status = ?,
				service_days = ?,
				termination_reason = ?,
				updated_at = NOW()
			WHERE id = ?
				AND is_latest
				AND contract_status IN ('draft', 'active')
		`, w.PredecessorStatus, w.PredecessorServiceDays, w.TerminationReason, w.PredecessorID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}

		inserted, err := insertContract(tx, w.NewContract)
		if err != nil {
			return err
		}
		saved = *inserted

		if w.Chained {
			if err := tx.Exec(`
				UPDATE contracts
				SET replaced_by_contract_id = ?, updated_at = NOW()
				WHERE id = ?
			`, saved.ID, w.PredecessorID).Error; err != nil {
				return err
			}
		}

		if err := upsertLedgerHeader(tx, saved.CustomerPhone, saved.CustomerName); err != nil {
			return err
		}
		if err := annotateOrAppendPredecessor(tx, w, saved.CustomerPhone); err != nil {
			return err
		}
		if err := appendLedgerEntry(tx, saved, model.LedgerEntryDraft, nil, nil); err != nil {
			return err
		}
		return repointLedger(tx, saved.CustomerPhone, &saved.ID)
	})
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &saved, nil
}

// ReverseReplacement is the reversal atomic unit: cancel the rejected
// successor, restore the predecessor as latest/active and annotate the
// ledger. The successor update is guarded on status draft, so a duplicate
// webhook that raced past the service-level status check fails with ErrStale
// instead of reversing twice.
func (r *ContractRepository) ReverseReplacement(ctx context.Context, w ReversalWrite) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE contracts
			SET contract_status = 'cancelled',
				is_latest = FALSE,
				termination_reason = ?,
				updated_at = NOW()
			WHERE id = ? AND contract_status = 'draft'
		`, w.Reason, w.SuccessorID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}

		if err := tx.Exec(`
			UPDATE contracts
			SET is_latest = TRUE,
				contract_status = 'active',
				replaced_by_contract_id = NULL,
				service_days = NULL,
				termination_reason = NULL,
				updated_at = NOW()
			WHERE id = ?
		`, w.PredecessorID).Error; err != nil {
			return err
		}

		var customerPhone string
		if err := tx.Raw(`
			SELECT customer_phone FROM contracts WHERE id = ?
		`, w.SuccessorID).Scan(&customerPhone).Error; err != nil {
			return err
		}

		if err := tx.Exec(`
			UPDATE ledger_entries
			SET status = 'voided', termination_reason = ?, updated_at = NOW()
			WHERE contract_id = ?
		`, w.Reason, w.SuccessorID).Error; err != nil {
			return err
		}
		if err := tx.Exec(`
			UPDATE ledger_entries
			SET status = 'active', service_days = NULL, termination_reason = NULL, updated_at = NOW()
			WHERE contract_id = ?
		`, w.PredecessorID).Error; err != nil {
			return err
		}
		return repointLedger(tx, customerPhone, &w.PredecessorID)
	})
	return mapUniqueViolation(err)
}

// CancelContract cancels an unchained draft (fresh-policy successor or first
// contract) whose signing was rejected. There is no predecessor to restore;
// the ledger's latest pointer is cleared if it pointed here.
func (r *ContractRepository) CancelContract(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE contracts
			SET contract_status = 'cancelled',
				is_latest = FALSE,
				termination_reason = ?,
				updated_at = NOW()
			WHERE id = ? AND contract_status = 'draft'
		`, reason, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}

		if err := tx.Exec(`
			UPDATE ledger_entries
			SET status = 'voided', termination_reason = ?, updated_at = NOW()
			WHERE contract_id = ?
		`, reason, id).Error; err != nil {
			return err
		}
		return tx.Exec(`
			UPDATE customer_ledgers
			SET latest_contract_id = NULL, updated_at = NOW()
			WHERE latest_contract_id = ?
		`, id).Error
	})
}

// ActivateContract flips a draft to active after the signer completed.
// Guarded on status draft so duplicate deliveries are detected upstream or
// surface as ErrStale here.
func (r *ContractRepository) ActivateContract(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE contracts
			SET contract_status = 'active', updated_at = NOW()
			WHERE id = ? AND contract_status = 'draft'
		`, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}
		return tx.Exec(`
			UPDATE ledger_entries
			SET status = 'active', updated_at = NOW()
			WHERE contract_id = ?
		`, id).Error
	})
}

// CompleteElapsed closes out latest active contracts whose end date has
// passed, recording their full nominal interval as service days. Returns the
// number of contracts completed.
func (r *ContractRepository) CompleteElapsed(ctx context.Context, asOf time.Time) (int64, error) {
	var completed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		if err := tx.Raw(`
			UPDATE contracts
			SET contract_status = 'completed',
				service_days = (end_date - start_date),
				updated_at = NOW()
			WHERE is_latest
				AND contract_status = 'active'
				AND end_date < ?
			RETURNING id
		`, asOf).Scan(&ids).Error; err != nil {
			return err
		}
		completed = int64(len(ids))
		if completed == 0 {
			return nil
		}
		return tx.Exec(`
			UPDATE ledger_entries le
			SET status = 'completed',
				service_days = c.service_days,
				updated_at = NOW()
			FROM contracts c
			WHERE c.id = le.contract_id AND le.contract_id IN ?
		`, ids).Error
	})
	if err != nil {
		return 0, err
	}
	return completed, nil
}

func insertContract(tx *gorm.DB, contract model.Contract) (*model.Contract, error) {
	var saved model.Contract
	err := tx.Raw(`
		INSERT INTO contracts (
			contract_number,
			customer_id,
			customer_name,
			customer_phone,
			worker_id,
			worker_name,
			worker_phone,
			worker_salary,
			start_date,
			end_date,
			contract_status,
			is_latest,
			replaces_contract_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+contractColumns,
		contract.ContractNumber,
		contract.CustomerID,
		contract.CustomerName,
		contract.CustomerPhone,
		contract.WorkerID,
		contract.WorkerName,
		contract.WorkerPhone,
		contract.WorkerSalary,
		contract.StartDate,
		contract.EndDate,
		contract.ContractStatus,
		contract.IsLatest,
		contract.ReplacesContractID,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func upsertLedgerHeader(tx *gorm.DB, customerPhone, customerName string) error {
	return tx.Exec(`
		INSERT INTO customer_ledgers (customer_phone, customer_name)
		VALUES (?, ?)
		ON CONFLICT (customer_phone) DO UPDATE
		SET customer_name = EXCLUDED.customer_name, updated_at = NOW()
	`, customerPhone, customerName).Error
}

// annotateOrAppendPredecessor corrects the predecessor's ledger row. A
// contract that predates the ledger gets a fresh row instead, so history
// stays complete for customers migrated from before the ledger existed.
func annotateOrAppendPredecessor(tx *gorm.DB, w ReplacementWrite, customerPhone string) error {
	status := model.LedgerEntryReplaced
	if w.PredecessorStatus == model.ContractStatusCompleted {
		status = model.LedgerEntryCompleted
	}

	res := tx.Exec(`
		UPDATE ledger_entries
		SET status = ?, service_days = ?, termination_reason = ?, updated_at = NOW()
		WHERE contract_id = ?
	`, status, w.PredecessorServiceDays, w.TerminationReason, w.PredecessorID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var predecessor model.Contract
	if err := tx.Raw(`
		SELECT `+contractColumns+`
		FROM contracts
		WHERE id = ?
	`, w.PredecessorID).Scan(&predecessor).Error; err != nil {
		return err
	}
	days := w.PredecessorServiceDays
	reason := w.TerminationReason
	return appendLedgerEntry(tx, predecessor, status, &days, &reason)
}

func appendLedgerEntry(tx *gorm.DB, contract model.Contract, status model.LedgerEntryStatus, serviceDays *int, reason *string) error {
	return tx.Exec(`
		INSERT INTO ledger_entries (
			customer_phone,
			contract_id,
			contract_number,
			worker_name,
			worker_phone,
			worker_salary,
			start_date,
			end_date,
			status,
			position,
			service_days,
			termination_reason
		)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE(MAX(position), 0) + 1, ?, ?
		FROM ledger_entries
		WHERE customer_phone = ?
	`,
		contract.CustomerPhone,
		contract.ID,
		contract.ContractNumber,
		contract.WorkerName,
		contract.WorkerPhone,
		contract.WorkerSalary,
		contract.StartDate,
		contract.EndDate,
		status,
		serviceDays,
		reason,
		contract.CustomerPhone,
	).Error
}

func repointLedger(tx *gorm.DB, customerPhone string, latestContractID *uuid.UUID) error {
	return tx.Exec(`
		UPDATE customer_ledgers
		SET latest_contract_id = ?,
			total_workers = (SELECT COUNT(*) FROM ledger_entries WHERE customer_phone = ?),
			updated_at = NOW()
		WHERE customer_phone = ?
	`, latestContractID, customerPhone, customerPhone).Error
}

// mapUniqueViolation folds a violation of the one-latest-per-customer index
// into the same stale signal a lost guarded update produces.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
		return ErrStale
	}
	return err
}
