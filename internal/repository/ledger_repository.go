package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aselim/homecare-contracts/internal/model"
)

// CurrentFilter narrows the fleet-wide current-contract listing.
type CurrentFilter struct {
	Status *model.ContractStatus
	// EndingBefore keeps only contracts whose end date falls before the
	// given date; used for upcoming-expiration views.
	EndingBefore *time.Time
}

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetLedger returns the full per-customer history, voided entries included,
// ordered by position.
func (r *LedgerRepository) GetLedger(ctx context.Context, customerPhone string) (*model.CustomerLedger, error) {
	var ledger model.CustomerLedger
	err := r.db.WithContext(ctx).Raw(`
		SELECT customer_phone, customer_name, latest_contract_id, total_workers, created_at, updated_at
		FROM customer_ledgers
		WHERE customer_phone = ?
		LIMIT 1
	`, customerPhone).Scan(&ledger).Error
	if err != nil {
		return nil, err
	}
	if ledger.CustomerPhone == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var entries []model.LedgerEntry
	err = r.db.WithContext(ctx).Raw(`
		SELECT
			id,
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
			termination_reason,
			created_at,
			updated_at
		FROM ledger_entries
		WHERE customer_phone = ?
		ORDER BY position ASC
	`, customerPhone).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	ledger.Entries = entries
	return &ledger, nil
}

// ListCurrent returns every customer's latest non-cancelled contract. Only
// committed state is visible; a replacement mid-transaction never shows two
// rows for one customer.
func (r *LedgerRepository) ListCurrent(ctx context.Context, filter CurrentFilter) ([]model.Contract, error) {
	baseQuery := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE is_latest
			AND contract_status <> 'cancelled'
	`
	args := []interface{}{}
	if filter.Status != nil {
		baseQuery += " AND contract_status = ?"
		args = append(args, *filter.Status)
	}
	if filter.EndingBefore != nil {
		baseQuery += " AND end_date < ?"
		args = append(args, *filter.EndingBefore)
	}
	baseQuery += " ORDER BY end_date ASC, customer_phone ASC"

	var contracts []model.Contract
	if err := r.db.WithContext(ctx).Raw(baseQuery, args...).Scan(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}
