package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/db"
	"coffee-backend/internal/models"
)

type AccountRepository struct {
	DB      *pgxpool.Pool
	Retries int
}

func NewAccountRepository(pool *pgxpool.Pool, retries int) *AccountRepository {
	return &AccountRepository{DB: pool, Retries: retries}
}

const accountColumns = `id, kind, owner_name, opening_amount, current_outstanding, status, issued_at,
	source_request_id, version, updated_at`

func scanAccount(row rowScanner) (*models.BalanceAccount, error) {
	a := &models.BalanceAccount{}
	err := row.Scan(&a.ID, &a.Kind, &a.OwnerName, &a.OpeningAmount, &a.CurrentOutstanding, &a.Status,
		&a.IssuedAt, &a.SourceRequestID, &a.Version, &a.UpdatedAt)
	return a, err
}

const paymentColumns = `id, account_id, amount, method, applied_at, applied_by, previous_balance, new_balance, idempotency_key`

func scanPayment(row rowScanner) (*models.PaymentEvent, error) {
	p := &models.PaymentEvent{}
	err := row.Scan(&p.ID, &p.AccountID, &p.Amount, &p.Method, &p.AppliedAt, &p.AppliedBy,
		&p.PreviousBalance, &p.NewBalance, &p.IdempotencyKey)
	return p, err
}

// Create inserts acct. When SourceRequestID is set and an account already
// exists for that request, the existing account is loaded into acct instead
// and created is false.
func (r *AccountRepository) Create(ctx context.Context, acct *models.BalanceAccount) (created bool, err error) {
	err = db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		insertErr := r.DB.QueryRow(ctx, `
			INSERT INTO balance_accounts (kind, owner_name, opening_amount, current_outstanding, status, issued_at,
				source_request_id, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $6)
			ON CONFLICT (source_request_id) WHERE source_request_id IS NOT NULL DO NOTHING
			RETURNING id, version`,
			acct.Kind, acct.OwnerName, acct.OpeningAmount, acct.CurrentOutstanding, acct.Status, acct.IssuedAt,
			acct.SourceRequestID,
		).Scan(&acct.ID, &acct.Version)
		if insertErr == nil {
			created = true
			return nil
		}
		if !errors.Is(insertErr, pgx.ErrNoRows) || acct.SourceRequestID == nil {
			return fmt.Errorf("failed to create balance account: %w", insertErr)
		}

		existing, loadErr := scanAccount(r.DB.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM balance_accounts WHERE source_request_id = $1`, *acct.SourceRequestID))
		if loadErr != nil {
			return fmt.Errorf("failed to load existing balance account: %w", loadErr)
		}
		*acct = *existing
		created = false
		return nil
	})
	return created, err
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.BalanceAccount, error) {
	var acct *models.BalanceAccount
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		var err error
		acct, err = scanAccount(r.DB.QueryRow(ctx, `SELECT `+accountColumns+` FROM balance_accounts WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("account", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance account: %w", err)
	}
	return acct, nil
}

func (r *AccountRepository) List(ctx context.Context, status models.AccountStatus) ([]*models.BalanceAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM balance_accounts`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY issued_at DESC, id DESC`

	var out []*models.BalanceAccount
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.DB.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAccount(rows)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list balance accounts: %w", err)
	}
	return out, nil
}

// ApplyPayment persists the new account state and its payment event as one
// transaction. A stale version returns apperr.ErrConflict; a reused
// idempotency key returns apperr.ErrDuplicate. Either way nothing is written.
func (r *AccountRepository) ApplyPayment(ctx context.Context, next *models.BalanceAccount, expectedVersion int, event *models.PaymentEvent) error {
	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		return db.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `
				UPDATE balance_accounts
				SET current_outstanding = $3, status = $4, version = version + 1, updated_at = $5
				WHERE id = $1 AND version = $2 AND current_outstanding >= 0`,
				next.ID, expectedVersion, next.CurrentOutstanding, next.Status, next.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to update balance account: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return apperr.ErrConflict
			}

			err = tx.QueryRow(ctx, `
				INSERT INTO payment_events (account_id, amount, method, applied_at, applied_by,
					previous_balance, new_balance, idempotency_key)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING id`,
				event.AccountID, event.Amount, event.Method, event.AppliedAt, event.AppliedBy,
				event.PreviousBalance, event.NewBalance, event.IdempotencyKey,
			).Scan(&event.ID)
			if db.IsUniqueViolation(err) {
				return apperr.ErrDuplicate
			}
			if err != nil {
				return fmt.Errorf("failed to insert payment event: %w", err)
			}

			next.Version = expectedVersion + 1
			return nil
		})
	})
}

// GetPaymentByKey returns the event recorded under key, or nil when none exists.
func (r *AccountRepository) GetPaymentByKey(ctx context.Context, key string) (*models.PaymentEvent, error) {
	var event *models.PaymentEvent
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		var err error
		event, err = scanPayment(r.DB.QueryRow(ctx,
			`SELECT `+paymentColumns+` FROM payment_events WHERE idempotency_key = $1`, key))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment event: %w", err)
	}
	return event, nil
}

func (r *AccountRepository) ListPayments(ctx context.Context, accountID int64) ([]*models.PaymentEvent, error) {
	var out []*models.PaymentEvent
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.DB.Query(ctx,
			`SELECT `+paymentColumns+` FROM payment_events WHERE account_id = $1 ORDER BY applied_at, id`, accountID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPayment(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list payment events: %w", err)
	}
	return out, nil
}
