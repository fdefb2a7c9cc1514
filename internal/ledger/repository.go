package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meshcraft/backend/internal/models"
)

var errInsufficientCredits = errors.New("insufficient credits")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// AddCreditsTx runs inside the caller's transaction. It:
// a) Increments balance and total_earned on the user's balance row
// b) Inserts the matching transaction row
// Both land in the caller's transaction, so they commit or roll back together.
func (r *Repository) AddCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE account_balances
		SET balance = balance + $1, total_earned = total_earned + $1, updated_at = now()
		WHERE user_id = $2
		RETURNING balance
	`, amount, userID).Scan(&newBalance)
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (id, user_id, amount, tx_type, description, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), userID, amount, txType, description, referenceID)
	return newBalance, err
}

// DeductCreditsTx runs inside the caller's transaction. The conditional
// UPDATE (balance >= amount) is the atomic check-then-act: two concurrent
// spends serialize on the row lock and the loser sees the decremented
// balance, so a stale pre-check can never overdraw.
func (r *Repository) DeductCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE account_balances
		SET balance = balance - $1, total_spent = total_spent + $1, updated_at = now()
		WHERE user_id = $2 AND balance >= $1
		RETURNING balance
	`, amount, userID).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errInsufficientCredits
	}
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (id, user_id, amount, tx_type, description, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), userID, -amount, txType, description, referenceID)
	return newBalance, err
}

// LockBalanceTx locks the user's balance row for the duration of the caller's
// transaction. Callers that need a multi-statement check (daily caps,
// referral counts) take this lock first so concurrent requests serialize.
func (r *Repository) LockBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.AccountBalance, error) {
	var b models.AccountBalance
	err := tx.QueryRow(ctx, `
		SELECT user_id, balance, total_earned, total_spent, created_at, updated_at
		FROM account_balances WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&b.UserID, &b.Balance, &b.TotalEarned, &b.TotalSpent, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// AddCredits is the single-operation form: one transaction around AddCreditsTx.
func (r *Repository) AddCredits(ctx context.Context, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	newBalance, err := r.AddCreditsTx(ctx, tx, userID, amount, txType, description, referenceID)
	if err != nil {
		return 0, err
	}
	return newBalance, tx.Commit(ctx)
}

// DeductCredits is the single-operation form: one transaction around DeductCreditsTx.
func (r *Repository) DeductCredits(ctx context.Context, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	newBalance, err := r.DeductCreditsTx(ctx, tx, userID, amount, txType, description, referenceID)
	if err != nil {
		return 0, err
	}
	return newBalance, tx.Commit(ctx)
}
