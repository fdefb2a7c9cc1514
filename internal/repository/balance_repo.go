package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meshcraft/backend/internal/models"
)

// BalanceRepo reads account_balances and creates the initial row at signup.
// All balance mutations go through the ledger package; nothing here writes
// the balance column.
type BalanceRepo struct {
	pool *pgxpool.Pool
}

func NewBalanceRepo(pool *pgxpool.Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// CreateTx inserts the zero balance row alongside the user account.
func (r *BalanceRepo) CreateTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO account_balances (user_id) VALUES ($1)
	`, userID)
	return err
}

func (r *BalanceRepo) Get(ctx context.Context, userID uuid.UUID) (*models.AccountBalance, error) {
	var b models.AccountBalance
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, balance, total_earned, total_spent, created_at, updated_at
		FROM account_balances WHERE user_id = $1
	`, userID).Scan(&b.UserID, &b.Balance, &b.TotalEarned, &b.TotalSpent, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
