package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meshcraft/backend/internal/models"
	"github.com/meshcraft/backend/internal/repository"
)

// Repository composes the user and balance repos for signup and login. It
// owns the signup transaction; the row-level SQL lives in the repository
// package.
type Repository struct {
	pool     *pgxpool.Pool
	users    *repository.UserRepo
	balances *repository.BalanceRepo
}

func NewRepository(pool *pgxpool.Pool, users *repository.UserRepo, balances *repository.BalanceRepo) *Repository {
	return &Repository{pool: pool, users: users, balances: balances}
}

// Create inserts the user and their zero balance row in one transaction, so
// an account can never exist without a ledger balance to write to.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.users.CreateTx(ctx, tx, u); err != nil {
		return err
	}
	if err := r.balances.CreateTx(ctx, tx, u.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByEmail returns the user for login, or nil when the email is unknown.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.users.GetByID(ctx, id)
}
