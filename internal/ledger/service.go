package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meshcraft/backend/internal/models"
)

// ErrInsufficientCredits is returned when a deduction exceeds the user's balance.
var ErrInsufficientCredits = errInsufficientCredits

// ErrInvalidAmount is returned for zero or negative amounts.
var ErrInvalidAmount = errors.New("amount must be > 0")

// ErrInvalidTxType is returned for a tx_type outside the closed enum.
var ErrInvalidTxType = errors.New("unknown transaction type")

// Service is the only write path to account balances. Every earn and spend
// inserts a transaction row and updates the balance in one database
// transaction.
type Service interface {
	AddCredits(ctx context.Context, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error)
	DeductCredits(ctx context.Context, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error)
	AddCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error)
	DeductCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error)
	LockBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.AccountBalance, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) validate(amount int, txType string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !models.ValidTxType(txType) {
		return ErrInvalidTxType
	}
	return nil
}

func (s *service) AddCredits(ctx context.Context, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error) {
	if err := s.validate(amount, txType); err != nil {
		return 0, err
	}
	return s.repo.AddCredits(ctx, userID, amount, txType, description, referenceID)
}

func (s *service) DeductCredits(ctx context.Context, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error) {
	if err := s.validate(amount, txType); err != nil {
		return 0, err
	}
	return s.repo.DeductCredits(ctx, userID, amount, txType, description, referenceID)
}

func (s *service) AddCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error) {
	if err := s.validate(amount, txType); err != nil {
		return 0, err
	}
	return s.repo.AddCreditsTx(ctx, tx, userID, amount, txType, description, referenceID)
}

func (s *service) DeductCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error) {
	if err := s.validate(amount, txType); err != nil {
		return 0, err
	}
	return s.repo.DeductCreditsTx(ctx, tx, userID, amount, txType, description, referenceID)
}

func (s *service) LockBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.AccountBalance, error) {
	return s.repo.LockBalanceTx(ctx, tx, userID)
}

func (s *service) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.repo.Begin(ctx)
}
