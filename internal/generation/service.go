package generation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meshcraft/backend/internal/models"
)

// Cost is the credit price of one generation.
const Cost = 10

// DefaultEndpoint is the remote model endpoint used when the request does
// not pick one.
const DefaultEndpoint = "fal-ai/trellis"

// ErrNotFound is returned for an unknown or foreign generation ID.
var ErrNotFound = errors.New("generation not found")

// Store is the generation repository surface the service needs.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, g *models.Generation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Generation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Generation, error)
	SetRequestID(ctx context.Context, id uuid.UUID, requestID string) error
}

// Ledger charges the generation cost.
type Ledger interface {
	DeductCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error)
}

// Submitter enqueues the job with the remote provider.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, input map[string]any) (string, error)
}

type Service struct {
	store     Store
	ledger    Ledger
	submitter Submitter
	logger    *slog.Logger
}

func NewService(store Store, ledger Ledger, submitter Submitter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ledger: ledger, submitter: submitter, logger: logger}
}

// Create charges the user and records the job in one transaction, then
// submits to the provider. The submit call happens outside the transaction
// so a slow upstream cannot hold a row lock; if it fails, the job stays
// PENDING without a handle and the reconciler times it out and refunds.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, prompt, endpoint string, input map[string]any) (*models.Generation, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	gen := &models.Generation{
		ID:          uuid.New(),
		UserID:      userID,
		Prompt:      prompt,
		Endpoint:    endpoint,
		Status:      models.GenerationStatusPending,
		CreditsUsed: Cost,
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := s.ledger.DeductCreditsTx(ctx, tx, userID, Cost,
		models.TxTypeSpend, "3D model generation", &gen.ID); err != nil {
		return nil, err
	}
	if err := s.store.CreateTx(ctx, tx, gen); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{"prompt": prompt}
	for k, v := range input {
		payload[k] = v
	}
	requestID, err := s.submitter.Submit(ctx, endpoint, payload)
	if err != nil {
		s.logger.Error("generation submit failed, leaving job for reconciler",
			"generation_id", gen.ID, "error", err)
		return gen, nil
	}
	if err := s.store.SetRequestID(ctx, gen.ID, requestID); err != nil {
		s.logger.Error("record request id failed", "generation_id", gen.ID, "error", err)
		return gen, nil
	}
	gen.FalRequestID = &requestID
	gen.Status = models.GenerationStatusProcessing
	return gen, nil
}

// Get returns one generation, scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Generation, error) {
	gen, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if gen.UserID != userID {
		return nil, ErrNotFound
	}
	return gen, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*models.Generation, error) {
	return s.store.ListByUser(ctx, userID, 50)
}
