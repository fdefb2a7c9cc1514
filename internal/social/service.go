package social

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meshcraft/backend/internal/models"
)

// DefaultDailyLimit caps credits earned from shares per user per day.
const DefaultDailyLimit = 20

var (
	ErrUnknownPlatform   = errors.New("unknown platform")
	ErrAlreadyShared     = errors.New("content already shared on this platform")
	ErrDailyLimitReached = errors.New("daily share limit reached")
)

// RewardTable maps a platform to its base reward. Injected configuration so
// operators can retune rewards without code changes.
type RewardTable map[string]int

// DefaultRewards mirrors the production reward table.
func DefaultRewards() RewardTable {
	return RewardTable{
		models.PlatformTwitter:   5,
		models.PlatformFacebook:  5,
		models.PlatformInstagram: 5,
		models.PlatformLinkedIn:  5,
		models.PlatformPinterest: 3,
	}
}

// Store is the share repository surface the engine needs.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	InsertTx(ctx context.Context, tx pgx.Tx, s *models.SocialShare) error
	DailyCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error)
	UpdateAwardTx(ctx context.Context, tx pgx.Tx, shareID uuid.UUID, credits int) error
	Stats(ctx context.Context, userID uuid.UUID) (*models.ShareStats, error)
}

// Ledger is the credit-granting surface the engine needs.
type Ledger interface {
	LockBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.AccountBalance, error)
	AddCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error)
}

type Service struct {
	store      Store
	ledger     Ledger
	rewards    RewardTable
	dailyLimit int
	logger     *slog.Logger
}

func NewService(store Store, ledger Ledger, rewards RewardTable, dailyLimit int, logger *slog.Logger) *Service {
	if rewards == nil {
		rewards = DefaultRewards()
	}
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ledger: ledger, rewards: rewards, dailyLimit: dailyLimit, logger: logger}
}

// ShareResult reports the awarded credits and how much of today's cap is left.
type ShareResult struct {
	Share          *models.SocialShare
	CreditsAwarded int
	DailyRemaining int
}

// RecordShare inserts the share row and awards min(platform base, remaining
// daily cap) in one transaction. The row is inserted before the award so the
// partial unique index rejects a concurrent duplicate of the same content;
// the balance-row lock serializes the daily-cap read for the same user. A
// rejected share rolls back, so only rewarded shares leave a row behind.
func (s *Service) RecordShare(ctx context.Context, userID uuid.UUID, platform string, generationID *uuid.UUID, shareURL string) (*ShareResult, error) {
	base, ok := s.rewards[platform]
	if !ok {
		return nil, ErrUnknownPlatform
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := s.ledger.LockBalanceTx(ctx, tx, userID); err != nil {
		return nil, err
	}

	share := &models.SocialShare{
		ID:             uuid.New(),
		UserID:         userID,
		Platform:       platform,
		GenerationID:   generationID,
		CreditsAwarded: base,
		ShareURL:       shareURL,
	}
	if err := s.store.InsertTx(ctx, tx, share); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyShared
		}
		return nil, err
	}

	daily, err := s.store.DailyCreditsTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	// daily includes this share's provisional base award.
	prior := daily - base
	remaining := s.dailyLimit - prior
	if remaining <= 0 {
		return nil, ErrDailyLimitReached
	}
	award := base
	if award > remaining {
		award = remaining
		share.CreditsAwarded = award
		if err := s.store.UpdateAwardTx(ctx, tx, share.ID, award); err != nil {
			return nil, err
		}
	}

	if _, err := s.ledger.AddCreditsTx(ctx, tx, userID, award,
		models.TxTypeSocialShare, "Social share reward: "+platform, generationID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &ShareResult{
		Share:          share,
		CreditsAwarded: award,
		DailyRemaining: remaining - award,
	}, nil
}

// Stats returns the caller's share aggregates with the daily cap applied.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*models.ShareStats, error) {
	stats, err := s.store.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.DailyLimit = s.dailyLimit
	stats.DailyRemaining = s.dailyLimit - stats.CreditsToday
	if stats.DailyRemaining < 0 {
		stats.DailyRemaining = 0
	}
	return stats, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
