package referral

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meshcraft/backend/internal/models"
	"github.com/meshcraft/backend/internal/notify"
)

const (
	// RewardCredits is awarded to both sides of a successful referral.
	RewardCredits = 5
	// MaxPerUser caps how many referrals one referrer can be rewarded for.
	MaxPerUser = 10
)

var (
	ErrSelfReferral    = errors.New("cannot refer yourself")
	ErrAlreadyReferred = errors.New("user already referred")
	ErrLimitReached    = errors.New("referral limit reached")
	ErrInvalidCode     = errors.New("invalid referral code")
)

// UserStore is the user lookup/attribution surface the engine needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	SetReferredByTx(ctx context.Context, tx pgx.Tx, userID, referrerID uuid.UUID) (bool, error)
}

// Store is the referral repository surface the engine needs.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	InsertTx(ctx context.Context, tx pgx.Tx, ref *models.Referral) error
	CountByReferrerTx(ctx context.Context, tx pgx.Tx, referrerID uuid.UUID) (int, error)
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*models.Referral, error)
	Stats(ctx context.Context, referrerID uuid.UUID) (*models.ReferralStats, error)
}

// Ledger is the credit-granting surface the engine needs.
type Ledger interface {
	LockBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.AccountBalance, error)
	AddCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error)
}

// Notifier dispatches the best-effort referrer email.
type Notifier interface {
	Send(template, recipient string, data map[string]any)
}

type Service struct {
	users    UserStore
	refs     Store
	ledger   Ledger
	notifier Notifier
	logger   *slog.Logger
}

func NewService(users UserStore, refs Store, ledger Ledger, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, refs: refs, ledger: ledger, notifier: notifier, logger: logger}
}

// ProcessReferralCode resolves a referral code to its owner and attributes
// the referral to them.
func (s *Service) ProcessReferralCode(ctx context.Context, code string, referredID uuid.UUID) (*models.Referral, error) {
	referrer, err := s.users.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	return s.ProcessReferral(ctx, referrer.ID, referredID)
}

// ProcessReferral awards RewardCredits to both parties, records the referral
// row and the first-write-wins attribution, all in one transaction. The
// referral row is inserted before any credits are awarded: its unique indexes
// are the idempotency guard, so a retry can never duplicate ledger entries.
// The cap count runs under the referrer's balance-row lock in the same
// transaction, closing the concurrent-overage race.
func (s *Service) ProcessReferral(ctx context.Context, referrerID, referredID uuid.UUID) (*models.Referral, error) {
	if referrerID == referredID {
		return nil, ErrSelfReferral
	}

	tx, err := s.refs.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := s.ledger.LockBalanceTx(ctx, tx, referrerID); err != nil {
		return nil, err
	}
	count, err := s.refs.CountByReferrerTx(ctx, tx, referrerID)
	if err != nil {
		return nil, err
	}
	if count >= MaxPerUser {
		return nil, ErrLimitReached
	}

	ref := &models.Referral{
		ID:             uuid.New(),
		ReferrerID:     referrerID,
		ReferredID:     referredID,
		CreditsAwarded: RewardCredits,
	}
	if err := s.refs.InsertTx(ctx, tx, ref); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyReferred
		}
		return nil, err
	}

	attributed, err := s.users.SetReferredByTx(ctx, tx, referredID, referrerID)
	if err != nil {
		return nil, err
	}
	if !attributed {
		return nil, ErrAlreadyReferred
	}

	if _, err := s.ledger.AddCreditsTx(ctx, tx, referrerID, RewardCredits,
		models.TxTypeReferral, "Referral reward", &referredID); err != nil {
		return nil, err
	}
	if _, err := s.ledger.AddCreditsTx(ctx, tx, referredID, RewardCredits,
		models.TxTypeReferral, "Referral signup bonus", &referrerID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.notifyReferrer(ctx, referrerID)
	return ref, nil
}

// notifyReferrer emails the referrer about the reward. Best effort only:
// lookup failures are logged, the dispatcher swallows send failures.
func (s *Service) notifyReferrer(ctx context.Context, referrerID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	referrer, err := s.users.GetByID(ctx, referrerID)
	if err != nil {
		s.logger.Error("referral notification: lookup referrer failed",
			"referrer_id", referrerID, "error", err)
		return
	}
	s.notifier.Send(notify.TemplateReferralReward, referrer.Email, map[string]any{
		"credits": RewardCredits,
	})
}

func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*models.ReferralStats, error) {
	return s.refs.Stats(ctx, userID)
}

func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]*models.Referral, error) {
	return s.refs.ListByReferrer(ctx, userID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
