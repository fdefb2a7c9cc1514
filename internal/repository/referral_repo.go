package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meshcraft/backend/internal/models"
)

type ReferralRepo struct {
	pool *pgxpool.Pool
}

func NewReferralRepo(pool *pgxpool.Pool) *ReferralRepo {
	return &ReferralRepo{pool: pool}
}

func (r *ReferralRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// InsertTx inserts the referral row. The unique indexes on (referrer_id,
// referred_id) and on referred_id are the idempotency guard; callers map the
// 23505 unique violation to their duplicate sentinel.
func (r *ReferralRepo) InsertTx(ctx context.Context, tx pgx.Tx, ref *models.Referral) error {
	return tx.QueryRow(ctx, `
		INSERT INTO referrals (id, referrer_id, referred_id, credits_awarded)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, ref.ID, ref.ReferrerID, ref.ReferredID, ref.CreditsAwarded).Scan(&ref.CreatedAt)
}

// CountByReferrerTx counts a referrer's referrals inside the caller's
// transaction, so the per-referrer cap check and the insert commit together.
func (r *ReferralRepo) CountByReferrerTx(ctx context.Context, tx pgx.Tx, referrerID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`, referrerID).Scan(&n)
	return n, err
}

func (r *ReferralRepo) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*models.Referral, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, referrer_id, referred_id, credits_awarded, created_at
		FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC
	`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Referral
	for rows.Next() {
		var ref models.Referral
		if err := rows.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.CreditsAwarded, &ref.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &ref)
	}
	return list, rows.Err()
}

func (r *ReferralRepo) Stats(ctx context.Context, referrerID uuid.UUID) (*models.ReferralStats, error) {
	var s models.ReferralStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(credits_awarded), 0)
		FROM referrals WHERE referrer_id = $1
	`, referrerID).Scan(&s.TotalReferrals, &s.TotalCreditsEarned)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
