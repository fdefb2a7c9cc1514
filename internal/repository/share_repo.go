package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meshcraft/backend/internal/models"
)

type ShareRepo struct {
	pool *pgxpool.Pool
}

func NewShareRepo(pool *pgxpool.Pool) *ShareRepo {
	return &ShareRepo{pool: pool}
}

func (r *ShareRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// InsertTx inserts the share row before any credits are awarded so the
// partial unique index on (user_id, platform, generation_id) closes the
// concurrent-dedup race. Callers map 23505 to their duplicate sentinel.
func (r *ShareRepo) InsertTx(ctx context.Context, tx pgx.Tx, s *models.SocialShare) error {
	return tx.QueryRow(ctx, `
		INSERT INTO social_shares (id, user_id, platform, generation_id, credits_awarded, share_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, s.ID, s.UserID, s.Platform, s.GenerationID, s.CreditsAwarded, s.ShareURL).Scan(&s.CreatedAt)
}

// DailyCreditsTx sums credits awarded to the user since local midnight,
// inside the caller's transaction.
func (r *ShareRepo) DailyCreditsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error) {
	var total int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(credits_awarded), 0)
		FROM social_shares
		WHERE user_id = $1 AND created_at >= date_trunc('day', now())
	`, userID).Scan(&total)
	return total, err
}

// UpdateAwardTx corrects the credits_awarded on a share row after the daily
// cap clamps the reward (the row is inserted before the cap is applied).
func (r *ShareRepo) UpdateAwardTx(ctx context.Context, tx pgx.Tx, shareID uuid.UUID, credits int) error {
	_, err := tx.Exec(ctx,
		`UPDATE social_shares SET credits_awarded = $2 WHERE id = $1`, shareID, credits)
	return err
}

func (r *ShareRepo) Stats(ctx context.Context, userID uuid.UUID) (*models.ShareStats, error) {
	s := &models.ShareStats{ByPlatform: make(map[string]int)}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(credits_awarded) FILTER (WHERE created_at >= date_trunc('day', now())), 0),
			COUNT(*),
			COALESCE(SUM(credits_awarded), 0)
		FROM social_shares WHERE user_id = $1
	`, userID).Scan(&s.CreditsToday, &s.TotalShares, &s.TotalCredits)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT platform, COUNT(*) FROM social_shares
		WHERE user_id = $1 GROUP BY platform
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var platform string
		var n int
		if err := rows.Scan(&platform, &n); err != nil {
			return nil, err
		}
		s.ByPlatform[platform] = n
	}
	return s, rows.Err()
}
