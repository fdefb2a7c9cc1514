package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meshcraft/backend/internal/models"
)

type GenerationRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationRepo(pool *pgxpool.Pool) *GenerationRepo {
	return &GenerationRepo{pool: pool}
}

func (r *GenerationRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const generationColumns = `id, user_id, prompt, endpoint, status, fal_request_id, model_url, credits_used, metadata, created_at, completed_at`

func scanGeneration(row pgx.Row) (*models.Generation, error) {
	var g models.Generation
	var meta []byte
	err := row.Scan(&g.ID, &g.UserID, &g.Prompt, &g.Endpoint, &g.Status,
		&g.FalRequestID, &g.ModelURL, &g.CreditsUsed, &meta, &g.CreatedAt, &g.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &g.Metadata); err != nil {
			return nil, err
		}
	}
	return &g, nil
}

// CreateTx inserts the job row inside the caller's transaction so the credit
// deduction and the job insert commit together.
func (r *GenerationRepo) CreateTx(ctx context.Context, tx pgx.Tx, g *models.Generation) error {
	meta := g.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO generations (id, user_id, prompt, endpoint, status, credits_used, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, g.ID, g.UserID, g.Prompt, g.Endpoint, g.Status, g.CreditsUsed, metaJSON).Scan(&g.CreatedAt)
}

func (r *GenerationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	return scanGeneration(r.pool.QueryRow(ctx,
		`SELECT `+generationColumns+` FROM generations WHERE id = $1`, id))
}

func (r *GenerationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Generation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+generationColumns+` FROM generations
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// ListUnfinished returns all jobs still in a non-terminal status, oldest
// first, for the reconciler.
func (r *GenerationRepo) ListUnfinished(ctx context.Context) ([]*models.Generation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+generationColumns+` FROM generations
		WHERE status IN ('PENDING', 'PROCESSING')
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// SetRequestID records the remote handle and moves the job to PROCESSING.
func (r *GenerationRepo) SetRequestID(ctx context.Context, id uuid.UUID, requestID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE generations SET fal_request_id = $2, status = 'PROCESSING'
		WHERE id = $1
	`, id, requestID)
	return err
}

// MarkCompleted stamps the terminal COMPLETED state with the output asset
// URL. Returns false when the job was no longer in a non-terminal status;
// terminal states are never re-opened or restamped.
func (r *GenerationRepo) MarkCompleted(ctx context.Context, id uuid.UUID, modelURL string, completedAt time.Time, metadata map[string]any) (bool, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE generations
		SET status = 'COMPLETED', model_url = $2, completed_at = $3,
		    metadata = metadata || $4::jsonb
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')
	`, id, modelURL, completedAt, metaJSON)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed stamps the terminal FAILED state with the failure reason in
// metadata. Returns false when the job was already terminal, which is the
// guard against issuing a refund twice.
func (r *GenerationRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string, completedAt time.Time) (bool, error) {
	metaJSON, err := json.Marshal(map[string]any{"sync_error": reason})
	if err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE generations
		SET status = 'FAILED', completed_at = $2, metadata = metadata || $3::jsonb
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')
	`, id, completedAt, metaJSON)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AppendMetadata merges keys into the job's metadata audit bag.
func (r *GenerationRepo) AppendMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE generations SET metadata = metadata || $2::jsonb WHERE id = $1
	`, id, metaJSON)
	return err
}
