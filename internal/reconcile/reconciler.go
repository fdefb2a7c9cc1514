package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meshcraft/backend/internal/models"
	"github.com/meshcraft/backend/internal/notify"
)

const (
	// noHandleTimeout fails jobs that never got a remote handle recorded.
	noHandleTimeout = 10 * time.Minute
	// stuckTimeout fails jobs the provider still reports as queued/running.
	stuckTimeout = 30 * time.Minute
)

// Store is the generation repository surface the reconciler needs.
type Store interface {
	ListUnfinished(ctx context.Context) ([]*models.Generation, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, modelURL string, completedAt time.Time, metadata map[string]any) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, completedAt time.Time) (bool, error)
	AppendMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error
}

// Ledger issues refunds for failed jobs that were charged.
type Ledger interface {
	AddCredits(ctx context.Context, userID uuid.UUID, amount int, txType, description string, referenceID *uuid.UUID) (int, error)
}

// Users resolves the recipient for the model-ready email.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Notifier dispatches the best-effort completion email.
type Notifier interface {
	Send(template, recipient string, data map[string]any)
}

// Outcome is the per-job audit record included in the run summary.
type Outcome struct {
	GenerationID uuid.UUID `json:"generation_id"`
	Status       string    `json:"status"`
	Action       string    `json:"action"`
	Error        string    `json:"error,omitempty"`
}

// Summary reports one reconciliation pass.
type Summary struct {
	Synced  int       `json:"synced"`
	Updated int       `json:"updated"`
	Results []Outcome `json:"results"`
}

// Reconciler drives the generation status state machine:
// PENDING/PROCESSING -> COMPLETED | FAILED. Terminal states are never
// re-opened; transitions happen only here.
type Reconciler struct {
	store    Store
	ledger   Ledger
	provider Provider
	users    Users
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a Reconciler. users and notifier may be nil, which disables the
// completion emails.
func New(store Store, ledger Ledger, provider Provider, users Users, notifier Notifier, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		ledger:   ledger,
		provider: provider,
		users:    users,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one reconciliation pass. Jobs are processed independently:
// one job's failure never aborts the rest of the batch.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	jobs, err := r.store.ListUnfinished(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Synced: len(jobs), Results: make([]Outcome, 0, len(jobs))}
	for _, job := range jobs {
		outcome := r.reconcileJob(ctx, job)
		summary.Results = append(summary.Results, outcome)
		if outcome.Action == "completed" || outcome.Action == "failed" {
			summary.Updated++
		}
		r.logger.Info("generation reconciled",
			"generation_id", job.ID, "action", outcome.Action, "status", outcome.Status)
	}
	return summary, nil
}

func (r *Reconciler) reconcileJob(ctx context.Context, job *models.Generation) Outcome {
	age := r.now().Sub(job.CreatedAt)

	if job.FalRequestID == nil {
		if age > noHandleTimeout {
			return r.failJob(ctx, job, "no handle, timeout")
		}
		return Outcome{GenerationID: job.ID, Status: job.Status, Action: "none"}
	}

	state, err := r.provider.Status(ctx, job.Endpoint, *job.FalRequestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return r.failJob(ctx, job, "not found upstream")
		}
		return r.deferJob(ctx, job, err)
	}

	switch state {
	case StateCompleted:
		return r.completeJob(ctx, job)
	case StateQueued, StateInProgress:
		if age > stuckTimeout {
			return r.failJob(ctx, job, "timeout exceeded")
		}
		return Outcome{GenerationID: job.ID, Status: job.Status, Action: "none"}
	default:
		return r.deferJob(ctx, job, errors.New("unknown remote state "+string(state)))
	}
}

// completeJob fetches the remote result and stamps the terminal COMPLETED state.
func (r *Reconciler) completeJob(ctx context.Context, job *models.Generation) Outcome {
	result, err := r.provider.Result(ctx, job.Endpoint, *job.FalRequestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return r.failJob(ctx, job, "not found upstream")
		}
		return r.deferJob(ctx, job, err)
	}

	now := r.now()
	meta := map[string]any{"synced_at": now.Format(time.RFC3339)}
	if len(result.Raw) > 0 {
		meta["result"] = result.Raw
	}
	updated, err := r.store.MarkCompleted(ctx, job.ID, result.AssetURL, now, meta)
	if err != nil {
		return r.deferJob(ctx, job, err)
	}
	if !updated {
		return Outcome{GenerationID: job.ID, Status: job.Status, Action: "none"}
	}
	r.notifyOwner(ctx, job, result.AssetURL)
	return Outcome{GenerationID: job.ID, Status: models.GenerationStatusCompleted, Action: "completed"}
}

// notifyOwner emails the owner that their model is ready. Best effort only.
func (r *Reconciler) notifyOwner(ctx context.Context, job *models.Generation, assetURL string) {
	if r.users == nil || r.notifier == nil {
		return
	}
	owner, err := r.users.GetByID(ctx, job.UserID)
	if err != nil {
		r.logger.Error("completion notification: lookup owner failed",
			"generation_id", job.ID, "user_id", job.UserID, "error", err)
		return
	}
	r.notifier.Send(notify.TemplateModelReady, owner.Email, map[string]any{
		"prompt":    job.Prompt,
		"model_url": assetURL,
	})
}

// failJob stamps the terminal FAILED state and refunds any charged credits.
// The refund fires only when this call performed the transition, so a
// concurrent pass cannot refund twice.
func (r *Reconciler) failJob(ctx context.Context, job *models.Generation, reason string) Outcome {
	updated, err := r.store.MarkFailed(ctx, job.ID, reason, r.now())
	if err != nil {
		return r.deferJob(ctx, job, err)
	}
	if !updated {
		return Outcome{GenerationID: job.ID, Status: job.Status, Action: "none"}
	}

	if job.CreditsUsed > 0 {
		if _, err := r.ledger.AddCredits(ctx, job.UserID, job.CreditsUsed,
			models.TxTypeGenerationRefund, "Refund: "+reason, &job.ID); err != nil {
			r.logger.Error("generation refund failed",
				"generation_id", job.ID, "user_id", job.UserID, "error", err)
			if mErr := r.store.AppendMetadata(ctx, job.ID, map[string]any{"refund_error": err.Error()}); mErr != nil {
				r.logger.Error("record refund error failed", "generation_id", job.ID, "error", mErr)
			}
		}
	}
	return Outcome{GenerationID: job.ID, Status: models.GenerationStatusFailed, Action: "failed", Error: reason}
}

// deferJob records a transient error in the job's metadata and leaves it for
// the next pass.
func (r *Reconciler) deferJob(ctx context.Context, job *models.Generation, cause error) Outcome {
	r.logger.Warn("generation sync deferred", "generation_id", job.ID, "error", cause)
	if err := r.store.AppendMetadata(ctx, job.ID, map[string]any{
		"last_sync_error": cause.Error(),
		"last_sync_at":    r.now().Format(time.RFC3339),
	}); err != nil {
		r.logger.Error("record sync error failed", "generation_id", job.ID, "error", err)
	}
	return Outcome{GenerationID: job.ID, Status: job.Status, Action: "error", Error: cause.Error()}
}
