package reconcile

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// SyncGenerationsArgs is the periodic River job that runs one reconciliation
// pass. The remote provider offers no push notifications, so polling on an
// interval is the only way jobs reach a terminal state.
type SyncGenerationsArgs struct{}

func (SyncGenerationsArgs) Kind() string { return "sync_generations" }

type SyncWorker struct {
	river.WorkerDefaults[SyncGenerationsArgs]
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewSyncWorker(reconciler *Reconciler, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{reconciler: reconciler, logger: logger}
}

func (w *SyncWorker) Work(ctx context.Context, job *river.Job[SyncGenerationsArgs]) error {
	summary, err := w.reconciler.Run(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("generation sync pass finished",
		"synced", summary.Synced, "updated", summary.Updated)
	return nil
}
