package reconcile

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler exposes the manual sync trigger for admins.
type Handler struct {
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewHandler(reconciler *Reconciler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{reconciler: reconciler, logger: logger}
}

// Sync handles POST /api/v1/admin/generations/sync. It runs one full pass
// inline and returns the summary, same shape the periodic job produces.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconciler.Run(r.Context())
	if err != nil {
		h.logger.Error("manual sync failed", "error", err)
		http.Error(w, `{"error":"sync failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}
