// Package credits serves the authenticated user's balance and ledger history.
package credits

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/meshcraft/backend/internal/middleware"
	"github.com/meshcraft/backend/internal/models"
)

// BalanceStore reads the denormalized balance row.
type BalanceStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.AccountBalance, error)
}

// TransactionStore reads ledger history.
type TransactionStore interface {
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error)
}

type Handler struct {
	balances BalanceStore
	txs      TransactionStore
	logger   *slog.Logger
}

func NewHandler(balances BalanceStore, txs TransactionStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{balances: balances, txs: txs, logger: logger}
}

type creditsResponse struct {
	Balance      int                   `json:"balance"`
	TotalEarned  int                   `json:"total_earned"`
	TotalSpent   int                   `json:"total_spent"`
	Transactions []*models.Transaction `json:"transactions"`
}

// GetCredits handles GET /api/v1/credits.
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	balance, err := h.balances.Get(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("get balance", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	history, err := h.txs.ListByUserID(r.Context(), user.ID, 50)
	if err != nil {
		h.logger.Error("list transactions", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []*models.Transaction{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(creditsResponse{
		Balance:      balance.Balance,
		TotalEarned:  balance.TotalEarned,
		TotalSpent:   balance.TotalSpent,
		Transactions: history,
	})
}

// Me handles GET /api/v1/account/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(user)
}
