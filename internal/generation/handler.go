package generation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/meshcraft/backend/internal/ledger"
	"github.com/meshcraft/backend/internal/middleware"
	"github.com/meshcraft/backend/internal/models"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type createRequest struct {
	Prompt   string         `json:"prompt"`
	Endpoint string         `json:"endpoint,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
}

// Create handles POST /api/v1/generations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, `{"error":"prompt is required"}`, http.StatusBadRequest)
		return
	}

	gen, err := h.svc.Create(r.Context(), user.ID, req.Prompt, req.Endpoint, req.Input)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":    "insufficient credits",
				"code":     "insufficient_credits",
				"required": Cost,
			})
			return
		}
		h.logger.Error("create generation", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, gen)
}

// Get handles GET /api/v1/generations/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid generation id"}`, http.StatusBadRequest)
		return
	}
	gen, err := h.svc.Get(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"generation not found"}`, http.StatusNotFound)
			return
		}
		h.logger.Error("get generation", "generation_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, gen)
}

// List handles GET /api/v1/generations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	gens, err := h.svc.List(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("list generations", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if gens == nil {
		gens = []*models.Generation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"generations": gens})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
