package social

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/meshcraft/backend/internal/middleware"
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

type shareRequest struct {
	Platform     string `json:"platform"`
	GenerationID string `json:"generation_id,omitempty"`
	ShareURL     string `json:"share_url,omitempty"`
}

type shareResponse struct {
	CreditsAwarded int `json:"credits_awarded"`
	DailyRemaining int `json:"daily_remaining"`
}

type errorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code,omitempty"`
	DailyRemaining *int   `json:"daily_remaining,omitempty"`
}

// Record handles POST /api/v1/social/share.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	if req.Platform == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "platform is required"})
		return
	}
	var generationID *uuid.UUID
	if req.GenerationID != "" {
		id, err := uuid.Parse(req.GenerationID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid generation_id"})
			return
		}
		generationID = &id
	}

	res, err := h.svc.RecordShare(r.Context(), user.ID, req.Platform, generationID, req.ShareURL)
	if err != nil {
		zero := 0
		switch {
		case errors.Is(err, ErrUnknownPlatform):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown platform", Code: "unknown_platform"})
		case errors.Is(err, ErrAlreadyShared):
			resp := errorResponse{Error: "this content was already shared on this platform", Code: "already_shared"}
			if stats, sErr := h.svc.Stats(r.Context(), user.ID); sErr == nil {
				resp.DailyRemaining = &stats.DailyRemaining
			}
			writeJSON(w, http.StatusBadRequest, resp)
		case errors.Is(err, ErrDailyLimitReached):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "daily share limit reached", Code: "daily_limit_reached", DailyRemaining: &zero})
		default:
			h.logger.Error("record share", "user_id", user.ID, "platform", req.Platform, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{
		CreditsAwarded: res.CreditsAwarded,
		DailyRemaining: res.DailyRemaining,
	})
}

// Stats handles GET /api/v1/social/share.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	stats, err := h.svc.Stats(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("share stats", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
