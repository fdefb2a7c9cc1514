package referral

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

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

type applyRequest struct {
	ReferralCode string `json:"referral_code"`
}

type applyResponse struct {
	CreditsAwarded int `json:"credits_awarded"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Apply handles POST /api/v1/referral.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	if req.ReferralCode == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "referral_code is required"})
		return
	}

	ref, err := h.svc.ProcessReferralCode(r.Context(), req.ReferralCode, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCode):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid referral code", Code: "invalid_code"})
		case errors.Is(err, ErrSelfReferral):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cannot use your own referral code", Code: "self_referral"})
		case errors.Is(err, ErrAlreadyReferred):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "a referral was already recorded for this account", Code: "already_referred"})
		case errors.Is(err, ErrLimitReached):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "this referrer has reached the referral limit", Code: "referral_limit_reached"})
		default:
			h.logger.Error("process referral", "user_id", user.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, applyResponse{CreditsAwarded: ref.CreditsAwarded})
}

type infoResponse struct {
	ReferralCode string                `json:"referral_code"`
	Stats        *models.ReferralStats `json:"stats"`
	History      []*models.Referral    `json:"history"`
}

// Info handles GET /api/v1/referral.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	stats, err := h.svc.Stats(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("referral stats", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	history, err := h.svc.History(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("referral history", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if history == nil {
		history = []*models.Referral{}
	}
	writeJSON(w, http.StatusOK, infoResponse{
		ReferralCode: user.ReferralCode,
		Stats:        stats,
		History:      history,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
