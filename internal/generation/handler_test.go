package generation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/meshcraft/backend/internal/middleware"
	"github.com/meshcraft/backend/internal/models"
)

func createRequestFor(t *testing.T, user *models.User, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generations", strings.NewReader(body))
	if user != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), user))
	}
	return req
}

func TestCreateReturnsAcceptedJob(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, &mockLedger{balance: 25}, &mockSubmitter{requestID: "req-1"}, nil)
	h := NewHandler(svc, nil)
	me := &models.User{ID: uuid.New()}

	rec := httptest.NewRecorder()
	h.Create(rec, createRequestFor(t, me, `{"prompt":"a ceramic teapot"}`))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body)
	}
	var gen models.Generation
	if err := json.NewDecoder(rec.Body).Decode(&gen); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gen.Status != models.GenerationStatusProcessing {
		t.Errorf("status = %q, want PROCESSING", gen.Status)
	}
	if gen.CreditsUsed != Cost {
		t.Errorf("credits_used = %d, want %d", gen.CreditsUsed, Cost)
	}
}

func TestCreateInsufficientCreditsIsBadRequest(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, &mockLedger{balance: 3}, &mockSubmitter{}, nil)
	h := NewHandler(svc, nil)
	me := &models.User{ID: uuid.New()}

	rec := httptest.NewRecorder()
	h.Create(rec, createRequestFor(t, me, `{"prompt":"a teapot"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["code"] != "insufficient_credits" {
		t.Errorf("code = %v, want insufficient_credits", resp["code"])
	}
	if resp["required"] != float64(Cost) {
		t.Errorf("required = %v, want %d", resp["required"], Cost)
	}
}

func TestCreateRequiresPrompt(t *testing.T) {
	svc := NewService(newMockStore(), &mockLedger{balance: 25}, &mockSubmitter{}, nil)
	h := NewHandler(svc, nil)
	me := &models.User{ID: uuid.New()}

	rec := httptest.NewRecorder()
	h.Create(rec, createRequestFor(t, me, `{}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateRequiresAuth(t *testing.T) {
	svc := NewService(newMockStore(), &mockLedger{balance: 25}, &mockSubmitter{}, nil)
	h := NewHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Create(rec, createRequestFor(t, nil, `{"prompt":"a teapot"}`))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
