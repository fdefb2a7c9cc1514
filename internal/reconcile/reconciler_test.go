package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meshcraft/backend/internal/models"
)

// --- fakes ---

type fakeStore struct {
	jobs      []*models.Generation
	completed map[uuid.UUID]string
	failed    map[uuid.UUID]string
	metadata  map[uuid.UUID]map[string]any
	listErr   error
}

func newFakeStore(jobs ...*models.Generation) *fakeStore {
	return &fakeStore{
		jobs:      jobs,
		completed: make(map[uuid.UUID]string),
		failed:    make(map[uuid.UUID]string),
		metadata:  make(map[uuid.UUID]map[string]any),
	}
}

func (f *fakeStore) ListUnfinished(context.Context) ([]*models.Generation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.jobs, nil
}

func (f *fakeStore) MarkCompleted(_ context.Context, id uuid.UUID, modelURL string, _ time.Time, meta map[string]any) (bool, error) {
	if _, done := f.completed[id]; done {
		return false, nil
	}
	if _, done := f.failed[id]; done {
		return false, nil
	}
	f.completed[id] = modelURL
	if f.metadata[id] == nil {
		f.metadata[id] = make(map[string]any)
	}
	for k, v := range meta {
		f.metadata[id][k] = v
	}
	return true, nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, reason string, _ time.Time) (bool, error) {
	if _, done := f.completed[id]; done {
		return false, nil
	}
	if _, done := f.failed[id]; done {
		return false, nil
	}
	f.failed[id] = reason
	return true, nil
}

func (f *fakeStore) AppendMetadata(_ context.Context, id uuid.UUID, meta map[string]any) error {
	if f.metadata[id] == nil {
		f.metadata[id] = make(map[string]any)
	}
	for k, v := range meta {
		f.metadata[id][k] = v
	}
	return nil
}

type fakeLedger struct {
	refunds map[uuid.UUID]int
}

func newFakeLedger() *fakeLedger { return &fakeLedger{refunds: make(map[uuid.UUID]int)} }

func (f *fakeLedger) AddCredits(_ context.Context, userID uuid.UUID, amount int, txType, _ string, _ *uuid.UUID) (int, error) {
	if txType != models.TxTypeGenerationRefund {
		return 0, errors.New("unexpected tx type " + txType)
	}
	f.refunds[userID] += amount
	return f.refunds[userID], nil
}

type fakeProvider struct {
	states  map[string]State
	results map[string]*ResultPayload
	errs    map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		states:  make(map[string]State),
		results: make(map[string]*ResultPayload),
		errs:    make(map[string]error),
	}
}

func (f *fakeProvider) Status(_ context.Context, _, requestID string) (State, error) {
	if err := f.errs[requestID]; err != nil {
		return "", err
	}
	return f.states[requestID], nil
}

func (f *fakeProvider) Result(_ context.Context, _, requestID string) (*ResultPayload, error) {
	if r, ok := f.results[requestID]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

func job(requestID *string, age time.Duration, now time.Time) *models.Generation {
	status := models.GenerationStatusPending
	if requestID != nil {
		status = models.GenerationStatusProcessing
	}
	return &models.Generation{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Prompt:       "a ceramic teapot",
		Endpoint:     "fal-ai/trellis",
		Status:       status,
		FalRequestID: requestID,
		CreditsUsed:  10,
		CreatedAt:    now.Add(-age),
	}
}

func newTestReconciler(store *fakeStore, ledger *fakeLedger, provider *fakeProvider, now time.Time) *Reconciler {
	r := New(store, ledger, provider, nil, nil, nil)
	r.now = func() time.Time { return now }
	return r
}

func TestYoungJobWithoutHandleLeftAlone(t *testing.T) {
	now := time.Now()
	store := newFakeStore(job(nil, 2*time.Minute, now))
	ledger := newFakeLedger()
	r := newTestReconciler(store, ledger, newFakeProvider(), now)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != 0 {
		t.Errorf("Updated = %d, want 0", summary.Updated)
	}
	if len(store.failed) != 0 {
		t.Errorf("job was failed: %v", store.failed)
	}
	if len(ledger.refunds) != 0 {
		t.Errorf("refund issued: %v", ledger.refunds)
	}
}

func TestHandleNeverRecordedTimesOutAndRefunds(t *testing.T) {
	now := time.Now()
	g := job(nil, 15*time.Minute, now)
	store := newFakeStore(g)
	ledger := newFakeLedger()
	r := newTestReconciler(store, ledger, newFakeProvider(), now)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != 1 {
		t.Errorf("Updated = %d, want 1", summary.Updated)
	}
	if _, ok := store.failed[g.ID]; !ok {
		t.Fatal("job was not failed")
	}
	if got := ledger.refunds[g.UserID]; got != 10 {
		t.Errorf("refund = %d, want 10", got)
	}
}

func TestCompletedJobFetchesResult(t *testing.T) {
	now := time.Now()
	reqID := "req-1"
	g := job(&reqID, 5*time.Minute, now)
	store := newFakeStore(g)
	provider := newFakeProvider()
	provider.states[reqID] = StateCompleted
	provider.results[reqID] = &ResultPayload{AssetURL: "https://cdn.example.com/mesh.glb"}
	ledger := newFakeLedger()
	r := newTestReconciler(store, ledger, provider, now)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != 1 {
		t.Errorf("Updated = %d, want 1", summary.Updated)
	}
	if got := store.completed[g.ID]; got != "https://cdn.example.com/mesh.glb" {
		t.Errorf("model URL = %q", got)
	}
	if len(ledger.refunds) != 0 {
		t.Errorf("completed job was refunded: %v", ledger.refunds)
	}
}

func TestCompletionPersistsProviderResult(t *testing.T) {
	now := time.Now()
	reqID := "req-meta"
	g := job(&reqID, 5*time.Minute, now)
	store := newFakeStore(g)
	provider := newFakeProvider()
	provider.states[reqID] = StateCompleted
	provider.results[reqID] = &ResultPayload{
		AssetURL: "https://cdn.example.com/mesh.glb",
		Raw: map[string]any{
			"model_mesh": map[string]any{"url": "https://cdn.example.com/mesh.glb", "file_size": 81250},
			"seed":       42,
		},
	}
	r := newTestReconciler(store, newFakeLedger(), provider, now)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	meta := store.metadata[g.ID]
	if _, ok := meta["synced_at"]; !ok {
		t.Error("synced_at was not stamped")
	}
	raw, ok := meta["result"].(map[string]any)
	if !ok {
		t.Fatalf("result payload was not persisted, metadata = %v", meta)
	}
	if raw["seed"] != 42 {
		t.Errorf("result payload lost fields, got %v", raw)
	}
}

type fakeUsers struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

type fakeNotifier struct {
	templates  []string
	recipients []string
}

func (f *fakeNotifier) Send(template, recipient string, _ map[string]any) {
	f.templates = append(f.templates, template)
	f.recipients = append(f.recipients, recipient)
}

func TestCompletionEmailsTheOwner(t *testing.T) {
	now := time.Now()
	reqID := "req-done"
	g := job(&reqID, 5*time.Minute, now)
	store := newFakeStore(g)
	provider := newFakeProvider()
	provider.states[reqID] = StateCompleted
	provider.results[reqID] = &ResultPayload{AssetURL: "https://cdn.example.com/mesh.glb"}

	users := &fakeUsers{users: map[uuid.UUID]*models.User{
		g.UserID: {ID: g.UserID, Email: "owner@example.com"},
	}}
	notifier := &fakeNotifier{}
	r := New(store, newFakeLedger(), provider, users, notifier, nil)
	r.now = func() time.Time { return now }

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.recipients) != 1 || notifier.recipients[0] != "owner@example.com" {
		t.Errorf("recipients = %v, want [owner@example.com]", notifier.recipients)
	}
}

func TestStuckJobTimesOutAndRefunds(t *testing.T) {
	now := time.Now()
	reqID := "req-stuck"
	g := job(&reqID, 45*time.Minute, now)
	store := newFakeStore(g)
	provider := newFakeProvider()
	provider.states[reqID] = StateInProgress
	ledger := newFakeLedger()
	r := newTestReconciler(store, ledger, provider, now)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := store.failed[g.ID]; !ok {
		t.Fatal("stuck job was not failed")
	}
	if got := ledger.refunds[g.UserID]; got != 10 {
		t.Errorf("refund = %d, want 10", got)
	}
}

func TestInProgressJobWithinTimeoutLeftAlone(t *testing.T) {
	now := time.Now()
	reqID := "req-ok"
	g := job(&reqID, 10*time.Minute, now)
	store := newFakeStore(g)
	provider := newFakeProvider()
	provider.states[reqID] = StateInProgress
	r := newTestReconciler(store, newFakeLedger(), provider, now)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != 0 {
		t.Errorf("Updated = %d, want 0", summary.Updated)
	}
	if len(store.failed) != 0 {
		t.Errorf("job was failed: %v", store.failed)
	}
}

func TestUnknownUpstreamJobFailsAndRefunds(t *testing.T) {
	now := time.Now()
	reqID := "req-gone"
	g := job(&reqID, 5*time.Minute, now)
	store := newFakeStore(g)
	provider := newFakeProvider()
	provider.errs[reqID] = ErrNotFound
	ledger := newFakeLedger()
	r := newTestReconciler(store, ledger, provider, now)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := store.failed[g.ID]; !ok {
		t.Fatal("vanished job was not failed")
	}
	if got := ledger.refunds[g.UserID]; got != 10 {
		t.Errorf("refund = %d, want 10", got)
	}
}

func TestTransientErrorDefersJob(t *testing.T) {
	now := time.Now()
	reqID := "req-flaky"
	g := job(&reqID, 5*time.Minute, now)
	store := newFakeStore(g)
	provider := newFakeProvider()
	provider.errs[reqID] = errors.New("upstream 503")
	ledger := newFakeLedger()
	r := newTestReconciler(store, ledger, provider, now)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != 0 {
		t.Errorf("Updated = %d, want 0", summary.Updated)
	}
	if len(store.failed) != 0 {
		t.Errorf("job was failed on a transient error: %v", store.failed)
	}
	if _, ok := store.metadata[g.ID]["last_sync_error"]; !ok {
		t.Error("transient error was not recorded in metadata")
	}
	if len(ledger.refunds) != 0 {
		t.Errorf("refund issued on a transient error: %v", ledger.refunds)
	}
}

func TestOneBadJobDoesNotAbortTheBatch(t *testing.T) {
	now := time.Now()
	flakyID := "req-flaky"
	doneID := "req-done"
	flaky := job(&flakyID, 5*time.Minute, now)
	done := job(&doneID, 5*time.Minute, now)
	store := newFakeStore(flaky, done)
	provider := newFakeProvider()
	provider.errs[flakyID] = errors.New("upstream 503")
	provider.states[doneID] = StateCompleted
	provider.results[doneID] = &ResultPayload{AssetURL: "https://cdn.example.com/a.glb"}
	r := newTestReconciler(store, newFakeLedger(), provider, now)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Synced != 2 {
		t.Errorf("Synced = %d, want 2", summary.Synced)
	}
	if summary.Updated != 1 {
		t.Errorf("Updated = %d, want 1", summary.Updated)
	}
	if _, ok := store.completed[done.ID]; !ok {
		t.Error("healthy job was not completed")
	}
}

func TestRefundFiresOnlyOnTheWinningTransition(t *testing.T) {
	now := time.Now()
	g := job(nil, 15*time.Minute, now)
	store := newFakeStore(g)
	// Simulate a concurrent pass that already failed the job.
	store.failed[g.ID] = "timeout"
	ledger := newFakeLedger()
	r := newTestReconciler(store, ledger, newFakeProvider(), now)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != 0 {
		t.Errorf("Updated = %d, want 0", summary.Updated)
	}
	if len(ledger.refunds) != 0 {
		t.Errorf("refund duplicated: %v", ledger.refunds)
	}
}
