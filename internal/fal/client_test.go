package fal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meshcraft/backend/internal/reconcile"
)

func TestSubmitReturnsRequestID(t *testing.T) {
	var gotAuth string
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		var input map[string]any
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Errorf("decode input: %v", err)
		}
		if input["prompt"] != "a teapot" {
			t.Errorf("prompt = %v", input["prompt"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"request_id": "req-7"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	id, err := c.Submit(context.Background(), "fal-ai/trellis", map[string]any{"prompt": "a teapot"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "req-7" {
		t.Errorf("request id = %q, want req-7", id)
	}
	if gotAuth != "Key secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/fal-ai/trellis" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestStatusMapsRemoteStates(t *testing.T) {
	cases := []struct {
		remote string
		want   reconcile.State
	}{
		{"IN_QUEUE", reconcile.StateQueued},
		{"IN_PROGRESS", reconcile.StateInProgress},
		{"COMPLETED", reconcile.StateCompleted},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": tc.remote})
		}))
		c := NewClient(srv.URL, "")
		got, err := c.Status(context.Background(), "fal-ai/trellis", "req-1")
		srv.Close()
		if err != nil {
			t.Errorf("%s: %v", tc.remote, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s mapped to %q, want %q", tc.remote, got, tc.want)
		}
	}
}

func TestNotFoundIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Status(context.Background(), "fal-ai/trellis", "req-gone")
	if !errors.Is(err, reconcile.ErrNotFound) {
		t.Errorf("err = %v, want reconcile.ErrNotFound", err)
	}
	_, err = c.Result(context.Background(), "fal-ai/trellis", "req-gone")
	if !errors.Is(err, reconcile.ErrNotFound) {
		t.Errorf("Result err = %v, want reconcile.ErrNotFound", err)
	}
}

func TestResultExtractsAssetURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model_mesh": map[string]any{"url": "https://cdn.example.com/mesh.glb"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	res, err := c.Result(context.Background(), "fal-ai/trellis", "req-1")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.AssetURL != "https://cdn.example.com/mesh.glb" {
		t.Errorf("AssetURL = %q", res.AssetURL)
	}
}

func TestExtractAssetURLShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{"model_mesh", map[string]any{"model_mesh": map[string]any{"url": "a"}}, "a"},
		{"model_url", map[string]any{"model_url": "b"}, "b"},
		{"model_urls_glb", map[string]any{"model_urls": map[string]any{"glb": "c"}}, "c"},
		{"output_url", map[string]any{"output": map[string]any{"url": "d"}}, "d"},
		{"empty", map[string]any{"something": "else"}, ""},
	}
	for _, tc := range cases {
		if got := extractAssetURL(tc.raw); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
