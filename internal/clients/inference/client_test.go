package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/radview/radview-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("INFERENCE_BASE_URL", srv.URL)

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	c, err := NewClient(log)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestAnalyzeSuccess(t *testing.T) {
	var gotReq AnalyzeRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(AnalyzeResponse{
			Success:        true,
			Result:         "unremarkable chest radiograph",
			Model:          "medgemma-4b",
			ProcessingTime: 1.5,
		})
	}))

	resp, err := c.Analyze(context.Background(), AnalyzeRequest{
		Input: "https://signed.example/asset",
		Type:  TaskTypeImageAnalysis,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Result != "unremarkable chest radiograph" {
		t.Fatalf("result passed through wrong: %q", resp.Result)
	}
	if gotReq.Type != TaskTypeImageAnalysis {
		t.Fatalf("task type not forwarded: %q", gotReq.Type)
	}
}

func TestAnalyzeSidecarFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(AnalyzeResponse{Success: false, Error: "model not loaded"})
	}))

	_, err := c.Analyze(context.Background(), AnalyzeRequest{Input: "x"})
	if err == nil {
		t.Fatal("expected an error when the sidecar reports failure")
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", ModelLoaded: true, ModelID: "medgemma-4b"})
	}))

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !h.ModelLoaded || h.ModelID != "medgemma-4b" {
		t.Fatalf("unexpected health payload: %+v", h)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	t.Setenv("INFERENCE_BASE_URL", "")
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	if _, err := NewClient(log); err == nil {
		t.Fatal("expected an error without INFERENCE_BASE_URL")
	}
}
