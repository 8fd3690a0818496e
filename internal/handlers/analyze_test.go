package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/radview/radview-backend/internal/clients/inference"
	"github.com/radview/radview-backend/internal/platform/logger"
)

type stubInferenceClient struct {
	req  inference.AnalyzeRequest
	resp *inference.AnalyzeResponse
	err  error
}

func (s *stubInferenceClient) Analyze(ctx context.Context, req inference.AnalyzeRequest) (*inference.AnalyzeResponse, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubInferenceClient) Health(ctx context.Context) (*inference.HealthResponse, error) {
	return &inference.HealthResponse{Status: "ok"}, nil
}

func newAnalyzeRouter(t *testing.T, repo *stubInstanceRepo, access *stubAccessService, client inference.Client) *gin.Engine {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewAnalyzeHandler(log, repo, access, nil, client)
	router.POST("/api/instances/:id/analyze", h.Analyze)
	return router
}

func TestAnalyzeForwardsPromptAsContext(t *testing.T) {
	row := storedInstance()
	// Too large to inline: the handler must hand the sidecar a signed URL.
	row.FileSizeBytes = 10 << 20
	client := &stubInferenceClient{resp: &inference.AnalyzeResponse{
		Success: true,
		Result:  "no acute findings",
		Model:   "medgemma-4b",
	}}
	router := newAnalyzeRouter(t, &stubInstanceRepo{row: row}, &stubAccessService{url: "https://signed.example/asset"}, client)

	payload, _ := json.Marshal(map[string]string{"prompt": "Describe abnormalities."})
	req := httptest.NewRequest(http.MethodPost, "/api/instances/"+row.ID.String()+"/analyze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	// The prompt rides in the sidecar's context field; the input stays the
	// bare payload reference.
	if client.req.Context != "Describe abnormalities." {
		t.Fatalf("prompt not forwarded as context: %q", client.req.Context)
	}
	if client.req.Input != "https://signed.example/asset" {
		t.Fatalf("input must be the signed URL alone, got %q", client.req.Input)
	}
	if client.req.Type != inference.TaskTypeImageAnalysis {
		t.Fatalf("wrong task type: %q", client.req.Type)
	}

	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["analysis"] != "no acute findings" {
		t.Fatalf("result not passed through: %v", body["analysis"])
	}
}

func TestAnalyzeWithoutClientIs503(t *testing.T) {
	row := storedInstance()
	router := newAnalyzeRouter(t, &stubInstanceRepo{row: row}, &stubAccessService{}, nil)

	payload, _ := json.Marshal(map[string]string{"prompt": "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/instances/"+row.ID.String()+"/analyze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a configured sidecar, got %d", w.Code)
	}
}
