// Package inference talks to the external model-inference sidecar. The
// engine has no contract with the shape of the returned text: it is passed
// through to callers unmodified.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/radview/radview-backend/internal/platform/envutil"
	"github.com/radview/radview-backend/internal/platform/logger"
)

const (
	TaskTypeGeneral       = "general"
	TaskTypeTextAnalysis  = "text_analysis"
	TaskTypeImageAnalysis = "image_analysis"
)

type AnalyzeRequest struct {
	// Input is the analysis subject: clinical text, or a signed URL / inline
	// base64 payload for a stored image.
	Input   string         `json:"input"`
	Type    string         `json:"type,omitempty"`
	Context string         `json:"context,omitempty"`
	Options AnalyzeOptions `json:"options,omitempty"`
}

type AnalyzeOptions struct {
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type AnalyzeResponse struct {
	Success         bool    `json:"success"`
	Result          string  `json:"result"`
	Error           string  `json:"error,omitempty"`
	Model           string  `json:"model,omitempty"`
	ProcessingTime  float64 `json:"processing_time,omitempty"`
	TokensGenerated int     `json:"tokens_generated,omitempty"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelID     string `json:"model_id"`
}

type Client interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)
	Health(ctx context.Context) (*HealthResponse, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseLog *logger.Logger) (Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("INFERENCE_BASE_URL")), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing env var INFERENCE_BASE_URL")
	}
	timeout := envutil.Duration("INFERENCE_TIMEOUT", 120*time.Second)
	return &client{
		log:        baseLog.With("client", "InferenceClient"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("inference response read failed: %w", err)
	}

	var out AnalyzeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("inference response decode failed (status=%d): %w", resp.StatusCode, err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return &out, fmt.Errorf("inference analysis failed: %s", msg)
	}
	return &out, nil
}

func (c *client) Health(ctx context.Context) (*HealthResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("inference health request failed: %w", err)
	}
	defer resp.Body.Close()

	var out HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("inference health decode failed: %w", err)
	}
	return &out, nil
}
