package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/dr4g00n/TG-monitor/internal/config"
)

// ollamaBackend runs analysis against a local Ollama instance via its
// /api/generate endpoint.
type ollamaBackend struct {
	endpoint string
	model    string
	template string
	timeout  time.Duration
	client   *http.Client
	logger   *zap.Logger
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

func newOllama(cfg config.OllamaConfig, template string, timeout time.Duration, logger *zap.Logger) *ollamaBackend {
	return &ollamaBackend{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		template: template,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.Named("ollama"),
	}
}

func (b *ollamaBackend) Analyze(ctx context.Context, text string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaRequest{
		Model:  b.model,
		Prompt: buildPrompt(b.template, text),
		System: systemPrompt,
		Stream: false,
		Options: map[string]any{
			"temperature": 0.3,
			"top_p":       0.9,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("ollama returned HTTP %d: %s", resp.StatusCode, raw)
	}

	content := gjson.GetBytes(raw, "response").String()
	if content == "" {
		return Result{}, ErrEmptyResponse
	}

	b.logger.Debug("generation received", zap.Int("content_len", len(content)))
	return parseResponse(content, text, "ollama"), nil
}

// HealthCheck probes the version endpoint; it answers on any running
// Ollama without loading a model.
func (b *ollamaBackend) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Warn("health check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (b *ollamaBackend) Name() string {
	return fmt.Sprintf("ollama (%s)", b.model)
}
