// Package analysis defines the semantic-analysis capability and the
// dispatcher that runs a flushed batch through it.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dr4g00n/TG-monitor/internal/config"
)

// Recommendation values carried by a Result.
const (
	RecommendBuy  = "buy"
	RecommendSell = "sell"
	RecommendHold = "hold"
)

// ErrEmptyResponse is returned when the backend answered but produced
// no usable content.
var ErrEmptyResponse = errors.New("analysis backend returned empty content")

// Result is one validated analysis outcome for a single message. It is
// never mutated after creation.
type Result struct {
	EventID         int64   `json:"event_id"`
	IsRelevant      bool    `json:"is_relevant"`
	TokenName       string  `json:"token_name,omitempty"`
	ContractAddress string  `json:"contract_address,omitempty"`
	Recommendation  string  `json:"recommendation,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	Confidence      float64 `json:"confidence"`
	Urgency         int     `json:"urgency"`
	Source          string  `json:"source"`
	AnalyzedAt      int64   `json:"timestamp"`
}

// Analyzer is the pluggable analysis capability. Implementations must
// honor ctx cancellation; the dispatcher bounds every call with the
// configured timeout.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, error)
	HealthCheck(ctx context.Context) bool
	Name() string
}

// New builds the backend selected by cfg. The choice is made once at
// startup; there is no runtime switching.
func New(cfg config.AIConfig, logger *zap.Logger) (Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Provider {
	case "ollama", "local":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("ollama config missing")
		}
		return newOllama(*cfg.Ollama, cfg.PromptTemplate, timeout, logger), nil
	case "kimi":
		if cfg.Kimi == nil {
			return nil, fmt.Errorf("kimi config missing")
		}
		return newCompat("kimi", cfg.Kimi.APIKey, cfg.Kimi.BaseURL, cfg.Kimi.Model, cfg.PromptTemplate, timeout, logger), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai config missing")
		}
		return newCompat("openai", cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.PromptTemplate, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported analysis provider %q", cfg.Provider)
	}
}
