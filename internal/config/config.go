package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultHost                = "0.0.0.0"
	DefaultPort                = 18790
	DefaultBatchSize           = 10
	DefaultBatchTimeoutSeconds = 300
	DefaultMinConfidence       = 0.7
	DefaultConcurrency         = 4
	DefaultAnalysisTimeout     = 30
	DefaultChunkLimit          = 4096
	DefaultMaxRetries          = 3
	DefaultRetryBaseDelayMs    = 1000
	DefaultDeliveryTimeout     = 30
	DefaultPromptTemplate      = "Analyze the following chat message and decide whether it discusses a tradable meme token:\n\n{}"
)

const (
	KimiDefaultBaseURL   = "https://api.moonshot.cn/v1"
	OpenAIDefaultBaseURL = "https://api.openai.com/v1"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Telegram   TelegramConfig   `json:"telegram"`
	AI         AIConfig         `json:"ai"`
	Processing ProcessingConfig `json:"processing"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// TelegramConfig configures the bot-push delivery channel. Reports go
// to a single fixed chat per deployment.
type TelegramConfig struct {
	BotToken         string `json:"botToken"`
	TargetChat       int64  `json:"targetChat"`
	ChunkLimit       int    `json:"chunkLimit,omitempty"`
	MaxRetries       int    `json:"maxRetries,omitempty"`
	RetryBaseDelayMs int    `json:"retryBaseDelayMs,omitempty"`
	TimeoutSeconds   int    `json:"timeoutSeconds,omitempty"`
}

// AIConfig selects the analysis backend. The provider block matching
// the chosen provider must be present; selection happens once at
// startup and is immutable afterwards.
type AIConfig struct {
	Provider       string        `json:"provider"` // "ollama", "kimi" or "openai"
	TimeoutSeconds int           `json:"timeoutSeconds"`
	PromptTemplate string        `json:"promptTemplate,omitempty"`
	Ollama         *OllamaConfig `json:"ollama,omitempty"`
	Kimi           *KimiConfig   `json:"kimi,omitempty"`
	OpenAI         *OpenAIConfig `json:"openai,omitempty"`
}

type OllamaConfig struct {
	Endpoint string `json:"endpoint"`
	Model    string `json:"model"`
}

type KimiConfig struct {
	APIKey  string `json:"apiKey"`
	Model   string `json:"model"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type OpenAIConfig struct {
	APIKey  string `json:"apiKey"`
	Model   string `json:"model"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type ProcessingConfig struct {
	BatchSize           int      `json:"batchSize"`
	BatchTimeoutSeconds int      `json:"batchTimeoutSeconds"`
	MinConfidence       float64  `json:"minConfidence"`
	Keywords            []string `json:"keywords,omitempty"`
	Concurrency         int      `json:"concurrency,omitempty"`
	Sources             []int64  `json:"sources,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Telegram: TelegramConfig{
			ChunkLimit:       DefaultChunkLimit,
			MaxRetries:       DefaultMaxRetries,
			RetryBaseDelayMs: DefaultRetryBaseDelayMs,
			TimeoutSeconds:   DefaultDeliveryTimeout,
		},
		AI: AIConfig{
			Provider:       "kimi",
			TimeoutSeconds: DefaultAnalysisTimeout,
			PromptTemplate: DefaultPromptTemplate,
		},
		Processing: ProcessingConfig{
			BatchSize:           DefaultBatchSize,
			BatchTimeoutSeconds: DefaultBatchTimeoutSeconds,
			MinConfidence:       DefaultMinConfidence,
			Concurrency:         DefaultConcurrency,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".tgmon")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// LoadConfig reads the config file at path (ConfigPath() when empty),
// applies environment overrides and validates the result. A missing
// file is not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("TGMON_BOT_TOKEN"); token != "" {
		cfg.Telegram.BotToken = token
	}
	if chat := os.Getenv("TGMON_TARGET_CHAT"); chat != "" {
		if parsed, err := strconv.ParseInt(chat, 10, 64); err == nil {
			cfg.Telegram.TargetChat = parsed
		}
	}
	if provider := os.Getenv("TGMON_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if key := os.Getenv("TGMON_KIMI_API_KEY"); key != "" {
		if cfg.AI.Kimi == nil {
			cfg.AI.Kimi = &KimiConfig{}
		}
		cfg.AI.Kimi.APIKey = key
	}
	if key := os.Getenv("TGMON_OPENAI_API_KEY"); key != "" {
		if cfg.AI.OpenAI == nil {
			cfg.AI.OpenAI = &OpenAIConfig{}
		}
		cfg.AI.OpenAI.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.AI.OpenAI != nil && cfg.AI.OpenAI.APIKey == "" {
		cfg.AI.OpenAI.APIKey = key
	}
	if port := os.Getenv("TGMON_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = parsed
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.AI.PromptTemplate == "" {
		cfg.AI.PromptTemplate = DefaultPromptTemplate
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = DefaultAnalysisTimeout
	}
	if cfg.AI.Kimi != nil && cfg.AI.Kimi.BaseURL == "" {
		cfg.AI.Kimi.BaseURL = KimiDefaultBaseURL
	}
	if cfg.AI.OpenAI != nil && cfg.AI.OpenAI.BaseURL == "" {
		cfg.AI.OpenAI.BaseURL = OpenAIDefaultBaseURL
	}
	if cfg.Telegram.ChunkLimit <= 0 {
		cfg.Telegram.ChunkLimit = DefaultChunkLimit
	}
	if cfg.Telegram.MaxRetries <= 0 {
		cfg.Telegram.MaxRetries = DefaultMaxRetries
	}
	if cfg.Telegram.RetryBaseDelayMs <= 0 {
		cfg.Telegram.RetryBaseDelayMs = DefaultRetryBaseDelayMs
	}
	if cfg.Telegram.TimeoutSeconds <= 0 {
		cfg.Telegram.TimeoutSeconds = DefaultDeliveryTimeout
	}
	if cfg.Processing.Concurrency <= 0 {
		cfg.Processing.Concurrency = DefaultConcurrency
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Processing.BatchSize <= 0 {
		return fmt.Errorf("processing.batchSize must be greater than 0")
	}
	if c.Processing.BatchTimeoutSeconds <= 0 {
		return fmt.Errorf("processing.batchTimeoutSeconds must be greater than 0")
	}
	if c.Processing.MinConfidence < 0 || c.Processing.MinConfidence > 1 {
		return fmt.Errorf("processing.minConfidence must be between 0.0 and 1.0")
	}

	switch c.AI.Provider {
	case "ollama", "local":
		if c.AI.Ollama == nil {
			return fmt.Errorf("ai.ollama block is required when provider is %q", c.AI.Provider)
		}
	case "kimi":
		if c.AI.Kimi == nil {
			return fmt.Errorf("ai.kimi block is required when provider is \"kimi\"")
		}
	case "openai":
		if c.AI.OpenAI == nil {
			return fmt.Errorf("ai.openai block is required when provider is \"openai\"")
		}
	case "":
		return fmt.Errorf("ai.provider is required")
	default:
		return fmt.Errorf("unsupported ai.provider %q (supported: ollama, kimi, openai)", c.AI.Provider)
	}

	return nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
