package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TGMON_BOT_TOKEN", "TGMON_TARGET_CHAT", "TGMON_AI_PROVIDER",
		"TGMON_KIMI_API_KEY", "TGMON_OPENAI_API_KEY", "OPENAI_API_KEY", "TGMON_PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Processing.BatchSize != DefaultBatchSize {
		t.Errorf("batchSize = %d, want %d", cfg.Processing.BatchSize, DefaultBatchSize)
	}
	if cfg.Processing.BatchTimeoutSeconds != DefaultBatchTimeoutSeconds {
		t.Errorf("batchTimeoutSeconds = %d, want %d", cfg.Processing.BatchTimeoutSeconds, DefaultBatchTimeoutSeconds)
	}
	if cfg.Processing.MinConfidence != DefaultMinConfidence {
		t.Errorf("minConfidence = %v, want %v", cfg.Processing.MinConfidence, DefaultMinConfidence)
	}
	if cfg.Telegram.ChunkLimit != DefaultChunkLimit {
		t.Errorf("chunkLimit = %d, want %d", cfg.Telegram.ChunkLimit, DefaultChunkLimit)
	}
	if cfg.Telegram.MaxRetries != DefaultMaxRetries {
		t.Errorf("maxRetries = %d, want %d", cfg.Telegram.MaxRetries, DefaultMaxRetries)
	}
	if cfg.AI.Provider != "kimi" {
		t.Errorf("provider = %q, want kimi", cfg.AI.Provider)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("defaults alone should fail validation (kimi block missing)")
	}
	_ = cfg
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.json")

	fileCfg := map[string]any{
		"processing": map[string]any{
			"batchSize":           5,
			"batchTimeoutSeconds": 60,
			"minConfidence":       0.8,
		},
		"ai": map[string]any{
			"provider": "kimi",
			"kimi": map[string]any{
				"apiKey": "sk-test",
				"model":  "moonshot-v1-8k",
			},
		},
	}
	data, _ := json.Marshal(fileCfg)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Processing.BatchSize != 5 {
		t.Errorf("batchSize = %d, want 5", cfg.Processing.BatchSize)
	}
	if cfg.Processing.MinConfidence != 0.8 {
		t.Errorf("minConfidence = %v, want 0.8", cfg.Processing.MinConfidence)
	}
	if cfg.AI.Kimi.BaseURL != KimiDefaultBaseURL {
		t.Errorf("kimi base url = %q, want default applied", cfg.AI.Kimi.BaseURL)
	}
	if cfg.Telegram.ChunkLimit != DefaultChunkLimit {
		t.Errorf("chunkLimit = %d, want default applied", cfg.Telegram.ChunkLimit)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.json")

	fileCfg := map[string]any{
		"telegram": map[string]any{"botToken": "from-file"},
		"ai": map[string]any{
			"provider": "kimi",
			"kimi":     map[string]any{"apiKey": "file-key", "model": "moonshot-v1-8k"},
		},
	}
	data, _ := json.Marshal(fileCfg)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TGMON_BOT_TOKEN", "from-env")
	t.Setenv("TGMON_TARGET_CHAT", "-100999")
	t.Setenv("TGMON_KIMI_API_KEY", "env-key")
	t.Setenv("TGMON_PORT", "9999")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Telegram.BotToken != "from-env" {
		t.Errorf("botToken = %q, want env value", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.TargetChat != -100999 {
		t.Errorf("targetChat = %d, want -100999", cfg.Telegram.TargetChat)
	}
	if cfg.AI.Kimi.APIKey != "env-key" {
		t.Errorf("kimi key = %q, want env value", cfg.AI.Kimi.APIKey)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
}

func TestLoadConfig_BadJSON(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("broken JSON should fail to load")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.AI.Kimi = &KimiConfig{APIKey: "k", Model: "moonshot-v1-8k"}
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.Processing.BatchSize = 0 }},
		{"negative batch size", func(c *Config) { c.Processing.BatchSize = -1 }},
		{"zero batch timeout", func(c *Config) { c.Processing.BatchTimeoutSeconds = 0 }},
		{"confidence below range", func(c *Config) { c.Processing.MinConfidence = -0.1 }},
		{"confidence above range", func(c *Config) { c.Processing.MinConfidence = 1.5 }},
		{"missing provider", func(c *Config) { c.AI.Provider = "" }},
		{"unknown provider", func(c *Config) { c.AI.Provider = "skynet" }},
		{"provider block missing", func(c *Config) { c.AI.Provider = "ollama"; c.AI.Ollama = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config passed validation")
			}
		})
	}
}
