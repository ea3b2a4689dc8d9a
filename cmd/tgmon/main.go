package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dr4g00n/TG-monitor/internal/analysis"
	"github.com/dr4g00n/TG-monitor/internal/config"
	"github.com/dr4g00n/TG-monitor/internal/ingest"
	"github.com/dr4g00n/TG-monitor/internal/pipeline"
	"github.com/dr4g00n/TG-monitor/internal/queue"
	"github.com/dr4g00n/TG-monitor/internal/registry"
	"github.com/dr4g00n/TG-monitor/internal/server"
	"github.com/dr4g00n/TG-monitor/internal/telegram"
)

var version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "tgmon",
	Short: "tgmon - Telegram channel monitor with AI analysis",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the monitor (HTTP ingestion + batch analysis + report delivery)",
	RunE:  runMonitor,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize the config file",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tgmon %s\n", version)
	},
}

var configFlag string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to config file")
	rootCmd.AddCommand(runCmd, onboardCmd, statusCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func configPath() string {
	if configFlag != "" {
		return configFlag
	}
	return config.ConfigPath()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	reg := registry.New(logger)
	reg.Seed(cfg.Processing.Sources)

	analyzer, err := analysis.New(cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("init analyzer: %w", err)
	}

	deliverer, err := telegram.NewClient(cfg.Telegram, logger)
	if err != nil {
		return fmt.Errorf("init telegram: %w", err)
	}

	q := queue.New(cfg.Processing.BatchSize, time.Duration(cfg.Processing.BatchTimeoutSeconds)*time.Second, logger)
	dispatcher := analysis.NewDispatcher(analyzer, cfg.Processing.MinConfidence, cfg.Processing.Keywords, cfg.Processing.Concurrency, logger)
	pipe := pipeline.New(q, dispatcher, deliverer, logger)
	gate := ingest.NewGatekeeper(reg, q, pipe.Enqueue, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, gate, reg, []server.HealthChecker{analyzer}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A failing backend is worth knowing about at startup, but the
	// monitor still runs; the backend may come up later.
	probeCtx, probeCancel := context.WithTimeout(ctx, 10*time.Second)
	if !analyzer.HealthCheck(probeCtx) {
		logger.Warn("analysis backend unreachable", zap.String("backend", analyzer.Name()))
	}
	probeCancel()

	if err := pipe.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("tgmon started",
		zap.String("version", version),
		zap.String("addr", addr),
		zap.String("analyzer", analyzer.Name()),
		zap.Int("channels", reg.Len()),
		zap.Int("batch_size", cfg.Processing.BatchSize),
	)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	}

	// Stop accepting events first, then drain the pipeline so the
	// partial batch still ships.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	pipe.Stop(shutdownCtx)

	logger.Info("tgmon stopped")
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists: %s\n", cfgPath)
		return nil
	}

	if err := config.SaveConfig(config.DefaultConfig()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Created config: %s\n", cfgPath)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set botToken, targetChat and your AI provider key\n", cfgPath)
	fmt.Println("  2. Or set TGMON_BOT_TOKEN / TGMON_KIMI_API_KEY environment variables")
	fmt.Println("  3. Run 'tgmon run' to start the monitor")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", configPath())
	fmt.Printf("Listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Provider: %s\n", cfg.AI.Provider)
	fmt.Printf("Batch: size=%d timeout=%ds\n", cfg.Processing.BatchSize, cfg.Processing.BatchTimeoutSeconds)
	fmt.Printf("Min confidence: %.2f\n", cfg.Processing.MinConfidence)
	fmt.Printf("Channels: %d configured\n", len(cfg.Processing.Sources))

	if cfg.Telegram.BotToken == "" {
		fmt.Println("Bot token: not set")
	} else {
		fmt.Printf("Bot token: set (chat %d)\n", cfg.Telegram.TargetChat)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Validation: %v\n", err)
	} else {
		fmt.Println("Validation: ok")
	}
	return nil
}
