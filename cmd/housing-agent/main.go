// Package main provides the entry point for the housing-agent gateway: a
// single long-running process that loads configuration, wires the
// orchestrator's services, and serves the chat/metrics/healthz HTTP
// surface until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/armindomatias/housing-agent/internal/config"
	"github.com/armindomatias/housing-agent/internal/gateway"
	"github.com/armindomatias/housing-agent/internal/httpauth"
	"github.com/armindomatias/housing-agent/internal/llm"
	"github.com/armindomatias/housing-agent/internal/observability"
	"github.com/armindomatias/housing-agent/internal/orchestrator"
	"github.com/armindomatias/housing-agent/internal/pipeline"
	"github.com/armindomatias/housing-agent/internal/store"
	"github.com/armindomatias/housing-agent/internal/tools"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", os.Getenv("HOUSING_AGENT_CONFIG"), "path to YAML configuration file")
	flag.Parse()

	if err := run(logger, *configPath); err != nil {
		logger.Error("housing-agent exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Logging.Level == "debug" || cfg.Logging.Format == "text" {
		opts := &slog.HandlerOptions{Level: slog.LevelInfo}
		if cfg.Logging.Level == "debug" {
			opts.Level = slog.LevelDebug
		}
		var handler slog.Handler = slog.NewJSONHandler(os.Stderr, opts)
		if cfg.Logging.Format == "text" {
			handler = slog.NewTextHandler(os.Stderr, opts)
		}
		logger = slog.New(handler)
		slog.SetDefault(logger)
	}

	logger.Info("starting housing-agent", "version", version, "addr", cfg.Server.Addr)

	durableStore, err := store.NewPostgresStoreFromDSN(cfg.Store.DSN, &store.PostgresConfig{
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		ConnectTimeout:  cfg.Store.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	provider, err := llm.NewAnthropicProvider(llm.AnthropicConfig{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.DefaultModel,
		MaxRetries:   cfg.LLM.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	metrics := observability.NewMetrics()
	provider.WithMetrics(metrics)

	stages := pipeline.NewLLMStages(provider, cfg.LLM.DefaultModel)
	analysisPipeline := pipeline.NewDefaultPipeline(
		pipeline.FixtureScraper(), // property scraping is out of core scope (spec.md §1)
		stages,
		stages,
		stages,
		stages,
	).WithMetrics(metrics).WithConcurrency(cfg.Pipeline.ClassifyConcurrency, cfg.Pipeline.EstimateConcurrency)

	orch := orchestrator.New(&orchestrator.Services{
		Store:    durableStore,
		Tools:    tools.NewBuiltinRegistry(),
		Pipeline: analysisPipeline,
		LLM:      provider,
		Logger:   logger,
		Config: orchestrator.Config{
			SystemPrompt: cfg.Orchestrator.SystemPrompt,
			Model:        cfg.Orchestrator.Model,
			MaxTokens:    cfg.Orchestrator.MaxTokens,
			MaxCycles:    cfg.Orchestrator.MaxCycles,
		},
		Metrics: metrics,
	})

	authService := httpauth.NewService(tokensFromConfig(cfg.Auth.Tokens))
	if !authService.Enabled() {
		logger.Warn("bearer auth is disabled: no tokens configured")
	}

	server := gateway.NewServer(gateway.Config{
		Addr:         cfg.Server.Addr,
		Orchestrator: orch,
		Auth:         authService,
		Logger:       logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, draining in-flight requests")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown gateway: %w", err)
	}

	logger.Info("housing-agent stopped gracefully")
	return nil
}

func tokensFromConfig(tokens []config.BearerTokenConfig) map[string]string {
	out := make(map[string]string, len(tokens))
	for _, t := range tokens {
		out[t.Token] = t.UserID
	}
	return out
}
