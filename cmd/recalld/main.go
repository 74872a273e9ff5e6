// Command recalld runs the memory-backed chat agent behind a websocket
// gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/becomeliminal/recall-go-sdk/config"
	"github.com/becomeliminal/recall-go-sdk/engine"
	"github.com/becomeliminal/recall-go-sdk/llm"
	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/memory/longterm"
	"github.com/becomeliminal/recall-go-sdk/memory/shortterm"
	"github.com/becomeliminal/recall-go-sdk/server"
	"github.com/becomeliminal/recall-go-sdk/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "recalld:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// A missing .env file is fine; the environment may be set elsewhere.
	_ = godotenv.Load()

	path, err := config.FindConfig(*configPath)
	var cfg *config.Config
	if err != nil {
		cfg = config.Default()
		if cfg.Anthropic.APIKey == "" {
			cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	} else {
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if cfg.Anthropic.APIKey == "" {
		return errors.New("no Anthropic API key (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	short, err := shortterm.Open(cfg.ShortTermPath())
	if err != nil {
		return fmt.Errorf("open short-term store: %w", err)
	}
	defer short.Close()

	embedder, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return err
	}

	long, err := longterm.Open(cfg.LongTermPath(), embedder, logger)
	if err != nil {
		return fmt.Errorf("open long-term store: %w", err)
	}

	client := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:    cfg.Anthropic.APIKey,
		Model:     cfg.Anthropic.Model,
		MaxTokens: int64(cfg.Anthropic.MaxTokens),
	})

	// The summarizer may use a cheaper model than the chat loop.
	summaryClient := llm.Client(client)
	if cfg.Anthropic.SummaryModel != "" && cfg.Anthropic.SummaryModel != cfg.Anthropic.Model {
		summaryClient = llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.SummaryModel,
			MaxTokens: int64(cfg.Anthropic.MaxTokens),
		})
	}

	memCfg, err := cfg.MemorySettings()
	if err != nil {
		return err
	}
	svc := memory.NewService(short, long, memory.NewLLMSummarizer(summaryClient), memCfg, logger)

	registry := engine.NewRegistry()
	if err := registry.Register(tools.MemoryTools(svc)...); err != nil {
		return err
	}

	var agentOpts []engine.Option
	if cfg.Agent.SystemPrompt != "" {
		agentOpts = append(agentOpts, engine.WithSystemPrompt(cfg.Agent.SystemPrompt))
	}
	if cfg.Agent.MaxIterations > 0 {
		agentOpts = append(agentOpts, engine.WithMaxIterations(cfg.Agent.MaxIterations))
	}
	if d := cfg.CallTimeout(); d > 0 {
		agentOpts = append(agentOpts, engine.WithCallTimeout(d))
	}

	runtime, err := engine.NewRuntime(client, registry, svc, engine.RuntimeConfig{
		MaxSessions:  cfg.Sessions.MaxSessions,
		SessionTTL:   cfg.SessionTTL(),
		AgentOptions: agentOpts,
	}, logger)
	if err != nil {
		return err
	}
	defer runtime.Close()

	gateway := server.New(runtime, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	httpServer := &http.Server{Addr: addr, Handler: gateway.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "tools", registry.Len())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
