package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teems-ai/eve/internal/gateway"
	"github.com/teems-ai/eve/internal/notify"
	"github.com/teems-ai/eve/internal/orchestrator"
	"github.com/teems-ai/eve/internal/server"
	"github.com/teems-ai/eve/internal/specialist"
	"github.com/teems-ai/eve/internal/state"
	"github.com/teems-ai/eve/internal/sweeper"
	"github.com/teems-ai/eve/internal/tools"
	"github.com/teems-ai/eve/pkg/llm"
	"github.com/teems-ai/eve/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the eve daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Stores
	conversations := state.NewConversationStore(cfg.DataDir)
	uploads := state.NewUploadStore(cfg.DataDir)

	// LLM provider
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	// Prompt builder
	prompts, err := orchestrator.NewPromptBuilder(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create prompt builder: %w", err)
	}

	// Specialists
	specialists := specialist.NewRegistry()
	specialists.Register(specialist.NewGuidedShoot(nil))
	specialists.Register(specialist.NewPersona("video", "Video Studio",
		"Scripts and plans short-form product videos",
		"You are the Video Studio teammate. You script, storyboard and plan short-form product videos. Be concrete about shots, pacing and hooks.",
		provider))
	specialists.Register(specialist.NewPersona("slides", "Slides",
		"Drafts pitch and sales deck outlines",
		"You are the Slides teammate. You turn the user's goal into a tight deck outline: slide titles, one-line talking points, a clear narrative arc.",
		provider))
	specialists.Register(specialist.NewPersona("social", "Social",
		"Writes social posts and captions in the brand voice",
		"You are the Social teammate. You write platform-appropriate posts and captions in the user's brand voice. Keep it short and punchy.",
		provider))
	specialists.Register(specialist.NewPersona("notes", "Notes",
		"Summarizes and organizes meeting notes and ideas",
		"You are the Notes teammate. You summarize, structure and extract action items from whatever the user gives you.",
		provider))

	// Tool registry
	registry := tools.NewRegistry()
	registry.Register(tools.NewBrandLookup())
	if cfg.Brave.APIKey != "" {
		registry.Register(tools.NewWebSearch(cfg.Brave.APIKey))
	} else {
		slog.Warn("web_search disabled (no brave api key)")
	}
	registry.Register(tools.NewGetOnboardingState())
	registry.Register(tools.NewAdvanceOnboarding())
	registry.Register(tools.NewResetWizard())
	for _, sp := range specialists.All() {
		registry.Register(tools.NewDelegate(sp))
	}

	// Orchestrator
	orch := orchestrator.New(provider, conversations, uploads, registry, specialists, prompts, cfg.MaxToolRounds)

	// Notifications
	notifyReg := notify.NewRegistry()
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("create telegram notifier: %w", err)
		}
		notifyReg.Register("telegram", tg.Send)
		slog.Info("telegram notifier registered")
	} else {
		slog.Warn("telegram notifier disabled (no token)")
	}
	orch.SetNotifier(notifyReg)

	// Gateway
	gw := gateway.New(int64(cfg.MaxConcurrent))
	gw.Queue.SetProcessor(orch.ProcessTurn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	// Upload sweeper
	sweep := sweeper.New(uploads, cfg.Uploads.SweepSchedule, time.Duration(cfg.Uploads.TTLHours)*time.Hour)
	if err := sweep.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweep.Stop()

	// HTTP server
	srv := server.NewServer(gw, conversations, uploads, specialists,
		server.WithUploadLimits(
			int64(cfg.Uploads.MaxUploadMB)<<20,
			int64(cfg.Uploads.MaxFileUploadMB)<<20,
		))
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv,
	}
	go func() {
		slog.Info("http server started", "listen", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("eve started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"max_tool_rounds", cfg.MaxToolRounds,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	return nil
}
