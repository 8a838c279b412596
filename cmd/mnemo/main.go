package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mnemo-ai/mnemo/internal/chat"
	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/engine"
	"github.com/mnemo-ai/mnemo/internal/httpapi"
	"github.com/mnemo-ai/mnemo/internal/llm"
	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/observability"
	"github.com/mnemo-ai/mnemo/internal/prompt"
	"github.com/mnemo-ai/mnemo/internal/summary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	chatStore, err := chat.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("chat store init failed: %v", err)
	}
	defer chatStore.Close()

	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer memoryStore.Close()

	summaryStore, err := summary.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("summary store init failed: %v", err)
	}
	defer summaryStore.Close()

	client, err := llm.NewClient(llm.Config{
		Mode:    cfg.LLMMode,
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		log.Fatalf("llm client init failed: %v", err)
	}
	if _, ok := client.(*llm.MockClient); ok {
		log.Printf("llm provider: mock (no OPENAI_API_KEY configured)")
	} else {
		log.Printf("llm provider: openai (%s)", cfg.OpenAIModel)
	}

	consolidator := memory.NewConsolidator(memoryStore, chatStore, client, cfg.ExtractionWindow, metrics)
	summarizer := summary.NewSummarizer(summaryStore, chatStore, client, cfg.SummaryThreshold, metrics)
	assembler := prompt.NewAssembler(memoryStore, summaryStore, chatStore, cfg.MemoryTopLimit, cfg.ContextRecentLimit)

	service := engine.NewService(
		engine.Config{BackgroundTimeout: cfg.BackgroundTimeout},
		chatStore,
		memoryStore,
		summaryStore,
		consolidator,
		summarizer,
		assembler,
		client,
		metrics,
	)

	api := httpapi.New(cfg, service, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	// Let in-flight memory and summary cycles finish before stores close.
	service.WaitBackground()

	log.Printf("shutdown complete")
}
