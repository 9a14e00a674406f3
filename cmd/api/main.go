package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/symposium-ai/symposium/backend/internal/config"
	"github.com/symposium-ai/symposium/backend/internal/handler"
	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
	"github.com/symposium-ai/symposium/backend/internal/service/ai"
	conversationService "github.com/symposium-ai/symposium/backend/internal/service/conversation"
	"github.com/symposium-ai/symposium/backend/internal/service/wikipedia"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	thinkerStore := thinker.NewMemoryStore(thinker.Seed())
	convSvc := conversationService.NewService(cfg.Chat.SpendLimit)

	var aiSvc *ai.Service
	if cfg.AI.Enabled() {
		aiSvc, err = ai.NewService(ctx, cfg.AI, wikipedia.New())
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - check the Ark model environment variables")
		} else {
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark credentials not configured, thinkers will not speak")
	}

	var streamer orchestrator.ChatStreamer
	if aiSvc != nil {
		streamer = aiSvc
	}
	orc := orchestrator.New(streamer, orchestrator.Config{
		BaseMessageInterval: cfg.Chat.BaseMessageInterval,
		PreviewInterval:     cfg.Chat.PreviewInterval,
		ThinkingBudget:      cfg.AI.ThinkingBudget,
	})
	defer orc.StopAll()

	router := handler.NewRouter(thinkerStore, convSvc, aiSvc, orc, cfg.Chat.AllowedOrigins)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Symposium backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
