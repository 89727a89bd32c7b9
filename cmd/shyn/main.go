// Package main is the entry point for the SHYN companion service.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shynlabs/shyn/internal/chat"
	"github.com/shynlabs/shyn/internal/config"
	"github.com/shynlabs/shyn/internal/gateway"
	"github.com/shynlabs/shyn/internal/memory"
	"github.com/shynlabs/shyn/internal/server"
	"github.com/shynlabs/shyn/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Database.URL, cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer store.Close()

	gw := gateway.New(gateway.Config{
		Provider:      cfg.Model.Provider,
		GoogleAPIKey:  cfg.Model.GoogleAPIKey,
		OpenAIAPIKey:  cfg.Model.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Model.OpenAIBaseURL,
		ChatModel:     cfg.Model.ChatModel,
		ImageModel:    cfg.Model.ImageModel,
		AspectRatio:   cfg.Model.AspectRatio,
	})

	var embedder memory.Embedder
	if cfg.Model.GoogleAPIKey != "" {
		embedder, err = memory.NewGenAIEmbedder(ctx, cfg.Model.GoogleAPIKey, cfg.Model.EmbeddingModel)
		if err != nil {
			slog.Warn("embedder unavailable, memories will not be searchable", "error", err.Error())
			embedder = nil
		}
	}

	memories := memory.NewService(store.Memories, embedder)
	pipeline := memory.NewPipeline(memories, gw)
	defer pipeline.Close()

	manager := chat.NewManager(chat.Deps{
		Gateway:   gw,
		History:   store.History,
		Affection: store.Affection,
		Memories:  memories,
		Pipeline:  pipeline,
		Notifier:  chat.LogNotifier{},
	})
	defer manager.Close()

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.New(store, manager, gw, memories).Router(),
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown incomplete", "error", err.Error())
	}
}
