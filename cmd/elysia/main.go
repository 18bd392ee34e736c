package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/antoniostano/elysia/internal/config"
	"github.com/antoniostano/elysia/internal/emotion"
	"github.com/antoniostano/elysia/internal/httpapi"
	"github.com/antoniostano/elysia/internal/inference"
	"github.com/antoniostano/elysia/internal/memory"
	"github.com/antoniostano/elysia/internal/observability"
	"github.com/antoniostano/elysia/internal/pipeline"
	"github.com/antoniostano/elysia/internal/session"
	"github.com/antoniostano/elysia/internal/tts"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer memoryStore.Close()

	gateway := inference.New(inference.Config{
		APIKey:          cfg.InferenceAPIKey,
		BaseURL:         cfg.InferenceBaseURL,
		ChatModels:      cfg.ChatModels,
		VisionModel:     cfg.VisionModel,
		STTModel:        cfg.STTModel,
		MaxTokens:       cfg.MaxTokens,
		Temperature:     cfg.Temperature,
		GenerateTimeout: cfg.GenerateTimeout,
		Persona:         cfg.Persona,
	})

	classifier := emotion.NewClassifier(gateway, cfg.EmotionModel, cfg.FaceModel, cfg.ClassifyTimeout)

	synth := tts.New(tts.Config{
		APIKey:    cfg.TTSAPIKey,
		BaseURL:   cfg.TTSBaseURL,
		VoiceID:   cfg.TTSVoiceID,
		ModelID:   cfg.TTSModelID,
		OutputDir: cfg.TTSOutputDir,
	})

	turns := pipeline.New(gateway, classifier, synth, memoryStore, metrics, pipeline.Config{
		Persona:            cfg.Persona,
		MemoryQueryK:       cfg.MemoryQueryK,
		MemoryQueryTimeout: cfg.MemoryQueryTimeout,
		MemorySaveTimeout:  cfg.MemorySaveTimeout,
	})

	registry := session.NewRegistry()

	api := httpapi.New(cfg, registry, turns, gateway, classifier, synth, metrics)
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

	log.Printf("shutdown complete")
}
