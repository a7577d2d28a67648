package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polarline/santacall/internal/auth"
	"github.com/polarline/santacall/internal/children"
	"github.com/polarline/santacall/internal/pipeline"
	"github.com/polarline/santacall/internal/wishlist"
	"github.com/polarline/santacall/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()
	if cfg.databaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.openaiAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	signer, err := auth.NewSigner(cfg.authSecret, cfg.tokenTTL)
	if err != nil {
		slog.Error("auth signer", "error", err)
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := pgxpool.New(initCtx, cfg.databaseURL)
	if err != nil {
		slog.Error("database connect", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := children.NewPostgresStore(pool)
	if err := store.Migrate(initCtx); err != nil {
		slog.Error("database migrate", "error", err)
		os.Exit(1)
	}
	wishes := wishlist.NewPostgresStore(pool)
	if err := wishes.Migrate(initCtx); err != nil {
		slog.Error("database migrate", "error", err)
		os.Exit(1)
	}
	initCancel()

	scratch, err := pipeline.NewScratch(cfg.scratchDir)
	if err != nil {
		slog.Error("scratch dir", "error", err)
		os.Exit(1)
	}

	transcriber := pipeline.NewWhisperTranscriber(cfg.openaiAPIKey, cfg.whisperModel)

	var responder pipeline.Responder
	switch cfg.llmEngine {
	case "chat":
		responder = pipeline.NewChatResponder(cfg.openaiAPIKey, cfg.llmModel, cfg.llmMaxTokens, cfg.llmTemperature)
	default:
		responder = pipeline.NewAgentResponder(cfg.llmModel, cfg.llmMaxTokens, cfg.llmTemperature)
	}

	ttsHTTP := pipeline.NewPooledHTTPClient(cfg.ttsPoolSize, 30*time.Second)
	ttsBackends := map[string]pipeline.Synthesizer{}
	if cfg.elevenlabsAPIKey != "" {
		ttsBackends["elevenlabs"] = pipeline.NewElevenLabsSynthesizer(cfg.elevenlabsAPIKey, cfg.elevenlabsVoiceID, cfg.elevenlabsModelID, ttsHTTP)
	}
	if cfg.openaiTTSURL != "" {
		ttsBackends["openai"] = pipeline.NewOpenAISynthesizer(cfg.openaiTTSURL, cfg.openaiAPIKey, cfg.openaiTTSModel, cfg.openaiTTSVoice, ttsHTTP)
	}
	if len(ttsBackends) == 0 {
		slog.Error("no TTS backend configured, set ELEVENLABS_API_KEY or OPENAI_TTS_URL")
		os.Exit(1)
	}
	ttsRouter := pipeline.NewTTSRouter(ttsBackends, cfg.ttsEngine)

	pipe := pipeline.New(pipeline.Config{
		Transcriber: transcriber,
		Responder:   responder,
		TTS:         ttsRouter,
		Children:    store,
		Scratch:     scratch,
		TTSEngine:   cfg.ttsEngine,
	})

	wsHandler := ws.NewHandler(ws.HandlerConfig{
		Pipeline:      pipe,
		Scratch:       scratch,
		MaxConcurrent: cfg.maxConcurrentCalls,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		pipe:      pipe,
		scratch:   scratch,
		store:     store,
		wishes:    wishes,
		signer:    signer,
		wsHandler: wsHandler,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("santacall starting",
		"addr", addr,
		"llm_engine", cfg.llmEngine,
		"tts_engines", ttsRouter.Engines(),
		"max_concurrent", cfg.maxConcurrentCalls)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("santacall stopped")
}
