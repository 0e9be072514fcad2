package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/animahq/anima/internal/config"
	"github.com/animahq/anima/internal/core"
	"github.com/animahq/anima/internal/core/policy"
	"github.com/animahq/anima/internal/driver"
	"github.com/animahq/anima/internal/llm"
	"github.com/animahq/anima/internal/server"
	"github.com/animahq/anima/internal/speech"
)

const consolidationPollInterval = time.Minute

func main() {
	logger, err := buildLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment as is")
	}

	if err := policy.VerifyIntegrity(); err != nil {
		logger.Fatal("refusing to start", zap.Error(err))
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.toml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	graph, err := driver.NewMemgraphDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, logger)
	if err != nil {
		logger.Fatal("failed to connect to graph store", zap.Error(err))
	}
	defer func() { _ = graph.Close(ctx) }()

	if err := graph.BuildIndices(ctx); err != nil {
		logger.Warn("index creation failed, continuing", zap.Error(err))
	}

	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("failed to build llm client", zap.Error(err))
	}
	if embedder != nil {
		embedder = llm.NewCachingEmbedder(embedder, 4096)
	}

	var transcriber speech.Transcriber
	var synthesizer speech.Synthesizer
	if strings.EqualFold(cfg.LLM.Provider, "openai") && cfg.LLM.APIKey != "" {
		sp := speech.NewOpenAISpeech(cfg.LLM.APIKey, cfg.LLM.BaseURL)
		transcriber, synthesizer = sp, sp
	}

	mind := core.NewConsciousness(core.Deps{
		Config:   cfg,
		Driver:   graph,
		LLM:      llmClient,
		Embedder: embedder,
		Logger:   logger,
	})
	if err := mind.Awaken(ctx); err != nil {
		logger.Fatal("refusing to start", zap.Error(err))
	}

	go consolidationLoop(ctx, mind, logger)

	srv := server.New(cfg, mind, transcriber, synthesizer, graph, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("listening", zap.String("port", port), zap.String("persona", cfg.Persona.Name))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
		logger.Info("signal received, going to sleep")
	case <-srv.ShutdownRequested:
		logger.Info("shutdown requested over the wire")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := mind.Shutdown(shutdownCtx); err != nil {
		logger.Error("state persistence on shutdown failed", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}

// buildLogger is production JSON by default; LOG_FORMAT=console and LOG_LEVEL
// override for development.
func buildLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsed, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	return cfg.Build()
}

// consolidationLoop folds stale episodes into aggregate memories once the
// loop has been idle long enough, the way sleep consolidates a day. A new
// turn cancels a pass in flight.
func consolidationLoop(ctx context.Context, mind *core.Consciousness, logger *zap.Logger) {
	ticker := time.NewTicker(consolidationPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			archived, ran, err := mind.MaybeConsolidate(ctx)
			if err != nil {
				logger.Warn("consolidation pass failed", zap.Error(err))
				continue
			}
			if ran && archived > 0 {
				logger.Info("consolidated memories", zap.Int("archived", archived))
			}
		}
	}
}
