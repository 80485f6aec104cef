// Command server runs the HTTP search API (C10): it loads configuration,
// wires the embedding oracle, vector store, and LLM oracle into an answer
// synthesizer, and serves it behind API-key auth and rate limiting.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"manifold/internal/config"
	"manifold/internal/httpapi"
	"manifold/internal/llm"
	"manifold/internal/observability"
	"manifold/internal/persistence/databases"
	"manifold/internal/rag/embedder"
	"manifold/internal/rag/obs"
	"manifold/internal/rag/synth"
	"manifold/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.Obs.OTLP != "" {
		shutdown, err := observability.InitOTel(context.Background(), cfg.Obs)
		if err != nil {
			log.Fatal().Err(err).Msg("init otel")
		}
		defer shutdown(context.Background())
	}
	observability.InitLoggerWithOTel(cfg.LogFile, cfg.LogLevel, cfg.Obs.OTLP != "")
	metrics := obs.NewOtelMetrics()

	emb := embedder.NewClient(cfg.Embedding, cfg.Embedding.Dimension)

	store, err := databases.NewQdrantVector(
		fmt.Sprintf("%s:%d", cfg.QdrantHost, cfg.QdrantPort),
		cfg.QdrantCollection,
		cfg.Embedding.Dimension,
		cfg.QdrantMetric,
		databases.HNSWConfig{M: cfg.HNSWM, EfConstruct: cfg.HNSWEfConstruct, EfSearch: cfg.HNSWEfSearch},
		cfg.SearchTimeoutSecs,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("connect qdrant")
	}
	defer store.Close()

	oracle, err := llm.New(cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("init llm oracle")
	}

	synthesizer := synth.New(emb, store, oracle)
	synthesizer.Metrics = metrics
	handler := httpapi.NewServer(synthesizer, store, cfg.APIKey, cfg.RateLimitRPM, cfg.SearchTopK, cfg.SearchScoreThresh, cfg.CORSOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", addr).Str("version", version.Version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
