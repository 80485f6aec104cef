// Command ingest walks a source directory of LexML XML files and ICA PDFs,
// parses each into a Document plus its RegulatoryUnits, and runs them through
// the embedding/versioning pipeline (C7), recording one outcome per source
// file to the ingestion log (C14), plus one failure entry per unit that
// fails to ingest. A bounded worker pool processes sources
// concurrently, following the teacher's errgroup.Group+SetLimit idiom for
// fan-out over a list of independent units of work.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"manifold/internal/config"
	"manifold/internal/domain"
	"manifold/internal/ingestlog"
	"manifold/internal/observability"
	"manifold/internal/parse/lexml"
	"manifold/internal/parse/pdf"
	"manifold/internal/persistence/databases"
	"manifold/internal/rag/chunker"
	"manifold/internal/rag/embedder"
	"manifold/internal/rag/ingest"
	"manifold/internal/rag/obs"

	"github.com/rs/zerolog/log"
)

func main() {
	sourceDir := flag.String("source", "data/corpus", "directory to walk for .xml and .pdf source files")
	flag.Parse()

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

	ilog, err := ingestlog.Open(cfg.IngestionLogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open ingestion log")
	}
	defer ilog.Close()

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

	pipeline := ingest.New(emb, store, ingest.Options{
		Chunk: chunker.Options{MaxTokens: cfg.ChunkMaxTokens, Overlap: cfg.ChunkOverlap},
	})
	pipeline.Metrics = obs.NewOtelMetrics()

	paths, err := discoverSources(*sourceDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *sourceDir).Msg("walk source directory")
	}
	log.Info().Int("count", len(paths)).Str("dir", *sourceDir).Msg("discovered sources")

	ctx := context.Background()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.NumWorkers)

	for _, p := range paths {
		p := p
		g.Go(func() error {
			ingestSource(ctx, pipeline, ilog, cfg, p)
			return nil
		})
	}
	_ = g.Wait()
}

func discoverSources(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xml", ".pdf":
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func ingestSource(ctx context.Context, pipeline *ingest.Pipeline, ilog *ingestlog.Log, cfg *config.Config, path string) {
	if ilog.IsProcessed(path) {
		log.Info().Str("path", path).Msg("skip already-ingested source")
		return
	}

	doc, units, err := parseSource(path, cfg)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("parse source")
		_ = ilog.Failure(path, err)
		return
	}

	results := pipeline.IngestDocument(ctx, doc, units)
	chunkCount := 0
	for _, r := range results {
		if r.Err != nil {
			log.Error().Err(r.Err).Str("path", path).Str("regulation_id", r.RegulationID).Msg("ingest unit")
			_ = ilog.Failure(fmt.Sprintf("%s#%s", path, r.RegulationID), r.Err)
			continue
		}
		chunkCount += r.ChunkCount
	}
	_ = ilog.Success(path, chunkCount)
}

func parseSource(path string, cfg *config.Config) (*domain.Document, []domain.RegulatoryUnit, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return lexml.Parse(f, cfg.DefaultEffectiveDays)
	case ".pdf":
		src, closeFile, err := pdf.Open(path)
		if err != nil {
			return nil, nil, err
		}
		defer closeFile()
		var ocr pdf.OCR
		if cfg.EnableOCR {
			ocr = func(pageIndex int) (string, error) {
				return "", fmt.Errorf("ocr not configured for page %d", pageIndex)
			}
		}
		return pdf.Parse(path, src, ocr, pdf.ICADropPolicy, cfg.DefaultEffectiveDays)
	default:
		return nil, nil, fmt.Errorf("unsupported source extension: %s", path)
	}
}
