// Package ingest orchestrates C7: turning a parsed Document plus its
// RegulatoryUnits into embedded, versioned vector-store points, with
// per-source error isolation so one malformed file doesn't abort a batch
// ingestion run. Replaces the teacher's generic multi-backend (FTS+graph)
// ingestion service, which this system has no use for — only the vector
// store and supersession are relevant to a regulation corpus.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"manifold/internal/domain"
	"manifold/internal/persistence/databases"
	"manifold/internal/rag/chunker"
	"manifold/internal/rag/embedder"
	"manifold/internal/rag/obs"
	"manifold/internal/rag/version"
)

// Options configures chunking for a pipeline run.
type Options struct {
	Chunk chunker.Options
}

// Result summarizes one unit's ingestion outcome for the ingestion log (C14).
type Result struct {
	RegulationID string
	ChunkCount   int
	Err          error
}

// Pipeline wires an embedder, a vector store, and a version manager into
// the parse-result-to-point pipeline.
type Pipeline struct {
	Embedder embedder.Embedder
	Versions *version.Manager
	Opts     Options
	Metrics  obs.Metrics // optional; nil disables instrumentation
}

func New(emb embedder.Embedder, store databases.VectorStore, opts Options) *Pipeline {
	return &Pipeline{Embedder: emb, Versions: version.New(store), Opts: opts}
}

// IngestDocument chunks, embeds, and upserts every unit of a parsed
// document, resolving supersession per regulation as it goes. Units are
// processed independently: one unit's failure is recorded in the returned
// results and does not stop the rest of the document from ingesting.
func (p *Pipeline) IngestDocument(ctx context.Context, doc *domain.Document, units []domain.RegulatoryUnit) []Result {
	results := make([]Result, 0, len(units))
	for _, u := range units {
		n, err := p.ingestUnit(ctx, doc, u)
		results = append(results, Result{RegulationID: u.RegulationID, ChunkCount: n, Err: err})
		if p.Metrics != nil {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			p.Metrics.IncCounter("ingestion_units_total", map[string]string{"outcome": outcome})
			p.Metrics.ObserveHistogram("ingestion_chunk_count", float64(n), nil)
		}
	}
	return results
}

func (p *Pipeline) ingestUnit(ctx context.Context, doc *domain.Document, u domain.RegulatoryUnit) (int, error) {
	if strings.TrimSpace(u.Text) == "" {
		return 0, fmt.Errorf("ingest %s: empty text", u.RegulationID)
	}
	chunks := chunker.Chunk(u.Text, p.Opts.Chunk)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", u.RegulationID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed %s: got %d vectors for %d chunks", u.RegulationID, len(vectors), len(chunks))
	}

	status := domain.StatusActive
	if u.IsRevoked {
		status = domain.StatusSuperseded
	}

	points := make([]databases.Point, len(chunks))
	for i, c := range chunks {
		meta := map[string]string{
			"label":   u.Label,
			"context": strings.Join(u.Context, " > "),
			"text":    c.Text,
		}
		if doc != nil {
			meta[domain.MetaDocKind] = string(doc.Kind)
			meta[domain.MetaSource] = doc.SourceURI
		}
		for k, v := range u.Metadata {
			meta[k] = v
		}
		points[i] = databases.Point{
			ID:            fmt.Sprintf("%s-v%s-c%d", u.RegulationID, u.Version, i),
			Vector:        vectors[i],
			RegulationID:  u.RegulationID,
			Status:        string(status),
			Version:       u.Version,
			EffectiveDate: u.EffectiveDate,
			ExpiryDate:    u.ExpiryDate,
			Metadata:      meta,
		}
	}

	effective := time.Now().UTC()
	if u.EffectiveDate != nil {
		effective = *u.EffectiveDate
	}
	if err := p.Versions.Resolve(ctx, u.RegulationID, u.Version, effective, points); err != nil {
		return 0, fmt.Errorf("resolve version for %s: %w", u.RegulationID, err)
	}
	return len(points), nil
}
