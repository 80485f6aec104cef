package synth

import (
	"context"
	"fmt"
	"time"

	"manifold/internal/domain"
	"manifold/internal/llm"
	"manifold/internal/persistence/databases"
	"manifold/internal/rag/embedder"
	"manifold/internal/rag/obs"
)

// Hit is one retrieved chunk surfaced back to the caller as a source.
type Hit struct {
	RegulationID  string
	Version       string
	Label         string
	Text          string
	Score         float64
	EffectiveDate *time.Time
	ExpiryDate    *time.Time
	Supersedes    string
	Metadata      map[string]string
}

// Answer is the full response to a search request, including the three
// timing fields search/rag.py's RAGPipeline.query reports.
type Answer struct {
	Answer      string
	Sources     []Hit
	SearchMS    int64
	LLMMS       int64
	TotalMS     int64
}

// Options configures a query. AsOf nil means plain semantic search with no
// temporal filtering at all (spec.md §4.8); a non-nil AsOf runs the
// status=active/effective_date/expiry_date composite filter as of that date
// (§4.5).
type Options struct {
	TopK           int
	AsOf           *time.Time
	MetadataEq     map[string]string
	ScoreThreshold float64 // hits scoring below this are excluded; 0 disables
}

// Synthesizer ties the embedder, vector store, and LLM oracle together.
type Synthesizer struct {
	Embedder embedder.Embedder
	Store    databases.VectorStore
	Oracle   llm.Oracle
	Metrics  obs.Metrics // optional; nil disables instrumentation
}

func New(emb embedder.Embedder, store databases.VectorStore, oracle llm.Oracle) *Synthesizer {
	return &Synthesizer{Embedder: emb, Store: store, Oracle: oracle}
}

func (s *Synthesizer) incCounter(name string, labels map[string]string) {
	if s.Metrics != nil {
		s.Metrics.IncCounter(name, labels)
	}
}

func (s *Synthesizer) observeHist(name string, value float64, labels map[string]string) {
	if s.Metrics != nil {
		s.Metrics.ObserveHistogram(name, value, labels)
	}
}

// Query embeds the question, runs a similarity search (temporal-filtered
// when opt.AsOf is set, plain otherwise), and — only if at least one hit
// survives — asks the LLM oracle for a
// grounded answer. Zero hits short-circuits to AbstentionAnswer with
// LLMMS == 0, per spec.md's "no-context, no-hallucination" rule.
func (s *Synthesizer) Query(ctx context.Context, question string, opt Options) (Answer, error) {
	start := time.Now()
	topK := opt.TopK
	if topK <= 0 {
		topK = 5
	}

	searchStart := time.Now()
	vecs, err := s.Embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return Answer{}, domain.Wrap(domain.EmbeddingOracleError, fmt.Errorf("embed query: %w", err))
	}
	if len(vecs) == 0 {
		return Answer{}, domain.Wrap(domain.EmbeddingOracleError, fmt.Errorf("embed query: no vector returned"))
	}
	results, err := s.Store.Search(ctx, databases.TemporalQuery{
		Vector:         vecs[0],
		TopK:           topK,
		AsOf:           opt.AsOf,
		MetadataEq:     opt.MetadataEq,
		ScoreThreshold: opt.ScoreThreshold,
	})
	if err != nil {
		return Answer{}, domain.Wrap(domain.StoreError, fmt.Errorf("search: %w", err))
	}
	searchMS := time.Since(searchStart).Milliseconds()
	s.observeHist("search_duration_ms", float64(searchMS), nil)

	if len(results) == 0 {
		s.incCounter("search_requests_total", map[string]string{"outcome": "abstained"})
		return Answer{
			Answer:   AbstentionAnswer,
			Sources:  nil,
			SearchMS: searchMS,
			LLMMS:    0,
			TotalMS:  time.Since(start).Milliseconds(),
		}, nil
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			RegulationID:  r.RegulationID,
			Version:       r.Version,
			Label:         r.Metadata["label"],
			Text:          r.Metadata["text"],
			Score:         r.Score,
			EffectiveDate: r.EffectiveDate,
			ExpiryDate:    r.ExpiryDate,
			Supersedes:    r.Supersedes,
			Metadata:      r.Metadata,
		}
	}

	llmStart := time.Now()
	prompt := buildPrompt(question, buildContext(hits))
	answer, err := s.Oracle.Generate(ctx, systemPrompt, prompt)
	llmMS := time.Since(llmStart).Milliseconds()
	s.observeHist("llm_duration_ms", float64(llmMS), nil)
	if err != nil {
		// §7 LLMOracleError: return the canned fallback with sources
		// attached rather than failing the request.
		s.incCounter("search_requests_total", map[string]string{"outcome": "llm_fallback"})
		return Answer{
			Answer:   LLMFailureAnswer,
			Sources:  hits,
			SearchMS: searchMS,
			LLMMS:    llmMS,
			TotalMS:  time.Since(start).Milliseconds(),
		}, nil
	}
	s.incCounter("search_requests_total", map[string]string{"outcome": "answered"})

	return Answer{
		Answer:   answer,
		Sources:  hits,
		SearchMS: searchMS,
		LLMMS:    llmMS,
		TotalMS:  time.Since(start).Milliseconds(),
	}, nil
}
