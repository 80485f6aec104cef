// Package databases holds the vector-store backend for the regulation
// corpus (C5): Qdrant collection lifecycle, idempotent chunk upsert, and
// temporal-filtered similarity search. The package name and the narrow,
// swappable-backend interface shape are kept from the teacher; the
// full-text-search, graph, chat, and playground backends it also defined
// are dropped since nothing in this system's design uses them.
package databases

import (
	"context"
	"time"
)

// Point is one vector-store record: a chunk's embedding plus the temporal
// and identity fields the composite filter in TemporalQuery needs. Dates are
// carried as *time.Time (nil means "unbounded") rather than as opaque
// string metadata, since the store must be able to range-filter on them.
type Point struct {
	ID           string // regulation_id + version + chunk index, the caller's stable identity
	Vector       []float32
	RegulationID string
	Status       string // "active" | "superseded"
	Version      string
	EffectiveDate *time.Time
	ExpiryDate    *time.Time
	// Supersedes is the version string of the regulation this point's
	// version replaced, empty for a regulation's first-ever version.
	Supersedes    string
	Metadata      map[string]string // doc_kind, category, urn, source, context, label, text
}

// VectorResult is a single similarity-search hit.
type VectorResult struct {
	ID           string
	Score        float64
	RegulationID string
	Status       string
	Version      string
	EffectiveDate *time.Time
	ExpiryDate    *time.Time
	Supersedes    string
	Metadata      map[string]string
}

// TemporalQuery composes the as-of filter spec.md §4.5 requires:
// status=active AND effective_date<=AsOf AND (expiry_date IS NULL OR
// expiry_date>=AsOf), narrowed further by an optional exact-match metadata
// filter (e.g. metadata.category). AsOf nil means plain semantic search:
// no temporal or status filtering at all, per spec.md §4.8's distinction
// between an as-of query and an unfiltered one.
type TemporalQuery struct {
	Vector         []float32
	TopK           int
	AsOf           *time.Time
	MetadataEq     map[string]string
	ScoreThreshold float64 // hits scoring below this are excluded; 0 disables
}

// Stats summarizes collection health for the /api/v1/stats endpoint.
type Stats struct {
	PointCount       uint64
	ActiveCount      uint64
	SupersededCount  uint64
	Dimension        int
	Distance         string
}

// VectorStore is the pluggable backend interface. Upsert and Delete take
// whole batches so a backend can apply them atomically (or at least
// report partial failure instead of silently dropping points).
type VectorStore interface {
	Upsert(ctx context.Context, points []Point) error
	Delete(ctx context.Context, ids []string) error
	MarkSuperseded(ctx context.Context, regulationID string, version string, expiryDate time.Time, supersededBy string) error
	Search(ctx context.Context, q TemporalQuery) ([]VectorResult, error)
	Stats(ctx context.Context) (Stats, error)
	// ActiveVersion returns the version string of regulationID's current
	// active point, if any, for the version manager to decide whether an
	// incoming ingest is a first version or a supersession.
	ActiveVersion(ctx context.Context, regulationID string) (version string, found bool, err error)
	Dimension() int
	Close() error
}
