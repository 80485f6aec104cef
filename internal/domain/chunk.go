package domain

// ChunkStatus tracks a chunk's position in the supersession lifecycle.
// A chunk is never deleted; the Version Manager flips active -> superseded.
type ChunkStatus string

const (
	StatusActive     ChunkStatus = "active"
	StatusSuperseded ChunkStatus = "superseded"
)

// Chunk is the atomic unit stored in the vector index and returned by
// retrieval. It is derived from exactly one RegulatoryUnit, possibly split
// across several chunks by the Chunker.
type Chunk struct {
	// ID is a deterministic hash of document_id ⨁ unit_path ⨁ chunk_index.
	// Re-ingesting the same input bytes must reproduce the same ID.
	ID string

	// RegulationID is the unit's RegulationID, suffixed "-chunk-{i}" when the
	// unit was split into more than one chunk.
	RegulationID string

	// Text is the full authoritative text of the chunk, prefixed with the
	// human-readable unit label (e.g. "Art. 3º" or "2.1.4").
	Text string

	// Context is the full chain of structural ancestors, copied from the
	// owning RegulatoryUnit.
	Context []string

	EffectiveDate *string // ISO YYYY-MM-DD, or nil if unresolved
	ExpiryDate    *string

	Status ChunkStatus

	// Version is the chunk's version tag: an explicit version when known,
	// otherwise the document's publication date.
	Version string

	// Supersedes/SupersededBy hold the partner's Version string, not an
	// object reference — traversal happens by payload lookup against the
	// store, never by pointer.
	Supersedes    string
	SupersededBy  string

	Embedding []float32

	// Metadata is the open key/value bag; known keys (doc kind, category,
	// original URN, source) are promoted into it as plain strings so the
	// vector store can index them.
	Metadata map[string]string
}

// DocKind/Category/URN/Source are well-known Metadata keys promoted to
// indexed payload fields by the vector store adapter.
const (
	MetaDocKind  = "doc_kind"
	MetaCategory = "category"
	MetaURN      = "urn"
	MetaSource   = "source"
)
