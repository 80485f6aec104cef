// Package domain holds the core types shared by every parser, the chunker,
// the vector store adapter, and the retrieval pipeline: Document,
// RegulatoryUnit, and Chunk, plus the invariants that bind them.
package domain

import "time"

// DocumentKind enumerates the kinds of regulatory instrument the corpus
// contains. Unrecognized kinds are accepted as KindOther rather than
// rejected, since the corpus is heterogeneous and growing.
type DocumentKind string

const (
	KindLei       DocumentKind = "lei"
	KindDecreto   DocumentKind = "decreto"
	KindResolucao DocumentKind = "resolução"
	KindPortaria  DocumentKind = "portaria"
	KindICA       DocumentKind = "ica"
	KindOther     DocumentKind = "other"
)

// Document is the top-level source record: one LexML XML file or one ICA PDF.
type Document struct {
	// ID is a stable URN-like identifier: authority, kind, publication date, number.
	ID string
	Title           string
	Kind            DocumentKind
	Number          string
	PublicationDate *time.Time
	SourceURI       string
}

// RegulatoryUnit is one node in a document's hierarchy: an Artigo parsed
// from LexML, or a numbered decimal-path section parsed from a PDF.
// Exactly one of the two shapes applies to a given unit; both travel
// through the same struct because downstream stages (chunker, temporal
// extractor) treat them identically.
type RegulatoryUnit struct {
	// RegulationID is unique within the corpus, e.g. "8666-art5" or "ICA 100-12-sec-2.1".
	RegulationID string
	// Context is the ordered chain of ancestor labels, outermost first,
	// e.g. ["TÍTULO I", "CAPÍTULO II", "Art. 5º"] or ["2", "2.1 FINALIDADE"].
	// Non-empty and strictly descending in hierarchical order.
	Context []string
	// Label is the unit's own leaf label, e.g. "Art. 3º" or "2.1.4".
	Label string
	// Text is the canonical text of the unit, prefixed with Label so it
	// reads standalone.
	Text string
	Doc  *Document

	EffectiveDate *time.Time
	ExpiryDate    *time.Time
	IsRevoked     bool
	Amends        string

	// Version is the unit's version tag. LexML units carry the document's
	// publication date; PDF units carry the filename-encoded effective date,
	// else the text-derived effective date, else a content hash of the section.
	Version string

	Metadata map[string]string
}
