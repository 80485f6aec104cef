// Package chunker splits a RegulatoryUnit's text into Chunks under a token
// budget while preserving legal-unit boundaries. Token count is estimated
// with the same word-plus-punctuation heuristic internal/util uses for LLM
// usage estimates elsewhere in the system, since the embedding oracle's own
// tokenizer is not assumed available here.
package chunker

import (
	"strings"

	"manifold/internal/util"
)

// Chunk is one packed slice of a unit's text.
type Chunk struct {
	Index int
	Text  string
}

// Options mirrors the MAX_TOKENS/OVERLAP configuration knobs named in
// spec.md §6.
type Options struct {
	MaxTokens int
	Overlap   int
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return 512
	}
	return o.MaxTokens
}

func (o Options) overlap() int {
	if o.Overlap < 0 {
		return 0
	}
	return o.Overlap
}

// Chunk packs text into one or more Chunks under opt.MaxTokens.
//
//   - If the whole text fits, it is emitted as a single chunk.
//   - Otherwise paragraphs (blank-line separated) are greedily packed;
//     each new chunk after the first is seeded with an Overlap-token
//     window verbatim copied from the tail of the previous chunk.
//   - A paragraph that alone exceeds MaxTokens is split on sentence
//     boundaries with the same packing rule.
//   - A single sentence that still exceeds MaxTokens is emitted as-is in
//     its own chunk, never truncated — legal citations must not be cut.
func Chunk(text string, opt Options) []Chunk {
	max := opt.maxTokens()
	if countTokens(text) <= max {
		return []Chunk{{Index: 0, Text: text}}
	}

	paragraphs := splitParagraphs(text)
	units := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if countTokens(p) > max {
			units = append(units, splitSentences(p)...)
		} else {
			units = append(units, p)
		}
	}

	return pack(units, max, opt.overlap())
}

// pack greedily fills chunks with units (paragraphs or sentences), seeding
// every chunk after the first with the token-counted overlap window from
// the tail of the previous chunk.
func pack(units []string, max, overlap int) []Chunk {
	var out []Chunk
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		out = append(out, Chunk{Index: len(out), Text: strings.Join(current, "\n\n")})
	}

	for _, u := range units {
		uTokens := countTokens(u)
		if currentTokens > 0 && currentTokens+uTokens > max {
			flush()
			overlapText := tailTokens(strings.Join(current, "\n\n"), overlap)
			current = nil
			currentTokens = 0
			if overlapText != "" {
				current = append(current, overlapText)
				currentTokens = countTokens(overlapText)
			}
		}
		current = append(current, u)
		currentTokens += uTokens
	}
	flush()
	return out
}

func countTokens(s string) int {
	return util.CountTokens(s)
}

// tailTokens returns the last n whitespace-delimited tokens of s, verbatim.
func tailTokens(s string, n int) string {
	if n <= 0 {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) <= n {
		return s
	}
	return strings.Join(fields[len(fields)-n:], " ")
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// splitSentences splits on '.', '!', '?', or a newline followed by an
// uppercase letter — the same boundary rule as the original document's
// sentence-packing fallback.
func splitSentences(p string) []string {
	var out []string
	start := 0
	runes := []rune(p)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		isTerminator := r == '.' || r == '!' || r == '?'
		isNewlineUpper := r == '\n' && i+1 < len(runes) && isUpper(runes[i+1])
		if isTerminator || isNewlineUpper {
			end := i + 1
			sentence := strings.TrimSpace(string(runes[start:end]))
			if sentence != "" {
				out = append(out, sentence)
			}
			start = end
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	if len(out) == 0 {
		return []string{p}
	}
	return out
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
