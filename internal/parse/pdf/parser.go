// Package pdf converts ICA PDFs into hierarchical numbered-section
// RegulatoryUnits. The design is strictly two-phase, per spec.md §9's
// "Ad-hoc file-walk + regex parse becomes a two-phase design" design note:
// a textual acquisition phase (native text, blank-page skip, OCR callback)
// is implemented independently of, and tested independently from, the
// structural header-scan phase that runs over the concatenated text.
package pdf

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"manifold/internal/domain"
	"manifold/internal/temporal"
)

// PageSource yields raw page text, given an opened document. It is the
// injection point for a real PDF text-layer reader; tests supply a fake.
type PageSource interface {
	PageCount() int
	PageText(i int) (string, error)
}

// OCR is the external oracle used when a page's text layer is empty or the
// page is visually blank. The parser never implements OCR itself; it only
// calls this callback with the zero-based index of the page to recognize.
type OCR func(pageIndex int) (string, error)

const blankPageMinChars = 1 // pages shorter than this are considered textless

// AcquireText runs phase one: walks every page, preferring the embedded
// text layer, falling back to ocr when a page is empty and ocr is non-nil.
// Page boundaries are preserved as sentinel markers so the structural phase
// (and debugging) can still see where pages began.
func AcquireText(src PageSource, ocr OCR) (string, error) {
	var pages []string
	for i := 0; i < src.PageCount(); i++ {
		text, err := src.PageText(i)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		if len(strings.TrimSpace(text)) < blankPageMinChars && ocr != nil {
			if ocrText, err := ocr(i); err == nil {
				text = ocrText
			}
		}
		pages = append(pages, fmt.Sprintf("\x0c--- page %d ---\x0c\n%s", i, text))
	}
	return strings.Join(pages, "\n"), nil
}

// sectionHeaderRe matches a numbered decimal-path heading on its own line:
// "2.1.4 FINALIDADE" or a bare leaf like "1.5.5" with no title.
// TITLE must be uppercase (Latin-1 accented letters allowed); lines whose
// trailing text is not all-uppercase are treated as untitled leaves.
var sectionHeaderRe = regexp.MustCompile(`(?m)^[ \t]*(\d+(?:\.\d+)*)(?:[ \t]+(.*\S))?[ \t]*$`)

var upperWordRe = regexp.MustCompile(`^[A-ZÀ-Ý0-9À-Ý .,ºª/()-]+$`)

type header struct {
	number string
	title  string
	start  int // byte offset of the first byte after the header line
	lineStart int
}

// DropPolicy decides which leading pages/text to discard as front matter
// (cover pages, blank verso, table of contents) before structural parsing.
// Document-kind-specific per spec.md §4.3; ICA has a concrete policy below.
type DropPolicy func(text string) string

// ICADropPolicy drops the first two duplicated cover pages, their verso
// pages, and the page identified as the table of contents (detected by
// density of dotted page-number runs, e.g. "Finalidade .......... 3").
func ICADropPolicy(text string) string {
	pages := strings.Split(text, "\x0c--- page ")
	if len(pages) <= 1 {
		return text
	}
	kept := pages[:1] // pages[0] is empty prefix before first sentinel
	dropped := 0
	for _, p := range pages[1:] {
		if dropped < 4 && dropped >= 0 { // two cover pages + two verso pages
			dropped++
			continue
		}
		if isTOCPage(p) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "\x0c--- page ")
}

var tocDotsRe = regexp.MustCompile(`\.{4,}\s*\d+`)

func isTOCPage(pageBody string) bool {
	matches := tocDotsRe.FindAllString(pageBody, -1)
	lines := strings.Count(pageBody, "\n") + 1
	return lines > 0 && len(matches) >= 3 && float64(len(matches))/float64(lines) > 0.2
}

// FilenameMeta is the contract parsed from {NUMBER}_{ddMMyyyy|∅}_{ddMMyyyy|∅}_{CATEGORY}.pdf.
type FilenameMeta struct {
	Number        string
	EffectiveDate *time.Time
	ExpiryDate    *time.Time
	Category      string
}

var filenameRe = regexp.MustCompile(`^([^_]+)_(\d{8}|)_(\d{8}|)_(.+)$`)

// ParseFilename extracts the filename-encoded metadata contract. Missing
// date fields are permitted and return nil for that field.
func ParseFilename(path string) FilenameMeta {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := filenameRe.FindStringSubmatch(base)
	if m == nil {
		return FilenameMeta{Number: base}
	}
	meta := FilenameMeta{Number: m[1], Category: m[4]}
	if d := parseDDMMYYYY(m[2]); d != nil {
		meta.EffectiveDate = d
	}
	if d := parseDDMMYYYY(m[3]); d != nil {
		meta.ExpiryDate = d
	}
	return meta
}

func parseDDMMYYYY(s string) *time.Time {
	if len(s) != 8 {
		return nil
	}
	day, err1 := strconv.Atoi(s[0:2])
	month, err2 := strconv.Atoi(s[2:4])
	year, err3 := strconv.Atoi(s[4:8])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return nil
	}
	return &t
}

// Parse runs the full PDF pipeline: acquire text, drop front matter,
// detect section headers, reconstruct ancestor paths by longest-prefix
// match, apply filename-encoded overrides, and run the temporal extractor
// over each section's body.
func Parse(path string, src PageSource, ocr OCR, drop DropPolicy, defaultEffectiveDays int) (*domain.Document, []domain.RegulatoryUnit, error) {
	text, err := AcquireText(src, ocr)
	if err != nil {
		return nil, nil, err
	}
	if drop != nil {
		text = drop(text)
	}

	fnMeta := ParseFilename(path)
	doc := &domain.Document{
		ID:     fnMeta.Number,
		Kind:   domain.KindICA,
		Number: fnMeta.Number,
	}

	headers := detectHeaders(text)
	extractor := temporal.New(defaultEffectiveDays)

	if len(headers) == 0 {
		// Document with zero matched section headers: one whole-document section.
		body := strings.TrimSpace(text)
		result := extractor.Extract(body, nil)
		logTemporalWarning(result, doc.Number, "1")
		u := buildUnit(doc, "1", "", body, nil, result, fnMeta)
		return doc, []domain.RegulatoryUnit{u}, nil
	}

	units := make([]domain.RegulatoryUnit, 0, len(headers))
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1].lineStart
		}
		body := strings.TrimSpace(text[h.start:end])
		result := extractor.Extract(body, nil)
		logTemporalWarning(result, doc.Number, h.number)
		ctx := ancestorPath(headers, i)
		u := buildUnit(doc, h.number, h.title, body, ctx, result, fnMeta)
		units = append(units, u)
	}
	return doc, units, nil
}

func logTemporalWarning(result temporal.Result, docNumber, sectionNumber string) {
	if result.Warning == nil {
		return
	}
	log.Warn().Err(result.Warning).Str("doc_number", docNumber).Str("section", sectionNumber).Msg("could not resolve effective date")
}

func buildUnit(doc *domain.Document, number, title, body string, ctx []string, result temporal.Result, fnMeta FilenameMeta) domain.RegulatoryUnit {
	label := number
	if title != "" {
		label = number + " " + title
	}
	if ctx == nil {
		ctx = []string{label}
	} else {
		ctx = append(append([]string{}, ctx...), label)
	}
	fullText := label + "\n\n" + body

	effective := result.EffectiveDate
	expiry := result.ExpiryDate
	// Filename-encoded metadata takes priority over text-extracted dates.
	if fnMeta.EffectiveDate != nil {
		effective = fnMeta.EffectiveDate
	}
	if fnMeta.ExpiryDate != nil {
		expiry = fnMeta.ExpiryDate
	}

	regulationID := fmt.Sprintf("%s-sec-%s", doc.Number, number)

	meta := map[string]string{
		domain.MetaSource:   "pdf",
		domain.MetaDocKind:  string(domain.KindICA),
		domain.MetaCategory: fnMeta.Category,
	}

	return domain.RegulatoryUnit{
		RegulationID:  regulationID,
		Context:       ctx,
		Label:         label,
		Text:          fullText,
		Doc:           doc,
		EffectiveDate: effective,
		ExpiryDate:    expiry,
		IsRevoked:     result.IsRevoked,
		Amends:        result.Amends,
		Version:       sectionVersion(fnMeta, effective, fullText),
		Metadata:      meta,
	}
}

// sectionVersion derives the version tag a PDF-sourced unit carries, the
// same role lexml/parser.go fills from meta.PublicationDate: the
// filename-encoded effective date (the clearest revision signal the
// filename contract carries) first, then the text-derived effective date,
// and only when neither is known, a content hash of the section's own text
// so that re-ingesting byte-identical sections is still idempotent
// (unchanged hash, no supersession) while a revised section's changed body
// produces a new version and triggers one.
func sectionVersion(fnMeta FilenameMeta, effective *time.Time, body string) string {
	if fnMeta.EffectiveDate != nil {
		return fnMeta.EffectiveDate.Format("2006-01-02")
	}
	if effective != nil {
		return effective.Format("2006-01-02")
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(body))
	return fmt.Sprintf("content-%x", h.Sum64())
}

// detectHeaders scans the concatenated text for numbered decimal-path
// headings. A title that is not all-uppercase is recorded as an untitled
// leaf (common for leaves like "1.5.5").
func detectHeaders(text string) []header {
	var out []header
	matches := sectionHeaderRe.FindAllStringSubmatchIndex(text, -1)
	for _, m := range matches {
		number := text[m[2]:m[3]]
		title := ""
		if m[4] >= 0 {
			candidate := strings.TrimSpace(text[m[4]:m[5]])
			if candidate != "" && upperWordRe.MatchString(candidate) {
				title = candidate
			}
		}
		out = append(out, header{
			number:    number,
			title:     title,
			start:     m[1],
			lineStart: m[0],
		})
	}
	return out
}

// ancestorPath reconstructs the context chain for headers[i] by longest-
// prefix matching on the dotted number: the parents of "2.3.1" are "2.3"
// and "2".
func ancestorPath(headers []header, i int) []string {
	number := headers[i].number
	parts := strings.Split(number, ".")
	var prefixes []string
	for n := 1; n < len(parts); n++ {
		prefixes = append(prefixes, strings.Join(parts[:n], "."))
	}
	sort.Slice(prefixes, func(a, b int) bool { return len(prefixes[a]) < len(prefixes[b]) })

	byNumber := make(map[string]header, len(headers))
	for _, h := range headers {
		if _, exists := byNumber[h.number]; !exists {
			byNumber[h.number] = h
		}
	}

	var ctx []string
	for _, p := range prefixes {
		if h, ok := byNumber[p]; ok {
			label := h.number
			if h.title != "" {
				label = h.number + " " + h.title
			}
			ctx = append(ctx, label)
		}
	}
	return ctx
}
