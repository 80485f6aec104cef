// Package temporal derives effective/expiry dates and revocation status from
// free Portuguese legal text. It is a pure function of its input bytes: no
// I/O, no shared state, grounded on the ordered pattern-list design of the
// original Python TemporalExtractor, generalized per spec into an explicit
// priority-ordered resolver instead of first-match-wins.
package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"manifold/internal/domain"
)

// Result is the outcome of running the extractor over one text blob.
type Result struct {
	EffectiveDate *time.Time
	ExpiryDate    *time.Time
	IsRevoked     bool
	Amends        string // "{kind}-{number}", empty when no amendment cue matched

	// Warning is set when no textual cue and no publication date let the
	// extractor resolve an effective date at all, so the unit is stored with
	// EffectiveDate nil. Extract stays a pure function of its inputs: it
	// returns the warning for the caller (the PDF/LexML parsers) to log
	// rather than logging here itself.
	Warning *domain.Error
}

// Extractor runs the ordered pattern families described in spec.md §4.1.
// DefaultEffectiveDays is added to the publication date when no textual cue
// resolves an effective date; it defaults to 90 when zero.
type Extractor struct {
	DefaultEffectiveDays int
}

func New(defaultEffectiveDays int) *Extractor {
	if defaultEffectiveDays <= 0 {
		defaultEffectiveDays = 90
	}
	return &Extractor{DefaultEffectiveDays: defaultEffectiveDays}
}

var dateLiteralRe = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)

// Explicit effective-date cues: "entra em vigor em DATE", "vigência a partir
// de DATE", "produzirá efeitos a partir de DATE", "passa a vigorar em DATE".
// Each must have a captured date literal.
var explicitEffectiveRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)entra(?:rá)?\s+em\s+vigor\s+(?:em|na data de|a partir de)?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	regexp.MustCompile(`(?i)vigência\s+a\s+partir\s+de\s+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	regexp.MustCompile(`(?i)produzirá\s+efeitos?\s+(?:a\s+partir\s+de)?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	regexp.MustCompile(`(?i)passa\s+a\s+vigorar\s+(?:em|na data de)?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
}

// Publication-referent cue: "na data de sua publicação" / "após publicação".
// Carries no date of its own; resolves to the document's publication date.
var publicationReferentRe = regexp.MustCompile(`(?i)(?:após|da|na data de (?:sua)?)\s*(?:sua\s+)?publicaç(?:ão|ao)`)

// Revocation markers. Any match sets IsRevoked; a date literal within a
// 100-character window after the match becomes ExpiryDate.
var revocationRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)revoga(?:da)?\s+(?:a|o)\s+(lei|decreto|resolução|portaria)\s+n?º?\s*(\d+)`),
	regexp.MustCompile(`(?i)(?:fica|são)\s+revogado?s?`),
	regexp.MustCompile(`(?i)perde(?:rá)?\s+(?:sua\s+)?vigência`),
	regexp.MustCompile(`(?i)deixa(?:rá)?\s+de\s+vigorar`),
}

// Amendment markers: "altera/modifica/dá nova redação à Lei N".
var amendmentRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)altera\s+(?:a|o)\s+(lei|decreto|resolução)\s+n?º?\s*(\d+)`),
	regexp.MustCompile(`(?i)modifica\s+(?:a|o)\s+(lei|decreto|resolução)\s+n?º?\s*(\d+)`),
	regexp.MustCompile(`(?i)dá\s+nova\s+redação\s+(?:à|ao)\s+(lei|decreto|resolução)\s+n?º?\s*(\d+)`),
}

const revocationWindow = 100

// Extract runs the full pattern set over text. publicationDate may be nil
// when the document's publication date is unknown.
func (e *Extractor) Extract(text string, publicationDate *time.Time) Result {
	var res Result

	res.IsRevoked = matchesAny(revocationRes, text)
	if res.IsRevoked {
		res.ExpiryDate = e.extractRevocationDate(text)
	}

	res.EffectiveDate = e.resolveEffectiveDate(text, publicationDate)
	res.Amends = extractAmendment(text)
	if res.EffectiveDate == nil {
		res.Warning = domain.Wrap(domain.TemporalResolutionWarning,
			fmt.Errorf("no explicit date, publication-referent cue, or publication date to resolve an effective date"))
	}

	return res
}

// resolveEffectiveDate applies the priority order from spec.md §4.1:
// explicit date > publication-referent > fallback (publication date +
// DefaultEffectiveDays). The fallback only applies when publicationDate is known.
func (e *Extractor) resolveEffectiveDate(text string, publicationDate *time.Time) *time.Time {
	if d := firstExplicitDate(text); d != nil {
		return d
	}
	if publicationReferentRe.MatchString(text) {
		if publicationDate != nil {
			return publicationDate
		}
		return nil
	}
	if publicationDate != nil {
		fallback := publicationDate.AddDate(0, 0, e.DefaultEffectiveDays)
		return &fallback
	}
	return nil
}

func firstExplicitDate(text string) *time.Time {
	for _, re := range explicitEffectiveRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if d := ParseDayFirst(m[1]); d != nil {
			return d
		}
	}
	return nil
}

func (e *Extractor) extractRevocationDate(text string) *time.Time {
	for _, re := range revocationRes {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		end := loc[1]
		window := end + revocationWindow
		if window > len(text) {
			window = len(text)
		}
		if m := dateLiteralRe.FindString(text[end:window]); m != "" {
			if d := ParseDayFirst(m); d != nil {
				return d
			}
		}
	}
	return nil
}

func extractAmendment(text string) string {
	for _, re := range amendmentRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return toLowerASCII(m[1]) + "-" + m[2]
	}
	return ""
}

func matchesAny(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ParseDayFirst parses a DD/MM/YYYY or DD-MM-YYYY literal (2- or 4-digit
// years) day-first. Two-digit years are interpreted as 20YY when YY is not
// more than 20 years in the future of the current year's two-digit suffix,
// else 19YY. It never panics on malformed input; it returns nil instead of
// raising, matching the "never raise on unparseable literals" rule.
func ParseDayFirst(s string) *time.Time {
	m := dateLiteralRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	day, err1 := strconv.Atoi(m[1])
	month, err2 := strconv.Atoi(m[2])
	yearStr := m[3]
	year, err3 := strconv.Atoi(yearStr)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	if len(yearStr) == 2 {
		year = expandTwoDigitYear(year)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject dates that normalized away (e.g. day 31 of a 30-day month),
	// since time.Date silently rolls them over.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return nil
	}
	return &t
}

func expandTwoDigitYear(yy int) int {
	currentSuffix := time.Now().Year() % 100
	if yy <= currentSuffix+20 {
		return 2000 + yy
	}
	return 1900 + yy
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
