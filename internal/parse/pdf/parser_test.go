package pdf

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	pages []string
}

func (f *fakeSource) PageCount() int { return len(f.pages) }
func (f *fakeSource) PageText(i int) (string, error) {
	return f.pages[i], nil
}

func TestAcquireText_PrefersEmbeddedLayer(t *testing.T) {
	src := &fakeSource{pages: []string{"page one text", "page two text"}}
	text, err := AcquireText(src, nil)
	require.NoError(t, err)
	require.Contains(t, text, "page one text")
	require.Contains(t, text, "page two text")
}

func TestAcquireText_FallsBackToOCROnBlankPage(t *testing.T) {
	src := &fakeSource{pages: []string{"", "real text"}}
	called := false
	ocr := func(i int) (string, error) {
		called = true
		return "ocr recovered text", nil
	}
	text, err := AcquireText(src, ocr)
	require.NoError(t, err)
	require.True(t, called)
	require.Contains(t, text, "ocr recovered text")
}

func TestDetectHeaders_LongestPrefixAncestors(t *testing.T) {
	text := "2 DISPOSIÇÕES GERAIS\nbody2\n2.1 FINALIDADE\nbody21\n2.1.4\nleaf body\n"
	headers := detectHeaders(text)
	require.Len(t, headers, 3)

	ctx := ancestorPath(headers, 2) // "2.1.4"
	require.Equal(t, []string{"2 DISPOSIÇÕES GERAIS", "2.1 FINALIDADE"}, ctx)
}

func TestDetectHeaders_UntitledLeafRecordsEmptyTitle(t *testing.T) {
	headers := detectHeaders("1.5.5\nsome body text\n")
	require.Len(t, headers, 1)
	require.Equal(t, "", headers[0].title)
}

func TestParse_NoHeadersYieldsWholeDocumentSection(t *testing.T) {
	src := &fakeSource{pages: []string{"Texto corrido sem cabeçalhos numerados."}}
	text, err := AcquireText(src, nil)
	require.NoError(t, err)
	doc, units, err := Parse("ICA-100-12.pdf", &fakeSourceFromText{text: text}, nil, nil, 90)
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Equal(t, "ICA-100-12-sec-1", units[0].RegulationID)
	_ = doc
}

// fakeSourceFromText lets the no-header test feed AcquireText's output back
// through Parse without a second real PageSource implementation.
type fakeSourceFromText struct{ text string }

func (f *fakeSourceFromText) PageCount() int { return 1 }
func (f *fakeSourceFromText) PageText(i int) (string, error) { return f.text, nil }

func TestParseFilename_FullContract(t *testing.T) {
	meta := ParseFilename("100-12_01012020_31122025_GERAL.pdf")
	require.Equal(t, "100-12", meta.Number)
	require.Equal(t, "GERAL", meta.Category)
	require.NotNil(t, meta.EffectiveDate)
	require.Equal(t, "2020-01-01", meta.EffectiveDate.Format("2006-01-02"))
	require.NotNil(t, meta.ExpiryDate)
}

func TestParseFilename_MissingDatesPermitted(t *testing.T) {
	meta := ParseFilename("100-12___GERAL.pdf")
	require.Equal(t, "100-12", meta.Number)
	require.Nil(t, meta.EffectiveDate)
}

func TestParse_VersionFromFilenameEffectiveDate(t *testing.T) {
	src := &fakeSourceFromText{text: "2.1 FINALIDADE\nbody text"}
	_, units, err := Parse("100-12_01012020__GERAL.pdf", src, nil, nil, 90)
	require.NoError(t, err)
	require.NotEmpty(t, units)
	require.Equal(t, "2020-01-01", units[0].Version)
}

func TestParse_VersionFallsBackToContentHashAndIsIdempotent(t *testing.T) {
	src1 := &fakeSourceFromText{text: "2.1 FINALIDADE\nbody text"}
	_, units1, err := Parse("100-12___GERAL.pdf", src1, nil, nil, 90)
	require.NoError(t, err)
	require.NotEmpty(t, units1[0].Version)

	src2 := &fakeSourceFromText{text: "2.1 FINALIDADE\nbody text"}
	_, units2, err := Parse("100-12___GERAL.pdf", src2, nil, nil, 90)
	require.NoError(t, err)
	require.Equal(t, units1[0].Version, units2[0].Version)

	src3 := &fakeSourceFromText{text: "2.1 FINALIDADE\nrevised body text"}
	_, units3, err := Parse("100-12___GERAL.pdf", src3, nil, nil, 90)
	require.NoError(t, err)
	require.NotEqual(t, units1[0].Version, units3[0].Version)
}

func TestICADropPolicy_DropsCoverAndTOC(t *testing.T) {
	text := fmt.Sprintf(
		"\x0c--- page %s ---\x0c\ncover\n\x0c--- page %s ---\x0c\ncover verso\n"+
			"\x0c--- page %s ---\x0c\ncover2\n\x0c--- page %s ---\x0c\ncover2 verso\n"+
			"\x0c--- page %s ---\x0c\nFinalidade .......... 3\nEscopo .......... 4\nReferências .......... 5\n"+
			"\x0c--- page %s ---\x0c\n1 DISPOSIÇÕES\nreal content\n",
		"0", "1", "2", "3", "4", "5")
	out := ICADropPolicy(text)
	require.NotContains(t, out, "cover")
	require.NotContains(t, out, "Finalidade")
	require.Contains(t, out, "real content")
}
