package pdf

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// fileSource adapts ledongthuc/pdf's *pdf.Reader to the PageSource
// interface, preferring the embedded text layer on every page.
type fileSource struct {
	reader *pdf.Reader
}

// Open opens a PDF file for text acquisition. The caller is responsible for
// closing the returned file handle via the returned close function.
func Open(path string) (PageSource, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat pdf %s: %w", path, err)
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("read pdf %s: %w", path, err)
	}
	return &fileSource{reader: r}, f.Close, nil
}

func (s *fileSource) PageCount() int { return s.reader.NumPage() }

func (s *fileSource) PageText(i int) (string, error) {
	// ledongthuc/pdf pages are 1-indexed.
	page := s.reader.Page(i + 1)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract text page %d: %w", i, err)
	}
	return text, nil
}
