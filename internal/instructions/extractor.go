// Package instructions extracts labeled values from page-oriented
// instruction documents (rendered PDFs).
package instructions

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ExtractionError reports an unparsable instruction document. A readable
// document yielding zero recognized labels is not an error.
type ExtractionError struct {
	Err error
}

// Error implements the error interface
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("instruction extraction failed: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// DefaultLabels is the label set recognized when none is configured.
var DefaultLabels = []string{
	"Client",
	"Project",
	"Engineer",
	"Assignment",
	"Protocol Number",
	"Municipality",
	"Plot Number",
	"Address",
	"Date",
}

// Extractor scans instruction documents for "Label: value" lines.
type Extractor struct {
	labels      []string
	maxTextSize int
}

// NewExtractor creates an extractor for the given label set. An empty set
// falls back to DefaultLabels.
func NewExtractor(labels []string) *Extractor {
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	return &Extractor{
		labels:      labels,
		maxTextSize: 10 * 1024 * 1024, // 10MB text limit
	}
}

// Extract parses the document, pulls visible text per page, and scans for
// recognized labels. The first match per label wins; later duplicates are
// ignored. It is a pure transform over the input buffer.
func (e *Extractor) Extract(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, &ExtractionError{Err: fmt.Errorf("document is empty")}
	}

	// Container-level validation first, so damage surfaces as a parse
	// failure rather than silently empty text.
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, &ExtractionError{Err: fmt.Errorf("reading document context: %w", err)}
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, &ExtractionError{Err: fmt.Errorf("resolving page count: %w", err)}
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{Err: fmt.Errorf("opening document: %w", err)}
	}

	pages := e.extractPageText(reader)
	return e.ScanPages(pages), nil
}

// extractPageText pulls plain text per page, skipping pages that fail.
func (e *Extractor) extractPageText(reader *pdf.Reader) []string {
	var pages []string
	total := 0
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		content := e.pageText(reader, pageNum)
		if content == "" {
			continue
		}
		if total+len(content) > e.maxTextSize {
			if head := truncateToRuneBoundary(content, e.maxTextSize-total); head != "" {
				pages = append(pages, head)
			}
			break
		}
		pages = append(pages, content)
		total += len(content)
	}
	return pages
}

// truncateToRuneBoundary cuts s to at most limit bytes without splitting a
// multi-byte rune.
func truncateToRuneBoundary(s string, limit int) string {
	if limit >= len(s) {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// pageText extracts one page's text, recovering from parser panics so a
// damaged page never takes down the whole extraction.
func (e *Extractor) pageText(reader *pdf.Reader, pageNum int) (content string) {
	defer func() {
		if recover() != nil {
			content = ""
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

// ScanPages applies the label scan to already-extracted page text. Exposed
// separately so callers with text from other sources reuse the same policy.
func (e *Extractor) ScanPages(pages []string) map[string]string {
	result := make(map[string]string)
	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			label, value, ok := e.matchLine(line)
			if !ok {
				continue
			}
			// First occurrence wins: later duplicate labels are ignored,
			// not merged or overwritten.
			if _, exists := result[label]; exists {
				continue
			}
			result[label] = value
		}
	}
	return result
}

// matchLine tests one line against the configured labels, returning the
// canonical label spelling and the trimmed value.
func (e *Extractor) matchLine(line string) (label, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	rawLabel := strings.TrimSpace(line[:idx])
	rawValue := strings.TrimSpace(line[idx+1:])
	if rawValue == "" {
		return "", "", false
	}
	for _, candidate := range e.labels {
		if strings.EqualFold(rawLabel, candidate) {
			return candidate, rawValue, true
		}
	}
	return "", "", false
}
