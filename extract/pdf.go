package extract

import (
	"bytes"
	"io"

	"github.com/ledongthuc/pdf"
)

// pdfExtractor extracts plain text from PDF payloads, falling back to a
// printable-byte scan when the document cannot be parsed.
type pdfExtractor struct{}

func (p *pdfExtractor) Name() string { return "pdf" }

func (p *pdfExtractor) Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
		if reader, err := r.GetPlainText(); err == nil {
			if out, err := io.ReadAll(reader); err == nil && len(out) > 0 {
				return string(out), nil
			}
		}
	}
	return string(printableText(data)), nil
}
