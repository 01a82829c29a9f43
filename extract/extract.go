// Package extract converts ingest payloads (PDF, DOCX, spreadsheets, plain
// text) into plain text ready for chunking.
package extract

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extractor converts a raw file payload into plain text.
type Extractor interface {
	Extract(data []byte) (string, error)
	Name() string
}

// Factory resolves an extractor from a file path extension.
type Factory struct {
	byExtension map[string]Extractor
	fallback    Extractor
}

// NewFactory creates a factory with the built-in extractors registered.
func NewFactory() *Factory {
	f := &Factory{
		byExtension: make(map[string]Extractor),
		fallback:    &textExtractor{},
	}
	f.Register(".pdf", &pdfExtractor{})
	f.Register(".docx", &docxExtractor{})
	f.Register(".xlsx", &excelExtractor{})
	f.Register(".xlsm", &excelExtractor{})
	f.Register(".xls", &xlsExtractor{})
	return f
}

// Register binds an extractor to a file extension.
func (f *Factory) Register(ext string, extractor Extractor) {
	f.byExtension[strings.ToLower(ext)] = extractor
}

// Extractor returns the extractor for the given path, falling back to plain
// text for unknown extensions.
func (f *Factory) Extractor(path string) Extractor {
	ext := strings.ToLower(filepath.Ext(path))
	if extractor, ok := f.byExtension[ext]; ok {
		return extractor
	}
	return f.fallback
}

type textExtractor struct{}

func (t *textExtractor) Name() string { return "text" }

func (t *textExtractor) Extract(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	return string(printableText(data)), nil
}

// printableText strips non-printable bytes, keeping newlines and tabs, so a
// binary payload still yields something searchable.
func printableText(in []byte) []byte {
	var out bytes.Buffer
	for len(in) > 0 {
		r, size := utf8.DecodeRune(in)
		if r == utf8.RuneError && size == 1 {
			b := in[0]
			if b == '\n' || b == '\r' || b == '\t' || (b >= 32 && b < 127) {
				out.WriteByte(b)
			}
			in = in[1:]
			continue
		}
		in = in[size:]
		if printableRune(r) {
			out.WriteRune(r)
		}
	}
	return out.Bytes()
}

func printableRune(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return true
	}
	return r >= 32 && r <= 0x10FFFF && r != 127
}
