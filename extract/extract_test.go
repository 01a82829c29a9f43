package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestFactory_Resolution(t *testing.T) {
	factory := NewFactory()
	testCases := []struct {
		path     string
		expected string
	}{
		{"report.pdf", "pdf"},
		{"notes.DOCX", "docx"},
		{"data.xlsx", "excel"},
		{"legacy.xls", "xls"},
		{"readme.txt", "text"},
		{"no-extension", "text"},
	}
	for _, tc := range testCases {
		if got := factory.Extractor(tc.path).Name(); got != tc.expected {
			t.Errorf("%s: expected %s, got %s", tc.path, tc.expected, got)
		}
	}
}

func TestTextExtractor(t *testing.T) {
	e := &textExtractor{}
	text, err := e.Extract([]byte("plain text\nwith lines"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "plain text\nwith lines" {
		t.Errorf("unexpected text %q", text)
	}
	binary, err := e.Extract([]byte{0x00, 'o', 'k', 0x01, '\n'})
	if err != nil {
		t.Fatal(err)
	}
	if binary != "ok\n" {
		t.Errorf("expected printable bytes only, got %q", binary)
	}
}

func TestDOCXExtractor(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	document := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t> paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	if _, err := w.Write([]byte(document)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	e := &docxExtractor{}
	text, err := e.Extract(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "First paragraph.") || !strings.Contains(text, "Second paragraph.") {
		t.Errorf("unexpected text %q", text)
	}
	if !strings.Contains(text, "First paragraph.\n") {
		t.Errorf("paragraphs should be newline separated, got %q", text)
	}

	if _, err := e.Extract([]byte("not a zip")); err == nil {
		t.Error("expected error for invalid archive")
	}
}

func TestExcelExtractor(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]any{"name", "city"})
	_ = f.SetSheetRow(sheet, "A2", &[]any{"alpha", "Berlin"})
	_ = f.SetSheetRow(sheet, "A3", &[]any{"beta", "Paris"})
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	e := &excelExtractor{}
	text, err := e.Extract(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Header: name\tcity") {
		t.Errorf("expected header line, got %q", text)
	}
	if !strings.Contains(text, "Row 2: alpha\tBerlin") || !strings.Contains(text, "Row 3: beta\tParis") {
		t.Errorf("expected data rows, got %q", text)
	}
}
