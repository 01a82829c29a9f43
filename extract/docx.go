package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxExtractor pulls text out of the word/document.xml entry of a DOCX
// archive with a streaming XML decoder.
type docxExtractor struct{}

func (d *docxExtractor) Name() string { return "docx" }

func (d *docxExtractor) Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var docFile *zip.File
	for _, f := range r.File {
		if strings.EqualFold(f.Name, "word/document.xml") {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("docx has no word/document.xml")
	}
	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()
	return docxText(rc), nil
}

func docxText(r io.Reader) string {
	dec := xml.NewDecoder(r)
	var buf bytes.Buffer
	var lastWasNewline bool
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t", "instrText":
				var text string
				if err := dec.DecodeElement(&text, &t); err == nil {
					buf.WriteString(text)
					lastWasNewline = false
				}
			case "tab":
				buf.WriteByte('\t')
				lastWasNewline = false
			case "br", "cr":
				buf.WriteByte('\n')
				lastWasNewline = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "tr":
				if !lastWasNewline {
					buf.WriteByte('\n')
					lastWasNewline = true
				}
			case "tc":
				if !lastWasNewline {
					buf.WriteByte('\t')
					lastWasNewline = false
				}
			}
		}
	}
	return buf.String()
}
