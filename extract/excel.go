package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// excelExtractor renders XLSX workbooks as tab-separated text, one sheet
// block at a time with the header row up front.
type excelExtractor struct{}

func (e *excelExtractor) Name() string { return "excel" }

func (e *excelExtractor) Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		writeSheet(&out, sheet, rows)
	}
	return out.String(), nil
}

func writeSheet(out *strings.Builder, sheet string, rows [][]string) {
	if out.Len() > 0 {
		out.WriteString("\n\n")
	}
	out.WriteString("Sheet: ")
	out.WriteString(sheet)
	out.WriteByte('\n')
	out.WriteString("Header: ")
	out.WriteString(strings.Join(rows[0], "\t"))
	out.WriteByte('\n')
	for i := 1; i < len(rows); i++ {
		out.WriteString("Row ")
		out.WriteString(strconv.Itoa(i + 1))
		out.WriteString(": ")
		out.WriteString(strings.Join(rows[i], "\t"))
		out.WriteByte('\n')
	}
}
