package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"
)

// xlsExtractor renders legacy XLS workbooks the same way the XLSX extractor
// does.
type xlsExtractor struct{}

func (x *xlsExtractor) Name() string { return "xls" }

func (x *xlsExtractor) Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	var out strings.Builder
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		sheetRows := sheet.GetRows()
		if len(sheetRows) == 0 {
			continue
		}
		rows := make([][]string, 0, len(sheetRows))
		for _, r := range sheetRows {
			rows = append(rows, cellValues(r.GetCols()))
		}
		writeSheet(&out, sheet.GetName(), rows)
	}
	return out.String(), nil
}

func cellValues(cols []structure.CellData) []string {
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		val := col.GetString()
		if val == "" {
			if num := col.GetFloat64(); num != 0 {
				val = strconv.FormatFloat(num, 'f', -1, 64)
			} else if in := col.GetInt64(); in != 0 {
				val = strconv.FormatInt(in, 10)
			}
		}
		out = append(out, val)
	}
	return out
}
