package parser

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// parseExcel reads the first sheet of an .xlsx/.xls workbook. The first row
// of the sheet is the header, matching the CSV strategy.
func parseExcel(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return rows, nil
}
