package parser

import (
	"bytes"
	"encoding/csv"
	"io"
)

// parseCSV reads comma-delimited input. Lazy quotes and variable field counts
// are tolerated because real-world exports rarely follow RFC 4180 exactly.
func parseCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
