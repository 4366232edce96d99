// Package parser converts uploaded files (CSV, Excel, PDF) into ordered raw
// records. It does format detection and row extraction only; cleaning and
// validation happen downstream in internal/etl.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ignite/list-importer/internal/etl"
)

// MaxFileSize is the upload size guard, enforced before parsing begins.
const MaxFileSize = 10 * 1024 * 1024 // 10MB

// ErrFileTooLarge is returned when the input exceeds MaxFileSize.
var ErrFileTooLarge = errors.New("file exceeds 10MB size limit")

// ErrorKind classifies parse failures so the API can tell the user whether
// to pick a different file or fix the one they have.
type ErrorKind string

const (
	UnsupportedFormat ErrorKind = "unsupported_format"
	EmptyFile         ErrorKind = "empty_file"
	NoRows            ErrorKind = "no_rows"
	CorruptFile       ErrorKind = "corrupt_file"
)

// ParseError is a typed parse failure. A zero-row result is always reported
// as an error, never as a silent empty slice, so callers can distinguish
// "nothing to import" from "failed to read".
type ParseError struct {
	Kind     ErrorKind
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Filename, e.Kind, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Filename, e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(kind ErrorKind, filename string, err error) *ParseError {
	return &ParseError{Kind: kind, Filename: filename, Err: err}
}

// Output is the result of parsing one file. LowConfidence marks strategies
// whose structure inference is best-effort (PDF text extraction); downstream
// consumers should expect more validation failures from such output.
type Output struct {
	Records       []etl.RawRecord
	Headers       []string
	Format        string
	LowConfidence bool
}

// Parse reads the whole file and dispatches to a strategy by extension.
// The first non-empty row is the header; shorter rows are padded with empty
// cells; all-empty rows are dropped.
func Parse(filename string, r io.Reader) (*Output, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, parseErr(CorruptFile, filename, err)
	}
	if len(data) == 0 {
		return nil, parseErr(EmptyFile, filename, nil)
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	var (
		rows          [][]string
		lowConfidence bool
	)
	switch ext {
	case ".csv":
		rows, err = parseCSV(data)
	case ".xlsx", ".xls":
		rows, err = parseExcel(data)
	case ".pdf":
		rows, err = parsePDF(data)
		lowConfidence = true
	default:
		return nil, parseErr(UnsupportedFormat, filename, fmt.Errorf("extension %q", ext))
	}
	if err != nil {
		return nil, parseErr(CorruptFile, filename, err)
	}

	headers, records := rowsToRecords(rows)
	if headers == nil {
		return nil, parseErr(EmptyFile, filename, nil)
	}
	if len(records) == 0 {
		return nil, parseErr(NoRows, filename, nil)
	}

	return &Output{
		Records:       records,
		Headers:       headers,
		Format:        strings.TrimPrefix(ext, "."),
		LowConfidence: lowConfidence,
	}, nil
}

// rowsToRecords treats the first non-empty row as the header and turns every
// subsequent row into one RawRecord keyed by it. Returns a nil header when no
// non-empty row exists at all.
func rowsToRecords(rows [][]string) ([]string, []etl.RawRecord) {
	var headers []string
	var records []etl.RawRecord

	for _, row := range rows {
		if allEmpty(row) {
			continue
		}
		if headers == nil {
			headers = trimRow(row)
			continue
		}
		cells := trimRow(row)
		// Pad short rows so cells always line up with the header
		for len(cells) < len(headers) {
			cells = append(cells, "")
		}
		if len(cells) > len(headers) {
			cells = cells[:len(headers)]
		}
		records = append(records, etl.RawRecord{Headers: headers, Cells: cells})
	}
	return headers, records
}

func trimRow(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func allEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
