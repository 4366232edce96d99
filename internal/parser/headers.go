package parser

import (
	"strings"

	"github.com/ignite/list-importer/internal/etl"
)

// MinHeaderConfidence is the threshold below which the first row is reported
// as data rather than column names.
const MinHeaderConfidence = 0.6

// HeaderDetection reports whether the first row of a file plausibly contains
// column names. The parser always treats the first non-empty row as the
// header; this heuristic lets the API warn the user when that row looks like
// data (an email address or a phone number in the "header").
type HeaderDetection struct {
	HasHeaders bool    `json:"has_headers"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// DetectHeaders scores the header row against up to five sample records.
func DetectHeaders(headers []string, sample []etl.RawRecord) HeaderDetection {
	if len(sample) > 5 {
		sample = sample[:5]
	}

	// Known column names are the strongest signal
	aliasScore := scoreKnownHeaders(headers)

	// Headers should not contain emails or be mostly numeric
	shapeScore := 1.0
	for _, h := range headers {
		if strings.Contains(h, "@") {
			shapeScore = 0
			break
		}
	}
	numeric := 0
	for _, h := range headers {
		if isNumericCell(h) {
			numeric++
		}
	}
	if len(headers) > 0 && float64(numeric)/float64(len(headers)) > 0.5 {
		shapeScore = 0
	}

	// Data rows holding emails where the header does not suggests a real header
	dataScore := 0.5
	for _, rec := range sample {
		for _, c := range rec.Cells {
			if strings.Contains(c, "@") {
				dataScore = 1.0
			}
		}
	}

	confidence := aliasScore*0.5 + shapeScore*0.3 + dataScore*0.2
	det := HeaderDetection{
		HasHeaders: confidence >= MinHeaderConfidence,
		Confidence: confidence,
	}
	if !det.HasHeaders {
		det.Reason = "first row appears to be data, not column names"
	}
	return det
}

func scoreKnownHeaders(headers []string) float64 {
	if len(headers) == 0 {
		return 0
	}
	matched := len(etl.SuggestMapping(headers))
	return float64(matched) / float64(len(headers))
}

func isNumericCell(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && c != '.' && c != '-' && c != '+' {
			return false
		}
	}
	return true
}
