package etl

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Clean projects each raw record through the column mapping and normalizes
// every mapped value. Records whose fields all normalize to empty are dropped,
// so the output may be shorter than the input. Order is preserved.
//
// Normalization is deterministic and stable under re-application: cleaning an
// already-clean record is a no-op.
func Clean(records []RawRecord, mapping ColumnMapping) []CleanedRecord {
	cleaned := make([]CleanedRecord, 0, len(records))
	for _, raw := range records {
		rec := cleanOne(raw, mapping)
		if rec.IsEmpty() {
			continue
		}
		cleaned = append(cleaned, rec)
	}
	return cleaned
}

func cleanOne(raw RawRecord, mapping ColumnMapping) CleanedRecord {
	rec := make(CleanedRecord, len(mapping))
	for col, field := range mapping {
		orig := strings.TrimSpace(raw.Value(col))
		if orig == "" {
			continue
		}
		val := NormalizeValue(field, orig)
		if val == "" {
			// A value the user typed must survive cleaning even when
			// normalization strips all of it (a digit-free phone), so
			// validation can report it instead of it vanishing.
			val = orig
		}
		rec[field] = val
	}
	return rec
}

// NormalizeValue applies the per-field normalization rule to one raw value.
func NormalizeValue(field Field, raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	switch field {
	case FieldEmail:
		return normalizeEmail(v)
	case FieldFirstName, FieldLastName, FieldCity:
		return normalizeName(v)
	case FieldCompany:
		return collapseWhitespace(v)
	case FieldPhone:
		return NormalizePhone(v)
	case FieldState:
		return normalizeState(v)
	case FieldCountry:
		return normalizeCountry(v)
	case FieldZip:
		return NormalizeZip(v)
	default:
		return v
	}
}

func normalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	return strings.Trim(email, "\"'<>")
}

// normalizeName collapses internal whitespace and title-cases each word.
func normalizeName(raw string) string {
	s := collapseWhitespace(raw)
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizePhone strips everything but digits, then drops a leading US
// country code so a well-formed number comes out as exactly 10 digits.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

// normalizeState uppercases 2-letter state codes; longer values are passed
// through title-cased so "new york" and "NY" both survive mapping review.
func normalizeState(raw string) string {
	v := collapseWhitespace(raw)
	if len(v) == 2 {
		return strings.ToUpper(v)
	}
	return titleCaser.String(strings.ToLower(v))
}

func normalizeCountry(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) == 2 {
		return strings.ToUpper(v)
	}
	switch strings.ToLower(v) {
	case "united states", "usa", "us", "united states of america":
		return "US"
	case "united kingdom", "uk", "gb", "great britain":
		return "GB"
	case "canada":
		return "CA"
	default:
		return strings.ToUpper(v)
	}
}

// NormalizeZip canonicalizes numeric-only ZIPs to 5 digits: a float-parsed
// "7301.0" becomes "07301", a ZIP+4 "07474-1234" becomes "07474". Values with
// non-numeric content are passed through untouched.
func NormalizeZip(raw string) string {
	z := strings.TrimSpace(raw)
	// Spreadsheet exports often float-parse zips ("38824.0")
	if idx := strings.Index(z, "."); idx > 0 {
		z = z[:idx]
	}
	if idx := strings.Index(z, "-"); idx > 0 {
		z = z[:idx]
	}
	if !isDigits(z) {
		return z
	}
	if len(z) > 5 {
		return z[:5]
	}
	for len(z) < 5 {
		z = "0" + z
	}
	return z
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
