package etl

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoColumnsMapped = errors.New("no columns mapped")
	ErrEmailNotMapped  = errors.New("email column mapping is required")
)

// columnAliases maps normalized header names to canonical fields. When
// multiple source systems name the same thing differently, they all map here.
var columnAliases = map[string]Field{
	// Email
	"email":          FieldEmail,
	"email_address":  FieldEmail,
	"emailaddress":   FieldEmail,
	"e_mail":         FieldEmail,
	"mail":           FieldEmail,
	"customer_email": FieldEmail,

	// First name
	"first_name": FieldFirstName,
	"firstname":  FieldFirstName,
	"fname":      FieldFirstName,
	"first":      FieldFirstName,
	"given_name": FieldFirstName,

	// Last name
	"last_name":   FieldLastName,
	"lastname":    FieldLastName,
	"lname":       FieldLastName,
	"last":        FieldLastName,
	"surname":     FieldLastName,
	"family_name": FieldLastName,

	// Company
	"company":      FieldCompany,
	"company_name": FieldCompany,
	"organization": FieldCompany,
	"business":     FieldCompany,

	// Phone
	"phone":        FieldPhone,
	"phone_number": FieldPhone,
	"phonenumber":  FieldPhone,
	"mobile":       FieldPhone,
	"cell":         FieldPhone,
	"telephone":    FieldPhone,
	"tel":          FieldPhone,

	// Location
	"city":         FieldCity,
	"town":         FieldCity,
	"state":        FieldState,
	"province":     FieldState,
	"region":       FieldState,
	"country":      FieldCountry,
	"country_code": FieldCountry,
	"zip":          FieldZip,
	"zipcode":      FieldZip,
	"zip_code":     FieldZip,
	"postal_code":  FieldZip,
	"postalcode":   FieldZip,
	"postcode":     FieldZip,
}

// NormalizeHeader lowercases a header and collapses separators to underscores
// so that "Zip Code", "zip-code" and "ZIP_CODE" all compare equal.
func NormalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.Trim(h, "\"'")
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

// SuggestMapping auto-maps source headers to canonical fields by alias
// lookup. Headers with no alias are left unmapped; when two headers resolve
// to the same field the first one wins.
func SuggestMapping(headers []string) ColumnMapping {
	mapping := make(ColumnMapping)
	taken := make(map[Field]bool)
	for _, h := range headers {
		field, ok := columnAliases[NormalizeHeader(h)]
		if !ok || taken[field] {
			continue
		}
		mapping[h] = field
		taken[field] = true
	}
	return mapping
}

// ValidateMapping checks a user-supplied mapping before cleaning starts:
// at least one column mapped, email bound, and no field bound twice.
func ValidateMapping(mapping ColumnMapping) error {
	if len(mapping) == 0 {
		return ErrNoColumnsMapped
	}
	seen := make(map[Field]string, len(mapping))
	hasEmail := false
	for col, field := range mapping {
		if prev, dup := seen[field]; dup {
			return fmt.Errorf("columns %q and %q both map to field %q", prev, col, field)
		}
		seen[field] = col
		if field == FieldEmail {
			hasEmail = true
		}
	}
	if !hasEmail {
		return ErrEmailNotMapped
	}
	return nil
}
