package etl

import (
	"fmt"
	"regexp"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validator checks cleaned records against required-field and format rules.
// Validation is pure and per-record: no record's result depends on another.
type Validator struct {
	required []Field
}

// NewValidator creates a Validator with the given required fields. With no
// arguments only email is required.
func NewValidator(required ...Field) *Validator {
	if len(required) == 0 {
		required = []Field{FieldEmail}
	}
	return &Validator{required: required}
}

// Validate partitions records into valid and invalid. Every rule violation on
// a record is reported as its own FieldError so the review UI can show all
// problems at once.
func (v *Validator) Validate(records []CleanedRecord) (valid []CleanedRecord, invalid []ValidationOutcome) {
	valid = make([]CleanedRecord, 0, len(records))
	for _, rec := range records {
		errs := v.check(rec)
		if len(errs) == 0 {
			valid = append(valid, rec)
			continue
		}
		invalid = append(invalid, ValidationOutcome{Record: rec, Errors: errs})
	}
	return valid, invalid
}

func (v *Validator) check(rec CleanedRecord) []FieldError {
	var errs []FieldError

	for _, f := range v.required {
		if rec.Get(f) == "" {
			errs = append(errs, FieldError{
				Field:   f,
				Rule:    "required",
				Message: fmt.Sprintf("%s is required", f),
			})
		}
	}

	if email := rec.Get(FieldEmail); email != "" && !emailRegex.MatchString(email) {
		errs = append(errs, FieldError{
			Field:   FieldEmail,
			Rule:    "format",
			Message: "invalid email address",
		})
	}
	if phone := rec.Get(FieldPhone); phone != "" && (len(phone) != 10 || !isDigits(phone)) {
		errs = append(errs, FieldError{
			Field:   FieldPhone,
			Rule:    "format",
			Message: "phone must have exactly 10 digits",
		})
	}
	if zip := rec.Get(FieldZip); zip != "" && (len(zip) != 5 || !isDigits(zip)) {
		errs = append(errs, FieldError{
			Field:   FieldZip,
			Rule:    "format",
			Message: "ZIP must have exactly 5 digits",
		})
	}

	return errs
}
