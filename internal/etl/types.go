package etl

// Field is a canonical target field name. Cleaned records are keyed by this
// fixed set so a typo in a mapping fails at compile time, not at upload time.
type Field string

const (
	FieldEmail     Field = "email"
	FieldFirstName Field = "first_name"
	FieldLastName  Field = "last_name"
	FieldCompany   Field = "company"
	FieldPhone     Field = "phone"
	FieldCity      Field = "city"
	FieldState     Field = "state"
	FieldCountry   Field = "country"
	FieldZip       Field = "zip"
)

// AllFields lists every canonical field in display order.
var AllFields = []Field{
	FieldEmail, FieldFirstName, FieldLastName, FieldCompany,
	FieldPhone, FieldCity, FieldState, FieldCountry, FieldZip,
}

// FieldDefinition describes a canonical field for the mapping UI.
type FieldDefinition struct {
	Name     Field  `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Type     string `json:"type"` // email, text, phone, zip
}

// SystemFields returns the mappable field definitions.
func SystemFields() []FieldDefinition {
	return []FieldDefinition{
		{Name: FieldEmail, Label: "Email Address", Required: true, Type: "email"},
		{Name: FieldFirstName, Label: "First Name", Required: false, Type: "text"},
		{Name: FieldLastName, Label: "Last Name", Required: false, Type: "text"},
		{Name: FieldCompany, Label: "Company", Required: false, Type: "text"},
		{Name: FieldPhone, Label: "Phone Number", Required: false, Type: "phone"},
		{Name: FieldCity, Label: "City", Required: false, Type: "text"},
		{Name: FieldState, Label: "State/Province", Required: false, Type: "text"},
		{Name: FieldCountry, Label: "Country", Required: false, Type: "text"},
		{Name: FieldZip, Label: "ZIP Code", Required: false, Type: "zip"},
	}
}

// RawRecord is one parsed input row: source header names paired with the raw
// cell values for that row. Cells shorter than the header are padded with ""
// by the parser, so len(Cells) == len(Headers) always holds.
type RawRecord struct {
	Headers []string `json:"headers"`
	Cells   []string `json:"cells"`
}

// Value returns the cell under the given source header, or "" if absent.
func (r RawRecord) Value(header string) string {
	for i, h := range r.Headers {
		if h == header && i < len(r.Cells) {
			return r.Cells[i]
		}
	}
	return ""
}

// CleanedRecord maps canonical fields to normalized values. A missing key
// means the field is null (no mapped source column, or the value normalized
// to empty).
type CleanedRecord map[Field]string

// Get returns the value for f, or "" when the field is null.
func (c CleanedRecord) Get(f Field) string { return c[f] }

// IsEmpty reports whether every field is null or empty.
func (c CleanedRecord) IsEmpty() bool {
	for _, v := range c {
		if v != "" {
			return false
		}
	}
	return true
}

// ColumnMapping binds source column names to canonical fields. A source
// column may be left unmapped; each canonical field may be bound at most once.
type ColumnMapping map[string]Field

// FieldError is one rule violation on one field of one record.
type FieldError struct {
	Field   Field  `json:"field"`
	Rule    string `json:"rule"` // "required" or "format"
	Message string `json:"message"`
}

// ValidationOutcome pairs an invalid record with everything wrong with it.
type ValidationOutcome struct {
	Record CleanedRecord `json:"record"`
	Errors []FieldError  `json:"errors"`
}

// MatchRule identifies which duplicate-detection rule fired.
type MatchRule string

const (
	MatchExactEmail   MatchRule = "exact_email"
	MatchExactPhone   MatchRule = "exact_phone"
	MatchFuzzyNameZip MatchRule = "fuzzy_name_zip"
)

// DuplicateMatch records that Record collides with DuplicateOf under Rule.
// DuplicateOf is the earliest record in the group (existing records count as
// earlier than anything in the upload).
type DuplicateMatch struct {
	Record      CleanedRecord `json:"record"`
	DuplicateOf CleanedRecord `json:"duplicate_of"`
	Rule        MatchRule     `json:"rule"`
}

// Stats summarizes one pipeline pass.
type Stats struct {
	TotalInput int `json:"total_input"`
	Cleaned    int `json:"cleaned"`
	Valid      int `json:"valid"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
	Unique     int `json:"unique"`
}

// Result is the terminal aggregate of one pipeline pass. Unique is the set
// actually submitted for upload; Valid = Unique ∪ Duplicates and
// Cleaned = Valid ∪ Invalid, with no overlap.
type Result struct {
	Cleaned    []CleanedRecord     `json:"cleaned"`
	Valid      []CleanedRecord     `json:"valid"`
	Invalid    []ValidationOutcome `json:"invalid"`
	Duplicates []DuplicateMatch    `json:"duplicates"`
	Unique     []CleanedRecord     `json:"unique"`
	Stats      Stats               `json:"stats"`
}
