// Package etl implements the clean/validate/deduplicate pipeline for bulk
// contact imports. The pipeline is pure and synchronous: no I/O happens here,
// so every stage is unit-testable without mocks. Parsing lives in
// internal/parser and network upload in internal/uploader.
package etl

// Pipeline runs Clean, Validate and Deduplicate in sequence and assembles
// the consolidated result.
type Pipeline struct {
	validator *Validator
}

// NewPipeline creates a Pipeline. requiredFields configures the validator;
// empty means email only.
func NewPipeline(requiredFields ...Field) *Pipeline {
	return &Pipeline{validator: NewValidator(requiredFields...)}
}

// Process transforms parsed rows into the upload-ready partition set.
// existing seeds the deduplicator with records already present in the target
// list so in-file and against-store duplicates are caught in one pass.
func (p *Pipeline) Process(records []RawRecord, mapping ColumnMapping, existing []CleanedRecord) (*Result, error) {
	if err := ValidateMapping(mapping); err != nil {
		return nil, err
	}

	cleaned := Clean(records, mapping)
	valid, invalid := p.validator.Validate(cleaned)
	unique, duplicates := NewDeduplicator().Deduplicate(valid, existing)

	return &Result{
		Cleaned:    cleaned,
		Valid:      valid,
		Invalid:    invalid,
		Duplicates: duplicates,
		Unique:     unique,
		Stats: Stats{
			TotalInput: len(records),
			Cleaned:    len(cleaned),
			Valid:      len(valid),
			Invalid:    len(invalid),
			Duplicates: len(duplicates),
			Unique:     len(unique),
		},
	}, nil
}
