package etl

import "strings"

// Deduplicator partitions valid records into unique and duplicate using
// key-matching rules, checked in priority order:
//
//  1. exact case-insensitive email match
//  2. exact normalized-phone match
//  3. fuzzy name + zip (exact zip, case-insensitive whitespace-normalized name)
//
// A record is compared against any supplied existing records and against
// every record seen earlier in the same batch. The first rule that fires
// wins; lower-priority rules are not checked. The first record carrying a
// key is never itself flagged, so exactly one representative of each
// duplicate group survives into the unique set.
type Deduplicator struct {
	byEmail   map[string]CleanedRecord
	byPhone   map[string]CleanedRecord
	byNameZip map[string]CleanedRecord
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		byEmail:   make(map[string]CleanedRecord),
		byPhone:   make(map[string]CleanedRecord),
		byNameZip: make(map[string]CleanedRecord),
	}
}

// Deduplicate runs the matching policy over records in input order.
// Existing records are indexed first and count as earlier than anything in
// the batch; they can attract duplicates but never appear in either output.
func (d *Deduplicator) Deduplicate(records, existing []CleanedRecord) (unique []CleanedRecord, duplicates []DuplicateMatch) {
	for _, rec := range existing {
		d.register(rec)
	}

	unique = make([]CleanedRecord, 0, len(records))
	for _, rec := range records {
		if earlier, rule, ok := d.match(rec); ok {
			duplicates = append(duplicates, DuplicateMatch{
				Record:      rec,
				DuplicateOf: earlier,
				Rule:        rule,
			})
		} else {
			unique = append(unique, rec)
		}
		// Duplicates register too: a later record matching only a key the
		// duplicate introduced still points into the group, transitively
		// reaching the first representative.
		d.register(rec)
	}
	return unique, duplicates
}

func (d *Deduplicator) match(rec CleanedRecord) (CleanedRecord, MatchRule, bool) {
	if k := emailKey(rec); k != "" {
		if earlier, ok := d.byEmail[k]; ok {
			return earlier, MatchExactEmail, true
		}
	}
	if k := phoneKey(rec); k != "" {
		if earlier, ok := d.byPhone[k]; ok {
			return earlier, MatchExactPhone, true
		}
	}
	if k := nameZipKey(rec); k != "" {
		if earlier, ok := d.byNameZip[k]; ok {
			return earlier, MatchFuzzyNameZip, true
		}
	}
	return nil, "", false
}

// register indexes a record's keys. The first writer of a key keeps it, which
// preserves lowest-input-order attribution.
func (d *Deduplicator) register(rec CleanedRecord) {
	if k := emailKey(rec); k != "" {
		if _, ok := d.byEmail[k]; !ok {
			d.byEmail[k] = rec
		}
	}
	if k := phoneKey(rec); k != "" {
		if _, ok := d.byPhone[k]; !ok {
			d.byPhone[k] = rec
		}
	}
	if k := nameZipKey(rec); k != "" {
		if _, ok := d.byNameZip[k]; !ok {
			d.byNameZip[k] = rec
		}
	}
}

func emailKey(rec CleanedRecord) string {
	return strings.ToLower(rec.Get(FieldEmail))
}

func phoneKey(rec CleanedRecord) string {
	return rec.Get(FieldPhone)
}

func nameZipKey(rec CleanedRecord) string {
	zip := rec.Get(FieldZip)
	name := strings.ToLower(collapseWhitespace(rec.Get(FieldFirstName) + " " + rec.Get(FieldLastName)))
	if zip == "" || name == "" {
		return ""
	}
	return name + "|" + zip
}
