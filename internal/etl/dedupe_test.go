package etl

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeExactEmail(t *testing.T) {
	first := CleanedRecord{FieldEmail: "jane@x.com", FieldPhone: "5551234567"}
	second := CleanedRecord{FieldEmail: "JANE@X.COM", FieldPhone: "5559876543"}

	unique, dups := NewDeduplicator().Deduplicate([]CleanedRecord{first, second}, nil)

	require.Len(t, unique, 1)
	require.Len(t, dups, 1)
	assert.Equal(t, first, unique[0])
	assert.Equal(t, first, dups[0].DuplicateOf)
	assert.Equal(t, MatchExactEmail, dups[0].Rule)
}

// Email outranks phone: once the email rule fires, the phone rule is never
// consulted for that record.
func TestDedupeRulePriority(t *testing.T) {
	a := CleanedRecord{FieldEmail: "a@x.com", FieldPhone: "5550000001"}
	b := CleanedRecord{FieldEmail: "b@x.com", FieldPhone: "5550000001"} // phone dup of a
	c := CleanedRecord{FieldEmail: "a@x.com", FieldPhone: "5550000001"} // email dup of a, phone dup too

	unique, dups := NewDeduplicator().Deduplicate([]CleanedRecord{a, b, c}, nil)

	require.Len(t, unique, 1)
	require.Len(t, dups, 2)
	assert.Equal(t, MatchExactPhone, dups[0].Rule)
	assert.Equal(t, MatchExactEmail, dups[1].Rule)
}

func TestDedupeFuzzyNameZip(t *testing.T) {
	a := CleanedRecord{FieldEmail: "jane1@x.com", FieldFirstName: "Jane", FieldLastName: "Doe", FieldZip: "07474"}
	b := CleanedRecord{FieldEmail: "jane2@x.com", FieldFirstName: "jane", FieldLastName: "doe", FieldZip: "07474"}
	c := CleanedRecord{FieldEmail: "jane3@x.com", FieldFirstName: "Jane", FieldLastName: "Doe", FieldZip: "10001"}

	unique, dups := NewDeduplicator().Deduplicate([]CleanedRecord{a, b, c}, nil)

	require.Len(t, unique, 2) // a and c survive: different zip
	require.Len(t, dups, 1)
	assert.Equal(t, MatchFuzzyNameZip, dups[0].Rule)
	assert.Equal(t, a, dups[0].DuplicateOf)
}

func TestDedupeAgainstExistingRecords(t *testing.T) {
	existing := []CleanedRecord{{FieldEmail: "known@x.com"}}
	batch := []CleanedRecord{
		{FieldEmail: "known@x.com", FieldFirstName: "Ann"},
		{FieldEmail: "new@x.com"},
	}

	unique, dups := NewDeduplicator().Deduplicate(batch, existing)

	require.Len(t, unique, 1)
	assert.Equal(t, "new@x.com", unique[0].Get(FieldEmail))
	require.Len(t, dups, 1)
	// Attributed to the existing record, which itself never appears in output
	assert.Equal(t, existing[0], dups[0].DuplicateOf)
}

// For any group matching under one rule, exactly the lowest-input-order
// record survives and every later occurrence is flagged.
func TestDedupeFirstWins(t *testing.T) {
	var batch []CleanedRecord
	for i := 0; i < 5; i++ {
		batch = append(batch, CleanedRecord{
			FieldEmail:     "same@x.com",
			FieldFirstName: fmt.Sprintf("Copy%d", i),
		})
	}

	unique, dups := NewDeduplicator().Deduplicate(batch, nil)

	require.Len(t, unique, 1)
	assert.Equal(t, "Copy0", unique[0].Get(FieldFirstName))
	require.Len(t, dups, 4)
	for _, d := range dups {
		assert.Equal(t, "Copy0", d.DuplicateOf.Get(FieldFirstName))
	}
}

func TestDedupeNoKeysNoMatch(t *testing.T) {
	// Records with no email, phone, or name+zip can never collide
	a := CleanedRecord{FieldFirstName: "Jane"}
	b := CleanedRecord{FieldFirstName: "Jane"}

	unique, dups := NewDeduplicator().Deduplicate([]CleanedRecord{a, b}, nil)
	assert.Len(t, unique, 2)
	assert.Empty(t, dups)
}
