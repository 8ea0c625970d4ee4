package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRatingNotFound = errors.New("rating not found")

	// ErrOrphanedReference marks a rating whose project reference does not
	// resolve. Orphans are reported and excluded from aggregation, never
	// auto-deleted: the project may simply not be imported yet.
	ErrOrphanedReference = errors.New("rating references a nonexistent project")

	// ErrAmbiguousDuplicate marks a duplicate group with no deterministic
	// tie-break. The group is reported and left untouched.
	ErrAmbiguousDuplicate = errors.New("duplicate ratings cannot be resolved deterministically")
)

// MalformedRecordError is returned by the normalizer when a raw record
// cannot produce a canonical rating. The batch logs it, skips the record
// and continues.
type MalformedRecordError struct {
	RecordID string
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %s: %s", e.RecordID, e.Reason)
}

// IsMalformed reports whether err is a MalformedRecordError.
func IsMalformed(err error) bool {
	var me *MalformedRecordError
	return errors.As(err, &me)
}
