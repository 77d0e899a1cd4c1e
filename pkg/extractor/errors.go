package extractor

import (
	"errors"
	"fmt"
)

// MalformedRecordError marks a structurally unusable input row. The row is
// excluded and counted; extraction never guesses a repair.
type MalformedRecordError struct {
	Table  string
	Row    int
	Field  string
	Reason string
}

func (e MalformedRecordError) Error() string {
	return fmt.Sprintf("%s row %d: field %q: %s", e.Table, e.Row, e.Field, e.Reason)
}

func IsMalformedRecord(err error) bool {
	var me MalformedRecordError
	return errors.As(err, &me)
}

// AmbiguousCategoryError marks a categorical value outside its closed domain
// after normalization. The row is excluded and counted, never coerced.
type AmbiguousCategoryError struct {
	Table string
	Row   int
	Field string
	Value string
}

func (e AmbiguousCategoryError) Error() string {
	return fmt.Sprintf("%s row %d: field %q: unrecognized value %q", e.Table, e.Row, e.Field, e.Value)
}

func IsAmbiguousCategory(err error) bool {
	var ae AmbiguousCategoryError
	return errors.As(err, &ae)
}
