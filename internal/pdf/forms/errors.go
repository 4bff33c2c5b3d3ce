package forms

import "errors"

var (
	// ErrFieldNotFound is returned when no supported field has the given name
	ErrFieldNotFound = errors.New("field not found")
	// ErrKindMismatch is returned when a value does not match the field kind
	ErrKindMismatch = errors.New("value kind does not match field kind")
	// ErrReadOnly is returned when writing a field flagged read-only
	ErrReadOnly = errors.New("field is read-only")
	// ErrInvalidOption is returned when selecting an option the field does not offer
	ErrInvalidOption = errors.New("option not offered by field")
	// ErrTooLong is returned when text exceeds the field's /MaxLen
	ErrTooLong = errors.New("text exceeds maximum length")
)
