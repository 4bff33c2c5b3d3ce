package editor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoDocument is returned by operations that need a loaded document
	ErrNoDocument = errors.New("no document loaded")
	// ErrClosed is returned after the editor has been closed
	ErrClosed = errors.New("editor is closed")
)

// ErrorKind classifies editor failures
type ErrorKind int

const (
	// LoadFailure means the uploaded bytes could not be parsed as a PDF form
	LoadFailure ErrorKind = iota + 1
	// UpdateFailure means a field mutation or re-serialization failed
	UpdateFailure
)

// String returns a string representation of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case LoadFailure:
		return "LOAD_FAILURE"
	case UpdateFailure:
		return "UPDATE_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is a failed editor operation. The editor state is left as it was
// before the operation started.
type Error struct {
	Kind      ErrorKind `json:"kind"`
	Op        string    `json:"op"`
	Field     string    `json:"field,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

func newError(kind ErrorKind, op, field string, err error) *Error {
	return &Error{
		Kind:      kind,
		Op:        op,
		Field:     field,
		Message:   err.Error(),
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s %q: %s", e.Kind, e.Op, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsLoadFailure reports whether err is an editor LoadFailure
func IsLoadFailure(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == LoadFailure
}

// IsUpdateFailure reports whether err is an editor UpdateFailure
func IsUpdateFailure(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == UpdateFailure
}
