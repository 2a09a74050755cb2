package record

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrNotFound is returned when updating a record that doesn't exist.
	ErrNotFound = errors.New("record: not found")

	// ErrAlreadyExists is returned when inserting a record with an existing id.
	ErrAlreadyExists = errors.New("record: already exists")

	// ErrDuplicateValue is returned when a natural-key or unique constraint is violated.
	ErrDuplicateValue = errors.New("record: duplicate value for unique field")

	// ErrCollectionMissing is the cause attached to SchemaMissing errors raised
	// by backends that detect an absent collection themselves.
	ErrCollectionMissing = errors.New("record: collection does not exist")
)

// Kind classifies a store failure.
type Kind int

const (
	// Permanent covers constraint violations and other rejections. Not retried.
	Permanent Kind = iota

	// Transient covers timeouts and network failures. Retried a bounded number of times.
	Transient

	// SchemaMissing means the target collection does not exist in the store.
	// It triggers local-only fallback.
	SchemaMissing
)

func (k Kind) String() string {
	switch k {
	case Permanent:
		return "permanent"
	case Transient:
		return "transient"
	case SchemaMissing:
		return "schema-missing"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified store failure.
type Error struct {
	Kind       Kind
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("record: %s %s: %s: %v", e.Op, e.Collection, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns a classified error for an operation on a collection.
func NewError(kind Kind, op, collection string, err error) *Error {
	return &Error{Kind: kind, Op: op, Collection: collection, Err: err}
}

// KindOf classifies err. A wrapped *Error keeps its kind; anything else is
// classified by Classify's rules.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return classifyKind(err)
}

// IsSchemaMissing reports whether err means the target collection is absent.
func IsSchemaMissing(err error) bool {
	return err != nil && KindOf(err) == SchemaMissing
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == Transient
}

// Classify wraps err as an *Error. Errors that are already classified are
// returned unchanged; nil stays nil.
func Classify(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewError(classifyKind(err), op, collection, err)
}

// schemaMissingSignals are message fragments stores use for absent tables or columns.
var schemaMissingSignals = []string{
	"does not exist",
	"no such table",
	"has no column",
	"resource not found",
	"undefined table",
}

var transientSignals = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"temporarily unavailable",
	"unexpected eof",
}

func classifyKind(err error) Kind {
	if err == nil {
		return Permanent
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	msg := strings.ToLower(err.Error())
	for _, s := range schemaMissingSignals {
		if strings.Contains(msg, s) {
			return SchemaMissing
		}
	}
	for _, s := range transientSignals {
		if strings.Contains(msg, s) {
			return Transient
		}
	}
	return Permanent
}
