package record

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is a single stored row keyed by its "id" field.
// Nested values are []any and map[string]any, as produced by JSON decoding.
type Record map[string]any

// Client is the record store capability the core depends on.
type Client interface {
	// Insert creates a record. The store assigns "id" when it is absent and
	// returns its own copy, which is authoritative for derived fields.
	Insert(ctx context.Context, collection string, rec Record) (Record, error)

	// Update applies partial fields to the record with the given id.
	Update(ctx context.Context, collection, id string, partial Record) (Record, error)

	// Delete removes the record with the given id. Deleting a missing record is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Upsert inserts rec or replaces the record whose conflict fields match.
	// With no conflict fields the record's "id" is the key.
	Upsert(ctx context.Context, collection string, rec Record, conflict ...string) (Record, error)

	// SelectWhere returns every record matching all filters.
	SelectWhere(ctx context.Context, collection string, filters ...Filter) ([]Record, error)
}

// Filter is an equality predicate on a single field.
type Filter struct {
	Field string
	Value any
}

// Eq returns a Filter matching records whose field equals value.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// ID returns the record's "id" field, or "" if absent.
func (r Record) ID() string {
	return r.String("id")
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Without returns a shallow copy of r without the named fields.
func (r Record) Without(fields ...string) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Rename returns a copy of r with field from stored under to. It returns r
// unchanged when the names are equal or either is empty.
func (r Record) Rename(from, to string) Record {
	if from == to || from == "" || to == "" {
		return r
	}
	out := r.Without(from)
	if v, ok := r[from]; ok {
		out[to] = v
	} else {
		delete(out, to)
	}
	return out
}

// Matches reports whether r satisfies every filter.
func (r Record) Matches(filters ...Filter) bool {
	for _, f := range filters {
		if !Equal(r[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// String returns the field as a string. Numbers and booleans are formatted.
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the field as a float64, or 0 when absent or unparseable.
func (r Record) Float(field string) float64 {
	f, _ := ToFloat(r[field])
	return f
}

// Int returns the field as an int, or 0 when absent or unparseable.
func (r Record) Int(field string) int {
	f, _ := ToFloat(r[field])
	return int(f)
}

// Bool returns the field as a bool. Missing fields yield def.
func (r Record) Bool(field string, def bool) bool {
	switch v := r[field].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	case nil:
		return def
	default:
		if f, ok := ToFloat(v); ok {
			return f != 0
		}
		return def
	}
}

// Strings returns the field as a string slice, dropping non-string elements.
func (r Record) Strings(field string) []string {
	var out []string
	for _, v := range List(r[field]) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Maps returns the field as a slice of objects, dropping non-object elements.
func (r Record) Maps(field string) []map[string]any {
	var out []map[string]any
	for _, v := range List(r[field]) {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// List coerces v into a []any. JSON text is decoded.
func List(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	case string:
		var out []any
		if json.Unmarshal([]byte(t), &out) == nil {
			return out
		}
	case []byte:
		var out []any
		if json.Unmarshal(t, &out) == nil {
			return out
		}
	}
	return nil
}

// ToFloat converts numeric representations used by the backends to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Equal compares two field values, treating numeric types and their string
// forms as the same value.
func Equal(a, b any) bool {
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		return sa == sb
	}
	if fa, ok := ToFloat(a); ok {
		if fb, ok := ToFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
