// Package writer issues single-entity writes against a record.Client.
//
// A Writer knows the collection and stored shape of one entity kind. It
// never touches shadow state; callers decide what to do with the result and
// with the classified error.
package writer

import (
	"context"

	"github.com/jacentio/storefront/internal/natkey"
	"github.com/jacentio/storefront/record"
)

// Codec maps an entity type to stored records.
type Codec[T any] interface {
	Collection() string
	// OwnerField names the field holding the owning shop id, or "" for the
	// parent entity.
	OwnerField() string
	Encode(v T) record.Record
	Decode(r record.Record) T
}

// Writer performs create, update, delete and upsert for one entity kind.
// Every error it returns is a *record.Error.
type Writer[T any] struct {
	client record.Client
	codec  Codec[T]
}

// New creates a Writer.
func New[T any](client record.Client, codec Codec[T]) *Writer[T] {
	return &Writer[T]{client: client, codec: codec}
}

// Collection returns the collection written to.
func (w *Writer[T]) Collection() string { return w.codec.Collection() }

// Create inserts v owned by ownerID. Empty and local ids are stripped so the
// store assigns identity.
func (w *Writer[T]) Create(ctx context.Context, ownerID string, v T) (T, error) {
	rec := w.encode(ownerID, v)
	out, err := w.client.Insert(ctx, w.codec.Collection(), rec)
	if err != nil {
		var zero T
		return zero, record.Classify("insert", w.codec.Collection(), err)
	}
	return w.codec.Decode(out), nil
}

// Update applies partial to the record with id. The id and owner fields of
// partial are ignored.
func (w *Writer[T]) Update(ctx context.Context, id string, partial record.Record) (T, error) {
	var zero T
	if natkey.IsLocal(id) {
		return zero, record.NewError(record.Permanent, "update", w.codec.Collection(), record.ErrNotFound)
	}
	rec := partial.Without("id", w.codec.OwnerField())
	out, err := w.client.Update(ctx, w.codec.Collection(), id, rec)
	if err != nil {
		return zero, record.Classify("update", w.codec.Collection(), err)
	}
	return w.codec.Decode(out), nil
}

// Replace writes every writable field of v to the record with id. An empty
// client key does not clear the stored one.
func (w *Writer[T]) Replace(ctx context.Context, id string, v T) (T, error) {
	rec := w.codec.Encode(v)
	if rec.String("client_key") == "" {
		delete(rec, "client_key")
	}
	return w.Update(ctx, id, rec)
}

// Delete removes the record with id.
func (w *Writer[T]) Delete(ctx context.Context, id string) error {
	if natkey.IsLocal(id) {
		return nil
	}
	if err := w.client.Delete(ctx, w.codec.Collection(), id); err != nil {
		return record.Classify("delete", w.codec.Collection(), err)
	}
	return nil
}

// Upsert inserts v or replaces the record sharing its conflict fields.
func (w *Writer[T]) Upsert(ctx context.Context, ownerID string, v T, conflict ...string) (T, error) {
	rec := w.encode(ownerID, v)
	out, err := w.client.Upsert(ctx, w.codec.Collection(), rec, conflict...)
	if err != nil {
		var zero T
		return zero, record.Classify("upsert", w.codec.Collection(), err)
	}
	return w.codec.Decode(out), nil
}

func (w *Writer[T]) encode(ownerID string, v T) record.Record {
	rec := w.codec.Encode(v)
	if natkey.IsLocal(rec.String("id")) {
		delete(rec, "id")
	}
	if f := w.codec.OwnerField(); f != "" {
		rec[f] = ownerID
	}
	return rec
}
