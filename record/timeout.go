package record

import (
	"context"
	"errors"
	"time"
)

// WithTimeout wraps c so that every call runs under its own deadline.
// A call that exceeds the deadline fails with a Transient error.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{next: c, timeout: d}
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

func (t *timeoutClient) Insert(ctx context.Context, collection string, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.Insert(ctx, collection, rec)
	return out, t.wrap(ctx, "insert", collection, err)
}

func (t *timeoutClient) Update(ctx context.Context, collection, id string, partial Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.Update(ctx, collection, id, partial)
	return out, t.wrap(ctx, "update", collection, err)
}

func (t *timeoutClient) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.wrap(ctx, "delete", collection, t.next.Delete(ctx, collection, id))
}

func (t *timeoutClient) Upsert(ctx context.Context, collection string, rec Record, conflict ...string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.Upsert(ctx, collection, rec, conflict...)
	return out, t.wrap(ctx, "upsert", collection, err)
}

func (t *timeoutClient) SelectWhere(ctx context.Context, collection string, filters ...Filter) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.SelectWhere(ctx, collection, filters...)
	return out, t.wrap(ctx, "select", collection, err)
}

// wrap forces a Transient classification when the per-call deadline fired,
// whatever the backend made of it.
func (t *timeoutClient) wrap(ctx context.Context, op, collection string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(Transient, op, collection, err)
	}
	return Classify(op, collection, err)
}
