// Package recordtest provides a fault-injecting record.Client for tests.
package recordtest

import (
	"context"
	"sync"

	"github.com/jacentio/storefront/record"
)

// Operation names used by Fail and Calls.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
	OpUpsert = "upsert"
	OpSelect = "select"
)

// Call is one operation observed by Client.
type Call struct {
	Op         string
	Collection string
	Record     record.Record
}

type fault struct {
	op, collection string
	err            error
	remaining      int // < 0 means forever
}

// Client wraps another client, records every call and injects failures.
type Client struct {
	inner record.Client

	mu     sync.Mutex
	faults []*fault
	hidden map[string]int
	calls  []Call
}

// Wrap returns a Client delegating to inner.
func Wrap(inner record.Client) *Client {
	return &Client{inner: inner, hidden: make(map[string]int)}
}

// Fail makes the next times calls of op on collection return err without
// reaching the inner client. A times of zero or less fails forever. An empty
// op or collection matches any.
func (c *Client) Fail(op, collection string, err error, times int) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if times <= 0 {
		times = -1
	}
	c.faults = append(c.faults, &fault{op: op, collection: collection, err: err, remaining: times})
	return c
}

// Hide makes the next times reads of collection return no records, as a store
// with delayed visibility would.
func (c *Client) Hide(collection string, times int) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden[collection] += times
	return c
}

// Clear removes all injected faults and hidden reads.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = nil
	c.hidden = make(map[string]int)
}

// Calls counts observed calls of op on collection. Empty values match any.
func (c *Client) Calls(op, collection string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if (op == "" || call.Op == op) && (collection == "" || call.Collection == collection) {
			n++
		}
	}
	return n
}

// History returns a copy of every observed call.
func (c *Client) History() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

func (c *Client) observe(op, collection string, rec record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Op: op, Collection: collection, Record: rec.Clone()})
	for _, f := range c.faults {
		if f.remaining == 0 {
			continue
		}
		if (f.op == "" || f.op == op) && (f.collection == "" || f.collection == collection) {
			if f.remaining > 0 {
				f.remaining--
			}
			return f.err
		}
	}
	return nil
}

func (c *Client) takeHidden(collection string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hidden[collection] > 0 {
		c.hidden[collection]--
		return true
	}
	return false
}

// Insert implements record.Client.
func (c *Client) Insert(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	if err := c.observe(OpInsert, collection, rec); err != nil {
		return nil, err
	}
	return c.inner.Insert(ctx, collection, rec)
}

// Update implements record.Client.
func (c *Client) Update(ctx context.Context, collection, id string, partial record.Record) (record.Record, error) {
	if err := c.observe(OpUpdate, collection, partial); err != nil {
		return nil, err
	}
	return c.inner.Update(ctx, collection, id, partial)
}

// Delete implements record.Client.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := c.observe(OpDelete, collection, record.Record{"id": id}); err != nil {
		return err
	}
	return c.inner.Delete(ctx, collection, id)
}

// Upsert implements record.Client.
func (c *Client) Upsert(ctx context.Context, collection string, rec record.Record, conflict ...string) (record.Record, error) {
	if err := c.observe(OpUpsert, collection, rec); err != nil {
		return nil, err
	}
	return c.inner.Upsert(ctx, collection, rec, conflict...)
}

// SelectWhere implements record.Client.
func (c *Client) SelectWhere(ctx context.Context, collection string, filters ...record.Filter) ([]record.Record, error) {
	if err := c.observe(OpSelect, collection, nil); err != nil {
		return nil, err
	}
	if c.takeHidden(collection) {
		return nil, nil
	}
	return c.inner.SelectWhere(ctx, collection, filters...)
}
