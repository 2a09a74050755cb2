// Package provision saves shop aggregates to an unreliable record store.
//
// Save writes the shop, then its services, staff and discounts one item at
// a time. Each item is isolated: a missing collection switches that kind to
// local-only mode, transient errors are retried a bounded number of times,
// and permanent rejections are reported without touching sibling items.
// After the writes settle the aggregate is read back and, if the services
// read comes back empty despite confirmed writes, repaired once by upserting
// the intended services under their client keys.
//
// The edit methods map one user action on a persisted shop to exactly one
// store write and update the shadow state optimistically.
package provision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jacentio/storefront/media"
	"github.com/jacentio/storefront/reconcile"
	"github.com/jacentio/storefront/record"
	"github.com/jacentio/storefront/shadow"
	"github.com/jacentio/storefront/shop"
	"github.com/jacentio/storefront/writer"
)

var (
	// ErrInvalidDraft is returned when validation rejects an aggregate or item
	// before any store traffic.
	ErrInvalidDraft = errors.New("provision: invalid draft")

	// ErrUnknownItem is returned when an edit targets an item that is not in
	// the shadow state.
	ErrUnknownItem = errors.New("provision: item not in local state")
)

// Provisioner orchestrates writes of one shop aggregate.
type Provisioner struct {
	config     Config
	writers    writer.Set
	state      *shadow.State
	reconciler *reconcile.Reconciler
	media      *media.Resolver
	logger     *slog.Logger
}

// New creates a Provisioner over client. Every store call is bounded by
// config.Collections.CallTimeout. If logger is nil, slog.Default() is used.
func New(client record.Client, state *shadow.State, config Config, logger *slog.Logger) *Provisioner {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	if state == nil {
		state = shadow.New(shop.Aggregate{})
	}
	client = record.WithTimeout(client, config.Collections.CallTimeout)
	return &Provisioner{
		config:     config,
		writers:    writer.NewSet(client, config.Collections),
		state:      state,
		reconciler: reconcile.New(client, config.Collections, state, logger),
		media:      media.NewResolver(nil, logger),
		logger:     logger,
	}
}

// WithUploader sets the uploader used to resolve local media refs.
func (p *Provisioner) WithUploader(u media.Uploader) *Provisioner {
	p.media = media.NewResolver(u, p.logger)
	return p
}

// State returns the shadow state the provisioner edits.
func (p *Provisioner) State() *shadow.State {
	return p.state
}

// Reconcile refreshes the shadow state from the store.
func (p *Provisioner) Reconcile(ctx context.Context, shopID string) (shop.Aggregate, reconcile.Report) {
	return p.reconciler.Reconcile(ctx, shopID)
}

// resolveMedia uploads local refs of sh and cleans the rest.
func (p *Provisioner) resolveMedia(ctx context.Context, keyPrefix string, sh shop.Shop) shop.Shop {
	res := p.media.Resolve(ctx, keyPrefix, sh.Logo, sh.Images)
	sh.Logo, sh.Images = res.Logo, res.Images
	return sh
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
