package provision

import (
	"context"
	"fmt"
	"path"

	"github.com/cenkalti/backoff/v5"

	"github.com/jacentio/storefront/internal/natkey"
	"github.com/jacentio/storefront/reconcile"
	"github.com/jacentio/storefront/record"
	"github.com/jacentio/storefront/shadow"
	"github.com/jacentio/storefront/shop"
	"github.com/jacentio/storefront/writer"
)

// Save writes draft and returns the aggregate as best known afterwards.
//
// A draft whose shop has no id, or a local one, is created; otherwise the
// shop is replaced and only dependents with local ids are written. The
// returned error is non-nil only when validation rejects the draft or the
// shop write fails; dependent outcomes are reported in the Summary.
func (p *Provisioner) Save(ctx context.Context, draft shop.Aggregate) (shop.Aggregate, Summary, error) {
	sum := Summary{Counts: make(map[shop.Kind]KindCounts, len(shop.Kinds))}

	if err := shop.Validate(draft); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidDraft, err)
		sum.ParentErr = err
		return p.state.Snapshot(), sum, err
	}

	persisted := !natkey.IsLocal(draft.Shop.ID)
	draft = prepare(draft, persisted)
	p.state.Replace(draft)

	prefix := path.Join("shops", "drafts", natkey.ClientKey())
	if persisted {
		prefix = path.Join("shops", draft.Shop.ID)
	}
	sh := p.resolveMedia(ctx, prefix, draft.Shop)
	p.state.SetShop(sh)

	saved, err := p.writeShop(ctx, sh, persisted)
	if err != nil {
		p.logger.Error("shop write failed, skipping dependents",
			"shopID", sh.ID,
			"error", err,
		)
		sum.ParentErr = err
		return p.state.Snapshot(), sum, err
	}
	p.state.SetShop(saved)
	sum.Success = true
	sum.ShopID = saved.ID

	services := flush(ctx, p, p.writers.Services, shadow.Services, saved.ID, persisted, &sum)
	_ = flush(ctx, p, p.writers.Staff, shadow.Staff, saved.ID, persisted, &sum)
	_ = flush(ctx, p, p.writers.Discounts, shadow.Discounts, saved.ID, persisted, &sum)

	if err := sleep(ctx, p.config.SettleDelay); err != nil {
		p.logger.Warn("settle wait interrupted", "shopID", saved.ID, "error", err)
	}

	accumulated := p.state.Snapshot()
	merged, rep := p.reconciler.Fetch(ctx, saved.ID, accumulated)
	if readBackEmpty(rep, shop.KindService, sum) {
		sum.Repaired = true
		p.repair(ctx, saved.ID, services)
		merged, rep = p.reconciler.Fetch(ctx, saved.ID, accumulated)
	}
	final := settle(merged, rep, accumulated, sum)

	p.state.Replace(final)
	p.logger.Info("shop saved",
		"shopID", saved.ID,
		"services", sum.Of(shop.KindService).Confirmed,
		"staff", sum.Of(shop.KindStaff).Confirmed,
		"discounts", sum.Of(shop.KindDiscount).Confirmed,
		"failed", len(sum.Failed),
		"pending", len(sum.Pending),
		"repaired", sum.Repaired,
	)
	return p.state.Snapshot(), sum, nil
}

// prepare gives every dependent a client key and a local id. When the shop
// is new, every dependent is treated as unsaved.
func prepare(a shop.Aggregate, persisted bool) shop.Aggregate {
	a = a.Clone()
	if !persisted {
		a.Shop.ID = ""
	}
	a.Services = identify(a.Services, persisted)
	a.Staff = identify(a.Staff, persisted)
	a.Discounts = identify(a.Discounts, persisted)
	return a
}

func identify[T shop.Dependent[T]](items []T, persisted bool) []T {
	for i, it := range items {
		key := it.IdempotencyKey()
		if key == "" {
			key = natkey.ClientKey()
		}
		id := it.EntityID()
		if id == "" || (!persisted && !natkey.IsLocal(id)) {
			id = natkey.LocalID()
		}
		items[i] = it.WithIdentity(id, key)
	}
	return items
}

func (p *Provisioner) writeShop(ctx context.Context, sh shop.Shop, persisted bool) (shop.Shop, error) {
	if persisted {
		return p.writers.Shops.Replace(ctx, sh.ID, sh)
	}
	return p.writers.Shops.Create(ctx, "", sh)
}

// flush writes the unsaved items of one kind in order and returns the
// intended versions of those the store confirmed. The first SchemaMissing
// error switches the rest of the kind to local-only mode.
func flush[T shop.Dependent[T]](
	ctx context.Context,
	p *Provisioner,
	w *writer.Writer[T],
	c shadow.Collection[T],
	shopID string,
	persisted bool,
	sum *Summary,
) []T {
	var confirmed []T
	localOnly := false

	for _, it := range c.Items(p.state.Snapshot()) {
		if persisted && !natkey.IsLocal(it.EntityID()) {
			continue
		}
		sum.count(c.Kind, func(k *KindCounts) { k.Intended++ })

		if localOnly {
			sum.count(c.Kind, func(k *KindCounts) { k.LocalOnly++ })
			continue
		}

		saved, err := createWithRetry(ctx, p, w, shopID, it)
		switch {
		case err == nil:
			shadow.Swap(p.state, c, it.EntityID(), saved)
			confirmed = append(confirmed, it)
			sum.count(c.Kind, func(k *KindCounts) { k.Confirmed++ })

		case record.IsSchemaMissing(err):
			localOnly = true
			sum.SoftFallback = true
			sum.Notice = fallbackNotice(sum.Notice, c.Kind)
			sum.count(c.Kind, func(k *KindCounts) { k.LocalOnly++ })
			p.logger.Warn("collection missing, keeping items locally",
				"shopID", shopID,
				"kind", c.Kind,
				"collection", w.Collection(),
			)

		case record.IsTransient(err):
			sum.Pending = append(sum.Pending, failure(c.Kind, it, StatusPending, err))
			sum.count(c.Kind, func(k *KindCounts) { k.Pending++ })
			p.logger.Warn("item not confirmed after retries",
				"shopID", shopID,
				"kind", c.Kind,
				"label", it.Label(),
				"error", err,
			)

		default:
			sum.Failed = append(sum.Failed, failure(c.Kind, it, StatusFailed, err))
			sum.count(c.Kind, func(k *KindCounts) { k.Failed++ })
			p.logger.Error("item rejected",
				"shopID", shopID,
				"kind", c.Kind,
				"label", it.Label(),
				"error", err,
			)
		}
	}
	return confirmed
}

// createWithRetry retries transient create failures with exponential
// backoff, up to MaxItemAttempts tries.
func createWithRetry[T any](ctx context.Context, p *Provisioner, w *writer.Writer[T], shopID string, v T) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.RetryInterval

	out, err := backoff.Retry(ctx, func() (T, error) {
		out, err := w.Create(ctx, shopID, v)
		if err != nil && !record.IsTransient(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(p.config.MaxItemAttempts)))
	if err != nil {
		return out, record.Classify("insert", w.Collection(), err)
	}
	return out, nil
}

// repair upserts the confirmed services under their client keys so a lost
// write is recreated without duplicating a slow one.
func (p *Provisioner) repair(ctx context.Context, shopID string, services []shop.Service) {
	p.logger.Warn("services read back empty, repairing",
		"shopID", shopID,
		"count", len(services),
	)
	owner := p.config.Collections.OwnerField
	for _, svc := range services {
		_, err := p.writers.Services.Upsert(ctx, shopID, svc.WithIdentity("", svc.ClientKey), owner, "client_key")
		if err != nil {
			p.logger.Error("service repair failed",
				"shopID", shopID,
				"label", svc.Label(),
				"error", err,
			)
		}
	}
}

// readBackEmpty reports whether the store returned no items of kind k even
// though the save confirmed some.
func readBackEmpty(rep reconcile.Report, k shop.Kind, sum Summary) bool {
	kr := rep.Of(k)
	return kr.Source == reconcile.SourceStore && kr.Fetched == 0 && sum.Of(k).Confirmed > 0
}

// settle picks the final aggregate. Where the store still reads back empty a
// kind the save confirmed, the accumulated shadow collection wins.
func settle(merged shop.Aggregate, rep reconcile.Report, accumulated shop.Aggregate, sum Summary) shop.Aggregate {
	if readBackEmpty(rep, shop.KindService, sum) {
		merged.Services = accumulated.Clone().Services
	}
	if readBackEmpty(rep, shop.KindStaff, sum) {
		merged.Staff = accumulated.Clone().Staff
	}
	if readBackEmpty(rep, shop.KindDiscount, sum) {
		merged.Discounts = accumulated.Clone().Discounts
	}
	return merged
}

func failure[T shop.Dependent[T]](k shop.Kind, it T, status Status, err error) ItemFailure {
	return ItemFailure{
		Kind:      k,
		Label:     it.Label(),
		ClientKey: it.IdempotencyKey(),
		Status:    status,
		Err:       err,
	}
}

func fallbackNotice(prev string, k shop.Kind) string {
	msg := fmt.Sprintf("%s are saved on this device only until the store supports them", plural(k))
	if prev == "" {
		return msg
	}
	return prev + "; " + msg
}

func plural(k shop.Kind) string {
	switch k {
	case shop.KindStaff:
		return "staff"
	default:
		return string(k) + "s"
	}
}
