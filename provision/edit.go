package provision

import (
	"context"
	"fmt"
	"path"

	"github.com/jacentio/storefront/internal/natkey"
	"github.com/jacentio/storefront/reconcile"
	"github.com/jacentio/storefront/record"
	"github.com/jacentio/storefront/shadow"
	"github.com/jacentio/storefront/shop"
	"github.com/jacentio/storefront/writer"
)

// Outcome reports the result of one edit.
type Outcome struct {
	Kind   shop.Kind
	ID     string
	Status Status
	Notice string
	Err    error
}

// UpdateShop writes the shop's own fields. Local media refs are uploaded
// first.
func (p *Provisioner) UpdateShop(ctx context.Context, sh shop.Shop) (Outcome, error) {
	shopID := p.state.ShopID()
	if shopID == "" {
		sh.ID = p.state.Snapshot().Shop.ID
		p.state.SetShop(sh)
		return Outcome{ID: sh.ID, Status: StatusLocalOnly}, nil
	}

	sh.ID = shopID
	sh = p.resolveMedia(ctx, path.Join("shops", shopID), sh)
	saved, err := p.writers.Shops.Replace(ctx, shopID, sh)
	switch {
	case err == nil:
		p.state.SetShop(saved)
		return Outcome{ID: shopID, Status: StatusConfirmed}, nil
	case record.IsSchemaMissing(err):
		p.state.SetShop(sh)
		return Outcome{ID: shopID, Status: StatusLocalOnly, Notice: "shop changes are saved on this device only"}, nil
	default:
		p.logger.Error("shop update failed", "shopID", shopID, "error", err)
		return Outcome{ID: shopID, Status: StatusFailed, Err: err}, err
	}
}

// AddService creates one service for the current shop.
func (p *Provisioner) AddService(ctx context.Context, v shop.Service) (Outcome, error) {
	if err := shop.ValidateService(v); err != nil {
		return invalid(shop.KindService, err)
	}
	return add(ctx, p, p.writers.Services, shadow.Services, v)
}

// UpdateService replaces one service of the current shop.
func (p *Provisioner) UpdateService(ctx context.Context, v shop.Service) (Outcome, error) {
	if err := shop.ValidateService(v); err != nil {
		return invalid(shop.KindService, err)
	}
	return update(ctx, p, p.writers.Services, shadow.Services, v)
}

// DeleteService removes one service of the current shop.
func (p *Provisioner) DeleteService(ctx context.Context, id string) (Outcome, error) {
	return remove(ctx, p, p.writers.Services, shadow.Services, id)
}

// AddStaff creates one staff member for the current shop.
func (p *Provisioner) AddStaff(ctx context.Context, v shop.Staff) (Outcome, error) {
	if err := shop.ValidateStaff(v); err != nil {
		return invalid(shop.KindStaff, err)
	}
	return add(ctx, p, p.writers.Staff, shadow.Staff, v)
}

// UpdateStaff replaces one staff member of the current shop.
func (p *Provisioner) UpdateStaff(ctx context.Context, v shop.Staff) (Outcome, error) {
	if err := shop.ValidateStaff(v); err != nil {
		return invalid(shop.KindStaff, err)
	}
	return update(ctx, p, p.writers.Staff, shadow.Staff, v)
}

// DeleteStaff removes one staff member of the current shop.
func (p *Provisioner) DeleteStaff(ctx context.Context, id string) (Outcome, error) {
	return remove(ctx, p, p.writers.Staff, shadow.Staff, id)
}

// AddDiscount creates one discount for the current shop.
func (p *Provisioner) AddDiscount(ctx context.Context, v shop.Discount) (Outcome, error) {
	if err := shop.ValidateDiscount(v); err != nil {
		return invalid(shop.KindDiscount, err)
	}
	return add(ctx, p, p.writers.Discounts, shadow.Discounts, v)
}

// UpdateDiscount replaces one discount of the current shop.
func (p *Provisioner) UpdateDiscount(ctx context.Context, v shop.Discount) (Outcome, error) {
	if err := shop.ValidateDiscount(v); err != nil {
		return invalid(shop.KindDiscount, err)
	}
	return update(ctx, p, p.writers.Discounts, shadow.Discounts, v)
}

// DeleteDiscount removes one discount of the current shop.
func (p *Provisioner) DeleteDiscount(ctx context.Context, id string) (Outcome, error) {
	return remove(ctx, p, p.writers.Discounts, shadow.Discounts, id)
}

func invalid(k shop.Kind, err error) (Outcome, error) {
	err = fmt.Errorf("%w: %w", ErrInvalidDraft, err)
	return Outcome{Kind: k, Status: StatusFailed, Err: err}, err
}

// add creates v. Before the shop exists, or when the collection is missing,
// v is kept in shadow state under a local id.
func add[T shop.Dependent[T]](ctx context.Context, p *Provisioner, w *writer.Writer[T], c shadow.Collection[T], v T) (Outcome, error) {
	key := v.IdempotencyKey()
	if key == "" {
		key = natkey.ClientKey()
	}
	local := v.WithIdentity(natkey.LocalID(), key)

	shopID := p.state.ShopID()
	if shopID == "" {
		shadow.Append(p.state, c, local)
		return Outcome{Kind: c.Kind, ID: local.EntityID(), Status: StatusLocalOnly}, nil
	}

	saved, err := w.Create(ctx, shopID, local)
	switch {
	case err == nil:
		shadow.Append(p.state, c, saved)
		refresh(ctx, p, c, shopID, saved.EntityID(), "")
		return Outcome{Kind: c.Kind, ID: saved.EntityID(), Status: StatusConfirmed}, nil
	case record.IsSchemaMissing(err):
		shadow.Append(p.state, c, local)
		return Outcome{Kind: c.Kind, ID: local.EntityID(), Status: StatusLocalOnly, Notice: fallbackNotice("", c.Kind)}, nil
	default:
		p.logger.Error("add failed", "shopID", shopID, "kind", c.Kind, "label", v.Label(), "error", err)
		return Outcome{Kind: c.Kind, Status: StatusFailed, Err: err}, err
	}
}

// update replaces the item with v's id. Local items are updated in shadow
// state only.
func update[T shop.Dependent[T]](ctx context.Context, p *Provisioner, w *writer.Writer[T], c shadow.Collection[T], v T) (Outcome, error) {
	id := v.EntityID()
	cur, ok := shadow.Find(p.state, c, id)
	if !ok {
		return Outcome{Kind: c.Kind, ID: id, Status: StatusFailed, Err: ErrUnknownItem}, ErrUnknownItem
	}
	if v.IdempotencyKey() == "" {
		v = v.WithIdentity(id, cur.IdempotencyKey())
	}

	shopID := p.state.ShopID()
	if shopID == "" || natkey.IsLocal(id) {
		shadow.Put(p.state, c, v)
		return Outcome{Kind: c.Kind, ID: id, Status: StatusLocalOnly}, nil
	}

	saved, err := w.Replace(ctx, id, v)
	switch {
	case err == nil:
		shadow.Put(p.state, c, saved)
		return Outcome{Kind: c.Kind, ID: id, Status: StatusConfirmed}, nil
	case record.IsSchemaMissing(err):
		shadow.Put(p.state, c, v)
		return Outcome{Kind: c.Kind, ID: id, Status: StatusLocalOnly, Notice: fallbackNotice("", c.Kind)}, nil
	default:
		p.logger.Error("update failed", "shopID", shopID, "kind", c.Kind, "id", id, "error", err)
		return Outcome{Kind: c.Kind, ID: id, Status: StatusFailed, Err: err}, err
	}
}

// remove deletes the item with id. The shadow item is dropped as soon as
// the store confirms; a failed delete leaves it in place.
func remove[T shop.Dependent[T]](ctx context.Context, p *Provisioner, w *writer.Writer[T], c shadow.Collection[T], id string) (Outcome, error) {
	if _, ok := shadow.Find(p.state, c, id); !ok {
		return Outcome{Kind: c.Kind, ID: id, Status: StatusFailed, Err: ErrUnknownItem}, ErrUnknownItem
	}

	shopID := p.state.ShopID()
	if shopID == "" || natkey.IsLocal(id) {
		shadow.Remove(p.state, c, id)
		return Outcome{Kind: c.Kind, ID: id, Status: StatusLocalOnly}, nil
	}

	err := w.Delete(ctx, id)
	switch {
	case err == nil:
		shadow.Remove(p.state, c, id)
		refresh(ctx, p, c, shopID, "", id)
		return Outcome{Kind: c.Kind, ID: id, Status: StatusConfirmed}, nil
	case record.IsSchemaMissing(err):
		shadow.Remove(p.state, c, id)
		return Outcome{Kind: c.Kind, ID: id, Status: StatusLocalOnly, Notice: fallbackNotice("", c.Kind)}, nil
	default:
		p.logger.Error("delete failed", "shopID", shopID, "kind", c.Kind, "id", id, "error", err)
		return Outcome{Kind: c.Kind, ID: id, Status: StatusFailed, Err: err}, err
	}
}

// refresh reconciles after a structural change to collection c. A failed
// read keeps the optimistic shadow state, and a kind whose read lags the
// edit keeps its optimistic collection.
func refresh[T shop.Dependent[T]](ctx context.Context, p *Provisioner, c shadow.Collection[T], shopID, added, removed string) {
	optimistic := p.state.Snapshot()
	merged, rep := p.reconciler.Fetch(ctx, shopID, optimistic)
	if rep.Err() != nil {
		p.logger.Warn("refresh after edit incomplete", "shopID", shopID, "error", rep.Err())
	}
	if rep.Parent.Source != reconcile.SourceStore {
		return
	}

	merged = keepIfLagging(p, c, merged, optimistic, rep, added, removed)
	if c.Kind != shop.KindService {
		merged = keepIfLagging(p, shadow.Services, merged, optimistic, rep, "", "")
	}
	if c.Kind != shop.KindStaff {
		merged = keepIfLagging(p, shadow.Staff, merged, optimistic, rep, "", "")
	}
	if c.Kind != shop.KindDiscount {
		merged = keepIfLagging(p, shadow.Discounts, merged, optimistic, rep, "", "")
	}
	p.state.Replace(merged)
}

// keepIfLagging returns merged with collection c taken from optimistic when
// the store read of c is behind the local edit. The read lags when added is
// missing or removed is still present. An empty read lags while optimistic
// holds persisted items.
func keepIfLagging[T shop.Dependent[T]](p *Provisioner, c shadow.Collection[T], merged, optimistic shop.Aggregate, rep reconcile.Report, added, removed string) shop.Aggregate {
	if rep.Of(c.Kind).Source != reconcile.SourceStore {
		return merged
	}
	read, local := c.Items(merged), c.Items(optimistic)

	lagging := false
	switch {
	case added != "" && !contains(read, added):
		lagging = true
	case removed != "" && contains(read, removed):
		lagging = true
	case rep.Of(c.Kind).Fetched == 0 && hasPersisted(local):
		lagging = true
	}
	if !lagging {
		return merged
	}
	p.logger.Warn("store read lags local edit, keeping local collection",
		"shopID", rep.ShopID,
		"kind", c.Kind,
		"read", len(read),
		"local", len(local),
	)
	return c.With(merged, local)
}

func contains[T shop.Dependent[T]](items []T, id string) bool {
	for _, it := range items {
		if it.EntityID() == id {
			return true
		}
	}
	return false
}

func hasPersisted[T shop.Dependent[T]](items []T) bool {
	for _, it := range items {
		if !natkey.IsLocal(it.EntityID()) {
			return true
		}
	}
	return false
}
