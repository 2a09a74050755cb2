// Package reconcile rebuilds a shop aggregate from the record store and
// merges it with local shadow state.
//
// A failed read never replaces good local data: if the shop read fails the
// base aggregate comes back unchanged, and if one dependent read fails that
// collection keeps its base value.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/storefront/internal/natkey"
	"github.com/jacentio/storefront/record"
	"github.com/jacentio/storefront/shadow"
	"github.com/jacentio/storefront/shop"
)

// Source says where a collection in a merged aggregate came from.
type Source string

const (
	SourceStore    Source = "store"
	SourceFallback Source = "fallback"
)

// KindReport describes the read of one collection.
type KindReport struct {
	Source  Source
	Fetched int
	Err     error
}

// Report describes one Fetch.
type Report struct {
	ShopID string
	Parent KindReport
	Kinds  map[shop.Kind]KindReport
}

// Of returns the report for kind k.
func (r Report) Of(k shop.Kind) KindReport {
	return r.Kinds[k]
}

// Err joins every read error, or returns nil if all reads succeeded.
func (r Report) Err() error {
	errs := []error{r.Parent.Err}
	for _, k := range shop.Kinds {
		errs = append(errs, r.Kinds[k].Err)
	}
	return errors.Join(errs...)
}

// Reconciler reads aggregates from a record store.
type Reconciler struct {
	client record.Client
	config record.Config
	state  *shadow.State
	logger *slog.Logger
}

// New creates a Reconciler. state may be nil when only Fetch is used.
// If logger is nil, slog.Default() is used.
func New(client record.Client, config record.Config, state *shadow.State, logger *slog.Logger) *Reconciler {
	config.Validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{client: client, config: config, state: state, logger: logger}
}

// Reconcile fetches shopID with the current shadow state as base and
// replaces the shadow state with the result.
func (r *Reconciler) Reconcile(ctx context.Context, shopID string) (shop.Aggregate, Report) {
	base := r.state.Snapshot()
	merged, rep := r.Fetch(ctx, shopID, base)
	if rep.Parent.Source == SourceStore {
		r.state.Replace(merged)
	}
	return merged, rep
}

// Fetch reads the shop and its dependents concurrently and merges them over
// base. It does not touch shadow state.
func (r *Reconciler) Fetch(ctx context.Context, shopID string, base shop.Aggregate) (shop.Aggregate, Report) {
	type result struct {
		rows []record.Record
		err  error
	}
	var parent, services, staff, discounts result

	owner := record.Eq(r.config.OwnerField, shopID)
	read := func(dst *result, collection string, filter record.Filter) func() error {
		return func() error {
			dst.rows, dst.err = r.client.SelectWhere(ctx, collection, filter)
			return nil // each read is isolated
		}
	}

	var g errgroup.Group
	g.Go(read(&parent, r.config.Shops, record.Eq("id", shopID)))
	g.Go(read(&services, r.config.Services, owner))
	g.Go(read(&staff, r.config.Staff, owner))
	g.Go(read(&discounts, r.config.Discounts, owner))
	_ = g.Wait()

	rep := Report{
		ShopID: shopID,
		Kinds:  make(map[shop.Kind]KindReport, len(shop.Kinds)),
	}

	if parent.err == nil && len(parent.rows) == 0 {
		parent.err = record.NewError(record.Permanent, "select", r.config.Shops, record.ErrNotFound)
	}
	if parent.err != nil {
		r.logger.Warn("shop read failed, keeping local state",
			"shopID", shopID,
			"error", parent.err,
		)
		rep.Parent = KindReport{Source: SourceFallback, Err: parent.err}
		for _, k := range shop.Kinds {
			rep.Kinds[k] = KindReport{Source: SourceFallback}
		}
		return base.Clone(), rep
	}

	out := shop.Aggregate{Shop: shop.ShopFromRecord(parent.rows[0])}
	rep.Parent = KindReport{Source: SourceStore, Fetched: 1}

	var kr KindReport
	out.Services, kr = mergeKind(r, shopID, shadow.Services, services.rows, services.err, owned(shop.ServiceFromRecord, r.config.OwnerField), base)
	rep.Kinds[shop.KindService] = kr
	out.Staff, kr = mergeKind(r, shopID, shadow.Staff, staff.rows, staff.err, owned(shop.StaffFromRecord, r.config.OwnerField), base)
	rep.Kinds[shop.KindStaff] = kr
	out.Discounts, kr = mergeKind(r, shopID, shadow.Discounts, discounts.rows, discounts.err, owned(shop.DiscountFromRecord, r.config.OwnerField), base)
	rep.Kinds[shop.KindDiscount] = kr

	return out, rep
}

// owned adapts a dependent decoder to records that store the owning shop id
// under field.
func owned[T any](decode func(record.Record) T, field string) func(record.Record) T {
	return func(rec record.Record) T {
		return decode(rec.Rename(field, shop.OwnerField))
	}
}

func mergeKind[T shop.Dependent[T]](
	r *Reconciler,
	shopID string,
	c shadow.Collection[T],
	rows []record.Record,
	err error,
	decode func(record.Record) T,
	base shop.Aggregate,
) ([]T, KindReport) {
	baseItems := c.Items(base.Clone())
	if err != nil {
		r.logger.Warn("dependent read failed, keeping local collection",
			"shopID", shopID,
			"kind", c.Kind,
			"error", err,
		)
		return baseItems, KindReport{Source: SourceFallback, Err: err}
	}
	return Merge(rows, decode, baseItems), KindReport{Source: SourceStore, Fetched: len(rows)}
}

// Merge orders fetched records by creation time then id, appends base items
// that have not been persisted yet, and deduplicates by id. A local item
// whose client key matches a fetched record is already persisted and is
// dropped.
func Merge[T shop.Dependent[T]](fetched []record.Record, decode func(record.Record) T, base []T) []T {
	sorted := SortRecords(fetched)
	out := make([]T, 0, len(sorted)+len(base))
	keys := make(map[string]struct{}, len(sorted))
	for _, rec := range sorted {
		v := decode(rec)
		if k := v.IdempotencyKey(); k != "" {
			keys[k] = struct{}{}
		}
		out = append(out, v)
	}
	for _, b := range base {
		if !natkey.IsLocal(b.EntityID()) {
			continue
		}
		if _, persisted := keys[b.IdempotencyKey()]; persisted {
			continue
		}
		out = append(out, b)
	}
	return shop.DedupeByID(out)
}

// SortRecords returns records ordered by created_at, then id. Timestamps are
// compared as instants; unparseable ones sort first.
func SortRecords(rows []record.Record) []record.Record {
	type keyed struct {
		at  time.Time
		id  string
		rec record.Record
	}
	ks := make([]keyed, len(rows))
	for i, rec := range rows {
		at, _ := time.Parse(time.RFC3339Nano, rec.String("created_at"))
		ks[i] = keyed{at: at, id: rec.ID(), rec: rec}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if !ks[i].at.Equal(ks[j].at) {
			return ks[i].at.Before(ks[j].at)
		}
		return ks[i].id < ks[j].id
	})
	out := make([]record.Record, len(ks))
	for i, k := range ks {
		out[i] = k.rec
	}
	return out
}
