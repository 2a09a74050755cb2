// Package shadow holds the in-memory aggregate being edited.
//
// The state is authoritative whenever the record store is degraded. Every
// change builds a new aggregate and swaps it in whole, so a concurrent
// reader sees either the old collection or the new one, never a partial
// edit. Each collection is deduplicated by id on the way in.
package shadow

import (
	"sync"
	"sync/atomic"

	"github.com/jacentio/storefront/internal/natkey"
	"github.com/jacentio/storefront/shop"
)

// State is the local shadow of one shop aggregate.
type State struct {
	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[shop.Aggregate]
}

// New creates a State holding initial.
func New(initial shop.Aggregate) *State {
	s := &State{}
	s.store(initial)
	return s
}

// Snapshot returns a deep copy of the current aggregate.
func (s *State) Snapshot() shop.Aggregate {
	return s.cur.Load().Clone()
}

// ShopID returns the persisted id of the shop, or "" while it only exists
// locally.
func (s *State) ShopID() string {
	id := s.cur.Load().Shop.ID
	if natkey.IsLocal(id) {
		return ""
	}
	return id
}

// Replace swaps in a whole aggregate.
func (s *State) Replace(a shop.Aggregate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(a)
}

// SetShop replaces the shop record, keeping dependents.
func (s *State) SetShop(sh shop.Shop) {
	s.update(func(a *shop.Aggregate) { a.Shop = sh })
}

func (s *State) update(fn func(*shop.Aggregate)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur.Load().Clone()
	fn(&next)
	s.store(next)
}

// store normalizes a and publishes it. Callers hold mu or own s exclusively.
func (s *State) store(a shop.Aggregate) {
	a = a.Clone()
	a.Shop.BusinessHours = shop.NormalizeHours(a.Shop.BusinessHours)
	a.Shop.SpecialDays = shop.DedupeSpecialDays(a.Shop.SpecialDays)
	a.Services = shop.DedupeByID(a.Services)
	a.Staff = shop.DedupeByID(a.Staff)
	a.Discounts = shop.DedupeByID(a.Discounts)
	s.cur.Store(&a)
}
