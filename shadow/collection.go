package shadow

import (
	"github.com/jacentio/storefront/internal/natkey"
	"github.com/jacentio/storefront/shop"
)

// Collection selects one dependent collection of an aggregate.
type Collection[T shop.Dependent[T]] struct {
	Kind shop.Kind
	get  func(*shop.Aggregate) *[]T
}

var (
	Services = Collection[shop.Service]{
		Kind: shop.KindService,
		get:  func(a *shop.Aggregate) *[]shop.Service { return &a.Services },
	}
	Staff = Collection[shop.Staff]{
		Kind: shop.KindStaff,
		get:  func(a *shop.Aggregate) *[]shop.Staff { return &a.Staff },
	}
	Discounts = Collection[shop.Discount]{
		Kind: shop.KindDiscount,
		get:  func(a *shop.Aggregate) *[]shop.Discount { return &a.Discounts },
	}
)

// Items returns the collection's items in a.
func (c Collection[T]) Items(a shop.Aggregate) []T {
	return *c.get(&a)
}

// With returns a copy of a with the collection replaced by items.
func (c Collection[T]) With(a shop.Aggregate, items []T) shop.Aggregate {
	*c.get(&a) = items
	return a
}

// Append adds items to the end of the collection. Items without an id get a
// local one. Items whose id is already present are dropped.
func Append[T shop.Dependent[T]](s *State, c Collection[T], items ...T) []T {
	added := make([]T, 0, len(items))
	for _, it := range items {
		if it.EntityID() == "" {
			it = it.WithIdentity(natkey.LocalID(), it.IdempotencyKey())
		}
		added = append(added, it)
	}
	s.update(func(a *shop.Aggregate) {
		cur := *c.get(a)
		*c.get(a) = append(append(make([]T, 0, len(cur)+len(added)), cur...), added...)
	})
	return added
}

// Put replaces the item with the same id. It reports whether one was found.
func Put[T shop.Dependent[T]](s *State, c Collection[T], item T) bool {
	return Swap(s, c, item.EntityID(), item)
}

// Swap replaces the item with id by item, which may carry a different id.
// It reports whether one was found.
func Swap[T shop.Dependent[T]](s *State, c Collection[T], id string, item T) bool {
	found := false
	s.update(func(a *shop.Aggregate) {
		cur := *c.get(a)
		next := make([]T, len(cur))
		for i, it := range cur {
			if !found && it.EntityID() == id {
				it, found = item, true
			}
			next[i] = it
		}
		*c.get(a) = next
	})
	return found
}

// Remove drops the item with id. It reports whether one was found.
func Remove[T shop.Dependent[T]](s *State, c Collection[T], id string) bool {
	found := false
	s.update(func(a *shop.Aggregate) {
		cur := *c.get(a)
		next := make([]T, 0, len(cur))
		for _, it := range cur {
			if it.EntityID() == id {
				found = true
				continue
			}
			next = append(next, it)
		}
		*c.get(a) = next
	})
	return found
}

// Find returns the item with id from the current snapshot.
func Find[T shop.Dependent[T]](s *State, c Collection[T], id string) (T, bool) {
	for _, it := range c.Items(s.Snapshot()) {
		if it.EntityID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}
