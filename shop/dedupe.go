package shop

// Dedupe keeps the first item for each key, preserving order.
func Dedupe[T any, K comparable](items []T, key func(T) K) []T {
	if items == nil {
		return nil
	}
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// DedupeByID collapses dependents sharing an id. Items without an id are
// compared by client key; items with neither are always kept.
func DedupeByID[T Dependent[T]](items []T) []T {
	type identity struct {
		id, key string
		pos     int
	}
	i := -1
	return Dedupe(items, func(v T) identity {
		i++
		switch {
		case v.EntityID() != "":
			return identity{id: v.EntityID()}
		case v.IdempotencyKey() != "":
			return identity{key: v.IdempotencyKey()}
		}
		return identity{pos: i + 1}
	})
}

// DedupeLeaves collapses exact (start, end, label) duplicates. Overlapping
// but distinct ranges are kept.
func DedupeLeaves(leaves []LeaveRange) []LeaveRange {
	return Dedupe(leaves, func(l LeaveRange) LeaveRange { return l })
}

// DedupeSpecialDays keeps the first override for each date.
func DedupeSpecialDays(days []SpecialDay) []SpecialDay {
	return Dedupe(days, func(d SpecialDay) string { return d.Date })
}
