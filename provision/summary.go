package provision

import (
	"fmt"
	"strings"

	"github.com/jacentio/storefront/shop"
)

// Status is the outcome of writing one item.
type Status string

const (
	// StatusConfirmed means the store accepted the write.
	StatusConfirmed Status = "confirmed"
	// StatusLocalOnly means the item lives only in shadow state, either
	// because its collection is missing or because the shop is not yet saved.
	StatusLocalOnly Status = "local-only"
	// StatusPending means retries ran out on transient errors.
	StatusPending Status = "pending"
	// StatusFailed means the store rejected the write.
	StatusFailed Status = "failed"
)

// KindCounts tallies the items of one kind written by a save.
type KindCounts struct {
	Intended  int
	Confirmed int
	LocalOnly int
	Pending   int
	Failed    int
}

// ItemFailure describes one dependent that was not confirmed.
type ItemFailure struct {
	Kind      shop.Kind
	Label     string
	ClientKey string
	Status    Status
	Err       error
}

func (f ItemFailure) Error() string {
	return fmt.Sprintf("%s %q %s: %v", f.Kind, f.Label, f.Status, f.Err)
}

// Summary reports the outcome of one Save.
type Summary struct {
	// Success is true when the shop itself was written.
	Success bool
	ShopID  string

	Counts map[shop.Kind]KindCounts

	// Failed lists permanent rejections; Pending lists items whose retries
	// ran out. Both remain in shadow state under local ids.
	Failed  []ItemFailure
	Pending []ItemFailure

	// SoftFallback is set when a kind went local-only because its collection
	// is missing. Notice is the user-facing explanation.
	SoftFallback bool
	Notice       string

	// Repaired is set when the services collection was re-upserted after
	// reading back empty.
	Repaired bool

	// ParentErr is the shop write error when Success is false.
	ParentErr error
}

// Of returns the counts for kind k.
func (s Summary) Of(k shop.Kind) KindCounts {
	return s.Counts[k]
}

// FullyConfirmed reports whether the shop and every intended dependent were
// confirmed by the store.
func (s Summary) FullyConfirmed() bool {
	if !s.Success {
		return false
	}
	for _, c := range s.Counts {
		if c.Confirmed != c.Intended {
			return false
		}
	}
	return true
}

func (s Summary) String() string {
	if !s.Success {
		return fmt.Sprintf("shop not saved: %v", s.ParentErr)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "shop %s saved", s.ShopID)
	for _, k := range shop.Kinds {
		c := s.Counts[k]
		fmt.Fprintf(&b, "; %s %d/%d confirmed", k, c.Confirmed, c.Intended)
		if c.LocalOnly > 0 {
			fmt.Fprintf(&b, ", %d local only", c.LocalOnly)
		}
		if c.Pending > 0 {
			fmt.Fprintf(&b, ", %d pending", c.Pending)
		}
		if c.Failed > 0 {
			fmt.Fprintf(&b, ", %d failed", c.Failed)
		}
	}
	if s.Repaired {
		b.WriteString("; services repaired")
	}
	if s.Notice != "" {
		b.WriteString("; ")
		b.WriteString(s.Notice)
	}
	return b.String()
}

func (s *Summary) count(k shop.Kind, fn func(*KindCounts)) {
	c := s.Counts[k]
	fn(&c)
	s.Counts[k] = c
}
