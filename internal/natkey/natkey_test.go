package natkey

import (
	"strings"
	"testing"
)

func TestConstraintPK_Deterministic(t *testing.T) {
	first := ConstraintPK("services", []string{"shop_id", "client_key"}, []string{"s1", "k1"})
	for i := 0; i < 100; i++ {
		result := ConstraintPK("services", []string{"shop_id", "client_key"}, []string{"s1", "k1"})
		if result != first {
			t.Errorf("expected deterministic result %q, got %q on iteration %d", first, result, i)
		}
	}
}

func TestConstraintPK_HexFormat(t *testing.T) {
	pk := ConstraintPK("services", []string{"client_key"}, []string{"k1"})
	if len(pk) != 32 {
		t.Errorf("expected 32 hex characters, got %d (%q)", len(pk), pk)
	}
	for _, c := range pk {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("expected lowercase hex, got %q", pk)
			break
		}
	}
}

func TestConstraintPK_Uniqueness(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		fields     []string
		values     []string
	}{
		{"base", "services", []string{"shop_id", "client_key"}, []string{"s1", "k1"}},
		{"different collection", "staff", []string{"shop_id", "client_key"}, []string{"s1", "k1"}},
		{"different value", "services", []string{"shop_id", "client_key"}, []string{"s1", "k2"}},
		{"different owner", "services", []string{"shop_id", "client_key"}, []string{"s2", "k1"}},
		{"different field", "services", []string{"shop_id", "name"}, []string{"s1", "k1"}},
		{"shifted separator", "services", []string{"shop_id", "client_key"}, []string{"s1=k", "1"}},
	}

	seen := make(map[string]string)
	for _, tt := range tests {
		pk := ConstraintPK(tt.collection, tt.fields, tt.values)
		if other, ok := seen[pk]; ok {
			t.Errorf("%s collides with %s: %q", tt.name, other, pk)
		}
		seen[pk] = tt.name
	}
}

func TestConstraintPK_OrderMatters(t *testing.T) {
	a := ConstraintPK("services", []string{"shop_id", "client_key"}, []string{"s1", "k1"})
	b := ConstraintPK("services", []string{"client_key", "shop_id"}, []string{"k1", "s1"})
	if a == b {
		t.Error("expected field order to change the key")
	}
}

func TestConstraintPK_MissingValues(t *testing.T) {
	a := ConstraintPK("services", []string{"shop_id", "client_key"}, []string{"s1"})
	b := ConstraintPK("services", []string{"shop_id", "client_key"}, []string{"s1", ""})
	if a != b {
		t.Errorf("expected missing value to equal empty value, got %q and %q", a, b)
	}
}

func TestLocalID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := LocalID()
		if !strings.HasPrefix(id, LocalPrefix) {
			t.Fatalf("expected prefix %q, got %q", LocalPrefix, id)
		}
		if seen[id] {
			t.Fatalf("duplicate local id %q", id)
		}
		seen[id] = true
	}
}

func TestIsLocal(t *testing.T) {
	tests := []struct {
		id       string
		expected bool
	}{
		{"", true},
		{LocalID(), true},
		{"local_abc", true},
		{"0b6f3a52-1a2b-4c1d-9e8f-1234567890ab", false},
		{"localhost", false},
	}
	for _, tt := range tests {
		if got := IsLocal(tt.id); got != tt.expected {
			t.Errorf("IsLocal(%q) = %v, want %v", tt.id, got, tt.expected)
		}
	}
}

func TestClientKey_Unique(t *testing.T) {
	if ClientKey() == ClientKey() {
		t.Error("expected distinct client keys")
	}
}

func BenchmarkConstraintPK(b *testing.B) {
	fields := []string{"shop_id", "client_key"}
	values := []string{"shop-1", "key-1"}
	for i := 0; i < b.N; i++ {
		ConstraintPK("services", fields, values)
	}
}
