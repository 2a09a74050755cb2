package dynamo

import "github.com/jacentio/storefront/record"

// Config holds configuration for the Store.
type Config struct {
	// KeyTable is the name of the natural-key table.
	// Default: "storefront_natural_keys"
	KeyTable string

	// Indexes maps table name to attribute name to the GSI that has that
	// attribute as its partition key.
	Indexes map[string]map[string]string

	// NaturalKeys maps table name to the fields that identify a record
	// independently of its id. Inserts carrying all of them are guarded by
	// the natural-key table.
	NaturalKeys map[string][]string
}

// DefaultConfig returns a config that indexes the owner field of every
// dependent collection and keys dependents by (owner, client_key).
func DefaultConfig() Config {
	return ConfigFor(record.DefaultConfig())
}

// ConfigFor derives indexes and natural keys from a collection layout.
// Owner indexes are named "<owner field>-index".
func ConfigFor(rc record.Config) Config {
	cfg := Config{
		KeyTable:    "storefront_natural_keys",
		Indexes:     make(map[string]map[string]string),
		NaturalKeys: make(map[string][]string),
	}
	for _, rel := range rc.Registry().AllRelationships() {
		cfg.Indexes[rel.ChildCollection] = map[string]string{
			rel.OwnerField: rel.OwnerField + "-index",
		}
		cfg.NaturalKeys[rel.ChildCollection] = []string{rel.OwnerField, "client_key"}
	}
	return cfg
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.KeyTable == "" {
		c.KeyTable = "storefront_natural_keys"
	}
	if c.Indexes == nil {
		c.Indexes = make(map[string]map[string]string)
	}
	if c.NaturalKeys == nil {
		c.NaturalKeys = make(map[string][]string)
	}
}
