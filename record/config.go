package record

import "time"

// Config names the collections that make up a shop aggregate.
type Config struct {
	// Shops is the parent collection.
	// Default: "shops"
	Shops string

	// Services, Staff and Discounts are the dependent collections.
	// Defaults: "services", "staff", "discounts"
	Services  string
	Staff     string
	Discounts string

	// OwnerField is the field in every dependent record that holds the owning shop id.
	// Default: "shop_id"
	OwnerField string

	// CallTimeout bounds each individual store call when the client is wrapped
	// with WithTimeout.
	// Default: 10s
	CallTimeout time.Duration
}

// DefaultConfig returns the collection layout used by the hosted store.
func DefaultConfig() Config {
	return Config{
		Shops:       "shops",
		Services:    "services",
		Staff:       "staff",
		Discounts:   "discounts",
		OwnerField:  "shop_id",
		CallTimeout: 10 * time.Second,
	}
}

// Validate fills empty values with their defaults.
func (c *Config) Validate() {
	def := DefaultConfig()
	if c.Shops == "" {
		c.Shops = def.Shops
	}
	if c.Services == "" {
		c.Services = def.Services
	}
	if c.Staff == "" {
		c.Staff = def.Staff
	}
	if c.Discounts == "" {
		c.Discounts = def.Discounts
	}
	if c.OwnerField == "" {
		c.OwnerField = def.OwnerField
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
}

// Registry returns the owner relationships described by the config.
func (c Config) Registry() *Registry {
	c.Validate()
	r := NewRegistry()
	for _, child := range []string{c.Services, c.Staff, c.Discounts} {
		r.Register(Relationship{
			ParentCollection: c.Shops,
			ChildCollection:  child,
			OwnerField:       c.OwnerField,
		})
	}
	return r
}
