package writer

import (
	"github.com/jacentio/storefront/record"
	"github.com/jacentio/storefront/shop"
)

type shopCodec struct{ collection string }

func (c shopCodec) Collection() string { return c.collection }
func (shopCodec) OwnerField() string { return "" }
func (shopCodec) Encode(s shop.Shop) record.Record { return shop.ShopRecord(s) }
func (shopCodec) Decode(r record.Record) shop.Shop { return shop.ShopFromRecord(r) }

// Dependent codecs store the owning shop id under the configured owner
// field instead of shop.OwnerField.

type serviceCodec struct{ collection, owner string }

func (c serviceCodec) Collection() string { return c.collection }

func (c serviceCodec) OwnerField() string { return c.owner }

func (c serviceCodec) Encode(s shop.Service) record.Record {
	return shop.ServiceRecord(s).Rename(shop.OwnerField, c.owner)
}

func (c serviceCodec) Decode(r record.Record) shop.Service {
	return shop.ServiceFromRecord(r.Rename(c.owner, shop.OwnerField))
}

type staffCodec struct{ collection, owner string }

func (c staffCodec) Collection() string { return c.collection }

func (c staffCodec) OwnerField() string { return c.owner }

func (c staffCodec) Encode(s shop.Staff) record.Record {
	return shop.StaffRecord(s).Rename(shop.OwnerField, c.owner)
}

func (c staffCodec) Decode(r record.Record) shop.Staff {
	return shop.StaffFromRecord(r.Rename(c.owner, shop.OwnerField))
}

type discountCodec struct{ collection, owner string }

func (c discountCodec) Collection() string { return c.collection }

func (c discountCodec) OwnerField() string { return c.owner }

func (c discountCodec) Encode(d shop.Discount) record.Record {
	return shop.DiscountRecord(d).Rename(shop.OwnerField, c.owner)
}

func (c discountCodec) Decode(r record.Record) shop.Discount {
	return shop.DiscountFromRecord(r.Rename(c.owner, shop.OwnerField))
}

// Set holds one writer per entity kind of the aggregate.
type Set struct {
	Shops     *Writer[shop.Shop]
	Services  *Writer[shop.Service]
	Staff     *Writer[shop.Staff]
	Discounts *Writer[shop.Discount]
}

// NewSet creates writers for the collections named by cfg.
func NewSet(client record.Client, cfg record.Config) Set {
	cfg.Validate()
	return Set{
		Shops:     New[shop.Shop](client, shopCodec{cfg.Shops}),
		Services:  New[shop.Service](client, serviceCodec{cfg.Services, cfg.OwnerField}),
		Staff:     New[shop.Staff](client, staffCodec{cfg.Staff, cfg.OwnerField}),
		Discounts: New[shop.Discount](client, discountCodec{cfg.Discounts, cfg.OwnerField}),
	}
}
