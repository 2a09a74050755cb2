package shop

import (
	"github.com/jacentio/storefront/media"
	"github.com/jacentio/storefront/record"
)

// Record codecs map entities to their stored field names. Encoders omit the
// id and server-populated fields; decoders tolerate missing or oddly typed
// fields so that legacy records still load.

// OwnerField is the field dependent codecs store the owning shop id under.
// Stores that name it differently rename it at the writer boundary.
const OwnerField = "shop_id"

// NestedFields are the stored fields holding lists or objects.
var NestedFields = []string{
	"business_hours", "special_days", "images",
	"options", "staff_ids",
	"specialties", "schedule", "leaves",
	"service_ids",
}

// ShopRecord encodes the writable fields of s.
func ShopRecord(s Shop) record.Record {
	images := make([]any, 0, len(s.Images))
	for _, img := range s.Images {
		images = append(images, string(img))
	}
	days := make([]any, 0, len(s.SpecialDays))
	for _, d := range DedupeSpecialDays(s.SpecialDays) {
		days = append(days, map[string]any{
			"date":       d.Date,
			"is_open":    d.IsOpen,
			"open_time":  d.OpenTime,
			"close_time": d.CloseTime,
			"note":       d.Note,
		})
	}
	rec := record.Record{
		"name":           s.Name,
		"description":    s.Description,
		"category":       s.Category,
		"address":        s.Address,
		"city":           s.City,
		"phone":          s.Phone,
		"email":          s.Email,
		"website":        s.Website,
		"is_active":      s.IsActive,
		"business_hours": EncodeHours(s.BusinessHours),
		"special_days":   days,
		"logo_url":       string(s.Logo),
		"images":         images,
	}
	if s.OwnerID != "" {
		rec["owner_id"] = s.OwnerID
	}
	return rec
}

// ShopFromRecord decodes a stored shop.
func ShopFromRecord(r record.Record) Shop {
	s := Shop{
		ID:            r.ID(),
		OwnerID:       r.String("owner_id"),
		Name:          r.String("name"),
		Description:   r.String("description"),
		Category:      r.String("category"),
		Address:       r.String("address"),
		City:          r.String("city"),
		Phone:         r.String("phone"),
		Email:         r.String("email"),
		Website:       r.String("website"),
		IsActive:      r.Bool("is_active", true),
		BusinessHours: DecodeHours(r.Maps("business_hours")),
		Logo:          media.Ref(r.String("logo_url")),
		ServiceCount:  r.Int("service_count"),
		StaffCount:    r.Int("staff_count"),
		CreatedAt:     r.String("created_at"),
		UpdatedAt:     r.String("updated_at"),
	}
	for _, img := range r.Strings("images") {
		s.Images = append(s.Images, media.Ref(img))
	}
	for _, m := range r.Maps("special_days") {
		d := record.Record(m)
		if d.String("date") == "" {
			continue
		}
		s.SpecialDays = append(s.SpecialDays, SpecialDay{
			Date:      d.String("date"),
			IsOpen:    d.Bool("is_open", false),
			OpenTime:  d.String("open_time"),
			CloseTime: d.String("close_time"),
			Note:      d.String("note"),
		})
	}
	s.SpecialDays = DedupeSpecialDays(s.SpecialDays)
	return s
}

// ServiceRecord encodes the writable fields of s, including its owner.
func ServiceRecord(s Service) record.Record {
	opts := make([]any, 0, len(s.Options))
	for _, o := range s.Options {
		opts = append(opts, map[string]any{
			"option_name": o.Name,
			"price":       o.Price,
			"duration":    o.Duration,
		})
	}
	return record.Record{
		OwnerField:    s.ShopID,
		"client_key":  s.ClientKey,
		"name":        s.Name,
		"description": s.Description,
		"price":       s.Price,
		"duration":    s.Duration,
		"category":    s.Category,
		"is_active":   s.IsActive,
		"options":     opts,
		"staff_ids":   stringList(s.StaffIDs),
	}
}

// ServiceFromRecord decodes a stored service.
func ServiceFromRecord(r record.Record) Service {
	s := Service{
		ID:           r.ID(),
		ShopID:       r.String(OwnerField),
		ClientKey:    r.String("client_key"),
		Name:         r.String("name"),
		Description:  r.String("description"),
		Price:        r.Float("price"),
		Duration:     r.Int("duration"),
		Category:     r.String("category"),
		IsActive:     r.Bool("is_active", true),
		StaffIDs:     r.Strings("staff_ids"),
		DisplayPrice: r.Float("display_price"),
		CreatedAt:    r.String("created_at"),
	}
	for _, m := range r.Maps("options") {
		o := record.Record(m)
		name := o.String("option_name")
		if name == "" {
			name = o.String("name")
		}
		s.Options = append(s.Options, ServiceOption{
			Name:     name,
			Price:    o.Float("price"),
			Duration: o.Int("duration"),
		})
	}
	return s
}

// StaffRecord encodes the writable fields of s, including its owner.
func StaffRecord(s Staff) record.Record {
	schedule := make([]any, 0, len(s.Schedule))
	for _, d := range SortSchedule(s.Schedule) {
		schedule = append(schedule, map[string]any{
			"day":        string(d.Day),
			"is_working": d.IsWorking,
			"start_time": d.StartTime,
			"end_time":   d.EndTime,
		})
	}
	leaves := make([]any, 0, len(s.Leaves))
	for _, l := range DedupeLeaves(s.Leaves) {
		leaves = append(leaves, map[string]any{
			"start_date": l.StartDate,
			"end_date":   l.EndDate,
			"label":      l.Label,
		})
	}
	return record.Record{
		OwnerField:    s.ShopID,
		"client_key":  s.ClientKey,
		"name":        s.Name,
		"role":        s.Role,
		"email":       s.Email,
		"phone":       s.Phone,
		"bio":         s.Bio,
		"specialties": stringList(s.Specialties),
		"schedule":    schedule,
		"leaves":      leaves,
		"is_active":   s.IsActive,
	}
}

// StaffFromRecord decodes a stored staff member.
func StaffFromRecord(r record.Record) Staff {
	s := Staff{
		ID:          r.ID(),
		ShopID:      r.String(OwnerField),
		ClientKey:   r.String("client_key"),
		Name:        r.String("name"),
		Role:        r.String("role"),
		Email:       r.String("email"),
		Phone:       r.String("phone"),
		Bio:         r.String("bio"),
		Specialties: r.Strings("specialties"),
		IsActive:    r.Bool("is_active", true),
		CreatedAt:   r.String("created_at"),
	}
	for _, m := range r.Maps("schedule") {
		d := record.Record(m)
		day, ok := ParseWeekday(d.String("day"))
		if !ok {
			continue
		}
		s.Schedule = append(s.Schedule, WorkDay{
			Day:       day,
			IsWorking: d.Bool("is_working", false),
			StartTime: d.String("start_time"),
			EndTime:   d.String("end_time"),
		})
	}
	s.Schedule = SortSchedule(s.Schedule)
	for _, m := range r.Maps("leaves") {
		l := record.Record(m)
		s.Leaves = append(s.Leaves, LeaveRange{
			StartDate: l.String("start_date"),
			EndDate:   l.String("end_date"),
			Label:     l.String("label"),
		})
	}
	s.Leaves = DedupeLeaves(s.Leaves)
	return s
}

// DiscountRecord encodes the writable fields of d, including its owner.
func DiscountRecord(d Discount) record.Record {
	return record.Record{
		OwnerField:    d.ShopID,
		"client_key":  d.ClientKey,
		"code":        d.Code,
		"name":        d.Name,
		"description": d.Description,
		"type":        d.Type,
		"value":       d.Value,
		"start_date":  d.StartDate,
		"end_date":    d.EndDate,
		"usage_limit": d.UsageLimit,
		"usage_count": d.UsageCount,
		"service_ids": stringList(d.ServiceIDs),
		"is_active":   d.IsActive,
	}
}

// DiscountFromRecord decodes a stored discount.
func DiscountFromRecord(r record.Record) Discount {
	return Discount{
		ID:          r.ID(),
		ShopID:      r.String(OwnerField),
		ClientKey:   r.String("client_key"),
		Code:        r.String("code"),
		Name:        r.String("name"),
		Description: r.String("description"),
		Type:        r.String("type"),
		Value:       r.Float("value"),
		StartDate:   r.String("start_date"),
		EndDate:     r.String("end_date"),
		UsageLimit:  r.Int("usage_limit"),
		UsageCount:  r.Int("usage_count"),
		ServiceIDs:  r.Strings("service_ids"),
		IsActive:    r.Bool("is_active", true),
		CreatedAt:   r.String("created_at"),
	}
}

func stringList(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
