package shop

import "github.com/jacentio/storefront/media"

// Kind names a dependent entity kind.
type Kind string

const (
	KindService  Kind = "service"
	KindStaff    Kind = "staff"
	KindDiscount Kind = "discount"
)

// Kinds lists dependent kinds in flush order.
var Kinds = []Kind{KindService, KindStaff, KindDiscount}

// Shop is the parent record of the aggregate.
type Shop struct {
	ID            string         `json:"id,omitempty"`
	OwnerID       string         `json:"ownerId,omitempty"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Category      string         `json:"category,omitempty"`
	Address       string         `json:"address,omitempty"`
	City          string         `json:"city,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Email         string         `json:"email,omitempty"`
	Website       string         `json:"website,omitempty"`
	IsActive      bool           `json:"isActive"`
	BusinessHours []BusinessHour `json:"businessHours,omitempty"`
	SpecialDays   []SpecialDay   `json:"specialDays,omitempty"`
	Logo          media.Ref      `json:"logo,omitempty"`
	Images        []media.Ref    `json:"images,omitempty"`

	// Populated by the store's finalization trigger; never written.
	ServiceCount int `json:"serviceCount,omitempty"`
	StaffCount   int `json:"staffCount,omitempty"`

	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// SpecialDay overrides the regular hours on one date (YYYY-MM-DD).
type SpecialDay struct {
	Date      string `json:"date"`
	IsOpen    bool   `json:"isOpen"`
	OpenTime  string `json:"openTime,omitempty"`
	CloseTime string `json:"closeTime,omitempty"`
	Note      string `json:"note,omitempty"`
}

// ServiceOption is a named price/duration variant of a service.
type ServiceOption struct {
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Duration int     `json:"duration" validate:"gte=0"`
}

// Service is a bookable offering of a shop.
type Service struct {
	ID           string          `json:"id,omitempty"`
	ShopID       string          `json:"shopId,omitempty"`
	ClientKey    string          `json:"clientKey,omitempty"`
	Name         string          `json:"name" validate:"required"`
	Description  string          `json:"description,omitempty"`
	Price        float64         `json:"price" validate:"gte=0"`
	Duration     int             `json:"duration" validate:"gte=0"` // minutes
	Category     string          `json:"category,omitempty"`
	IsActive     bool            `json:"isActive"`
	Options      []ServiceOption `json:"options,omitempty" validate:"dive"`
	StaffIDs     []string        `json:"staffIds,omitempty"`
	DisplayPrice float64         `json:"displayPrice,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
}

// WorkDay is one weekday of a staff member's schedule.
type WorkDay struct {
	Day       Weekday `json:"day"`
	IsWorking bool    `json:"isWorking"`
	StartTime string  `json:"startTime,omitempty"`
	EndTime   string  `json:"endTime,omitempty"`
}

// LeaveRange is a period a staff member is away. Ranges may overlap.
type LeaveRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Label     string `json:"label,omitempty"`
}

// Staff is a member of a shop's roster.
type Staff struct {
	ID          string       `json:"id,omitempty"`
	ShopID      string       `json:"shopId,omitempty"`
	ClientKey   string       `json:"clientKey,omitempty"`
	Name        string       `json:"name" validate:"required"`
	Role        string       `json:"role,omitempty"`
	Email       string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string       `json:"phone,omitempty"`
	Bio         string       `json:"bio,omitempty"`
	Specialties []string     `json:"specialties,omitempty"`
	Schedule    []WorkDay    `json:"schedule,omitempty"`
	Leaves      []LeaveRange `json:"leaves,omitempty"`
	IsActive    bool         `json:"isActive"`
	CreatedAt   string       `json:"createdAt,omitempty"`
}

// Discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Discount is a promotion applicable to some or all services of a shop.
type Discount struct {
	ID          string   `json:"id,omitempty"`
	ShopID      string   `json:"shopId,omitempty"`
	ClientKey   string   `json:"clientKey,omitempty"`
	Code        string   `json:"code,omitempty"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type,omitempty" validate:"omitempty,oneof=percentage fixed"`
	Value       float64  `json:"value" validate:"gte=0"`
	StartDate   string   `json:"startDate,omitempty"`
	EndDate     string   `json:"endDate,omitempty"`
	UsageLimit  int      `json:"usageLimit,omitempty" validate:"gte=0"`
	UsageCount  int      `json:"usageCount,omitempty"`
	ServiceIDs  []string `json:"serviceIds,omitempty"`
	IsActive    bool     `json:"isActive"`
	CreatedAt   string   `json:"createdAt,omitempty"`
}

// Aggregate is a shop plus everything it owns, saved as one unit.
type Aggregate struct {
	Shop      Shop       `json:"shop"`
	Services  []Service  `json:"services,omitempty"`
	Staff     []Staff    `json:"staff,omitempty"`
	Discounts []Discount `json:"discounts,omitempty"`
}

// Count returns the number of dependents of kind k.
func (a Aggregate) Count(k Kind) int {
	switch k {
	case KindService:
		return len(a.Services)
	case KindStaff:
		return len(a.Staff)
	case KindDiscount:
		return len(a.Discounts)
	}
	return 0
}

// Clone returns a deep copy of a.
func (a Aggregate) Clone() Aggregate {
	out := Aggregate{Shop: a.Shop.clone()}
	out.Services = cloneEach(a.Services, Service.clone)
	out.Staff = cloneEach(a.Staff, Staff.clone)
	out.Discounts = cloneEach(a.Discounts, Discount.clone)
	return out
}

func (s Shop) clone() Shop {
	s.BusinessHours = cloneSlice(s.BusinessHours)
	s.SpecialDays = cloneSlice(s.SpecialDays)
	s.Images = cloneSlice(s.Images)
	return s
}

func (s Service) clone() Service {
	s.Options = cloneSlice(s.Options)
	s.StaffIDs = cloneSlice(s.StaffIDs)
	return s
}

func (s Staff) clone() Staff {
	s.Specialties = cloneSlice(s.Specialties)
	s.Schedule = cloneSlice(s.Schedule)
	s.Leaves = cloneSlice(s.Leaves)
	return s
}

func (d Discount) clone() Discount {
	d.ServiceIDs = cloneSlice(d.ServiceIDs)
	return d
}

func cloneSlice[T any](items []T) []T {
	if items == nil {
		return nil
	}
	return append(make([]T, 0, len(items)), items...)
}

func cloneEach[T any](items []T, clone func(T) T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i, v := range items {
		out[i] = clone(v)
	}
	return out
}
