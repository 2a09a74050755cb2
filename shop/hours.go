package shop

import (
	"sort"
	"strings"

	"github.com/jacentio/storefront/record"
)

// Weekday is a day of the week. Canonical order is Monday first.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists the days in canonical order.
var Weekdays = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Index returns the canonical position of d, or -1 if d is not a weekday.
func (d Weekday) Index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// ParseWeekday accepts full or three-letter day names in any case.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return "", false
	}
	for _, w := range Weekdays {
		if string(w) == s || string(w)[:3] == s {
			return w, true
		}
	}
	return "", false
}

// weekdayFromNumber maps 0 = Sunday through 6 = Saturday.
func weekdayFromNumber(n int) (Weekday, bool) {
	if n < 0 || n > 6 {
		return "", false
	}
	if n == 0 {
		return Sunday, true
	}
	return Weekdays[n-1], true
}

// BusinessHour is the opening window for one weekday.
type BusinessHour struct {
	Day       Weekday `json:"day"`
	IsOpen    bool    `json:"isOpen"`
	OpenTime  string  `json:"openTime,omitempty"`
	CloseTime string  `json:"closeTime,omitempty"`
}

// DefaultBusinessHours returns Monday to Saturday 09:00-18:00, closed Sunday.
func DefaultBusinessHours() []BusinessHour {
	out := make([]BusinessHour, 0, len(Weekdays))
	for _, d := range Weekdays {
		out = append(out, defaultHour(d))
	}
	return out
}

func defaultHour(d Weekday) BusinessHour {
	if d == Sunday {
		return BusinessHour{Day: d}
	}
	return BusinessHour{Day: d, IsOpen: true, OpenTime: "09:00", CloseTime: "18:00"}
}

// NormalizeHours returns exactly seven entries in canonical order. Entries
// with an unknown day are dropped, the first entry per day wins, and missing
// days are filled from DefaultBusinessHours.
func NormalizeHours(in []BusinessHour) []BusinessHour {
	valid := make([]BusinessHour, 0, len(in))
	for _, h := range in {
		if h.Day.Index() >= 0 {
			valid = append(valid, h)
		}
	}
	valid = Dedupe(valid, func(h BusinessHour) Weekday { return h.Day })

	byDay := make(map[Weekday]BusinessHour, len(valid))
	for _, h := range valid {
		byDay[h.Day] = h
	}
	out := make([]BusinessHour, 0, len(Weekdays))
	for _, d := range Weekdays {
		if h, ok := byDay[d]; ok {
			out = append(out, h)
			continue
		}
		out = append(out, defaultHour(d))
	}
	return out
}

// Stored business-hour shapes. New writes use hoursServer.
const (
	hoursLegacy = 0 // day_of_week (0 = Sunday), is_closed, open, close
	hoursServer = 1 // day, is_open, open_time, close_time
	hoursClient = 2 // day, isOpen, openTime, closeTime
)

type hoursMapper func(record.Record) (BusinessHour, bool)

var hoursMappers = map[int]hoursMapper{
	hoursLegacy: mapLegacyHour,
	hoursServer: mapServerHour,
	hoursClient: mapClientHour,
}

// hoursVersion selects a mapper by the explicit "v" tag, falling back to a
// single structural probe.
func hoursVersion(r record.Record) int {
	if _, ok := r["v"]; ok {
		v := r.Int("v")
		if _, known := hoursMappers[v]; known {
			return v
		}
	}
	switch {
	case r["day_of_week"] != nil:
		return hoursLegacy
	case r["is_open"] != nil || r["open_time"] != nil:
		return hoursServer
	}
	return hoursClient
}

func mapLegacyHour(r record.Record) (BusinessHour, bool) {
	d, ok := weekdayFromNumber(r.Int("day_of_week"))
	if !ok {
		return BusinessHour{}, false
	}
	return BusinessHour{
		Day:       d,
		IsOpen:    !r.Bool("is_closed", false),
		OpenTime:  r.String("open"),
		CloseTime: r.String("close"),
	}, true
}

func mapServerHour(r record.Record) (BusinessHour, bool) {
	d, ok := ParseWeekday(r.String("day"))
	if !ok {
		return BusinessHour{}, false
	}
	return BusinessHour{
		Day:       d,
		IsOpen:    r.Bool("is_open", true),
		OpenTime:  r.String("open_time"),
		CloseTime: r.String("close_time"),
	}, true
}

func mapClientHour(r record.Record) (BusinessHour, bool) {
	d, ok := ParseWeekday(r.String("day"))
	if !ok {
		return BusinessHour{}, false
	}
	return BusinessHour{
		Day:       d,
		IsOpen:    r.Bool("isOpen", true),
		OpenTime:  r.String("openTime"),
		CloseTime: r.String("closeTime"),
	}, true
}

// DecodeHours maps stored business-hour objects of any known shape and
// normalizes the result.
func DecodeHours(raw []map[string]any) []BusinessHour {
	hours := make([]BusinessHour, 0, len(raw))
	for _, m := range raw {
		r := record.Record(m)
		if h, ok := hoursMappers[hoursVersion(r)](r); ok {
			hours = append(hours, h)
		}
	}
	return NormalizeHours(hours)
}

// EncodeHours renders normalized hours in the current stored shape.
func EncodeHours(hours []BusinessHour) []any {
	norm := NormalizeHours(hours)
	out := make([]any, 0, len(norm))
	for _, h := range norm {
		out = append(out, map[string]any{
			"v":          hoursServer,
			"day":        string(h.Day),
			"is_open":    h.IsOpen,
			"open_time":  h.OpenTime,
			"close_time": h.CloseTime,
		})
	}
	return out
}

// SortSchedule orders work days canonically, dropping unknown and repeated days.
func SortSchedule(days []WorkDay) []WorkDay {
	valid := make([]WorkDay, 0, len(days))
	for _, d := range days {
		if d.Day.Index() >= 0 {
			valid = append(valid, d)
		}
	}
	valid = Dedupe(valid, func(w WorkDay) Weekday { return w.Day })
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Day.Index() < valid[j].Day.Index() })
	return valid
}
