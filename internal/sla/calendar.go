// Package sla computes business-hour aware first-response deadlines and the
// live status of those deadlines. Every calculation takes its CalendarConfig
// explicitly; nothing in this package holds state, so all functions are safe
// for concurrent use.
package sla

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// maxWorkdayScan bounds the forward search for the next workday.
const maxWorkdayScan = 14

// Date is a civil calendar date with no time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Before reports whether d falls strictly before o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// Options is the raw, unvalidated form of a CalendarConfig.
type Options struct {
	Timezone           string
	Workdays           []time.Weekday
	WorkStartHour      int
	WorkEndHour        int
	Holidays           []Date
	FirstResponseHours int
	WarnThresholds     [2]int
}

// DefaultOptions returns the organisation defaults: Los Angeles, Mon-Fri 9-18,
// eight business hours to first response, warnings at 120 and 30 minutes.
func DefaultOptions() Options {
	return Options{
		Timezone:           "America/Los_Angeles",
		Workdays:           []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		WorkStartHour:      9,
		WorkEndHour:        18,
		FirstResponseHours: 8,
		WarnThresholds:     [2]int{120, 30},
	}
}

// CalendarConfig is a validated, immutable business calendar. Build it with
// NewCalendarConfig; the zero value is rejected by every fallible operation.
type CalendarConfig struct {
	timezone           string
	loc                *time.Location
	workdays           [7]bool
	startHour          int
	endHour            int
	holidays           map[Date]struct{}
	firstResponseHours int
	warn               [2]int
	valid              bool
}

// NewCalendarConfig validates opts and loads the timezone.
func NewCalendarConfig(opts Options) (CalendarConfig, error) {
	tz := strings.TrimSpace(opts.Timezone)
	if tz == "" {
		return CalendarConfig{}, configError("timezone", "must not be empty")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return CalendarConfig{}, configError("timezone", "unknown zone %q", tz)
	}
	if len(opts.Workdays) == 0 {
		return CalendarConfig{}, configError("workdays", "at least one workday is required")
	}
	if opts.WorkStartHour < 0 || opts.WorkStartHour > 23 {
		return CalendarConfig{}, configError("work_start_hour", "%d is outside 0-23", opts.WorkStartHour)
	}
	if opts.WorkEndHour < 0 || opts.WorkEndHour > 23 {
		return CalendarConfig{}, configError("work_end_hour", "%d is outside 0-23", opts.WorkEndHour)
	}
	if opts.WorkStartHour >= opts.WorkEndHour {
		return CalendarConfig{}, configError("work_hours", "start %d must be before end %d", opts.WorkStartHour, opts.WorkEndHour)
	}
	if opts.FirstResponseHours <= 0 {
		return CalendarConfig{}, configError("first_response_hours", "must be positive, got %d", opts.FirstResponseHours)
	}
	for _, th := range opts.WarnThresholds {
		if th < 0 {
			return CalendarConfig{}, configError("warn_thresholds", "must be non-negative, got %d", th)
		}
	}

	cfg := CalendarConfig{
		timezone:           tz,
		loc:                loc,
		startHour:          opts.WorkStartHour,
		endHour:            opts.WorkEndHour,
		holidays:           make(map[Date]struct{}, len(opts.Holidays)),
		firstResponseHours: opts.FirstResponseHours,
		warn:               opts.WarnThresholds,
		valid:              true,
	}
	for _, wd := range opts.Workdays {
		if wd < time.Sunday || wd > time.Saturday {
			return CalendarConfig{}, configError("workdays", "unknown weekday %d", wd)
		}
		cfg.workdays[wd] = true
	}
	for _, h := range opts.Holidays {
		cfg.holidays[h] = struct{}{}
	}
	return cfg, nil
}

// MustCalendarConfig is NewCalendarConfig for static options known to be valid.
func MustCalendarConfig(opts Options) CalendarConfig {
	cfg, err := NewCalendarConfig(opts)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Options returns a copy of the settings cfg was built from.
func (c CalendarConfig) Options() Options {
	return Options{
		Timezone:           c.timezone,
		Workdays:           c.Workdays(),
		WorkStartHour:      c.startHour,
		WorkEndHour:        c.endHour,
		Holidays:           c.Holidays(),
		FirstResponseHours: c.firstResponseHours,
		WarnThresholds:     c.warn,
	}
}

// Location returns the calendar timezone.
func (c CalendarConfig) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c CalendarConfig) Timezone() string        { return c.timezone }
func (c CalendarConfig) WorkStartHour() int      { return c.startHour }
func (c CalendarConfig) WorkEndHour() int        { return c.endHour }
func (c CalendarConfig) FirstResponseHours() int { return c.firstResponseHours }
func (c CalendarConfig) WarnThresholds() [2]int  { return c.warn }

// Workdays returns the configured workdays in Sunday-first order.
func (c CalendarConfig) Workdays() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for wd, ok := range c.workdays {
		if ok {
			out = append(out, time.Weekday(wd))
		}
	}
	return out
}

// Holidays returns the holiday dates in ascending order.
func (c CalendarConfig) Holidays() []Date {
	out := make([]Date, 0, len(c.holidays))
	for d := range c.holidays {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// IsHoliday reports whether d is a configured holiday.
func (c CalendarConfig) IsHoliday(d Date) bool {
	_, ok := c.holidays[d]
	return ok
}

// IsWorkday reports whether the local date of t is a configured workday that
// is not a holiday.
func (c CalendarConfig) IsWorkday(t time.Time) bool {
	return c.isWorkdayLocal(t.In(c.Location()))
}

// IsWorkingHours reports whether t falls on a workday inside [start, end).
func (c CalendarConfig) IsWorkingHours(t time.Time) bool {
	local := t.In(c.Location())
	if !c.isWorkdayLocal(local) {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= c.startHour*60 && minute < c.endHour*60
}

// NextWorkStart returns t itself when t is inside working hours, otherwise
// the next instant at which working hours begin.
func (c CalendarConfig) NextWorkStart(t time.Time) (time.Time, error) {
	if c.IsWorkingHours(t) {
		return t, nil
	}
	local := t.In(c.Location())
	if c.isWorkdayLocal(local) && local.Hour() < c.startHour {
		return c.hourOn(local, c.startHour), nil
	}
	y, m, d := local.Date()
	for i := 1; i <= maxWorkdayScan; i++ {
		candidate := time.Date(y, m, d+i, c.startHour, 0, 0, 0, c.Location())
		if c.isWorkdayLocal(candidate) {
			return candidate, nil
		}
	}
	return time.Time{}, &IterationBoundError{Op: "next work start", Limit: maxWorkdayScan}
}

func (c CalendarConfig) isWorkdayLocal(local time.Time) bool {
	if !c.workdays[local.Weekday()] {
		return false
	}
	_, holiday := c.holidays[DateOf(local)]
	return !holiday
}

// hourOn returns hour:00 on the local date of day.
func (c CalendarConfig) hourOn(day time.Time, hour int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, c.Location())
}

func (c CalendarConfig) check() error {
	if !c.valid {
		return configError("calendar", "not initialised; build it with NewCalendarConfig")
	}
	return nil
}

// ParseWeekday accepts English weekday names or their three letter prefixes.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if len(key) >= 3 {
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			name := strings.ToLower(wd.String())
			if key == name || key == name[:3] {
				return wd, nil
			}
		}
	}
	return 0, configError("workdays", "unknown weekday %q", s)
}
