package calendar

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/spec-kit/ticket-sla/internal/sla"
)

const (
	icsDateLayout = "20060102"
	// maxEventSpanDays caps how many dates a single all-day VEVENT may cover.
	maxEventSpanDays = 31
)

// ParseICS extracts holiday dates from an iCalendar feed. Every VEVENT is a
// holiday; multi-day all-day events contribute each covered date, timed
// events contribute the local date of their start in loc. Recurring events
// are expanded for the years fromYear through toYear.
func ParseICS(r io.Reader, loc *time.Location, fromYear, toYear int) ([]sla.Date, error) {
	if loc == nil {
		loc = time.UTC
	}
	if toYear < fromYear {
		return nil, errors.New("ics: toYear is before fromYear")
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ics: parse calendar: %w", err)
	}

	rangeStart := time.Date(fromYear, time.January, 1, 0, 0, 0, 0, loc)
	rangeEnd := time.Date(toYear+1, time.January, 1, 0, 0, 0, 0, loc)

	seen := make(map[sla.Date]struct{})
	var out []sla.Date
	add := func(d sla.Date) {
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}

	for _, ev := range cal.Events() {
		start, allDay, err := eventStart(ev, loc)
		if err != nil {
			return nil, err
		}
		span := eventSpanDays(ev, start, allDay, loc)

		starts := []time.Time{start}
		if prop := ev.GetProperty(ical.ComponentPropertyRrule); prop != nil && prop.Value != "" {
			starts, err = expandRecurrence(ev, prop.Value, start, rangeStart, rangeEnd, loc)
			if err != nil {
				return nil, err
			}
		}
		for _, s := range starts {
			y, m, d := s.In(loc).Date()
			for i := 0; i < span; i++ {
				add(sla.DateOf(time.Date(y, m, d+i, 0, 0, 0, 0, loc)))
			}
		}
	}
	return out, nil
}

func eventStart(ev *ical.VEvent, loc *time.Location) (time.Time, bool, error) {
	prop := ev.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil || prop.Value == "" {
		return time.Time{}, false, fmt.Errorf("ics: event %s has no DTSTART", eventID(ev))
	}
	if isDateValue(prop) {
		t, err := time.ParseInLocation(icsDateLayout, prop.Value[:min(len(prop.Value), len(icsDateLayout))], loc)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("ics: event %s: %w", eventID(ev), err)
		}
		return t, true, nil
	}
	t, err := ev.GetStartAt()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("ics: event %s: %w", eventID(ev), err)
	}
	return t.In(loc), false, nil
}

// eventSpanDays returns the number of dates an all-day event covers. DTEND
// is exclusive for all-day events.
func eventSpanDays(ev *ical.VEvent, start time.Time, allDay bool, loc *time.Location) int {
	if !allDay {
		return 1
	}
	prop := ev.GetProperty(ical.ComponentPropertyDtEnd)
	if prop == nil || len(prop.Value) < len(icsDateLayout) {
		return 1
	}
	end, err := time.ParseInLocation(icsDateLayout, prop.Value[:len(icsDateLayout)], loc)
	if err != nil || !end.After(start) {
		return 1
	}
	days := 0
	for cur := start; cur.Before(end) && days < maxEventSpanDays; days++ {
		y, m, d := cur.Date()
		cur = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
	return days
}

func expandRecurrence(ev *ical.VEvent, rule string, start, rangeStart, rangeEnd time.Time, loc *time.Location) ([]time.Time, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("ics: event %s: rrule %q: %w", eventID(ev), rule, err)
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, prop := range ev.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(prop.Value, ",") {
			part = strings.TrimSpace(part)
			if len(part) < len(icsDateLayout) {
				continue
			}
			ex, err := time.ParseInLocation(icsDateLayout, part[:len(icsDateLayout)], loc)
			if err != nil {
				continue
			}
			// EXDATE must match an occurrence exactly, so keep the DTSTART clock.
			set.ExDate(time.Date(ex.Year(), ex.Month(), ex.Day(), start.Hour(), start.Minute(), start.Second(), 0, start.Location()))
		}
	}
	// rangeEnd is exclusive; an occurrence at midnight on Jan 1 of the next
	// year belongs to that year.
	return set.Between(rangeStart, rangeEnd.Add(-time.Nanosecond), true), nil
}

func isDateValue(prop *ical.IANAProperty) bool {
	if vals, ok := prop.ICalParameters["VALUE"]; ok && len(vals) > 0 && strings.EqualFold(vals[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

func eventID(ev *ical.VEvent) string {
	if uid := ev.GetProperty(ical.ComponentPropertyUniqueId); uid != nil && uid.Value != "" {
		return uid.Value
	}
	return "<no uid>"
}
