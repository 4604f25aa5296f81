package calendar

import (
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"

	"github.com/spec-kit/ticket-sla/internal/sla"
)

// PresetUS selects the US federal holidays, on their observed dates.
const PresetUS = "us"

var presets = map[string][]*cal.Holiday{
	PresetUS: us.Holidays,
}

// PresetHolidays returns the observed dates of a named holiday preset for
// each of the given years. ok is false for an unknown preset.
func PresetHolidays(name string, years []int) (dates []sla.Date, ok bool) {
	holidays, ok := presets[name]
	if !ok {
		return nil, false
	}
	return observedDates(holidays, years), true
}

// USFederalHolidays returns the observed US federal holidays for years.
func USFederalHolidays(years []int) []sla.Date {
	return observedDates(us.Holidays, years)
}

func observedDates(holidays []*cal.Holiday, years []int) []sla.Date {
	out := make([]sla.Date, 0, len(holidays)*len(years))
	for _, year := range years {
		for _, h := range holidays {
			_, observed := h.Calc(year)
			if observed.IsZero() {
				continue
			}
			out = append(out, sla.DateOf(observed))
		}
	}
	return out
}
