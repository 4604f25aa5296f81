package sla

import "time"

const (
	// maxElapsedDays bounds the day walk in ElapsedWorkMinutes.
	maxElapsedDays = 1000
	// maxRollovers bounds the number of workday rollovers in AddWorkMinutes.
	maxRollovers = 365
)

// ElapsedWorkMinutes counts the business minutes inside [start, end). Minutes
// are measured on the local wall clock, so a DST transition never adds or
// removes working time from a day.
func ElapsedWorkMinutes(start, end time.Time, cfg CalendarConfig) (int, error) {
	if err := cfg.check(); err != nil {
		return 0, err
	}
	if !start.Before(end) {
		return 0, nil
	}

	loc := cfg.Location()
	windowStart := cfg.startHour * 3600
	windowEnd := cfg.endHour * 3600
	cursor := start.In(loc)
	end = end.In(loc)

	var seconds int64
	for day := 0; cursor.Before(end); day++ {
		if day >= maxElapsedDays {
			return 0, &IterationBoundError{Op: "elapsed work minutes", Limit: maxElapsedDays}
		}
		y, m, d := cursor.Date()
		nextMidnight := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
		if cfg.isWorkdayLocal(cursor) {
			from := max(secondOfDay(cursor), windowStart)
			to := windowEnd
			if end.Before(nextMidnight) {
				to = min(to, secondOfDay(end))
			}
			if to > from {
				seconds += int64(to - from)
			}
		}
		cursor = nextMidnight
	}
	return int(seconds / 60), nil
}

// AddWorkMinutes returns the instant at which a budget of business minutes
// starting at start is used up. A start outside working hours is first
// snapped to NextWorkStart; a budget of zero or less returns that snapped
// instant.
func AddWorkMinutes(start time.Time, minutes int, cfg CalendarConfig) (time.Time, error) {
	if err := cfg.check(); err != nil {
		return time.Time{}, err
	}
	cursor, err := cfg.NextWorkStart(start)
	if err != nil {
		return time.Time{}, err
	}
	if minutes <= 0 {
		return cursor, nil
	}

	loc := cfg.Location()
	budget := time.Duration(minutes) * time.Minute
	for i := 0; i < maxRollovers; i++ {
		local := cursor.In(loc)
		offset := time.Duration(secondOfDay(local))*time.Second + time.Duration(local.Nanosecond())
		available := time.Duration(cfg.endHour)*time.Hour - offset
		if budget <= available {
			y, m, d := local.Date()
			return time.Date(y, m, d, 0, 0, 0, int(offset+budget), loc), nil
		}
		budget -= available
		cursor, err = cfg.NextWorkStart(cfg.hourOn(local, cfg.endHour))
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.Time{}, &IterationBoundError{Op: "add work minutes", Limit: maxRollovers}
}

// secondOfDay is the wall-clock offset of t from its local midnight.
func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
