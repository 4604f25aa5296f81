package sla_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-sla/internal/sla"
)

func losAngeles(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

// standardCalendar is Mon-Fri 9-18 in Los Angeles with no holidays.
func standardCalendar(t *testing.T) sla.CalendarConfig {
	t.Helper()
	cfg, err := sla.NewCalendarConfig(sla.DefaultOptions())
	require.NoError(t, err)
	return cfg
}

func TestNewCalendarConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sla.Options)
		field  string
	}{
		{"empty timezone", func(o *sla.Options) { o.Timezone = "" }, "timezone"},
		{"unknown timezone", func(o *sla.Options) { o.Timezone = "Mars/Olympus_Mons" }, "timezone"},
		{"no workdays", func(o *sla.Options) { o.Workdays = nil }, "workdays"},
		{"start equals end", func(o *sla.Options) { o.WorkStartHour, o.WorkEndHour = 9, 9 }, "work_hours"},
		{"start after end", func(o *sla.Options) { o.WorkStartHour, o.WorkEndHour = 18, 9 }, "work_hours"},
		{"start out of range", func(o *sla.Options) { o.WorkStartHour = -1 }, "work_start_hour"},
		{"end out of range", func(o *sla.Options) { o.WorkEndHour = 24 }, "work_end_hour"},
		{"negative threshold", func(o *sla.Options) { o.WarnThresholds = [2]int{120, -1} }, "warn_thresholds"},
		{"zero response budget", func(o *sla.Options) { o.FirstResponseHours = 0 }, "first_response_hours"},
		{"bad weekday", func(o *sla.Options) { o.Workdays = []time.Weekday{7} }, "workdays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := sla.DefaultOptions()
			tt.mutate(&opts)

			_, err := sla.NewCalendarConfig(opts)

			require.Error(t, err)
			assert.True(t, errors.Is(err, sla.ErrConfiguration))
			var cfgErr *sla.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestCalendarConfig_OptionsRoundTrip(t *testing.T) {
	opts := sla.DefaultOptions()
	opts.Holidays = []sla.Date{{Year: 2024, Month: time.December, Day: 25}, {Year: 2024, Month: time.July, Day: 4}}

	cfg, err := sla.NewCalendarConfig(opts)
	require.NoError(t, err)

	got := cfg.Options()
	assert.Equal(t, "America/Los_Angeles", got.Timezone)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, got.Workdays)
	assert.Equal(t, 9, got.WorkStartHour)
	assert.Equal(t, 18, got.WorkEndHour)
	assert.Equal(t, 8, got.FirstResponseHours)
	assert.Equal(t, [2]int{120, 30}, got.WarnThresholds)
	// holidays come back sorted
	assert.Equal(t, []sla.Date{{Year: 2024, Month: time.July, Day: 4}, {Year: 2024, Month: time.December, Day: 25}}, got.Holidays)
}

func TestCalendarConfig_HolidaysAreCopied(t *testing.T) {
	opts := sla.DefaultOptions()
	opts.Holidays = []sla.Date{{Year: 2024, Month: time.January, Day: 2}}
	cfg, err := sla.NewCalendarConfig(opts)
	require.NoError(t, err)

	opts.Holidays[0] = sla.Date{Year: 2024, Month: time.January, Day: 3}

	assert.True(t, cfg.IsHoliday(sla.Date{Year: 2024, Month: time.January, Day: 2}))
	assert.False(t, cfg.IsHoliday(sla.Date{Year: 2024, Month: time.January, Day: 3}))
}

func TestIsWorkday(t *testing.T) {
	la := losAngeles(t)
	opts := sla.DefaultOptions()
	opts.Holidays = []sla.Date{{Year: 2024, Month: time.January, Day: 3}}
	cfg, err := sla.NewCalendarConfig(opts)
	require.NoError(t, err)

	assert.True(t, cfg.IsWorkday(time.Date(2024, 1, 1, 12, 0, 0, 0, la)), "monday")
	assert.False(t, cfg.IsWorkday(time.Date(2024, 1, 3, 12, 0, 0, 0, la)), "holiday wednesday")
	assert.False(t, cfg.IsWorkday(time.Date(2024, 1, 6, 12, 0, 0, 0, la)), "saturday")
	assert.False(t, cfg.IsWorkday(time.Date(2024, 1, 7, 12, 0, 0, 0, la)), "sunday")

	// 2024-01-06 03:00 UTC is still Friday evening in Los Angeles.
	assert.True(t, cfg.IsWorkday(time.Date(2024, 1, 6, 3, 0, 0, 0, time.UTC)))
}

func TestIsWorkingHours(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"window opens", time.Date(2024, 1, 2, 9, 0, 0, 0, la), true},
		{"one minute before open", time.Date(2024, 1, 2, 8, 59, 0, 0, la), false},
		{"last minute", time.Date(2024, 1, 2, 17, 59, 59, 0, la), true},
		{"window end is exclusive", time.Date(2024, 1, 2, 18, 0, 0, 0, la), false},
		{"saturday midday", time.Date(2024, 1, 6, 12, 0, 0, 0, la), false},
		{"utc input converted", time.Date(2024, 1, 2, 17, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.IsWorkingHours(tt.at))
		})
	}
}

func TestNextWorkStart_IdempotentInsideHours(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)

	for _, at := range []time.Time{
		time.Date(2024, 1, 1, 9, 0, 0, 0, la),
		time.Date(2024, 1, 1, 10, 15, 42, 0, la),
		time.Date(2024, 1, 5, 17, 59, 0, 0, la),
		time.Date(2024, 1, 3, 20, 30, 0, 0, time.UTC),
	} {
		got, err := cfg.NextWorkStart(at)
		require.NoError(t, err)
		assert.True(t, got.Equal(at), "expected %s unchanged, got %s", at, got)
	}
}

func TestNextWorkStart_OutsideHours(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"early monday", time.Date(2024, 1, 1, 7, 30, 0, 0, la), time.Date(2024, 1, 1, 9, 0, 0, 0, la)},
		{"monday close", time.Date(2024, 1, 1, 18, 0, 0, 0, la), time.Date(2024, 1, 2, 9, 0, 0, 0, la)},
		{"friday evening", time.Date(2024, 1, 5, 20, 0, 0, 0, la), time.Date(2024, 1, 8, 9, 0, 0, 0, la)},
		{"saturday", time.Date(2024, 1, 6, 12, 0, 0, 0, la), time.Date(2024, 1, 8, 9, 0, 0, 0, la)},
		{"sunday early", time.Date(2024, 1, 7, 3, 0, 0, 0, la), time.Date(2024, 1, 8, 9, 0, 0, 0, la)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.NextWorkStart(tt.at)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "want %s got %s", tt.want, got)
		})
	}
}

func TestNextWorkStart_SkipsHoliday(t *testing.T) {
	la := losAngeles(t)
	opts := sla.DefaultOptions()
	opts.Holidays = []sla.Date{{Year: 2024, Month: time.January, Day: 8}}
	cfg, err := sla.NewCalendarConfig(opts)
	require.NoError(t, err)

	got, err := cfg.NextWorkStart(time.Date(2024, 1, 6, 12, 0, 0, 0, la))

	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 9, 9, 0, 0, 0, la)))
}

func TestNextWorkStart_BoundExceeded(t *testing.T) {
	la := losAngeles(t)
	opts := sla.DefaultOptions()
	opts.Workdays = []time.Weekday{time.Monday}
	opts.Holidays = []sla.Date{
		{Year: 2024, Month: time.January, Day: 8},
		{Year: 2024, Month: time.January, Day: 15},
	}
	cfg, err := sla.NewCalendarConfig(opts)
	require.NoError(t, err)

	_, err = cfg.NextWorkStart(time.Date(2024, 1, 1, 19, 0, 0, 0, la))

	require.Error(t, err)
	assert.True(t, errors.Is(err, sla.ErrIterationBoundExceeded))
}

func TestParseWeekday(t *testing.T) {
	for input, want := range map[string]time.Weekday{
		"mon":       time.Monday,
		"Tuesday":   time.Tuesday,
		" WED ":     time.Wednesday,
		"saturday":  time.Saturday,
		"sun":       time.Sunday,
		"thu":       time.Thursday,
		"FRI":       time.Friday,
		"wednesday": time.Wednesday,
	} {
		got, err := sla.ParseWeekday(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := sla.ParseWeekday("mo")
	assert.ErrorIs(t, err, sla.ErrConfiguration)
	_, err = sla.ParseWeekday("funday")
	assert.ErrorIs(t, err, sla.ErrConfiguration)
}

func TestParseDate(t *testing.T) {
	d, err := sla.ParseDate("2024-07-04")
	require.NoError(t, err)
	assert.Equal(t, sla.Date{Year: 2024, Month: time.July, Day: 4}, d)
	assert.Equal(t, "2024-07-04", d.String())

	_, err = sla.ParseDate("07/04/2024")
	assert.Error(t, err)
}
