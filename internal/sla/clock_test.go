package sla_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-sla/internal/sla"
)

func TestAddWorkMinutes_SameDay(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)

	got, err := sla.AddWorkMinutes(time.Date(2024, 1, 2, 10, 0, 0, 0, la), 90, cfg)

	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 2, 11, 30, 0, 0, la)))
}

func TestAddWorkMinutes_EndsExactlyAtClose(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)

	got, err := sla.AddWorkMinutes(time.Date(2024, 1, 2, 17, 0, 0, 0, la), 60, cfg)

	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 2, 18, 0, 0, 0, la)), "got %s", got)
}

func TestAddWorkMinutes_SubSecondStartRollsOver(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)
	start := time.Date(2024, 1, 2, 17, 0, 0, 500_000_000, la)

	got, err := sla.AddWorkMinutes(start, 60, cfg)

	require.NoError(t, err)
	// half a second is left over for Wednesday morning
	assert.True(t, got.Equal(time.Date(2024, 1, 3, 9, 0, 0, 500_000_000, la)), "got %s", got.In(la))
	assert.True(t, cfg.IsWorkingHours(got))
}

func TestAddWorkMinutes_WeekendRollover(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)

	// 30 minutes are used on Friday, the other 30 on Monday morning.
	got, err := sla.AddWorkMinutes(time.Date(2024, 1, 5, 17, 30, 0, 0, la), 60, cfg)

	require.NoError(t, err)
	local := got.In(la)
	assert.Equal(t, time.Monday, local.Weekday())
	assert.Equal(t, 9, local.Hour())
	assert.True(t, got.Equal(time.Date(2024, 1, 8, 9, 30, 0, 0, la)), "got %s", local)
}

func TestAddWorkMinutes_ZeroBudget(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)

	t.Run("inside hours returns start", func(t *testing.T) {
		start := time.Date(2024, 1, 2, 11, 11, 11, 0, la)
		got, err := sla.AddWorkMinutes(start, 0, cfg)
		require.NoError(t, err)
		assert.True(t, got.Equal(start))
	})

	t.Run("outside hours snaps to next work start", func(t *testing.T) {
		got, err := sla.AddWorkMinutes(time.Date(2024, 1, 6, 11, 0, 0, 0, la), 0, cfg)
		require.NoError(t, err)
		assert.True(t, got.Equal(time.Date(2024, 1, 8, 9, 0, 0, 0, la)))
	})

	t.Run("negative budget behaves like zero", func(t *testing.T) {
		start := time.Date(2024, 1, 2, 23, 0, 0, 0, la)
		got, err := sla.AddWorkMinutes(start, -15, cfg)
		require.NoError(t, err)
		assert.True(t, got.Equal(time.Date(2024, 1, 3, 9, 0, 0, 0, la)))
	})
}

func TestElapsedWorkMinutes(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)

	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"reversed interval", time.Date(2024, 1, 2, 12, 0, 0, 0, la), time.Date(2024, 1, 2, 10, 0, 0, 0, la), 0},
		{"empty interval", time.Date(2024, 1, 2, 12, 0, 0, 0, la), time.Date(2024, 1, 2, 12, 0, 0, 0, la), 0},
		{"inside one day", time.Date(2024, 1, 2, 10, 0, 0, 0, la), time.Date(2024, 1, 2, 12, 30, 0, 0, la), 150},
		{"clipped to window", time.Date(2024, 1, 2, 6, 0, 0, 0, la), time.Date(2024, 1, 2, 22, 0, 0, 0, la), 540},
		{"overnight", time.Date(2024, 1, 2, 17, 0, 0, 0, la), time.Date(2024, 1, 3, 10, 0, 0, 0, la), 120},
		{"over weekend", time.Date(2024, 1, 5, 17, 0, 0, 0, la), time.Date(2024, 1, 8, 10, 0, 0, 0, la), 120},
		{"weekend only", time.Date(2024, 1, 6, 0, 0, 0, 0, la), time.Date(2024, 1, 8, 0, 0, 0, 0, la), 0},
		{"full week", time.Date(2024, 1, 1, 0, 0, 0, 0, la), time.Date(2024, 1, 8, 0, 0, 0, 0, la), 5 * 540},
		{"partial minutes floor", time.Date(2024, 1, 2, 10, 0, 0, 0, la), time.Date(2024, 1, 2, 10, 1, 59, 0, la), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sla.ElapsedWorkMinutes(tt.start, tt.end, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddAndElapsed_RoundTrip(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)

	starts := []time.Time{
		time.Date(2024, 1, 1, 15, 0, 0, 0, la),   // monday afternoon
		time.Date(2024, 1, 5, 17, 30, 0, 0, la),  // friday before close
		time.Date(2024, 1, 6, 10, 0, 0, 0, la),   // saturday
		time.Date(2024, 1, 3, 7, 12, 45, 0, la),  // before open, odd seconds
		time.Date(2024, 1, 4, 18, 30, 0, 0, la),  // after close
		time.Date(2024, 1, 9, 12, 34, 56, 0, la), // mid-window with seconds
	}
	budgets := []int{0, 1, 59, 60, 480, 481, 2000}

	for _, start := range starts {
		for _, m := range budgets {
			t.Run(fmt.Sprintf("%s+%d", start.Format("Mon 15:04:05"), m), func(t *testing.T) {
				end, err := sla.AddWorkMinutes(start, m, cfg)
				require.NoError(t, err)

				got, err := sla.ElapsedWorkMinutes(start, end, cfg)
				require.NoError(t, err)
				assert.Equal(t, m, got)
			})
		}
	}
}

func TestAddWorkMinutes_HolidayShiftsOneWorkday(t *testing.T) {
	la := losAngeles(t)
	start := time.Date(2024, 1, 8, 10, 0, 0, 0, la)

	plain := standardCalendar(t)
	withHoliday := sla.DefaultOptions()
	withHoliday.Holidays = []sla.Date{{Year: 2024, Month: time.January, Day: 10}}
	holidayCfg, err := sla.NewCalendarConfig(withHoliday)
	require.NoError(t, err)

	without, err := sla.AddWorkMinutes(start, 2000, plain)
	require.NoError(t, err)
	with, err := sla.AddWorkMinutes(start, 2000, holidayCfg)
	require.NoError(t, err)

	assert.True(t, without.Equal(time.Date(2024, 1, 11, 16, 20, 0, 0, la)), "without holiday got %s", without.In(la))
	assert.True(t, with.Equal(time.Date(2024, 1, 12, 16, 20, 0, 0, la)), "with holiday got %s", with.In(la))

	elapsed, err := sla.ElapsedWorkMinutes(start, with, holidayCfg)
	require.NoError(t, err)
	assert.Equal(t, 2000, elapsed)
	assert.False(t, holidayCfg.IsWorkday(time.Date(2024, 1, 10, 12, 0, 0, 0, la)))
}

func TestElapsedWorkMinutes_DSTTransitions(t *testing.T) {
	la := losAngeles(t)
	opts := sla.DefaultOptions()
	opts.Workdays = []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	opts.WorkStartHour = 0
	opts.WorkEndHour = 23
	cfg, err := sla.NewCalendarConfig(opts)
	require.NoError(t, err)

	dayMinutes := func(y int, m time.Month, d int) int {
		got, err := sla.ElapsedWorkMinutes(time.Date(y, m, d, 0, 0, 0, 0, la), time.Date(y, m, d+1, 0, 0, 0, 0, la), cfg)
		require.NoError(t, err)
		return got
	}

	ordinary := dayMinutes(2024, time.March, 12)
	require.Equal(t, 23*60, ordinary)

	// 2024-03-10 has 23 clock hours and 2024-11-03 has 25, but the window is
	// defined on the wall clock so both report the ordinary amount.
	springForward := time.Date(2024, 3, 11, 0, 0, 0, 0, la).Sub(time.Date(2024, 3, 10, 0, 0, 0, 0, la))
	fallBack := time.Date(2024, 11, 4, 0, 0, 0, 0, la).Sub(time.Date(2024, 11, 3, 0, 0, 0, 0, la))
	require.Equal(t, 23*time.Hour, springForward)
	require.Equal(t, 25*time.Hour, fallBack)

	assert.Equal(t, ordinary, dayMinutes(2024, time.March, 10))
	assert.Equal(t, ordinary, dayMinutes(2024, time.November, 3))
}

func TestAddWorkMinutes_AcrossSpringForward(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)
	start := time.Date(2024, 3, 8, 15, 0, 0, 0, la) // friday, PST

	got, err := sla.AddWorkMinutes(start, 480, cfg)

	require.NoError(t, err)
	// Monday 14:00 PDT, one hour earlier in UTC terms than it would be in PST.
	assert.True(t, got.Equal(time.Date(2024, 3, 11, 14, 0, 0, 0, la)), "got %s", got.In(la))
	assert.True(t, got.Equal(time.Date(2024, 3, 11, 21, 0, 0, 0, time.UTC)))

	elapsed, err := sla.ElapsedWorkMinutes(start, got, cfg)
	require.NoError(t, err)
	assert.Equal(t, 480, elapsed)
}

func TestAddWorkMinutes_AcrossFallBack(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)
	start := time.Date(2024, 11, 1, 16, 0, 0, 0, la) // friday, PDT

	got, err := sla.AddWorkMinutes(start, 180, cfg)

	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 11, 4, 10, 0, 0, 0, la)), "got %s", got.In(la))
	assert.True(t, got.Equal(time.Date(2024, 11, 4, 18, 0, 0, 0, time.UTC)))
}

func TestIterationBounds(t *testing.T) {
	la := losAngeles(t)
	cfg := standardCalendar(t)

	t.Run("elapsed over decades", func(t *testing.T) {
		_, err := sla.ElapsedWorkMinutes(time.Date(2000, 1, 1, 0, 0, 0, 0, la), time.Date(2024, 1, 1, 0, 0, 0, 0, la), cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sla.ErrIterationBoundExceeded))
		var boundErr *sla.IterationBoundError
		require.ErrorAs(t, err, &boundErr)
		assert.Equal(t, "elapsed work minutes", boundErr.Op)
	})

	t.Run("add beyond a year of workdays", func(t *testing.T) {
		_, err := sla.AddWorkMinutes(time.Date(2024, 1, 2, 9, 0, 0, 0, la), 200000, cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sla.ErrIterationBoundExceeded))
	})
}

func TestZeroValueConfigRejected(t *testing.T) {
	var cfg sla.CalendarConfig
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	_, err := sla.AddWorkMinutes(now, 10, cfg)
	assert.ErrorIs(t, err, sla.ErrConfiguration)

	_, err = sla.ElapsedWorkMinutes(now, now.Add(time.Hour), cfg)
	assert.ErrorIs(t, err, sla.ErrConfiguration)

	_, err = sla.ComputeDeadline(now, cfg)
	assert.ErrorIs(t, err, sla.ErrConfiguration)

	_, err = sla.RemainingMinutes(now, now.Add(time.Hour), cfg)
	assert.ErrorIs(t, err, sla.ErrConfiguration)
}
