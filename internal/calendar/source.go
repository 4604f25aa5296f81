// Package calendar turns the SLA section of the service configuration into a
// validated sla.CalendarConfig, merging holidays from the environment, a YAML
// override file, a named preset and an iCalendar feed.
package calendar

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spec-kit/ticket-sla/internal/config"
	"github.com/spec-kit/ticket-sla/internal/sla"
)

// Source hands out the calendar currently in effect.
type Source interface {
	Current() sla.CalendarConfig
}

// Static is a Source that never changes.
type Static sla.CalendarConfig

// Current implements Source.
func (s Static) Current() sla.CalendarConfig { return sla.CalendarConfig(s) }

// Years returns the previous, current and next year relative to now. Holiday
// presets and recurring feed entries are expanded over this window.
func Years(now time.Time) []int {
	y := now.Year()
	return []int{y - 1, y, y + 1}
}

// Build resolves cfg into a calendar.
func Build(cfg config.SLAConfig, years []int) (sla.CalendarConfig, error) {
	if len(years) == 0 {
		years = Years(time.Now())
	}
	if cfg.CalendarFile != "" {
		f, err := LoadFile(cfg.CalendarFile)
		if err != nil {
			return sla.CalendarConfig{}, err
		}
		if err := f.Apply(&cfg); err != nil {
			return sla.CalendarConfig{}, err
		}
	}

	opts := sla.Options{
		Timezone:           cfg.Timezone,
		WorkStartHour:      cfg.WorkStartHour,
		WorkEndHour:        cfg.WorkEndHour,
		FirstResponseHours: cfg.FirstResponseHours,
		WarnThresholds:     cfg.WarnThresholds,
	}
	for _, name := range cfg.Workdays {
		wd, err := sla.ParseWeekday(name)
		if err != nil {
			return sla.CalendarConfig{}, err
		}
		opts.Workdays = append(opts.Workdays, wd)
	}
	for _, raw := range cfg.Holidays {
		d, err := sla.ParseDate(raw)
		if err != nil {
			return sla.CalendarConfig{}, &sla.ConfigurationError{Field: "holidays", Reason: err.Error()}
		}
		opts.Holidays = append(opts.Holidays, d)
	}
	if cfg.HolidayPreset != "" {
		dates, ok := PresetHolidays(cfg.HolidayPreset, years)
		if !ok {
			return sla.CalendarConfig{}, &sla.ConfigurationError{Field: "holiday_preset", Reason: fmt.Sprintf("unknown preset %q", cfg.HolidayPreset)}
		}
		opts.Holidays = append(opts.Holidays, dates...)
	}
	if cfg.HolidayICSPath != "" {
		dates, err := loadICSFile(cfg.HolidayICSPath, cfg.Timezone, years)
		if err != nil {
			return sla.CalendarConfig{}, err
		}
		opts.Holidays = append(opts.Holidays, dates...)
	}

	return sla.NewCalendarConfig(opts)
}

func loadICSFile(path, timezone string, years []int) ([]sla.Date, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, &sla.ConfigurationError{Field: "timezone", Reason: fmt.Sprintf("unknown zone %q", timezone)}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open holiday feed: %w", err)
	}
	defer f.Close()

	from, to := years[0], years[0]
	for _, y := range years {
		from, to = min(from, y), max(to, y)
	}
	return ParseICS(f, loc, from, to)
}

// Provider caches the built calendar and rebuilds it on Reload. A failed
// reload keeps the previous calendar.
type Provider struct {
	mu      sync.RWMutex
	src     config.SLAConfig
	now     func() time.Time
	current sla.CalendarConfig
}

// NewProvider builds the initial calendar; an invalid configuration fails here.
func NewProvider(src config.SLAConfig, now func() time.Time) (*Provider, error) {
	if now == nil {
		now = time.Now
	}
	p := &Provider{src: src, now: now}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Current implements Source.
func (p *Provider) Current() sla.CalendarConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Reload rebuilds the calendar from the original configuration.
func (p *Provider) Reload() error {
	cal, err := Build(p.src, Years(p.now()))
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.current = cal
	p.mu.Unlock()
	return nil
}
