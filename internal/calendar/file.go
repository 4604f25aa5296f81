package calendar

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-sla/internal/config"
)

// File is the YAML calendar override file. Keys that are absent leave the
// environment value in place.
//
//	timezone: America/New_York
//	workdays: [mon, tue, wed, thu, fri]
//	work_start_hour: 8
//	work_end_hour: 17
//	first_response_hours: 4
//	warn_thresholds: [90, 15]
//	holiday_preset: us
//	holidays:
//	  - 2024-12-24
type File struct {
	Timezone           *string  `yaml:"timezone"`
	Workdays           []string `yaml:"workdays"`
	WorkStartHour      *int     `yaml:"work_start_hour"`
	WorkEndHour        *int     `yaml:"work_end_hour"`
	FirstResponseHours *int     `yaml:"first_response_hours"`
	WarnThresholds     []int    `yaml:"warn_thresholds"`
	Holidays           []string `yaml:"holidays"`
	HolidayPreset      *string  `yaml:"holiday_preset"`
	HolidayICS         *string  `yaml:"holiday_ics"`
}

// LoadFile reads a calendar override file.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("calendar file path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse calendar file %s: %w", path, err)
	}
	return &f, nil
}

// Apply overlays the file on top of cfg. Holidays from the file are added to
// the ones already configured.
func (f *File) Apply(cfg *config.SLAConfig) error {
	if f.Timezone != nil {
		cfg.Timezone = *f.Timezone
	}
	if len(f.Workdays) > 0 {
		cfg.Workdays = append([]string(nil), f.Workdays...)
	}
	if f.WorkStartHour != nil {
		cfg.WorkStartHour = *f.WorkStartHour
	}
	if f.WorkEndHour != nil {
		cfg.WorkEndHour = *f.WorkEndHour
	}
	if f.FirstResponseHours != nil {
		cfg.FirstResponseHours = *f.FirstResponseHours
	}
	if f.WarnThresholds != nil {
		if len(f.WarnThresholds) != 2 {
			return fmt.Errorf("calendar file: warn_thresholds needs exactly two values, got %d", len(f.WarnThresholds))
		}
		cfg.WarnThresholds = [2]int{f.WarnThresholds[0], f.WarnThresholds[1]}
	}
	cfg.Holidays = append(append([]string(nil), cfg.Holidays...), f.Holidays...)
	if f.HolidayPreset != nil {
		cfg.HolidayPreset = *f.HolidayPreset
	}
	if f.HolidayICS != nil {
		cfg.HolidayICSPath = *f.HolidayICS
	}
	return nil
}

// Save writes the effective configuration as a calendar file.
func Save(path string, cfg config.SLAConfig) error {
	f := File{
		Timezone:           &cfg.Timezone,
		Workdays:           cfg.Workdays,
		WorkStartHour:      &cfg.WorkStartHour,
		WorkEndHour:        &cfg.WorkEndHour,
		FirstResponseHours: &cfg.FirstResponseHours,
		WarnThresholds:     []int{cfg.WarnThresholds[0], cfg.WarnThresholds[1]},
		Holidays:           cfg.Holidays,
	}
	if cfg.HolidayPreset != "" {
		f.HolidayPreset = &cfg.HolidayPreset
	}
	if cfg.HolidayICSPath != "" {
		f.HolidayICS = &cfg.HolidayICSPath
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
