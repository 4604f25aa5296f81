package sla

import (
	"fmt"
	"time"
)

// Status is the coarse SLA tier of an unanswered ticket.
type Status string

const (
	StatusNormal  Status = "normal"
	StatusWarn    Status = "warn"
	StatusOverdue Status = "overdue"
)

// ParseStatus converts a stored status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNormal, StatusWarn, StatusOverdue:
		return st, nil
	default:
		return "", fmt.Errorf("sla: unknown status %q", s)
	}
}

// Reading is a point-in-time evaluation of a deadline.
type Reading struct {
	Status           Status
	RemainingMinutes int
	Deadline         time.Time
	// Critical is set when the remaining time is at or below the tighter of
	// the two warn thresholds. It only refines StatusWarn.
	Critical bool
}

// ComputeDeadline returns the first-response deadline, as a UTC instant, for
// a ticket created at createdAt.
func ComputeDeadline(createdAt time.Time, cfg CalendarConfig) (time.Time, error) {
	if err := cfg.check(); err != nil {
		return time.Time{}, err
	}
	deadline, err := AddWorkMinutes(createdAt, cfg.firstResponseHours*60, cfg)
	if err != nil {
		return time.Time{}, err
	}
	return deadline.UTC(), nil
}

// RemainingMinutes returns the business minutes left until deadline. It is
// zero, never negative, once now has reached the deadline.
func RemainingMinutes(deadline, now time.Time, cfg CalendarConfig) (int, error) {
	if !now.Before(deadline) {
		if err := cfg.check(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return ElapsedWorkMinutes(now, deadline, cfg)
}

// StatusAt classifies the deadline as seen at now.
func StatusAt(deadline, now time.Time, cfg CalendarConfig) (Status, error) {
	remaining, err := RemainingMinutes(deadline, now, cfg)
	if err != nil {
		return "", err
	}
	return Classify(remaining, cfg), nil
}

// Classify maps a remaining minute count to a tier. Both thresholds are warn
// ceilings, so only the larger one decides between normal and warn.
func Classify(remaining int, cfg CalendarConfig) Status {
	switch {
	case remaining <= 0:
		return StatusOverdue
	case remaining <= max(cfg.warn[0], cfg.warn[1]):
		return StatusWarn
	default:
		return StatusNormal
	}
}

// Evaluate is the single entry point used by both the sweep and the read
// path so that they can never disagree.
func Evaluate(deadline, now time.Time, cfg CalendarConfig) (Reading, error) {
	remaining, err := RemainingMinutes(deadline, now, cfg)
	if err != nil {
		return Reading{}, err
	}
	status := Classify(remaining, cfg)
	return Reading{
		Status:           status,
		RemainingMinutes: remaining,
		Deadline:         deadline.UTC(),
		Critical:         status == StatusWarn && remaining <= min(cfg.warn[0], cfg.warn[1]),
	}, nil
}
