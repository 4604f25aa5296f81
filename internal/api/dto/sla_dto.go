package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/ticket-sla/internal/sla"
)

// CalendarResponse is the effective business calendar.
type CalendarResponse struct {
	Timezone           string   `json:"timezone"`
	Workdays           []string `json:"workdays"`
	WorkStartHour      int      `json:"work_start_hour"`
	WorkEndHour        int      `json:"work_end_hour"`
	FirstResponseHours int      `json:"first_response_hours"`
	WarnThresholds     [2]int   `json:"warn_thresholds"`
	Holidays           []string `json:"holidays"`
}

// NewCalendarResponse renders the calendar. Weekdays use their three
// letter lowercase names, holidays YYYY-MM-DD.
func NewCalendarResponse(cal sla.CalendarConfig) CalendarResponse {
	resp := CalendarResponse{
		Timezone:           cal.Timezone(),
		WorkStartHour:      cal.WorkStartHour(),
		WorkEndHour:        cal.WorkEndHour(),
		FirstResponseHours: cal.FirstResponseHours(),
		WarnThresholds:     cal.WarnThresholds(),
		Workdays:           []string{},
		Holidays:           []string{},
	}
	for _, wd := range cal.Workdays() {
		resp.Workdays = append(resp.Workdays, strings.ToLower(wd.String()[:3]))
	}
	for _, d := range cal.Holidays() {
		resp.Holidays = append(resp.Holidays, d.String())
	}
	return resp
}

// DeadlinePreviewResponse answers GET /sla/preview.
type DeadlinePreviewResponse struct {
	CreatedAt        time.Time  `json:"created_at"`
	DueAt            time.Time  `json:"due_at"`
	DueAtLocal       string     `json:"due_at_local"`
	Status           sla.Status `json:"status"`
	RemainingMinutes int        `json:"remaining_minutes"`
	Critical         bool       `json:"critical"`
}

// SLASummaryResponse answers GET /sla/summary.
type SLASummaryResponse struct {
	Normal  int64    `json:"normal"`
	Warn    int64    `json:"warn"`
	Overdue int64    `json:"overdue"`
	PastDue []string `json:"past_due"`
}

// SweepResponse answers POST /sla/sweep.
type SweepResponse struct {
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Checked    int       `json:"checked"`
	Changed    int       `json:"changed"`
	Failed     int       `json:"failed"`
}
