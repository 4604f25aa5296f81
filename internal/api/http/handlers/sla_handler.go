package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sla/internal/api/dto"
	"github.com/spec-kit/ticket-sla/internal/calendar"
	"github.com/spec-kit/ticket-sla/internal/service"
	"github.com/spec-kit/ticket-sla/internal/sla"
	"github.com/spec-kit/ticket-sla/internal/worker"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util/errorutil"
)

// DeadlinePreviewer computes hypothetical deadlines.
type DeadlinePreviewer interface {
	PreviewDeadline(createdAt time.Time) (*service.DeadlinePreview, error)
}

// SLASummarizer reads the status mirror.
type SLASummarizer interface {
	Summary(ctx context.Context) (*service.SLASummary, error)
}

// SweepTrigger starts a sweep on demand.
type SweepTrigger interface {
	RunOnce(ctx context.Context) (service.SweepResult, error)
}

// SLAHandler serves the calendar and SLA operations endpoints.
type SLAHandler struct {
	calendar calendar.Source
	preview  DeadlinePreviewer
	summary  SLASummarizer
	sweeps   SweepTrigger
}

// NewSLAHandler constructs handler.
func NewSLAHandler(src calendar.Source, preview DeadlinePreviewer, summary SLASummarizer, sweeps SweepTrigger) *SLAHandler {
	return &SLAHandler{calendar: src, preview: preview, summary: summary, sweeps: sweeps}
}

// Config GET /sla/config.
func (h *SLAHandler) Config(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewCalendarResponse(h.calendar.Current())})
}

// Preview GET /sla/preview?created_at=RFC3339.
func (h *SLAHandler) Preview(c *fiber.Ctx) error {
	raw := c.Query("created_at")
	if raw == "" {
		return apperrors.NewValidationError("created_at required", nil)
	}
	createdAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return apperrors.NewValidationError("created_at must be RFC3339", map[string]any{"created_at": raw})
	}
	p, err := h.preview.PreviewDeadline(createdAt)
	if err != nil {
		return err
	}
	loc := h.calendar.Current().Location()
	return c.JSON(fiber.Map{"data": dto.DeadlinePreviewResponse{
		CreatedAt:        p.CreatedAt,
		DueAt:            p.DueAt,
		DueAtLocal:       p.DueAt.In(loc).Format(time.RFC3339),
		Status:           p.Reading.Status,
		RemainingMinutes: p.Reading.RemainingMinutes,
		Critical:         p.Reading.Critical,
	}})
}

// Summary GET /sla/summary.
func (h *SLAHandler) Summary(c *fiber.Ctx) error {
	s, err := h.summary.Summary(c.UserContext())
	if err != nil {
		return err
	}
	pastDue := s.PastDue
	if pastDue == nil {
		pastDue = []string{}
	}
	return c.JSON(fiber.Map{"data": dto.SLASummaryResponse{
		Normal:  s.Counts[sla.StatusNormal],
		Warn:    s.Counts[sla.StatusWarn],
		Overdue: s.Counts[sla.StatusOverdue],
		PastDue: pastDue,
	}})
}

// Sweep POST /sla/sweep.
func (h *SLAHandler) Sweep(c *fiber.Ctx) error {
	res, err := h.sweeps.RunOnce(c.UserContext())
	if err != nil {
		if errors.Is(err, worker.ErrSweepInProgress) {
			return apperrors.NewConflict("sweep already in progress", nil)
		}
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.SweepResponse{
		StartedAt:  res.StartedAt,
		DurationMS: res.Duration.Milliseconds(),
		Checked:    res.Checked,
		Changed:    res.Changed,
		Failed:     res.Failed,
	}})
}
