package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sla/internal/api/dto"
	"github.com/spec-kit/ticket-sla/internal/auth"
	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/service"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util/errorutil"
)

// TicketUseCases is the slice of the ticket service the handlers need.
type TicketUseCases interface {
	CreateTicket(ctx context.Context, userID string, input service.TicketCreateInput) (*domain.Ticket, error)
	GetTicket(ctx context.Context, principal domain.Principal, ticketID string) (*service.TicketView, error)
	AddMessage(ctx context.Context, principal domain.Principal, ticketID string, messageType domain.TicketMessageType, body string) (*domain.TicketMessage, error)
}

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service TicketUseCases
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService TicketUseCases) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.Subject != domain.SubjectTypeUser {
		return apperrors.NewForbidden("only end-users can open tickets")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("title, description required", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), principal.SubjectID, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tags:        req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	view, err := h.service.GetTicket(c.UserContext(), *principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperrors.NewValidationError("body required", nil)
	}
	messageType := domain.MessageTypePublicReply
	if req.MessageType != nil {
		messageType = *req.MessageType
	}
	msg, err := h.service.AddMessage(c.UserContext(), *principal, c.Params("id"), messageType, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketMessageResponse(msg)})
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:                 ticket.ID,
		ExternalKey:        ticket.ExternalKey,
		Title:              ticket.Title,
		Status:             ticket.Status,
		Priority:           ticket.Priority,
		Tags:               ticket.Tags,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
		FirstResponseDueAt: ticket.FirstResponseDueAt,
		SLAStatus:          ticket.SLAStatus,
	}
}

func ticketDetail(view *service.TicketView) dto.TicketDetailResponse {
	ticket := view.Ticket
	msgs := make([]dto.TicketMessageResponse, 0, len(view.Messages))
	for i := range view.Messages {
		msgs = append(msgs, ticketMessageResponse(&view.Messages[i]))
	}
	return dto.TicketDetailResponse{
		ID:          ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		Tags:        ticket.Tags,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
		ClosedAt:    ticket.ClosedAt,
		SLA:         slaResponse(view.SLA),
		Messages:    msgs,
		History:     historyResponses(view.History),
	}
}

func slaResponse(v service.SLAView) dto.SLAResponse {
	if !v.Available {
		return dto.SLAResponse{Available: false, Message: "SLA unavailable"}
	}
	due := v.DueAt
	resp := dto.SLAResponse{
		Available:   true,
		Answered:    v.Answered,
		Status:      v.Status,
		Critical:    v.Critical,
		DueAt:       &due,
		RespondedAt: v.RespondedAt,
	}
	if !v.Answered {
		remaining := v.RemainingMinutes
		resp.RemainingMinutes = &remaining
	}
	return resp
}

func ticketMessageResponse(msg *domain.TicketMessage) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:          msg.ID,
		MessageType: msg.MessageType,
		AuthorType:  msg.AuthorType,
		AuthorID:    msg.AuthorID,
		Body:        msg.Body,
		CreatedAt:   msg.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	if len(entries) == 0 {
		return nil
	}
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByType: entry.ChangedByType,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}
