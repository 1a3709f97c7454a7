package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.Context(), service.TicketCreateInput{
		DisplayCode: req.DisplayCode,
		CustomerID:  req.CustomerID,
		MachineID:   req.MachineID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	tickets, err := h.service.ListTickets(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetHistory GET /tickets/:id/history.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	entries, err := h.service.ListHistory(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.TicketHistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := requireEngineer(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.EngineerID) == "" {
		return apperrors.NewValidationError("engineer_id required", nil)
	}
	ticket, err := h.service.Assign(c.Context(), actor, c.Params("id"), req.EngineerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// TakeTicket POST /tickets/:id/take.
func (h *TicketsHandler) TakeTicket(c *fiber.Ctx) error {
	actor, err := requireEngineer(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.TakeTicket(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// CancelAssignment POST /tickets/:id/assignment/cancel.
func (h *TicketsHandler) CancelAssignment(c *fiber.Ctx) error {
	actor, err := requireEngineer(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.CancelAssignment(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// StartWork POST /tickets/:id/start.
func (h *TicketsHandler) StartWork(c *fiber.Ctx) error {
	actor, err := requireEngineer(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.StartWork(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// CompleteTicket POST /tickets/:id/complete.
func (h *TicketsHandler) CompleteTicket(c *fiber.Ctx) error {
	actor, err := requireEngineer(c)
	if err != nil {
		return err
	}
	var req dto.CompleteTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Complete(c.Context(), actor, c.Params("id"), req.SolutionNotes, req.SparesUsed)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	actor, err := requireEngineer(c)
	if err != nil {
		return err
	}
	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Close(c.Context(), actor, c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func requireEngineer(c *fiber.Ctx) (*domain.Engineer, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Engineer == nil {
		return nil, apperrors.NewUnauthorized("engineer required")
	}
	return principal.Engineer, nil
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if customer := c.Query("customer_id"); customer != "" {
		filter.CustomerID = &customer
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:            ticket.ID,
		DisplayID:     ticket.DisplayID(),
		CustomerID:    ticket.CustomerID,
		MachineID:     ticket.MachineID,
		Title:         ticket.Title,
		Description:   ticket.Description,
		Status:        ticket.Status,
		Priority:      ticket.Priority,
		WorkStatus:    ticket.WorkStatus,
		AssignedTo:    ticket.AssignedTo,
		SolutionNotes: ticket.SolutionNotes,
		SparesUsed:    ticket.SparesUsed,
		CloseNotes:    ticket.CloseNotes,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
		AssignedAt:    ticket.AssignedAt,
		ResolvedAt:    ticket.ResolvedAt,
		ClosedAt:      ticket.ClosedAt,
	}
}
