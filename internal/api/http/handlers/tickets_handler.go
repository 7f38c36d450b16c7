package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/policy"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/service"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxSearchLength = 200
)

// TicketsHandler manages ticket endpoints for every role.
type TicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignments *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignments: assignments}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	view, err := h.tickets.CreateTicket(c.UserContext(), actor, req.Input(), requestContext(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(view, true)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	input, err := parseListQuery(c, true)
	if err != nil {
		return err
	}
	page, err := h.tickets.ListTickets(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.JSON(ticketPage(page))
}

// Queue GET /tickets/queue.
func (h *TicketsHandler) Queue(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	input, err := parseListQuery(c, false)
	if err != nil {
		return err
	}
	page, err := h.tickets.Queue(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.JSON(ticketPage(page))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id", "ticket")
	if err != nil {
		return err
	}
	view, err := h.tickets.GetTicket(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	withEvidence := policy.CanParticipate(&view.Ticket, actor)
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(view, withEvidence)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id", "ticket")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.tickets.UpdateTicket(c.UserContext(), actor, ticketID, req.Input(), requestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(view, false)})
}

// ChangeStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id", "ticket")
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.tickets.ChangeStatus(c.UserContext(), actor, ticketID, req.Status, requestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(view, false)})
}

// AssignTicket PATCH /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id", "ticket")
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	target, err := req.Target()
	if err != nil {
		return err
	}
	view, err := h.assignments.AssignTicket(c.UserContext(), actor, ticketID, target, requestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(view, false)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id", "ticket")
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	comment, err := h.tickets.AddComment(c.UserContext(), actor, ticketID, req.Body, requestContext(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment)})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id", "ticket")
	if err != nil {
		return err
	}
	comments, err := h.tickets.ListComments(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, dto.NewCommentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func ticketPage(page service.Page[service.TicketView]) fiber.Map {
	items := make([]dto.TicketResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, dto.NewTicketResponse(&page.Items[i], false))
	}
	return fiber.Map{"data": items, "pagination": dto.NewPagination(page)}
}

// parseListQuery reads listing filters. Sorting is only accepted on the
// plain listing; the queue has a fixed order.
func parseListQuery(c *fiber.Ctx, sortable bool) (service.ListTicketsInput, error) {
	var input service.ListTicketsInput
	details := map[string]any{}

	page, err := queryInt(c, "page", 1, 0)
	if err != nil {
		return input, err
	}
	pageSize, err := queryInt(c, "pageSize", defaultPageSize, maxPageSize)
	if err != nil {
		return input, err
	}
	input.Page, input.PageSize = page, pageSize

	if raw := c.Query("status"); raw != "" {
		status := domain.TicketStatus(raw)
		if !status.Valid() {
			details["status"] = "unknown status"
		}
		input.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := domain.TicketPriority(raw)
		if !priority.Valid() {
			details["priority"] = "unknown priority"
		}
		input.Priority = &priority
	}
	if raw := c.Query("search"); raw != "" {
		if utf8.RuneCountInString(raw) > maxSearchLength {
			details["search"] = "must be at most 200 characters"
		}
		input.Search = &raw
	}
	input.Assigned = service.AssignedScope(c.Query("assigned"))
	if !input.Assigned.Valid() {
		details["assigned"] = "must be one of assigned, unassigned, mine"
	}

	if sortable {
		input.SortBy = repository.TicketSortField(c.Query("sortBy", string(repository.SortCreatedAt)))
		if !input.SortBy.Valid() || input.SortBy == repository.SortQueue {
			details["sortBy"] = "must be one of createdAt, dueAt, priority, status"
		}
		switch strings.ToUpper(c.Query("sortOrder", "DESC")) {
		case "ASC":
			input.Ascending = true
		case "DESC":
		default:
			details["sortOrder"] = "must be ASC or DESC"
		}
	}

	if len(details) > 0 {
		return input, apperrors.NewValidationError("invalid query parameters", details)
	}
	return input, nil
}
