package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/workorder-service/internal/audit"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/policy"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/sla"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// TransitionObserver is told about committed status changes.
type TransitionObserver interface {
	RecordTransition(from, to string)
}

// TicketService coordinates ticket workflows: every mutation is checked
// against policy and written together with its audit entry.
type TicketService struct {
	store    repository.Store
	recorder *audit.Recorder
	observer TransitionObserver
	Now      func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store    repository.Store
	Recorder *audit.Recorder
	Observer TransitionObserver
}

// TicketView is a ticket as seen by one actor at one instant.
type TicketView struct {
	domain.Ticket
	SLARemainingMinutes int64
	SLARisk             sla.Risk
	AllowedTransitions  []domain.TicketStatus
	Evidence            []domain.Evidence
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// UpdateTicketInput carries the fields to change. Nil means unchanged.
type UpdateTicketInput struct {
	Title       *string
	Description *string
	Priority    *domain.TicketPriority
}

// AssignedScope narrows listings by assignment.
type AssignedScope string

const (
	AssignedAny        AssignedScope = ""
	AssignedAssigned   AssignedScope = "assigned"
	AssignedMine       AssignedScope = "mine"
	AssignedUnassigned AssignedScope = "unassigned"
)

// Valid reports whether s is a known scope.
func (s AssignedScope) Valid() bool {
	switch s {
	case AssignedAny, AssignedAssigned, AssignedMine, AssignedUnassigned:
		return true
	}
	return false
}

// ListTicketsInput describes listing filters. Listings sort descending
// unless Ascending is set; the queue ignores both sort fields.
type ListTicketsInput struct {
	Status    *domain.TicketStatus
	Priority  *domain.TicketPriority
	Search    *string
	Assigned  AssignedScope
	SortBy    repository.TicketSortField
	Ascending bool
	Page      int
	PageSize  int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = audit.NewRecorder(nil)
	}
	return &TicketService{
		store:    deps.Store,
		recorder: recorder,
		observer: deps.Observer,
		Now:      time.Now,
	}
}

func (s *TicketService) now() time.Time {
	return s.Now().UTC()
}

// View decorates a ticket with SLA state and the actor's next statuses.
func (s *TicketService) View(ticket domain.Ticket, actor domain.Actor) TicketView {
	status := sla.ComputeSLA(ticket.CreatedAt, ticket.DueAt, s.now())
	return TicketView{
		Ticket:              ticket,
		SLARemainingMinutes: status.RemainingMinutes,
		SLARisk:             status.Risk,
		AllowedTransitions:  policy.AllowedTransitions(ticket.Status, actor),
	}
}

// CreateTicket opens a ticket on behalf of a requester or admin.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input CreateTicketInput, rc audit.RequestContext) (*TicketView, error) {
	if !policy.CanCreate(actor) {
		return nil, apperrors.NewForbidden("only requesters and admins can create tickets")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description are required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	now := s.now()
	ticket := &domain.Ticket{
		Title:           title,
		Description:     description,
		Status:          domain.TicketStatusOpen,
		Priority:        priority,
		CreatedByUserID: actor.ID,
		DueAt:           sla.ComputeDueAt(priority, now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, tx.AuditLogs(), audit.Entry{
			Actor:        &actor,
			Action:       domain.AuditTicketCreated,
			ResourceType: domain.ResourceTicket,
			ResourceID:   ticket.ID,
			Metadata:     map[string]any{"title": ticket.Title, "priority": string(ticket.Priority)},
			Request:      rc,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	view := s.View(*ticket, actor)
	view.Evidence = []domain.Evidence{}
	return &view, nil
}

// GetTicket returns a ticket the actor may see. Evidence is attached only for
// actors who may participate on the ticket.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*TicketView, error) {
	ticket, err := loadTicket(ctx, s.store.Tickets(), ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.AssertCanView(ticket, actor); err != nil {
		return nil, err
	}

	view := s.View(*ticket, actor)
	view.Evidence = []domain.Evidence{}
	if policy.CanParticipate(ticket, actor) {
		evidence, err := s.store.Evidence().ListByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		view.Evidence = evidence
	}
	return &view, nil
}

// ListTickets returns the actor's tickets, newest first unless sorted otherwise.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, input ListTicketsInput) (Page[TicketView], error) {
	sortBy := input.SortBy
	if sortBy == "" {
		sortBy = repository.SortCreatedAt
	}
	if !sortBy.Valid() || sortBy == repository.SortQueue {
		return Page[TicketView]{}, apperrors.NewValidationError("invalid sortBy", map[string]any{"sortBy": sortBy})
	}
	filter, err := scopeFilter(actor, input.Assigned)
	if err != nil {
		return Page[TicketView]{}, err
	}
	filter.SortBy = sortBy
	filter.Descending = !input.Ascending
	return s.list(ctx, actor, filter, input)
}

// Queue returns the triage queue: most urgent first, then earliest due, then
// newest. Only agents and admins have a queue.
func (s *TicketService) Queue(ctx context.Context, actor domain.Actor, input ListTicketsInput) (Page[TicketView], error) {
	if !policy.CanUseQueue(actor) {
		return Page[TicketView]{}, apperrors.NewForbidden("only agents and admins can access the queue")
	}
	filter, err := scopeFilter(actor, input.Assigned)
	if err != nil {
		return Page[TicketView]{}, err
	}
	filter.SortBy = repository.SortQueue
	return s.list(ctx, actor, filter, input)
}

func (s *TicketService) list(ctx context.Context, actor domain.Actor, filter repository.TicketFilter, input ListTicketsInput) (Page[TicketView], error) {
	p := newPagination(input.Page, input.PageSize, defaultPageSize)
	filter.Status = input.Status
	filter.Priority = input.Priority
	filter.Search = input.Search
	filter.Limit = p.pageSize
	filter.Offset = p.offset()

	tickets, total, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return Page[TicketView]{}, err
	}
	views := make([]TicketView, 0, len(tickets))
	for _, ticket := range tickets {
		views = append(views, s.View(ticket, actor))
	}
	return newPage(views, p, total), nil
}

// scopeFilter applies role visibility before any user-supplied narrowing.
func scopeFilter(actor domain.Actor, scope AssignedScope) (repository.TicketFilter, error) {
	var filter repository.TicketFilter
	if !scope.Valid() {
		return filter, apperrors.NewValidationError("invalid assigned filter", map[string]any{"assigned": scope})
	}

	switch actor.Role {
	case domain.RoleRequester:
		filter.CreatedByUserID = strPtr(actor.ID)
		return filter, nil
	case domain.RoleAgent:
		filter.VisibleToAgent = strPtr(actor.ID)
	case domain.RoleAdmin:
		if scope == AssignedAssigned {
			filter.AssignedOnly = true
		}
	default:
		return filter, apperrors.NewForbidden("unknown role")
	}

	switch scope {
	case AssignedMine:
		filter.AssigneeID = strPtr(actor.ID)
	case AssignedAssigned:
		if actor.Role == domain.RoleAgent {
			filter.AssigneeID = strPtr(actor.ID)
		}
	case AssignedUnassigned:
		filter.UnassignedOnly = true
	}
	return filter, nil
}

// UpdateTicket edits title, description or priority. The due date keeps its
// creation-time value even when priority changes.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, ticketID string, input UpdateTicketInput, rc audit.RequestContext) (*TicketView, error) {
	fields := policy.FieldUpdate{
		Title:       input.Title != nil,
		Description: input.Description != nil,
		Priority:    input.Priority != nil,
	}
	if !fields.Any() {
		return nil, apperrors.NewValidationError("at least one field must be provided", nil)
	}

	var updated domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := loadTicket(ctx, tx.Tickets(), ticketID)
		if err != nil {
			return err
		}
		if err := policy.AssertCanView(ticket, actor); err != nil {
			return err
		}
		if err := policy.AssertCanModify(ticket, actor); err != nil {
			return err
		}
		if err := policy.AssertFieldUpdate(actor, fields); err != nil {
			return err
		}

		changed := []string{}
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return apperrors.NewValidationError("title cannot be empty", nil)
			}
			ticket.Title = title
			changed = append(changed, "title")
		}
		if input.Description != nil {
			description := strings.TrimSpace(*input.Description)
			if description == "" {
				return apperrors.NewValidationError("description cannot be empty", nil)
			}
			ticket.Description = description
			changed = append(changed, "description")
		}
		if input.Priority != nil {
			if !input.Priority.Valid() {
				return apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
			}
			ticket.Priority = *input.Priority
			changed = append(changed, "priority")
		}
		ticket.UpdatedAt = s.now()

		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		updatedFields := make([]any, 0, len(changed))
		for _, f := range changed {
			updatedFields = append(updatedFields, f)
		}
		if _, err := s.recorder.Record(ctx, tx.AuditLogs(), audit.Entry{
			Actor:        &actor,
			Action:       domain.AuditTicketUpdated,
			ResourceType: domain.ResourceTicket,
			ResourceID:   ticket.ID,
			Metadata:     map[string]any{"updatedFields": updatedFields},
			Request:      rc,
		}); err != nil {
			return err
		}
		updated = *ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.View(updated, actor)
	return &view, nil
}

// ChangeStatus moves a ticket along the state machine.
func (s *TicketService) ChangeStatus(ctx context.Context, actor domain.Actor, ticketID string, next domain.TicketStatus, rc audit.RequestContext) (*TicketView, error) {
	if !next.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": next})
	}

	var (
		updated  domain.Ticket
		previous domain.TicketStatus
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := loadTicket(ctx, tx.Tickets(), ticketID)
		if err != nil {
			return err
		}
		if err := policy.AssertCanChangeStatus(ticket, actor); err != nil {
			return err
		}
		if err := policy.ValidateTransition(ticket.Status, next, actor); err != nil {
			return err
		}

		previous = ticket.Status
		ticket.Status = next
		ticket.UpdatedAt = s.now()
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if _, err := s.recorder.Record(ctx, tx.AuditLogs(), audit.Entry{
			Actor:        &actor,
			Action:       domain.AuditTicketStatusChanged,
			ResourceType: domain.ResourceTicket,
			ResourceID:   ticket.ID,
			Metadata:     map[string]any{"previousStatus": string(previous), "nextStatus": string(next)},
			Request:      rc,
		}); err != nil {
			return err
		}
		updated = *ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer.RecordTransition(string(previous), string(next))
	}
	view := s.View(updated, actor)
	return &view, nil
}

// AddComment appends a comment to a ticket the actor participates in.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID, body string, rc audit.RequestContext) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body is required", nil)
	}

	var comment *domain.Comment
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := loadTicket(ctx, tx.Tickets(), ticketID)
		if err != nil {
			return err
		}
		if err := policy.AssertCanView(ticket, actor); err != nil {
			return err
		}
		if err := policy.AssertCanParticipate(ticket, actor); err != nil {
			return err
		}

		comment = &domain.Comment{
			TicketID:  ticket.ID,
			UserID:    actor.ID,
			Body:      body,
			CreatedAt: s.now(),
		}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		_, err = s.recorder.Record(ctx, tx.AuditLogs(), audit.Entry{
			Actor:        &actor,
			Action:       domain.AuditCommentAdded,
			ResourceType: domain.ResourceTicket,
			ResourceID:   ticket.ID,
			Metadata:     map[string]any{"commentId": comment.ID},
			Request:      rc,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns a ticket's comments oldest first.
func (s *TicketService) ListComments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Comment, error) {
	ticket, err := loadTicket(ctx, s.store.Tickets(), ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.AssertCanView(ticket, actor); err != nil {
		return nil, err
	}
	if err := policy.AssertCanParticipate(ticket, actor); err != nil {
		return nil, err
	}
	return s.store.Comments().ListByTicket(ctx, ticket.ID)
}
