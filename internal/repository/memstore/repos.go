package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/queue"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// ErrDuplicateEmail mirrors the unique index on users.email.
var ErrDuplicateEmail = fmt.Errorf("memstore: email already registered: %w", apperrors.ErrDuplicate)

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	defer r.s.lock()()
	ticket.ID = uuid.NewString()
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	stored.AssignedToUserID = cloneString(ticket.AssignedToUserID)
	r.s.data.tickets[ticket.ID] = stored
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	defer r.s.lock()()
	current, ok := r.s.data.tickets[ticket.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	current.Title = ticket.Title
	current.Description = ticket.Description
	current.Status = ticket.Status
	current.Priority = ticket.Priority
	current.AssignedToUserID = cloneString(ticket.AssignedToUserID)
	current.UpdatedAt = ticket.UpdatedAt
	r.s.data.tickets[ticket.ID] = current
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	defer r.s.lock()()
	ticket, ok := r.s.data.tickets[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	ticket.AssignedToUserID = cloneString(ticket.AssignedToUserID)
	return &ticket, nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	defer r.s.lock()()

	matched := []domain.Ticket{}
	for _, ticket := range r.s.data.tickets {
		if matchTicket(ticket, filter) {
			ticket.AssignedToUserID = cloneString(ticket.AssignedToUserID)
			matched = append(matched, ticket)
		}
	}
	sortTickets(matched, filter.SortBy, filter.Descending)

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	return paginate(matched, limit, filter.Offset), len(matched), nil
}

func matchTicket(t domain.Ticket, f repository.TicketFilter) bool {
	if f.CreatedByUserID != nil && t.CreatedByUserID != *f.CreatedByUserID {
		return false
	}
	if f.VisibleToAgent != nil && !t.Unassigned() && !t.IsAssignedTo(*f.VisibleToAgent) {
		return false
	}
	if f.AssigneeID != nil && !t.IsAssignedTo(*f.AssigneeID) {
		return false
	}
	if f.AssignedOnly && t.Unassigned() {
		return false
	}
	if f.UnassignedOnly && !t.Unassigned() {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Search != nil {
		term := strings.ToLower(strings.TrimSpace(*f.Search))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

func statusRank(s domain.TicketStatus) int {
	for i, candidate := range domain.TicketStatuses {
		if candidate == s {
			return i + 1
		}
	}
	return len(domain.TicketStatuses) + 1
}

func sortTickets(tickets []domain.Ticket, field repository.TicketSortField, desc bool) {
	if field == repository.SortQueue {
		queue.Sort(tickets)
		return
	}
	// cmp returns <0, 0, >0 on the primary key only.
	cmp := func(a, b *domain.Ticket) int {
		switch field {
		case repository.SortPriority:
			return queue.PriorityRank(a.Priority) - queue.PriorityRank(b.Priority)
		case repository.SortStatus:
			return statusRank(a.Status) - statusRank(b.Status)
		case repository.SortDueAt:
			return a.DueAt.Compare(b.DueAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := &tickets[i], &tickets[j]
		if c := cmp(a, b); c != 0 {
			if desc {
				return c > 0
			}
			return c < 0
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	defer r.s.lock()()
	comment.ID = uuid.NewString()
	r.s.data.comments = append(r.s.data.comments, *comment)
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	defer r.s.lock()()
	result := []domain.Comment{}
	for _, c := range r.s.data.comments {
		if c.TicketID == ticketID {
			result = append(result, c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type evidenceRepo struct{ s *Store }

func (r evidenceRepo) Create(_ context.Context, evidence *domain.Evidence) error {
	defer r.s.lock()()
	evidence.ID = uuid.NewString()
	r.s.data.evidence[evidence.ID] = *evidence
	return nil
}

func (r evidenceRepo) GetByID(_ context.Context, id string) (*domain.Evidence, error) {
	defer r.s.lock()()
	evidence, ok := r.s.data.evidence[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &evidence, nil
}

func (r evidenceRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Evidence, error) {
	defer r.s.lock()()
	result := []domain.Evidence{}
	for _, e := range r.s.data.evidence {
		if e.TicketID == ticketID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r evidenceRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.data.evidence[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.data.evidence, id)
	return nil
}

type auditLogRepo struct{ s *Store }

func (r auditLogRepo) Create(_ context.Context, entry *domain.AuditLogEntry) error {
	defer r.s.lock()()
	entry.ID = uuid.NewString()
	r.s.data.auditLogs = append(r.s.data.auditLogs, *entry)
	return nil
}

func (r auditLogRepo) List(_ context.Context, filter repository.AuditLogFilter) ([]domain.AuditLogEntry, int, error) {
	defer r.s.lock()()
	matched := []domain.AuditLogEntry{}
	for _, e := range r.s.data.auditLogs {
		if filter.ActorUserID != nil && (e.ActorUserID == nil || *e.ActorUserID != *filter.ActorUserID) {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		if filter.DateFrom != nil && e.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && e.CreatedAt.After(*filter.DateTo) {
			continue
		}
		matched = append(matched, e)
	}
	// Newest first; append order breaks ties so later writes come first.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	return paginate(matched, limit, filter.Offset), len(matched), nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	defer r.s.lock()()
	for _, existing := range r.s.data.users {
		if existing.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	user.ID = uuid.NewString()
	user.UpdatedAt = user.CreatedAt
	r.s.data.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	defer r.s.lock()()
	user, ok := r.s.data.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &user, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	defer r.s.lock()()
	for _, user := range r.s.data.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}
