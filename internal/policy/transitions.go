package policy

import (
	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// baseTransitions is the structural state machine, independent of role.
var baseTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:              {domain.TicketStatusInProgress, domain.TicketStatusWaitingOnCustomer, domain.TicketStatusResolved},
	domain.TicketStatusInProgress:        {domain.TicketStatusWaitingOnCustomer, domain.TicketStatusResolved},
	domain.TicketStatusWaitingOnCustomer: {domain.TicketStatusInProgress, domain.TicketStatusResolved},
	domain.TicketStatusResolved:          {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusClosed:            {},
}

// BaseTransitions returns the structurally legal next statuses.
func BaseTransitions(current domain.TicketStatus) []domain.TicketStatus {
	return append([]domain.TicketStatus{}, baseTransitions[current]...)
}

// AllowedTransitions returns the next statuses the actor may request. Admins get
// every base edge, agents every edge except closing, and requesters only the
// "ready again" edge out of WAITING_ON_CUSTOMER.
func AllowedTransitions(current domain.TicketStatus, actor domain.Actor) []domain.TicketStatus {
	base := baseTransitions[current]
	allowed := make([]domain.TicketStatus, 0, len(base))

	switch actor.Role {
	case domain.RoleAdmin:
		allowed = append(allowed, base...)
	case domain.RoleAgent:
		for _, next := range base {
			if next != domain.TicketStatusClosed {
				allowed = append(allowed, next)
			}
		}
	case domain.RoleRequester:
		if current == domain.TicketStatusWaitingOnCustomer && contains(base, domain.TicketStatusInProgress) {
			allowed = append(allowed, domain.TicketStatusInProgress)
		}
	}
	return allowed
}

// ValidateTransition separates moves that never exist (invalid transition)
// from moves this actor may not make (transition forbidden).
func ValidateTransition(current, next domain.TicketStatus, actor domain.Actor) error {
	if !contains(baseTransitions[current], next) {
		return apperrors.NewInvalidTransition(string(current), string(next))
	}
	if !contains(AllowedTransitions(current, actor), next) {
		return apperrors.NewTransitionForbidden(string(current), string(next))
	}
	return nil
}

// AssertCanChangeStatus gates status changes by ownership before the transition
// itself is checked. Requesters outside their own tickets get not-found.
func AssertCanChangeStatus(ticket *domain.Ticket, actor domain.Actor) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleRequester:
		if ticket.CreatedByUserID != actor.ID {
			return apperrors.NewNotFound("ticket", nil)
		}
		return nil
	case domain.RoleAgent:
		if !ticket.IsAssignedTo(actor.ID) {
			return apperrors.NewForbidden("agent can only update status of assigned tickets")
		}
		return nil
	}
	return apperrors.NewForbidden("status change not permitted")
}

func contains(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}
