// Package policy holds the pure authorization and status transition rules for
// tickets. Every function takes the actor explicitly.
package policy

import (
	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// CanView reports whether the actor may see the ticket at all. Agents see
// their own work plus the unclaimed pool.
func CanView(ticket *domain.Ticket, actor domain.Actor) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleRequester:
		return ticket.CreatedByUserID == actor.ID
	case domain.RoleAgent:
		return ticket.Unassigned() || ticket.IsAssignedTo(actor.ID)
	}
	return false
}

// CanParticipate reports whether the actor may read and write comments and
// evidence on the ticket.
func CanParticipate(ticket *domain.Ticket, actor domain.Actor) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	if ticket.CreatedByUserID == actor.ID {
		return true
	}
	return ticket.IsAssignedTo(actor.ID)
}

// CanModify reports whether the actor may edit title, description or priority.
func CanModify(ticket *domain.Ticket, actor domain.Actor) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleRequester:
		return ticket.CreatedByUserID == actor.ID
	case domain.RoleAgent:
		return ticket.IsAssignedTo(actor.ID)
	}
	return false
}

// CanAssign reports whether the actor may set the ticket assignee to target.
// A nil target unassigns. Non-lead agents may only claim an unassigned ticket
// for themselves. Whether target is an agent account is checked separately.
func CanAssign(ticket *domain.Ticket, actor domain.Actor, target *string) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleAgent:
		if actor.IsLead {
			return true
		}
		return ticket.Unassigned() && target != nil && *target == actor.ID
	}
	return false
}

// AssertCanView hides tickets the actor may not see behind a not-found error.
func AssertCanView(ticket *domain.Ticket, actor domain.Actor) error {
	if !CanView(ticket, actor) {
		return apperrors.NewNotFound("ticket", nil)
	}
	return nil
}

func AssertCanParticipate(ticket *domain.Ticket, actor domain.Actor) error {
	if !CanParticipate(ticket, actor) {
		return apperrors.NewForbidden("you are not allowed to access this ticket content")
	}
	return nil
}

func AssertCanModify(ticket *domain.Ticket, actor domain.Actor) error {
	if !CanModify(ticket, actor) {
		return apperrors.NewForbidden("you are not allowed to modify this ticket")
	}
	return nil
}

func AssertCanAssign(ticket *domain.Ticket, actor domain.Actor, target *string) error {
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleAgent {
		return apperrors.NewForbidden("only admin and agent can assign tickets")
	}
	if !CanAssign(ticket, actor, target) {
		return apperrors.NewForbiddenCode(apperrors.CodeAssignmentForbidden,
			"non-lead agents can only assign unassigned tickets to themselves")
	}
	return nil
}

// FieldUpdate lists which editable fields a request touches.
type FieldUpdate struct {
	Title       bool
	Description bool
	Priority    bool
}

// Any reports whether at least one field is set.
func (f FieldUpdate) Any() bool {
	return f.Title || f.Description || f.Priority
}

// AssertFieldUpdate layers field-level restrictions on top of CanModify:
// requesters cannot reprioritise and agents cannot retitle.
func AssertFieldUpdate(actor domain.Actor, fields FieldUpdate) error {
	if actor.Role == domain.RoleRequester && fields.Priority {
		return apperrors.NewForbidden("requester cannot change ticket priority after creation")
	}
	if actor.Role == domain.RoleAgent && fields.Title {
		return apperrors.NewForbidden("agent cannot update ticket title")
	}
	return nil
}

// CanCreate reports whether the actor may file new tickets.
func CanCreate(actor domain.Actor) bool {
	return actor.Role == domain.RoleRequester || actor.Role == domain.RoleAdmin
}

// CanUseQueue reports whether the actor may read the triage queue.
func CanUseQueue(actor domain.Actor) bool {
	return actor.Role == domain.RoleAgent || actor.Role == domain.RoleAdmin
}
