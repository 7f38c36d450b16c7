package service

import (
	"context"
	"time"

	"github.com/spec-kit/workorder-service/internal/audit"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/policy"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	store    repository.Store
	recorder *audit.Recorder
	views    *TicketService
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store    repository.Store
	Recorder *audit.Recorder
	// Tickets renders the resulting view so SLA and transitions share one clock.
	Tickets *TicketService
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = audit.NewRecorder(nil)
	}
	views := deps.Tickets
	if views == nil {
		views = NewTicketService(TicketDependencies{Store: deps.Store, Recorder: recorder})
	}
	return &AssignmentService{store: deps.Store, recorder: recorder, views: views}
}

// AssignTicket sets or clears the assignee. Non-lead agents may only claim
// unassigned tickets for themselves; leads and admins may set any agent or
// clear the assignment. A target that is not an agent account is rejected
// after the permission check.
func (s *AssignmentService) AssignTicket(ctx context.Context, actor domain.Actor, ticketID string, target *string, rc audit.RequestContext) (*TicketView, error) {
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleAgent {
		return nil, apperrors.NewForbidden("only agents and admins can assign tickets")
	}

	var updated domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := loadTicket(ctx, tx.Tickets(), ticketID)
		if err != nil {
			return err
		}
		if err := policy.AssertCanAssign(ticket, actor, target); err != nil {
			return err
		}
		if target != nil {
			if err := ensureAgent(ctx, tx.Users(), *target); err != nil {
				return err
			}
		}

		previous := ticket.AssignedToUserID
		if target != nil {
			ticket.AssignedToUserID = strPtr(*target)
		} else {
			ticket.AssignedToUserID = nil
		}
		ticket.UpdatedAt = s.now()
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if _, err := s.recorder.Record(ctx, tx.AuditLogs(), audit.Entry{
			Actor:        &actor,
			Action:       domain.AuditTicketAssigned,
			ResourceType: domain.ResourceTicket,
			ResourceID:   ticket.ID,
			Metadata: map[string]any{
				"previousAssigneeId": derefOrNil(previous),
				"nextAssigneeId":     derefOrNil(ticket.AssignedToUserID),
			},
			Request: rc,
		}); err != nil {
			return err
		}
		updated = *ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.views.View(updated, actor)
	return &view, nil
}

func (s *AssignmentService) now() time.Time {
	return s.views.now()
}

func ensureAgent(ctx context.Context, users repository.UserRepository, userID string) error {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewInvalidAssignee(userID)
		}
		return err
	}
	if user.Role != domain.RoleAgent {
		return apperrors.NewInvalidAssignee(userID)
	}
	return nil
}
