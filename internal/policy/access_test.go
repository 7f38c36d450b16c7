package policy

import (
	"testing"

	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

var (
	admin      = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	requester  = domain.Actor{ID: "req-1", Role: domain.RoleRequester}
	otherReq   = domain.Actor{ID: "req-2", Role: domain.RoleRequester}
	agent      = domain.Actor{ID: "agent-1", Role: domain.RoleAgent}
	otherAgent = domain.Actor{ID: "agent-2", Role: domain.RoleAgent}
	leadAgent  = domain.Actor{ID: "lead-1", Role: domain.RoleAgent, IsLead: true}
)

func strPtr(s string) *string { return &s }

func ticketFor(createdBy string, assignee *string) *domain.Ticket {
	return &domain.Ticket{
		ID:               "t-1",
		Status:           domain.TicketStatusOpen,
		Priority:         domain.TicketPriorityMedium,
		CreatedByUserID:  createdBy,
		AssignedToUserID: assignee,
	}
}

func TestCanView(t *testing.T) {
	unassigned := ticketFor(requester.ID, nil)
	mine := ticketFor(requester.ID, strPtr(agent.ID))

	cases := []struct {
		name   string
		ticket *domain.Ticket
		actor  domain.Actor
		want   bool
	}{
		{"admin sees everything", mine, admin, true},
		{"creator sees own", mine, requester, true},
		{"other requester hidden", mine, otherReq, false},
		{"agent sees unassigned pool", unassigned, otherAgent, true},
		{"assignee sees own work", mine, agent, true},
		{"agent cannot see colleague work", mine, otherAgent, false},
		{"lead agent has no extra visibility", mine, leadAgent, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanView(tc.ticket, tc.actor); got != tc.want {
				t.Fatalf("CanView = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanParticipateIsNarrowerThanView(t *testing.T) {
	pool := ticketFor(requester.ID, nil)
	if !CanView(pool, agent) {
		t.Fatalf("agent should see pool ticket")
	}
	if CanParticipate(pool, agent) {
		t.Fatalf("agent should not participate before claiming")
	}
	if !CanParticipate(pool, requester) || !CanParticipate(pool, admin) {
		t.Fatalf("creator and admin participate")
	}
	claimed := ticketFor(requester.ID, strPtr(agent.ID))
	if !CanParticipate(claimed, agent) {
		t.Fatalf("assignee participates")
	}
}

func TestCanModify(t *testing.T) {
	claimed := ticketFor(requester.ID, strPtr(agent.ID))
	if !CanModify(claimed, admin) || !CanModify(claimed, requester) || !CanModify(claimed, agent) {
		t.Fatalf("admin, creator and assignee may modify")
	}
	if CanModify(claimed, otherReq) || CanModify(claimed, otherAgent) || CanModify(claimed, leadAgent) {
		t.Fatalf("unrelated actors must not modify")
	}
}

func TestCanAssignNonLeadAgent(t *testing.T) {
	pool := ticketFor(requester.ID, nil)
	if !CanAssign(pool, agent, strPtr(agent.ID)) {
		t.Fatalf("agent may claim unassigned ticket")
	}
	if CanAssign(pool, agent, strPtr(otherAgent.ID)) {
		t.Fatalf("agent may not assign a colleague")
	}
	if CanAssign(pool, agent, nil) {
		t.Fatalf("agent may not unassign")
	}
	claimed := ticketFor(requester.ID, strPtr(agent.ID))
	if CanAssign(claimed, agent, strPtr(agent.ID)) {
		t.Fatalf("agent may not touch an assigned ticket, even to self")
	}
}

func TestCanAssignPrivileged(t *testing.T) {
	claimed := ticketFor(requester.ID, strPtr(agent.ID))
	for _, actor := range []domain.Actor{admin, leadAgent} {
		if !CanAssign(claimed, actor, strPtr(otherAgent.ID)) {
			t.Fatalf("%s should reassign", actor.ID)
		}
		if !CanAssign(claimed, actor, nil) {
			t.Fatalf("%s should unassign", actor.ID)
		}
	}
	if CanAssign(claimed, requester, strPtr(agent.ID)) {
		t.Fatalf("requesters never assign")
	}
}

func TestAssertErrorsMapToStatus(t *testing.T) {
	claimed := ticketFor(requester.ID, strPtr(agent.ID))

	err := AssertCanView(claimed, otherReq)
	if !apperrors.HasCode(err, apperrors.CodeTicketNotFound) {
		t.Fatalf("view failure should be not found, got %v", err)
	}
	if de := apperrors.ToDomainError(err); de.HTTPStatus != 404 {
		t.Fatalf("view failure status %d", de.HTTPStatus)
	}
	if err := AssertCanParticipate(claimed, otherAgent); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("participate failure should be forbidden, got %v", err)
	}
	if err := AssertCanModify(claimed, otherAgent); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("modify failure should be forbidden, got %v", err)
	}
	if err := AssertCanAssign(claimed, agent, strPtr(agent.ID)); !apperrors.HasCode(err, apperrors.CodeAssignmentForbidden) {
		t.Fatalf("assign failure should be assignment forbidden, got %v", err)
	}
	if err := AssertCanAssign(claimed, requester, nil); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("requester assign should be forbidden, got %v", err)
	}
}

func TestAssertFieldUpdate(t *testing.T) {
	if err := AssertFieldUpdate(requester, FieldUpdate{Priority: true}); err == nil {
		t.Fatalf("requester priority change should fail")
	}
	if err := AssertFieldUpdate(requester, FieldUpdate{Title: true, Description: true}); err != nil {
		t.Fatalf("requester may edit text: %v", err)
	}
	if err := AssertFieldUpdate(agent, FieldUpdate{Title: true}); err == nil {
		t.Fatalf("agent title change should fail")
	}
	if err := AssertFieldUpdate(agent, FieldUpdate{Priority: true, Description: true}); err != nil {
		t.Fatalf("agent may reprioritise: %v", err)
	}
	if err := AssertFieldUpdate(admin, FieldUpdate{Title: true, Priority: true}); err != nil {
		t.Fatalf("admin unrestricted: %v", err)
	}
}
