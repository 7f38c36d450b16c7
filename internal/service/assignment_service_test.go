package service

import (
	"context"
	"reflect"
	"testing"

	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

func TestNonLeadAgentClaimsOnlyForSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityMedium)

	_, err := f.assignments.AssignTicket(ctx, f.agent, ticket.ID, &f.agent2.ID, testRC)
	requireCode(t, err, apperrors.CodeAssignmentForbidden, 403)

	_, err = f.assignments.AssignTicket(ctx, f.agent, ticket.ID, nil, testRC)
	requireCode(t, err, apperrors.CodeAssignmentForbidden, 403)

	view, err := f.assignments.AssignTicket(ctx, f.agent, ticket.ID, &f.agent.ID, testRC)
	if err != nil {
		t.Fatalf("self claim: %v", err)
	}
	if !view.IsAssignedTo(f.agent.ID) {
		t.Fatalf("assignee = %v", view.AssignedToUserID)
	}

	_, err = f.assignments.AssignTicket(ctx, f.agent2, ticket.ID, &f.agent2.ID, testRC)
	requireCode(t, err, apperrors.CodeAssignmentForbidden, 403)

	last := f.auditEntries(t)[0]
	want := map[string]any{"previousAssigneeId": nil, "nextAssigneeId": f.agent.ID}
	if last.Action != domain.AuditTicketAssigned || !reflect.DeepEqual(last.Metadata, want) {
		t.Fatalf("audit = %s %v", last.Action, last.Metadata)
	}
}

func TestLeadAndAdminReassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityMedium)
	f.assign(t, ticket.ID, f.agent)

	view, err := f.assignments.AssignTicket(ctx, f.lead, ticket.ID, &f.agent2.ID, testRC)
	if err != nil {
		t.Fatalf("lead reassign: %v", err)
	}
	if !view.IsAssignedTo(f.agent2.ID) {
		t.Fatalf("assignee = %v", view.AssignedToUserID)
	}

	view, err = f.assignments.AssignTicket(ctx, f.admin, ticket.ID, nil, testRC)
	if err != nil {
		t.Fatalf("admin unassign: %v", err)
	}
	if !view.Unassigned() {
		t.Fatalf("ticket still assigned")
	}
	last := f.auditEntries(t)[0]
	if last.Metadata["previousAssigneeId"] != f.agent2.ID || last.Metadata["nextAssigneeId"] != nil {
		t.Fatalf("metadata = %v", last.Metadata)
	}
}

func TestAssignRejectsNonAgentTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityMedium)
	before := len(f.auditEntries(t))

	_, err := f.assignments.AssignTicket(ctx, f.admin, ticket.ID, &f.requester.ID, testRC)
	requireCode(t, err, apperrors.CodeInvalidAssignee, 400)

	ghost := "00000000-0000-0000-0000-000000000000"
	_, err = f.assignments.AssignTicket(ctx, f.lead, ticket.ID, &ghost, testRC)
	requireCode(t, err, apperrors.CodeInvalidAssignee, 400)

	_, err = f.assignments.AssignTicket(ctx, f.requester, ticket.ID, &f.agent.ID, testRC)
	requireCode(t, err, apperrors.CodeForbidden, 403)

	_, err = f.assignments.AssignTicket(ctx, f.admin, "missing", &f.agent.ID, testRC)
	requireCode(t, err, apperrors.CodeTicketNotFound, 404)

	if len(f.auditEntries(t)) != before {
		t.Fatalf("rejected assignments were audited")
	}
}

func TestAssignedAgentCanThenParticipate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityMedium)

	if _, err := f.assignments.AssignTicket(ctx, f.agent, ticket.ID, &f.agent.ID, testRC); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := f.tickets.AddComment(ctx, f.agent, ticket.ID, "on it", testRC); err != nil {
		t.Fatalf("assigned agent comment: %v", err)
	}
	if _, err := f.tickets.ChangeStatus(ctx, f.agent, ticket.ID, domain.TicketStatusInProgress, testRC); err != nil {
		t.Fatalf("assigned agent status: %v", err)
	}
}
