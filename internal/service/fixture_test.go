package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/workorder-service/internal/audit"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/repository/memstore"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

var fixedNow = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

var testRC = audit.RequestContext{ForwardedFor: "203.0.113.7", RemoteAddr: "10.0.0.1", UserAgent: "go-test"}

type fixture struct {
	store       *memstore.Store
	tickets     *TicketService
	assignments *AssignmentService
	clock       *time.Time

	admin, lead, agent, agent2, requester, requester2 domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := fixedNow
	f := &fixture{store: memstore.New(), clock: &clock}

	f.admin = f.addUser(t, "admin@example.com", domain.RoleAdmin, false)
	f.lead = f.addUser(t, "lead@example.com", domain.RoleAgent, true)
	f.agent = f.addUser(t, "agent@example.com", domain.RoleAgent, false)
	f.agent2 = f.addUser(t, "agent2@example.com", domain.RoleAgent, false)
	f.requester = f.addUser(t, "req@example.com", domain.RoleRequester, false)
	f.requester2 = f.addUser(t, "req2@example.com", domain.RoleRequester, false)

	recorder := &audit.Recorder{Now: f.now}
	f.tickets = NewTicketService(TicketDependencies{Store: f.store, Recorder: recorder})
	f.tickets.Now = f.now
	f.assignments = NewAssignmentService(AssignmentDependencies{Store: f.store, Recorder: recorder, Tickets: f.tickets})
	return f
}

func (f *fixture) now() time.Time { return *f.clock }

func (f *fixture) addUser(t *testing.T, email string, role domain.Role, lead bool) domain.Actor {
	t.Helper()
	user := &domain.User{Name: email, Email: email, PasswordHash: "x", Role: role, IsLead: lead, CreatedAt: fixedNow}
	if err := f.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return domain.ActorFromUser(user)
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *fixture) createTicket(t *testing.T, p domain.TicketPriority) *TicketView {
	t.Helper()
	view, err := f.tickets.CreateTicket(context.Background(), f.requester, CreateTicketInput{
		Title:       "Broken printer",
		Description: "Printer on floor 2 jams",
		Priority:    p,
	}, testRC)
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return view
}

func (f *fixture) assign(t *testing.T, ticketID string, agent domain.Actor) {
	t.Helper()
	if _, err := f.assignments.AssignTicket(context.Background(), f.admin, ticketID, &agent.ID, testRC); err != nil {
		t.Fatalf("assign: %v", err)
	}
}

func (f *fixture) auditEntries(t *testing.T) []domain.AuditLogEntry {
	t.Helper()
	entries, _, err := f.store.AuditLogs().List(context.Background(), repository.AuditLogFilter{Limit: 1000})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	return entries
}

func requireCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	de := apperrors.ToDomainError(err)
	if de.Code != code || de.HTTPStatus != status {
		t.Fatalf("expected %s/%d, got %s/%d (%v)", code, status, de.Code, de.HTTPStatus, err)
	}
}

var errAuditDown = errors.New("audit store unavailable")

type failingAuditRepo struct{}

func (failingAuditRepo) Create(context.Context, *domain.AuditLogEntry) error { return errAuditDown }

func (failingAuditRepo) List(context.Context, repository.AuditLogFilter) ([]domain.AuditLogEntry, int, error) {
	return nil, 0, errAuditDown
}

// failingAuditStore passes everything through except audit writes.
type failingAuditStore struct {
	repository.Store
}

func (failingAuditStore) AuditLogs() repository.AuditLogRepository { return failingAuditRepo{} }

func (s failingAuditStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(failingAuditStore{Store: tx})
	})
}
