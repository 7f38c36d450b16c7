package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seedTicket(t *testing.T, s *Store, title string, p domain.TicketPriority, created time.Time, assignee *string) domain.Ticket {
	t.Helper()
	ticket := domain.Ticket{
		Title:            title,
		Description:      "description for " + title,
		Status:           domain.TicketStatusOpen,
		Priority:         p,
		CreatedByUserID:  "req-1",
		AssignedToUserID: assignee,
		DueAt:            created.Add(24 * time.Hour),
		CreatedAt:        created,
	}
	if err := s.Tickets().Create(context.Background(), &ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	ticket := seedTicket(t, s, "printer", domain.TicketPriorityLow, t0, nil)

	boom := errors.New("audit write failed")
	err := s.WithinTx(ctx, func(tx repository.Store) error {
		ticket.Status = domain.TicketStatusInProgress
		if err := tx.Tickets().Update(ctx, &ticket); err != nil {
			return err
		}
		if err := tx.Comments().Create(ctx, &domain.Comment{TicketID: ticket.ID, Body: "x", CreatedAt: t0}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	stored, err := s.Tickets().GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.TicketStatusOpen {
		t.Fatalf("status leaked out of rolled back tx: %s", stored.Status)
	}
	comments, _ := s.Comments().ListByTicket(ctx, ticket.ID)
	if len(comments) != 0 {
		t.Fatalf("comment leaked out of rolled back tx")
	}
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	ticket := seedTicket(t, s, "printer", domain.TicketPriorityLow, t0, nil)

	err := s.WithinTx(ctx, func(tx repository.Store) error {
		ticket.Status = domain.TicketStatusResolved
		return tx.Tickets().Update(ctx, &ticket)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	stored, _ := s.Tickets().GetByID(ctx, ticket.ID)
	if stored.Status != domain.TicketStatusResolved {
		t.Fatalf("status = %s", stored.Status)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	if _, err := s.Tickets().GetByID(context.Background(), "nope"); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.Evidence().Delete(context.Background(), "nope"); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListAgentVisibilityAndQueueOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	agent, other := "agent-1", "agent-2"
	seedTicket(t, s, "low pool", domain.TicketPriorityLow, t0, nil)
	seedTicket(t, s, "urgent mine", domain.TicketPriorityUrgent, t0.Add(time.Hour), &agent)
	seedTicket(t, s, "urgent other", domain.TicketPriorityUrgent, t0, &other)
	seedTicket(t, s, "high pool", domain.TicketPriorityHigh, t0, nil)

	got, total, err := s.Tickets().List(ctx, repository.TicketFilter{
		VisibleToAgent: &agent,
		SortBy:         repository.SortQueue,
		Limit:          10,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	want := []string{"urgent mine", "high pool", "low pool"}
	for i, title := range want {
		if got[i].Title != title {
			t.Fatalf("position %d = %q, want %q", i, got[i].Title, title)
		}
	}
}

func TestListSortAndPaginate(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 5; i++ {
		seedTicket(t, s, string(rune('a'+i)), domain.TicketPriorityMedium, t0.Add(time.Duration(i)*time.Minute), nil)
	}
	search := "FOR C"
	got, total, _ := s.Tickets().List(ctx, repository.TicketFilter{Search: &search})
	if total != 1 || got[0].Title != "c" {
		t.Fatalf("search returned %v", got)
	}

	page, total, _ := s.Tickets().List(ctx, repository.TicketFilter{
		SortBy:     repository.SortCreatedAt,
		Descending: true,
		Limit:      2,
		Offset:     2,
	})
	if total != 5 || len(page) != 2 || page[0].Title != "c" || page[1].Title != "b" {
		t.Fatalf("page = %v total = %d", page, total)
	}
}

func TestUsersRejectDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := domain.User{Email: "a@example.com", Role: domain.RoleAgent, CreatedAt: t0}
	if err := s.Users().Create(ctx, &u); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := domain.User{Email: "a@example.com", Role: domain.RoleAgent, CreatedAt: t0}
	if err := s.Users().Create(ctx, &dup); !errors.Is(err, ErrDuplicateEmail) || !errors.Is(err, apperrors.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	found, err := s.Users().GetByEmail(ctx, "a@example.com")
	if err != nil || found.ID != u.ID {
		t.Fatalf("lookup: %v %v", found, err)
	}
}
