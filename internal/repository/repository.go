package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so repositories run the
// same queries inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories of one unit of work.
type Store interface {
	Tickets() TicketRepository
	Comments() CommentRepository
	Evidence() EvidenceRepository
	AuditLogs() AuditLogRepository
	Users() UserRepository

	// WithinTx runs fn against a transactional Store. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// TicketSortField selects the list ordering.
type TicketSortField string

const (
	SortCreatedAt TicketSortField = "createdAt"
	SortDueAt     TicketSortField = "dueAt"
	SortPriority  TicketSortField = "priority"
	SortStatus    TicketSortField = "status"
	// SortQueue is the triage ordering: priority rank, due date, newest first.
	SortQueue TicketSortField = "queue"
)

// Valid reports whether f is a supported list ordering.
func (f TicketSortField) Valid() bool {
	switch f {
	case SortCreatedAt, SortDueAt, SortPriority, SortStatus, SortQueue:
		return true
	}
	return false
}

// TicketFilter captures list and queue search parameters. All conditions are
// combined with AND.
type TicketFilter struct {
	CreatedByUserID *string
	// VisibleToAgent restricts to unassigned tickets plus those held by this agent.
	VisibleToAgent *string
	AssigneeID     *string
	AssignedOnly   bool
	UnassignedOnly bool
	Status         *domain.TicketStatus
	Priority       *domain.TicketPriority
	Search         *string
	SortBy         TicketSortField
	Descending     bool
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
}

// CommentRepository persists ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
}

// EvidenceRepository persists evidence metadata.
type EvidenceRepository interface {
	Create(ctx context.Context, evidence *domain.Evidence) error
	GetByID(ctx context.Context, id string) (*domain.Evidence, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Evidence, error)
	Delete(ctx context.Context, id string) error
}

// AuditLogFilter narrows the admin audit view.
type AuditLogFilter struct {
	ActorUserID *string
	Action      *domain.AuditAction
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}

// AuditLogRepository appends and reads audit entries. Entries are never
// updated or deleted.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditLogFilter) ([]domain.AuditLogEntry, int, error)
}

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
