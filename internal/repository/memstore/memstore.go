// Package memstore is an in-process repository.Store. Transactions work on a
// copy of the data that replaces the committed state only when the callback
// succeeds.
package memstore

import (
	"context"
	"sync"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
)

type state struct {
	tickets   map[string]domain.Ticket
	comments  []domain.Comment
	evidence  map[string]domain.Evidence
	auditLogs []domain.AuditLogEntry
	users     map[string]domain.User
}

func newState() *state {
	return &state{
		tickets:  map[string]domain.Ticket{},
		evidence: map[string]domain.Evidence{},
		users:    map[string]domain.User{},
	}
}

func (s *state) clone() *state {
	out := &state{
		tickets:   make(map[string]domain.Ticket, len(s.tickets)),
		comments:  append([]domain.Comment(nil), s.comments...),
		evidence:  make(map[string]domain.Evidence, len(s.evidence)),
		auditLogs: append([]domain.AuditLogEntry(nil), s.auditLogs...),
		users:     make(map[string]domain.User, len(s.users)),
	}
	for id, t := range s.tickets {
		out.tickets[id] = t
	}
	for id, e := range s.evidence {
		out.evidence[id] = e
	}
	for id, u := range s.users {
		out.users[id] = u
	}
	return out
}

// Store keeps every record in memory. The zero value is not usable; call New.
type Store struct {
	mu   *sync.Mutex
	root *Store
	data *state
	inTx bool
}

// New returns an empty store.
func New() *Store {
	s := &Store{mu: &sync.Mutex{}, data: newState()}
	s.root = s
	return s
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Tickets() repository.TicketRepository     { return ticketRepo{s} }
func (s *Store) Comments() repository.CommentRepository   { return commentRepo{s} }
func (s *Store) Evidence() repository.EvidenceRepository  { return evidenceRepo{s} }
func (s *Store) AuditLogs() repository.AuditLogRepository { return auditLogRepo{s} }
func (s *Store) Users() repository.UserRepository         { return userRepo{s} }

// WithinTx serialises transactions. fn sees a private copy of the data which
// is published only if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, root: s.root, data: s.root.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.root.data = tx.data
	return nil
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
