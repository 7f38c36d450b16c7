package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewPostgresStore returns a Store whose repositories share pool. Repositories
// handed to a WithinTx callback run on the transaction instead.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Tickets() TicketRepository     { return NewTicketRepository(s.db) }
func (s *pgStore) Comments() CommentRepository   { return NewCommentRepository(s.db) }
func (s *pgStore) Evidence() EvidenceRepository  { return NewEvidenceRepository(s.db) }
func (s *pgStore) AuditLogs() AuditLogRepository { return NewAuditLogRepository(s.db) }
func (s *pgStore) Users() UserRepository         { return NewUserRepository(s.db) }

func (s *pgStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgStore{pool: s.pool, db: tx, inTx: true})
	})
}
