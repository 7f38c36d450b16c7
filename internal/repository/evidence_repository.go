package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const evidenceColumns = `id, ticket_id, uploaded_by_user_id, filename, stored_location, mime_type, size, created_at`

type evidenceRepository struct {
	db DBTX
}

// NewEvidenceRepository constructs repository.
func NewEvidenceRepository(db DBTX) EvidenceRepository {
	return &evidenceRepository{db: db}
}

func (r *evidenceRepository) Create(ctx context.Context, evidence *domain.Evidence) error {
	const query = `
        INSERT INTO evidence (ticket_id, uploaded_by_user_id, filename, stored_location, mime_type, size, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		evidence.TicketID,
		evidence.UploadedByUserID,
		evidence.Filename,
		evidence.StoredLocation,
		evidence.MimeType,
		evidence.Size,
		evidence.CreatedAt,
	).Scan(&evidence.ID)
}

func (r *evidenceRepository) GetByID(ctx context.Context, id string) (*domain.Evidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence WHERE id=$1`
	var evidence domain.Evidence
	if err := scanEvidence(r.db.QueryRow(ctx, query, id), &evidence); err != nil {
		return nil, lookupError(err)
	}
	return &evidence, nil
}

func (r *evidenceRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Evidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence WHERE ticket_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Evidence{}
	for rows.Next() {
		var evidence domain.Evidence
		if err := scanEvidence(rows, &evidence); err != nil {
			return nil, err
		}
		result = append(result, evidence)
	}
	return result, rows.Err()
}

func (r *evidenceRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM evidence WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanEvidence(row pgx.Row, evidence *domain.Evidence) error {
	return row.Scan(
		&evidence.ID,
		&evidence.TicketID,
		&evidence.UploadedByUserID,
		&evidence.Filename,
		&evidence.StoredLocation,
		&evidence.MimeType,
		&evidence.Size,
		&evidence.CreatedAt,
	)
}
