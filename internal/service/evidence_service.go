package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/audit"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/policy"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/storage"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// BlobStore keeps evidence file contents.
type BlobStore interface {
	Save(original string, r io.Reader, maxBytes int64) (string, int64, error)
	Open(location string) (io.ReadCloser, error)
	Remove(location string) error
}

// EvidenceService manages files attached to tickets.
type EvidenceService struct {
	store    repository.Store
	blobs    BlobStore
	recorder *audit.Recorder
	logger   *zap.Logger
	maxBytes int64
	Now      func() time.Time
}

// EvidenceDependencies bundles collaborators.
type EvidenceDependencies struct {
	Store    repository.Store
	Blobs    BlobStore
	Recorder *audit.Recorder
	Logger   *zap.Logger
	MaxBytes int64
}

// UploadInput is one received file.
type UploadInput struct {
	Filename string
	MimeType string
	Size     int64
	Content  io.Reader
}

// NewEvidenceService constructs the service.
func NewEvidenceService(deps EvidenceDependencies) *EvidenceService {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = audit.NewRecorder(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceService{
		store:    deps.Store,
		blobs:    deps.Blobs,
		recorder: recorder,
		logger:   logger,
		maxBytes: deps.MaxBytes,
		Now:      time.Now,
	}
}

func (s *EvidenceService) participatingTicket(ctx context.Context, tickets repository.TicketRepository, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := loadTicket(ctx, tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.AssertCanView(ticket, actor); err != nil {
		return nil, err
	}
	if err := policy.AssertCanParticipate(ticket, actor); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Upload stores a file and records it against the ticket. The stored blob is
// removed again if the database write fails.
func (s *EvidenceService) Upload(ctx context.Context, actor domain.Actor, ticketID string, input UploadInput, rc audit.RequestContext) (*domain.Evidence, error) {
	ticket, err := s.participatingTicket(ctx, s.store.Tickets(), actor, ticketID)
	if err != nil {
		return nil, err
	}
	if input.Content == nil || input.Size == 0 || strings.TrimSpace(input.Filename) == "" {
		return nil, apperrors.NewValidationError("file is required", nil)
	}
	if s.maxBytes > 0 && input.Size > s.maxBytes {
		return nil, apperrors.NewValidationError("file exceeds upload limit", map[string]any{"maxBytes": s.maxBytes})
	}

	location, size, err := s.blobs.Save(input.Filename, input.Content, s.maxBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperrors.NewValidationError("file exceeds upload limit", map[string]any{"maxBytes": s.maxBytes})
		}
		return nil, err
	}

	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	evidence := &domain.Evidence{
		TicketID:         ticket.ID,
		UploadedByUserID: actor.ID,
		Filename:         input.Filename,
		StoredLocation:   location,
		MimeType:         mimeType,
		Size:             size,
		CreatedAt:        s.Now().UTC(),
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Evidence().Create(ctx, evidence); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, tx.AuditLogs(), audit.Entry{
			Actor:        &actor,
			Action:       domain.AuditEvidenceUploaded,
			ResourceType: domain.ResourceTicket,
			ResourceID:   ticket.ID,
			Metadata:     map[string]any{"evidenceId": evidence.ID, "filename": evidence.Filename},
			Request:      rc,
		})
		return err
	})
	if err != nil {
		if rmErr := s.blobs.Remove(location); rmErr != nil {
			s.logger.Warn("failed to remove orphaned evidence file", zap.String("location", location), zap.Error(rmErr))
		}
		return nil, err
	}
	return evidence, nil
}

// List returns the evidence of a ticket, newest first.
func (s *EvidenceService) List(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Evidence, error) {
	ticket, err := s.participatingTicket(ctx, s.store.Tickets(), actor, ticketID)
	if err != nil {
		return nil, err
	}
	return s.store.Evidence().ListByTicket(ctx, ticket.ID)
}

// Open returns the evidence record and its contents for download. The caller
// closes the reader.
func (s *EvidenceService) Open(ctx context.Context, actor domain.Actor, evidenceID string) (*domain.Evidence, io.ReadCloser, error) {
	evidence, err := s.store.Evidence().GetByID(ctx, evidenceID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, apperrors.NewNotFound("evidence", nil)
		}
		return nil, nil, err
	}
	if _, err := s.participatingTicket(ctx, s.store.Tickets(), actor, evidence.TicketID); err != nil {
		return nil, nil, err
	}

	content, err := s.blobs.Open(evidence.StoredLocation)
	if err != nil {
		if errors.Is(err, storage.ErrMissing) {
			return nil, nil, apperrors.NewGone(apperrors.CodeEvidenceFileMissing, "evidence file is missing from storage")
		}
		return nil, nil, err
	}
	return evidence, content, nil
}

// Delete removes an evidence record and then its file. Admin only.
func (s *EvidenceService) Delete(ctx context.Context, actor domain.Actor, ticketID, evidenceID string, rc audit.RequestContext) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only admins can delete evidence")
	}

	var removed *domain.Evidence
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := loadTicket(ctx, tx.Tickets(), ticketID); err != nil {
			return err
		}
		evidence, err := tx.Evidence().GetByID(ctx, evidenceID)
		if err != nil || evidence.TicketID != ticketID {
			if err == nil || apperrors.IsNotFound(err) {
				return apperrors.NewNotFound("evidence", nil)
			}
			return err
		}
		if err := tx.Evidence().Delete(ctx, evidence.ID); err != nil {
			return err
		}
		if _, err := s.recorder.Record(ctx, tx.AuditLogs(), audit.Entry{
			Actor:        &actor,
			Action:       domain.AuditEvidenceDeleted,
			ResourceType: domain.ResourceTicket,
			ResourceID:   ticketID,
			Metadata:     map[string]any{"evidenceId": evidence.ID, "filename": evidence.Filename},
			Request:      rc,
		}); err != nil {
			return err
		}
		removed = evidence
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.blobs.Remove(removed.StoredLocation); err != nil {
		s.logger.Warn("evidence record deleted but file removal failed",
			zap.String("evidence_id", removed.ID), zap.Error(err))
	}
	return nil
}
