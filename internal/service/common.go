package service

import (
	"context"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const (
	defaultPageSize      = 10
	defaultAuditPageSize = 20
	maxPageSize          = 100
)

// Page is one slice of a listing.
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// pagination normalises a requested page. Page starts at 1.
type pagination struct {
	page     int
	pageSize int
}

func newPagination(page, pageSize, fallback int) pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = fallback
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pagination{page: page, pageSize: pageSize}
}

func (p pagination) offset() int { return (p.page - 1) * p.pageSize }

func newPage[T any](items []T, p pagination, total int) Page[T] {
	totalPages := 0
	if total > 0 {
		totalPages = (total + p.pageSize - 1) / p.pageSize
	}
	return Page[T]{Items: items, Page: p.page, PageSize: p.pageSize, Total: total, TotalPages: totalPages}
}

// loadTicket maps a missing row to the ticket not-found error.
func loadTicket(ctx context.Context, tickets repository.TicketRepository, id string) (*domain.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, err
	}
	return ticket, nil
}

func strPtr(s string) *string { return &s }

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
