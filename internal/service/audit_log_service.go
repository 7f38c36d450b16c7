package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const maxAuditExportRows = 5000

// ExportFormat selects the audit export encoding.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// AuditLogService gives admins read access to the audit trail.
type AuditLogService struct {
	logs repository.AuditLogRepository
}

// AuditLogQuery filters the audit trail.
type AuditLogQuery struct {
	ActorUserID *string
	Action      *domain.AuditAction
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
}

// NewAuditLogService constructs the service.
func NewAuditLogService(logs repository.AuditLogRepository) *AuditLogService {
	return &AuditLogService{logs: logs}
}

func (q AuditLogQuery) filter() repository.AuditLogFilter {
	return repository.AuditLogFilter{
		ActorUserID: q.ActorUserID,
		Action:      q.Action,
		DateFrom:    q.DateFrom,
		DateTo:      q.DateTo,
	}
}

// List returns audit entries newest first.
func (s *AuditLogService) List(ctx context.Context, actor domain.Actor, query AuditLogQuery) (Page[domain.AuditLogEntry], error) {
	if actor.Role != domain.RoleAdmin {
		return Page[domain.AuditLogEntry]{}, apperrors.NewForbidden("only admins can read audit logs")
	}
	p := newPagination(query.Page, query.PageSize, defaultAuditPageSize)
	filter := query.filter()
	filter.Limit = p.pageSize
	filter.Offset = p.offset()

	entries, total, err := s.logs.List(ctx, filter)
	if err != nil {
		return Page[domain.AuditLogEntry]{}, err
	}
	return newPage(entries, p, total), nil
}

// Export renders up to 5000 matching entries, newest first.
func (s *AuditLogService) Export(ctx context.Context, actor domain.Actor, query AuditLogQuery, format ExportFormat) ([]byte, string, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, "", apperrors.NewForbidden("only admins can export audit logs")
	}
	if format == "" {
		format = ExportJSON
	}
	if format != ExportJSON && format != ExportCSV {
		return nil, "", apperrors.NewValidationError("format must be json or csv", map[string]any{"format": format})
	}

	filter := query.filter()
	filter.Limit = maxAuditExportRows
	entries, _, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	if format == ExportCSV {
		out, err := AuditCSV(entries)
		return out, "text/csv; charset=utf-8", err
	}
	out, err := json.Marshal(map[string]any{"data": AuditRecords(entries)})
	return out, "application/json", err
}

// AuditRecord is the exported shape of an audit entry.
type AuditRecord struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"createdAt"`
	ActorUserID  *string        `json:"actorUserId"`
	ActorRole    *domain.Role   `json:"actorRole"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   *string        `json:"resourceId"`
	Metadata     map[string]any `json:"metadata"`
	IPAddress    *string        `json:"ipAddress"`
	UserAgent    *string        `json:"userAgent"`
}

// AuditRecords converts entries to their exported shape.
func AuditRecords(entries []domain.AuditLogEntry) []AuditRecord {
	out := make([]AuditRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditRecord{
			ID:           e.ID,
			CreatedAt:    e.CreatedAt,
			ActorUserID:  e.ActorUserID,
			ActorRole:    e.ActorRole,
			Action:       string(e.Action),
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Metadata:     e.Metadata,
			IPAddress:    e.IPAddress,
			UserAgent:    e.UserAgent,
		})
	}
	return out
}

var auditCSVHeader = []string{
	"id", "createdAt", "actorUserId", "actorRole", "action",
	"resourceType", "resourceId", "metadata", "ipAddress", "userAgent",
}

// AuditCSV renders entries with every cell double-quoted.
func AuditCSV(entries []domain.AuditLogEntry) ([]byte, error) {
	var buf bytes.Buffer
	writeCSVRow(&buf, auditCSVHeader)
	for _, e := range entries {
		metadata := ""
		if e.Metadata != nil {
			raw, err := json.Marshal(e.Metadata)
			if err != nil {
				return nil, err
			}
			metadata = string(raw)
		}
		role := ""
		if e.ActorRole != nil {
			role = string(*e.ActorRole)
		}
		writeCSVRow(&buf, []string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339Nano),
			valueOrEmpty(e.ActorUserID),
			role,
			string(e.Action),
			e.ResourceType,
			valueOrEmpty(e.ResourceID),
			metadata,
			valueOrEmpty(e.IPAddress),
			valueOrEmpty(e.UserAgent),
		})
	}
	return buf.Bytes(), nil
}

func writeCSVRow(buf *bytes.Buffer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
