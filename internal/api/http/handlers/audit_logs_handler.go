package handlers

import (
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/service"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

const defaultAuditPageSize = 20

// AuditLogsHandler exposes the audit trail to admins.
type AuditLogsHandler struct {
	logs *service.AuditLogService
}

// NewAuditLogsHandler constructs handler.
func NewAuditLogsHandler(logs *service.AuditLogService) *AuditLogsHandler {
	return &AuditLogsHandler{logs: logs}
}

// List GET /admin/audit-logs.
func (h *AuditLogsHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	query, err := parseAuditQuery(c)
	if err != nil {
		return err
	}
	page, err := h.logs.List(c.UserContext(), actor, query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":       service.AuditRecords(page.Items),
		"pagination": dto.NewPagination(page),
	})
}

// Export GET /admin/audit-logs/export?format=json|csv.
func (h *AuditLogsHandler) Export(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	query, err := parseAuditQuery(c)
	if err != nil {
		return err
	}
	format := service.ExportFormat(c.Query("format", string(service.ExportJSON)))
	body, contentType, err := h.logs.Export(c.UserContext(), actor, query, format)
	if err != nil {
		return err
	}
	c.Attachment("audit-logs." + string(format))
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(body)
}

func parseAuditQuery(c *fiber.Ctx) (service.AuditLogQuery, error) {
	var query service.AuditLogQuery
	details := map[string]any{}

	page, err := queryInt(c, "page", 1, 0)
	if err != nil {
		return query, err
	}
	pageSize, err := queryInt(c, "pageSize", defaultAuditPageSize, maxPageSize)
	if err != nil {
		return query, err
	}
	query.Page, query.PageSize = page, pageSize

	if raw := c.Query("actorUserId"); raw != "" {
		if _, err := uuid.Parse(raw); err != nil {
			details["actorUserId"] = "must be a valid UUID"
		}
		query.ActorUserID = &raw
	}
	if raw := c.Query("action"); raw != "" {
		if utf8.RuneCountInString(raw) > 80 {
			details["action"] = "must be at most 80 characters"
		}
		action := domain.AuditAction(raw)
		query.Action = &action
	}
	for _, field := range []string{"dateFrom", "dateTo"} {
		raw := c.Query(field)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			details[field] = "must be an ISO-8601 timestamp"
			continue
		}
		ts = ts.UTC()
		if field == "dateFrom" {
			query.DateFrom = &ts
		} else {
			query.DateTo = &ts
		}
	}

	if len(details) > 0 {
		return query, apperrors.NewValidationError("invalid query parameters", details)
	}
	return query, nil
}
