package domain

import "time"

// AuditAction names a state-changing event.
type AuditAction string

const (
	AuditLoginSuccess        AuditAction = "LOGIN_SUCCESS"
	AuditLoginFailure        AuditAction = "LOGIN_FAILURE"
	AuditUserCreated         AuditAction = "USER_CREATED"
	AuditTicketCreated       AuditAction = "TICKET_CREATED"
	AuditTicketUpdated       AuditAction = "TICKET_UPDATED"
	AuditTicketStatusChanged AuditAction = "TICKET_STATUS_CHANGED"
	AuditTicketAssigned      AuditAction = "TICKET_ASSIGNED"
	AuditCommentAdded        AuditAction = "COMMENT_ADDED"
	AuditEvidenceUploaded    AuditAction = "EVIDENCE_UPLOADED"
	AuditEvidenceDeleted     AuditAction = "EVIDENCE_DELETED"
)

// Resource types referenced by audit entries.
const (
	ResourceTicket = "TICKET"
	ResourceAuth   = "AUTH"
	ResourceUser   = "USER"
)

// AuditLogEntry is an append-only record of a state-changing event.
type AuditLogEntry struct {
	ID           string
	CreatedAt    time.Time
	ActorUserID  *string
	ActorRole    *Role
	Action       AuditAction
	ResourceType string
	ResourceID   *string
	Metadata     map[string]any
	IPAddress    *string
	UserAgent    *string
}
