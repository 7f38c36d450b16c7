package audit

import (
	"context"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
)

// Counter observes persisted audit entries.
type Counter interface {
	RecordAudit(action string)
}

// Entry describes an event to record. Actor is nil for anonymous events such
// as a login attempt against an unknown email.
type Entry struct {
	Actor        *domain.Actor
	Action       domain.AuditAction
	ResourceType string
	ResourceID   string
	Metadata     map[string]any
	Request      RequestContext
}

// Recorder writes audit entries through the repository it is handed, which
// must belong to the caller's transaction.
type Recorder struct {
	Now     func() time.Time
	Counter Counter
}

// NewRecorder returns a recorder using the wall clock.
func NewRecorder(counter Counter) *Recorder {
	return &Recorder{Now: time.Now, Counter: counter}
}

// Build converts e into a storable entry with sanitized metadata.
func (r *Recorder) Build(e Entry) *domain.AuditLogEntry {
	now := time.Now
	if r != nil && r.Now != nil {
		now = r.Now
	}
	entry := &domain.AuditLogEntry{
		CreatedAt:    now().UTC(),
		Action:       e.Action,
		ResourceType: e.ResourceType,
		Metadata:     Sanitize(e.Metadata),
		IPAddress:    ExtractIP(e.Request),
		UserAgent:    UserAgentOf(e.Request),
	}
	if e.Actor != nil {
		id, role := e.Actor.ID, e.Actor.Role
		entry.ActorUserID = &id
		entry.ActorRole = &role
	}
	if e.ResourceID != "" {
		id := e.ResourceID
		entry.ResourceID = &id
	}
	return entry
}

// Record persists e. Any error is returned unchanged so the caller's
// transaction rolls back.
func (r *Recorder) Record(ctx context.Context, repo repository.AuditLogRepository, e Entry) (*domain.AuditLogEntry, error) {
	entry := r.Build(e)
	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	if r != nil && r.Counter != nil {
		r.Counter.RecordAudit(string(entry.Action))
	}
	return entry, nil
}
