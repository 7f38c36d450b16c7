package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/service"
	"github.com/spec-kit/workorder-service/internal/sla"
)

var (
	priorityNames = []string{"LOW", "MEDIUM", "HIGH", "URGENT"}
	statusNames   = []string{"OPEN", "IN_PROGRESS", "WAITING_ON_CUSTOMER", "RESOLVED", "CLOSED"}
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// Validate checks field lengths and the priority enum.
func (r CreateTicketRequest) Validate() error {
	errs := fieldErrors{}
	errs.length("title", r.Title, 3, 200)
	errs.length("description", r.Description, 5, 5000)
	errs.oneOf("priority", r.Priority.Valid(), priorityNames...)
	return errs.err("request validation failed")
}

// Input converts the payload for the ticket service.
func (r CreateTicketRequest) Input() service.CreateTicketInput {
	return service.CreateTicketInput{Title: r.Title, Description: r.Description, Priority: r.Priority}
}

// UpdateTicketRequest payload. Omitted fields are left unchanged.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Priority    *domain.TicketPriority `json:"priority"`
}

// Validate requires at least one field and checks each present one.
func (r UpdateTicketRequest) Validate() error {
	errs := fieldErrors{}
	if r.Title == nil && r.Description == nil && r.Priority == nil {
		errs["body"] = "at least one field is required"
	}
	if r.Title != nil {
		errs.length("title", *r.Title, 3, 200)
	}
	if r.Description != nil {
		errs.length("description", *r.Description, 5, 5000)
	}
	if r.Priority != nil {
		errs.oneOf("priority", r.Priority.Valid(), priorityNames...)
	}
	return errs.err("request validation failed")
}

// Input converts the payload for the ticket service.
func (r UpdateTicketRequest) Input() service.UpdateTicketInput {
	return service.UpdateTicketInput{Title: r.Title, Description: r.Description, Priority: r.Priority}
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// Validate checks the status enum.
func (r ChangeStatusRequest) Validate() error {
	errs := fieldErrors{}
	errs.oneOf("status", r.Status.Valid(), statusNames...)
	return errs.err("request validation failed")
}

// AssignTicketRequest payload. The key is required; null unassigns.
type AssignTicketRequest struct {
	AssignedToUserID json.RawMessage `json:"assignedToUserId"`
}

// Target validates the payload and returns the assignee, nil for unassign.
func (r AssignTicketRequest) Target() (*string, error) {
	errs := fieldErrors{}
	raw := bytes.TrimSpace(r.AssignedToUserID)
	switch {
	case len(raw) == 0:
		errs["assignedToUserId"] = "is required"
	case bytes.Equal(raw, []byte("null")):
		return nil, nil
	default:
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			errs["assignedToUserId"] = "must be a UUID or null"
			break
		}
		errs.uuid("assignedToUserId", id)
		if len(errs) == 0 {
			return &id, nil
		}
	}
	return nil, errs.err("request validation failed")
}

// CommentRequest payload.
type CommentRequest struct {
	Body string `json:"body"`
}

// Validate checks the body length.
func (r CommentRequest) Validate() error {
	errs := fieldErrors{}
	errs.length("body", r.Body, 1, 5000)
	return errs.err("request validation failed")
}

// TicketResponse is a ticket as rendered for one actor.
type TicketResponse struct {
	ID                  string                `json:"id"`
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	Status              domain.TicketStatus   `json:"status"`
	Priority            domain.TicketPriority `json:"priority"`
	CreatedByUserID     string                `json:"createdByUserId"`
	AssignedToUserID    *string               `json:"assignedToUserId"`
	DueAt               time.Time             `json:"dueAt"`
	CreatedAt           time.Time             `json:"createdAt"`
	UpdatedAt           time.Time             `json:"updatedAt"`
	SLARemainingMinutes int64                 `json:"slaRemainingMinutes"`
	SLARisk             sla.Risk              `json:"slaRisk"`
	AllowedTransitions  []domain.TicketStatus `json:"allowedTransitions"`
	Evidence            *[]EvidenceResponse   `json:"evidence,omitempty"`
}

// NewTicketResponse serialises a view. Evidence is included only when
// includeEvidence is set; a permitted caller always gets a list, possibly
// empty, while the key is omitted otherwise.
func NewTicketResponse(v *service.TicketView, includeEvidence bool) TicketResponse {
	resp := TicketResponse{
		ID:                  v.ID,
		Title:               v.Title,
		Description:         v.Description,
		Status:              v.Status,
		Priority:            v.Priority,
		CreatedByUserID:     v.CreatedByUserID,
		AssignedToUserID:    v.AssignedToUserID,
		DueAt:               v.DueAt,
		CreatedAt:           v.CreatedAt,
		UpdatedAt:           v.UpdatedAt,
		SLARemainingMinutes: v.SLARemainingMinutes,
		SLARisk:             v.SLARisk,
		AllowedTransitions:  v.AllowedTransitions,
	}
	if resp.AllowedTransitions == nil {
		resp.AllowedTransitions = []domain.TicketStatus{}
	}
	if includeEvidence {
		evidence := NewEvidenceList(v.Evidence)
		if evidence == nil {
			evidence = []EvidenceResponse{}
		}
		resp.Evidence = &evidence
	}
	return resp
}

// CommentResponse is a serialised comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewCommentResponse serialises a comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{ID: c.ID, TicketID: c.TicketID, UserID: c.UserID, Body: c.Body, CreatedAt: c.CreatedAt}
}

// EvidenceResponse is a serialised evidence record. The storage location is
// never exposed.
type EvidenceResponse struct {
	ID               string    `json:"id"`
	TicketID         string    `json:"ticketId"`
	Filename         string    `json:"filename"`
	MimeType         string    `json:"mimeType"`
	Size             int64     `json:"size"`
	UploadedByUserID string    `json:"uploadedByUserId"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewEvidenceResponse serialises one evidence record.
func NewEvidenceResponse(e *domain.Evidence) EvidenceResponse {
	return EvidenceResponse{
		ID:               e.ID,
		TicketID:         e.TicketID,
		Filename:         e.Filename,
		MimeType:         e.MimeType,
		Size:             e.Size,
		UploadedByUserID: e.UploadedByUserID,
		CreatedAt:        e.CreatedAt,
	}
}

// NewEvidenceList serialises a list of evidence records.
func NewEvidenceList(items []domain.Evidence) []EvidenceResponse {
	if items == nil {
		return nil
	}
	out := make([]EvidenceResponse, 0, len(items))
	for i := range items {
		out = append(out, NewEvidenceResponse(&items[i]))
	}
	return out
}

// Pagination describes a listing page.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination copies page metadata from a service page.
func NewPagination[T any](p service.Page[T]) Pagination {
	return Pagination{Page: p.Page, PageSize: p.PageSize, Total: p.Total, TotalPages: p.TotalPages}
}
