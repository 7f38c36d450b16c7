package audit

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/repository/memstore"
)

func TestSanitizeDropsSensitiveKeysAtDepth(t *testing.T) {
	in := map[string]any{
		"token":  "abc",
		"nested": map[string]any{"Password": "x"},
		"keep":   1,
	}
	want := map[string]any{
		"keep":   1,
		"nested": map[string]any{},
	}
	if got := Sanitize(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("Sanitize = %#v, want %#v", got, want)
	}
}

func TestSanitizeWalksSlices(t *testing.T) {
	in := map[string]any{
		"items": []any{
			map[string]any{"name": "a", "apiSecret": "s"},
			"plain",
		},
		"headers":      []map[string]any{{"Authorization": "Bearer x", "accept": "json"}},
		"JWT":          "x",
		"refreshToken": "y",
	}
	want := map[string]any{
		"items":   []any{map[string]any{"name": "a"}, "plain"},
		"headers": []any{map[string]any{"accept": "json"}},
	}
	if got := Sanitize(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("Sanitize = %#v, want %#v", got, want)
	}
}

func TestSanitizeNilAndInputUntouched(t *testing.T) {
	if Sanitize(nil) != nil {
		t.Fatalf("nil metadata should stay nil")
	}
	in := map[string]any{"password": "p", "keep": "k"}
	Sanitize(in)
	if _, ok := in["password"]; !ok {
		t.Fatalf("input map was mutated")
	}
}

func TestExtractIP(t *testing.T) {
	cases := []struct {
		name string
		rc   RequestContext
		want *string
	}{
		{"first forwarded hop", RequestContext{ForwardedFor: " 10.0.0.1 , 10.0.0.2", RemoteAddr: "127.0.0.1"}, strPtr("10.0.0.1")},
		{"remote fallback", RequestContext{RemoteAddr: "192.168.1.5"}, strPtr("192.168.1.5")},
		{"empty forwarded entry falls back", RequestContext{ForwardedFor: " ,x", RemoteAddr: "1.1.1.1"}, strPtr("1.1.1.1")},
		{"nothing known", RequestContext{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractIP(tc.rc)
			if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
				t.Fatalf("ExtractIP = %v, want %v", deref(got), deref(tc.want))
			}
		})
	}
}

type countingCounter struct{ actions []string }

func (c *countingCounter) RecordAudit(action string) { c.actions = append(c.actions, action) }

func TestRecordPersistsSanitizedEntry(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	counter := &countingCounter{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := &Recorder{Now: func() time.Time { return fixed }, Counter: counter}

	actor := domain.Actor{ID: "u-1", Role: domain.RoleAgent}
	entry, err := rec.Record(ctx, store.AuditLogs(), Entry{
		Actor:        &actor,
		Action:       domain.AuditTicketAssigned,
		ResourceType: domain.ResourceTicket,
		ResourceID:   "t-1",
		Metadata:     map[string]any{"nextAssigneeId": "u-1", "token": "secret"},
		Request:      RequestContext{ForwardedFor: "8.8.8.8", UserAgent: "curl/8"},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.ID == "" || !entry.CreatedAt.Equal(fixed) {
		t.Fatalf("entry not stamped: %+v", entry)
	}
	if _, ok := entry.Metadata["token"]; ok {
		t.Fatalf("token persisted")
	}
	if *entry.ActorUserID != "u-1" || *entry.ActorRole != domain.RoleAgent || *entry.IPAddress != "8.8.8.8" || *entry.UserAgent != "curl/8" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if len(counter.actions) != 1 || counter.actions[0] != "TICKET_ASSIGNED" {
		t.Fatalf("counter = %v", counter.actions)
	}

	stored, total, _ := store.AuditLogs().List(ctx, repository.AuditLogFilter{})
	if total != 1 || stored[0].ID != entry.ID {
		t.Fatalf("stored = %v", stored)
	}
}

type failingAudit struct{ repository.AuditLogRepository }

func (failingAudit) Create(context.Context, *domain.AuditLogEntry) error {
	return errors.New("disk full")
}

func TestRecordPropagatesFailure(t *testing.T) {
	counter := &countingCounter{}
	rec := NewRecorder(counter)
	_, err := rec.Record(context.Background(), failingAudit{}, Entry{Action: domain.AuditLoginFailure, ResourceType: domain.ResourceAuth})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(counter.actions) != 0 {
		t.Fatalf("failed write was counted")
	}
}

func TestAnonymousEntryHasNoActor(t *testing.T) {
	entry := NewRecorder(nil).Build(Entry{Action: domain.AuditLoginFailure, ResourceType: domain.ResourceAuth})
	if entry.ActorUserID != nil || entry.ActorRole != nil || entry.ResourceID != nil || entry.Metadata != nil {
		t.Fatalf("unexpected fields on anonymous entry: %+v", entry)
	}
}

func strPtr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
