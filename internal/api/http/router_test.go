package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/workorder-service/internal/api/http/handlers"
	"github.com/spec-kit/workorder-service/internal/audit"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/repository/memstore"
	"github.com/spec-kit/workorder-service/internal/service"
	"github.com/spec-kit/workorder-service/internal/storage"
)

type testServer struct {
	app    *fiber.App
	store  *memstore.Store
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	if _, err := service.SeedUsers(ctx, store.Users(), service.DemoUsers, bcrypt.MinCost); err != nil {
		t.Fatalf("seed: %v", err)
	}
	blobs, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	metrics := observability.NewMetrics()
	recorder := audit.NewRecorder(metrics)
	tokens := auth.NewTokenManager("router-test-secret", 30)
	tickets := service.NewTicketService(service.TicketDependencies{Store: store, Recorder: recorder, Observer: metrics})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{Store: store, Recorder: recorder, Tickets: tickets})
	evidence := service.NewEvidenceService(service.EvidenceDependencies{Store: store, Blobs: blobs, Recorder: recorder, MaxBytes: 1024})
	authService := service.NewAuthService(service.AuthDependencies{Store: store, Tokens: tokens, Recorder: recorder, BcryptCost: bcrypt.MinCost})

	app := NewApp(ServerConfig{Name: "test", MaxUploadBytes: 1024, Metrics: metrics})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "dev"),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets, assignments),
		Evidence:       handlers.NewEvidenceHandler(evidence),
		AuditLogs:      handlers.NewAuditLogsHandler(service.NewAuditLogService(store.AuditLogs())),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
		Metrics:        metrics.Handler(),
	})

	s := &testServer{app: app, store: store, tokens: map[string]string{}}
	for _, u := range service.DemoUsers {
		resp, body := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": u.Email, "password": u.Password})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %s: %d %v", u.Email, resp.StatusCode, body)
		}
		s.tokens[u.Email] = body["data"].(map[string]any)["token"].(string)
	}
	return s
}

func (s *testServer) token(email string) string { return s.tokens[email] }

func (s *testServer) send(t *testing.T, req *http.Request, token string) (*http.Response, []byte) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, raw
}

func (s *testServer) do(t *testing.T, method, path, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, raw := s.send(t, req, token)
	decoded := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, decoded
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

const (
	adminEmail     = "admin@workorder.local"
	agentEmail     = "agent@workorder.local"
	requesterEmail = "requester@workorder.local"
)

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/tickets", s.token(requesterEmail), map[string]any{
		"title": "Door sensor", "description": "Sensor at gate 3 is offline", "priority": "HIGH",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %v", resp.StatusCode, body)
	}
	ticket := body["data"].(map[string]any)
	id := ticket["id"].(string)
	if ticket["status"] != "OPEN" || ticket["slaRisk"] != "SAFE" {
		t.Fatalf("ticket = %v", ticket)
	}
	if _, ok := ticket["evidence"].([]any); !ok {
		t.Fatalf("create response lacks evidence list: %v", ticket)
	}

	resp, body = s.do(t, http.MethodGet, "/tickets/queue", s.token(agentEmail), nil)
	if resp.StatusCode != http.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("queue: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPatch, "/tickets/"+id+"/status", s.token(agentEmail), map[string]any{"status": "IN_PROGRESS"})
	if resp.StatusCode != http.StatusForbidden || errorCode(body) != "FORBIDDEN" {
		t.Fatalf("unassigned agent status change: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodGet, "/tickets", s.token(agentEmail), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("agent list: %d", resp.StatusCode)
	}

	resp, me := s.do(t, http.MethodGet, "/auth/me", s.token(agentEmail), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: %d", resp.StatusCode)
	}
	agentID := me["data"].(map[string]any)["id"].(string)

	resp, body = s.do(t, http.MethodPatch, "/tickets/"+id+"/assign", s.token(agentEmail), map[string]any{"assignedToUserId": agentID})
	if resp.StatusCode != http.StatusOK || body["data"].(map[string]any)["assignedToUserId"] != agentID {
		t.Fatalf("claim: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPatch, "/tickets/"+id+"/status", s.token(agentEmail), map[string]any{"status": "CLOSED"})
	if resp.StatusCode != http.StatusBadRequest || errorCode(body) != "INVALID_STATUS_TRANSITION" {
		t.Fatalf("skip to closed: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPatch, "/tickets/"+id+"/status", s.token(agentEmail), map[string]any{"status": "IN_PROGRESS"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start work: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPost, "/tickets/"+id+"/comments", s.token(requesterEmail), map[string]any{"body": "Thanks"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("comment: %d %v", resp.StatusCode, body)
	}
	resp, body = s.do(t, http.MethodGet, "/tickets/"+id+"/comments", s.token(agentEmail), nil)
	if resp.StatusCode != http.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("comments: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodGet, "/admin/audit-logs?action=TICKET_STATUS_CHANGED", s.token(adminEmail), nil)
	if resp.StatusCode != http.StatusOK || body["pagination"].(map[string]any)["total"] != float64(1) {
		t.Fatalf("audit logs: %d %v", resp.StatusCode, body)
	}
}

func TestErrorEnvelopes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/tickets", "", nil, http.StatusUnauthorized, "AUTH_REQUIRED"},
		{"bad token", http.MethodGet, "/tickets", "garbage", nil, http.StatusUnauthorized, "AUTH_INVALID"},
		{"requester queue", http.MethodGet, "/tickets/queue", s.token(requesterEmail), nil, http.StatusForbidden, "FORBIDDEN"},
		{"agent admin area", http.MethodGet, "/admin/audit-logs", s.token(agentEmail), nil, http.StatusForbidden, "FORBIDDEN"},
		{"validation", http.MethodPost, "/tickets", s.token(requesterEmail), map[string]any{"title": "x"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"bad sort", http.MethodGet, "/tickets?sortBy=queue", s.token(adminEmail), nil, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"page size", http.MethodGet, "/tickets?pageSize=101", s.token(adminEmail), nil, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"missing ticket", http.MethodGet, "/tickets/6f1c1d1e-0000-4000-8000-000000000000", s.token(adminEmail), nil, http.StatusNotFound, "TICKET_NOT_FOUND"},
		{"malformed ticket id", http.MethodGet, "/tickets/abc", s.token(adminEmail), nil, http.StatusNotFound, "TICKET_NOT_FOUND"},
		{"malformed id on status", http.MethodPatch, "/tickets/abc/status", s.token(adminEmail), map[string]any{"status": "IN_PROGRESS"}, http.StatusNotFound, "TICKET_NOT_FOUND"},
		{"malformed evidence id", http.MethodGet, "/evidence/abc/download", s.token(adminEmail), nil, http.StatusNotFound, "EVIDENCE_NOT_FOUND"},
		{"bad credentials", http.MethodPost, "/auth/login", "", map[string]any{"email": adminEmail, "password": "nope"}, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS"},
		{"unknown route", http.MethodGet, "/nowhere", "", nil, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, tt.method, tt.path, tt.token, tt.body)
			if resp.StatusCode != tt.status || errorCode(body) != tt.code {
				t.Fatalf("got %d %v", resp.StatusCode, body)
			}
		})
	}
}

func TestEvidenceOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, body := s.do(t, http.MethodPost, "/tickets", s.token(requesterEmail), map[string]any{
		"title": "Cracked tile", "description": "Lobby floor tile cracked", "priority": "LOW",
	})
	id := body["data"].(map[string]any)["id"].(string)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "tile.txt")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("photo placeholder"))
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/tickets/"+id+"/evidence", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, raw := s.send(t, req, s.token(requesterEmail))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: %d %s", resp.StatusCode, raw)
	}
	var created struct {
		Data struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
			Size     int64  `json:"size"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatal(err)
	}
	if created.Data.Filename != "tile.txt" || created.Data.Size != 17 {
		t.Fatalf("evidence = %+v", created.Data)
	}

	resp, raw = s.send(t, httptest.NewRequest(http.MethodGet, "/evidence/"+created.Data.ID+"/download", nil), s.token(adminEmail))
	if resp.StatusCode != http.StatusOK || string(raw) != "photo placeholder" {
		t.Fatalf("download: %d %q", resp.StatusCode, raw)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "tile.txt") {
		t.Fatalf("content disposition = %q", cd)
	}

	resp, _ = s.send(t, httptest.NewRequest(http.MethodGet, "/evidence/"+created.Data.ID+"/download", nil), s.token(agentEmail))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("pool agent download: %d", resp.StatusCode)
	}

	resp, _ = s.do(t, http.MethodDelete, "/tickets/"+id+"/evidence/"+created.Data.ID, s.token(adminEmail), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
}

func TestAuditExportAndMetrics(t *testing.T) {
	s := newTestServer(t)

	resp, raw := s.send(t, httptest.NewRequest(http.MethodGet, "/admin/audit-logs/export?format=csv", nil), s.token(adminEmail))
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
		t.Fatalf("export: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 1+len(service.DemoUsers) || !strings.Contains(lines[1], `"LOGIN_SUCCESS"`) {
		t.Fatalf("csv = %s", raw)
	}

	resp, body := s.do(t, http.MethodGet, "/admin/audit-logs/export?format=xml", s.token(adminEmail), nil)
	if resp.StatusCode != http.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("bad format: %d %v", resp.StatusCode, body)
	}

	resp, raw = s.send(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
	for _, want := range []string{
		`http_requests_total{method="POST",route="/auth/login",status="200"} 4`,
		`audit_entries_total{action="LOGIN_SUCCESS"} 4`,
		`http_errors_total{code="VALIDATION_FAILED",method="GET",route="/admin/audit-logs/export"} 1`,
	} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestAuditEntriesKeepRequestValues(t *testing.T) {
	s := newTestServer(t)

	want := map[string]string{}
	for i := 0; i < 3; i++ {
		raw, _ := json.Marshal(map[string]any{
			"title": fmt.Sprintf("Light %d", i), "description": "Corridor light flickers", "priority": "MEDIUM",
		})
		req := httptest.NewRequest(http.MethodPost, "/tickets", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", fmt.Sprintf("field-app-%d", i))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", 10+i))
		resp, body := s.send(t, req, s.token(requesterEmail))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d: %d %s", i, resp.StatusCode, body)
		}
		var created struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &created); err != nil {
			t.Fatal(err)
		}
		want[created.Data.ID] = fmt.Sprintf("198.51.100.%d|field-app-%d", 10+i, i)
	}
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/tickets?pageSize=50", nil)
		req.Header.Set("User-Agent", "browser-overwrite")
		req.Header.Set("X-Forwarded-For", "203.0.113.99")
		s.send(t, req, s.token(adminEmail))
	}

	action := domain.AuditTicketCreated
	entries, _, err := s.store.AuditLogs().List(context.Background(), repository.AuditLogFilter{Action: &action, Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(want) {
		t.Fatalf("entries = %d", len(entries))
	}
	for _, e := range entries {
		if e.ResourceID == nil || e.IPAddress == nil || e.UserAgent == nil {
			t.Fatalf("incomplete entry: %+v", e)
		}
		expected, ok := want[*e.ResourceID]
		if !ok {
			t.Fatalf("unexpected resource %s", *e.ResourceID)
		}
		if got := *e.IPAddress + "|" + *e.UserAgent; got != expected {
			t.Errorf("entry %s = %s, want %s", *e.ResourceID, got, expected)
		}
	}
}

func TestHealthProbes(t *testing.T) {
	app := NewApp(ServerConfig{Name: "test"})
	failing := handlers.DependencyCheck{Name: "postgres", Ping: func(context.Context) error { return io.ErrUnexpectedEOF }}
	health := handlers.NewHealthHandler("test", "dev", failing)
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("live: %v %v", resp, err)
	}
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if err != nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("ready: %v %v", resp, err)
	}
}
