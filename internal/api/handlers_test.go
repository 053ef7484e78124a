package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/signalcrest/outreach/internal/db"
	"github.com/signalcrest/outreach/internal/drip"
	"github.com/signalcrest/outreach/internal/mailer"
	"github.com/signalcrest/outreach/internal/models"
	"github.com/signalcrest/outreach/internal/ratelimit"
	"github.com/signalcrest/outreach/internal/repository"
)

const testAPIKey = "test-key"

type stubTransport struct {
	sent []mailer.Message
}

func (t *stubTransport) Send(ctx context.Context, msg *mailer.Message) (*mailer.Result, error) {
	t.sent = append(t.sent, *msg)
	return &mailer.Result{OK: true, ID: "msg-1", Provider: "resend", Status: "sent"}, nil
}

type testServer struct {
	*Server
	conn      *sql.DB
	transport *stubTransport
	now       time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatal(err)
	}
	for _, m := range db.Migrations {
		if _, err := conn.Exec(m); err != nil {
			t.Fatalf("migration failed: %v", err)
		}
	}

	ts := &testServer{
		conn:      conn,
		transport: &stubTransport{},
		now:       time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return ts.now }
	engine := drip.New(conn, ts.transport, logger, drip.Options{
		FromEmail: "outreach@signalcrest.io",
		FromName:  "Jess",
		Clock:     clock,
		Rand:      func(n int) int { return 99 },
		Limiter:   ratelimit.NewWithClock(conn, clock),
	})
	ts.Server = NewServer(conn, engine, nil, logger, Options{
		ListenAddr: ":0",
		APIKey:     testAPIKey,
		BatchSize:  50,
	})
	return ts
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func (ts *testServer) seedContact(t *testing.T, email string) *models.Contact {
	t.Helper()
	rec := ts.request(t, http.MethodPost, "/api/v1/contacts", ContactRequest{
		Email:     email,
		FirstName: "Alicia",
		LastName:  "Vega",
		Company:   "Acme",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed contact: status %d, body %s", rec.Code, rec.Body.String())
	}
	c := decode[models.Contact](t, rec)
	return &c
}

func (ts *testServer) seedCampaign(t *testing.T, name string, steps ...StepRequest) *models.Campaign {
	t.Helper()
	rec := ts.request(t, http.MethodPost, "/api/v1/campaigns", CampaignRequest{Name: name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed campaign: status %d, body %s", rec.Code, rec.Body.String())
	}
	c := decode[models.Campaign](t, rec)
	for _, step := range steps {
		rec := ts.request(t, http.MethodPost, "/api/v1/campaigns/"+c.ID+"/steps", step)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed step: status %d, body %s", rec.Code, rec.Body.String())
		}
	}
	return &c
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no-auth status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec = httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("X-API-Key status = %d, want 200", rec.Code)
	}

	// Health is public
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestCampaignCRUD(t *testing.T) {
	ts := newTestServer(t)
	campaign := ts.seedCampaign(t, "Launch",
		StepRequest{StepOrder: 1, Subject: "s1", Body: "b1"},
	)

	rec := ts.request(t, http.MethodGet, "/api/v1/campaigns/"+campaign.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = ts.request(t, http.MethodPut, "/api/v1/campaigns/"+campaign.ID, CampaignRequest{Status: "archived"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[models.Campaign](t, rec)
	if got.Status != models.CampaignStatusArchived {
		t.Errorf("status = %q, want archived", got.Status)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/campaigns", nil)
	list := decode[CampaignListResponse](t, rec)
	if list.Total != 1 || list.Campaigns[0].StepCount != 1 {
		t.Errorf("list = %+v, want one campaign with one step", list)
	}

	rec = ts.request(t, http.MethodDelete, "/api/v1/campaigns/"+campaign.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = ts.request(t, http.MethodGet, "/api/v1/campaigns/"+campaign.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestAddStepValidation(t *testing.T) {
	ts := newTestServer(t)
	campaign := ts.seedCampaign(t, "Steps")

	tests := []struct {
		name string
		req  StepRequest
		want int
	}{
		{"valid", StepRequest{StepOrder: 1, Subject: "s", Body: "b"}, http.StatusCreated},
		{"duplicate order", StepRequest{StepOrder: 1, Subject: "s", Body: "b"}, http.StatusConflict},
		{"zero order", StepRequest{StepOrder: 0, Subject: "s", Body: "b"}, http.StatusBadRequest},
		{"negative delay", StepRequest{StepOrder: 2, DelayMinutes: -5, Subject: "s", Body: "b"}, http.StatusBadRequest},
		{"missing body", StepRequest{StepOrder: 2, Subject: "s"}, http.StatusBadRequest},
		{"weight out of range", StepRequest{StepOrder: 2, Subject: "s", Body: "b", WeightB: 101}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.request(t, http.MethodPost, "/api/v1/campaigns/"+campaign.ID+"/steps", tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestEnrollAndTick(t *testing.T) {
	ts := newTestServer(t)
	contact := ts.seedContact(t, "alicia@example.com")
	campaign := ts.seedCampaign(t, "Welcome",
		StepRequest{StepOrder: 1, Subject: "Hi {{first_name}}", Body: "hello"},
	)

	rec := ts.request(t, http.MethodPost, "/api/v1/campaigns/"+campaign.ID+"/enroll", EnrollRequest{
		ContactIDs: []string{contact.ID, "no-such-contact"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("enroll status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[EnrollResponse](t, rec)
	if resp.Enrolled != 1 || len(resp.Skipped) != 1 {
		t.Fatalf("enroll response = %+v, want enrolled=1 skipped=1", resp)
	}

	// Re-enrolling the same contact is skipped, not an error
	rec = ts.request(t, http.MethodPost, "/api/v1/campaigns/"+campaign.ID+"/enroll", EnrollRequest{
		ContactIDs: []string{contact.ID},
	})
	resp = decode[EnrollResponse](t, rec)
	if resp.Enrolled != 0 || len(resp.Skipped) != 1 {
		t.Fatalf("re-enroll response = %+v, want enrolled=0 skipped=1", resp)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/marketing/tick", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tick status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decode[drip.Result](t, rec)
	if result.Processed != 1 || result.Sent != 1 {
		t.Fatalf("tick result = %+v, want processed=1 sent=1", result)
	}
	if len(ts.transport.sent) != 1 || ts.transport.sent[0].Subject != "Hi Alicia" {
		t.Fatalf("transport saw %+v, want one rendered send", ts.transport.sent)
	}
}

func TestEnrollRequiresSteps(t *testing.T) {
	ts := newTestServer(t)
	contact := ts.seedContact(t, "alicia@example.com")
	campaign := ts.seedCampaign(t, "Empty")

	rec := ts.request(t, http.MethodPost, "/api/v1/campaigns/"+campaign.ID+"/enroll", EnrollRequest{
		ContactIDs: []string{contact.ID},
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for stepless campaign", rec.Code)
	}
}

func TestTickBatchValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/v1/marketing/tick?batch=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("batch=abc status = %d, want 400", rec.Code)
	}
	// Out-of-range values are clamped, not rejected
	rec = ts.request(t, http.MethodPost, "/api/v1/marketing/tick?batch=0", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("batch=0 status = %d, want 200", rec.Code)
	}
	rec = ts.request(t, http.MethodGet, "/api/v1/marketing/tick?batch=10", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET batch=10 status = %d, want 200", rec.Code)
	}
}

func TestWebhookBounceSuppressesContact(t *testing.T) {
	ts := newTestServer(t)
	contact := ts.seedContact(t, "alicia@example.com")
	campaign := ts.seedCampaign(t, "Bouncy",
		StepRequest{StepOrder: 1, Subject: "s", Body: "b"},
	)
	ts.request(t, http.MethodPost, "/api/v1/campaigns/"+campaign.ID+"/enroll", EnrollRequest{
		ContactIDs: []string{contact.ID},
	})
	ts.request(t, http.MethodPost, "/api/v1/marketing/tick", nil)

	// Webhook needs no auth
	body, _ := json.Marshal(map[string]any{
		"type": "email.bounced",
		"data": map[string]string{"email_id": "msg-1"},
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("webhook status = %d, body %s", rec.Code, rec.Body.String())
	}

	suppressions := repository.NewSuppressionRepository(ts.conn)
	suppressed, err := suppressions.IsSuppressed(contact.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !suppressed {
		t.Error("contact not suppressed after bounce webhook")
	}

	sends := repository.NewSendRepository(ts.conn)
	send, err := sends.GetByProviderID("resend", "msg-1")
	if err != nil {
		t.Fatal(err)
	}
	if send == nil || send.Status != models.SendStatusBounced {
		t.Errorf("send = %+v, want bounced status", send)
	}
}

func TestWebhookUnknownEventIgnored(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"type": "email.delivery_delayed",
		"data": map[string]string{"email_id": "msg-404"},
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 for untracked event", rec.Code)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPut, "/api/v1/config", map[string]string{
		"quiet_start":   "9",
		"quiet_end":     "18",
		"rate_per_hour": "25",
		"sender_name":   "Jess",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/config", nil)
	entries := decode[[]models.ConfigEntry](t, rec)
	values := map[string]string{}
	for _, e := range entries {
		values[e.Key] = e.Value
	}
	if values["quiet_start"] != "9" || values["rate_per_hour"] != "25" {
		t.Errorf("config = %v", values)
	}
}

func TestConfigValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		values map[string]string
	}{
		{"unknown key", map[string]string{"rate_bucket_count": "0"}},
		{"hour out of range", map[string]string{"quiet_start": "24"}},
		{"non-numeric hour", map[string]string{"quiet_end": "late"}},
		{"zero rate", map[string]string{"rate_per_hour": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.request(t, http.MethodPut, "/api/v1/config", tt.values)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestContactValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.seedContact(t, "alicia@example.com")

	rec := ts.request(t, http.MethodPost, "/api/v1/contacts", ContactRequest{Email: "not-an-email"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid email status = %d, want 400", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/contacts", ContactRequest{Email: "alicia@example.com"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate email status = %d, want 409", rec.Code)
	}
}

func TestEnrollmentPauseResume(t *testing.T) {
	ts := newTestServer(t)
	contact := ts.seedContact(t, "alicia@example.com")
	campaign := ts.seedCampaign(t, "Pause",
		StepRequest{StepOrder: 1, Subject: "s", Body: "b"},
	)
	ts.request(t, http.MethodPost, "/api/v1/campaigns/"+campaign.ID+"/enroll", EnrollRequest{
		ContactIDs: []string{contact.ID},
	})

	rec := ts.request(t, http.MethodGet, "/api/v1/enrollments?campaign_id="+campaign.ID, nil)
	enrollments := decode[[]models.Enrollment](t, rec)
	if len(enrollments) != 1 {
		t.Fatalf("enrollments = %v, want 1", enrollments)
	}
	id := enrollments[0].ID

	rec = ts.request(t, http.MethodPost, "/api/v1/enrollments/"+id+"/pause", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause status = %d", rec.Code)
	}

	// A paused enrollment is invisible to the scheduler
	result := decode[drip.Result](t, ts.request(t, http.MethodPost, "/api/v1/marketing/tick", nil))
	if result.Processed != 0 {
		t.Errorf("tick processed %d, want 0 while paused", result.Processed)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/enrollments/"+id+"/resume", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d", rec.Code)
	}
	result = decode[drip.Result](t, ts.request(t, http.MethodPost, "/api/v1/marketing/tick", nil))
	if result.Sent != 1 {
		t.Errorf("tick after resume = %+v, want sent=1", result)
	}
}
