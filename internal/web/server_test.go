package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"coldmailer/internal/config"
	"coldmailer/internal/contact"
	"coldmailer/internal/ledger"
	"coldmailer/internal/mailer"
	"coldmailer/internal/ratelimit"
	"coldmailer/internal/session"
	"coldmailer/internal/template"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     []string
	failFor  map[string]error
	checkErr error
}

func (f *fakeTransport) Submit(_ context.Context, _ string, to []string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rcpt := range to {
		if err, ok := f.failFor[rcpt]; ok {
			return err
		}
	}
	f.sent = append(f.sent, to...)
	return nil
}

func (f *fakeTransport) Check(_ context.Context) error { return f.checkErr }

type webFixture struct {
	server    *Server
	store     *contact.Store
	ledger    *ledger.Ledger
	transport *fakeTransport
	cfg       *config.Config
}

func setupServer(t *testing.T, limits ratelimit.Limits) *webFixture {
	t.Helper()

	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	if err := template.CreateDefaults(cfg.TemplatesPath()); err != nil {
		t.Fatalf("CreateDefaults failed: %v", err)
	}

	store := contact.NewStore(cfg.DataPath(), "csv")
	led := ledger.New(cfg.DataPath())
	governor := ratelimit.New(led, limits)
	transport := &fakeTransport{failFor: make(map[string]error)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds := config.Credentials{Email: "me@example.com", Password: "secret"}

	m := mailer.New(cfg, creds, store, template.NewEngine(cfg), led, governor, transport, logger)
	srv := NewServer(cfg, m, session.NewRegistry(), nil, logger)

	return &webFixture{server: srv, store: store, ledger: led, transport: transport, cfg: cfg}
}

func (f *webFixture) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func addContact(t *testing.T, f *webFixture, email, firstName string) *contact.Contact {
	t.Helper()
	c, err := f.store.Add(contact.AddParams{Email: email, FirstName: firstName, Company: "Acme"})
	if err != nil {
		t.Fatalf("Add(%s) failed: %v", email, err)
	}
	return c
}

func openLimits() ratelimit.Limits {
	return ratelimit.Limits{EmailsPerHour: 100, EmailsPerDay: 100}
}

func TestHealth(t *testing.T) {
	f := setupServer(t, openLimits())

	rec := f.request(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[HealthResponse](t, rec)
	if resp.Status != "ok" {
		t.Errorf("unexpected health response: %+v", resp)
	}
}

func TestStats(t *testing.T) {
	f := setupServer(t, openLimits())
	addContact(t, f, "a@b.com", "Ada")

	rec := f.request(t, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[StatsResponse](t, rec)
	if resp.Contacts.Total != 1 || resp.Contacts.Pending != 1 {
		t.Errorf("unexpected contact stats: %+v", resp.Contacts)
	}
	if resp.Rate.HourlyLimit != 100 {
		t.Errorf("unexpected rate stats: %+v", resp.Rate)
	}
}

func TestContactCRUD(t *testing.T) {
	f := setupServer(t, openLimits())

	rec := f.request(t, http.MethodPost, "/api/v1/contacts", contact.AddParams{
		Email: "crud@b.com", FirstName: "Crud", Company: "Acme",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[contact.Contact](t, rec)
	if created.ID == "" || created.Status != contact.StatusPending {
		t.Errorf("unexpected created contact: %+v", created)
	}

	rec = f.request(t, http.MethodPost, "/api/v1/contacts", contact.AddParams{
		Email: "crud@b.com", FirstName: "Dup", Company: "Acme",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d", rec.Code)
	}

	rec = f.request(t, http.MethodGet, "/api/v1/contacts/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec = f.request(t, http.MethodGet, "/api/v1/contacts/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get unknown status = %d", rec.Code)
	}

	name := "Updated"
	rec = f.request(t, http.MethodPut, "/api/v1/contacts/"+created.ID, contact.UpdateParams{
		FirstName: &name,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[contact.Contact](t, rec)
	if updated.FirstName != "Updated" {
		t.Errorf("update not applied: %+v", updated)
	}

	rec = f.request(t, http.MethodDelete, "/api/v1/contacts/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestContactListStatusFilter(t *testing.T) {
	f := setupServer(t, openLimits())
	addContact(t, f, "p@b.com", "Pending")
	c := addContact(t, f, "s@b.com", "Sent")
	if err := f.store.MarkSent(c.ID, time.Now()); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}

	rec := f.request(t, http.MethodGet, "/api/v1/contacts?status=pending", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[struct {
		Contacts []contact.Contact `json:"contacts"`
		Total    int               `json:"total"`
	}](t, rec)
	if resp.Total != 1 || resp.Contacts[0].Email != "p@b.com" {
		t.Errorf("unexpected filtered list: %+v", resp)
	}

	rec = f.request(t, http.MethodGet, "/api/v1/contacts?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status filter: status = %d", rec.Code)
	}
}

func TestTemplateListAndPreview(t *testing.T) {
	f := setupServer(t, openLimits())
	c := addContact(t, f, "a@b.com", "Ada")

	rec := f.request(t, http.MethodGet, "/api/v1/templates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decode[struct {
		Templates []string `json:"templates"`
	}](t, rec)
	if len(list.Templates) != 3 {
		t.Errorf("unexpected templates: %v", list.Templates)
	}

	rec = f.request(t, http.MethodGet, "/api/v1/templates/default/preview?contact_id="+c.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d: %s", rec.Code, rec.Body.String())
	}
	preview := decode[map[string]string](t, rec)
	if !strings.Contains(preview["preview"], "a@b.com") {
		t.Errorf("preview missing recipient: %q", preview["preview"])
	}

	rec = f.request(t, http.MethodGet, "/api/v1/templates/missing/preview?contact_id="+c.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown template status = %d", rec.Code)
	}

	rec = f.request(t, http.MethodGet, "/api/v1/templates/default/preview", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing contact_id status = %d", rec.Code)
	}
}

func TestSendEndpoint(t *testing.T) {
	f := setupServer(t, openLimits())
	c := addContact(t, f, "a@b.com", "Ada")

	rec := f.request(t, http.MethodPost, "/api/v1/send", SendRequest{ContactID: c.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[SendResponse](t, rec)
	if resp.Status != "sent" || resp.Email != "a@b.com" {
		t.Errorf("unexpected send response: %+v", resp)
	}
	if f.ledger.Total() != 1 {
		t.Errorf("expected 1 ledger record, got %d", f.ledger.Total())
	}
}

func TestSendEndpointDryRun(t *testing.T) {
	f := setupServer(t, openLimits())
	addContact(t, f, "a@b.com", "Ada")

	rec := f.request(t, http.MethodPost, "/api/v1/send", SendRequest{Email: "a@b.com", DryRun: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[SendResponse](t, rec)
	if resp.Status != "dry_run" || !strings.Contains(resp.Preview, "a@b.com") {
		t.Errorf("unexpected dry run response: %+v", resp)
	}
	if f.ledger.Total() != 0 {
		t.Error("dry run must not record")
	}
}

func TestSendEndpointRateLimited(t *testing.T) {
	f := setupServer(t, ratelimit.Limits{EmailsPerHour: 1, EmailsPerDay: 1})
	a := addContact(t, f, "a@b.com", "Ada")
	b := addContact(t, f, "b@b.com", "Bob")

	if rec := f.request(t, http.MethodPost, "/api/v1/send", SendRequest{ContactID: a.ID}); rec.Code != http.StatusOK {
		t.Fatalf("first send status = %d", rec.Code)
	}

	rec := f.request(t, http.MethodPost, "/api/v1/send", SendRequest{ContactID: b.ID})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	resp := decode[ErrorResponse](t, rec)
	if !strings.Contains(resp.Error, "limit reached") {
		t.Errorf("unexpected error message: %q", resp.Error)
	}
}

func TestSendEndpointTransportFailure(t *testing.T) {
	f := setupServer(t, openLimits())
	c := addContact(t, f, "a@b.com", "Ada")

	f.transport.failFor["a@b.com"] = &mailer.TransportError{Temporary: true, Message: "greylisted"}
	rec := f.request(t, http.MethodPost, "/api/v1/send", SendRequest{ContactID: c.ID})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("temporary failure status = %d, want 503: %s", rec.Code, rec.Body.String())
	}

	f.transport.failFor["a@b.com"] = &mailer.TransportError{Temporary: false, Message: "rejected"}
	rec = f.request(t, http.MethodPost, "/api/v1/send", SendRequest{ContactID: c.ID})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("permanent failure status = %d, want 502: %s", rec.Code, rec.Body.String())
	}
}

func TestSendEndpointPersistenceWarning(t *testing.T) {
	f := setupServer(t, openLimits())
	c := addContact(t, f, "a@b.com", "Ada")

	if err := os.MkdirAll(filepath.Join(f.cfg.DataPath(), "sent_log.json"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	rec := f.request(t, http.MethodPost, "/api/v1/send", SendRequest{ContactID: c.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[SendResponse](t, rec)
	if resp.Status != "sent" || resp.Warning == "" {
		t.Errorf("expected sent status with a warning, got %+v", resp)
	}
}

func TestSendTestEndpoint(t *testing.T) {
	f := setupServer(t, openLimits())

	rec := f.request(t, http.MethodPost, "/api/v1/send/test", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}

	f.transport.checkErr = &mailer.AuthError{Message: "bad credentials"}
	rec = f.request(t, http.MethodPost, "/api/v1/send/test", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	f := setupServer(t, openLimits())
	c := addContact(t, f, "a@b.com", "Ada")

	if rec := f.request(t, http.MethodPost, "/api/v1/send", SendRequest{ContactID: c.ID}); rec.Code != http.StatusOK {
		t.Fatalf("send status = %d", rec.Code)
	}

	rec := f.request(t, http.MethodGet, "/api/v1/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	resp := decode[HistoryResponse](t, rec)
	if resp.Total != 1 || len(resp.Records) != 1 || resp.Records[0].Email != "a@b.com" {
		t.Errorf("unexpected history: %+v", resp)
	}

	if rec := f.request(t, http.MethodDelete, "/api/v1/history", nil); rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d", rec.Code)
	}
	if f.ledger.Total() != 0 {
		t.Error("history not cleared")
	}
}

func waitForTerminal(t *testing.T, f *webFixture, id string) session.Session {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := f.request(t, http.MethodGet, "/api/v1/bulk/"+id, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("bulk status = %d", rec.Code)
		}
		sess := decode[session.Session](t, rec)
		if sess.Status == session.StatusCompleted || sess.Status == session.StatusError {
			return sess
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("bulk session did not finish in time")
	return session.Session{}
}

func TestBulkLifecycle(t *testing.T) {
	f := setupServer(t, openLimits())
	addContact(t, f, "one@b.com", "One")
	addContact(t, f, "two@b.com", "Two")

	rec := f.request(t, http.MethodPost, "/api/v1/bulk", BulkRequest{DryRun: true})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("bulk start status = %d: %s", rec.Code, rec.Body.String())
	}
	start := decode[BulkStartResponse](t, rec)
	if start.SessionID == "" {
		t.Fatal("missing session id")
	}
	if start.Status != "pending" {
		t.Errorf("start status = %q, want pending", start.Status)
	}

	sess := waitForTerminal(t, f, start.SessionID)
	if sess.Total != 2 || sess.Sent != 2 || sess.Failed != 0 || sess.Skipped != 0 {
		t.Errorf("unexpected final session: %+v", sess)
	}
}

func TestBulkUnknownSession(t *testing.T) {
	f := setupServer(t, openLimits())

	if rec := f.request(t, http.MethodGet, "/api/v1/bulk/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	if rec := f.request(t, http.MethodGet, "/api/v1/bulk/nope/events", nil); rec.Code != http.StatusNotFound {
		t.Errorf("events status = %d", rec.Code)
	}
}

func TestBulkPoolSaturation(t *testing.T) {
	f := setupServer(t, openLimits())

	// Occupy every worker slot so submission must be refused.
	for i := 0; i < f.cfg.Web.BulkWorkers; i++ {
		f.server.bulkSlots <- struct{}{}
	}

	rec := f.request(t, http.MethodPost, "/api/v1/bulk", BulkRequest{DryRun: true})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestBulkEventsStream(t *testing.T) {
	f := setupServer(t, openLimits())
	addContact(t, f, "one@b.com", "One")

	rec := f.request(t, http.MethodPost, "/api/v1/bulk", BulkRequest{DryRun: true})
	start := decode[BulkStartResponse](t, rec)
	waitForTerminal(t, f, start.SessionID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bulk/"+start.SessionID+"/events", nil)
	stream := httptest.NewRecorder()
	f.server.Router().ServeHTTP(stream, req)

	if ct := stream.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var last session.Session
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last); err != nil {
			t.Fatalf("bad event payload %q: %v", line, err)
		}
	}
	if last.Status != session.StatusCompleted || last.Sent != 1 {
		t.Errorf("unexpected terminal event: %+v", last)
	}
}

func TestBasicAuth(t *testing.T) {
	f := setupServer(t, openLimits())

	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	f.cfg.Web.User = "admin"
	f.cfg.Web.PasswordHash = string(hash)

	rec := f.request(t, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.SetBasicAuth("admin", "letmein")
	good := httptest.NewRecorder()
	f.server.Router().ServeHTTP(good, req)
	if good.Code != http.StatusOK {
		t.Errorf("authorized status = %d", good.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.SetBasicAuth("admin", "wrong")
	bad := httptest.NewRecorder()
	f.server.Router().ServeHTTP(bad, req)
	if bad.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", bad.Code)
	}

	// Health stays open.
	if rec := f.request(t, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}
