package template

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coldmailer/internal/config"
	"coldmailer/internal/contact"
)

func setupEngine(t *testing.T) (*Engine, *config.Config) {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	cfg.Sender.Name = "Test Sender"
	cfg.Sender.Signature = "Best regards,\nTest Sender"
	return NewEngine(cfg), cfg
}

func writeTemplate(t *testing.T, cfg *config.Config, name, content string) {
	t.Helper()
	if err := os.MkdirAll(cfg.TemplatesPath(), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(cfg.TemplatesPath(), name+".tmpl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func testContact() *contact.Contact {
	return &contact.Contact{
		ID:            "1",
		Email:         "a@b.com",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Title:         "Dr.",
		Company:       "Analytical Engines",
		JobTitle:      "Staff Engineer",
		Department:    "Compute",
		GreetingStyle: contact.GreetingFormal,
		CustomFields:  map[string]string{"referral": "Charles"},
	}
}

func TestGreetingStyles(t *testing.T) {
	e, _ := setupEngine(t)

	tests := []struct {
		name  string
		style contact.GreetingStyle
		title string
		want  string
	}{
		{"formal with title", contact.GreetingFormal, "Dr.", "Dear Dr. Lovelace,"},
		{"formal without title", contact.GreetingFormal, "", "Dear Ada Lovelace,"},
		{"semi formal without title", contact.GreetingSemiFormal, "", "Dear Ada,"},
		{"casual", contact.GreetingCasual, "Dr.", "Hi Ada,"},
		{"professional with title", contact.GreetingProfessional, "Dr.", "Hello Dr. Lovelace,"},
		{"unknown falls back to semi formal", contact.GreetingStyle("regal"), "Dr.", "Dear Dr. Lovelace,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContact()
			c.GreetingStyle = tt.style
			c.Title = tt.title
			if got := e.Greeting(c); got != tt.want {
				t.Errorf("Greeting() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderSubjectAndBody(t *testing.T) {
	e, cfg := setupEngine(t)
	writeTemplate(t, cfg, "basic", "Subject: Hello {{.contact.first_name}}\n\n{{.greeting}}\n\nBody for {{.contact.company}}.\n\n{{.sender.signature}}\n")

	subject, body, err := e.Render("basic", testContact(), nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if subject != "Hello Ada" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.HasPrefix(body, "Dear Dr. Lovelace,") {
		t.Errorf("body missing greeting: %q", body)
	}
	if !strings.Contains(body, "Body for Analytical Engines.") {
		t.Errorf("body missing rendered company: %q", body)
	}
	if !strings.HasSuffix(body, "Test Sender") {
		t.Errorf("body missing signature: %q", body)
	}
}

func TestRenderSubjectPrefix(t *testing.T) {
	e, cfg := setupEngine(t)
	cfg.Email.SubjectPrefix = "[Job Application]"
	writeTemplate(t, cfg, "prefixed", "Subject: Hello\n\nBody.\n")

	subject, _, err := e.Render("prefixed", testContact(), nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if subject != "[Job Application] Hello" {
		t.Errorf("subject = %q", subject)
	}
}

func TestRenderSubjectLineWithoutMarker(t *testing.T) {
	e, cfg := setupEngine(t)
	writeTemplate(t, cfg, "bare", "Just a subject\n\nAnd a body.\n")

	subject, body, err := e.Render("bare", testContact(), nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if subject != "Just a subject" || body != "And a body." {
		t.Errorf("got subject %q, body %q", subject, body)
	}
}

func TestRenderCustomVarsOverrideContactFields(t *testing.T) {
	e, cfg := setupEngine(t)
	writeTemplate(t, cfg, "custom", "Subject: {{.custom.referral}}\n\n{{.custom.note}}\n")

	subject, body, err := e.Render("custom", testContact(), map[string]string{
		"referral": "Grace",
		"note":     "from the caller",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if subject != "Grace" {
		t.Errorf("custom var did not override contact field: %q", subject)
	}
	if body != "from the caller" {
		t.Errorf("body = %q", body)
	}
}

func TestRenderMissingTemplate(t *testing.T) {
	e, _ := setupEngine(t)

	_, _, err := e.Render("nope", testContact(), nil)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Name != "nope" {
		t.Errorf("NotFoundError.Name = %q", nf.Name)
	}
}

func TestRenderMissingBody(t *testing.T) {
	e, cfg := setupEngine(t)
	writeTemplate(t, cfg, "subjectonly", "Subject: Only a subject\n")

	_, _, err := e.Render("subjectonly", testContact(), nil)
	var re *RenderError
	if !errors.As(err, &re) {
		t.Errorf("expected RenderError, got %v", err)
	}
}

func TestListAndExists(t *testing.T) {
	e, cfg := setupEngine(t)

	names, err := e.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no templates, got %v", names)
	}

	writeTemplate(t, cfg, "zeta", "Subject: z\n\nz\n")
	writeTemplate(t, cfg, "alpha", "Subject: a\n\na\n")

	names, err = e.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("unexpected template list: %v", names)
	}
	if !e.Exists("alpha") || e.Exists("missing") {
		t.Error("Exists misreported template presence")
	}
}

func TestPreviewFormat(t *testing.T) {
	e, cfg := setupEngine(t)
	writeTemplate(t, cfg, "p", "Subject: Preview\n\nPreview body.\n")

	out, err := e.Preview("p", testContact(), nil)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	for _, want := range []string{"To: a@b.com", "Subject: Preview", "Preview body.", strings.Repeat("=", 60)} {
		if !strings.Contains(out, want) {
			t.Errorf("preview missing %q:\n%s", want, out)
		}
	}
}

func TestCreateDefaultsRender(t *testing.T) {
	e, cfg := setupEngine(t)
	if err := CreateDefaults(cfg.TemplatesPath()); err != nil {
		t.Fatalf("CreateDefaults failed: %v", err)
	}

	names, err := e.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected 3 default templates, got %v", names)
	}

	for _, name := range names {
		subject, body, err := e.Render(name, testContact(), nil)
		if err != nil {
			t.Errorf("Render(%s) failed: %v", name, err)
			continue
		}
		if subject == "" || body == "" {
			t.Errorf("Render(%s) produced empty output", name)
		}
		if !strings.Contains(body, "Dear Dr. Lovelace,") {
			t.Errorf("Render(%s) body missing greeting: %q", name, body)
		}
	}

	subject, _, err := e.Render("default", testContact(), nil)
	if err != nil {
		t.Fatalf("Render(default) failed: %v", err)
	}
	if !strings.Contains(subject, "Staff Engineer") || !strings.Contains(subject, "Analytical Engines") {
		t.Errorf("default subject = %q", subject)
	}
}
