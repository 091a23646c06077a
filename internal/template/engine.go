package template

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	texttemplate "text/template"

	"coldmailer/internal/config"
	"coldmailer/internal/contact"
)

// NotFoundError indicates a template file does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template '%s' not found", e.Name)
}

// RenderError indicates a template failed to parse or execute.
type RenderError struct {
	Name string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("error rendering template '%s': %v", e.Name, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

const fileExt = ".tmpl"

// Engine renders email templates from the templates directory. A
// template file is a subject line (with an optional "Subject:" prefix)
// followed by a blank line and the body.
type Engine struct {
	cfg *config.Config
}

// NewEngine creates a template engine over the given configuration.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) path(name string) string {
	return filepath.Join(e.cfg.TemplatesPath(), name+fileExt)
}

// List returns the names of all available templates, sorted.
func (e *Engine) List() ([]string, error) {
	entries, err := os.ReadDir(e.cfg.TemplatesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a template with the given name is on disk.
func (e *Engine) Exists(name string) bool {
	_, err := os.Stat(e.path(name))
	return err == nil
}

// Greeting builds the salutation line for a contact from the configured
// greeting styles. Unknown styles fall back to semi_formal.
func (e *Engine) Greeting(c *contact.Contact) string {
	style, ok := e.cfg.Greetings[string(c.GreetingStyle)]
	if !ok {
		style, ok = e.cfg.Greetings[string(contact.GreetingSemiFormal)]
	}

	pattern := "Hi {first_name},"
	switch {
	case ok && c.Title != "":
		pattern = style.WithTitle
	case ok:
		pattern = style.WithoutTitle
	}

	r := strings.NewReplacer(
		"{title}", c.Title,
		"{first_name}", c.FirstName,
		"{last_name}", c.LastName,
	)
	return strings.TrimSpace(r.Replace(pattern))
}

// buildContext assembles the data map visible to templates. Custom
// variables supplied by the caller override the contact's own fields.
func (e *Engine) buildContext(c *contact.Contact, customVars map[string]string) map[string]any {
	custom := make(map[string]string, len(c.CustomFields)+len(customVars))
	for k, v := range c.CustomFields {
		custom[k] = v
	}
	for k, v := range customVars {
		custom[k] = v
	}

	return map[string]any{
		"greeting": e.Greeting(c),
		"contact": map[string]string{
			"email":      c.Email,
			"first_name": c.FirstName,
			"last_name":  c.LastName,
			"full_name":  c.FullName(),
			"title":      c.Title,
			"company":    c.Company,
			"job_title":  c.JobTitle,
			"department": c.Department,
		},
		"sender": map[string]string{
			"name":      e.cfg.Sender.Name,
			"signature": e.cfg.Sender.Signature,
		},
		"job": map[string]string{
			"title":      c.JobTitle,
			"department": c.Department,
		},
		"custom": custom,
	}
}

// Render renders a template for a contact and returns the subject and
// body. The configured subject prefix is prepended to the subject.
func (e *Engine) Render(name string, c *contact.Contact, customVars map[string]string) (string, string, error) {
	raw, err := os.ReadFile(e.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", &NotFoundError{Name: name}
		}
		return "", "", &RenderError{Name: name, Err: err}
	}

	t, err := texttemplate.New(name).Option("missingkey=zero").Parse(string(raw))
	if err != nil {
		return "", "", &RenderError{Name: name, Err: err}
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, e.buildContext(c, customVars)); err != nil {
		return "", "", &RenderError{Name: name, Err: err}
	}

	rendered := strings.TrimSpace(buf.String())
	subject, body, ok := strings.Cut(rendered, "\n")
	if !ok || strings.TrimSpace(body) == "" {
		return "", "", &RenderError{
			Name: name,
			Err:  fmt.Errorf("template must have a subject line followed by body"),
		}
	}

	subject = strings.TrimSpace(subject)
	if len(subject) >= 8 && strings.EqualFold(subject[:8], "subject:") {
		subject = strings.TrimSpace(subject[8:])
	}
	if e.cfg.Email.SubjectPrefix != "" {
		subject = e.cfg.Email.SubjectPrefix + " " + subject
	}

	return subject, strings.TrimSpace(body), nil
}

// Preview renders a template and formats it as a readable block with
// the recipient and subject, for dry runs and the web UI.
func (e *Engine) Preview(name string, c *contact.Contact, customVars map[string]string) (string, error) {
	subject, body, err := e.Render(name, c, customVars)
	if err != nil {
		return "", err
	}

	ruler := strings.Repeat("=", 60)
	return fmt.Sprintf("%s\nTo: %s\nSubject: %s\n%s\n\n%s\n\n%s",
		ruler, c.Email, subject, ruler, body, ruler), nil
}
