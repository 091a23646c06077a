package contact

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when a contact lookup misses.
	ErrNotFound = errors.New("contact not found")

	// ErrDuplicateEmail is returned when adding a contact whose email
	// already exists in the roster.
	ErrDuplicateEmail = errors.New("contact with this email already exists")
)

const (
	csvFile  = "contacts.csv"
	jsonFile = "contacts.json"
)

// baseCSVHeaders are the fixed CSV columns. Custom fields occupy
// custom_field_N columns inserted before status; at least two are
// always written and the header widens when a contact carries more.
var baseCSVHeaders = []string{
	"id", "email", "first_name", "last_name", "title", "company",
	"job_title", "department", "greeting_style",
}

var tailCSVHeaders = []string{"status", "last_contacted"}

// Store manages the contact roster backed by a CSV or JSON file in the
// data directory. The whole file is rewritten on every mutation.
type Store struct {
	dir    string
	format string // csv, json or auto

	mu       sync.Mutex
	contacts map[string]*Contact
	loaded   bool
}

// NewStore creates a store over the given data directory. Format is
// csv, json or auto; auto picks whichever file exists, preferring the
// newer one when both do.
func NewStore(dir, format string) *Store {
	return &Store{
		dir:      dir,
		format:   format,
		contacts: make(map[string]*Contact),
	}
}

func (s *Store) csvPath() string  { return filepath.Join(s.dir, csvFile) }
func (s *Store) jsonPath() string { return filepath.Join(s.dir, jsonFile) }

// resolveFormat returns the effective format for this store.
func (s *Store) resolveFormat() string {
	if s.format != "auto" && s.format != "" {
		return s.format
	}

	csvInfo, csvErr := os.Stat(s.csvPath())
	jsonInfo, jsonErr := os.Stat(s.jsonPath())

	switch {
	case jsonErr == nil && csvErr != nil:
		return "json"
	case csvErr == nil && jsonErr != nil:
		return "csv"
	case csvErr == nil && jsonErr == nil:
		if jsonInfo.ModTime().After(csvInfo.ModTime()) {
			return "json"
		}
		return "csv"
	default:
		return "csv"
	}
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	return s.load()
}

func (s *Store) load() error {
	s.contacts = make(map[string]*Contact)

	var err error
	if s.resolveFormat() == "json" {
		err = s.loadJSON()
	} else {
		err = s.loadCSV()
	}
	if err != nil {
		return err
	}

	s.loaded = true
	return nil
}

// Reload discards the in-memory roster and re-reads the data file.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) loadCSV() error {
	f, err := os.Open(s.csvPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open contacts file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to parse contacts CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	header := rows[0]
	for _, row := range rows[1:] {
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				fields[col] = row[i]
			}
		}
		if fields["id"] == "" || fields["email"] == "" {
			continue
		}
		c := contactFromFields(fields)
		s.contacts[c.ID] = c
	}

	return nil
}

func contactFromFields(fields map[string]string) *Contact {
	c := &Contact{
		ID:            fields["id"],
		Email:         fields["email"],
		FirstName:     fields["first_name"],
		LastName:      fields["last_name"],
		Title:         fields["title"],
		Company:       fields["company"],
		JobTitle:      fields["job_title"],
		Department:    fields["department"],
		GreetingStyle: GreetingStyle(fields["greeting_style"]),
		Status:        Status(fields["status"]),
		CustomFields:  make(map[string]string),
	}
	if c.GreetingStyle == "" {
		c.GreetingStyle = GreetingSemiFormal
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	if v := fields["last_contacted"]; v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			c.LastContacted = &ts
		}
	}
	for col, v := range fields {
		if !strings.HasPrefix(col, "custom_field_") || v == "" {
			continue
		}
		if key, value, ok := strings.Cut(v, "="); ok {
			c.CustomFields[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return c
}

func (s *Store) loadJSON() error {
	data, err := os.ReadFile(s.jsonPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read contacts file: %w", err)
	}

	var doc struct {
		Contacts []*Contact `json:"contacts"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse contacts JSON: %w", err)
	}

	for _, c := range doc.Contacts {
		if c.ID == "" || c.Email == "" {
			continue
		}
		if c.CustomFields == nil {
			c.CustomFields = make(map[string]string)
		}
		if c.GreetingStyle == "" {
			c.GreetingStyle = GreetingSemiFormal
		}
		if c.Status == "" {
			c.Status = StatusPending
		}
		s.contacts[c.ID] = c
	}

	return nil
}

// save rewrites the data file in the effective format.
func (s *Store) save() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if s.resolveFormat() == "json" {
		return s.saveJSON()
	}
	return s.saveCSV()
}

func (s *Store) sorted() []*Contact {
	out := make([]*Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.Atoi(out[i].ID)
		b, errB := strconv.Atoi(out[j].ID)
		if errA == nil && errB == nil {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) saveCSV() error {
	maxCustom := 2
	for _, c := range s.contacts {
		if len(c.CustomFields) > maxCustom {
			maxCustom = len(c.CustomFields)
		}
	}

	header := append([]string{}, baseCSVHeaders...)
	for i := 1; i <= maxCustom; i++ {
		header = append(header, fmt.Sprintf("custom_field_%d", i))
	}
	header = append(header, tailCSVHeaders...)

	f, err := os.Create(s.csvPath())
	if err != nil {
		return fmt.Errorf("failed to write contacts file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write contacts CSV: %w", err)
	}

	for _, c := range s.sorted() {
		row := []string{
			c.ID, c.Email, c.FirstName, c.LastName, c.Title, c.Company,
			c.JobTitle, c.Department, string(c.GreetingStyle),
		}

		keys := make([]string, 0, len(c.CustomFields))
		for k := range c.CustomFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			row = append(row, k+"="+c.CustomFields[k])
		}
		for len(row) < len(baseCSVHeaders)+maxCustom {
			row = append(row, "")
		}

		last := ""
		if c.LastContacted != nil {
			last = c.LastContacted.Format(time.RFC3339)
		}
		row = append(row, string(c.Status), last)

		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write contacts CSV: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write contacts CSV: %w", err)
	}
	return nil
}

func (s *Store) saveJSON() error {
	doc := struct {
		Contacts []*Contact `json:"contacts"`
	}{Contacts: s.sorted()}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal contacts: %w", err)
	}

	if err := os.WriteFile(s.jsonPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write contacts file: %w", err)
	}
	return nil
}

// GetAll returns all contacts sorted by id.
func (s *Store) GetAll() ([]*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.copyAll(s.sorted()), nil
}

// GetByID returns the contact with the given id.
func (s *Store) GetByID(id string) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	c, ok := s.contacts[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return copyContact(c), nil
}

// GetByEmail returns the contact with the given email address
// (case-insensitive).
func (s *Store) GetByEmail(email string) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(email))
	for _, c := range s.contacts {
		if strings.ToLower(c.Email) == needle {
			return copyContact(c), nil
		}
	}
	return nil, fmt.Errorf("%w: email %s", ErrNotFound, email)
}

// GetByStatus returns all contacts with the given status, sorted by id.
func (s *Store) GetByStatus(status Status) ([]*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	var out []*Contact
	for _, c := range s.sorted() {
		if c.Status == status {
			out = append(out, copyContact(c))
		}
	}
	return out, nil
}

// GetPending returns all contacts not yet sent to, sorted by id.
func (s *Store) GetPending() ([]*Contact, error) {
	return s.GetByStatus(StatusPending)
}

// AddParams holds the caller-supplied fields for a new contact.
type AddParams struct {
	Email         string            `json:"email"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	Title         string            `json:"title"`
	Company       string            `json:"company"`
	JobTitle      string            `json:"job_title"`
	Department    string            `json:"department"`
	GreetingStyle string            `json:"greeting_style"`
	CustomFields  map[string]string `json:"custom_fields"`
}

// Add validates the params, allocates the next id and persists the new
// contact with status pending.
func (s *Store) Add(p AddParams) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	email, err := NormalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	firstName, err := ValidateName(p.FirstName, "first name")
	if err != nil {
		return nil, err
	}
	company, err := ValidateCompany(p.Company)
	if err != nil {
		return nil, err
	}
	lastName := strings.TrimSpace(p.LastName)
	if lastName != "" {
		if lastName, err = ValidateName(lastName, "last name"); err != nil {
			return nil, err
		}
	}
	title, err := ValidateTitle(p.Title)
	if err != nil {
		return nil, err
	}
	style := GreetingSemiFormal
	if p.GreetingStyle != "" {
		if style, err = ValidateGreetingStyle(p.GreetingStyle); err != nil {
			return nil, err
		}
	}

	for _, existing := range s.contacts {
		if strings.EqualFold(existing.Email, email) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		}
	}

	maxID := 0
	for _, existing := range s.contacts {
		if n, err := strconv.Atoi(existing.ID); err == nil && n > maxID {
			maxID = n
		}
	}

	c := &Contact{
		ID:            strconv.Itoa(maxID + 1),
		Email:         email,
		FirstName:     firstName,
		LastName:      lastName,
		Title:         title,
		Company:       company,
		JobTitle:      strings.TrimSpace(p.JobTitle),
		Department:    strings.TrimSpace(p.Department),
		GreetingStyle: style,
		CustomFields:  p.CustomFields,
		Status:        StatusPending,
	}
	if c.CustomFields == nil {
		c.CustomFields = make(map[string]string)
	}

	s.contacts[c.ID] = c
	if err := s.save(); err != nil {
		return nil, err
	}
	return copyContact(c), nil
}

// UpdateParams holds optional field updates; nil means "leave as is".
type UpdateParams struct {
	Email         *string           `json:"email"`
	FirstName     *string           `json:"first_name"`
	LastName      *string           `json:"last_name"`
	Title         *string           `json:"title"`
	Company       *string           `json:"company"`
	JobTitle      *string           `json:"job_title"`
	Department    *string           `json:"department"`
	GreetingStyle *string           `json:"greeting_style"`
	Status        *string           `json:"status"`
	CustomFields  map[string]string `json:"custom_fields"`
}

// Update applies the given field updates to a contact and persists.
func (s *Store) Update(id string, p UpdateParams) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	c, ok := s.contacts[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}

	if p.Email != nil {
		email, err := NormalizeEmail(*p.Email)
		if err != nil {
			return nil, err
		}
		for _, existing := range s.contacts {
			if existing.ID != id && strings.EqualFold(existing.Email, email) {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
			}
		}
		c.Email = email
	}
	if p.FirstName != nil {
		v, err := ValidateName(*p.FirstName, "first name")
		if err != nil {
			return nil, err
		}
		c.FirstName = v
	}
	if p.LastName != nil {
		v := strings.TrimSpace(*p.LastName)
		if v != "" {
			var err error
			if v, err = ValidateName(v, "last name"); err != nil {
				return nil, err
			}
		}
		c.LastName = v
	}
	if p.Title != nil {
		v, err := ValidateTitle(*p.Title)
		if err != nil {
			return nil, err
		}
		c.Title = v
	}
	if p.Company != nil {
		v, err := ValidateCompany(*p.Company)
		if err != nil {
			return nil, err
		}
		c.Company = v
	}
	if p.JobTitle != nil {
		c.JobTitle = strings.TrimSpace(*p.JobTitle)
	}
	if p.Department != nil {
		c.Department = strings.TrimSpace(*p.Department)
	}
	if p.GreetingStyle != nil {
		v, err := ValidateGreetingStyle(*p.GreetingStyle)
		if err != nil {
			return nil, err
		}
		c.GreetingStyle = v
	}
	if p.Status != nil {
		v, err := ValidateStatus(*p.Status)
		if err != nil {
			return nil, err
		}
		c.Status = v
	}
	if p.CustomFields != nil {
		c.CustomFields = p.CustomFields
	}

	if err := s.save(); err != nil {
		return nil, err
	}
	return copyContact(c), nil
}

// MarkSent transitions a contact to sent and stamps last_contacted in
// a single persisted update.
func (s *Store) MarkSent(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	c, ok := s.contacts[id]
	if !ok {
		return fmt.Errorf("%w: id %s", ErrNotFound, id)
	}

	c.Status = StatusSent
	c.LastContacted = &at
	return s.save()
}

// Delete removes a contact and persists.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := s.contacts[id]; !ok {
		return fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	delete(s.contacts, id)
	return s.save()
}

// GetStatistics returns contact counts by status.
func (s *Store) GetStatistics() (Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return Statistics{}, err
	}

	stats := Statistics{Total: len(s.contacts)}
	for _, c := range s.contacts {
		switch c.Status {
		case StatusPending:
			stats.Pending++
		case StatusSent:
			stats.Sent++
		case StatusReplied:
			stats.Replied++
		case StatusBounced:
			stats.Bounced++
		}
	}
	return stats, nil
}

// ConvertTo rewrites the roster in the target format and returns the
// file path written.
func (s *Store) ConvertTo(format string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	switch format {
	case "csv":
		return s.csvPath(), s.saveCSV()
	case "json":
		return s.jsonPath(), s.saveJSON()
	default:
		return "", fmt.Errorf("invalid data format: %s (must be csv or json)", format)
	}
}

// SeedSampleData writes a small sample roster, replacing any loaded
// contacts. Used by the init command.
func (s *Store) SeedSampleData() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := []*Contact{
		{
			ID: "1", Email: "john.smith@techcorp.com",
			FirstName: "John", LastName: "Smith", Title: "Mr.",
			Company: "TechCorp Inc.", JobTitle: "Software Engineer",
			Department: "Engineering", GreetingStyle: GreetingSemiFormal,
			CustomFields: map[string]string{"skills": "Go, Distributed Systems", "referral": "Jane Doe"},
			Status:       StatusPending,
		},
		{
			ID: "2", Email: "sarah.jones@startup.io",
			FirstName: "Sarah", LastName: "Jones", Title: "Ms.",
			Company: "Startup.io", JobTitle: "Backend Developer",
			Department: "Product", GreetingStyle: GreetingCasual,
			CustomFields: map[string]string{"notes": "Met at tech conference"},
			Status:       StatusPending,
		},
	}

	s.contacts = make(map[string]*Contact, len(samples))
	for _, c := range samples {
		s.contacts[c.ID] = c
	}
	s.loaded = true

	if err := s.save(); err != nil {
		return "", err
	}
	if s.resolveFormat() == "json" {
		return s.jsonPath(), nil
	}
	return s.csvPath(), nil
}

func (s *Store) copyAll(in []*Contact) []*Contact {
	out := make([]*Contact, len(in))
	for i, c := range in {
		out[i] = copyContact(c)
	}
	return out
}

func copyContact(c *Contact) *Contact {
	dup := *c
	dup.CustomFields = make(map[string]string, len(c.CustomFields))
	for k, v := range c.CustomFields {
		dup.CustomFields[k] = v
	}
	if c.LastContacted != nil {
		ts := *c.LastContacted
		dup.LastContacted = &ts
	}
	return &dup
}
