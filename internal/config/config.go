package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	SMTP      SMTPConfig               `yaml:"smtp"`
	RateLimit RateLimitConfig          `yaml:"rate_limit"`
	Sender    SenderConfig             `yaml:"sender"`
	Email     EmailConfig              `yaml:"email"`
	Paths     PathsConfig              `yaml:"paths"`
	Greetings map[string]GreetingStyle `yaml:"greeting_styles"`
	Logging   LoggingConfig            `yaml:"logging"`
	Web       WebConfig                `yaml:"web"`

	// DataFormat selects the contact store file format: csv, json or auto.
	// Auto picks whichever file exists (the newer one when both do).
	DataFormat string `yaml:"data_format"`

	// Internal: project root the relative paths are resolved against.
	root string `yaml:"-"`
}

// SMTPConfig contains mail submission settings
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	StartTLS bool          `yaml:"starttls"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RateLimitConfig contains sending quota settings
type RateLimitConfig struct {
	EmailsPerHour      int `yaml:"emails_per_hour"`
	DelayBetweenEmails int `yaml:"delay_between_emails"` // seconds
	MaxEmailsPerDay    int `yaml:"max_emails_per_day"`
}

// SenderConfig contains the sender identity used in rendered emails
type SenderConfig struct {
	Name      string `yaml:"name"`
	Signature string `yaml:"signature"`
}

// EmailConfig contains message composition settings
type EmailConfig struct {
	SubjectPrefix   string `yaml:"subject_prefix"`
	DefaultTemplate string `yaml:"default_template"`
	AttachResume    bool   `yaml:"attach_resume"`
	ResumeFilename  string `yaml:"resume_filename"`
}

// PathsConfig contains directory names relative to the project root
type PathsConfig struct {
	Templates   string `yaml:"templates"`
	Data        string `yaml:"data"`
	Attachments string `yaml:"attachments"`
}

// GreetingStyle holds greeting patterns for contacts with and without an
// honorific title. Patterns use {title}, {first_name} and {last_name}
// placeholders.
type GreetingStyle struct {
	WithTitle    string `yaml:"with_title"`
	WithoutTitle string `yaml:"without_title"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// WebConfig contains web UI settings
type WebConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// User and PasswordHash enable HTTP basic auth when both are set.
	// PasswordHash is a bcrypt hash.
	User         string `yaml:"user"`
	PasswordHash string `yaml:"password_hash"`

	// BulkWorkers bounds the number of concurrently running bulk
	// operations. Contacts within one operation are always serial.
	BulkWorkers int `yaml:"bulk_workers"`
}

// Credentials holds mail submission credentials. They are never stored
// in the YAML file; LoadCredentials reads them from the environment.
type Credentials struct {
	Email    string
	Password string
}

const configRelPath = "config/config.yaml"

// Load loads configuration from <root>/config/config.yaml. A missing
// file yields the default configuration.
func Load(root string) (*Config, error) {
	cfg := &Config{root: root}

	data, err := os.ReadFile(filepath.Join(root, configRelPath))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadCredentials reads submission credentials from the environment.
func LoadCredentials() Credentials {
	return Credentials{
		Email:    os.Getenv("COLDMAILER_EMAIL"),
		Password: os.Getenv("COLDMAILER_PASSWORD"),
	}
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.SMTP.Host == "" {
		c.SMTP.Host = "smtp.gmail.com"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
		c.SMTP.StartTLS = true
	}
	if c.SMTP.Timeout == 0 {
		c.SMTP.Timeout = 30 * time.Second
	}

	if c.RateLimit.EmailsPerHour == 0 {
		c.RateLimit.EmailsPerHour = 20
	}
	if c.RateLimit.MaxEmailsPerDay == 0 {
		c.RateLimit.MaxEmailsPerDay = 100
	}
	if c.RateLimit.DelayBetweenEmails == 0 {
		c.RateLimit.DelayBetweenEmails = 30
	}

	if c.Sender.Name == "" {
		c.Sender.Name = "Your Name"
	}
	if c.Sender.Signature == "" {
		c.Sender.Signature = "Best regards,\n" + c.Sender.Name
	}

	if c.Email.DefaultTemplate == "" {
		c.Email.DefaultTemplate = "default"
	}
	if c.Email.ResumeFilename == "" {
		c.Email.ResumeFilename = "resume.pdf"
	}

	if c.Paths.Templates == "" {
		c.Paths.Templates = "templates"
	}
	if c.Paths.Data == "" {
		c.Paths.Data = "data"
	}
	if c.Paths.Attachments == "" {
		c.Paths.Attachments = "attachments"
	}

	if c.DataFormat == "" {
		c.DataFormat = "auto"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Web.ListenAddr == "" {
		c.Web.ListenAddr = "127.0.0.1:8000"
	}
	if c.Web.BulkWorkers == 0 {
		c.Web.BulkWorkers = 2
	}

	if c.Greetings == nil {
		c.Greetings = make(map[string]GreetingStyle)
	}
	defaults := map[string]GreetingStyle{
		"formal": {
			WithTitle:    "Dear {title} {last_name},",
			WithoutTitle: "Dear {first_name} {last_name},",
		},
		"semi_formal": {
			WithTitle:    "Dear {title} {last_name},",
			WithoutTitle: "Dear {first_name},",
		},
		"casual": {
			WithTitle:    "Hi {first_name},",
			WithoutTitle: "Hi {first_name},",
		},
		"professional": {
			WithTitle:    "Hello {title} {last_name},",
			WithoutTitle: "Hello {first_name},",
		},
	}
	for style, greeting := range defaults {
		if _, ok := c.Greetings[style]; !ok {
			c.Greetings[style] = greeting
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid smtp.port: %d", c.SMTP.Port)
	}

	if c.RateLimit.EmailsPerHour < 0 {
		return fmt.Errorf("rate_limit.emails_per_hour must not be negative")
	}
	if c.RateLimit.MaxEmailsPerDay < 0 {
		return fmt.Errorf("rate_limit.max_emails_per_day must not be negative")
	}
	if c.RateLimit.DelayBetweenEmails < 0 {
		return fmt.Errorf("rate_limit.delay_between_emails must not be negative")
	}

	switch c.DataFormat {
	case "csv", "json", "auto":
	default:
		return fmt.Errorf("invalid data_format: %s (must be csv, json or auto)", c.DataFormat)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Web.BulkWorkers < 1 {
		return fmt.Errorf("web.bulk_workers must be at least 1")
	}

	return nil
}

// Root returns the project root directory
func (c *Config) Root() string {
	return c.root
}

// TemplatesPath returns the templates directory path
func (c *Config) TemplatesPath() string {
	return filepath.Join(c.root, c.Paths.Templates)
}

// DataPath returns the data directory path
func (c *Config) DataPath() string {
	return filepath.Join(c.root, c.Paths.Data)
}

// AttachmentsPath returns the attachments directory path
func (c *Config) AttachmentsPath() string {
	return filepath.Join(c.root, c.Paths.Attachments)
}

// ResumePath returns the configured resume attachment path
func (c *Config) ResumePath() string {
	return filepath.Join(c.AttachmentsPath(), c.Email.ResumeFilename)
}

// Delay returns the configured inter-message delay as a duration
func (c *Config) Delay() time.Duration {
	return time.Duration(c.RateLimit.DelayBetweenEmails) * time.Second
}

// Save writes the configuration back to <root>/config/config.yaml.
func (c *Config) Save() error {
	path := filepath.Join(c.root, configRelPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SetDataFormat updates the data format and persists the change.
func (c *Config) SetDataFormat(format string) error {
	switch format {
	case "csv", "json":
	default:
		return fmt.Errorf("invalid data_format: %s (must be csv or json)", format)
	}
	c.DataFormat = format
	return c.Save()
}
