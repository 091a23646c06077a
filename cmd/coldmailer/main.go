package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"coldmailer/internal/config"
	"coldmailer/internal/contact"
	"coldmailer/internal/ledger"
	"coldmailer/internal/mailer"
	"coldmailer/internal/ratelimit"
	"coldmailer/internal/template"
)

var (
	rootDir string
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "coldmailer",
	Short: "Personalized bulk email sender",
	Long: `Coldmailer sends personalized, rate-limited emails to a contact
roster from templates, via an authenticated SMTP submission server.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("coldmailer version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", ".", "project root directory")

	rootCmd.AddCommand(
		initCmd,
		sendCmd,
		listCmd,
		addCmd,
		statusCmd,
		convertCmd,
		configCmd,
		serveCmd,
		versionCmd,
	)
}

// app bundles the wired components behind every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *contact.Store
	ledger *ledger.Ledger
	mailer *mailer.Mailer
}

func newApp() (*app, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Logging)

	store := contact.NewStore(cfg.DataPath(), cfg.DataFormat)
	led := ledger.New(cfg.DataPath())
	governor := ratelimit.New(led, limitsFromConfig(cfg))

	creds := config.LoadCredentials()
	transport := mailer.NewSMTPTransport(cfg.SMTP, creds, logger)
	engine := template.NewEngine(cfg)

	m := mailer.New(cfg, creds, store, engine, led, governor, transport, logger)

	return &app{cfg: cfg, logger: logger, store: store, ledger: led, mailer: m}, nil
}

func limitsFromConfig(cfg *config.Config) ratelimit.Limits {
	return ratelimit.Limits{
		EmailsPerHour:   cfg.RateLimit.EmailsPerHour,
		EmailsPerDay:    cfg.RateLimit.MaxEmailsPerDay,
		InterMessageGap: cfg.Delay(),
	}
}

func newLogger(lc config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
