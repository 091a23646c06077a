package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coldmailer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configTestSMTPCmd = &cobra.Command{
	Use:   "test-smtp",
	Short: "Test the SMTP connection and credentials",
	RunE:  runConfigTestSMTP,
}

func init() {
	configCmd.AddCommand(configTestSMTPCmd)
}

func runConfigTestSMTP(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to %s:%d...\n", a.cfg.SMTP.Host, a.cfg.SMTP.Port)

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.SMTP.Timeout+5*time.Second)
	defer cancel()

	if err := a.mailer.TestConnection(ctx); err != nil {
		return err
	}

	creds := config.LoadCredentials()
	fmt.Printf("Successfully connected and authenticated as %s\n", creds.Email)
	return nil
}
