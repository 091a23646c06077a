package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"coldmailer/internal/config"
	"coldmailer/internal/contact"
	"coldmailer/internal/template"
)

var initDataFormat string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the project directories, config and sample data",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDataFormat, "data-format", "csv", "contact storage format (csv or json)")
}

func runInit(cmd *cobra.Command, args []string) error {
	if initDataFormat != "csv" && initDataFormat != "json" {
		return fmt.Errorf("invalid data format: %s (must be csv or json)", initDataFormat)
	}

	cfg, err := config.Load(rootDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.DataFormat = initDataFormat

	for _, dir := range []string{cfg.TemplatesPath(), cfg.DataPath(), cfg.AttachmentsPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		fmt.Printf("Created %s\n", dir)
	}

	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Println("Wrote config/config.yaml")

	if err := template.CreateDefaults(cfg.TemplatesPath()); err != nil {
		return err
	}
	fmt.Println("Created default templates: default, follow_up, referral")

	store := contact.NewStore(cfg.DataPath(), cfg.DataFormat)
	path, err := store.SeedSampleData()
	if err != nil {
		return err
	}
	fmt.Printf("Created sample contacts at %s\n", path)

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Set COLDMAILER_EMAIL and COLDMAILER_PASSWORD in the environment")
	fmt.Println("  2. Edit config/config.yaml (sender name, signature, limits)")
	fmt.Printf("  3. Replace the sample contacts in %s\n", path)
	fmt.Println("  4. Run: coldmailer config test-smtp")

	return nil
}
