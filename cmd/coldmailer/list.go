package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coldmailer/internal/contact"
)

var listStatus string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates or contacts",
}

var listTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available email templates",
	RunE:  runListTemplates,
}

var listContactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List contacts",
	RunE:  runListContacts,
}

func init() {
	listContactsCmd.Flags().StringVar(&listStatus, "status", "all",
		"filter by status (all, pending, sent, replied, bounced)")

	listCmd.AddCommand(listTemplatesCmd, listContactsCmd)
}

func runListTemplates(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	names, err := a.mailer.Templates().List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No templates found. Run 'coldmailer init' to create defaults.")
		return nil
	}

	fmt.Printf("Templates (%d):\n", len(names))
	for _, name := range names {
		marker := " "
		if name == a.cfg.Email.DefaultTemplate {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, name)
	}
	return nil
}

func runListContacts(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var contacts []*contact.Contact
	if listStatus == "all" {
		contacts, err = a.store.GetAll()
	} else {
		var st contact.Status
		st, err = contact.ValidateStatus(listStatus)
		if err != nil {
			return err
		}
		contacts, err = a.store.GetByStatus(st)
	}
	if err != nil {
		return err
	}

	if len(contacts) == 0 {
		fmt.Println("No contacts found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tCOMPANY\tSTATUS\tLAST CONTACTED")
	for _, c := range contacts {
		last := "-"
		if c.LastContacted != nil {
			last = c.LastContacted.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.FullName(), c.Email, c.Company, c.Status, last)
	}
	return w.Flush()
}
