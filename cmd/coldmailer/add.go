package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coldmailer/internal/contact"
)

var addParams struct {
	email         string
	firstName     string
	lastName      string
	title         string
	company       string
	jobTitle      string
	department    string
	greetingStyle string
	custom        string
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add entries",
}

var addContactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Add a contact to the roster",
	RunE:  runAddContact,
}

func init() {
	f := addContactCmd.Flags()
	f.StringVar(&addParams.email, "email", "", "email address")
	f.StringVar(&addParams.firstName, "first-name", "", "first name")
	f.StringVar(&addParams.lastName, "last-name", "", "last name")
	f.StringVar(&addParams.title, "title", "", "honorific title (Mr./Ms./Mrs./Dr./Prof.)")
	f.StringVar(&addParams.company, "company", "", "company name")
	f.StringVar(&addParams.jobTitle, "job-title", "", "position applying for")
	f.StringVar(&addParams.department, "department", "", "department")
	f.StringVar(&addParams.greetingStyle, "greeting-style", "semi_formal",
		"greeting style (formal, semi_formal, casual, professional)")
	f.StringVar(&addParams.custom, "custom", "", "custom fields (key=value,key2=value2)")
	addContactCmd.MarkFlagRequired("email")
	addContactCmd.MarkFlagRequired("first-name")
	addContactCmd.MarkFlagRequired("company")

	addCmd.AddCommand(addContactCmd)
}

func runAddContact(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	customFields, err := contact.ParseCustomFields(addParams.custom)
	if err != nil {
		return err
	}

	c, err := a.store.Add(contact.AddParams{
		Email:         addParams.email,
		FirstName:     addParams.firstName,
		LastName:      addParams.lastName,
		Title:         addParams.title,
		Company:       addParams.company,
		JobTitle:      addParams.jobTitle,
		Department:    addParams.department,
		GreetingStyle: addParams.greetingStyle,
		CustomFields:  customFields,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Added contact %s: %s <%s> at %s\n", c.ID, c.FullName(), c.Email, c.Company)
	return nil
}
