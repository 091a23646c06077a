package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coldmailer/internal/contact"
)

var (
	sendTemplate string
	sendCustom   string
	sendDryRun   bool
	sendTo       string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send emails",
}

var sendAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Send to all pending contacts",
	RunE:  runSendAll,
}

var sendToCmd = &cobra.Command{
	Use:   "to",
	Short: "Send to a single contact by email address",
	RunE:  runSendTo,
}

func init() {
	for _, c := range []*cobra.Command{sendAllCmd, sendToCmd} {
		c.Flags().StringVarP(&sendTemplate, "template", "t", "", "template to use (default from config)")
		c.Flags().StringVar(&sendCustom, "custom", "", "custom variables (key=value,key2=value2)")
		c.Flags().BoolVar(&sendDryRun, "dry-run", false, "preview without sending")
	}
	sendToCmd.Flags().StringVar(&sendTo, "email", "", "recipient email address")
	sendToCmd.MarkFlagRequired("email")

	sendCmd.AddCommand(sendAllCmd, sendToCmd)
}

func runSendAll(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	customVars, err := contact.ParseCustomFields(sendCustom)
	if err != nil {
		return err
	}

	if sendDryRun {
		fmt.Println("DRY RUN - no emails will be sent")
	}

	onProgress := func(current, total int, c *contact.Contact) {
		fmt.Printf("[%d/%d] %s <%s>\n", current, total, c.FullName(), c.Email)
	}

	result, err := a.mailer.SendToPending(cmd.Context(), sendTemplate, customVars,
		sendDryRun, onProgress, nil)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Total:   %d\n", result.Total)
	fmt.Printf("Sent:    %d\n", result.Sent)
	fmt.Printf("Failed:  %d\n", result.Failed)
	fmt.Printf("Skipped: %d\n", result.Skipped)
	for _, e := range result.Errors {
		fmt.Printf("  %s: %s\n", e.Email, e.Error)
	}

	if result.Skipped > 0 {
		wait := a.mailer.Governor().WaitDuration()
		if wait > 0 {
			fmt.Printf("\nRate limit reached. Next send possible in %s.\n", wait.Round(time.Second))
		}
	}

	return nil
}

func runSendTo(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	customVars, err := contact.ParseCustomFields(sendCustom)
	if err != nil {
		return err
	}

	c, err := a.store.GetByEmail(sendTo)
	if err != nil {
		return err
	}

	res, err := a.mailer.SendOne(cmd.Context(), c, sendTemplate, customVars, nil, sendDryRun)
	if err != nil {
		return err
	}

	if res.DryRun {
		fmt.Println("DRY RUN - would send:")
		fmt.Println(res.Preview)
		return nil
	}

	fmt.Printf("Email sent successfully to %s\n", c.Email)
	if res.PersistenceErr != nil {
		fmt.Printf("Warning: send not recorded: %v\n", res.PersistenceErr)
	}
	return nil
}
