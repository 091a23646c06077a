package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusHistoryLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show contact statistics, rate limit usage and recent sends",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusHistoryLimit, "history", 10, "number of recent sends to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	contactStats, err := a.store.GetStatistics()
	if err != nil {
		return err
	}

	fmt.Println("Contacts:")
	fmt.Printf("  Total:   %d\n", contactStats.Total)
	fmt.Printf("  Pending: %d\n", contactStats.Pending)
	fmt.Printf("  Sent:    %d\n", contactStats.Sent)
	fmt.Printf("  Replied: %d\n", contactStats.Replied)
	fmt.Printf("  Bounced: %d\n", contactStats.Bounced)

	rate := a.mailer.Governor().Statistics()
	fmt.Println()
	fmt.Println("Rate limits:")
	fmt.Printf("  Last hour: %d/%d (%d remaining)\n",
		rate.EmailsLastHour, rate.HourlyLimit, rate.HourlyRemaining)
	fmt.Printf("  Today:     %d/%d (%d remaining)\n",
		rate.EmailsToday, rate.DailyLimit, rate.DailyRemaining)
	fmt.Printf("  Lifetime:  %d\n", rate.TotalSent)
	fmt.Printf("  Delay:     %ds between emails\n", rate.DelayBetweenEmails)

	if wait := a.mailer.Governor().WaitDuration(); wait > 0 {
		fmt.Printf("  Next send possible in %s\n", wait.Round(time.Second))
	}

	records := a.ledger.Recent(statusHistoryLimit)
	if len(records) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Printf("Recent sends (%d):\n", len(records))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  WHEN\tEMAIL\tTEMPLATE\tSUBJECT")
	for _, rec := range records {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			rec.Timestamp.Format("2006-01-02 15:04"), rec.Email, rec.Template, rec.Subject)
	}
	return w.Flush()
}
