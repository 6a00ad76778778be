package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	auditLimit int
	auditDays  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read the audit trail",
}

var auditRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the latest audit entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		loc := app.Config.Location()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tUSER\tACTION\tENTITY\tNAME")
		for _, l := range app.Audit.RecentLogs(cmd.Context(), auditLimit) {
			user := l.UserEmail
			if user == "" {
				user = l.UserID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s/%s\t%s\n",
				l.CreatedAt.In(loc).Format("2006-01-02 15:04"), user, l.Action, l.EntityType, l.EntityID, l.EntityName)
		}
		return w.Flush()
	},
}

var auditAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize the audit trail as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		a := app.Audit.Analytics(cmd.Context(), auditDays)
		if a == nil {
			return fmt.Errorf("failed to compute audit analytics")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	},
}

func init() {
	auditRecentCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Number of entries")
	auditAnalyticsCmd.Flags().IntVar(&auditDays, "days", 7, "Number of days covered")

	auditCmd.AddCommand(auditRecentCmd)
	auditCmd.AddCommand(auditAnalyticsCmd)
}
