package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [model]...",
	Short: "Show record counts per model",
	Long:  `Show the total and recent (last 7 days) record counts of the given models, or of all models.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			for _, m := range app.Registry.All() {
				names = append(names, m.Name)
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tTOTAL\tRECENT\tGROWTH")
		for _, name := range names {
			svc, err := app.Service(name)
			if err != nil {
				return err
			}
			st, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\n", name, st.Total, st.Recent, st.Growth)
		}
		return w.Flush()
	},
}
