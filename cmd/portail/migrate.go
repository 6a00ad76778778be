package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	Long: `Create the tables of the built-in and configured models, add missing
columns and seed the default roles. The server runs the same step at startup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Migrated %d models\n", len(app.Registry.All()))
		return nil
	},
}
