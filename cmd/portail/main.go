package main

import (
	"os"

	"github.com/spf13/cobra"

	_ "github.com/urbanisme-sn/portail/docs" // Load swagger docs
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "portail",
	Short: "Portail - back-office and public API of the Ministry of Urbanism site",
	Long: `Portail serves the model-driven back-office and public pages of the
Ministry of Urbanism, Housing and Public Hygiene website.`,
	Example: `  # Start the API server
  portail serve

  # Load the starter content and export the news
  portail seed
  portail export news -o news.csv

  # Check the model files before deploying them
  portail models validate ./models`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server Commands:"},
		&cobra.Group{ID: "content", Title: "Content Commands:"},
		&cobra.Group{ID: "admin", Title: "Admin Commands:"},
	)

	serveCmd.GroupID = "server"
	migrateCmd.GroupID = "server"

	seedCmd.GroupID = "content"
	modelsCmd.GroupID = "content"
	exportCmd.GroupID = "content"
	importCmd.GroupID = "content"
	statsCmd.GroupID = "content"

	auditCmd.GroupID = "admin"
	usersCmd.GroupID = "admin"

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
