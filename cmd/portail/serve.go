package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/urbanisme-sn/portail/internal/server"
)

var servePort int

// @title Portail API
// @version 1.0
// @description Back-office and public API of the Ministry of Urbanism website
// @host localhost:8460
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Start the Portail API server.

Examples:
  portail serve                 # Listen on the configured port
  portail serve --port 8080     # Override port

Environment variables:
  PORTAIL_SERVER_PORT          Server port (default: 8460)
  PORTAIL_DATABASE_DRIVER      Database driver: sqlite, postgres
  PORTAIL_DATABASE_DSN         Database connection string
  PORTAIL_AUTH_JWT_SECRET      JWT signing secret
  PORTAIL_MODELS_CONFIG_DIR    Directory of extra model files
  ADMIN_USERNAME               Bootstrap admin username
  ADMIN_PASSWORD               Bootstrap admin password`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := server.Config{
		Port:    servePort,
		Version: Version,
	}

	if err := server.RunWithSignalHandling(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
