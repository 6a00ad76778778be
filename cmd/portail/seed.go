package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/urbanisme-sn/portail/internal/seed"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the starter content",
	Long: `Create the starter content of the site. Models that already hold rows
are skipped, so the command can be run again safely.

Examples:
  portail seed                     # Load the embedded content
  portail seed -f content.yaml     # Load content from a file`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML file of seed sections (default: embedded content)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	sections := seed.Default()
	if seedFile != "" {
		data, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("reading seed file: %w", err)
		}
		if sections, err = seed.Parse(data); err != nil {
			return err
		}
	}

	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	result, err := seed.Run(cmd.Context(), app.Services, sections)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(result))
	for name := range result {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-20s %d created\n", name, result[name])
	}
	return nil
}
