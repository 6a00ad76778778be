package main

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <model> <file-or-glob>...",
	Short: "Import CSV files into a model",
	Long: `Create records from CSV files whose header row names the model fields.
Patterns may use ** to match nested directories.

Examples:
  portail import partners partners.csv
  portail import news 'archives/**/*.csv'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	var files []string
	for _, pattern := range args[1:] {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("no file matches %q", pattern)
		}
		files = append(files, matches...)
	}

	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	svc, err := app.Service(args[0])
	if err != nil {
		return err
	}

	var total int
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		n, err := svc.Import(cmd.Context(), string(data))
		if err != nil {
			return fmt.Errorf("importing %s: %w", file, err)
		}
		fmt.Printf("%s: %d records\n", file, n)
		total += n
	}
	fmt.Printf("Imported %d records into %s\n", total, args[0])
	return nil
}
