package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/schema"
)

var (
	exportOutput  string
	exportSearch  string
	exportSort    string
	exportFilters map[string]string
)

var exportCmd = &cobra.Command{
	Use:   "export <model>",
	Short: "Export the records of a model as CSV",
	Long: `Write the records of a model as CSV, with the same columns as the
back-office export.

Examples:
  portail export news                          # Print to stdout
  portail export tenders -o tenders.csv        # Write to a file
  portail export projects --filter status=in_progress --sort=-start_date`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportSearch, "search", "", "Only export records matching this text")
	exportCmd.Flags().StringVar(&exportSort, "sort", "", "Sort field, prefixed with - for descending order")
	exportCmd.Flags().StringToStringVar(&exportFilters, "filter", nil, "Field equality filters (field=value)")
}

func runExport(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	svc, err := app.Service(args[0])
	if err != nil {
		return err
	}

	opts := crud.ListOptions{Search: exportSearch}
	if exportSort != "" {
		opts.SortBy, opts.SortOrder = strings.TrimPrefix(exportSort, "-"), schema.Asc
		if strings.HasPrefix(exportSort, "-") {
			opts.SortOrder = schema.Desc
		}
	}
	if len(exportFilters) > 0 {
		opts.Filters = make(map[string]any, len(exportFilters))
		for k, v := range exportFilters {
			opts.Filters[k] = v
		}
	}

	var w io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	n, err := svc.WriteExport(cmd.Context(), w, opts)
	if err != nil {
		return err
	}
	if exportOutput != "" {
		fmt.Fprintf(os.Stderr, "Exported %d records to %s\n", n, exportOutput)
	}
	return nil
}
