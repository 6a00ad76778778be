package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/urbanisme-sn/portail/internal/catalog"
	"github.com/urbanisme-sn/portail/internal/schema"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect model definitions",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLABEL\tTABLE\tFIELDS\tPUBLIC")
		for _, m := range app.Registry.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\n", m.Name, m.Label, m.TableName, len(m.Fields), m.Public)
		}
		return w.Flush()
	},
}

var modelsValidateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Check model definition files",
	Long: `Parse every model definition below a directory (` + schema.DefinitionPattern + `)
and check it alongside the built-in models, without touching the database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := schema.LoadDir(args[0])
		if err != nil {
			return err
		}

		registry := schema.NewRegistry()
		if err := catalog.New(nil).Register(registry); err != nil {
			return err
		}
		var failed int
		for _, m := range defs {
			if err := registry.Register(m); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", m.Name, err)
				failed++
				continue
			}
			fmt.Printf("✓ %s (%d fields)\n", m.Name, len(m.Fields))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d model definitions are invalid", failed, len(defs))
		}
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsValidateCmd)
}
