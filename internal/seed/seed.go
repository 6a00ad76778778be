// Package seed loads the starter content of the site through the CRUD services.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/schema"
	"gopkg.in/yaml.v3"
)

//go:embed data.yaml
var defaultData []byte

// refPrefix marks a value resolved to the id of an earlier seeded row: "@<model>:<slug>".
const refPrefix = "@"

// Section is the content seeded into one model.
type Section struct {
	Model   string           `yaml:"model"`
	Records []map[string]any `yaml:"records"`
}

// Parse reads seed sections from YAML.
func Parse(data []byte) ([]Section, error) {
	var sections []Section
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	return sections, nil
}

// Default returns the embedded starter content.
func Default() []Section {
	sections, err := Parse(defaultData)
	if err != nil {
		panic(err)
	}
	return sections
}

// Result counts the rows created per model.
type Result map[string]int

// Run creates the records of every section through the service of its model. A model whose table
// already holds rows is skipped, so Run can be repeated safely.
func Run(ctx context.Context, services map[string]*crud.Service, sections []Section) (Result, error) {
	result := Result{}
	ids := map[string]string{}

	for _, sec := range sections {
		svc, ok := services[sec.Model]
		if !ok {
			return result, fmt.Errorf("seed data references unknown model %q", sec.Model)
		}
		existing, err := svc.List(ctx, crud.ListOptions{Limit: 1})
		if err != nil {
			return result, err
		}
		if existing.Total > 0 {
			slog.Info("Skipping seed, model already has rows", "model", sec.Model, "rows", existing.Total)
			continue
		}

		for i, raw := range sec.Records {
			rec, err := resolve(raw, ids)
			if err != nil {
				return result, fmt.Errorf("%s record %d: %w", sec.Model, i+1, err)
			}
			created, err := svc.Create(ctx, rec)
			if err != nil {
				return result, fmt.Errorf("failed to seed %s record %d: %w", sec.Model, i+1, err)
			}
			if slug := created.String("slug"); slug != "" {
				ids[sec.Model+":"+slug] = created.String(svc.Model().PrimaryKey)
			}
			result[sec.Model]++
		}
		slog.Info("Seeded model", "model", sec.Model, "rows", result[sec.Model])
	}
	return result, nil
}

func resolve(raw map[string]any, ids map[string]string) (schema.Record, error) {
	rec := make(schema.Record, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, refPrefix) {
			rec[k] = v
			continue
		}
		id, found := ids[strings.TrimPrefix(s, refPrefix)]
		if !found {
			return nil, fmt.Errorf("field %s: unresolved reference %s", k, s)
		}
		rec[k] = id
	}
	return rec, nil
}
