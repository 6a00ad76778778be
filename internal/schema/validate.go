package schema

import (
	"fmt"
	"strings"
)

// ConfigError lists every problem found in a model configuration.
type ConfigError struct {
	Model    string
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid model config %q: %s", e.Model, strings.Join(e.Problems, "; "))
}

// Validate checks the structural invariants of the model: unique field names, dependencies that
// point at existing fields without forming cycles, option lists for choice fields and column
// references in the listing metadata. Call ApplyDefaults first.
func (m *ModelConfig) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if m.Name == "" {
		addf("name is required")
	}
	if m.TableName == "" {
		addf("tableName is required")
	}

	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		switch {
		case f.Name == "":
			addf("field with empty name")
			continue
		case seen[f.Name]:
			addf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		if !f.Type.Valid() {
			addf("field %q: unknown type %q", f.Name, f.Type)
		}
		if f.Type.HasOptions() && len(f.Options) == 0 {
			addf("field %q: type %s requires options", f.Name, f.Type)
		}
		for _, r := range f.Validation {
			switch r.Kind {
			case RuleRequired:
			case RuleMin, RuleMax:
				if _, ok := r.Bound(); !ok {
					addf("field %q: %s rule needs a numeric value", f.Name, r.Kind)
				}
			case RulePattern:
				if _, err := r.Regexp(); err != nil {
					addf("field %q: %v", f.Name, err)
				}
			case RuleCustom:
				if r.Check == nil {
					addf("field %q: custom rule without check function", f.Name)
				}
			default:
				addf("field %q: unknown rule %q", f.Name, r.Kind)
			}
		}
	}

	for _, f := range m.Fields {
		if f.Type == TypeSlug && f.Source != "" && !seen[f.Source] {
			addf("field %q: slug source %q is not a field", f.Name, f.Source)
		}
		d := f.DependsOn
		if d == nil {
			continue
		}
		if !d.Condition.Valid() {
			addf("field %q: unknown condition %q", f.Name, d.Condition)
		}
		switch {
		case d.Field == f.Name:
			addf("field %q depends on itself", f.Name)
		case !seen[d.Field]:
			addf("field %q depends on unknown field %q", f.Name, d.Field)
		}
	}
	if cycle := m.dependencyCycle(); cycle != nil {
		addf("dependency cycle: %s", strings.Join(cycle, " -> "))
	}

	checkColumns := func(kind string, names []string) {
		for _, n := range names {
			if !m.HasColumn(n) {
				addf("%s references unknown column %q", kind, n)
			}
		}
	}
	checkColumns("listFields", m.ListFields)
	checkColumns("searchFields", m.SearchFields)
	checkColumns("filterFields", m.FilterFields)
	checkColumns("sortFields", m.SortFields)
	if m.DefaultSort.Field != "" && !m.HasColumn(m.DefaultSort.Field) {
		addf("defaultSort references unknown column %q", m.DefaultSort.Field)
	}
	if o := m.DefaultSort.Order; o != "" && o != Asc && o != Desc {
		addf("defaultSort order must be asc or desc, got %q", o)
	}
	for k := range m.PublicFilter {
		if !m.HasColumn(k) {
			addf("publicFilter references unknown column %q", k)
		}
	}

	actions := make(map[string]bool, len(m.Actions))
	for _, a := range m.Actions {
		if a.Name == "" {
			addf("action with empty name")
			continue
		}
		if actions[a.Name] {
			addf("duplicate action %q", a.Name)
		}
		actions[a.Name] = true
		if a.Handler == nil {
			addf("action %q has no handler", a.Name)
		}
	}

	relations := make(map[string]bool, len(m.Relations))
	for _, r := range m.Relations {
		if relations[r.Name] {
			addf("duplicate relation %q", r.Name)
		}
		relations[r.Name] = true
		if r.Table == "" || r.ForeignKey == "" {
			addf("relation %q needs table and foreignKey", r.Name)
		}
		switch r.Type {
		case BelongsTo:
			if !m.HasColumn(r.ForeignKey) {
				addf("relation %q: foreign key %q is not a column of %s", r.Name, r.ForeignKey, m.Name)
			}
		case HasOne, HasMany:
		case ManyToMany:
			if r.Through == "" || r.OtherKey == "" {
				addf("relation %q: many_to_many needs through and otherKey", r.Name)
			}
		default:
			addf("relation %q: unknown type %q", r.Name, r.Type)
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Model: m.Name, Problems: problems}
	}
	return nil
}

// dependencyCycle returns the fields of the first dependency cycle found, or nil.
// Every field has at most one dependency, so each walk is a simple chain.
func (m *ModelConfig) dependencyCycle() []string {
	next := make(map[string]string, len(m.Fields))
	for _, f := range m.Fields {
		if f.DependsOn != nil && f.DependsOn.Field != f.Name {
			next[f.Name] = f.DependsOn.Field
		}
	}
	done := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		path := []string{}
		onPath := map[string]int{}
		for cur := f.Name; cur != "" && !done[cur]; cur = next[cur] {
			if i, ok := onPath[cur]; ok {
				return append(path[i:], cur)
			}
			onPath[cur] = len(path)
			path = append(path, cur)
		}
		for _, p := range path {
			done[p] = true
		}
	}
	return nil
}
