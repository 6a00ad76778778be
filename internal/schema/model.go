package schema

import (
	"context"
	"fmt"
	"strings"
)

// System columns maintained by the CRUD layer.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
	ColumnDeletedAt = "deleted_at"
)

// Record is one row of a model table keyed by column name.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value of key formatted as a string, or "" when absent.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// SortOrder is the direction of a sort.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// SortSpec names the default ordering of a listing.
type SortSpec struct {
	Field string    `json:"field" yaml:"field" toml:"field"`
	Order SortOrder `json:"order" yaml:"order" toml:"order"`
}

// Features toggles optional behaviour per model.
type Features struct {
	Search      bool `json:"search,omitempty" yaml:"search,omitempty" toml:"search,omitempty"`
	Filters     bool `json:"filters,omitempty" yaml:"filters,omitempty" toml:"filters,omitempty"`
	Sort        bool `json:"sort,omitempty" yaml:"sort,omitempty" toml:"sort,omitempty"`
	Pagination  bool `json:"pagination,omitempty" yaml:"pagination,omitempty" toml:"pagination,omitempty"`
	Export      bool `json:"export,omitempty" yaml:"export,omitempty" toml:"export,omitempty"`
	Import      bool `json:"import,omitempty" yaml:"import,omitempty" toml:"import,omitempty"`
	BulkActions bool `json:"bulkActions,omitempty" yaml:"bulkActions,omitempty" toml:"bulkActions,omitempty"`
	Trash       bool `json:"trash,omitempty" yaml:"trash,omitempty" toml:"trash,omitempty"`
	Audit       bool `json:"audit,omitempty" yaml:"audit,omitempty" toml:"audit,omitempty"`
	Duplicate   bool `json:"duplicate,omitempty" yaml:"duplicate,omitempty" toml:"duplicate,omitempty"`
	Preview     bool `json:"preview,omitempty" yaml:"preview,omitempty" toml:"preview,omitempty"`
}

// Hooks are optional callbacks run around CRUD operations.
// A BeforeDelete returning false vetoes the delete without error.
type Hooks struct {
	BeforeCreate func(ctx context.Context, data Record) (Record, error)
	AfterCreate  func(ctx context.Context, created Record) error
	BeforeUpdate func(ctx context.Context, id string, data Record) (Record, error)
	AfterUpdate  func(ctx context.Context, updated Record) error
	BeforeDelete func(ctx context.Context, id string) (bool, error)
	AfterDelete  func(ctx context.Context, id string) error
}

// Action is a named operation on one or several records.
type Action struct {
	Name    string `json:"name" yaml:"name" toml:"name"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	Confirm string `json:"confirm,omitempty" yaml:"confirm,omitempty" toml:"confirm,omitempty"`
	Bulk    bool   `json:"bulk,omitempty" yaml:"bulk,omitempty" toml:"bulk,omitempty"`

	Handler func(ctx context.Context, ids []string) error `json:"-" yaml:"-" toml:"-"`
}

// RelationType is the cardinality of a relation.
type RelationType string

const (
	BelongsTo  RelationType = "belongs_to"
	HasMany    RelationType = "has_many"
	HasOne     RelationType = "has_one"
	ManyToMany RelationType = "many_to_many"
)

// Relation links a model to another table.
//
// For belongs_to, ForeignKey is a column of this model. For has_one and has_many it is a column of
// Table. For many_to_many, Through is the join table, ForeignKey its column pointing at this model
// and OtherKey its column pointing at Table.
type Relation struct {
	Name       string       `json:"name" yaml:"name" toml:"name"`
	Type       RelationType `json:"type" yaml:"type" toml:"type"`
	Table      string       `json:"table" yaml:"table" toml:"table"`
	ForeignKey string       `json:"foreignKey" yaml:"foreignKey" toml:"foreignKey"`
	Through    string       `json:"through,omitempty" yaml:"through,omitempty" toml:"through,omitempty"`
	OtherKey   string       `json:"otherKey,omitempty" yaml:"otherKey,omitempty" toml:"otherKey,omitempty"`
	Eager      bool         `json:"eager,omitempty" yaml:"eager,omitempty" toml:"eager,omitempty"`
}

// ModelConfig describes one entity and its backing table.
type ModelConfig struct {
	Name         string        `json:"name" yaml:"name" toml:"name"`
	Label        string        `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	TableName    string        `json:"tableName,omitempty" yaml:"tableName,omitempty" toml:"tableName,omitempty"`
	PrimaryKey   string        `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty" toml:"primaryKey,omitempty"`
	Fields       []FieldConfig `json:"fields" yaml:"fields" toml:"fields"`
	ListFields   []string      `json:"listFields,omitempty" yaml:"listFields,omitempty" toml:"listFields,omitempty"`
	SearchFields []string      `json:"searchFields,omitempty" yaml:"searchFields,omitempty" toml:"searchFields,omitempty"`
	FilterFields []string      `json:"filterFields,omitempty" yaml:"filterFields,omitempty" toml:"filterFields,omitempty"`
	SortFields   []string      `json:"sortFields,omitempty" yaml:"sortFields,omitempty" toml:"sortFields,omitempty"`
	DefaultSort  SortSpec      `json:"defaultSort,omitempty" yaml:"defaultSort,omitempty" toml:"defaultSort,omitempty"`
	Features     Features      `json:"features,omitempty" yaml:"features,omitempty" toml:"features,omitempty"`
	Actions      []Action      `json:"actions,omitempty" yaml:"actions,omitempty" toml:"actions,omitempty"`
	Relations    []Relation    `json:"relations,omitempty" yaml:"relations,omitempty" toml:"relations,omitempty"`

	// Public exposes the model on the public site. PublicFilter restricts which rows are shown.
	Public       bool           `json:"public,omitempty" yaml:"public,omitempty" toml:"public,omitempty"`
	PublicFilter map[string]any `json:"publicFilter,omitempty" yaml:"publicFilter,omitempty" toml:"publicFilter,omitempty"`

	Hooks Hooks `json:"-" yaml:"-" toml:"-"`
}

// ApplyDefaults fills in the optional parts of the configuration.
func (m *ModelConfig) ApplyDefaults() {
	if m.Label == "" {
		m.Label = Humanize(m.Name)
	}
	if m.TableName == "" {
		m.TableName = m.Name
	}
	if m.PrimaryKey == "" {
		m.PrimaryKey = ColumnID
	}
	if m.DefaultSort.Field == "" {
		m.DefaultSort.Field = ColumnCreatedAt
	}
	if m.DefaultSort.Order == "" {
		m.DefaultSort.Order = Desc
	}
	for i := range m.Fields {
		if m.Fields[i].Label == "" {
			m.Fields[i].Label = Humanize(m.Fields[i].Name)
		}
	}
	for i := range m.Actions {
		if m.Actions[i].Label == "" {
			m.Actions[i].Label = Humanize(m.Actions[i].Name)
		}
	}
}

// Field returns the field with the given name.
func (m *ModelConfig) Field(name string) (*FieldConfig, bool) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// Columns returns every column the CRUD layer reads or writes, primary key first.
func (m *ModelConfig) Columns() []string {
	cols := []string{m.PrimaryKey}
	for _, f := range m.Fields {
		if f.Name != m.PrimaryKey {
			cols = append(cols, f.Name)
		}
	}
	cols = append(cols, ColumnCreatedAt, ColumnUpdatedAt)
	if m.Features.Trash {
		cols = append(cols, ColumnDeletedAt)
	}
	return cols
}

// HasColumn reports whether name is one of Columns.
func (m *ModelConfig) HasColumn(name string) bool {
	for _, c := range m.Columns() {
		if c == name {
			return true
		}
	}
	return false
}

// Action returns the action with the given name.
func (m *ModelConfig) Action(name string) (*Action, bool) {
	for i := range m.Actions {
		if m.Actions[i].Name == name {
			return &m.Actions[i], true
		}
	}
	return nil, false
}

// Relation returns the relation with the given name.
func (m *ModelConfig) Relation(name string) (*Relation, bool) {
	for i := range m.Relations {
		if m.Relations[i].Name == name {
			return &m.Relations[i], true
		}
	}
	return nil, false
}
