package schema

import (
	"fmt"
	"regexp"
	"strconv"
)

// FieldType identifies the editable surface of a field.
type FieldType string

const (
	TypeText        FieldType = "text"
	TypeEmail       FieldType = "email"
	TypePassword    FieldType = "password"
	TypeNumber      FieldType = "number"
	TypeDate        FieldType = "date"
	TypeDateTime    FieldType = "datetime"
	TypeTime        FieldType = "time"
	TypeSelect      FieldType = "select"
	TypeMultiSelect FieldType = "multiselect"
	TypeCheckbox    FieldType = "checkbox"
	TypeRadio       FieldType = "radio"
	TypeTextarea    FieldType = "textarea"
	TypeRichText    FieldType = "richtext"
	TypeFile        FieldType = "file"
	TypeImage       FieldType = "image"
	TypeGallery     FieldType = "gallery"
	TypeJSON        FieldType = "json"
	TypeRelation    FieldType = "relation"
	TypeTags        FieldType = "tags"
	TypeColor       FieldType = "color"
	TypeURL         FieldType = "url"
	TypeSlug        FieldType = "slug"
)

var knownTypes = map[FieldType]bool{
	TypeText: true, TypeEmail: true, TypePassword: true, TypeNumber: true, TypeDate: true,
	TypeDateTime: true, TypeTime: true, TypeSelect: true, TypeMultiSelect: true, TypeCheckbox: true,
	TypeRadio: true, TypeTextarea: true, TypeRichText: true, TypeFile: true, TypeImage: true,
	TypeGallery: true, TypeJSON: true, TypeRelation: true, TypeTags: true, TypeColor: true,
	TypeURL: true, TypeSlug: true,
}

// Valid reports whether t is one of the declared field types.
func (t FieldType) Valid() bool { return knownTypes[t] }

// IsJSON reports whether values of this type are stored as a JSON document.
func (t FieldType) IsJSON() bool {
	switch t {
	case TypeJSON, TypeTags, TypeMultiSelect, TypeGallery:
		return true
	}
	return false
}

// IsArray reports whether the type holds a list of values.
func (t FieldType) IsArray() bool {
	switch t {
	case TypeTags, TypeMultiSelect, TypeGallery:
		return true
	}
	return false
}

func (t FieldType) IsNumeric() bool  { return t == TypeNumber }
func (t FieldType) IsBoolean() bool  { return t == TypeCheckbox }
func (t FieldType) IsTemporal() bool { return t == TypeDate || t == TypeDateTime || t == TypeTime }

// HasOptions reports whether the type picks its values from FieldConfig.Options.
func (t FieldType) HasOptions() bool {
	return t == TypeSelect || t == TypeRadio || t == TypeMultiSelect
}

// IsFile reports whether the type is rendered as an upload drop-zone.
func (t FieldType) IsFile() bool {
	return t == TypeFile || t == TypeImage || t == TypeGallery
}

// IsTextual reports whether values of this type are plain strings.
func (t FieldType) IsTextual() bool {
	switch t {
	case TypeText, TypeEmail, TypePassword, TypeTextarea, TypeRichText, TypeSelect, TypeRadio,
		TypeFile, TypeImage, TypeRelation, TypeColor, TypeURL, TypeSlug:
		return true
	}
	return false
}

// RuleKind is the kind of a validation rule.
type RuleKind string

const (
	RuleRequired RuleKind = "required"
	RuleMin      RuleKind = "min"
	RuleMax      RuleKind = "max"
	RulePattern  RuleKind = "pattern"
	RuleCustom   RuleKind = "custom"
)

// Rule is one validation constraint attached to a field.
// Value carries the bound for min/max and the expression for pattern.
type Rule struct {
	Kind    RuleKind `json:"type" yaml:"type" toml:"type"`
	Value   any      `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
	Message string   `json:"message,omitempty" yaml:"message,omitempty" toml:"message,omitempty"`

	// Check implements custom rules. It receives the field value and the whole form.
	Check func(value any, values Record) bool `json:"-" yaml:"-" toml:"-"`
}

// Bound returns the numeric bound of a min/max rule.
func (r Rule) Bound() (float64, bool) {
	switch v := r.Value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// Regexp compiles the expression of a pattern rule.
func (r Rule) Regexp() (*regexp.Regexp, error) {
	expr, ok := r.Value.(string)
	if !ok {
		return nil, fmt.Errorf("pattern rule value must be a string, got %T", r.Value)
	}
	return regexp.Compile(expr)
}

// Option is one choice of a select, radio or multiselect field.
type Option struct {
	Value    string `json:"value" yaml:"value" toml:"value"`
	Label    string `json:"label" yaml:"label" toml:"label"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty" toml:"disabled,omitempty"`
}

// Condition is the comparison used by a visibility dependency.
type Condition string

const (
	CondEquals      Condition = "equals"
	CondNotEquals   Condition = "not_equals"
	CondContains    Condition = "contains"
	CondNotContains Condition = "not_contains"
	CondEmpty       Condition = "empty"
	CondNotEmpty    Condition = "not_empty"
)

func (c Condition) Valid() bool {
	switch c {
	case CondEquals, CondNotEquals, CondContains, CondNotContains, CondEmpty, CondNotEmpty:
		return true
	}
	return false
}

// Dependency makes a field visible only while another field satisfies a condition.
type Dependency struct {
	Field     string    `json:"field" yaml:"field" toml:"field"`
	Condition Condition `json:"condition" yaml:"condition" toml:"condition"`
	Value     any       `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
}

// Grid is a layout hint for renderers.
type Grid struct {
	Cols int `json:"cols,omitempty" yaml:"cols,omitempty" toml:"cols,omitempty"`
	Span int `json:"span,omitempty" yaml:"span,omitempty" toml:"span,omitempty"`
}

// FieldConfig describes one editable attribute of an entity.
type FieldConfig struct {
	Name        string      `json:"name" yaml:"name" toml:"name"`
	Label       string      `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	Type        FieldType   `json:"type" yaml:"type" toml:"type"`
	Required    bool        `json:"required,omitempty" yaml:"required,omitempty" toml:"required,omitempty"`
	Validation  []Rule      `json:"validation,omitempty" yaml:"validation,omitempty" toml:"validation,omitempty"`
	Options     []Option    `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
	DependsOn   *Dependency `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty" toml:"dependsOn,omitempty"`
	Grid        *Grid       `json:"grid,omitempty" yaml:"grid,omitempty" toml:"grid,omitempty"`
	Placeholder string      `json:"placeholder,omitempty" yaml:"placeholder,omitempty" toml:"placeholder,omitempty"`
	Help        string      `json:"help,omitempty" yaml:"help,omitempty" toml:"help,omitempty"`
	Default     any         `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`

	// MaxSize limits each uploaded file, in bytes. Zero means no limit.
	MaxSize int64 `json:"maxSize,omitempty" yaml:"maxSize,omitempty" toml:"maxSize,omitempty"`
	// Multiple allows several files in one file/image field. Gallery fields always accept several.
	Multiple bool `json:"multiple,omitempty" yaml:"multiple,omitempty" toml:"multiple,omitempty"`
	// Relation names the target model of a relation field.
	Relation string `json:"relation,omitempty" yaml:"relation,omitempty" toml:"relation,omitempty"`
	// Source is the field a slug is generated from.
	Source string `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`
}

// Option returns the option with the given value.
func (f *FieldConfig) Option(value string) (Option, bool) {
	for _, o := range f.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}
