package form

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/urbanisme-sn/portail/internal/schema"
)

// BaseType is the value shape a field validator expects.
type BaseType string

const (
	BaseString  BaseType = "string"
	BaseNumber  BaseType = "number"
	BaseDate    BaseType = "date"
	BaseBoolean BaseType = "boolean"
	BaseArray   BaseType = "array"
	BaseObject  BaseType = "object"
)

// BaseTypeOf maps a field type to the shape of its values.
func BaseTypeOf(t schema.FieldType) BaseType {
	switch t {
	case schema.TypeNumber:
		return BaseNumber
	case schema.TypeDate, schema.TypeDateTime:
		return BaseDate
	case schema.TypeCheckbox:
		return BaseBoolean
	case schema.TypeMultiSelect, schema.TypeTags, schema.TypeGallery:
		return BaseArray
	case schema.TypeJSON:
		return BaseObject
	}
	return BaseString
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04"}

// ValidationErrors maps field names to their messages.
type ValidationErrors map[string][]string

func (e ValidationErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + strings.Join(e[name], ", ")
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e ValidationErrors) add(field, msg string) {
	e[field] = append(e[field], msg)
}

// FieldValidator checks and coerces the value of one field.
type FieldValidator struct {
	Field    *schema.FieldConfig
	Base     BaseType
	Optional bool
	form     *Form
}

// Schema is the set of field validators of a form, in field order.
type Schema struct {
	Fields []*FieldValidator
}

// Field returns the validator of the named field.
func (s *Schema) Field(name string) (*FieldValidator, bool) {
	for _, fv := range s.Fields {
		if fv.Field.Name == name {
			return fv, true
		}
	}
	return nil, false
}

// Schema builds the validators of every field: a base validator per field type, the field rules
// on top, optional unless the field is required.
func (f *Form) Schema() *Schema {
	s := &Schema{Fields: make([]*FieldValidator, len(f.model.Fields))}
	for i := range f.model.Fields {
		fc := &f.model.Fields[i]
		required := fc.Required
		for _, r := range fc.Validation {
			if r.Kind == schema.RuleRequired {
				required = true
			}
		}
		s.Fields[i] = &FieldValidator{Field: fc, Base: BaseTypeOf(fc.Type), Optional: !required, form: f}
	}
	return s
}

func (fv *FieldValidator) message(r *schema.Rule, format string, args ...any) string {
	if r != nil && r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("%s "+format, append([]any{fv.Field.Label}, args...)...)
}

// Validate checks value against the field and returns it coerced to its base type.
func (fv *FieldValidator) Validate(value any, values schema.Record) (any, []string) {
	if IsBlank(value) {
		if fv.Optional {
			return value, nil
		}
		var rule *schema.Rule
		for i := range fv.Field.Validation {
			if fv.Field.Validation[i].Kind == schema.RuleRequired {
				rule = &fv.Field.Validation[i]
			}
		}
		return value, []string{fv.message(rule, "is required")}
	}

	v, err := fv.coerce(value)
	if err != "" {
		return value, []string{fv.message(nil, "%s", err)}
	}

	var msgs []string
	msgs = append(msgs, fv.checkType(v)...)
	for i := range fv.Field.Validation {
		r := &fv.Field.Validation[i]
		if msg, ok := fv.checkRule(r, v, values); !ok {
			msgs = append(msgs, msg)
		}
	}
	return v, msgs
}

// IsBlank reports whether a submitted value is missing: nil, blank text or an empty list.
// Unlike IsEmpty, false and zero are values.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

func (fv *FieldValidator) coerce(v any) (any, string) {
	switch fv.Base {
	case BaseString:
		switch x := v.(type) {
		case string:
			return x, ""
		case fmt.Stringer:
			return x.String(), ""
		}
		return nil, "must be text"
	case BaseNumber:
		if n, ok := toFloat(v); ok {
			return n, ""
		}
		return nil, "must be a number"
	case BaseBoolean:
		if b, ok := boolean(v); ok {
			return b, ""
		}
		return nil, "must be true or false"
	case BaseDate:
		switch x := v.(type) {
		case time.Time:
			return x, ""
		case string:
			for _, layout := range dateLayouts {
				if _, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
					return strings.TrimSpace(x), ""
				}
			}
		}
		return nil, "must be a valid date"
	case BaseArray:
		switch x := v.(type) {
		case []any:
			return x, ""
		case []string:
			out := make([]any, len(x))
			for i, s := range x {
				out[i] = s
			}
			return out, ""
		}
		return nil, "must be a list"
	case BaseObject:
		switch x := v.(type) {
		case map[string]any, []any:
			return x, ""
		case string:
			var out any
			if err := json.Unmarshal([]byte(x), &out); err == nil {
				return out, ""
			}
			return nil, "must be valid JSON"
		}
		return nil, "must be an object"
	}
	return v, ""
}

func (fv *FieldValidator) checkType(v any) []string {
	fc := fv.Field
	switch fc.Type {
	case schema.TypeEmail:
		if err := fv.form.validate.Var(v, "email"); err != nil {
			return []string{fv.message(nil, "must be a valid email address")}
		}
	case schema.TypeURL:
		if err := fv.form.validate.Var(v, "url"); err != nil {
			return []string{fv.message(nil, "must be a valid URL")}
		}
	case schema.TypeColor:
		if err := fv.form.validate.Var(v, "hexcolor"); err != nil {
			return []string{fv.message(nil, "must be a hexadecimal color")}
		}
	case schema.TypeSelect, schema.TypeRadio:
		if !fv.allowed(v) {
			return []string{fv.message(nil, "has an invalid choice")}
		}
	case schema.TypeMultiSelect:
		for _, e := range v.([]any) {
			if !fv.allowed(e) {
				return []string{fv.message(nil, "has an invalid choice")}
			}
		}
	}
	return nil
}

func (fv *FieldValidator) allowed(v any) bool {
	o, ok := fv.Field.Option(fmt.Sprint(v))
	return ok && !o.Disabled
}

// measure is the quantity min/max rules bound: the number itself, the length of text in
// characters or the size of a list.
func measure(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		return float64(utf8.RuneCountInString(x)), true
	case []any:
		return float64(len(x)), true
	}
	return 0, false
}

func (fv *FieldValidator) checkRule(r *schema.Rule, v any, values schema.Record) (string, bool) {
	switch r.Kind {
	case schema.RuleMin, schema.RuleMax:
		bound, ok := r.Bound()
		m, measurable := measure(v)
		if !ok || !measurable {
			return "", true
		}
		unit := ""
		switch v.(type) {
		case string:
			unit = " characters"
		case []any:
			unit = " items"
		}
		if r.Kind == schema.RuleMin && m < bound {
			return fv.message(r, "must be at least %v%s", bound, unit), false
		}
		if r.Kind == schema.RuleMax && m > bound {
			return fv.message(r, "must be at most %v%s", bound, unit), false
		}
	case schema.RulePattern:
		s, ok := v.(string)
		if !ok {
			return "", true
		}
		re, err := r.Regexp()
		if err != nil || !re.MatchString(s) {
			return fv.message(r, "has an invalid format"), false
		}
	case schema.RuleCustom:
		if r.Check != nil && !r.Check(v, values) {
			return fv.message(r, "is invalid"), false
		}
	}
	return "", true
}

// Validate checks values against the visible fields and returns the record to submit: declared
// fields only, coerced to their base types. Hidden fields are not validated; their values are
// kept or set to nil according to the hidden field policy.
func (f *Form) Validate(values schema.Record) (schema.Record, error) {
	vis := f.Visibility(values)
	errs := ValidationErrors{}
	out := make(schema.Record, len(values))

	for _, fv := range f.Schema().Fields {
		name := fv.Field.Name
		value, present := values[name]
		if !vis[name] {
			switch {
			case f.policy == ClearHidden:
				out[name] = nil
			case present:
				out[name] = value
			}
			continue
		}
		v, msgs := fv.Validate(value, values)
		if len(msgs) > 0 {
			errs[name] = msgs
			continue
		}
		if present {
			out[name] = v
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// ValidatePartial checks only the supplied fields, as for a bulk update applied to records whose
// other values are unknown. Undeclared fields are dropped and visibility is not evaluated.
func (f *Form) ValidatePartial(values schema.Record) (schema.Record, error) {
	errs := ValidationErrors{}
	out := make(schema.Record, len(values))

	s := f.Schema()
	for name, value := range values {
		fv, ok := s.Field(name)
		if !ok {
			continue
		}
		v, msgs := fv.Validate(value, values)
		if len(msgs) > 0 {
			errs[name] = msgs
			continue
		}
		out[name] = v
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}
