package form

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/urbanisme-sn/portail/internal/schema"
)

// Visibility returns, for every field, whether it is shown for values. A field is visible when it
// has no dependency, or when the field it depends on is visible and satisfies the condition.
// With WithDirectVisibility only the condition is checked.
func (f *Form) Visibility(values schema.Record) map[string]bool {
	vis := make(map[string]bool, len(f.model.Fields))
	var visit func(fc *schema.FieldConfig, depth int) bool
	visit = func(fc *schema.FieldConfig, depth int) bool {
		if v, ok := vis[fc.Name]; ok {
			return v
		}
		d := fc.DependsOn
		if d == nil {
			vis[fc.Name] = true
			return true
		}
		visible := Satisfies(d, values[d.Field])
		if target, ok := f.model.Field(d.Field); ok && visible && !f.direct && depth < len(f.model.Fields) {
			visible = visit(target, depth+1)
		}
		vis[fc.Name] = visible
		return visible
	}
	for i := range f.model.Fields {
		visit(&f.model.Fields[i], 0)
	}
	return vis
}

// Satisfies reports whether value meets the condition of d.
func Satisfies(d *schema.Dependency, value any) bool {
	switch d.Condition {
	case schema.CondEquals:
		return Equal(value, d.Value)
	case schema.CondNotEquals:
		return !Equal(value, d.Value)
	case schema.CondContains:
		return contains(value, d.Value)
	case schema.CondNotContains:
		return !contains(value, d.Value)
	case schema.CondEmpty:
		return IsEmpty(value)
	case schema.CondNotEmpty:
		return !IsEmpty(value)
	}
	return false
}

// IsEmpty reports whether v counts as blank: nil, "", false, zero, or an empty list or map.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) == ""
	case bool:
		return !x
	}
	if n, ok := toFloat(v); ok {
		return n == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

// Equal compares two form values. Numbers and booleans given as text compare equal to their
// typed form, so "30" equals 30 and "true" equals true.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			return na == nb
		}
	}
	if ba, ok := boolean(a); ok {
		if bb, ok := boolean(b); ok {
			return ba == bb
		}
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() && a == b {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(h, fmt.Sprint(needle))
	}
	rv := reflect.ValueOf(haystack)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if Equal(rv.Index(i).Interface(), needle) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		return n, err == nil
	}
	return 0, false
}

func boolean(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}
