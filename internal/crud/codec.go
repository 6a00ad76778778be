package crud

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/urbanisme-sn/portail/internal/schema"
	"golang.org/x/crypto/bcrypt"
)

// Display formats of temporal fields, as stored.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
	TimeLayout     = "15:04"
)

// storedTimeLayouts are tried in order when a driver returns a timestamp as text.
var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	DateLayout,
}

func isSystemColumn(name string) bool {
	switch name {
	case schema.ColumnID, schema.ColumnCreatedAt, schema.ColumnUpdatedAt, schema.ColumnDeletedAt:
		return true
	}
	return false
}

// encode converts user data into column values. Undeclared and system columns are dropped.
func (s *Service) encode(data schema.Record) (map[string]any, error) {
	row := make(map[string]any, len(data))
	for name, v := range data {
		f, ok := s.model.Field(name)
		if !ok || name == s.model.PrimaryKey {
			if !isSystemColumn(name) && name != s.model.PrimaryKey {
				s.logger.Debug("Ignoring undeclared column", "model", s.model.Name, "column", name)
			}
			continue
		}
		ev, err := encodeValue(f, v)
		if err != nil {
			return nil, &RejectionError{Field: name, Message: err.Error()}
		}
		row[name] = ev
	}
	return row, nil
}

func encodeValue(f *schema.FieldConfig, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case f.Type == schema.TypePassword:
		return hashPassword(v)
	case f.Type.IsJSON():
		// A string is a JSON string value; already encoded JSON text comes as json.RawMessage.
		if raw, ok := v.(json.RawMessage); ok {
			if !json.Valid(raw) {
				return nil, fmt.Errorf("invalid JSON")
			}
			return string(raw), nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cannot encode value as JSON: %w", err)
		}
		return string(b), nil
	case f.Type.IsBoolean():
		return toBool(v)
	case f.Type.IsNumeric():
		return toNumber(v)
	case f.Type.IsTemporal():
		if t, ok := v.(time.Time); ok {
			return formatTemporal(f.Type, t), nil
		}
		return toText(v)
	default:
		return toText(v)
	}
}

func hashPassword(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("password must be a string")
	}
	if s == "" {
		return nil, nil
	}
	if isBcryptHash(s) {
		return s, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

func formatTemporal(t schema.FieldType, v time.Time) string {
	switch t {
	case schema.TypeDate:
		return v.Format(DateLayout)
	case schema.TypeTime:
		return v.Format(TimeLayout)
	default:
		return v.Format(DateTimeLayout)
	}
}

func toText(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool, int, int64, int32, uint, uint64, uint32, json.Number:
		return fmt.Sprint(x), nil
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return fmt.Sprint(v), nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "on", "yes", "oui":
			return true, nil
		case "false", "0", "off", "no", "non", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("not a boolean: %v", v)
}

func toNumber(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case json.Number:
		return toNumber(string(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	}
	return nil, fmt.Errorf("not a number: %v", v)
}

// normalizeNumber returns whole numbers as int64 whatever column type the driver reports.
func normalizeNumber(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case float32:
		return normalizeNumber(float64(x))
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case string:
		n, err := toNumber(x)
		if err != nil {
			return x
		}
		return normalizeNumber(n)
	}
	return v
}

// decode converts a scanned row into a record. Password values are never returned.
func (s *Service) decode(row map[string]any) schema.Record {
	rec := make(schema.Record, len(row))
	for name, v := range row {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		f, declared := s.model.Field(name)
		switch {
		case declared && f.Type == schema.TypePassword:
			continue
		case declared && name != s.model.PrimaryKey:
			v = decodeValue(f, v)
		case name == schema.ColumnCreatedAt || name == schema.ColumnUpdatedAt || name == schema.ColumnDeletedAt:
			v = decodeTime(v)
		}
		rec[name] = v
	}
	return rec
}

func decodeValue(f *schema.FieldConfig, v any) any {
	if v == nil {
		return nil
	}
	switch {
	case f.Type.IsJSON():
		s, ok := v.(string)
		if !ok {
			return v
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return s
		}
		return out
	case f.Type.IsBoolean():
		b, err := toBool(v)
		if err != nil {
			return v
		}
		return b
	case f.Type.IsNumeric():
		return normalizeNumber(v)
	case f.Type.IsTemporal():
		if t, ok := v.(time.Time); ok {
			return formatTemporal(f.Type, t)
		}
	}
	return v
}

func decodeTime(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return s
}

// plainRow converts driver values of a related table row without any schema knowledge.
// Password columns are dropped.
func plainRow(row map[string]any) schema.Record {
	rec := make(schema.Record, len(row))
	for k, v := range row {
		if strings.Contains(strings.ToLower(k), "password") {
			continue
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		rec[k] = v
	}
	return rec
}
