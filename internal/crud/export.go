package crud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urbanisme-sn/portail/internal/audit"
	"github.com/urbanisme-sn/portail/internal/schema"
	"gorm.io/gorm"
)

const (
	// ExportLimit caps the rows returned by Export. WriteExport pages through every row instead.
	ExportLimit = 10000

	exportPageSize  = 500
	importBatchSize = 100
)

// exportColumns are the columns written by Export, password fields excluded.
func (s *Service) exportColumns() []string {
	cols := s.model.Columns()
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if f, ok := s.model.Field(c); ok && f.Type == schema.TypePassword {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Export renders at most the export limit of rows matching opts as comma separated text: a header
// line then one line per row. Strings, timestamps and the JSON text of JSON fields are
// double-quoted with inner quotes doubled; numbers and booleans are written bare and nulls as
// empty cells.
func (s *Service) Export(ctx context.Context, opts ListOptions) (out string, err error) {
	const op = "export"
	t := s.begin(op)
	defer t.done(&err)

	opts.Page, opts.Limit, opts.Includes = 1, s.exportLimit, nil
	res, err := s.list(ctx, opts)
	if err != nil {
		return "", s.fail(op, err)
	}
	if res.Total > int64(len(res.Data)) {
		s.logger.Warn("Export truncated", "model", s.model.Name, "total", res.Total, "exported", len(res.Data))
	}

	cols := s.exportColumns()
	lines := make([]string, 0, len(res.Data)+1)
	lines = append(lines, strings.Join(cols, ","))
	for _, rec := range res.Data {
		lines = append(lines, s.formatLine(cols, rec))
	}
	return strings.Join(lines, "\n"), nil
}

// WriteExport streams every row matching opts to w in the Export format and returns the number
// of rows written.
func (s *Service) WriteExport(ctx context.Context, w io.Writer, opts ListOptions) (n int, err error) {
	const op = "export"
	t := s.begin(op)
	defer t.done(&err)

	cols := s.exportColumns()
	if _, err := io.WriteString(w, strings.Join(cols, ",")); err != nil {
		return 0, err
	}
	opts.Limit, opts.Includes = exportPageSize, nil
	for page := 1; ; page++ {
		opts.Page = page
		res, err := s.list(ctx, opts)
		if err != nil {
			return n, s.fail(op, err, "page", page)
		}
		for _, rec := range res.Data {
			if _, err := io.WriteString(w, "\n"+s.formatLine(cols, rec)); err != nil {
				return n, err
			}
			n++
		}
		if !res.HasNext {
			return n, nil
		}
	}
}

func (s *Service) formatLine(cols []string, rec schema.Record) string {
	cells := make([]string, len(cols))
	for i, c := range cols {
		if f, ok := s.model.Field(c); ok && f.Type.IsJSON() {
			cells[i] = formatJSONCell(rec[c])
			continue
		}
		cells[i] = formatCell(rec[c])
	}
	return strings.Join(cells, ",")
}

// formatJSONCell writes the JSON text of v, so a JSON string stays distinct from a number.
func formatJSONCell(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return quote(fmt.Sprint(v))
	}
	return quote(string(b))
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return quote(x)
	case []byte:
		return quote(string(x))
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case time.Time:
		return quote(x.UTC().Format(time.RFC3339Nano))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return quote(fmt.Sprint(v))
	}
	return quote(string(b))
}

type cell struct {
	value  string
	quoted bool
}

// parseRecords splits text into rows of cells. Quoted cells may contain commas, newlines and
// doubled quotes.
func parseRecords(text string) ([][]cell, error) {
	var (
		rows     [][]cell
		row      []cell
		cur      strings.Builder
		quoted   bool
		inQuotes bool
		line     = 1
	)
	endCell := func() {
		row = append(row, cell{value: cur.String(), quoted: quoted})
		cur.Reset()
		quoted = false
	}
	endRow := func() {
		endCell()
		if !(len(row) == 1 && row[0].value == "" && !row[0].quoted) {
			rows = append(rows, row)
		}
		row = nil
	}

	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if inQuotes {
			switch {
			case r == '"' && i+1 < len(rs) && rs[i+1] == '"':
				cur.WriteRune('"')
				i++
			case r == '"':
				inQuotes = false
			default:
				if r == '\n' {
					line++
				}
				cur.WriteRune(r)
			}
			continue
		}
		switch {
		case r == '"' && cur.Len() == 0 && !quoted:
			inQuotes, quoted = true, true
		case r == ',':
			endCell()
		case r == '\r' && i+1 < len(rs) && rs[i+1] == '\n':
		case r == '\n':
			endRow()
			line++
		default:
			cur.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, &RejectionError{Message: fmt.Sprintf("line %d: unterminated quoted field", line)}
	}
	endRow()
	return rows, nil
}

// cellValue turns an import cell into a value. Bare cells are parsed as JSON when possible, and
// quoted cells only when they look like a JSON object or array; everything else stays text.
func cellValue(c cell) any {
	if c.quoted {
		trimmed := strings.TrimSpace(c.value)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var v any
			if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
				return v
			}
		}
		return c.value
	}
	trimmed := strings.TrimSpace(c.value)
	if trimmed == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
		return v
	}
	return c.value
}

// jsonCellValue reads the cell of a JSON field: valid JSON text is kept as encoded, anything else
// is read like any other cell.
func jsonCellValue(c cell) any {
	trimmed := strings.TrimSpace(c.value)
	if trimmed == "" && !c.quoted {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return cellValue(c)
}

// Import parses text in the Export format and inserts every row in one transaction, with fresh
// ids and timestamps. System and undeclared columns are ignored. Hooks are not run.
func (s *Service) Import(ctx context.Context, text string) (n int, err error) {
	const op = "import"
	t := s.begin(op)
	defer t.done(&err)

	rows, err := parseRecords(text)
	if err != nil {
		return 0, s.fail(op, err)
	}
	if len(rows) < 2 {
		return 0, nil
	}

	header := rows[0]
	fields := make([]*schema.FieldConfig, len(header))
	var columns []string
	for i, h := range header {
		name := strings.TrimSpace(h.value)
		if f, ok := s.model.Field(name); ok && name != s.model.PrimaryKey {
			fields[i] = f
			columns = append(columns, name)
		} else if !isSystemColumn(name) {
			s.logger.Warn("Ignoring undeclared import column", "model", s.model.Name, "column", name)
		}
	}

	now := s.now().UTC()
	records := make([]map[string]any, 0, len(rows)-1)
	for lineNo, row := range rows[1:] {
		rec := make(map[string]any, len(columns)+3)
		for _, c := range columns {
			rec[c] = nil
		}
		for i, c := range row {
			if i >= len(fields) || fields[i] == nil {
				continue
			}
			value := cellValue(c)
			if fields[i].Type.IsJSON() {
				value = jsonCellValue(c)
			}
			v, err := encodeValue(fields[i], value)
			if err != nil {
				return 0, s.fail(op, &RejectionError{
					Field:   fields[i].Name,
					Message: fmt.Sprintf("row %d: %v", lineNo+1, err),
				})
			}
			rec[fields[i].Name] = v
		}
		rec[s.model.PrimaryKey] = uuid.NewString()
		rec[schema.ColumnCreatedAt] = now
		rec[schema.ColumnUpdatedAt] = now
		records = append(records, rec)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(s.model.TableName).CreateInBatches(records, importBatchSize).Error
	})
	if err != nil {
		return 0, s.fail(op, err, "rows", len(records))
	}

	s.record(ctx, audit.ActionCreate, "", nil, map[string]any{"imported": len(records)})
	return len(records), nil
}
