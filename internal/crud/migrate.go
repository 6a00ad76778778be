package crud

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urbanisme-sn/portail/internal/schema"
	"gorm.io/gorm"
)

// columnType maps a field type to the column type of a dialect. Lists and documents are stored
// as JSON text; dates and times keep their display format.
func columnType(dialect string, t schema.FieldType) string {
	switch {
	case t.IsNumeric():
		if dialect == "sqlite" {
			return "real"
		}
		return "double precision"
	case t.IsBoolean():
		return "boolean"
	default:
		return "text"
	}
}

func timestampType(dialect string) string {
	if dialect == "sqlite" {
		return "datetime"
	}
	return "timestamptz"
}

func quoteIdent(db *gorm.DB, name string) string {
	var b strings.Builder
	db.Dialector.QuoteTo(&b, name)
	return b.String()
}

// EnsureTable creates the table of m when it does not exist and adds any missing column.
// Existing columns are never altered or dropped.
func EnsureTable(ctx context.Context, db *gorm.DB, m *schema.ModelConfig) error {
	db = db.WithContext(ctx)
	dialect := db.Dialector.Name()
	migrator := db.Migrator()

	definitions := make(map[string]string, len(m.Fields)+4)
	definitions[m.PrimaryKey] = "varchar(36) PRIMARY KEY"
	for _, f := range m.Fields {
		if f.Name != m.PrimaryKey {
			definitions[f.Name] = columnType(dialect, f.Type)
		}
	}
	ts := timestampType(dialect)
	definitions[schema.ColumnCreatedAt] = ts + " NOT NULL"
	definitions[schema.ColumnUpdatedAt] = ts + " NOT NULL"
	if m.Features.Trash {
		definitions[schema.ColumnDeletedAt] = ts
	}

	table := quoteIdent(db, m.TableName)
	if !migrator.HasTable(m.TableName) {
		cols := m.Columns()
		defs := make([]string, len(cols))
		for i, c := range cols {
			defs[i] = quoteIdent(db, c) + " " + definitions[c]
		}
		if err := db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))).Error; err != nil {
			return fmt.Errorf("failed to create table %s: %w", m.TableName, err)
		}
		slog.Info("Created table", "model", m.Name, "table", m.TableName)
	} else {
		for _, c := range m.Columns() {
			if migrator.HasColumn(m.TableName, c) {
				continue
			}
			def := definitions[c]
			if c == m.PrimaryKey {
				return fmt.Errorf("table %s has no primary key column %s", m.TableName, c)
			}
			// Added columns are nullable.
			def = strings.TrimSuffix(def, " NOT NULL")
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, quoteIdent(db, c), def)
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", m.TableName, c, err)
			}
			slog.Info("Added column", "model", m.Name, "table", m.TableName, "column", c)
		}
	}

	if m.Features.Trash {
		index := "idx_" + m.TableName + "_deleted_at"
		if !migrator.HasIndex(m.TableName, index) {
			stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", quoteIdent(db, index), table, quoteIdent(db, schema.ColumnDeletedAt))
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to create index %s: %w", index, err)
			}
		}
	}
	return nil
}
