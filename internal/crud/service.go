// Package crud implements the generic data access service driven by a schema.ModelConfig.
package crud

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urbanisme-sn/portail/internal/audit"
	"github.com/urbanisme-sn/portail/internal/metrics"
	"github.com/urbanisme-sn/portail/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditLogger receives the audit entries of mutating operations.
type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry)
}

// Service reads and writes the table of one model. It holds no record state; the table is the
// only source of truth.
type Service struct {
	db          *gorm.DB
	model       *schema.ModelConfig
	logger      *slog.Logger
	audit       AuditLogger
	now         func() time.Time
	exportLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for operation failures.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithAuditLog records create, update and delete operations when the model enables the audit feature.
func WithAuditLog(a AuditLogger) Option { return func(s *Service) { s.audit = a } }

// WithClock replaces time.Now for generated timestamps.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithExportLimit changes the row cap of Export.
func WithExportLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.exportLimit = n
		}
	}
}

// New creates the service of model on db.
func New(db *gorm.DB, model *schema.ModelConfig, opts ...Option) *Service {
	s := &Service{
		db:          db,
		model:       model,
		logger:      slog.Default(),
		now:         time.Now,
		exportLimit: ExportLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the configuration the service was built with.
func (s *Service) Model() *schema.ModelConfig { return s.model }

func (s *Service) table(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.model.TableName)
}

func col(name string) clause.Column { return clause.Column{Name: name} }

func (s *Service) pkEq(id string) clause.Expression {
	return clause.Eq{Column: col(s.model.PrimaryKey), Value: id}
}

func (s *Service) pkIn(ids []string) clause.Expression {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return clause.IN{Column: col(s.model.PrimaryKey), Values: values}
}

// existing narrows ids to the rows present in the table, skipping trashed rows when live is set.
func (s *Service) existing(ctx context.Context, ids []string, live bool) ([]string, error) {
	q := s.table(ctx).Where(s.pkIn(ids))
	if live {
		q = q.Where(notDeleted())
	}
	var found []string
	if err := q.Pluck(s.model.PrimaryKey, &found).Error; err != nil {
		return nil, err
	}
	return found, nil
}

func notDeleted() clause.Expression {
	return clause.Eq{Column: col(schema.ColumnDeletedAt), Value: nil}
}

// fail logs the cause of a failed operation and returns the error shown to callers.
// Rejections pass through unchanged.
func (s *Service) fail(op string, err error, attrs ...any) error {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej
	}
	if errors.Is(err, ErrFeatureDisabled) || errors.Is(err, ErrUnknownAction) {
		return err
	}
	args := append([]any{"model", s.model.Name, "operation", op, "error", err}, attrs...)
	s.logger.Error("CRUD operation failed", args...)
	return &OperationError{Op: op, Model: s.model.Label}
}

type tracker struct {
	model   string
	op      string
	start   time.Time
	outcome string
}

func (s *Service) begin(op string) *tracker {
	return &tracker{model: s.model.Name, op: op, start: time.Now()}
}

func (t *tracker) veto() { t.outcome = metrics.OutcomeVetoed }

func (t *tracker) done(err *error) {
	outcome := t.outcome
	switch {
	case *err != nil:
		outcome = metrics.OutcomeError
	case outcome == "":
		outcome = metrics.OutcomeOK
	}
	metrics.OperationsTotal.WithLabelValues(t.model, t.op, outcome).Inc()
	metrics.OperationDuration.WithLabelValues(t.model, t.op).Observe(time.Since(t.start).Seconds())
}

// fetch reads one row by primary key, deleted or not.
func (s *Service) fetch(ctx context.Context, id string) (schema.Record, error) {
	var rows []map[string]any
	err := s.table(ctx).
		Select(s.model.Columns()).
		Where(s.pkEq(id)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return s.decode(rows[0]), nil
}

// Create runs the before-create hook, inserts the row with a generated id and timestamps and
// returns the stored row.
func (s *Service) Create(ctx context.Context, data schema.Record) (rec schema.Record, err error) {
	const op = "create"
	t := s.begin(op)
	defer t.done(&err)

	data = data.Clone()
	if h := s.model.Hooks.BeforeCreate; h != nil {
		if data, err = h(ctx, data); err != nil {
			return nil, s.fail(op, err, "stage", "before_create")
		}
	}
	row, err := s.encode(data)
	if err != nil {
		return nil, s.fail(op, err)
	}

	id := uuid.NewString()
	now := s.now().UTC()
	row[s.model.PrimaryKey] = id
	row[schema.ColumnCreatedAt] = now
	row[schema.ColumnUpdatedAt] = now

	if err := s.table(ctx).Create(row).Error; err != nil {
		return nil, s.fail(op, err, "id", id)
	}
	rec, err = s.fetch(ctx, id)
	if err == nil && rec == nil {
		err = errors.New("row missing after insert")
	}
	if err != nil {
		return nil, s.fail(op, err, "id", id)
	}

	if h := s.model.Hooks.AfterCreate; h != nil {
		if herr := h(ctx, rec); herr != nil {
			s.logger.Warn("After-create hook failed", "model", s.model.Name, "id", id, "error", herr)
		}
	}
	s.record(ctx, audit.ActionCreate, id, rec, s.changes(data))
	return rec, nil
}

// Read returns the row with the given id and its eager relations, or nil when no row matches.
func (s *Service) Read(ctx context.Context, id string) (rec schema.Record, err error) {
	const op = "read"
	t := s.begin(op)
	defer t.done(&err)

	rec, err = s.fetch(ctx, id)
	if err != nil {
		return nil, s.fail(op, err, "id", id)
	}
	if rec == nil {
		return nil, nil
	}
	if err := s.expand(ctx, []schema.Record{rec}, nil); err != nil {
		return nil, s.fail(op, err, "id", id)
	}
	return rec, nil
}

// Update changes the supplied columns of one row and stamps updated_at. It returns nil when no
// row matches.
func (s *Service) Update(ctx context.Context, id string, data schema.Record) (rec schema.Record, err error) {
	const op = "update"
	t := s.begin(op)
	defer t.done(&err)

	data = data.Clone()
	if h := s.model.Hooks.BeforeUpdate; h != nil {
		if data, err = h(ctx, id, data); err != nil {
			return nil, s.fail(op, err, "id", id, "stage", "before_update")
		}
	}
	row, err := s.encode(data)
	if err != nil {
		return nil, s.fail(op, err, "id", id)
	}
	row[schema.ColumnUpdatedAt] = s.now().UTC()

	res := s.table(ctx).Where(s.pkEq(id)).Updates(row)
	if res.Error != nil {
		return nil, s.fail(op, res.Error, "id", id)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	rec, err = s.fetch(ctx, id)
	if err != nil {
		return nil, s.fail(op, err, "id", id)
	}
	if rec == nil {
		return nil, nil
	}

	if h := s.model.Hooks.AfterUpdate; h != nil {
		if herr := h(ctx, rec); herr != nil {
			s.logger.Warn("After-update hook failed", "model", s.model.Name, "id", id, "error", herr)
		}
	}
	s.record(ctx, audit.ActionUpdate, id, rec, s.changes(data))
	return rec, nil
}

// Delete removes one row, or sets its deleted_at when the model has the trash feature. It returns
// false without error when the before-delete hook vetoes the delete or no row matches.
func (s *Service) Delete(ctx context.Context, id string) (deleted bool, err error) {
	const op = "delete"
	t := s.begin(op)
	defer t.done(&err)

	if h := s.model.Hooks.BeforeDelete; h != nil {
		allowed, herr := h(ctx, id)
		if herr != nil {
			return false, s.fail(op, herr, "id", id, "stage", "before_delete")
		}
		if !allowed {
			t.veto()
			s.logger.Info("Delete vetoed by hook", "model", s.model.Name, "id", id)
			return false, nil
		}
	}

	var existing schema.Record
	if s.audit != nil && s.model.Features.Audit {
		existing, _ = s.fetch(ctx, id)
	}

	res := s.removeQuery(ctx, s.pkEq(id), s.model.Features.Trash)
	if res.Error != nil {
		return false, s.fail(op, res.Error, "id", id)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if h := s.model.Hooks.AfterDelete; h != nil {
		if herr := h(ctx, id); herr != nil {
			s.logger.Warn("After-delete hook failed", "model", s.model.Name, "id", id, "error", herr)
		}
	}
	s.record(ctx, audit.ActionDelete, id, existing, nil)
	return true, nil
}

// removeQuery soft-deletes (soft) or deletes the rows matching where.
func (s *Service) removeQuery(ctx context.Context, where clause.Expression, soft bool) *gorm.DB {
	if soft {
		return s.table(ctx).
			Where(where).
			Where(notDeleted()).
			Update(schema.ColumnDeletedAt, s.now().UTC())
	}
	return s.table(ctx).Where(where).Delete(map[string]any{})
}

// BulkUpdate applies data to every listed row in one statement and returns the affected count.
// Hooks are not run. Unknown ids are skipped and only updated rows are audited.
func (s *Service) BulkUpdate(ctx context.Context, ids []string, data schema.Record) (n int64, err error) {
	const op = "bulk update"
	t := s.begin(op)
	defer t.done(&err)

	if len(ids) == 0 {
		return 0, nil
	}
	row, err := s.encode(data)
	if err != nil {
		return 0, s.fail(op, err)
	}
	if len(row) == 0 {
		return 0, nil
	}
	row[schema.ColumnUpdatedAt] = s.now().UTC()

	ids, err = s.existing(ctx, ids, false)
	if err != nil {
		return 0, s.fail(op, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.table(ctx).Where(s.pkIn(ids)).Updates(row)
	if res.Error != nil {
		return 0, s.fail(op, res.Error, "count", len(ids))
	}
	changes := s.changes(data)
	for _, id := range ids {
		s.record(ctx, audit.ActionUpdate, id, nil, changes)
	}
	return res.RowsAffected, nil
}

// BulkDelete deletes every listed row in one statement, following the same soft or hard policy
// as Delete, and returns the affected count. Ids vetoed by the before-delete hook, unknown ids and
// rows already in the trash are skipped and not audited.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (n int64, err error) {
	const op = "bulk delete"
	t := s.begin(op)
	defer t.done(&err)

	if h := s.model.Hooks.BeforeDelete; h != nil {
		allowed := make([]string, 0, len(ids))
		for _, id := range ids {
			ok, herr := h(ctx, id)
			if herr != nil {
				return 0, s.fail(op, herr, "id", id, "stage", "before_delete")
			}
			if ok {
				allowed = append(allowed, id)
			}
		}
		ids = allowed
	}
	if len(ids) == 0 {
		return 0, nil
	}
	ids, err = s.existing(ctx, ids, s.model.Features.Trash)
	if err != nil {
		return 0, s.fail(op, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.removeQuery(ctx, s.pkIn(ids), s.model.Features.Trash)
	if res.Error != nil {
		return 0, s.fail(op, res.Error, "count", len(ids))
	}
	for _, id := range ids {
		s.record(ctx, audit.ActionDelete, id, nil, nil)
	}
	return res.RowsAffected, nil
}

// changes returns the declared, non-secret part of data for the audit log.
func (s *Service) changes(data schema.Record) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		f, ok := s.model.Field(k)
		if !ok || f.Type == schema.TypePassword {
			continue
		}
		out[k] = v
	}
	return out
}

func (s *Service) record(ctx context.Context, action, id string, rec schema.Record, changes map[string]any) {
	if s.audit == nil || !s.model.Features.Audit {
		return
	}
	s.audit.Log(ctx, audit.Entry{
		Action:     action,
		EntityType: s.model.Name,
		EntityID:   id,
		EntityName: DisplayName(s.model, rec),
		Changes:    changes,
	})
}

// DisplayName returns a human readable name for rec: its title, name or label, or else the first
// non-empty text field.
func DisplayName(m *schema.ModelConfig, rec schema.Record) string {
	if rec == nil {
		return ""
	}
	for _, k := range []string{"title", "name", "label"} {
		if v := rec.String(k); v != "" {
			return v
		}
	}
	for _, f := range m.Fields {
		if f.Type == schema.TypeText {
			if v := rec.String(f.Name); v != "" {
				return v
			}
		}
	}
	return ""
}
