package crud

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/urbanisme-sn/portail/internal/audit"
	"github.com/urbanisme-sn/portail/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func projectsModel() *schema.ModelConfig {
	m := &schema.ModelConfig{
		Name:  "projects",
		Label: "Project",
		Fields: []schema.FieldConfig{
			{Name: "title", Type: schema.TypeText, Required: true},
			{Name: "slug", Type: schema.TypeSlug, Source: "title"},
			{Name: "description", Type: schema.TypeTextarea},
			{Name: "status", Type: schema.TypeSelect, Options: []schema.Option{
				{Value: "planned"}, {Value: "in_progress"}, {Value: "done"},
			}},
			{Name: "budget", Type: schema.TypeNumber},
			{Name: "progress", Type: schema.TypeNumber},
			{Name: "tags", Type: schema.TypeTags},
			{Name: "featured", Type: schema.TypeCheckbox},
			{Name: "start_date", Type: schema.TypeDate},
			{Name: "meta", Type: schema.TypeJSON},
		},
		SearchFields: []string{"title", "description"},
		FilterFields: []string{"status", "progress", "featured"},
		SortFields:   []string{"title", "budget", "created_at"},
		Features:     schema.Features{Search: true, Filters: true, Trash: true, Audit: true, Duplicate: true},
	}
	m.ApplyDefaults()
	return m
}

func newsModel() *schema.ModelConfig {
	m := &schema.ModelConfig{
		Name:  "news",
		Label: "News",
		Fields: []schema.FieldConfig{
			{Name: "title", Type: schema.TypeText, Required: true},
			{Name: "body", Type: schema.TypeRichText},
		},
		SearchFields: []string{"title"},
	}
	m.ApplyDefaults()
	return m
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

// testSetup migrates the given models into a fresh database and returns one service per model.
func testSetup(t *testing.T, models []*schema.ModelConfig, opts ...Option) (*gorm.DB, []*Service) {
	t.Helper()
	db := openTestDB(t)
	services := make([]*Service, len(models))
	for i, m := range models {
		if err := m.Validate(); err != nil {
			t.Fatalf("invalid model %s: %v", m.Name, err)
		}
		if err := EnsureTable(context.Background(), db, m); err != nil {
			t.Fatalf("ensure table %s: %v", m.Name, err)
		}
		services[i] = New(db, m, opts...)
	}
	return db, services
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *auditRecorder) Log(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *auditRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

func diamniadio() schema.Record {
	return schema.Record{
		"title":      "Pole urbain de Diamniadio",
		"slug":       "pole-urbain-de-diamniadio",
		"status":     "in_progress",
		"budget":     45000000000,
		"tags":       []any{"urbanisme", "habitat"},
		"featured":   true,
		"start_date": "2026-01-15",
		"meta":       map[string]any{"region": "Dakar", "lots": 3},
	}
}

func TestCreateRead_RoundTrip(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()})
	svc := svcs[0]
	ctx := context.Background()

	created, err := svc.Create(ctx, diamniadio())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id, _ := created["id"].(string)
	if len(id) != 36 {
		t.Fatalf("expected generated uuid, got %v", created["id"])
	}
	if _, ok := created["created_at"].(time.Time); !ok {
		t.Errorf("expected created_at timestamp, got %T", created["created_at"])
	}

	got, err := svc.Read(ctx, id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := map[string]any{
		"title":      "Pole urbain de Diamniadio",
		"slug":       "pole-urbain-de-diamniadio",
		"status":     "in_progress",
		"budget":     int64(45000000000),
		"tags":       []any{"urbanisme", "habitat"},
		"featured":   true,
		"start_date": "2026-01-15",
		"meta":       map[string]any{"region": "Dakar", "lots": float64(3)},
	}
	for k, v := range want {
		if !reflect.DeepEqual(got[k], v) {
			t.Errorf("%s: got %#v, want %#v", k, got[k], v)
		}
	}
	if got["deleted_at"] != nil {
		t.Errorf("expected nil deleted_at, got %v", got["deleted_at"])
	}
}

func TestRead_MissingReturnsNil(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()})
	rec, err := svcs[0].Read(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %v", rec)
	}
}

func TestUpdate_OnlySuppliedColumns(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()}, WithClock(func() time.Time { return now }))
	svc := svcs[0]
	ctx := context.Background()

	created, err := svc.Create(ctx, diamniadio())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created["id"].(string)

	now = now.Add(time.Hour)
	updated, err := svc.Update(ctx, id, schema.Record{"progress": 30})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["progress"] != int64(30) {
		t.Errorf("progress: got %#v", updated["progress"])
	}
	if updated["budget"] != int64(45000000000) || updated["status"] != "in_progress" {
		t.Errorf("untouched columns changed: budget=%v status=%v", updated["budget"], updated["status"])
	}
	ua, _ := updated["updated_at"].(time.Time)
	ca, _ := updated["created_at"].(time.Time)
	if !ua.Equal(now) {
		t.Errorf("updated_at: got %v, want %v", ua, now)
	}
	if !ca.Equal(now.Add(-time.Hour)) {
		t.Errorf("created_at changed: %v", ca)
	}
}

func TestUpdate_MissingReturnsNil(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()})
	rec, err := svcs[0].Update(context.Background(), "missing", schema.Record{"progress": 1})
	if err != nil || rec != nil {
		t.Fatalf("expected nil, nil; got %v, %v", rec, err)
	}
}

func TestDelete_SoftDelete(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()})
	svc := svcs[0]
	ctx := context.Background()

	created, _ := svc.Create(ctx, diamniadio())
	id := created["id"].(string)

	ok, err := svc.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("delete: %v, %v", ok, err)
	}

	res, err := svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 0 || len(res.Data) != 0 {
		t.Errorf("soft-deleted row listed: %+v", res)
	}

	rec, err := svc.Read(ctx, id)
	if err != nil || rec == nil {
		t.Fatalf("read after soft delete: %v, %v", rec, err)
	}
	if _, ok := rec["deleted_at"].(time.Time); !ok {
		t.Errorf("expected deleted_at to be set, got %#v", rec["deleted_at"])
	}

	trashed, err := svc.List(ctx, ListOptions{OnlyTrashed: true})
	if err != nil || trashed.Total != 1 {
		t.Fatalf("only trashed: %+v, %v", trashed, err)
	}

	if again, _ := svc.Delete(ctx, id); again {
		t.Error("second soft delete should affect no row")
	}

	restored, err := svc.Restore(ctx, id)
	if err != nil || !restored {
		t.Fatalf("restore: %v, %v", restored, err)
	}
	res, _ = svc.List(ctx, ListOptions{})
	if res.Total != 1 {
		t.Errorf("expected restored row to be listed, total=%d", res.Total)
	}

	gone, err := svc.ForceDelete(ctx, id)
	if err != nil || !gone {
		t.Fatalf("force delete: %v, %v", gone, err)
	}
	if rec, _ := svc.Read(ctx, id); rec != nil {
		t.Error("expected row to be removed by force delete")
	}
}

func TestDelete_HardDelete(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{newsModel()})
	svc := svcs[0]
	ctx := context.Background()

	created, _ := svc.Create(ctx, schema.Record{"title": "Communiqué"})
	id := created["id"].(string)

	ok, err := svc.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("delete: %v, %v", ok, err)
	}
	rec, err := svc.Read(ctx, id)
	if err != nil || rec != nil {
		t.Fatalf("expected nil, nil after hard delete; got %v, %v", rec, err)
	}
	if _, err := svc.Restore(ctx, id); !errors.Is(err, ErrFeatureDisabled) {
		t.Errorf("expected ErrFeatureDisabled, got %v", err)
	}
}

func TestDelete_HookVeto(t *testing.T) {
	m := projectsModel()
	var afterCalls int
	m.Hooks.BeforeDelete = func(ctx context.Context, id string) (bool, error) { return false, nil }
	m.Hooks.AfterDelete = func(ctx context.Context, id string) error { afterCalls++; return nil }
	_, svcs := testSetup(t, []*schema.ModelConfig{m})
	svc := svcs[0]
	ctx := context.Background()

	created, _ := svc.Create(ctx, diamniadio())
	id := created["id"].(string)

	ok, err := svc.Delete(ctx, id)
	if err != nil || ok {
		t.Fatalf("expected false, nil on veto; got %v, %v", ok, err)
	}
	if afterCalls != 0 {
		t.Error("after-delete hook must not run on veto")
	}
	if rec, _ := svc.Read(ctx, id); rec == nil || rec["deleted_at"] != nil {
		t.Error("vetoed row must be untouched")
	}
}

func TestHooks(t *testing.T) {
	m := newsModel()
	var created, updated schema.Record
	m.Hooks.BeforeCreate = func(ctx context.Context, data schema.Record) (schema.Record, error) {
		if data.String("title") == "" {
			return nil, Reject("title", "le titre est obligatoire")
		}
		data["title"] = strings.ToUpper(data.String("title"))
		return data, nil
	}
	m.Hooks.AfterCreate = func(ctx context.Context, rec schema.Record) error {
		created = rec
		return errors.New("notification service down")
	}
	m.Hooks.BeforeUpdate = func(ctx context.Context, id string, data schema.Record) (schema.Record, error) {
		data["body"] = "edited"
		return data, nil
	}
	m.Hooks.AfterUpdate = func(ctx context.Context, rec schema.Record) error {
		updated = rec
		return nil
	}
	_, svcs := testSetup(t, []*schema.ModelConfig{m})
	svc := svcs[0]
	ctx := context.Background()

	rec, err := svc.Create(ctx, schema.Record{"title": "ouverture"})
	if err != nil {
		t.Fatalf("after-create hook error must not fail create: %v", err)
	}
	if rec["title"] != "OUVERTURE" || created == nil || created["id"] != rec["id"] {
		t.Errorf("hooks not applied: rec=%v created=%v", rec, created)
	}

	_, err = svc.Create(ctx, schema.Record{})
	var rej *RejectionError
	if !errors.As(err, &rej) || rej.Field != "title" {
		t.Fatalf("expected rejection, got %v", err)
	}

	if _, err := svc.Update(ctx, rec["id"].(string), schema.Record{"title": "x"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated == nil || updated["body"] != "edited" {
		t.Errorf("before-update transform not applied: %v", updated)
	}
}

func TestCreate_BackendFailure(t *testing.T) {
	db, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()})
	if err := db.Migrator().DropTable("projects"); err != nil {
		t.Fatalf("drop: %v", err)
	}

	_, err := svcs[0].Create(context.Background(), diamniadio())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrOperationFailed) {
		t.Errorf("expected ErrOperationFailed, got %T", err)
	}
	if !strings.Contains(err.Error(), "Project") {
		t.Errorf("error should name the model label: %q", err.Error())
	}
	if strings.Contains(strings.ToLower(err.Error()), "no such table") {
		t.Errorf("error leaks backend details: %q", err.Error())
	}
	if errors.Unwrap(err) != nil {
		t.Error("operation error must not expose its cause")
	}
}

func TestBulkDelete_CountsExistingRows(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel(), newsModel()})
	for _, svc := range svcs {
		ctx := context.Background()
		a, _ := svc.Create(ctx, schema.Record{"title": "a"})
		b, _ := svc.Create(ctx, schema.Record{"title": "b"})
		keep, _ := svc.Create(ctx, schema.Record{"title": "keep"})

		n, err := svc.BulkDelete(ctx, []string{a["id"].(string), b["id"].(string), "does-not-exist"})
		if err != nil {
			t.Fatalf("%s: bulk delete: %v", svc.Model().Name, err)
		}
		if n != 2 {
			t.Errorf("%s: expected 2 affected rows, got %d", svc.Model().Name, n)
		}
		res, _ := svc.List(ctx, ListOptions{})
		if res.Total != 1 || res.Data[0]["id"] != keep["id"] {
			t.Errorf("%s: unexpected remaining rows %+v", svc.Model().Name, res.Data)
		}
	}
}

func TestBulkUpdate(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()})
	svc := svcs[0]
	ctx := context.Background()

	a, _ := svc.Create(ctx, schema.Record{"title": "a", "status": "planned"})
	b, _ := svc.Create(ctx, schema.Record{"title": "b", "status": "planned"})
	c, _ := svc.Create(ctx, schema.Record{"title": "c", "status": "planned"})

	n, err := svc.BulkUpdate(ctx, []string{a["id"].(string), b["id"].(string)}, schema.Record{"status": "done"})
	if err != nil || n != 2 {
		t.Fatalf("bulk update: %d, %v", n, err)
	}
	if rec, _ := svc.Read(ctx, c["id"].(string)); rec["status"] != "planned" {
		t.Errorf("unselected row changed: %v", rec["status"])
	}
	if rec, _ := svc.Read(ctx, a["id"].(string)); rec["status"] != "done" {
		t.Errorf("selected row not updated: %v", rec["status"])
	}
}

func TestBulkOps_AuditAffectedRows(t *testing.T) {
	rec := &auditRecorder{}
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()}, WithAuditLog(rec))
	svc := svcs[0]
	ctx := context.Background()

	a, _ := svc.Create(ctx, schema.Record{"title": "a"})
	b, _ := svc.Create(ctx, schema.Record{"title": "b"})
	aID, bID := a["id"].(string), b["id"].(string)
	audited := func(from int) []string {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		var ids []string
		for _, e := range rec.entries[from:] {
			ids = append(ids, e.Action+":"+e.EntityID)
		}
		return ids
	}

	n, err := svc.BulkUpdate(ctx, []string{aID, "does-not-exist"}, schema.Record{"status": "planned"})
	if err != nil || n != 1 {
		t.Fatalf("bulk update: %d, %v", n, err)
	}
	if got, want := audited(2), []string{"update:" + aID}; !reflect.DeepEqual(got, want) {
		t.Errorf("bulk update audit: got %v, want %v", got, want)
	}

	n, err = svc.BulkDelete(ctx, []string{aID, bID, "does-not-exist"})
	if err != nil || n != 2 {
		t.Fatalf("bulk delete: %d, %v", n, err)
	}
	if got := audited(3); len(got) != 2 {
		t.Errorf("bulk delete audit: got %v, want 2 entries", got)
	}

	n, err = svc.BulkDelete(ctx, []string{aID})
	if err != nil || n != 0 {
		t.Fatalf("bulk delete of trashed row: %d, %v", n, err)
	}
	if got := audited(5); len(got) != 0 {
		t.Errorf("trashed row audited again: %v", got)
	}
}

func TestAuditIntegration(t *testing.T) {
	rec := &auditRecorder{}
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel(), newsModel()}, WithAuditLog(rec))
	projects, news := svcs[0], svcs[1]
	ctx := context.Background()

	p, _ := projects.Create(ctx, diamniadio())
	id := p["id"].(string)
	projects.Update(ctx, id, schema.Record{"progress": 40})
	projects.Delete(ctx, id)
	news.Create(ctx, schema.Record{"title": "not audited"})

	got := rec.actions()
	want := []string{audit.ActionCreate, audit.ActionUpdate, audit.ActionDelete}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("audit actions: got %v, want %v", got, want)
	}
	first := rec.entries[0]
	if first.EntityType != "projects" || first.EntityID != id || first.EntityName != "Pole urbain de Diamniadio" {
		t.Errorf("unexpected entry %+v", first)
	}
	if rec.entries[1].Changes["progress"] != 40 {
		t.Errorf("update changes: %v", rec.entries[1].Changes)
	}
}

func TestPasswordFields(t *testing.T) {
	m := &schema.ModelConfig{
		Name: "accounts",
		Fields: []schema.FieldConfig{
			{Name: "email", Type: schema.TypeEmail},
			{Name: "password", Type: schema.TypePassword},
		},
	}
	m.ApplyDefaults()
	db, svcs := testSetup(t, []*schema.ModelConfig{m})
	ctx := context.Background()

	rec, err := svcs[0].Create(ctx, schema.Record{"email": "a@b.sn", "password": "s3cret!"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := rec["password"]; ok {
		t.Error("password must not be returned")
	}

	var stored []string
	if err := db.Table("accounts").Where("id = ?", rec["id"]).Pluck("password", &stored).Error; err != nil {
		t.Fatalf("pluck: %v", err)
	}
	if len(stored) != 1 || stored[0] == "s3cret!" || !isBcryptHash(stored[0]) {
		t.Errorf("password stored in clear or not hashed: %q", stored)
	}
}

func TestDuplicateAndActions(t *testing.T) {
	m := projectsModel()
	var ran []string
	m.Actions = []schema.Action{
		{Name: "archive", Bulk: true, Handler: func(ctx context.Context, ids []string) error {
			ran = append(ran, ids...)
			return nil
		}},
		{Name: "publish", Handler: func(ctx context.Context, ids []string) error {
			return Reject("", "project is not ready")
		}},
	}
	m.ApplyDefaults()
	_, svcs := testSetup(t, []*schema.ModelConfig{m})
	svc := svcs[0]
	ctx := context.Background()

	src, _ := svc.Create(ctx, diamniadio())
	dup, err := svc.Duplicate(ctx, src["id"].(string))
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup["id"] == src["id"] || dup["slug"] != "pole-urbain-de-diamniadio-copy" || dup["budget"] != src["budget"] {
		t.Errorf("unexpected duplicate %v", dup)
	}

	if err := svc.RunAction(ctx, "archive", []string{"a", "b"}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(ran) != 2 {
		t.Errorf("handler got %v", ran)
	}
	if err := svc.RunAction(ctx, "publish", []string{"a", "b"}); err == nil {
		t.Error("expected single-record action to refuse two ids")
	}
	err = svc.RunAction(ctx, "publish", []string{"a"})
	var rej *RejectionError
	if !errors.As(err, &rej) || rej.Message != "project is not ready" {
		t.Errorf("expected handler rejection, got %v", err)
	}
	if err := svc.RunAction(ctx, "explode", []string{"a"}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestStats(t *testing.T) {
	base := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	now := base.Add(-10 * 24 * time.Hour)
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()}, WithClock(func() time.Time { return now }))
	svc := svcs[0]
	ctx := context.Background()

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 0 || st.Growth != 0 {
		t.Errorf("empty stats: %+v", st)
	}

	svc.Create(ctx, schema.Record{"title": "old 1"})
	svc.Create(ctx, schema.Record{"title": "old 2"})
	now = base
	svc.Create(ctx, schema.Record{"title": "recent"})

	st, err = svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Recent != 1 || st.Growth != 33.3 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestGrowth(t *testing.T) {
	tests := []struct {
		recent, total int64
		want          float64
	}{
		{0, 0, 0},
		{0, 10, 0},
		{5, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{4, 4, 100},
	}
	for _, tt := range tests {
		if got := Growth(tt.recent, tt.total); got != tt.want {
			t.Errorf("Growth(%d, %d) = %v, want %v", tt.recent, tt.total, got, tt.want)
		}
	}
}

func TestEnsureTable_AddsMissingColumns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	m := newsModel()
	if err := EnsureTable(ctx, db, m); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	m2 := newsModel()
	m2.Fields = append(m2.Fields, schema.FieldConfig{Name: "views", Type: schema.TypeNumber})
	m2.Features.Trash = true
	if err := EnsureTable(ctx, db, m2); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	for _, c := range []string{"views", "deleted_at"} {
		if !db.Migrator().HasColumn("news", c) {
			t.Errorf("expected column %s", c)
		}
	}
}
