package seed

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/urbanisme-sn/portail/internal/catalog"
	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testSetup(t *testing.T) map[string]*crud.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "seed.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	reg := schema.NewRegistry()
	if err := catalog.New(db).Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	services := make(map[string]*crud.Service)
	for _, m := range reg.All() {
		if err := crud.EnsureTable(context.Background(), db, m); err != nil {
			t.Fatalf("EnsureTable: %v", err)
		}
		services[m.Name] = crud.New(db, m)
	}
	return services
}

func TestRun_Default(t *testing.T) {
	services := testSetup(t)
	ctx := context.Background()

	result, err := Run(ctx, services, Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result[catalog.Projects] != 3 || result[catalog.Tenders] != 2 || result[catalog.Partners] != 3 {
		t.Errorf("unexpected counts %v", result)
	}

	res, err := services[catalog.Projects].List(ctx, crud.ListOptions{Filters: map[string]any{"slug": "pole-urbain-de-diamniadio"}})
	if err != nil || res.Total != 1 {
		t.Fatalf("expected the Diamniadio project, got %v, %v", res, err)
	}
	project := res.Data[0]
	if project["budget"] != int64(45000000000) || project["status"] != "in_progress" {
		t.Errorf("unexpected project %v", project)
	}

	tenders, err := services[catalog.Tenders].List(ctx, crud.ListOptions{Filters: map[string]any{"reference": "AO-2026-001"}})
	if err != nil || tenders.Total != 1 {
		t.Fatalf("expected the seeded tender, got %v, %v", tenders, err)
	}
	if tenders.Data[0]["project_id"] != project["id"] {
		t.Errorf("tender should reference the project, got %v", tenders.Data[0]["project_id"])
	}

	again, err := Run(ctx, services, Default())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("seeding twice must not duplicate rows, got %v", again)
	}
}

func TestRun_Errors(t *testing.T) {
	services := testSetup(t)
	ctx := context.Background()

	if _, err := Run(ctx, services, []Section{{Model: "monuments"}}); err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Errorf("expected unknown model error, got %v", err)
	}

	sections, err := Parse([]byte(`
- model: tenders
  records:
    - reference: AO-2027-001
      title: Orphan
      kind: travaux
      project_id: "@projects:nowhere"
      deadline: "2099-01-01T00:00:00Z"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Run(ctx, services, sections); err == nil || !strings.Contains(err.Error(), "unresolved reference") {
		t.Errorf("expected unresolved reference error, got %v", err)
	}

	if _, err := Parse([]byte("model: [")); err == nil {
		t.Error("expected parse error")
	}
}
