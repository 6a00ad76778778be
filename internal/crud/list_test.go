package crud

import (
	"context"
	"fmt"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/urbanisme-sn/portail/internal/schema"
)

func titles(res *ListResult) []string {
	out := make([]string, len(res.Data))
	for i, rec := range res.Data {
		out[i] = rec.String("title")
	}
	return out
}

func TestList_PaginationInvariants(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{newsModel()})
	svc := svcs[0]
	ctx := context.Background()

	for i := 0; i < 23; i++ {
		if _, err := svc.Create(ctx, schema.Record{"title": fmt.Sprintf("item %02d", i)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	for _, limit := range []int{1, 5, 10, 23, 50} {
		totalPages := int(math.Ceil(23 / float64(limit)))
		for page := 1; page <= totalPages+1; page++ {
			res, err := svc.List(ctx, ListOptions{Page: page, Limit: limit})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if res.Total != 23 || res.TotalPages != totalPages {
				t.Errorf("limit %d page %d: total=%d totalPages=%d", limit, page, res.Total, res.TotalPages)
			}
			if res.HasNext != (page < res.TotalPages) || res.HasPrev != (page > 1) {
				t.Errorf("limit %d page %d: hasNext=%v hasPrev=%v", limit, page, res.HasNext, res.HasPrev)
			}
			wantLen := limit
			if rest := 23 - (page-1)*limit; rest < limit {
				wantLen = max(rest, 0)
			}
			if len(res.Data) != wantLen {
				t.Errorf("limit %d page %d: got %d rows, want %d", limit, page, len(res.Data), wantLen)
			}
		}
	}
}

func TestList_Defaults(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{newsModel()})
	res, err := svcs[0].List(context.Background(), ListOptions{Page: -3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Page != 1 || res.Limit != 10 || res.TotalPages != 0 || res.HasNext || res.HasPrev {
		t.Errorf("unexpected defaults %+v", res)
	}
	if res.Data == nil {
		t.Error("expected empty, non-nil data")
	}
}

func seedProjects(t *testing.T, svc *Service) {
	t.Helper()
	rows := []schema.Record{
		{"title": "ZAC de Mbao", "status": "planned", "progress": 0, "budget": 1200, "featured": false},
		{"title": "Cite Keur Gorgui", "status": "in_progress", "progress": 20, "budget": 800, "featured": true},
		{"title": "Programme 100% logements", "status": "in_progress", "progress": 45, "budget": 5000, "featured": true},
		{"title": "Programme 1000 logements", "status": "done", "progress": 100, "budget": 3000, "featured": false},
		{"title": "Restructuration de Pikine", "description": "Quartier irregulier", "status": "planned", "progress": 10, "budget": 400},
	}
	for _, r := range rows {
		if _, err := svc.Create(context.Background(), r); err != nil {
			t.Fatalf("create %s: %v", r["title"], err)
		}
	}
}

func TestList_Filters(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()})
	svc := svcs[0]
	seedProjects(t, svc)
	ctx := context.Background()

	tests := []struct {
		name    string
		filters map[string]any
		want    int64
	}{
		{"equality", map[string]any{"status": "planned"}, 2},
		{"in", map[string]any{"status": []any{"planned", "done"}}, 3},
		{"in strings", map[string]any{"status": []string{"done"}}, 1},
		{"range min only", map[string]any{"progress": Range{Min: 20}}, 3},
		{"range both", map[string]any{"progress": map[string]any{"min": 10, "max": 45}}, 3},
		{"range max only", map[string]any{"progress": &Range{Max: "10"}}, 2},
		{"boolean from string", map[string]any{"featured": "true"}, 2},
		{"numeric from string", map[string]any{"budget": "800"}, 1},
		{"combined", map[string]any{"status": "in_progress", "progress": Range{Min: 30}}, 1},
		{"unknown column ignored", map[string]any{"nope": "x"}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.List(ctx, ListOptions{Filters: tt.filters})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if res.Total != tt.want {
				t.Errorf("got %d rows %v, want %d", res.Total, titles(res), tt.want)
			}
		})
	}
}

func TestList_Search(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()})
	svc := svcs[0]
	seedProjects(t, svc)
	ctx := context.Background()

	tests := []struct {
		search string
		want   []string
	}{
		{"zac", []string{"ZAC de Mbao"}},
		{"PROGRAMME", []string{"Programme 100% logements", "Programme 1000 logements"}},
		{"100%", []string{"Programme 100% logements"}},
		{"irregulier", []string{"Restructuration de Pikine"}},
		{"c_t", nil},
		{"   ", []string{"Cite Keur Gorgui", "Programme 100% logements", "Programme 1000 logements", "Restructuration de Pikine", "ZAC de Mbao"}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			res, err := svc.List(ctx, ListOptions{Search: tt.search, Limit: 50})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			got := titles(res)
			sort.Strings(got)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestList_Sort(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()}, WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	svc := svcs[0]
	seedProjects(t, svc)
	ctx := context.Background()

	res, _ := svc.List(ctx, ListOptions{SortBy: "budget", SortOrder: "ASC", Limit: 2})
	if got := titles(res); got[0] != "Restructuration de Pikine" || got[1] != "Cite Keur Gorgui" {
		t.Errorf("budget asc: %v", got)
	}

	// Unknown and non-sortable columns fall back to created_at desc.
	for _, by := range []string{"nope", "status"} {
		res, _ = svc.List(ctx, ListOptions{SortBy: by, Limit: 1})
		if got := titles(res); got[0] != "Restructuration de Pikine" {
			t.Errorf("sort %q fallback: %v", by, got)
		}
	}

	res, _ = svc.List(ctx, ListOptions{SortOrder: schema.Asc, Limit: 1})
	if got := titles(res); got[0] != "ZAC de Mbao" {
		t.Errorf("created_at asc: %v", got)
	}
}

func TestList_OnlyTrashedNeedsTrash(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{newsModel()})
	if _, err := svcs[0].List(context.Background(), ListOptions{OnlyTrashed: true}); err == nil {
		t.Fatal("expected error")
	}
}

func TestList_Relations(t *testing.T) {
	projects := projectsModel()
	projects.Relations = []schema.Relation{
		{Name: "tenders", Type: schema.HasMany, Table: "tenders", ForeignKey: "project_id"},
		{Name: "partners", Type: schema.ManyToMany, Table: "partners", Through: "project_partners", ForeignKey: "project_id", OtherKey: "partner_id"},
	}
	tenders := &schema.ModelConfig{
		Name:  "tenders",
		Label: "Tender",
		Fields: []schema.FieldConfig{
			{Name: "reference", Type: schema.TypeText},
			{Name: "project_id", Type: schema.TypeRelation, Relation: "projects"},
		},
		Relations: []schema.Relation{
			{Name: "project", Type: schema.BelongsTo, Table: "projects", ForeignKey: "project_id", Eager: true},
		},
	}
	tenders.ApplyDefaults()
	partners := &schema.ModelConfig{Name: "partners", Fields: []schema.FieldConfig{{Name: "name", Type: schema.TypeText}}}
	partners.ApplyDefaults()

	db, svcs := testSetup(t, []*schema.ModelConfig{projects, tenders, partners})
	if err := db.Exec("CREATE TABLE project_partners (project_id text, partner_id text)").Error; err != nil {
		t.Fatalf("create join table: %v", err)
	}
	ctx := context.Background()
	projSvc, tenderSvc, partnerSvc := svcs[0], svcs[1], svcs[2]

	p, _ := projSvc.Create(ctx, schema.Record{"title": "Diamniadio"})
	lonely, _ := projSvc.Create(ctx, schema.Record{"title": "Lonely"})
	pid := p["id"].(string)
	t1, _ := tenderSvc.Create(ctx, schema.Record{"reference": "AO-001", "project_id": pid})
	tenderSvc.Create(ctx, schema.Record{"reference": "AO-002", "project_id": pid})
	bank, _ := partnerSvc.Create(ctx, schema.Record{"name": "BAD"})
	if err := db.Exec("INSERT INTO project_partners VALUES (?, ?)", pid, bank["id"]).Error; err != nil {
		t.Fatalf("link: %v", err)
	}

	tender, err := tenderSvc.Read(ctx, t1["id"].(string))
	if err != nil {
		t.Fatalf("read tender: %v", err)
	}
	related, ok := tender["project"].(schema.Record)
	if !ok || related["title"] != "Diamniadio" {
		t.Fatalf("eager belongs_to not loaded: %#v", tender["project"])
	}

	res, err := projSvc.List(ctx, ListOptions{Includes: []string{"tenders", "partners", "unknown"}, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	byID := map[any]schema.Record{}
	for _, rec := range res.Data {
		byID[rec["id"]] = rec
	}
	if got := byID[pid]["tenders"].([]schema.Record); len(got) != 2 {
		t.Errorf("expected 2 tenders, got %d", len(got))
	}
	if got := byID[pid]["partners"].([]schema.Record); len(got) != 1 || got[0]["name"] != "BAD" {
		t.Errorf("unexpected partners %v", got)
	}
	if got := byID[lonely["id"]]["tenders"].([]schema.Record); len(got) != 0 {
		t.Errorf("expected no tenders, got %v", got)
	}

	plain, _ := projSvc.Read(ctx, pid)
	if _, ok := plain["tenders"]; ok {
		t.Error("non-eager relation must not be loaded by Read")
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_a\b`); got != `50\%\_a\\b` {
		t.Errorf("escapeLike = %q", got)
	}
}
