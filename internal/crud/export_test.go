package crud

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/urbanisme-sn/portail/internal/schema"
)

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"plain", `"plain"`},
		{`say "hi"`, `"say ""hi"""`},
		{int64(45000000000), "45000000000"},
		{12.5, "12.5"},
		{true, "true"},
		{[]any{"a", "b"}, `"[""a"",""b""]"`},
		{map[string]any{"k": 1}, `"{""k"":1}"`},
	}
	for _, tt := range tests {
		if got := formatCell(tt.in); got != tt.want {
			t.Errorf("formatCell(%#v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseRecords(t *testing.T) {
	text := "title,budget,tags\r\n" +
		`"Cité ""Les Palmiers"", phase 2",1200,"[""a""]"` + "\n" +
		`"multi` + "\n" + `line",,` + "\n\n"

	rows, err := parseRecords(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %#v", len(rows), rows)
	}
	if got := rows[1][0]; got.value != `Cité "Les Palmiers", phase 2` || !got.quoted {
		t.Errorf("quoted cell: %#v", got)
	}
	if got := rows[1][1]; got.value != "1200" || got.quoted {
		t.Errorf("bare cell: %#v", got)
	}
	if got := rows[2][0].value; got != "multi\nline" {
		t.Errorf("multi-line cell: %q", got)
	}
	if len(rows[2]) != 3 || rows[2][1].value != "" {
		t.Errorf("empty cells: %#v", rows[2])
	}

	if _, err := parseRecords(`a,"unterminated`); err == nil {
		t.Error("expected error for unterminated quote")
	}
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		in   cell
		want any
	}{
		{cell{value: "42"}, float64(42)},
		{cell{value: "true"}, true},
		{cell{value: ""}, nil},
		{cell{value: "null"}, nil},
		{cell{value: "hello"}, "hello"},
		{cell{value: "42", quoted: true}, "42"},
		{cell{value: "", quoted: true}, ""},
		{cell{value: `["a",1]`, quoted: true}, []any{"a", float64(1)}},
		{cell{value: `{"k":"v"}`, quoted: true}, map[string]any{"k": "v"}},
		{cell{value: "[draft]", quoted: true}, "[draft]"},
	}
	for _, tt := range tests {
		if got := cellValue(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("cellValue(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	copyModel := projectsModel()
	copyModel.Name = "projects_copy"
	copyModel.TableName = "projects_copy"
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel(), copyModel})
	src, dst := svcs[0], svcs[1]
	ctx := context.Background()

	inputs := []schema.Record{
		diamniadio(),
		{
			"title":       `Cité "Les Palmiers", phase 2`,
			"description": "Ligne 1\nLigne 2, avec virgule",
			"status":      "planned",
			"budget":      12.5,
			"tags":        []any{},
			"featured":    false,
		},
		{"title": "Sans budget"},
		{"title": "Méta texte", "meta": "123"},
		{"title": "Méta nombre", "meta": 123, "tags": []any{"1", "true"}},
	}
	for _, in := range inputs {
		if _, err := src.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	text, err := src.Export(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	header := strings.SplitN(text, "\n", 2)[0]
	if !strings.HasPrefix(header, "id,title,slug,") || !strings.HasSuffix(header, "created_at,updated_at,deleted_at") {
		t.Errorf("unexpected header %q", header)
	}

	n, err := dst.Import(ctx, text)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != len(inputs) {
		t.Fatalf("imported %d rows, want %d", n, len(inputs))
	}

	before, _ := src.List(ctx, ListOptions{Limit: 10})
	after, _ := dst.List(ctx, ListOptions{Limit: 10})
	index := func(res *ListResult) map[string]schema.Record {
		out := map[string]schema.Record{}
		for _, rec := range res.Data {
			out[rec.String("title")] = rec
		}
		return out
	}
	want, got := index(before), index(after)
	if m := want["Méta texte"]["meta"]; m != "123" {
		t.Fatalf("JSON string stored as %#v", m)
	}
	if m := want["Méta nombre"]["meta"]; m != float64(123) {
		t.Fatalf("JSON number stored as %#v", m)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for title, w := range want {
		g, ok := got[title]
		if !ok {
			t.Errorf("missing record %q", title)
			continue
		}
		if g["id"] == w["id"] {
			t.Errorf("%q: id must be regenerated", title)
		}
		for _, f := range projectsModel().Fields {
			if !reflect.DeepEqual(g[f.Name], w[f.Name]) {
				t.Errorf("%q.%s: got %#v, want %#v", title, f.Name, g[f.Name], w[f.Name])
			}
		}
	}
}

func TestExport_LimitAndStream(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{newsModel()}, WithExportLimit(2))
	svc := svcs[0]
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		svc.Create(ctx, schema.Record{"title": title})
	}

	text, err := svc.Export(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if lines := strings.Split(text, "\n"); len(lines) != 3 {
		t.Errorf("expected header and 2 rows, got %d lines", len(lines))
	}

	var b strings.Builder
	n, err := svc.WriteExport(ctx, &b, ListOptions{})
	if err != nil {
		t.Fatalf("write export: %v", err)
	}
	if n != 3 || len(strings.Split(b.String(), "\n")) != 4 {
		t.Errorf("streamed %d rows:\n%s", n, b.String())
	}
}

func TestImport_Rejections(t *testing.T) {
	_, svcs := testSetup(t, []*schema.ModelConfig{projectsModel()})
	svc := svcs[0]
	ctx := context.Background()

	if n, err := svc.Import(ctx, "title,budget\n\"x\",\"lots\""); err == nil {
		t.Errorf("expected rejection for a non-numeric budget, imported %d", n)
	}
	if n, err := svc.Import(ctx, ""); err != nil || n != 0 {
		t.Errorf("empty import: %d, %v", n, err)
	}
	n, err := svc.Import(ctx, "title,unknown,id\n\"kept\",\"dropped\",\"fixed-id\"\n")
	if err != nil || n != 1 {
		t.Fatalf("import: %d, %v", n, err)
	}
	res, _ := svc.List(ctx, ListOptions{})
	if res.Data[0]["id"] == "fixed-id" {
		t.Error("imported id must be regenerated")
	}
	if _, ok := res.Data[0]["unknown"]; ok {
		t.Error("undeclared column must be dropped")
	}
}
