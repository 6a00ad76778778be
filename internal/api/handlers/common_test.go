package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/form"
	"github.com/urbanisme-sn/portail/internal/schema"
)

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HealthCheck(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("unexpected body %v", resp)
	}
}

func TestListOptions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet,
		"/records/projects?page=2&limit=20&sort=title&order=ASC&search=dakar&include=tenders,region"+
			"&filter[status]=planned&filter[status]=in_progress&filter[region]=thies"+
			"&min[budget]=1000&max[budget]=5000&trashed=only&unrelated=1", nil)

	opts := listOptions(c)

	if opts.Page != 2 || opts.Limit != 20 {
		t.Errorf("unexpected pagination %d/%d", opts.Page, opts.Limit)
	}
	if opts.SortBy != "title" || opts.SortOrder != schema.Asc {
		t.Errorf("unexpected sort %q %q", opts.SortBy, opts.SortOrder)
	}
	if opts.Search != "dakar" || !opts.OnlyTrashed {
		t.Errorf("unexpected search %q trashed %v", opts.Search, opts.OnlyTrashed)
	}
	if len(opts.Includes) != 2 || opts.Includes[0] != "tenders" {
		t.Errorf("unexpected includes %v", opts.Includes)
	}
	if got, ok := opts.Filters["status"].([]string); !ok || len(got) != 2 {
		t.Errorf("expected status IN filter, got %#v", opts.Filters["status"])
	}
	if opts.Filters["region"] != "thies" {
		t.Errorf("expected region equality, got %#v", opts.Filters["region"])
	}
	if r, ok := opts.Filters["budget"].(crud.Range); !ok || r.Min != "1000" || r.Max != "5000" {
		t.Errorf("expected budget range, got %#v", opts.Filters["budget"])
	}
	if len(opts.Filters) != 3 {
		t.Errorf("expected 3 filters, got %v", opts.Filters)
	}
}

func TestBracketKey(t *testing.T) {
	tests := []struct {
		key      string
		wantName string
		wantKind string
		wantOK   bool
	}{
		{"filter[status]", "status", "filter", true},
		{"min[budget]", "budget", "min", true},
		{"max[deadline]", "deadline", "max", true},
		{"filter[]", "", "", false},
		{"sort[title]", "", "", false},
		{"status", "", "", false},
		{"[status]", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			name, kind, ok := bracketKey(tt.key)
			if ok != tt.wantOK || (ok && (name != tt.wantName || kind != tt.wantKind)) {
				t.Errorf("bracketKey(%q) = %q, %q, %v", tt.key, name, kind, ok)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantField  string
	}{
		{"validation", form.ValidationErrors{"title": {"Titre is required"}}, http.StatusUnprocessableEntity, "title"},
		{"rejection", crud.Reject("deadline", "la date limite doit être future"), http.StatusUnprocessableEntity, "deadline"},
		{"feature disabled", fmt.Errorf("partners: duplicate: %w", crud.ErrFeatureDisabled), http.StatusForbidden, ""},
		{"unknown action", fmt.Errorf("news: %q: %w", "teleport", crud.ErrUnknownAction), http.StatusNotFound, ""},
		{"busy", form.ErrBusy, http.StatusConflict, ""},
		{"operation", &crud.OperationError{Op: "create", Model: "Actualité"}, http.StatusInternalServerError, ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if tt.wantField != "" && len(resp.Fields[tt.wantField]) == 0 {
				t.Errorf("expected message for %s, got %+v", tt.wantField, resp)
			}
			if tt.name == "other" && resp.Error != "internal server error" {
				t.Errorf("unexpected errors must not leak, got %q", resp.Error)
			}
		})
	}
}

func TestChangedFields(t *testing.T) {
	m := &schema.ModelConfig{
		Name: "users",
		Fields: []schema.FieldConfig{
			{Name: "email", Type: schema.TypeEmail},
			{Name: "full_name", Type: schema.TypeText},
			{Name: "note", Type: schema.TypeText},
			{Name: "password_hash", Type: schema.TypePassword},
		},
	}
	values := schema.Record{"email": "awa@urbanisme.gouv.sn", "password_hash": ""}
	current := schema.Record{"email": "old@urbanisme.gouv.sn", "full_name": "Awa Ndiaye", "note": "visible"}
	rec := schema.Record{"email": "awa@urbanisme.gouv.sn", "full_name": "Awa Ndiaye", "note": nil, "password_hash": ""}

	got := changedFields(m, form.ClearHidden, values, current, rec)
	if len(got) != 2 || got["email"] != "awa@urbanisme.gouv.sn" {
		t.Errorf("unexpected changes %v", got)
	}
	if v, ok := got["note"]; !ok || v != nil {
		t.Errorf("cleared hidden field should be sent as nil, got %v", got)
	}
	if _, ok := got["password_hash"]; ok {
		t.Error("blank password must not be sent")
	}

	got = changedFields(m, form.RetainHidden, values, current, rec)
	if _, ok := got["note"]; ok {
		t.Errorf("retained hidden field must not be sent, got %v", got)
	}
}
