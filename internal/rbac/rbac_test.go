package rbac

import (
	"log/slog"
	"path/filepath"
	"slices"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "rbac.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	e, err := NewEnforcer(db, slog.Default())
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	if err := e.SyncRoles(DefaultRoles([]string{"news", "projects"})); err != nil {
		t.Fatalf("SyncRoles: %v", err)
	}
	return e
}

func TestEnforcer_DefaultRoles(t *testing.T) {
	e := testEnforcer(t)

	tests := []struct {
		subject string
		model   string
		action  string
		want    bool
	}{
		{RoleAdmin, "users", ActionDelete, true},
		{RoleAdmin, "audit_logs", ActionAudit, true},
		{RoleEditor, "news", ActionCreate, true},
		{RoleEditor, "projects", ActionRun, true},
		{RoleEditor, "users", ActionRead, false},
		{RoleEditor, "news", ActionAudit, false},
		{RoleViewer, "news", ActionRead, true},
		{RoleViewer, "news", ActionUpdate, false},
		{"nobody", "news", ActionRead, false},
	}
	for _, tt := range tests {
		got, err := e.Can(tt.subject, tt.model, tt.action)
		if err != nil {
			t.Fatalf("Can: %v", err)
		}
		if got != tt.want {
			t.Errorf("Can(%s, %s, %s) = %v, want %v", tt.subject, tt.model, tt.action, got, tt.want)
		}
	}
}

func TestEnforcer_AssignRole(t *testing.T) {
	e := testEnforcer(t)
	const user = "6f1c2d0e-1111-4c3b-9a55-3d2f6b8e0a01"

	if err := e.AssignRole(user, RoleViewer); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if ok, _ := e.Can(user, "news", ActionUpdate); ok {
		t.Error("viewer must not update")
	}

	if err := e.AssignRole(user, RoleEditor); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	roles, err := e.RolesFor(user)
	if err != nil {
		t.Fatalf("RolesFor: %v", err)
	}
	if len(roles) != 1 || roles[0] != RoleEditor {
		t.Errorf("expected the editor role to replace viewer, got %v", roles)
	}
	if ok, _ := e.Can(user, "news", ActionUpdate); !ok {
		t.Error("editor should update news")
	}
	if ok, _ := e.IsAdmin(user); ok {
		t.Error("editor is not admin")
	}

	perms, err := e.Permissions(user)
	if err != nil {
		t.Fatalf("Permissions: %v", err)
	}
	if !slices.Contains(perms, "projects:export") {
		t.Errorf("expected projects:export among %v", perms)
	}
}

func TestEnforcer_SyncRoleReplaces(t *testing.T) {
	e := testEnforcer(t)
	roles := DefaultRoles([]string{"news", "projects"})
	viewer := roles[2]
	viewer.Permissions = QuickAssign(viewer.Permissions, "news", []string{ActionRead}, false)

	if err := e.SyncRole(viewer); err != nil {
		t.Fatalf("SyncRole: %v", err)
	}
	if ok, _ := e.Can(RoleViewer, "news", ActionRead); ok {
		t.Error("revoked permission still granted")
	}
	if ok, _ := e.Can(RoleViewer, "projects", ActionRead); !ok {
		t.Error("untouched permission lost")
	}
}

func TestQuickAssign_Copy(t *testing.T) {
	perms := []string{"news:read", "projects:read"}

	granted := QuickAssign(perms, "news", []string{ActionUpdate, ActionRead}, true)
	if len(perms) != 2 || perms[0] != "news:read" {
		t.Fatalf("QuickAssign mutated its input: %v", perms)
	}
	want := []string{"projects:read", "news:update", "news:read"}
	if !slices.Equal(granted, want) {
		t.Errorf("expected %v, got %v", want, granted)
	}

	revoked := QuickAssign(granted, "news", EditorActions, false)
	if !slices.Equal(revoked, []string{"projects:read"}) {
		t.Errorf("expected only projects:read, got %v", revoked)
	}
}

func TestParsePermission(t *testing.T) {
	if m, a, err := ParsePermission("news:publish"); err != nil || m != "news" || a != "publish" {
		t.Errorf("unexpected parse %q %q %v", m, a, err)
	}
	for _, bad := range []string{"news", ":read", "news:"} {
		if _, _, err := ParsePermission(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
