package db

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/urbanisme-sn/portail/internal/config"
	"github.com/urbanisme-sn/portail/internal/models"
	"github.com/urbanisme-sn/portail/internal/rbac"
	"github.com/urbanisme-sn/portail/internal/schema"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := New(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "portail.db"),
		LogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return db
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestMigrate_SeedsRolesOnce(t *testing.T) {
	db := setupTestDB(t)
	content := []string{"news", "projects"}

	for i := 0; i < 2; i++ {
		if err := Migrate(db, content); err != nil {
			t.Fatalf("Migrate (run %d): %v", i+1, err)
		}
	}

	roles, err := LoadRoles(db)
	if err != nil {
		t.Fatalf("LoadRoles: %v", err)
	}
	if len(roles) != 3 {
		t.Fatalf("expected 3 roles, got %d", len(roles))
	}
	byName := map[string]models.Role{}
	for _, r := range roles {
		byName[r.Name] = r
	}
	if got := byName[rbac.RoleViewer].Permissions; len(got) != 2 || got[0] != "news:read" {
		t.Errorf("unexpected viewer permissions %v", got)
	}
	if got := byName[rbac.RoleAdmin].Permissions; len(got) != 1 || got[0] != "*:*" {
		t.Errorf("unexpected admin permissions %v", got)
	}
}

func TestMigrateModels(t *testing.T) {
	db := setupTestDB(t)
	reg := schema.NewRegistry()
	m := &schema.ModelConfig{
		Name:     "partners",
		Fields:   []schema.FieldConfig{{Name: "name", Type: schema.TypeText, Required: true}},
		Features: schema.Features{Trash: true},
	}
	if err := reg.Register(m); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := MigrateModels(context.Background(), db, reg); err != nil {
		t.Fatalf("MigrateModels: %v", err)
	}
	for _, col := range []string{"id", "name", "created_at", "updated_at", "deleted_at"} {
		if !db.Migrator().HasColumn("partners", col) {
			t.Errorf("expected column %s", col)
		}
	}
}

func TestCreateDefaultAdmin(t *testing.T) {
	db := setupTestDB(t)
	if err := Migrate(db, nil); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	enforcer, err := rbac.NewEnforcer(db, slog.Default())
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD", "")
	if err := CreateDefaultAdmin(db, enforcer); err != nil {
		t.Fatalf("CreateDefaultAdmin without credentials: %v", err)
	}
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no user without credentials, got %d", count)
	}

	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "motdepasse-solide")
	t.Setenv("ADMIN_EMAIL", "")
	if err := CreateDefaultAdmin(db, enforcer); err != nil {
		t.Fatalf("CreateDefaultAdmin: %v", err)
	}

	var admin models.User
	if err := db.Where("username = ?", "admin").First(&admin).Error; err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if admin.Email != "admin@urbanisme.gouv.sn" || admin.RoleName != rbac.RoleAdmin {
		t.Errorf("unexpected admin %+v", admin)
	}
	if admin.PasswordHash == "motdepasse-solide" {
		t.Error("password must be hashed")
	}
	isAdmin, err := enforcer.IsAdmin(admin.ID.String())
	if err != nil || !isAdmin {
		t.Errorf("expected admin role in RBAC, got %v (%v)", isAdmin, err)
	}

	// A second call leaves existing users alone.
	t.Setenv("ADMIN_USERNAME", "other")
	if err := CreateDefaultAdmin(db, enforcer); err != nil {
		t.Fatalf("CreateDefaultAdmin: %v", err)
	}
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 user, got %d", count)
	}
}
