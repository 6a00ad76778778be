package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/urbanisme-sn/portail/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testSetup(t *testing.T, opts ...Option) (*Service, *gorm.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db, opts...), db
}

func TestLog_EntityLogs(t *testing.T) {
	svc, _ := testSetup(t)
	ctx := context.Background()

	svc.Log(ctx, Entry{UserID: "u1", Action: ActionDelete, EntityType: "news", EntityID: "n1"})
	svc.Log(ctx, Entry{UserID: "u1", Action: ActionUpdate, EntityType: "news", EntityID: "n2"})

	logs := svc.EntityLogs(ctx, "news", "n1")
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	got := logs[0]
	if got.Action != ActionDelete || got.UserID != "u1" {
		t.Errorf("unexpected log %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be populated")
	}
	if got.ID == "" {
		t.Error("expected generated id")
	}
}

func TestLog_ResolvesEmail(t *testing.T) {
	svc, db := testSetup(t)
	ctx := context.Background()

	user := models.User{Username: "awa", Email: "awa.diop@urbanisme.gouv.sn", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	svc.Log(ctx, Entry{UserID: user.ID.String(), Action: ActionLogin, EntityType: "session"})
	svc.Log(ctx, Entry{UserID: "unknown", Action: ActionLogin, EntityType: "session"})

	logs := svc.UserLogs(ctx, user.ID.String(), 0)
	if len(logs) != 1 || logs[0].UserEmail != user.Email {
		t.Fatalf("expected resolved email, got %+v", logs)
	}
	logs = svc.UserLogs(ctx, "unknown", 0)
	if len(logs) != 1 || logs[0].UserEmail != "" {
		t.Fatalf("expected unresolved email to stay empty, got %+v", logs)
	}
}

func TestLog_ActorFromContext(t *testing.T) {
	svc, _ := testSetup(t)
	ctx := WithActor(context.Background(), Actor{
		UserID: "u7", Email: "editor@urbanisme.gouv.sn", IPAddress: "10.0.0.7", UserAgent: "test",
	})

	svc.Log(ctx, Entry{
		Action: ActionCreate, EntityType: "projects", EntityID: "p1",
		Changes: map[string]any{"title": "Pôle urbain de Diamniadio"},
	})

	logs := svc.RecentLogs(context.Background(), 10)
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	l := logs[0]
	if l.UserID != "u7" || l.UserEmail != "editor@urbanisme.gouv.sn" || l.IPAddress != "10.0.0.7" {
		t.Errorf("actor not applied: %+v", l)
	}
	if l.Changes["title"] != "Pôle urbain de Diamniadio" {
		t.Errorf("unexpected changes %v", l.Changes)
	}
}

func TestLog_WithoutActorUsesSystem(t *testing.T) {
	svc, _ := testSetup(t)
	svc.Log(context.Background(), Entry{Action: ActionCreate, EntityType: "news"})

	logs := svc.UserLogs(context.Background(), SystemUser, 0)
	if len(logs) != 1 {
		t.Fatalf("expected system log, got %d", len(logs))
	}
}

func TestRecentLogs_OrderAndLimit(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := base
	svc, _ := testSetup(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		now = base.Add(time.Duration(i) * time.Minute)
		svc.Log(ctx, Entry{UserID: "u1", Action: ActionView, EntityType: "news", EntityID: string(rune('a' + i))})
	}

	logs := svc.RecentLogs(ctx, 3)
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	if logs[0].EntityID != "e" || logs[2].EntityID != "c" {
		t.Errorf("expected newest first, got %s..%s", logs[0].EntityID, logs[2].EntityID)
	}
}

func TestAnalytics(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := now
	svc, _ := testSetup(t, WithClock(func() time.Time { return clock }), WithLocation(time.UTC))
	ctx := context.Background()

	write := func(at time.Time, user, action, entity string) {
		clock = at
		svc.Log(ctx, Entry{UserID: user, Action: action, EntityType: entity})
	}
	write(now.Add(-30*24*time.Hour), "u1", ActionCreate, "news")
	write(now.Add(-2*24*time.Hour), "u1", ActionCreate, "news")
	write(now.Add(-2*24*time.Hour), "u2", ActionUpdate, "projects")
	write(now.Add(-1*time.Hour), "u2", ActionDelete, "news")
	clock = now

	a := svc.Analytics(ctx, 0)
	if a == nil {
		t.Fatal("expected analytics")
	}
	if a.Days != 7 || a.Total != 3 || a.UniqueUsers != 2 {
		t.Errorf("unexpected totals: %+v", a)
	}
	if a.ByAction[ActionCreate] != 1 || a.ByAction[ActionUpdate] != 1 || a.ByAction[ActionDelete] != 1 {
		t.Errorf("unexpected by action %v", a.ByAction)
	}
	if a.ByEntityType["news"] != 2 || a.ByEntityType["projects"] != 1 {
		t.Errorf("unexpected by entity type %v", a.ByEntityType)
	}
	if a.ByDay["2026-03-08"] != 2 || a.ByDay["2026-03-10"] != 1 {
		t.Errorf("unexpected by day %v", a.ByDay)
	}
}

func TestFailuresAreSwallowed(t *testing.T) {
	svc, db := testSetup(t)
	ctx := context.Background()
	if err := db.Migrator().DropTable(&models.AuditLog{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	svc.Log(ctx, Entry{UserID: "u1", Action: ActionCreate, EntityType: "news"})

	if logs := svc.RecentLogs(ctx, 0); logs == nil || len(logs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", logs)
	}
	if logs := svc.EntityLogs(ctx, "news", "n1"); logs == nil || len(logs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", logs)
	}
	if a := svc.Analytics(ctx, 7); a != nil {
		t.Errorf("expected nil analytics, got %+v", a)
	}
}
