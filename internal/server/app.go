package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/urbanisme-sn/portail/internal/api"
	"github.com/urbanisme-sn/portail/internal/api/handlers"
	"github.com/urbanisme-sn/portail/internal/audit"
	"github.com/urbanisme-sn/portail/internal/auth"
	"github.com/urbanisme-sn/portail/internal/catalog"
	"github.com/urbanisme-sn/portail/internal/config"
	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/db"
	"github.com/urbanisme-sn/portail/internal/form"
	"github.com/urbanisme-sn/portail/internal/rbac"
	"github.com/urbanisme-sn/portail/internal/schema"
	"github.com/urbanisme-sn/portail/internal/search"
	"gorm.io/gorm"
)

// App holds the services built from the configuration and the database.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Registry *schema.Registry
	Services map[string]*crud.Service
	Audit    *audit.Service
	Enforcer *rbac.Enforcer
	Auth     *auth.Authenticator
	Searcher *search.Searcher
	Forms    []form.Option
}

// NewApp registers the catalog and the definition files of cfg.Models.ConfigDir, migrates their
// tables, loads the role policies and builds one CRUD service per model.
func NewApp(ctx context.Context, cfg *config.Config, database *gorm.DB) (*App, error) {
	policy, err := form.ParseHiddenFieldPolicy(cfg.Form.HiddenFieldPolicy)
	if err != nil {
		return nil, err
	}
	maxFileSize, err := cfg.MaxFileSizeBytes()
	if err != nil {
		return nil, fmt.Errorf("invalid form.max_file_size: %w", err)
	}
	loc := cfg.Location()
	logger := slog.Default()

	auditSvc := audit.NewService(database, audit.WithLocation(loc), audit.WithLogger(logger))

	registry := schema.NewRegistry()
	if err := catalog.New(database, catalog.WithAudit(auditSvc), catalog.WithLogger(logger)).Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register catalog: %w", err)
	}
	contentModels := append([]string{}, catalog.ContentModels...)
	extra, err := schema.LoadDir(cfg.Models.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load model definitions: %w", err)
	}
	for _, m := range extra {
		if err := registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register model %s: %w", m.Name, err)
		}
		contentModels = append(contentModels, m.Name)
	}

	if err := db.Migrate(database, contentModels); err != nil {
		return nil, err
	}
	if err := db.MigrateModels(ctx, database, registry); err != nil {
		return nil, fmt.Errorf("failed to migrate model tables: %w", err)
	}

	enforcer, err := rbac.NewEnforcer(database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RBAC: %w", err)
	}
	roles, err := db.LoadRoles(database)
	if err != nil {
		return nil, err
	}
	if err := enforcer.SyncRoles(roles); err != nil {
		return nil, err
	}

	services := make(map[string]*crud.Service)
	ordered := make([]*crud.Service, 0, len(registry.All()))
	for _, m := range registry.All() {
		svc := crud.New(database, m,
			crud.WithLogger(logger),
			crud.WithAuditLog(auditSvc),
			crud.WithExportLimit(cfg.Export.MaxRows),
		)
		services[m.Name] = svc
		ordered = append(ordered, svc)
	}

	forms := []form.Option{
		form.WithHiddenFieldPolicy(policy),
		form.WithDefaultMaxFileSize(maxFileSize),
		form.WithLocation(loc),
		form.WithLogger(logger),
	}
	if cfg.Form.DirectVisibility {
		forms = append(forms, form.WithDirectVisibility())
	}

	return &App{
		Config:   cfg,
		DB:       database,
		Registry: registry,
		Services: services,
		Audit:    auditSvc,
		Enforcer: enforcer,
		Auth:     auth.NewAuthenticator(database, cfg.Auth.JWTSecret, auditSvc),
		Searcher: search.New(ordered, search.WithLogger(logger)),
		Forms:    forms,
	}, nil
}

// Service returns the CRUD service of the named model.
func (a *App) Service(name string) (*crud.Service, error) {
	svc, ok := a.Services[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	return svc, nil
}

// Router builds the HTTP API over the app.
func (a *App) Router() http.Handler {
	return api.NewRouter(a.Config, api.Deps{
		DB:       a.DB,
		Models:   &handlers.Models{Registry: a.Registry, Services: a.Services, Forms: a.Forms},
		Audit:    a.Audit,
		Enforcer: a.Enforcer,
		Auth:     a.Auth,
		Searcher: a.Searcher,
	})
}
