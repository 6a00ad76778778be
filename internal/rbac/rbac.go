package rbac

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"

	"github.com/urbanisme-sn/portail/internal/models"
)

//go:embed model.conf
var modelConf string

// Built-in roles.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Actions checked against "<model>:<action>" permissions.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
	ActionImport = "import"
	ActionRun    = "action"
	ActionAudit  = "audit"
)

// Any matches every model or every action.
const Any = "*"

// EditorActions are the actions editors hold on content models.
var EditorActions = []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionExport, ActionImport, ActionRun}

// Permission formats a permission string.
func Permission(model, action string) string { return model + ":" + action }

// ParsePermission splits "<model>:<action>".
func ParsePermission(p string) (model, action string, err error) {
	model, action, ok := strings.Cut(p, ":")
	if !ok || model == "" || action == "" {
		return "", "", fmt.Errorf("invalid permission %q", p)
	}
	return model, action, nil
}

// DefaultRoles returns the built-in roles for the given content models. Admins hold every
// permission, editors manage content, viewers read it.
func DefaultRoles(contentModels []string) []models.Role {
	var editor []string
	for _, m := range contentModels {
		for _, a := range EditorActions {
			editor = append(editor, Permission(m, a))
		}
	}
	viewer := make([]string, 0, len(contentModels))
	for _, m := range contentModels {
		viewer = append(viewer, Permission(m, ActionRead))
	}
	return []models.Role{
		{Name: RoleAdmin, Description: "Full access including users, roles and audit logs", Permissions: []string{Permission(Any, Any)}},
		{Name: RoleEditor, Description: "Manage site content", Permissions: editor},
		{Name: RoleViewer, Description: "Read-only access to site content", Permissions: viewer},
	}
}

// QuickAssign returns a copy of perms with every action on model granted or revoked. perms is
// left untouched.
func QuickAssign(perms []string, model string, actions []string, grant bool) []string {
	out := make([]string, 0, len(perms)+len(actions))
	drop := make(map[string]bool, len(actions))
	for _, a := range actions {
		drop[Permission(model, a)] = true
	}
	for _, p := range perms {
		if !drop[p] {
			out = append(out, p)
		}
	}
	if grant {
		for _, a := range actions {
			out = append(out, Permission(model, a))
		}
	}
	return out
}

// Enforcer checks model permissions with casbin, storing policies through gorm.
type Enforcer struct {
	e      *casbin.Enforcer
	logger *slog.Logger
}

// NewEnforcer initializes the casbin enforcer and loads stored policies.
func NewEnforcer(db *gorm.DB, logger *slog.Logger) (*Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	logger.Info("RBAC enforcer initialized")
	return &Enforcer{e: e, logger: logger}, nil
}

// SyncRole replaces the policies of role with its permission list.
func (r *Enforcer) SyncRole(role models.Role) error {
	if _, err := r.e.RemoveFilteredPolicy(0, role.Name); err != nil {
		return fmt.Errorf("failed to clear policies of %s: %w", role.Name, err)
	}
	rules := make([][]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		model, action, err := ParsePermission(p)
		if err != nil {
			r.logger.Warn("Skipping permission", "role", role.Name, "error", err)
			continue
		}
		rules = append(rules, []string{role.Name, model, action})
	}
	if len(rules) == 0 {
		return nil
	}
	if _, err := r.e.AddPolicies(rules); err != nil {
		return fmt.Errorf("failed to add policies of %s: %w", role.Name, err)
	}
	return nil
}

// SyncRoles replaces the policies of every role in roles.
func (r *Enforcer) SyncRoles(roles []models.Role) error {
	for _, role := range roles {
		if err := r.SyncRole(role); err != nil {
			return err
		}
	}
	r.logger.Info("RBAC roles synchronized", "roles", len(roles))
	return nil
}

// AssignRole makes subject a member of role, replacing any previous role.
func (r *Enforcer) AssignRole(subject, role string) error {
	if _, err := r.e.DeleteRolesForUser(subject); err != nil {
		return fmt.Errorf("failed to clear roles of %s: %w", subject, err)
	}
	if _, err := r.e.AddGroupingPolicy(subject, role); err != nil {
		return fmt.Errorf("failed to assign role %s: %w", role, err)
	}
	return nil
}

// RolesFor returns the roles subject belongs to.
func (r *Enforcer) RolesFor(subject string) ([]string, error) {
	return r.e.GetRolesForUser(subject)
}

// Can reports whether subject, a user id or a role name, may perform action on model.
func (r *Enforcer) Can(subject, model, action string) (bool, error) {
	return r.e.Enforce(subject, model, action)
}

// IsAdmin reports whether subject holds every permission.
func (r *Enforcer) IsAdmin(subject string) (bool, error) {
	return r.e.HasRoleForUser(subject, RoleAdmin)
}

// Permissions returns the "<model>:<action>" permissions subject holds through its roles.
func (r *Enforcer) Permissions(subject string) ([]string, error) {
	policies, err := r.e.GetImplicitPermissionsForUser(subject)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(policies))
	for _, p := range policies {
		if len(p) >= 3 {
			out = append(out, Permission(p[1], p[2]))
		}
	}
	return out, nil
}
