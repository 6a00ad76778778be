package catalog

import (
	"context"

	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/rbac"
	"github.com/urbanisme-sn/portail/internal/schema"
)

// users edits the back-office accounts stored by models.User.
func (c *Catalog) users() *schema.ModelConfig {
	return &schema.ModelConfig{
		Name:  Users,
		Label: "Utilisateur",
		Fields: []schema.FieldConfig{
			{Name: "username", Label: "Identifiant", Type: schema.TypeText, Required: true,
				Validation: []schema.Rule{minLen(3), {Kind: schema.RulePattern, Value: `^[a-z0-9._-]+$`, Message: "Lettres minuscules, chiffres, point, tiret"}}},
			{Name: "email", Label: "Adresse e-mail", Type: schema.TypeEmail, Required: true},
			{Name: "full_name", Label: "Nom complet", Type: schema.TypeText},
			{Name: "role_name", Label: "Rôle", Type: schema.TypeSelect, Required: true, Default: rbac.RoleViewer, Options: options(
				rbac.RoleAdmin, "Administrateur",
				rbac.RoleEditor, "Éditeur",
				rbac.RoleViewer, "Lecteur",
			)},
			{Name: "password_hash", Label: "Mot de passe", Type: schema.TypePassword, Validation: []schema.Rule{minLen(8)}},
		},
		ListFields:   []string{"username", "email", "full_name", "role_name"},
		SearchFields: []string{"username", "email", "full_name"},
		FilterFields: []string{"role_name"},
		SortFields:   []string{"username", "email", "created_at"},
		DefaultSort:  schema.SortSpec{Field: "username", Order: schema.Asc},
		Features: schema.Features{
			Search:      true,
			Filters:     true,
			Sort:        true,
			Pagination:  true,
			BulkActions: true,
			Trash:       true,
			Audit:       true,
		},
		Hooks: schema.Hooks{
			BeforeCreate: func(_ context.Context, data schema.Record) (schema.Record, error) {
				if data.String("password_hash") == "" {
					return nil, crud.Reject("password_hash", "un mot de passe est requis")
				}
				return data, nil
			},
		},
	}
}
