package catalog

import (
	"context"
	"time"

	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/schema"
)

func (c *Catalog) projects() *schema.ModelConfig {
	features := contentFeatures
	features.Preview = false
	return &schema.ModelConfig{
		Name:  Projects,
		Label: "Projet",
		Fields: []schema.FieldConfig{
			{Name: "title", Label: "Intitulé", Type: schema.TypeText, Required: true, Validation: []schema.Rule{minLen(5), maxLen(200)}},
			{Name: "slug", Label: "Slug", Type: schema.TypeSlug, Source: "title"},
			{Name: "summary", Label: "Résumé", Type: schema.TypeTextarea, Validation: []schema.Rule{maxLen(500)}},
			{Name: "description", Label: "Description", Type: schema.TypeRichText},
			{Name: "region", Label: "Région", Type: schema.TypeSelect, Required: true, Options: regions},
			{Name: "location", Label: "Localité", Type: schema.TypeText},
			{Name: "status", Label: "Statut", Type: schema.TypeSelect, Required: true, Default: "planned", Options: options(
				"planned", "Programmé",
				"in_progress", "En cours",
				"completed", "Achevé",
				"suspended", "Suspendu",
			)},
			{Name: "progress", Label: "Avancement (%)", Type: schema.TypeNumber, Required: true,
				DependsOn:  &schema.Dependency{Field: "status", Condition: schema.CondEquals, Value: "in_progress"},
				Validation: []schema.Rule{{Kind: schema.RuleMin, Value: 0}, {Kind: schema.RuleMax, Value: 100}}},
			{Name: "budget", Label: "Budget (FCFA)", Type: schema.TypeNumber, Validation: []schema.Rule{{Kind: schema.RuleMin, Value: 0}}},
			{Name: "funding", Label: "Financement", Type: schema.TypeMultiSelect, Options: options(
				"etat", "État du Sénégal",
				"bailleur", "Bailleurs de fonds",
				"ppp", "Partenariat public-privé",
				"collectivite", "Collectivités",
			)},
			{Name: "start_date", Label: "Date de démarrage", Type: schema.TypeDate},
			{Name: "end_date", Label: "Date d'achèvement prévue", Type: schema.TypeDate, Validation: []schema.Rule{{
				Kind:    schema.RuleCustom,
				Message: "La date d'achèvement doit suivre la date de démarrage",
				Check:   after("start_date"),
			}}},
			{Name: "cover_image", Label: "Image", Type: schema.TypeImage, MaxSize: imageMaxSize},
			{Name: "photos", Label: "Photos du chantier", Type: schema.TypeGallery, MaxSize: imageMaxSize},
		},
		ListFields:   []string{"title", "region", "status", "progress", "budget"},
		SearchFields: []string{"title", "summary", "location"},
		FilterFields: []string{"region", "status", "budget", "start_date"},
		SortFields:   []string{"title", "budget", "progress", "start_date", "created_at"},
		Features:     features,
		Actions: []schema.Action{
			{
				Name:  "complete",
				Label: "Marquer achevé",
				Bulk:  true,
				Handler: c.setStatus(Projects, Projects, "completed", func(time.Time) map[string]any {
					return map[string]any{"progress": 100}
				}),
			},
			{Name: "suspend", Label: "Suspendre", Confirm: "Suspendre ce projet ?", Handler: c.setStatus(Projects, Projects, "suspended", nil)},
		},
		Relations: []schema.Relation{
			{Name: "tenders", Type: schema.HasMany, Table: Tenders, ForeignKey: "project_id"},
		},
		Hooks: schema.Hooks{
			BeforeCreate: c.withSlug(Projects, "title"),
			BeforeDelete: c.keepReferencedProject,
		},
		Public: true,
	}
}

// keepReferencedProject vetoes the deletion of a project that live tenders still reference.
func (c *Catalog) keepReferencedProject(ctx context.Context, id string) (bool, error) {
	n, err := c.liveCount(ctx, Tenders, "project_id", id)
	if err != nil {
		return false, err
	}
	if n > 0 {
		c.logger.Info("Project deletion vetoed", "project_id", id, "tenders", n)
		return false, nil
	}
	return true, nil
}

func (c *Catalog) tenders() *schema.ModelConfig {
	features := contentFeatures
	features.Preview = false
	return &schema.ModelConfig{
		Name:  Tenders,
		Label: "Appel d'offres",
		Fields: []schema.FieldConfig{
			{Name: "reference", Label: "Référence", Type: schema.TypeText, Required: true, Placeholder: "AO-2026-001",
				Validation: []schema.Rule{{Kind: schema.RulePattern, Value: `^AO-[0-9]{4}-[0-9]{3}$`, Message: "Format attendu : AO-AAAA-NNN"}}},
			{Name: "title", Label: "Objet", Type: schema.TypeText, Required: true, Validation: []schema.Rule{maxLen(250)}},
			{Name: "project_id", Label: "Projet", Type: schema.TypeRelation, Relation: Projects},
			{Name: "kind", Label: "Nature", Type: schema.TypeSelect, Required: true, Options: options(
				"travaux", "Travaux",
				"fournitures", "Fournitures",
				"services", "Services",
				"prestations_intellectuelles", "Prestations intellectuelles",
			)},
			{Name: "description", Label: "Description", Type: schema.TypeRichText},
			{Name: "deadline", Label: "Date limite de dépôt", Type: schema.TypeDateTime, Required: true},
			{Name: "opening_date", Label: "Ouverture des plis", Type: schema.TypeDateTime, Validation: []schema.Rule{{
				Kind:    schema.RuleCustom,
				Message: "L'ouverture des plis doit suivre la date limite",
				Check:   after("deadline"),
			}}},
			{Name: "document", Label: "Dossier d'appel d'offres", Type: schema.TypeFile, MaxSize: docMaxSize},
			{Name: "status", Label: "Statut", Type: schema.TypeSelect, Default: "open", Options: options(
				"open", "Ouvert",
				"closed", "Clôturé",
				"awarded", "Attribué",
				"cancelled", "Annulé",
			)},
		},
		ListFields:   []string{"reference", "title", "kind", "deadline", "status"},
		SearchFields: []string{"reference", "title"},
		FilterFields: []string{"kind", "status", "project_id", "deadline"},
		SortFields:   []string{"reference", "deadline", "created_at"},
		DefaultSort:  schema.SortSpec{Field: "deadline", Order: schema.Desc},
		Features:     features,
		Actions: []schema.Action{
			{Name: "close", Label: "Clôturer", Bulk: true, Handler: c.setStatus(Tenders, Tenders, "closed", nil)},
			{Name: "cancel", Label: "Annuler", Confirm: "Annuler cet appel d'offres ?", Handler: c.setStatus(Tenders, Tenders, "cancelled", nil)},
		},
		Relations: []schema.Relation{
			{Name: "project", Type: schema.BelongsTo, Table: Projects, ForeignKey: "project_id", Eager: true},
		},
		Hooks: schema.Hooks{
			BeforeCreate: c.checkDeadline,
			BeforeUpdate: func(ctx context.Context, _ string, data schema.Record) (schema.Record, error) {
				if _, ok := data["deadline"]; !ok {
					return data, nil
				}
				return c.checkDeadline(ctx, data)
			},
		},
		Public:       true,
		PublicFilter: map[string]any{"status": "open"},
	}
}

// checkDeadline rejects open tenders whose submission deadline has passed.
func (c *Catalog) checkDeadline(_ context.Context, data schema.Record) (schema.Record, error) {
	if status := data.String("status"); status != "" && status != "open" {
		return data, nil
	}
	deadline, ok := parseWhen(data["deadline"])
	if !ok {
		return data, nil
	}
	if !deadline.After(c.now()) {
		return nil, crud.Reject("deadline", "la date limite doit être postérieure à maintenant")
	}
	return data, nil
}
