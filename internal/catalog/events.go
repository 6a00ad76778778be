package catalog

import (
	"github.com/urbanisme-sn/portail/internal/schema"
)

func (c *Catalog) events() *schema.ModelConfig {
	return &schema.ModelConfig{
		Name:  Events,
		Label: "Événement",
		Fields: []schema.FieldConfig{
			{Name: "title", Label: "Titre", Type: schema.TypeText, Required: true, Validation: []schema.Rule{maxLen(200)}},
			{Name: "slug", Label: "Slug", Type: schema.TypeSlug, Source: "title"},
			{Name: "description", Label: "Description", Type: schema.TypeRichText},
			{Name: "starts_at", Label: "Début", Type: schema.TypeDateTime, Required: true},
			{Name: "ends_at", Label: "Fin", Type: schema.TypeDateTime, Validation: []schema.Rule{{
				Kind:    schema.RuleCustom,
				Message: "La fin doit suivre le début",
				Check:   after("starts_at"),
			}}},
			{Name: "online", Label: "En ligne", Type: schema.TypeCheckbox, Default: false},
			{Name: "location", Label: "Lieu", Type: schema.TypeText,
				DependsOn: &schema.Dependency{Field: "online", Condition: schema.CondNotEquals, Value: true}},
			{Name: "region", Label: "Région", Type: schema.TypeSelect, Options: regions,
				DependsOn: &schema.Dependency{Field: "online", Condition: schema.CondNotEquals, Value: true}},
			{Name: "link", Label: "Lien de connexion", Type: schema.TypeURL, Required: true,
				DependsOn: &schema.Dependency{Field: "online", Condition: schema.CondEquals, Value: true}},
			{Name: "registration_required", Label: "Inscription obligatoire", Type: schema.TypeCheckbox, Default: false},
			{Name: "capacity", Label: "Places disponibles", Type: schema.TypeNumber,
				DependsOn:  &schema.Dependency{Field: "registration_required", Condition: schema.CondEquals, Value: true},
				Validation: []schema.Rule{{Kind: schema.RuleMin, Value: 1}}},
			{Name: "cover_image", Label: "Visuel", Type: schema.TypeImage, MaxSize: imageMaxSize},
			{Name: "status", Label: "Statut", Type: schema.TypeSelect, Options: publicationStatuses, Default: "draft"},
			{Name: "published_at", Label: "Mise en ligne", Type: schema.TypeDateTime},
		},
		ListFields:   []string{"title", "starts_at", "region", "online", "status"},
		SearchFields: []string{"title", "description", "location"},
		FilterFields: []string{"region", "online", "status", "starts_at"},
		SortFields:   []string{"title", "starts_at", "created_at"},
		DefaultSort:  schema.SortSpec{Field: "starts_at", Order: schema.Desc},
		Features:     contentFeatures,
		Actions:      c.publishActions(Events),
		Relations: []schema.Relation{
			{Name: "galleries", Type: schema.HasMany, Table: MediaGalleries, ForeignKey: "event_id"},
		},
		Hooks: schema.Hooks{
			BeforeCreate: chain(c.withSlug(Events, "title"), c.stampPublished),
		},
		Public:       true,
		PublicFilter: map[string]any{"status": "published"},
	}
}

func (c *Catalog) careers() *schema.ModelConfig {
	features := contentFeatures
	features.Preview = false
	return &schema.ModelConfig{
		Name:  Careers,
		Label: "Offre d'emploi",
		Fields: []schema.FieldConfig{
			{Name: "title", Label: "Intitulé du poste", Type: schema.TypeText, Required: true},
			{Name: "reference", Label: "Référence", Type: schema.TypeText},
			{Name: "department", Label: "Direction", Type: schema.TypeText},
			{Name: "contract_type", Label: "Type de contrat", Type: schema.TypeSelect, Required: true, Options: options(
				"fonctionnaire", "Fonctionnaire",
				"contractuel", "Contractuel",
				"stage", "Stage",
				"consultance", "Consultance",
			)},
			{Name: "region", Label: "Lieu d'affectation", Type: schema.TypeSelect, Options: regions},
			{Name: "description", Label: "Description du poste", Type: schema.TypeRichText, Required: true},
			{Name: "requirements", Label: "Profil recherché", Type: schema.TypeTextarea},
			{Name: "deadline", Label: "Date limite de candidature", Type: schema.TypeDate, Required: true},
			{Name: "contact_email", Label: "Adresse de candidature", Type: schema.TypeEmail},
			{Name: "status", Label: "Statut", Type: schema.TypeSelect, Default: "open", Options: options(
				"open", "Ouverte",
				"closed", "Clôturée",
			)},
		},
		ListFields:   []string{"title", "contract_type", "region", "deadline", "status"},
		SearchFields: []string{"title", "department", "description"},
		FilterFields: []string{"contract_type", "region", "status"},
		SortFields:   []string{"title", "deadline", "created_at"},
		Features:     features,
		Actions: []schema.Action{
			{Name: "close", Label: "Clôturer", Bulk: true, Handler: c.setStatus(Careers, Careers, "closed", nil)},
		},
		Public:       true,
		PublicFilter: map[string]any{"status": "open"},
	}
}
