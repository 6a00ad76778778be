package catalog

import (
	"time"

	"github.com/urbanisme-sn/portail/internal/schema"
)

var publicationStatuses = options(
	"draft", "Brouillon",
	"published", "Publié",
	"archived", "Archivé",
)

func (c *Catalog) publishActions(model string) []schema.Action {
	return []schema.Action{
		{
			Name:  "publish",
			Label: "Publier",
			Bulk:  true,
			Handler: c.setStatus(model, model, "published", func(now time.Time) map[string]any {
				return map[string]any{"published_at": now.Format(time.RFC3339)}
			}),
		},
		{Name: "unpublish", Label: "Dépublier", Bulk: true, Handler: c.setStatus(model, model, "draft", nil)},
		{
			Name:    "archive",
			Label:   "Archiver",
			Confirm: "Les éléments archivés ne sont plus visibles sur le site public.",
			Bulk:    true,
			Handler: c.setStatus(model, model, "archived", nil),
		},
	}
}

func (c *Catalog) news() *schema.ModelConfig {
	return &schema.ModelConfig{
		Name:  News,
		Label: "Actualité",
		Fields: []schema.FieldConfig{
			{Name: "title", Label: "Titre", Type: schema.TypeText, Required: true, Validation: []schema.Rule{minLen(5), maxLen(200)}},
			{Name: "slug", Label: "Slug", Type: schema.TypeSlug, Source: "title", Help: "Généré à partir du titre si vide"},
			{Name: "excerpt", Label: "Chapô", Type: schema.TypeTextarea, Validation: []schema.Rule{maxLen(500)}},
			{Name: "content", Label: "Contenu", Type: schema.TypeRichText, Required: true},
			{Name: "category", Label: "Catégorie", Type: schema.TypeSelect, Required: true, Options: options(
				"communique", "Communiqué",
				"article", "Article",
				"discours", "Discours",
				"evenement", "Événement",
			)},
			{Name: "cover_image", Label: "Image de couverture", Type: schema.TypeImage, MaxSize: imageMaxSize},
			{Name: "tags", Label: "Mots-clés", Type: schema.TypeTags},
			{Name: "status", Label: "Statut", Type: schema.TypeSelect, Options: publicationStatuses, Default: "draft"},
			{Name: "published_at", Label: "Date de publication", Type: schema.TypeDateTime,
				DependsOn: &schema.Dependency{Field: "status", Condition: schema.CondEquals, Value: "published"}},
			{Name: "featured", Label: "À la une", Type: schema.TypeCheckbox, Default: false},
		},
		ListFields:   []string{"title", "category", "status", "published_at", "featured"},
		SearchFields: []string{"title", "excerpt", "content"},
		FilterFields: []string{"category", "status", "featured"},
		SortFields:   []string{"title", "published_at", "created_at"},
		DefaultSort:  schema.SortSpec{Field: "created_at", Order: schema.Desc},
		Features:     contentFeatures,
		Actions:      c.publishActions(News),
		Hooks: schema.Hooks{
			BeforeCreate: chain(c.withSlug(News, "title"), c.stampPublished),
		},
		Public:       true,
		PublicFilter: map[string]any{"status": "published"},
	}
}

func (c *Catalog) publications() *schema.ModelConfig {
	return &schema.ModelConfig{
		Name:  Publications,
		Label: "Publication",
		Fields: []schema.FieldConfig{
			{Name: "title", Label: "Titre", Type: schema.TypeText, Required: true, Validation: []schema.Rule{maxLen(250)}},
			{Name: "slug", Label: "Slug", Type: schema.TypeSlug, Source: "title"},
			{Name: "category", Label: "Catégorie", Type: schema.TypeSelect, Required: true, Options: options(
				"rapport", "Rapport",
				"decret", "Décret",
				"arrete", "Arrêté",
				"guide", "Guide",
				"plan", "Plan d'urbanisme",
			)},
			{Name: "summary", Label: "Résumé", Type: schema.TypeTextarea, Validation: []schema.Rule{maxLen(1000)}},
			{Name: "document", Label: "Document", Type: schema.TypeFile, Required: true, MaxSize: docMaxSize},
			{Name: "published_on", Label: "Date de parution", Type: schema.TypeDate},
			{Name: "tags", Label: "Mots-clés", Type: schema.TypeTags},
			{Name: "status", Label: "Statut", Type: schema.TypeSelect, Options: publicationStatuses, Default: "draft"},
			{Name: "published_at", Label: "Mise en ligne", Type: schema.TypeDateTime},
		},
		ListFields:   []string{"title", "category", "published_on", "status"},
		SearchFields: []string{"title", "summary"},
		FilterFields: []string{"category", "status"},
		SortFields:   []string{"title", "published_on", "created_at"},
		DefaultSort:  schema.SortSpec{Field: "published_on", Order: schema.Desc},
		Features:     contentFeatures,
		Actions:      c.publishActions(Publications),
		Hooks: schema.Hooks{
			BeforeCreate: chain(c.withSlug(Publications, "title"), c.stampPublished),
		},
		Public:       true,
		PublicFilter: map[string]any{"status": "published"},
	}
}

func (c *Catalog) mediaGalleries() *schema.ModelConfig {
	return &schema.ModelConfig{
		Name:  MediaGalleries,
		Label: "Galerie",
		Fields: []schema.FieldConfig{
			{Name: "title", Label: "Titre", Type: schema.TypeText, Required: true},
			{Name: "slug", Label: "Slug", Type: schema.TypeSlug, Source: "title"},
			{Name: "description", Label: "Description", Type: schema.TypeTextarea},
			{Name: "kind", Label: "Type", Type: schema.TypeRadio, Required: true, Default: "photo", Options: options(
				"photo", "Photos",
				"video", "Vidéo",
			)},
			{Name: "photos", Label: "Photos", Type: schema.TypeGallery, MaxSize: imageMaxSize,
				DependsOn: &schema.Dependency{Field: "kind", Condition: schema.CondEquals, Value: "photo"}},
			{Name: "video_url", Label: "Lien de la vidéo", Type: schema.TypeURL, Required: true,
				DependsOn: &schema.Dependency{Field: "kind", Condition: schema.CondEquals, Value: "video"}},
			{Name: "event_id", Label: "Événement", Type: schema.TypeRelation, Relation: Events},
			{Name: "status", Label: "Statut", Type: schema.TypeSelect, Options: publicationStatuses, Default: "draft"},
			{Name: "published_at", Label: "Mise en ligne", Type: schema.TypeDateTime},
		},
		ListFields:   []string{"title", "kind", "status"},
		SearchFields: []string{"title", "description"},
		FilterFields: []string{"kind", "status", "event_id"},
		SortFields:   []string{"title", "created_at"},
		Features:     contentFeatures,
		Actions:      c.publishActions(MediaGalleries),
		Relations: []schema.Relation{
			{Name: "event", Type: schema.BelongsTo, Table: Events, ForeignKey: "event_id"},
		},
		Hooks: schema.Hooks{
			BeforeCreate: chain(c.withSlug(MediaGalleries, "title"), c.stampPublished),
		},
		Public:       true,
		PublicFilter: map[string]any{"status": "published"},
	}
}

func (c *Catalog) partners() *schema.ModelConfig {
	features := contentFeatures
	features.Duplicate = false
	features.Preview = false
	return &schema.ModelConfig{
		Name:  Partners,
		Label: "Partenaire",
		Fields: []schema.FieldConfig{
			{Name: "name", Label: "Nom", Type: schema.TypeText, Required: true},
			{Name: "acronym", Label: "Sigle", Type: schema.TypeText, Validation: []schema.Rule{maxLen(20)}},
			{Name: "category", Label: "Catégorie", Type: schema.TypeSelect, Required: true, Options: options(
				"institution", "Institution nationale",
				"collectivite", "Collectivité territoriale",
				"bailleur", "Bailleur de fonds",
				"international", "Organisation internationale",
				"prive", "Secteur privé",
			)},
			{Name: "logo", Label: "Logo", Type: schema.TypeImage, MaxSize: mb},
			{Name: "website", Label: "Site web", Type: schema.TypeURL},
			{Name: "brand_color", Label: "Couleur", Type: schema.TypeColor},
			{Name: "description", Label: "Description", Type: schema.TypeTextarea},
			{Name: "display_order", Label: "Ordre d'affichage", Type: schema.TypeNumber, Default: 0,
				Validation: []schema.Rule{{Kind: schema.RuleMin, Value: 0}}},
		},
		ListFields:   []string{"name", "acronym", "category", "display_order"},
		SearchFields: []string{"name", "acronym"},
		FilterFields: []string{"category"},
		SortFields:   []string{"name", "display_order", "created_at"},
		DefaultSort:  schema.SortSpec{Field: "display_order", Order: schema.Asc},
		Features:     features,
		Public:       true,
	}
}
