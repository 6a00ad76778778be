package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/schema"
	"github.com/urbanisme-sn/portail/internal/search"
)

// PublicHandler serves the read-only endpoints of the public site.
type PublicHandler struct {
	*Models
	searcher *search.Searcher
}

// NewPublicHandler creates a PublicHandler.
func NewPublicHandler(models *Models, searcher *search.Searcher) *PublicHandler {
	return &PublicHandler{Models: models, searcher: searcher}
}

// publicService resolves :model among the public models.
func (h *PublicHandler) publicService(c *gin.Context) (*crud.Service, bool) {
	svc, ok := h.Services[c.Param("model")]
	if !ok || !svc.Model().Public {
		notFound(c, "page")
		return nil, false
	}
	return svc, true
}

// ListModels godoc
// @Summary List public sections
// @Tags public
// @Produce json
// @Success 200 {array} ModelSummary
// @Router /public [get]
func (h *PublicHandler) ListModels(c *gin.Context) {
	out := []ModelSummary{}
	for _, m := range h.Registry.Public() {
		out = append(out, ModelSummary{Name: m.Name, Label: m.Label, Public: true, Features: m.Features})
	}
	c.JSON(http.StatusOK, out)
}

// List godoc
// @Summary List the published records of a section
// @Tags public
// @Produce json
// @Param model path string true "Model name"
// @Success 200 {object} crud.ListResult
// @Failure 404 {object} ErrorResponse
// @Router /public/{model} [get]
func (h *PublicHandler) List(c *gin.Context) {
	svc, ok := h.publicService(c)
	if !ok {
		return
	}
	res, err := svc.List(c.Request.Context(), search.PublicScope(svc.Model(), listOptions(c)))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Get godoc
// @Summary Get a published record by ID or slug
// @Tags public
// @Produce json
// @Param model path string true "Model name"
// @Param key path string true "Record ID or slug"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /public/{model}/{key} [get]
func (h *PublicHandler) Get(c *gin.Context) {
	svc, ok := h.publicService(c)
	if !ok {
		return
	}
	m := svc.Model()
	key := c.Param("key")

	columns := []string{m.PrimaryKey}
	if m.HasColumn("slug") {
		columns = append(columns, "slug")
	}
	for _, column := range columns {
		opts := search.PublicScope(m, crud.ListOptions{
			Limit:   1,
			Filters: map[string]any{column: key},
		})
		res, err := svc.List(c.Request.Context(), opts)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(res.Data) > 0 {
			c.JSON(http.StatusOK, publicRecord(m, res.Data[0]))
			return
		}
	}
	notFound(c, "page")
}

// publicRecord drops the trash marker from rec.
func publicRecord(m *schema.ModelConfig, rec schema.Record) schema.Record {
	if m.Features.Trash {
		delete(rec, schema.ColumnDeletedAt)
	}
	return rec
}

// Search godoc
// @Summary Search the public site
// @Tags public
// @Produce json
// @Param q query string true "Search text, at least two characters"
// @Success 200 {array} search.Hit
// @Router /public/search [get]
func (h *PublicHandler) Search(c *gin.Context) {
	c.JSON(http.StatusOK, h.searcher.Search(c.Request.Context(), c.Query("q")))
}
