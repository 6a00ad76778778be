package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urbanisme-sn/portail/internal/form"
	"github.com/urbanisme-sn/portail/internal/schema"
)

// ModelHandler describes the registered models and serves their dynamic forms.
type ModelHandler struct {
	*Models
}

// NewModelHandler creates a ModelHandler.
func NewModelHandler(models *Models) *ModelHandler {
	return &ModelHandler{Models: models}
}

// ModelSummary is a model as listed in the back-office menu.
type ModelSummary struct {
	Name     string          `json:"name"`
	Label    string          `json:"label"`
	Public   bool            `json:"public"`
	Features schema.Features `json:"features"`
}

// FormResponse is the rendered state of a form for a set of values.
type FormResponse struct {
	Controls   []form.Control  `json:"controls"`
	Visibility map[string]bool `json:"visibility"`
}

// FilesRequest lists the files dropped on a field.
type FilesRequest struct {
	Files []form.File `json:"files" binding:"required"`
}

// FilesResponse splits dropped files into accepted and rejected ones.
type FilesResponse struct {
	Accepted []form.File      `json:"accepted"`
	Rejected []form.Rejection `json:"rejected"`
}

// ListModels godoc
// @Summary List registered models
// @Tags models
// @Security BearerAuth
// @Produce json
// @Success 200 {array} ModelSummary
// @Router /models [get]
func (h *ModelHandler) ListModels(c *gin.Context) {
	all := h.Registry.All()
	out := make([]ModelSummary, 0, len(all))
	for _, m := range all {
		out = append(out, ModelSummary{Name: m.Name, Label: m.Label, Public: m.Public, Features: m.Features})
	}
	c.JSON(http.StatusOK, out)
}

// GetModel godoc
// @Summary Get a model configuration
// @Tags models
// @Security BearerAuth
// @Produce json
// @Param model path string true "Model name"
// @Success 200 {object} schema.ModelConfig
// @Failure 404 {object} ErrorResponse
// @Router /models/{model} [get]
func (h *ModelHandler) GetModel(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, svc.Model())
}

// GetForm godoc
// @Summary Get the form controls of a model
// @Description With an id the controls are filled with the stored record
// @Tags models
// @Security BearerAuth
// @Produce json
// @Param model path string true "Model name"
// @Param id query string false "Record ID"
// @Success 200 {object} FormResponse
// @Router /models/{model}/form [get]
func (h *ModelHandler) GetForm(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	var opts []form.Option
	if id := c.Query("id"); id != "" {
		rec, err := svc.Read(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if rec == nil {
			notFound(c, "record")
			return
		}
		opts = append(opts, form.WithInitialData(rec))
	}
	f := h.form(svc.Model(), opts...)
	c.JSON(http.StatusOK, FormResponse{Controls: f.Controls(nil), Visibility: f.Visibility(f.Initial())})
}

// RenderForm godoc
// @Summary Render the form controls for edited values
// @Tags models
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param model path string true "Model name"
// @Param values body map[string]interface{} true "Current values"
// @Success 200 {object} FormResponse
// @Router /models/{model}/form [post]
func (h *ModelHandler) RenderForm(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	var values schema.Record
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	f := h.form(svc.Model())
	merged := f.Initial()
	for k, v := range values {
		merged[k] = v
	}
	c.JSON(http.StatusOK, FormResponse{Controls: f.Controls(values), Visibility: f.Visibility(merged)})
}

// Validate godoc
// @Summary Validate form values without storing them
// @Tags models
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param model path string true "Model name"
// @Param values body map[string]interface{} true "Field values"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} ErrorResponse
// @Router /models/{model}/validate [post]
func (h *ModelHandler) Validate(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	var values schema.Record
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	rec, err := h.form(svc.Model()).Validate(values)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// AcceptFiles godoc
// @Summary Check files dropped on a file field
// @Tags models
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param model path string true "Model name"
// @Param field path string true "Field name"
// @Param request body FilesRequest true "Dropped files"
// @Success 200 {object} FilesResponse
// @Router /models/{model}/files/{field} [post]
func (h *ModelHandler) AcceptFiles(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	var req FilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	accepted, rejected, err := h.form(svc.Model()).AcceptFiles(c.Param("field"), req.Files)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, FilesResponse{Accepted: accepted, Rejected: rejected})
}
