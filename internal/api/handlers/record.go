package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urbanisme-sn/portail/internal/audit"
	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/form"
	"github.com/urbanisme-sn/portail/internal/schema"
)

// RecordHandler serves the back-office records of every registered model.
type RecordHandler struct {
	*Models
	audit *audit.Service
}

// NewRecordHandler creates a RecordHandler. auditSvc may be nil.
func NewRecordHandler(models *Models, auditSvc *audit.Service) *RecordHandler {
	return &RecordHandler{Models: models, audit: auditSvc}
}

// List godoc
// @Summary List records
// @Tags records
// @Security BearerAuth
// @Produce json
// @Param model path string true "Model name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Param search query string false "Search text"
// @Success 200 {object} crud.ListResult
// @Router /records/{model} [get]
func (h *RecordHandler) List(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	opts := listOptions(c)
	if opts.OnlyTrashed && !svc.Model().Features.Trash {
		respondError(c, fmt.Errorf("%s: trash: %w", svc.Model().Name, crud.ErrFeatureDisabled))
		return
	}
	res, err := svc.List(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Get godoc
// @Summary Get a record
// @Tags records
// @Security BearerAuth
// @Produce json
// @Param model path string true "Model name"
// @Param id path string true "Record ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /records/{model}/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	rec, err := svc.Read(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if rec == nil {
		notFound(c, "record")
		return
	}
	if m := svc.Model(); h.audit != nil && m.Features.Audit {
		h.audit.Log(c.Request.Context(), audit.Entry{
			Action:     audit.ActionView,
			EntityType: m.Name,
			EntityID:   c.Param("id"),
			EntityName: crud.DisplayName(m, rec),
		})
	}
	c.JSON(http.StatusOK, rec)
}

// Create godoc
// @Summary Create a record
// @Description Validates the values against the model form and stores the record
// @Tags records
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param model path string true "Model name"
// @Param values body map[string]interface{} true "Field values"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} ErrorResponse
// @Router /records/{model} [post]
func (h *RecordHandler) Create(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	var values schema.Record
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var created schema.Record
	err := h.form(svc.Model()).Submit(c.Request.Context(), values, func(ctx context.Context, rec schema.Record) error {
		var err error
		created, err = svc.Create(ctx, rec)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update godoc
// @Summary Update a record
// @Description Validates the stored record overlaid with the values and stores the supplied fields
// @Tags records
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param model path string true "Model name"
// @Param id path string true "Record ID"
// @Param values body map[string]interface{} true "Changed field values"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /records/{model}/{id} [put]
func (h *RecordHandler) Update(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	var values schema.Record
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	current, err := svc.Read(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if current == nil {
		notFound(c, "record")
		return
	}

	f := h.form(svc.Model(), form.WithInitialData(current))
	merged := f.Initial()
	for k, v := range values {
		merged[k] = v
	}

	var updated schema.Record
	err = f.Submit(ctx, merged, func(ctx context.Context, rec schema.Record) error {
		var err error
		updated, err = svc.Update(ctx, id, changedFields(svc.Model(), f.Policy(), values, current, rec))
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if updated == nil {
		notFound(c, "record")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// changedFields keeps the validated values the request supplied, plus the stored values cleared
// by the hidden field policy. Blank passwords leave the stored hash untouched.
func changedFields(m *schema.ModelConfig, policy form.HiddenFieldPolicy, values, current, rec schema.Record) schema.Record {
	data := schema.Record{}
	for name, v := range rec {
		_, supplied := values[name]
		cleared := policy == form.ClearHidden && v == nil && !form.IsBlank(current[name])
		if !supplied && !cleared {
			continue
		}
		if fc, ok := m.Field(name); ok && fc.Type == schema.TypePassword && form.IsBlank(v) {
			continue
		}
		data[name] = v
	}
	return data
}

// Delete godoc
// @Summary Delete a record
// @Description Moves the record to the trash when the model has one
// @Tags records
// @Security BearerAuth
// @Param model path string true "Model name"
// @Param id path string true "Record ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /records/{model}/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	existing, err := svc.Read(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if existing == nil || existing[schema.ColumnDeletedAt] != nil {
		notFound(c, "record")
		return
	}
	deleted, err := svc.Delete(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "record cannot be deleted"})
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkUpdate godoc
// @Summary Update several records
// @Tags records
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param model path string true "Model name"
// @Param request body BulkUpdateRequest true "Records and values"
// @Success 200 {object} CountResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /records/{model}/bulk-update [post]
func (h *RecordHandler) BulkUpdate(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	if !svc.Model().Features.BulkActions {
		respondError(c, fmt.Errorf("%s: bulk update: %w", svc.Model().Name, crud.ErrFeatureDisabled))
		return
	}
	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	data, err := h.form(svc.Model()).ValidatePartial(req.Data)
	if err != nil {
		respondError(c, err)
		return
	}
	n, err := svc.BulkUpdate(c.Request.Context(), req.IDs, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: n})
}

// BulkDelete godoc
// @Summary Delete several records
// @Tags records
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param model path string true "Model name"
// @Param request body IDsRequest true "Records"
// @Success 200 {object} CountResponse
// @Router /records/{model}/bulk-delete [post]
func (h *RecordHandler) BulkDelete(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	if !svc.Model().Features.BulkActions {
		respondError(c, fmt.Errorf("%s: bulk delete: %w", svc.Model().Name, crud.ErrFeatureDisabled))
		return
	}
	var req IDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	n, err := svc.BulkDelete(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: n})
}

// RunAction godoc
// @Summary Run a model action
// @Tags records
// @Security BearerAuth
// @Accept json
// @Param model path string true "Model name"
// @Param action path string true "Action name"
// @Param request body IDsRequest true "Records"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /records/{model}/actions/{action} [post]
func (h *RecordHandler) RunAction(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	var req IDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := svc.RunAction(c.Request.Context(), c.Param("action"), req.IDs); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Duplicate godoc
// @Summary Duplicate a record
// @Tags records
// @Security BearerAuth
// @Produce json
// @Param model path string true "Model name"
// @Param id path string true "Record ID"
// @Success 201 {object} map[string]interface{}
// @Router /records/{model}/{id}/duplicate [post]
func (h *RecordHandler) Duplicate(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	rec, err := svc.Duplicate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if rec == nil {
		notFound(c, "record")
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// Restore godoc
// @Summary Restore a record from the trash
// @Tags records
// @Security BearerAuth
// @Param model path string true "Model name"
// @Param id path string true "Record ID"
// @Success 204
// @Router /records/{model}/{id}/restore [post]
func (h *RecordHandler) Restore(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	restored, err := svc.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !restored {
		notFound(c, "deleted record")
		return
	}
	c.Status(http.StatusNoContent)
}

// ForceDelete godoc
// @Summary Permanently delete a record
// @Tags records
// @Security BearerAuth
// @Param model path string true "Model name"
// @Param id path string true "Record ID"
// @Success 204
// @Router /records/{model}/{id}/force [delete]
func (h *RecordHandler) ForceDelete(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	deleted, err := svc.ForceDelete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		notFound(c, "record")
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats godoc
// @Summary Record counts of a model
// @Tags records
// @Security BearerAuth
// @Produce json
// @Param model path string true "Model name"
// @Success 200 {object} crud.Stats
// @Router /records/{model}/stats [get]
func (h *RecordHandler) Stats(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	st, err := svc.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Export godoc
// @Summary Export records as CSV
// @Tags records
// @Security BearerAuth
// @Produce text/csv
// @Param model path string true "Model name"
// @Success 200 {string} string
// @Router /records/{model}/export [get]
func (h *RecordHandler) Export(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	if !svc.Model().Features.Export {
		respondError(c, fmt.Errorf("%s: export: %w", svc.Model().Name, crud.ErrFeatureDisabled))
		return
	}
	out, err := svc.Export(c.Request.Context(), listOptions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, svc.Model().Name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}

// Import godoc
// @Summary Import records from CSV
// @Tags records
// @Security BearerAuth
// @Accept text/csv
// @Produce json
// @Param model path string true "Model name"
// @Success 201 {object} CountResponse
// @Failure 422 {object} ErrorResponse
// @Router /records/{model}/import [post]
func (h *RecordHandler) Import(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	if !svc.Model().Features.Import {
		respondError(c, fmt.Errorf("%s: import: %w", svc.Model().Name, crud.ErrFeatureDisabled))
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	n, err := svc.Import(c.Request.Context(), string(body))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CountResponse{Count: int64(n)})
}

// History godoc
// @Summary Audit history of a record
// @Tags records
// @Security BearerAuth
// @Produce json
// @Param model path string true "Model name"
// @Param id path string true "Record ID"
// @Success 200 {array} models.AuditLog
// @Router /records/{model}/{id}/history [get]
func (h *RecordHandler) History(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	if h.audit == nil || !svc.Model().Features.Audit {
		respondError(c, fmt.Errorf("%s: audit: %w", svc.Model().Name, crud.ErrFeatureDisabled))
		return
	}
	c.JSON(http.StatusOK, h.audit.EntityLogs(c.Request.Context(), svc.Model().Name, c.Param("id")))
}
