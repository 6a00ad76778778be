package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/urbanisme-sn/portail/internal/audit"
)

// AuditHandler serves the audit log viewer.
type AuditHandler struct {
	audit *audit.Service
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(auditSvc *audit.Service) *AuditHandler {
	return &AuditHandler{audit: auditSvc}
}

// ListLogs godoc
// @Summary List audit logs
// @Description Newest first, optionally for one user or one entity
// @Tags audit
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Maximum number of logs (default 50)"
// @Param user_id query string false "Filter by user ID"
// @Param entity_type query string false "Filter by entity type, with entity_id"
// @Param entity_id query string false "Filter by entity ID, with entity_type"
// @Success 200 {array} models.AuditLog
// @Router /audit/logs [get]
func (h *AuditHandler) ListLogs(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.Query("limit"))

	switch {
	case c.Query("entity_type") != "" && c.Query("entity_id") != "":
		c.JSON(http.StatusOK, h.audit.EntityLogs(ctx, c.Query("entity_type"), c.Query("entity_id")))
	case c.Query("user_id") != "":
		c.JSON(http.StatusOK, h.audit.UserLogs(ctx, c.Query("user_id"), limit))
	default:
		c.JSON(http.StatusOK, h.audit.RecentLogs(ctx, limit))
	}
}

// Analytics godoc
// @Summary Audit log analytics
// @Tags audit
// @Security BearerAuth
// @Produce json
// @Param days query int false "Window in days (default 7)"
// @Success 200 {object} audit.Analytics
// @Failure 500 {object} ErrorResponse
// @Router /audit/analytics [get]
func (h *AuditHandler) Analytics(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	a := h.audit.Analytics(c.Request.Context(), days)
	if a == nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to compute audit analytics"})
		return
	}
	c.JSON(http.StatusOK, a)
}
