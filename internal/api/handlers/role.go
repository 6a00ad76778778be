package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urbanisme-sn/portail/internal/audit"
	"github.com/urbanisme-sn/portail/internal/auth"
	"github.com/urbanisme-sn/portail/internal/models"
	"github.com/urbanisme-sn/portail/internal/rbac"
	"gorm.io/gorm"
)

// RoleHandler manages roles and their permissions.
type RoleHandler struct {
	db       *gorm.DB
	enforcer *rbac.Enforcer
	audit    *audit.Service
}

// NewRoleHandler creates a RoleHandler. auditSvc may be nil.
func NewRoleHandler(db *gorm.DB, enforcer *rbac.Enforcer, auditSvc *audit.Service) *RoleHandler {
	return &RoleHandler{db: db, enforcer: enforcer, audit: auditSvc}
}

// QuickAssignRequest grants or revokes several actions of a role on one model.
type QuickAssignRequest struct {
	Model   string   `json:"model" binding:"required"`
	Actions []string `json:"actions" binding:"required"`
	Grant   bool     `json:"grant"`
}

// AssignRoleRequest sets the role of a user.
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ListRoles godoc
// @Summary List roles
// @Tags roles
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Role
// @Router /roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	var roles []models.Role
	if err := h.db.WithContext(c.Request.Context()).Order("id").Find(&roles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch roles"})
		return
	}
	c.JSON(http.StatusOK, roles)
}

// QuickAssign godoc
// @Summary Grant or revoke actions of a role on a model
// @Tags roles
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param name path string true "Role name"
// @Param request body QuickAssignRequest true "Permissions to change"
// @Success 200 {object} models.Role
// @Failure 404 {object} ErrorResponse
// @Router /roles/{name}/quick-assign [put]
func (h *RoleHandler) QuickAssign(c *gin.Context) {
	var req QuickAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	var role models.Role
	if err := h.db.WithContext(ctx).Where("name = ?", c.Param("name")).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "role")
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch role"})
		return
	}

	before := role.Permissions
	role.Permissions = rbac.QuickAssign(role.Permissions, req.Model, req.Actions, req.Grant)
	if err := h.db.WithContext(ctx).Save(&role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update role"})
		return
	}
	if err := h.enforcer.SyncRole(role); err != nil {
		slog.Error("Failed to sync role policies", "role", role.Name, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to apply role permissions"})
		return
	}

	if h.audit != nil {
		h.audit.Log(ctx, audit.Entry{
			Action:     audit.ActionUpdate,
			EntityType: "roles",
			EntityID:   role.Name,
			EntityName: role.Name,
			Changes:    map[string]any{"before": before, "after": role.Permissions},
		})
	}
	c.JSON(http.StatusOK, role)
}

// AssignRole godoc
// @Summary Set the role of a user
// @Tags roles
// @Security BearerAuth
// @Accept json
// @Param id path string true "User ID"
// @Param request body AssignRoleRequest true "Role"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /users/{id}/role [put]
func (h *RoleHandler) AssignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	var count int64
	if err := h.db.WithContext(ctx).Model(&models.Role{}).Where("name = ?", req.Role).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch role"})
		return
	}
	if count == 0 {
		notFound(c, "role")
		return
	}

	res := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", c.Param("id")).Update("role_name", req.Role)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update user"})
		return
	}
	if res.RowsAffected == 0 {
		notFound(c, "user")
		return
	}
	if err := h.enforcer.AssignRole(c.Param("id"), req.Role); err != nil {
		slog.Error("Failed to assign role", "user_id", c.Param("id"), "role", req.Role, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to assign role"})
		return
	}

	if h.audit != nil {
		h.audit.Log(ctx, audit.Entry{
			Action:     audit.ActionUpdate,
			EntityType: "users",
			EntityID:   c.Param("id"),
			Changes:    map[string]any{"role_name": req.Role},
		})
	}
	c.Status(http.StatusNoContent)
}

// MyPermissions godoc
// @Summary Permissions of the current user
// @Tags roles
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /auth/permissions [get]
func (h *RoleHandler) MyPermissions(c *gin.Context) {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}
	perms, err := h.enforcer.Permissions(auth.Subject(user))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch permissions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": user.RoleName, "permissions": perms})
}
