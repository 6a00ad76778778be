package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urbanisme-sn/portail/internal/auth"
	"github.com/urbanisme-sn/portail/internal/rbac"
)

// RequirePermission ensures the user may perform action on the model named by the :model route
// parameter.
func RequirePermission(enforcer *rbac.Enforcer, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorize(c, enforcer, c.Param("model"), action)
	}
}

// RequireModelPermission ensures the user may perform action on a fixed model, such as
// "audit_logs" or "roles".
func RequireModelPermission(enforcer *rbac.Enforcer, model, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorize(c, enforcer, model, action)
	}
}

// RequireAdmin ensures the user holds the admin role.
func RequireAdmin(enforcer *rbac.Enforcer) gin.HandlerFunc {
	return RequireModelPermission(enforcer, rbac.Any, rbac.Any)
}

func authorize(c *gin.Context, enforcer *rbac.Enforcer, model, action string) {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		c.Abort()
		return
	}

	subject := auth.Subject(user)
	allowed, err := enforcer.Can(subject, model, action)
	if err != nil {
		slog.Error("Permission check failed", "subject", subject, "model", model, "action", action, "error", err)
	}
	if err != nil || !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		c.Abort()
		return
	}

	c.Next()
}
