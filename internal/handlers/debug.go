package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"helpdesk-service/internal/middleware"
	"helpdesk-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		var actorID *int
		var actorRole string
		if principal, ok := middleware.PrincipalFrom(c); ok {
			actorID = &principal.UserID
			actorRole = string(principal.Role)
		}
		emitter.Emit(c.Request.Context(), "audit_test", 0, "audit test", requestIDFromContext(c), actorID, actorRole)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
