// controller/audit_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolsync/pulse/audit"
	"github.com/schoolsync/pulse/util"
)

// AuditController exposes the audit trail to operators.
type AuditController struct {
	audit audit.Service
}

func NewAuditController(auditService audit.Service) *AuditController {
	return &AuditController{audit: auditService}
}

func (ac *AuditController) RegisterRoutes(r gin.IRouter) {
	r.GET("/audit", ac.Query)
}

// Query returns audit entries in a time window, optionally filtered by actor
// and target. The window defaults to the last 24 hours.
func (ac *AuditController) Query(c *gin.Context) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid from timestamp", err)
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid to timestamp", err)
			return
		}
		to = parsed
	}

	entries, err := ac.audit.Query(c.Request.Context(), from, to, c.Query("actorId"), c.Query("targetId"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query audit trail", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
