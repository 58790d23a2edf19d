// controller/impersonation_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolsync/pulse/model"
	"github.com/schoolsync/pulse/service"
	"github.com/schoolsync/pulse/util"
)

// ImpersonationController serves the validation endpoint the client-side
// session manager calls before activating a session.
type ImpersonationController struct {
	directory *service.DirectoryService
}

func NewImpersonationController(directory *service.DirectoryService) *ImpersonationController {
	return &ImpersonationController{directory: directory}
}

func (ic *ImpersonationController) RegisterRoutes(r gin.IRouter) {
	r.POST("/impersonate/validate", ic.Validate)
}

// Validate resolves the target user. An unresolvable target is a valid
// response with valid=false, not an HTTP error.
func (ic *ImpersonationController) Validate(c *gin.Context) {
	var req model.ValidateImpersonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid validation request", err)
		return
	}

	c.JSON(http.StatusOK, ic.directory.Validate(req.TargetUserID))
}
