package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"bookingledger/internal/app/commands"
	reconciliationapp "bookingledger/internal/app/handlers/reconciliation"
)

// ReconciliationHandler lets operators retry a refund that failed.
type ReconciliationHandler struct {
	Commands commands.Bus
}

func (h ReconciliationHandler) Refund(c *gin.Context) {
	if _, ok := requireRole(c, RoleOperator); !ok {
		return
	}
	cmd := reconciliationapp.ProcessRefundCommand{ObligationID: c.Param("id")}
	result, err := commands.Dispatch[reconciliationapp.ProcessRefundCommand, *reconciliationapp.ProcessRefundResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ReconciliationHTTP = ReconciliationHandler{}
