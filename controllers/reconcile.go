package controllers

import (
	"net/http"

	"fitsense-backend/services"

	"github.com/gin-gonic/gin"
)

type ReconcileController struct {
	Reconciler *services.Reconciler
}

// RunReconciliation folds every live account into the registry and
// returns the summary counts.
func (rc *ReconcileController) RunReconciliation(c *gin.Context) {
	report, err := rc.Reconciler.Run(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (rc *ReconcileController) ReconcileAccount(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	outcome, err := rc.Reconciler.ReconcileAccount(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "outcome": outcome})
}
