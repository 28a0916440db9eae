// controllers/report.go
package controllers

import (
	"net/http"
	"time"

	"fitsense-backend/services"
	"fitsense-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// ReportController handles all reporting functions
type ReportController struct {
	Revenue *services.RevenueService
}

// dateRange reads the optional from/to query parameters. to is inclusive
// of the whole day.
func dateRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	from, ok := optionalDate(c.Query("from"))
	if !ok {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid from date")
		return nil, nil, false
	}
	to, ok := optionalDate(c.Query("to"))
	if !ok {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid to date")
		return nil, nil, false
	}
	if to != nil && len(c.Query("to")) <= len("2006-01-02") {
		end := utils.BeginningOfDay(*to).Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	if from != nil && to != nil && to.Before(*from) {
		utils.RespondWithError(c, http.StatusBadRequest, "to must not be before from")
		return nil, nil, false
	}
	return from, to, true
}

func (rc *ReportController) GetRevenue(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	summary, err := rc.Revenue.Summary(c.Request.Context(), from, to)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (rc *ReportController) GetModeBreakdown(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	modes, err := rc.Revenue.ModeBreakdown(c.Request.Context(), from, to)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, modes)
}

func (rc *ReportController) GetMonthly(c *gin.Context) {
	months := cast.ToInt(c.DefaultQuery("months", "6"))
	if months <= 0 || months > 36 {
		utils.RespondWithError(c, http.StatusBadRequest, "months must be between 1 and 36")
		return
	}
	series, err := rc.Revenue.MonthlySeries(c.Request.Context(), months)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func (rc *ReportController) GetMemberRevenue(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	total, err := rc.Revenue.MemberTotal(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, total)
}

// GetDashboardOverview returns the headline figures with the latest ledger
// entries across all members.
func (rc *ReportController) GetDashboardOverview(c *gin.Context) {
	summary, err := rc.Revenue.Summary(c.Request.Context(), nil, nil)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	recent, err := rc.Revenue.RecentPayments(c.Request.Context(), cast.ToInt(c.DefaultQuery("recent", "10")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":        summary,
		"recentPayments": recent,
	})
}
