package controllers

import (
	"net/http"
	"time"

	"fitsense-backend/services"
	"fitsense-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode string          `json:"paymentMode"`
	Notes       string          `json:"notes"`
	PaidAt      string          `json:"paidAt"`
}

// optionalDate parses s, treating an empty string as absent.
func optionalDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	t, ok := utils.ParseDate(s)
	if !ok {
		return nil, false
	}
	return &t, true
}

// AddPayment records a ledger entry against a member record.
func (mc *MemberController) AddPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	paidAt, ok := optionalDate(req.PaidAt)
	if !ok {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid paidAt date")
		return
	}

	entry, rec, err := mc.Ledger.AddEntry(c.Request.Context(), id, services.AddEntryInput{
		Amount:      req.Amount,
		PaymentMode: req.PaymentMode,
		Notes:       req.Notes,
		PaidAt:      paidAt,
		RecordedBy:  utils.CallerID(c),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"entry":           entry,
		"paidAmount":      rec.PaidAmount,
		"remainingAmount": rec.RemainingAmount,
	})
}

func (mc *MemberController) GetPayments(c *gin.Context) {
	rec, ok := mc.loadVisible(c)
	if !ok {
		return
	}
	view, err := mc.Ledger.ListEntries(c.Request.Context(), rec.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (mc *MemberController) DeletePayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	entry, rec, err := mc.Ledger.DeleteEntry(c.Request.Context(), id, c.Param("entryId"), utils.IsPrivileged(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":         "Payment deleted successfully",
		"entry":           entry,
		"paidAmount":      rec.PaidAmount,
		"remainingAmount": rec.RemainingAmount,
	})
}
