package controllers

import (
	"net/http"

	"fitsense-backend/services"
	"fitsense-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MembershipController covers the plan catalogue and the live membership
// and payment tables of member accounts.
type MembershipController struct {
	Memberships *services.MembershipService
}

func (mc *MembershipController) CreatePlan(c *gin.Context) {
	var input services.CreatePlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	plan, err := mc.Memberships.CreatePlan(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (mc *MembershipController) GetPlans(c *gin.Context) {
	plans, err := mc.Memberships.ListPlans(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

type AssignMembershipRequest struct {
	PlanID    string `json:"planId" binding:"required"`
	StartDate string `json:"startDate"`
}

func (mc *MembershipController) AssignMembership(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AssignMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid plan ID format")
		return
	}
	start, ok := optionalDate(req.StartDate)
	if !ok {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid start date")
		return
	}

	m, err := mc.Memberships.AssignMembership(c.Request.Context(), userID, planID, start)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// RecordLivePayment stores a payment in the live table; the registry
// record is updated by reconciliation.
func (mc *MembershipController) RecordLivePayment(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
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
	input := services.LivePaymentInput{
		Amount:      req.Amount,
		PaymentMode: req.PaymentMode,
		Notes:       req.Notes,
		PaidAt:      paidAt,
	}
	if by, err := uuid.Parse(utils.CallerID(c)); err == nil {
		input.RecordedBy = &by
	}

	payment, err := mc.Memberships.RecordPayment(c.Request.Context(), userID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (mc *MembershipController) GetLivePayments(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if !utils.IsPrivileged(c) && utils.CallerID(c) != userID.String() {
		utils.RespondWithError(c, http.StatusForbidden, "Access to these payments is not allowed")
		return
	}
	payments, err := mc.Memberships.ListPayments(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}
