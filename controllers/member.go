package controllers

import (
	"net/http"

	"fitsense-backend/models"
	"fitsense-backend/services"
	"fitsense-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// MemberController serves the member registry, including walk-ins that
// never signed up.
type MemberController struct {
	Registry *services.RegistryService
	Ledger   *services.LedgerService
}

// loadVisible fetches a record the caller may read: admins see every
// record, members only their own.
func (mc *MemberController) loadVisible(c *gin.Context) (*models.MemberRecord, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}
	rec, err := mc.Registry.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return nil, false
	}
	if !utils.IsPrivileged(c) && (rec.UserID == nil || rec.UserID.String() != utils.CallerID(c)) {
		utils.RespondWithError(c, http.StatusForbidden, "Access to this member record is not allowed")
		return nil, false
	}
	return rec, true
}

func (mc *MemberController) CreateMember(c *gin.Context) {
	var input services.CreateMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	rec, err := mc.Registry.Create(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// GetMembers lists records with optional search, signedUp filter and paging.
func (mc *MemberController) GetMembers(c *gin.Context) {
	filter := services.ListMembersFilter{
		Search: c.Query("search"),
		Limit:  cast.ToInt(c.DefaultQuery("limit", "50")),
		Offset: cast.ToInt(c.DefaultQuery("offset", "0")),
	}
	if v := c.Query("signedUp"); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid signedUp filter")
			return
		}
		filter.SignedUp = &b
	}

	records, total, err := mc.Registry.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"members": records,
		"total":   total,
	})
}

func (mc *MemberController) GetMember(c *gin.Context) {
	rec, ok := mc.loadVisible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (mc *MemberController) UpdateMember(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input services.UpdateMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	rec, err := mc.Registry.Update(c.Request.Context(), id, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (mc *MemberController) DeleteMember(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := mc.Registry.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member deleted successfully"})
}

type AssignPlanRequest struct {
	PlanID       string `json:"planId" binding:"required"`
	KeepPayments bool   `json:"keepPayments"`
	StartDate    string `json:"startDate"`
}

func (mc *MemberController) AssignPlan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AssignPlanRequest
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
	input := services.AssignPlanInput{PlanID: planID, KeepPayments: req.KeepPayments, StartDate: start}

	rec, err := mc.Ledger.AssignPlan(c.Request.Context(), id, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type CancelPlanRequest struct {
	ResetPayments bool `json:"resetPayments"`
}

func (mc *MemberController) CancelPlan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req CancelPlanRequest
	// an empty body means no reset
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}
	}
	rec, err := mc.Ledger.CancelPlan(c.Request.Context(), id, req.ResetPayments)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
