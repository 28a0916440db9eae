package controllers

import (
	"errors"
	"log"
	"net/http"

	"fitsense-backend/services"
	"fitsense-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondServiceError maps service sentinels to HTTP statuses. Anything
// unrecognised is logged and reported as a 500 without details.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrEntryNotFound),
		errors.Is(err, services.ErrPlanNotFound):
		utils.RespondWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidInput):
		utils.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrLinkedRecord):
		utils.RespondWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrDuplicateEmail),
		errors.Is(err, services.ErrDuplicatePhone),
		errors.Is(err, services.ErrIdentityConflict),
		errors.Is(err, services.ErrConcurrentModification),
		errors.Is(err, services.ErrNoActiveMembership):
		utils.RespondWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
	default:
		log.Printf("[API] %s %s: %v", c.Request.Method, c.FullPath(), err)
		utils.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

func callerUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(utils.CallerID(c))
	if err != nil {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return uuid.Nil, false
	}
	return id, true
}
