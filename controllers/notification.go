package controllers

import (
	"net/http"

	"fitsense-backend/services"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	Accounts *services.AccountService
}

func (nc *NotificationController) GetNotifications(c *gin.Context) {
	userID, ok := callerUUID(c)
	if !ok {
		return
	}
	list, err := nc.Accounts.ListNotifications(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	userID, ok := callerUUID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := nc.Accounts.MarkNotificationRead(c.Request.Context(), userID, id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
