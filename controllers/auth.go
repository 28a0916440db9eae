package controllers

import (
	"net/http"

	"fitsense-backend/config"
	"fitsense-backend/models"
	"fitsense-backend/services"
	"fitsense-backend/utils"

	"github.com/gin-gonic/gin"
)

type LoginInput struct {
	Identifier string `json:"identifier" binding:"required"` // email or phone
	Password   string `json:"password" binding:"required"`
}

type AuthController struct {
	Accounts *services.AccountService
	Registry *services.RegistryService
	JWT      config.JWTConfig
}

func userResponse(u *models.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"email":     u.Email,
		"phone":     u.Phone,
		"name":      u.Name,
		"role":      u.Role,
		"lastLogin": u.LastLogin,
	}
}

func (ac *AuthController) issueToken(c *gin.Context, u *models.User) (string, bool) {
	token, err := utils.GenerateToken(ac.JWT.Secret, u.ID.String(), string(u.Role), ac.JWT.ExpiryHours)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token")
		return "", false
	}
	c.SetCookie("token", token, ac.JWT.ExpiryHours*3600, "/", "", true, true)
	return token, true
}

func (ac *AuthController) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	user, record, err := ac.Accounts.Register(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	token, ok := ac.issueToken(c, user)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Registration successful",
		"token":    token,
		"user":     userResponse(user),
		"recordId": record.ID,
	})
}

func (ac *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	user, err := ac.Accounts.Authenticate(c.Request.Context(), input.Identifier, input.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	token, ok := ac.issueToken(c, user)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    userResponse(user),
	})
}

// Me returns the caller's account and, for members, their ledger record.
func (ac *AuthController) Me(c *gin.Context) {
	userID, ok := callerUUID(c)
	if !ok {
		return
	}
	user, err := ac.Accounts.Get(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := gin.H{"user": userResponse(user)}
	if record, err := ac.Registry.GetByUser(c.Request.Context(), userID); err == nil {
		resp["record"] = record
	}
	c.JSON(http.StatusOK, resp)
}

func (ac *AuthController) Logout(c *gin.Context) {
	c.SetCookie("token", "", -1, "/", "", true, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
