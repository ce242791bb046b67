package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-service/models"
)

type AuthController struct {
	accounts AccountServiceAPI
}

func NewAuthController(accounts AccountServiceAPI) *AuthController {
	return &AuthController{accounts: accounts}
}

// Register creates a buyer or, with the seller secret, a seller account.
func (h *AuthController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(bindError(err))
		return
	}

	res, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Successfully registered", "user": res})
}

// Login checks the credential and returns a session token.
func (h *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(bindError(err))
		return
	}

	res, err := h.accounts.Authenticate(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Successfully logged in",
		"token":     res.Token,
		"user_type": res.UserType,
		"name":      res.Name,
		"id":        res.ID,
	})
}
