package routes

import (
	"campusvote/handlers"
	"campusvote/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAuthRoutes registers login and password reset routes. None of them
// require a token.
func RegisterAuthRoutes(router *gin.RouterGroup, conn *gorm.DB, tokens *middleware.TokenIssuer, reset *handlers.PasswordReset) {
	router.POST("/admin/login", adminLogin(conn, tokens))
	router.POST("/voter/login", voterLogin(conn, tokens))

	router.POST("/forgot-password", reset.RequestPasswordReset)
	router.POST("/verify-reset-code", reset.VerifyResetCode)
	router.POST("/reset-password", reset.ResetPassword)
}
