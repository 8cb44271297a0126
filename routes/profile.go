package routes

import (
	"fmt"
	"net/http"

	"campusvote/middleware"
	"campusvote/models"
	"campusvote/utils"
	"campusvote/voting"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

/**
 * SetupProfileRoutes registers routes acting on the caller's own account.
 *
 * Endpoints:
 * 1. PUT /api/profile/change-password
 *    - Changes the password of the admin or voter named by the access token
 *    - Requires the current and the new password in the request body
 */
func SetupProfileRoutes(router gin.IRouter, conn *gorm.DB) {
	router.PUT("/profile/change-password", changePassword(conn))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

/**
 * changePassword handles changing the caller's password.
 *
 * Returns:
 *   - 200 OK: Password changed successfully
 *   - 400 Bad Request: Missing fields or a new password that is too short
 *   - 401 Unauthorized: Current password is incorrect
 *   - 404 Not Found: The account no longer exists
 */
func changePassword(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changePasswordRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := utils.ValidatePassword(req.NewPassword); err != nil {
			respondError(c, fmt.Errorf("%w: %v", voting.ErrValidation, err))
			return
		}

		var account any
		var hash *string
		switch middleware.Role(c) {
		case models.RoleVoter:
			voter := &models.Voter{}
			account, hash = voter, &voter.PasswordHash
		default:
			admin := &models.Admin{}
			account, hash = admin, &admin.PasswordHash
		}

		q := conn.WithContext(c.Request.Context())
		if err := q.First(account, middleware.SubjectID(c)).Error; err != nil {
			respondError(c, err)
			return
		}
		ok, err := utils.VerifyPassword(req.CurrentPassword, *hash)
		if err != nil || !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
			return
		}
		newHash, err := utils.HashPassword(req.NewPassword)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := q.Model(account).Update("password_hash", newHash).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
	}
}
