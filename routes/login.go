package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"campusvote/middleware"
	"campusvote/models"
	"campusvote/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type adminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type voterLoginRequest struct {
	// Identifier is a student id or an email address
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// adminLogin accepts a username or email.
func adminLogin(conn *gorm.DB, tokens *middleware.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req adminLoginRequest
		if !bindJSON(c, &req) {
			return
		}
		var admin models.Admin
		name := strings.TrimSpace(req.Username)
		err := conn.WithContext(c.Request.Context()).
			Where("username = ? OR LOWER(email) = ?", name, strings.ToLower(name)).
			First(&admin).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if !checkPassword(c, conn, &admin, req.Password, admin.PasswordHash) {
			return
		}

		token, expires, err := tokens.Issue(admin.ID, admin.Role)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"expiresAt": expires,
			"role":      admin.Role,
			"admin":     admin,
		})
	}
}

func voterLogin(conn *gorm.DB, tokens *middleware.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req voterLoginRequest
		if !bindJSON(c, &req) {
			return
		}
		var voter models.Voter
		id := strings.TrimSpace(req.Identifier)
		err := conn.WithContext(c.Request.Context()).
			Where("student_id = ? OR LOWER(email) = ?", id, strings.ToLower(id)).
			First(&voter).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if voter.PasswordHash == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No password set for this account, use forgot password"})
			return
		}
		if !checkPassword(c, conn, &voter, req.Password, voter.PasswordHash) {
			return
		}

		token, expires, err := tokens.Issue(voter.ID, models.RoleVoter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"expiresAt": expires,
			"role":      models.RoleVoter,
			"voter":     voter,
		})
	}
}

// checkPassword verifies the password and upgrades legacy hashes. It writes
// the 401 response itself when the password does not match.
func checkPassword(c *gin.Context, conn *gorm.DB, account any, password, hash string) bool {
	ok, err := utils.VerifyPassword(password, hash)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "unreadable password hash", "error", err)
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return false
	}
	if utils.NeedsRehash(hash) {
		if upgraded, err := utils.HashPassword(password); err == nil {
			if err := conn.WithContext(c.Request.Context()).Model(account).Update("password_hash", upgraded).Error; err != nil {
				slog.WarnContext(c.Request.Context(), "failed to upgrade password hash", "error", err)
			}
		}
	}
	return true
}
