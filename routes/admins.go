package routes

import (
	"fmt"
	"net/http"
	"strings"

	"campusvote/db"
	"campusvote/middleware"
	"campusvote/models"
	"campusvote/utils"
	"campusvote/voting"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupAdminRoutes registers admin account management. Callers must gate it
// to superadmins.
func SetupAdminRoutes(router gin.IRouter, conn *gorm.DB) {
	router.GET("/admins", getAdmins(conn))
	router.GET("/admins/:id", getAdminByID(conn))
	router.POST("/admins", createAdmin(conn))
	router.PUT("/admins/:id", updateAdmin(conn))
	router.DELETE("/admins/:id", deleteAdmin(conn))
}

func getAdmins(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		admins := []models.Admin{}
		if err := conn.WithContext(c.Request.Context()).Order("username").Find(&admins).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"admins": admins, "count": len(admins)})
	}
}

func getAdminByID(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var admin models.Admin
		if err := conn.WithContext(c.Request.Context()).First(&admin, id).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, admin)
	}
}

// NewAdmin builds an admin account with a freshly hashed password.
func NewAdmin(req models.AdminRequest) (*models.Admin, error) {
	if err := utils.ValidatePassword(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", voting.ErrValidation, err)
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	return &models.Admin{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         req.Role,
	}, nil
}

func createAdmin(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AdminRequest
		if !bindJSON(c, &req) {
			return
		}
		admin, err := NewAdmin(req)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := conn.WithContext(c.Request.Context()).Create(admin).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, admin)
	}
}

// superadminsRemaining counts superadmins other than id.
func superadminsRemaining(tx *gorm.DB, id uint) (int64, error) {
	return countReferences(tx, &models.Admin{}, "role = ? AND id <> ?", models.RoleSuperAdmin, id)
}

func updateAdmin(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req models.AdminRequest
		if !bindJSON(c, &req) {
			return
		}
		var admin models.Admin
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := db.ForUpdate(tx).First(&admin, id).Error; err != nil {
				return err
			}
			if admin.Role == models.RoleSuperAdmin && req.Role != models.RoleSuperAdmin {
				others, err := superadminsRemaining(tx, id)
				if err != nil {
					return err
				}
				if others == 0 {
					return fmt.Errorf("%w: cannot demote the last superadmin", errConflict)
				}
			}
			admin.Username = strings.TrimSpace(req.Username)
			admin.Email = strings.ToLower(strings.TrimSpace(req.Email))
			admin.Role = req.Role
			if req.Password != "" {
				if err := utils.ValidatePassword(req.Password); err != nil {
					return fmt.Errorf("%w: %v", voting.ErrValidation, err)
				}
				hash, err := utils.HashPassword(req.Password)
				if err != nil {
					return err
				}
				admin.PasswordHash = hash
			}
			return tx.Save(&admin).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, admin)
	}
}

func deleteAdmin(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if id == middleware.SubjectID(c) {
			c.JSON(http.StatusConflict, gin.H{"error": "You cannot delete your own account"})
			return
		}
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var admin models.Admin
			if err := db.ForUpdate(tx).First(&admin, id).Error; err != nil {
				return err
			}
			if admin.Role == models.RoleSuperAdmin {
				others, err := superadminsRemaining(tx, id)
				if err != nil {
					return err
				}
				if others == 0 {
					return fmt.Errorf("%w: cannot delete the last superadmin", errConflict)
				}
			}
			return tx.Delete(&admin).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Admin deleted"})
	}
}
