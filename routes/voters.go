package routes

import (
	"fmt"
	"net/http"
	"strings"

	"campusvote/middleware"
	"campusvote/models"
	"campusvote/utils"
	"campusvote/voting"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupVoterSelfRoutes registers the routes a voter uses on their own account.
func SetupVoterSelfRoutes(router gin.IRouter, conn *gorm.DB) {
	router.GET("/voters/me", getCurrentVoter(conn))
	router.PUT("/voters/me/device-token", updateDeviceToken(conn))
}

// SetupVoterRoutes registers voter management routes.
func SetupVoterRoutes(router gin.IRouter, conn *gorm.DB) {
	router.GET("/voters", getVoters(conn))
	router.GET("/voters/:id", getVoterByID(conn))
	router.POST("/voters", createVoter(conn))
	router.PUT("/voters/:id", updateVoter(conn))
	router.DELETE("/voters/:id", deleteVoter(conn))
}

func getVoters(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		departmentID, ok := queryID(c, "departmentId")
		if !ok {
			return
		}
		courseID, ok := queryID(c, "courseId")
		if !ok {
			return
		}
		p := pagination(c)

		q := conn.WithContext(c.Request.Context()).Model(&models.Voter{})
		if departmentID != nil {
			q = q.Where("department_id = ?", *departmentID)
		}
		if courseID != nil {
			q = q.Where("course_id = ?", *courseID)
		}
		if search := strings.TrimSpace(c.Query("q")); search != "" {
			like := "%" + strings.ToLower(search) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(student_id) LIKE ?", like, like, like)
		}
		q = q.Session(&gorm.Session{})

		var total int64
		if err := q.Count(&total).Error; err != nil {
			respondError(c, err)
			return
		}
		voters := []models.Voter{}
		if err := q.Order("name, id").Offset(p.offset()).Limit(p.Limit).Find(&voters).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"voters": voters,
			"total":  total,
			"page":   p.Page,
			"limit":  p.Limit,
		})
	}
}

func getVoterByID(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var voter models.Voter
		if err := conn.WithContext(c.Request.Context()).First(&voter, id).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, voter)
	}
}

func getCurrentVoter(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := middleware.SubjectID(c)
		var voter models.Voter
		if err := conn.WithContext(c.Request.Context()).First(&voter, id).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, voter)
	}
}

// updateDeviceToken registers the caller's device for push notifications.
func updateDeviceToken(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DeviceTokenRequest
		if !bindJSON(c, &req) {
			return
		}
		deviceToken := strings.TrimSpace(req.DeviceToken)
		if deviceToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Device token cannot be empty"})
			return
		}
		id := middleware.SubjectID(c)
		result := conn.WithContext(c.Request.Context()).
			Model(&models.Voter{}).
			Where("id = ?", id).
			Update("device_token", deviceToken)
		if result.Error != nil {
			respondError(c, result.Error)
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Voter with ID %d not found", id)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Device token updated successfully"})
	}
}

func applyVoterRequest(voter *models.Voter, req models.VoterRequest) error {
	voter.Name = strings.TrimSpace(req.Name)
	voter.Email = strings.ToLower(strings.TrimSpace(req.Email))
	voter.StudentID = strings.TrimSpace(req.StudentID)
	voter.DepartmentID = req.DepartmentID
	voter.CourseID = req.CourseID
	if req.Password == "" {
		return nil
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return fmt.Errorf("%w: %v", voting.ErrValidation, err)
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return err
	}
	voter.PasswordHash = hash
	return nil
}

func createVoter(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.VoterRequest
		if !bindJSON(c, &req) {
			return
		}
		var voter models.Voter
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := checkAffiliation(tx, req.DepartmentID, req.CourseID); err != nil {
				return err
			}
			if err := applyVoterRequest(&voter, req); err != nil {
				return err
			}
			return tx.Create(&voter).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, voter)
	}
}

func updateVoter(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req models.VoterRequest
		if !bindJSON(c, &req) {
			return
		}
		var voter models.Voter
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&voter, id).Error; err != nil {
				return err
			}
			if err := checkAffiliation(tx, req.DepartmentID, req.CourseID); err != nil {
				return err
			}
			if err := applyVoterRequest(&voter, req); err != nil {
				return err
			}
			return tx.Save(&voter).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, voter)
	}
}

func deleteVoter(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var voter models.Voter
			if err := tx.First(&voter, id).Error; err != nil {
				return err
			}
			votes, err := countReferences(tx, &models.Vote{}, "voter_id = ?", id)
			if err != nil {
				return err
			}
			if votes > 0 {
				return fmt.Errorf("%w: voter %d has cast votes", errInUse, id)
			}
			if err := tx.Where("voter_id = ?", id).Delete(&models.BallotReceipt{}).Error; err != nil {
				return err
			}
			return tx.Delete(&voter).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Voter deleted"})
	}
}
