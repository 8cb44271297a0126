package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"campusvote/models"
	"campusvote/voting"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupCandidateRoutes registers candidate management routes.
func SetupCandidateRoutes(router gin.IRouter, conn *gorm.DB) {
	router.GET("/candidates", getCandidates(conn))
	router.GET("/candidates/:id", getCandidateByID(conn))
	router.POST("/candidates", createCandidate(conn))
	router.PUT("/candidates/:id", updateCandidate(conn))
	router.DELETE("/candidates/:id", deleteCandidate(conn))
}

func getCandidates(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		positionID, ok := queryID(c, "positionId")
		if !ok {
			return
		}
		departmentID, ok := queryID(c, "departmentId")
		if !ok {
			return
		}
		p := pagination(c)

		q := conn.WithContext(c.Request.Context()).Model(&models.Candidate{})
		if positionID != nil {
			q = q.Where("position_id = ?", *positionID)
		}
		if departmentID != nil {
			q = q.Where("department_id = ?", *departmentID)
		}
		if search := strings.TrimSpace(c.Query("q")); search != "" {
			q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
		}
		q = q.Session(&gorm.Session{})

		var total int64
		if err := q.Count(&total).Error; err != nil {
			respondError(c, err)
			return
		}
		candidates := []models.Candidate{}
		err := q.Preload("Position").Order("name, id").Offset(p.offset()).Limit(p.Limit).Find(&candidates).Error
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"candidates": candidates,
			"total":      total,
			"page":       p.Page,
			"limit":      p.Limit,
		})
	}
}

func getCandidateByID(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var candidate models.Candidate
		if err := conn.WithContext(c.Request.Context()).Preload("Position").First(&candidate, id).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, candidate)
	}
}

// checkCandidateRefs verifies the referenced position, department and course.
func checkCandidateRefs(tx *gorm.DB, req models.CandidateRequest) error {
	if err := exists(tx, &models.Position{}, req.PositionID, "position"); err != nil {
		return err
	}
	return checkAffiliation(tx, req.DepartmentID, req.CourseID)
}

// checkAffiliation verifies an optional department and course, and that the
// course belongs to the department when both are given.
func checkAffiliation(tx *gorm.DB, departmentID, courseID *uint) error {
	if departmentID != nil {
		if err := exists(tx, &models.Department{}, *departmentID, "department"); err != nil {
			return err
		}
	}
	if courseID != nil {
		var course models.Course
		if err := tx.First(&course, *courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: course %d does not exist", voting.ErrValidation, *courseID)
			}
			return err
		}
		if departmentID != nil && course.DepartmentID != *departmentID {
			return fmt.Errorf("%w: course %d is not part of department %d", voting.ErrValidation, *courseID, *departmentID)
		}
	}
	return nil
}

func exists(tx *gorm.DB, model any, id uint, what string) error {
	n, err := countReferences(tx, model, "id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d does not exist", voting.ErrValidation, what, id)
	}
	return nil
}

func createCandidate(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CandidateRequest
		if !bindJSON(c, &req) {
			return
		}
		candidate := models.Candidate{
			Name:         strings.TrimSpace(req.Name),
			PositionID:   req.PositionID,
			DepartmentID: req.DepartmentID,
			CourseID:     req.CourseID,
			PhotoURL:     req.PhotoURL,
			Description:  req.Description,
		}
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := checkCandidateRefs(tx, req); err != nil {
				return err
			}
			return tx.Create(&candidate).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, candidate)
	}
}

func updateCandidate(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req models.CandidateRequest
		if !bindJSON(c, &req) {
			return
		}
		var candidate models.Candidate
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&candidate, id).Error; err != nil {
				return err
			}
			if err := checkCandidateRefs(tx, req); err != nil {
				return err
			}
			if req.PositionID != candidate.PositionID {
				assigned, err := countReferences(tx, &models.ElectionCandidate{}, "candidate_id = ?", id)
				if err != nil {
					return err
				}
				if assigned > 0 {
					return fmt.Errorf("%w: candidate %d is on a ballot and cannot change position", errConflict, id)
				}
			}
			candidate.Name = strings.TrimSpace(req.Name)
			candidate.PositionID = req.PositionID
			candidate.DepartmentID = req.DepartmentID
			candidate.CourseID = req.CourseID
			candidate.PhotoURL = req.PhotoURL
			candidate.Description = req.Description
			return tx.Save(&candidate).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, candidate)
	}
}

// deleteCandidate refuses candidates with votes or on a ballot that has
// started or ended. Pending ballots drop the candidate.
func deleteCandidate(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var candidate models.Candidate
			if err := tx.First(&candidate, id).Error; err != nil {
				return err
			}
			votes, err := countReferences(tx, &models.Vote{}, "candidate_id = ?", id)
			if err != nil {
				return err
			}
			if votes > 0 {
				return fmt.Errorf("%w: candidate %d has votes", errInUse, id)
			}
			var started int64
			err = tx.Model(&models.ElectionCandidate{}).
				Joins("JOIN elections ON elections.id = election_candidates.election_id").
				Where("election_candidates.candidate_id = ? AND elections.status IN ?", id,
					[]models.ElectionStatus{models.StatusActive, models.StatusPaused, models.StatusStopped, models.StatusEnded}).
				Count(&started).Error
			if err != nil {
				return err
			}
			if started > 0 {
				return fmt.Errorf("%w: candidate %d is on a ballot that has started or ended", errInUse, id)
			}
			if err := tx.Where("candidate_id = ?", id).Delete(&models.ElectionCandidate{}).Error; err != nil {
				return err
			}
			return tx.Delete(&candidate).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Candidate deleted"})
	}
}
