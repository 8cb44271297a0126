package routes

import (
	"fmt"
	"net/http"
	"strings"

	"campusvote/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupDepartmentRoutes registers department and course management routes.
func SetupDepartmentRoutes(router gin.IRouter, conn *gorm.DB) {
	router.GET("/departments", getDepartments(conn))
	router.GET("/departments/:id", getDepartmentByID(conn))
	router.POST("/departments", createDepartment(conn))
	router.PUT("/departments/:id", updateDepartment(conn))
	router.DELETE("/departments/:id", deleteDepartment(conn))

	router.GET("/departments/:id/courses", getCourses(conn))
	router.POST("/departments/:id/courses", createCourse(conn))
	router.PUT("/courses/:id", updateCourse(conn))
	router.DELETE("/courses/:id", deleteCourse(conn))
}

func getDepartments(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		departments := []models.Department{}
		if err := conn.WithContext(c.Request.Context()).Order("name").Find(&departments).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"departments": departments, "count": len(departments)})
	}
}

func getDepartmentByID(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var department models.Department
		if err := conn.WithContext(c.Request.Context()).First(&department, id).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, department)
	}
}

func createDepartment(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NameRequest
		if !bindJSON(c, &req) {
			return
		}
		department := models.Department{Name: strings.TrimSpace(req.Name)}
		if err := conn.WithContext(c.Request.Context()).Create(&department).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, department)
	}
}

func updateDepartment(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req models.NameRequest
		if !bindJSON(c, &req) {
			return
		}
		var department models.Department
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&department, id).Error; err != nil {
				return err
			}
			department.Name = strings.TrimSpace(req.Name)
			return tx.Save(&department).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, department)
	}
}

func deleteDepartment(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var department models.Department
			if err := tx.First(&department, id).Error; err != nil {
				return err
			}
			for what, model := range map[string]any{
				"courses":    &models.Course{},
				"voters":     &models.Voter{},
				"candidates": &models.Candidate{},
			} {
				n, err := countReferences(tx, model, "department_id = ?", id)
				if err != nil {
					return err
				}
				if n > 0 {
					return fmt.Errorf("%w: department %d still has %s", errInUse, id, what)
				}
			}
			return tx.Delete(&department).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Department deleted"})
	}
}

func getCourses(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		q := conn.WithContext(c.Request.Context())
		var department models.Department
		if err := q.First(&department, id).Error; err != nil {
			respondError(c, err)
			return
		}
		courses := []models.Course{}
		if err := q.Where("department_id = ?", id).Order("name").Find(&courses).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"department": department, "courses": courses})
	}
}

func createCourse(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req models.NameRequest
		if !bindJSON(c, &req) {
			return
		}
		course := models.Course{Name: strings.TrimSpace(req.Name), DepartmentID: id}
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var department models.Department
			if err := tx.First(&department, id).Error; err != nil {
				return err
			}
			return tx.Create(&course).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, course)
	}
}

func updateCourse(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req models.NameRequest
		if !bindJSON(c, &req) {
			return
		}
		var course models.Course
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&course, id).Error; err != nil {
				return err
			}
			course.Name = strings.TrimSpace(req.Name)
			return tx.Save(&course).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, course)
	}
}

func deleteCourse(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var course models.Course
			if err := tx.First(&course, id).Error; err != nil {
				return err
			}
			for what, model := range map[string]any{
				"voters":     &models.Voter{},
				"candidates": &models.Candidate{},
			} {
				n, err := countReferences(tx, model, "course_id = ?", id)
				if err != nil {
					return err
				}
				if n > 0 {
					return fmt.Errorf("%w: course %d still has %s", errInUse, id, what)
				}
			}
			return tx.Delete(&course).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Course deleted"})
	}
}
