package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupStaticRoutes serves candidate photos from photoDir under /photos and
// /api/photos. Nothing is served when photoDir is empty.
func SetupStaticRoutes(router *gin.Engine, photoDir string) {
	if photoDir == "" {
		return
	}
	handler := servePhoto(photoDir)
	router.GET("/photos/*path", handler)
	router.GET("/api/photos/*path", handler)
}

func servePhoto(photoDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := filepath.Clean("/" + strings.TrimPrefix(c.Param("path"), "/"))
		filePath := filepath.Join(photoDir, name)

		info, err := os.Stat(filePath)
		if err != nil || info.IsDir() {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		c.Header("Cache-Control", "public, max-age=3600")
		c.File(filePath)
	}
}

// RegisterHealthRoute reports whether the database answers.
func RegisterHealthRoute(router gin.IRouter, conn *gorm.DB) {
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := conn.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
