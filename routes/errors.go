package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"campusvote/db"
	"campusvote/middleware"
	"campusvote/voting"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	errInUse    = errors.New("resource is still referenced")
	errConflict = errors.New("conflict")
)

// respondError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var transitionErr *voting.TransitionError
	switch {
	case errors.Is(err, voting.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, voting.ErrValidation), errors.Is(err, voting.ErrEmptyBallot):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &transitionErr),
		errors.Is(err, voting.ErrOpenElectionExists),
		errors.Is(err, voting.ErrElectionActive),
		errors.Is(err, voting.ErrElectionLocked),
		errors.Is(err, voting.ErrElectionNotActive),
		errors.Is(err, voting.ErrConcurrentSubmission),
		errors.Is(err, errInUse),
		errors.Is(err, errConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case db.IsUniqueViolation(err):
		c.JSON(http.StatusConflict, gin.H{"error": "A record with the same unique value already exists"})
	default:
		slog.ErrorContext(c.Request.Context(), "request failed",
			"request_id", middleware.RequestID(c),
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return false
	}
	return true
}

// paramID parses a positive integer path parameter, answering 400 otherwise.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// queryID parses an optional positive integer query parameter.
func queryID(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return nil, false
	}
	v := uint(id)
	return &v, true
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (p page) offset() int {
	return (p.Page - 1) * p.Limit
}

// pagination reads page and limit, clamping them to sane values.
func pagination(c *gin.Context) page {
	p := page{Page: 1, Limit: defaultPageSize}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = min(v, maxPageSize)
	}
	return p
}

// countReferences reports how many rows of model match the condition.
func countReferences(conn *gorm.DB, model any, query string, args ...any) (int64, error) {
	var n int64
	err := conn.Model(model).Where(query, args...).Count(&n).Error
	return n, err
}
