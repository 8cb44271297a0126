package routes

import (
	"fmt"
	"net/http"
	"strings"

	"campusvote/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupPositionRoutes registers ballot position management routes.
func SetupPositionRoutes(router gin.IRouter, conn *gorm.DB) {
	router.GET("/positions", getPositions(conn))
	router.GET("/positions/:id", getPositionByID(conn))
	router.POST("/positions", createPosition(conn))
	router.PUT("/positions/:id", updatePosition(conn))
	router.DELETE("/positions/:id", deletePosition(conn))
}

func getPositions(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		positions := []models.Position{}
		if err := conn.WithContext(c.Request.Context()).Order("display_order, id").Find(&positions).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
	}
}

func getPositionByID(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var position models.Position
		if err := conn.WithContext(c.Request.Context()).First(&position, id).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, position)
	}
}

func createPosition(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.PositionRequest
		if !bindJSON(c, &req) {
			return
		}
		position := models.Position{
			Name:         strings.TrimSpace(req.Name),
			Description:  req.Description,
			VoteLimit:    req.VoteLimit,
			DisplayOrder: req.DisplayOrder,
		}
		if err := conn.WithContext(c.Request.Context()).Create(&position).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, position)
	}
}

// updatePosition refuses to change the vote limit while the position is on
// the ballot of an election that has started, and never lowers it below the
// votes one voter already cast on one ballot.
func updatePosition(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req models.PositionRequest
		if !bindJSON(c, &req) {
			return
		}
		var position models.Position
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&position, id).Error; err != nil {
				return err
			}
			if req.VoteLimit != position.VoteLimit {
				n, err := ballotsUsing(tx, id, models.StatusActive, models.StatusPaused, models.StatusStopped)
				if err != nil {
					return err
				}
				if n > 0 {
					return fmt.Errorf("%w: vote limit is fixed once voting has started", errConflict)
				}
			}
			if req.VoteLimit < position.VoteLimit {
				most, err := maxVotesPerBallot(tx, id)
				if err != nil {
					return err
				}
				if most > int64(req.VoteLimit) {
					return fmt.Errorf("%w: a voter already cast %d votes for position %d, above the new limit of %d",
						errConflict, most, id, req.VoteLimit)
				}
			}
			position.Name = strings.TrimSpace(req.Name)
			position.Description = req.Description
			position.VoteLimit = req.VoteLimit
			position.DisplayOrder = req.DisplayOrder
			return tx.Save(&position).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, position)
	}
}

func deletePosition(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		err := conn.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var position models.Position
			if err := tx.First(&position, id).Error; err != nil {
				return err
			}
			votes, err := countReferences(tx, &models.Vote{}, "position_id = ?", id)
			if err != nil {
				return err
			}
			if votes > 0 {
				return fmt.Errorf("%w: position %d has votes", errInUse, id)
			}
			// Ended ballots are archived and keep their positions.
			ballots, err := ballotsUsing(tx, id, models.StatusPending, models.StatusActive,
				models.StatusPaused, models.StatusStopped, models.StatusEnded)
			if err != nil {
				return err
			}
			if ballots > 0 {
				return fmt.Errorf("%w: position %d is on an election ballot", errInUse, id)
			}
			if err := tx.Where("position_id = ?", id).Delete(&models.Candidate{}).Error; err != nil {
				return err
			}
			return tx.Delete(&position).Error
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Position deleted"})
	}
}

// ballotsUsing counts elections in the given statuses that have the position
// on their ballot.
func ballotsUsing(tx *gorm.DB, positionID uint, statuses ...models.ElectionStatus) (int64, error) {
	var n int64
	err := tx.Model(&models.ElectionPosition{}).
		Joins("JOIN elections ON elections.id = election_positions.election_id").
		Where("election_positions.position_id = ? AND elections.status IN ?", positionID, statuses).
		Count(&n).Error
	return n, err
}

// maxVotesPerBallot returns the most votes any voter cast for the position in
// a single election.
func maxVotesPerBallot(tx *gorm.DB, positionID uint) (int64, error) {
	var most int64
	perBallot := tx.Model(&models.Vote{}).
		Select("COUNT(*) AS cnt").
		Where("position_id = ?", positionID).
		Group("voter_id, election_id")
	err := tx.Table("(?) AS per_ballot", perBallot).Select("COALESCE(MAX(cnt), 0)").Scan(&most).Error
	return most, err
}
