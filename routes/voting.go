package routes

import (
	"errors"
	"net/http"

	"campusvote/middleware"
	"campusvote/models"
	"campusvote/voting"

	"github.com/gin-gonic/gin"
)

// SetupVotingRoutes registers the voter-facing ballot routes. The voter id
// always comes from the access token.
func SetupVotingRoutes(router gin.IRouter, svc *voting.Service) {
	router.GET("/votes/status/:electionId", getElectionVotingStatus(svc.Status))
	router.GET("/votes/status/:electionId/:positionId", getPositionVotingStatus(svc.Status))
	router.POST("/votes/votes-array", submitVotes(svc.Ballots))
}

func submitVotes(ballots *voting.BallotService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SubmitBallotRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := ballots.Submit(c.Request.Context(), middleware.SubjectID(c), req.Votes)
		if errors.Is(err, voting.ErrBallotRejected) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   err.Error(),
				"details": result,
			})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func getPositionVotingStatus(status *voting.StatusQuery) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := paramID(c, "electionId")
		if !ok {
			return
		}
		positionID, ok := paramID(c, "positionId")
		if !ok {
			return
		}
		result, err := status.Position(c.Request.Context(), middleware.SubjectID(c), electionID, positionID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getElectionVotingStatus(status *voting.StatusQuery) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := paramID(c, "electionId")
		if !ok {
			return
		}
		result, err := status.Election(c.Request.Context(), middleware.SubjectID(c), electionID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
