package routes

import (
	"net/http"

	"campusvote/models"
	"campusvote/voting"

	"github.com/gin-gonic/gin"
)

// SetupElectionReadRoutes registers the election reads open to every role.
func SetupElectionReadRoutes(router gin.IRouter, elections *voting.ElectionManager) {
	router.GET("/elections/current", getCurrentElection(elections))
	router.GET("/elections/:id/positions", getElectionPositions(elections))
	router.GET("/elections/:id/candidate-assignments", getCandidateAssignments(elections))
}

// SetupElectionAdminRoutes registers election management routes.
func SetupElectionAdminRoutes(router gin.IRouter, elections *voting.ElectionManager) {
	router.GET("/elections", getElections(elections))
	router.POST("/elections", createElection(elections))
	router.GET("/elections/history", getElectionHistory(elections))
	router.GET("/elections/:id", getElectionByID(elections))
	router.PUT("/elections/:id", updateElection(elections))
	router.DELETE("/elections/:id", deleteElection(elections))
	router.PUT("/elections/:id/candidate-assignments", setCandidateAssignments(elections))
	router.GET("/elections/:id/results", getElectionResults(elections))

	for _, action := range models.Actions {
		router.POST("/elections/:id/"+string(action), transitionElection(elections, action))
	}
}

func getElections(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var status models.ElectionStatus
		if raw := c.Query("status"); raw != "" {
			parsed, err := models.ParseElectionStatus(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			status = parsed
		}
		list, err := elections.List(c.Request.Context(), status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"elections": list, "count": len(list)})
	}
}

func getCurrentElection(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		election, err := elections.Current(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, election)
	}
}

func getElectionHistory(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := elections.History(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"elections": list, "count": len(list)})
	}
}

func getElectionByID(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		election, err := elections.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, election)
	}
}

func createElection(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ElectionRequest
		if !bindJSON(c, &req) {
			return
		}
		election, err := elections.Create(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, election)
	}
}

func updateElection(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req models.ElectionUpdateRequest
		if !bindJSON(c, &req) {
			return
		}
		election, err := elections.Update(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, election)
	}
}

func deleteElection(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := elections.Delete(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Election deleted"})
	}
}

func transitionElection(elections *voting.ElectionManager, action models.ElectionAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		election, err := elections.Apply(c.Request.Context(), id, action)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, election)
	}
}

func getElectionPositions(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		positions, err := elections.Positions(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"electionId": id, "positions": positions})
	}
}

func getCandidateAssignments(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		assignments, err := elections.CandidateAssignments(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"electionId": id, "positions": assignments})
	}
}

func setCandidateAssignments(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req models.BallotRequest
		if !bindJSON(c, &req) {
			return
		}
		assignments, err := elections.SetBallot(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"electionId": id, "positions": assignments})
	}
}

func getElectionResults(elections *voting.ElectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		results, err := elections.Results(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}
