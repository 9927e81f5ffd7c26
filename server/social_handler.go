package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techagentng/collabhub/models"
	"github.com/techagentng/collabhub/server/response"
)

func (s *Server) handleConnect() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		if err := s.SocialService.Connect(c.Request.Context(), userID, c.Param("userID")); err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Connected", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleDisconnect() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		if err := s.SocialService.Disconnect(c.Request.Context(), userID, c.Param("userID")); err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Disconnected", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleListConnections() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		connections, err := s.SocialService.ListConnections(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Connections retrieved successfully", http.StatusOK, connections, nil)
	}
}

func (s *Server) handleSubmitRating() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		var req models.SubmitRatingRequest
		if err := decode(c, &req); err != nil {
			response.Error(c, err)
			return
		}

		rating, err := s.SocialService.SubmitRating(c.Request.Context(), userID, c.Param("userID"), req.Score, req.Comment)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Rating submitted", http.StatusCreated, rating, nil)
	}
}

// handleListRatings returns the user's ratings together with the running aggregate.
func (s *Server) handleListRatings() gin.HandlerFunc {
	return func(c *gin.Context) {
		ratedID := c.Param("userID")
		ratings, err := s.SocialService.ListRatings(c.Request.Context(), ratedID)
		if err != nil {
			response.Error(c, err)
			return
		}
		agg, err := s.SocialService.GetAggregate(c.Request.Context(), ratedID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Ratings retrieved successfully", http.StatusOK, gin.H{
			"ratings": ratings,
			"average": agg.Average(),
			"count":   agg.Count,
		}, nil)
	}
}
