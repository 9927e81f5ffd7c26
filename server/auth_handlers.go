package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techagentng/collabhub/models"
	"github.com/techagentng/collabhub/server/response"
)

func (s *Server) handleSignup() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		var req models.SignupRequest
		if err := decode(c, &req); err != nil {
			response.Error(c, err)
			return
		}

		user, err := s.ProfileService.Signup(c.Request.Context(), userID, &req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Signup successful", http.StatusCreated, user, nil)
	}
}

func (s *Server) handleShowProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		user, err := s.ProfileService.GetUser(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "User details retrieved successfully", http.StatusOK, user, nil)
	}
}

func (s *Server) handleEditUserProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		var req models.EditProfileRequest
		if err := decode(c, &req); err != nil {
			response.Error(c, err)
			return
		}

		user, err := s.ProfileService.UpdateProfile(c.Request.Context(), userID, &req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Profile updated successfully", http.StatusOK, user, nil)
	}
}

// handleGetUserProfile returns another user's public profile.
func (s *Server) handleGetUserProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := s.ProfileService.GetProfile(c.Request.Context(), c.Param("userID"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "User profile retrieved successfully", http.StatusOK, profile, nil)
	}
}
