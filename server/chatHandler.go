package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techagentng/collabhub/models"
	"github.com/techagentng/collabhub/server/response"
)

func (s *Server) handleStartConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		var req models.StartConversationRequest
		if err := decode(c, &req); err != nil {
			response.Error(c, err)
			return
		}

		conv, err := s.ChatService.EnsureConversation(c.Request.Context(), userID, req.OtherID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Conversation ready", http.StatusOK, conv, nil)
	}
}

func (s *Server) handleListConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		convs, err := s.ChatService.ListConversationSummaries(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Conversations retrieved successfully", http.StatusOK, convs, nil)
	}
}

func (s *Server) handleListMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		conversationID := c.Param("conversationID")
		if _, err := s.ChatService.GetConversation(c.Request.Context(), conversationID, userID); err != nil {
			response.Error(c, err)
			return
		}

		messages, err := s.ChatService.ListMessages(c.Request.Context(), conversationID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Messages retrieved successfully", http.StatusOK, messages, nil)
	}
}

func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		var req models.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		msg, err := s.ChatService.SendMessage(c.Request.Context(), c.Param("conversationID"), userID, req.Body)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Message sent", http.StatusCreated, msg, nil)
	}
}

// handleSendDirectMessage sends to a user by id, opening the conversation on first contact.
func (s *Server) handleSendDirectMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		var req models.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		msg, err := s.ChatService.SendDirectMessage(c.Request.Context(), userID, c.Param("userID"), req.Body)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Message sent", http.StatusCreated, msg, nil)
	}
}

func (s *Server) handleRegisterDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		var req models.RegisterDeviceRequest
		if err := decode(c, &req); err != nil {
			response.Error(c, err)
			return
		}

		if s.NotificationService == nil {
			response.JSON(c, "Push notifications are disabled", http.StatusOK, nil, nil)
			return
		}
		if err := s.NotificationService.RegisterDevice(c.Request.Context(), userID, req.Token); err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Device registered", http.StatusCreated, nil, nil)
	}
}
