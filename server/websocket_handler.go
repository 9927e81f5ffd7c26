package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/models"
	"github.com/techagentng/collabhub/realtime"
	"github.com/techagentng/collabhub/server/response"
	"github.com/techagentng/collabhub/services/chatid"
)

const (
	frameMessages      = "messages"
	frameConversations = "conversations"
	frameError         = "error"
)

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := s.Config.AccessControlAllowOrigin
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowed == "" || allowed == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowed
		},
	}
}

// handleConversationListSocket streams the caller's conversation list.
func (s *Server) handleConversationListSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		s.serveSocket(c, userID, func(conn *realtime.Connection, onError realtime.ErrorHandler) *realtime.Subscription {
			return s.Engine.SubscribeConversationList(c.Request.Context(), userID, func(list []models.Conversation) {
				_ = conn.SendFrame(realtime.Frame{Type: frameConversations, Data: list})
			}, onError)
		})
	}
}

// handleMessagesSocket streams one conversation's messages to a participant.
func (s *Server) handleMessagesSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		conversationID := c.Param("conversationID")
		a, b, err := chatid.Participants(conversationID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if userID != a && userID != b {
			response.Error(c, errs.ErrNotAParticipant)
			return
		}

		s.serveSocket(c, userID, func(conn *realtime.Connection, onError realtime.ErrorHandler) *realtime.Subscription {
			return s.Engine.SubscribeMessages(c.Request.Context(), conversationID, func(ev realtime.MessageEvent) {
				_ = conn.SendFrame(realtime.Frame{Type: frameMessages, Data: ev})
			}, onError)
		})
	}
}

type subscribeFunc func(conn *realtime.Connection, onError realtime.ErrorHandler) *realtime.Subscription

// serveSocket upgrades the request and keeps the subscription alive for as long
// as the client stays connected.
func (s *Server) serveSocket(c *gin.Context, userID string, subscribe subscribeFunc) {
	ws, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConnection(userID, ws, s.Config.SendBuffer)
	s.Hub.Attach(conn)
	defer s.Hub.Detach(conn)

	sub := subscribe(conn, func(err error) {
		_ = conn.SendFrame(realtime.Frame{Type: frameError, Err: err.Error()})
	})

	go func() {
		select {
		case <-sub.Done():
			if sub.Err() != nil {
				conn.Close(websocket.CloseTryAgainLater, "subscription unavailable")
				return
			}
			conn.Close(websocket.CloseNormalClosure, "")
		case <-conn.Closed():
		}
	}()

	conn.ReadLoop()
	conn.Close(websocket.CloseNormalClosure, "")
	sub.Close()
}
