package server

import (
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() *gin.Engine {
	if s.Config.Env == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(requestLogger())
	r.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if origin := s.Config.AccessControlAllowOrigin; origin != "" && origin != "*" {
		corsConfig.AllowOrigins = []string{origin}
	} else {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	r.Use(cors.New(corsConfig))
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 10,
	})
	limitRate := limitRateForRatings(store)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apirouter := router.Group("/api/v1")
	apirouter.GET("/health", s.handleHealth())

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())

	// profiles
	authorized.POST("/profile", s.handleSignup())
	authorized.PUT("/me/profile", s.handleEditUserProfile())
	authorized.GET("/me", s.handleShowProfile())
	authorized.GET("/users/:userID", s.handleGetUserProfile())

	// conversations
	authorized.POST("/conversations", s.handleStartConversation())
	authorized.GET("/conversations", s.handleListConversations())
	authorized.GET("/conversations/:conversationID/messages", s.handleListMessages())
	authorized.POST("/conversations/:conversationID/messages", s.handleSendMessage())
	authorized.POST("/users/:userID/messages", s.handleSendDirectMessage())
	authorized.POST("/devices", s.handleRegisterDevice())

	// social graph
	authorized.PUT("/connections/:userID", s.handleConnect())
	authorized.DELETE("/connections/:userID", s.handleDisconnect())
	authorized.GET("/connections", s.handleListConnections())
	authorized.POST("/users/:userID/ratings", limitRate, s.handleSubmitRating())
	authorized.GET("/users/:userID/ratings", s.handleListRatings())

	// live views
	authorized.GET("/ws/conversations", s.handleConversationListSocket())
	authorized.GET("/ws/conversations/:conversationID", s.handleMessagesSocket())

	// generation
	authorized.POST("/generate/image", s.handleGenerateImage())
	authorized.POST("/generate/website-code", s.handleGenerateWebsiteCode())
}
