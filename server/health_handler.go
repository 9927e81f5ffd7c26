package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/techagentng/collabhub/server/response"
)

func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{}
		for _, hc := range s.HealthChecks {
			if err := hc.Check(ctx); err != nil {
				log.Warn().Err(err).Str("check", hc.Name).Msg("health check failed")
				checks[hc.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[hc.Name] = "ok"
		}
		response.JSON(c, "health", status, checks, nil)
	}
}
