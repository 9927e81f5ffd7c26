package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/techagentng/collabhub/config"
	"github.com/techagentng/collabhub/realtime"
	"github.com/techagentng/collabhub/services"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server holds everything the HTTP handlers need.
type Server struct {
	Config              *config.Config
	Identity            services.IdentityProvider
	ProfileService      services.ProfileService
	ChatService         services.ChatService
	SocialService       services.SocialService
	NotificationService *services.NotificationService
	GenerationService   services.GenerationService
	Engine              *realtime.Engine
	Hub                 *realtime.Hub
	HealthChecks        []HealthCheck
}

// Handler returns the fully configured router.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Start serves until ctx is cancelled, then drains open websockets and shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Config.Port),
		Handler:           s.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.Hub != nil {
		s.Hub.Close()
	}
	return srv.Shutdown(shutdownCtx)
}
