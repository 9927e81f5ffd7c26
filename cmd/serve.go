package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/techagentng/collabhub/realtime"
	"github.com/techagentng/collabhub/server"
	"github.com/techagentng/collabhub/services"
	"golang.org/x/sync/errgroup"
)

var withWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&withWorker, "with-worker", false, "also process push notification tasks in this process")
}

func runServe(ctx context.Context) error {
	st, err := openStores(conf)
	if err != nil {
		return err
	}
	defer st.close()

	broker, brokerCheck, err := openBroker(ctx, conf)
	if err != nil {
		return err
	}
	defer broker.Close()

	fb := &firebaseApp{conf: conf}
	identity, err := openIdentity(ctx, conf, fb)
	if err != nil {
		return err
	}

	var notifier services.Notifier
	if conf.PushNotifications {
		n, err := services.NewAsynqNotifier(conf.RedisURL)
		if err != nil {
			return err
		}
		defer n.Close()
		notifier = n
	}

	notificationService := services.NewNotificationService(st.devices, st.users, nil)
	if withWorker {
		notificationService, err = newNotificationService(ctx, st, fb)
		if err != nil {
			return err
		}
	}

	engine := realtime.NewEngine(broker, st.chat, realtime.Options{
		ResubscribeAttempts: conf.ResubscribeAttempts,
		BaseBackoff:         100 * time.Millisecond,
		MaxBackoff:          5 * time.Second,
	})

	s := &server.Server{
		Config:              conf,
		Identity:            identity,
		ProfileService:      services.NewProfileService(st.users, conf),
		ChatService:         services.NewChatService(st.chat, st.users, broker, notifier, conf),
		SocialService:       services.NewSocialService(st.social, st.users, conf),
		NotificationService: notificationService,
		GenerationService:   newGenerationService(ctx, conf),
		Engine:              engine,
		Hub:                 realtime.NewHub(),
		HealthChecks:        []server.HealthCheck{st.health, brokerCheck},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Start(gctx)
	})
	if withWorker && conf.PushNotifications {
		g.Go(func() error {
			return runWorker(gctx, notificationService)
		})
	}

	err = g.Wait()
	log.Info().Err(err).Msg("server stopped")
	return err
}
