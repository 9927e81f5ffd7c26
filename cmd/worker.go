package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/techagentng/collabhub/services"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Deliver queued push notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStores(conf)
		if err != nil {
			return err
		}
		defer st.close()

		svc, err := newNotificationService(ctx, st, &firebaseApp{conf: conf})
		if err != nil {
			return err
		}
		return runWorker(ctx, svc)
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 10, "number of tasks processed at once")
}

// runWorker processes notification tasks until ctx is cancelled.
func runWorker(ctx context.Context, svc *services.NotificationService) error {
	opt, err := asynq.ParseRedisURI(conf.RedisURL)
	if err != nil {
		return err
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: workerConcurrency,
		Queues:      map[string]int{services.NotificationQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("type", task.Type()).Msg("task failed")
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(services.TypeMessageNotification, svc.HandleMessageNotification)

	if err := srv.Start(mux); err != nil {
		return err
	}
	log.Info().Int("concurrency", workerConcurrency).Msg("worker started")

	<-ctx.Done()
	srv.Shutdown()
	return nil
}
