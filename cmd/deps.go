package cmd

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/techagentng/collabhub/config"
	"github.com/techagentng/collabhub/db"
	"github.com/techagentng/collabhub/db/memdb"
	"github.com/techagentng/collabhub/realtime"
	"github.com/techagentng/collabhub/server"
	"github.com/techagentng/collabhub/services"
)

// stores is the set of repositories one backend provides.
type stores struct {
	chat    db.ChatRepository
	users   db.UserRepository
	social  db.SocialRepository
	devices db.DeviceRepository
	health  server.HealthCheck
	close   func() error
}

func openStores(c *config.Config) (*stores, error) {
	switch c.StoreDriver {
	case config.StoreMemory:
		log.Warn().Msg("using the in-memory store, nothing will survive a restart")
		m := memdb.New()
		return &stores{
			chat:    m,
			users:   m,
			social:  m,
			devices: m,
			health:  server.HealthCheck{Name: "store", Check: func(ctx context.Context) error { return nil }},
			close:   func() error { return nil },
		}, nil
	case config.StorePostgres:
		gormDB, err := db.GetDB(c)
		if err != nil {
			return nil, err
		}
		return &stores{
			chat:    db.NewChatRepo(gormDB),
			users:   db.NewUserRepo(gormDB),
			social:  db.NewSocialRepo(gormDB),
			devices: db.NewDeviceRepo(gormDB),
			health:  server.HealthCheck{Name: "postgres", Check: gormDB.Ping},
			close:   gormDB.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
}

func openBroker(ctx context.Context, c *config.Config) (realtime.Broker, server.HealthCheck, error) {
	switch c.BrokerDriver {
	case config.BrokerMemory:
		log.Warn().Msg("using the in-memory broker, deltas stay within this process")
		return realtime.NewMemoryBroker(c.SendBuffer), server.HealthCheck{Name: "broker", Check: func(ctx context.Context) error { return nil }}, nil
	case config.BrokerRedis:
		b, err := realtime.NewRedisBroker(ctx, c.RedisURL, c.SendBuffer)
		if err != nil {
			return nil, server.HealthCheck{}, err
		}
		return b, server.HealthCheck{Name: "redis", Check: b.Ping}, nil
	default:
		return nil, server.HealthCheck{}, fmt.Errorf("unknown broker driver %q", c.BrokerDriver)
	}
}

// firebaseApp is created on first use; only firebase auth and push delivery need it.
type firebaseApp struct {
	conf *config.Config
	app  *firebase.App
}

func (f *firebaseApp) get(ctx context.Context) (*firebase.App, error) {
	if f.app != nil {
		return f.app, nil
	}
	app, err := services.NewFirebaseApp(ctx, f.conf.FirebaseCredentialsFile)
	if err != nil {
		return nil, err
	}
	f.app = app
	return app, nil
}

func openIdentity(ctx context.Context, c *config.Config, fb *firebaseApp) (services.IdentityProvider, error) {
	switch c.AuthMode {
	case config.AuthJWT:
		if c.JWTSecret == "" {
			return nil, fmt.Errorf("auth mode %q needs a jwt secret", c.AuthMode)
		}
		return services.NewJWTIdentity(c.JWTSecret), nil
	case config.AuthFirebase:
		app, err := fb.get(ctx)
		if err != nil {
			return nil, err
		}
		return services.NewFirebaseIdentity(ctx, app)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", c.AuthMode)
	}
}

func newGenerationService(ctx context.Context, c *config.Config) services.GenerationService {
	if c.OpenAIAPIKey == "" {
		log.Warn().Msg("no openai api key, generation requests will fail or fall back")
	}
	images := openai.NewClient(c.OpenAIAPIKey)
	website := images
	if c.WebsiteAPIKey != "" {
		website = openai.NewClient(c.WebsiteAPIKey)
	}

	var media services.MediaService
	if c.S3Bucket != "" {
		client, err := services.NewS3Client(ctx, c)
		if err != nil {
			log.Error().Err(err).Msg("s3 unavailable, generated images will not be mirrored")
		} else {
			media = services.NewMediaService(client, c)
		}
	}
	return services.NewGenerationService(images, website, media, c)
}

func newNotificationService(ctx context.Context, st *stores, fb *firebaseApp) (*services.NotificationService, error) {
	app, err := fb.get(ctx)
	if err != nil {
		return nil, err
	}
	sender, err := services.NewFCMSender(ctx, app)
	if err != nil {
		return nil, err
	}
	return services.NewNotificationService(st.devices, st.users, sender), nil
}
