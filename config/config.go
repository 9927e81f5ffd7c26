package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	BrokerMemory = "memory"
	BrokerRedis  = "redis"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

type Config struct {
	Debug                    bool   `envconfig:"debug"`
	Port                     int    `envconfig:"port" default:"8080"`
	Env                      string `envconfig:"env" default:"development"`
	PostgresHost             string `envconfig:"postgres_host"`
	PostgresUser             string `envconfig:"postgres_user"`
	PostgresDB               string `envconfig:"postgres_db"`
	PostgresPort             int    `envconfig:"postgres_port" default:"5432"`
	PostgresPassword         string `envconfig:"postgres_password"`
	StoreDriver              string `envconfig:"store_driver" default:"postgres"`
	BrokerDriver             string `envconfig:"broker_driver" default:"redis"`
	RedisURL                 string `envconfig:"redis_url" default:"redis://localhost:6379/0"`
	AuthMode                 string `envconfig:"auth_mode" default:"firebase"`
	JWTSecret                string `envconfig:"jwt_secret"`
	FirebaseCredentialsFile  string `envconfig:"firebase_credentials_file" default:"./google-services.json"`
	OpenAIAPIKey             string `envconfig:"openai_api_key"`
	WebsiteAPIKey            string `envconfig:"website_api_key"`
	S3Bucket                 string `envconfig:"s3_bucket"`
	AWSRegion                string `envconfig:"aws_region"`
	AWSAccessKeyID           string `envconfig:"aws_access_key_id"`
	AWSSecretAccessKey       string `envconfig:"aws_secret_access_key"`
	RatingMaxAttempts        int    `envconfig:"rating_max_attempts" default:"8"`
	ResubscribeAttempts      int    `envconfig:"resubscribe_attempts" default:"5"`
	SendBuffer               int    `envconfig:"send_buffer" default:"128"`
	PushNotifications        bool   `envconfig:"push_notifications" default:"true"`
	AccessControlAllowOrigin string `envconfig:"access_control_allow_origin"`
}

func Load() (*Config, error) {
	env := os.Getenv("GIN_MODE")
	if env != "release" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Debug().Err(err).Msg("couldn't load env vars from .env")
		}
	}

	c := &Config{}
	err := envconfig.Process("collabhub", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
