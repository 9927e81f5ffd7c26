package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/techagentng/collabhub/config"
	"github.com/techagentng/collabhub/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormDB struct {
	DB *gorm.DB
}

func GetDB(c *config.Config) (*GormDB, error) {
	gormDB := &GormDB{}
	if err := gormDB.Init(c); err != nil {
		return nil, err
	}
	return gormDB, nil
}

func (g *GormDB) Init(c *config.Config) error {
	db, err := getPostgresDB(c)
	if err != nil {
		return err
	}
	g.DB = db

	if err := Migrate(g.DB); err != nil {
		return fmt.Errorf("unable to run migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (g *GormDB) Close() error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database is reachable.
func (g *GormDB) Ping(ctx context.Context) error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func getPostgresDB(c *config.Config) (*gorm.DB, error) {
	log.Info().
		Str("host", c.PostgresHost).
		Int("port", c.PostgresPort).
		Str("db", c.PostgresDB).
		Msg("connecting to postgres")
	postgresDSN := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d TimeZone=UTC",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort)

	gormConfig := &gorm.Config{}
	if c.Env != "prod" && c.Env != "production" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	} else {
		gormConfig.Logger = logger.Default.LogMode(logger.Warn)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		DSN: postgresDSN,
	}), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	return gormDB, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.Connection{},
		&models.Rating{},
		&models.DeviceToken{},
	)
	if err != nil {
		return fmt.Errorf("migrations error: %v", err)
	}
	return nil
}
