package db

import (
	"fmt"
	"time"

	"scout-portal/internal/config"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var AppDb *gorm.DB

// gormWriter forwards GORM's SQL log lines to zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	log.Info().Str("component", "gorm").Msgf(format, args...)
}

func NewGormConfig(environment string) *gorm.Config {
	level := logger.Info
	if environment == "production" {
		level = logger.Error
	}
	newLogger := logger.New(
		gormWriter{},
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  environment != "production",
		},
	)
	return &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	}
}

func ConnectDb(cfg config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v sslmode=disable",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
	)

	db, err := gorm.Open(postgres.Open(dsn), NewGormConfig(cfg.Environment))
	if err != nil {
		return nil, fmt.Errorf("connecting to db: %w", err)
	}
	AppDb = db
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("connected to db")

	return db, nil
}

func CloseDb(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error().Err(err).Msg("failed to get sql handle")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close db")
		return
	}
	log.Info().Msg("closed db")
}
