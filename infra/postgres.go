package infra

import (
	"fmt"
	"log"

	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/entity"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PostgresClient struct {
	DB *gorm.DB
}

func InitPostgresClient(cfg *config.EnvConfig) *PostgresClient {
	if cfg.Postgres.HOST == "" || cfg.Postgres.Database == "" {
		panic("Postgres host or database is not configured")
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Postgres.HOST,
		cfg.Postgres.Username,
		cfg.Postgres.Password,
		cfg.Postgres.Database,
		cfg.Postgres.Port,
		cfg.Postgres.SSLMode,
	)

	logLevel := logger.Warn
	if !cfg.IsProduction() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}

	if err := db.AutoMigrate(&entity.Document{}); err != nil {
		panic(fmt.Sprintf("Failed to migrate Postgres schema: %v", err))
	}

	log.Println("Connected to Postgres:", cfg.Postgres.Database+" on "+cfg.Postgres.HOST)

	return &PostgresClient{DB: db}
}
