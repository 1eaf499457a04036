package infra

import (
	"context"
	"log"
	"time"

	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/identity"
	"github.com/tnqbao/gau-document-gateway/infra/produce"
	"github.com/tnqbao/gau-document-gateway/service"
)

// BlobBackend is a blob store that can also bootstrap its bucket and report
// server information.
type BlobBackend interface {
	service.BlobStore
	EnsureBucket(ctx context.Context) error
	StorageInfo(ctx context.Context) (map[string]any, error)
}

type Infra struct {
	Redis                 *RedisClient
	Postgres              *PostgresClient
	Logger                *LoggerClient
	RabbitMQ              *RabbitMQClient
	AuthorizationService  *AuthorizationService
	ClassificationService identity.Classifier
	Produce               *produce.Produce
	Blob                  BlobBackend
	Telemetry             *Telemetry
}

func InitInfra(cfg *config.Config) *Infra {
	// Telemetry must be installed before the logger so the otelslog bridge
	// picks up the global logger provider.
	telemetry, err := InitTelemetry(context.Background(), cfg.EnvConfig)
	if err != nil {
		log.Printf("Warning: Failed to initialize telemetry: %v (falling back to no-op providers)", err)
		telemetry = nil
	}

	logger := InitLoggerClient(cfg.EnvConfig)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	redis := InitRedisClient(cfg.EnvConfig)
	if redis == nil {
		panic("Failed to initialize Redis service")
	}

	postgres := InitPostgresClient(cfg.EnvConfig)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	rabbitMQ := InitRabbitMQClient(cfg.EnvConfig)
	if rabbitMQ == nil {
		panic("Failed to initialize RabbitMQ service")
	}

	authorizationService := InitAuthorizationService(cfg.EnvConfig)
	if authorizationService == nil {
		panic("Failed to initialize Authorization service")
	}

	classificationService := InitClassificationService(cfg.EnvConfig)
	if classificationService == nil {
		panic("Failed to initialize Classification service")
	}

	produceService := produce.InitProduce(rabbitMQ.Channel)
	if produceService == nil {
		panic("Failed to initialize Produce service")
	}

	blob := InitBlobBackend(cfg.EnvConfig)
	if blob == nil {
		panic("Failed to initialize Blob storage")
	}

	return &Infra{
		Redis:                 redis,
		Postgres:              postgres,
		Logger:                logger,
		RabbitMQ:              rabbitMQ,
		AuthorizationService:  authorizationService,
		ClassificationService: NewCachedClassifier(classificationService, redis, cfg.EnvConfig.Classification.CacheTTL, logger),
		Produce:               produceService,
		Blob:                  blob,
		Telemetry:             telemetry,
	}
}

// InitBlobBackend returns the blob store selected by BLOB_BACKEND.
func InitBlobBackend(cfg *config.EnvConfig) BlobBackend {
	switch cfg.Storage.Backend {
	case config.BlobBackendS3:
		return InitS3Client(cfg)
	case config.BlobBackendMinio, "":
		return InitMinioClient(cfg)
	default:
		panic("Unsupported blob backend: " + cfg.Storage.Backend)
	}
}

func (i *Infra) Close() {
	if i.RabbitMQ != nil {
		i.RabbitMQ.Close()
	}
	if i.Redis != nil {
		_ = i.Redis.Client.Close()
	}
	if i.Postgres != nil {
		if sqlDB, err := i.Postgres.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if i.Telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := i.Telemetry.Shutdown(ctx); err != nil {
			log.Printf("Warning: Failed to flush telemetry: %v", err)
		}
	}
}
