package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BlobBackendMinio = "minio"
	BlobBackendS3    = "s3"
)

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
		SSLMode  string
	}
	JWT struct {
		SecretKey string
		Algorithm string
		Expire    int
	}
	CORS struct {
		AllowDomains string
		GlobalDomain string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		UseSSL       bool
	}
	S3 struct {
		Region    string
		Endpoint  string
		AccessKey string
		SecretKey string
	}
	Storage struct {
		Backend           string
		Bucket            string
		Region            string
		SignedURLTTL      time.Duration
		DependencyTimeout time.Duration
		MaxUploadSize     int64 // Default 50MB (52428800 bytes)
	}
	ExternalService struct {
		AuthorizationServiceURL  string
		ClassificationServiceURL string
		RemoteTokenCheck         bool
	}
	Classification struct {
		CacheTTL time.Duration
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	PrivateKey string

	Environment struct {
		Mode  string
		Group string
	}
	Port string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = os.Getenv("PGPOOL_PORT")
	if config.Postgres.Port == "" {
		config.Postgres.Port = "5432"
	}
	config.Postgres.SSLMode = os.Getenv("PGPOOL_SSLMODE")
	if config.Postgres.SSLMode == "" {
		config.Postgres.SSLMode = "disable"
	}

	// JWT
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.JWT.Algorithm = os.Getenv("JWT_ALGORITHM")
	if config.JWT.Algorithm == "" {
		config.JWT.Algorithm = "HS256"
	}

	if val := os.Getenv("JWT_EXPIRE"); val != "" {
		fmt.Sscanf(val, "%d", &config.JWT.Expire)
	} else {
		config.JWT.Expire = 3600 * 24 * 7
	}

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")
	config.CORS.GlobalDomain = os.Getenv("GLOBAL_DOMAIN")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	if config.Redis.RedisHost == "" {
		config.Redis.RedisHost = "localhost"
	}
	config.Redis.RedisPort = os.Getenv("REDIS_PORT")
	if config.Redis.RedisPort == "" {
		config.Redis.RedisPort = "6379"
	}

	// RabbitMQ
	config.RabbitMQ.Host = os.Getenv("RABBITMQ_HOST")
	if config.RabbitMQ.Host == "" {
		config.RabbitMQ.Host = "localhost"
	}
	config.RabbitMQ.Port = os.Getenv("RABBITMQ_PORT")
	if config.RabbitMQ.Port == "" {
		config.RabbitMQ.Port = "5672"
	}
	config.RabbitMQ.Username = os.Getenv("RABBITMQ_USER")
	if config.RabbitMQ.Username == "" {
		config.RabbitMQ.Username = "guest"
	}
	config.RabbitMQ.Password = os.Getenv("RABBITMQ_PASSWORD")
	if config.RabbitMQ.Password == "" {
		config.RabbitMQ.Password = "guest"
	}

	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.UseSSL = parseBool(os.Getenv("MINIO_USE_SSL"), false)

	config.S3.Region = os.Getenv("S3_REGION")
	if config.S3.Region == "" {
		config.S3.Region = "us-east-1"
	}
	config.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	config.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	config.S3.SecretKey = os.Getenv("S3_SECRET_KEY")

	// Storage
	config.Storage.Backend = strings.ToLower(os.Getenv("BLOB_BACKEND"))
	if config.Storage.Backend == "" {
		config.Storage.Backend = BlobBackendMinio
	}
	config.Storage.Bucket = os.Getenv("DOCUMENT_BUCKET")
	if config.Storage.Bucket == "" {
		config.Storage.Bucket = "citizen-documents"
	}
	config.Storage.Region = os.Getenv("DOCUMENT_BUCKET_REGION")
	if config.Storage.Region == "" {
		config.Storage.Region = "us-east-1"
	}
	config.Storage.SignedURLTTL = parseSeconds(os.Getenv("SIGNED_URL_TTL_SECONDS"), 15*time.Minute)
	config.Storage.DependencyTimeout = parseSeconds(os.Getenv("DEPENDENCY_TIMEOUT_SECONDS"), 30*time.Second)
	if sizeStr := os.Getenv("MAX_UPLOAD_SIZE"); sizeStr != "" {
		if size, err := strconv.ParseInt(sizeStr, 10, 64); err == nil && size > 0 {
			config.Storage.MaxUploadSize = size
		} else {
			config.Storage.MaxUploadSize = 52428800
		}
	} else {
		config.Storage.MaxUploadSize = 52428800
	}

	config.PrivateKey = os.Getenv("PRIVATE_KEY")

	config.ExternalService.AuthorizationServiceURL = os.Getenv("AUTHORIZATION_SERVICE_URL")
	if config.ExternalService.AuthorizationServiceURL == "" {
		config.ExternalService.AuthorizationServiceURL = "http://localhost:8080"
	}
	config.ExternalService.ClassificationServiceURL = os.Getenv("CLASSIFICATION_SERVICE_URL")
	if config.ExternalService.ClassificationServiceURL == "" {
		config.ExternalService.ClassificationServiceURL = "http://localhost:8083"
	}
	config.ExternalService.RemoteTokenCheck = parseBool(os.Getenv("AUTH_REMOTE_CHECK"), true)

	config.Classification.CacheTTL = parseSeconds(os.Getenv("CLASSIFICATION_CACHE_TTL_SECONDS"), 5*time.Minute)

	// Grafana/OpenTelemetry
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	if grafanaEndpoint == "" {
		grafanaEndpoint = "https://grafana.gauas.online"
	}
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	if strings.HasPrefix(grafanaEndpoint, "https://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	} else if strings.HasPrefix(grafanaEndpoint, "http://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	} else {
		config.Grafana.OTLPEndpoint = grafanaEndpoint
	}
	config.Grafana.ServiceName = os.Getenv("SERVICE_NAME")
	if config.Grafana.ServiceName == "" {
		config.Grafana.ServiceName = "gau-document-gateway"
	}

	config.Environment.Mode = os.Getenv("DEPLOY_ENV")
	if config.Environment.Mode == "" {
		config.Environment.Mode = "development"
	}

	config.Environment.Group = os.Getenv("GROUP_NAME")
	if config.Environment.Group == "" {
		config.Environment.Group = "local"
	}

	config.Port = os.Getenv("PORT")
	if config.Port == "" {
		config.Port = "8080"
	}

	return &config
}

func (c *EnvConfig) IsProduction() bool {
	return c.Environment.Mode == "production"
}

func parseSeconds(val string, fallback time.Duration) time.Duration {
	if val == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(val)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func parseBool(val string, fallback bool) bool {
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
