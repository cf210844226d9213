package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Record store backends.
const (
	RecordStoreSQLite   = "sqlite"
	RecordStorePostgres = "postgres"
	RecordStoreDynamo   = "dynamo"
)

// Blob store backends.
const (
	BlobStoreDisk = "disk"
	BlobStoreS3   = "s3"
)

// MinBcryptCost is the lowest accepted bcrypt work factor.
const MinBcryptCost = 10

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel slog.Level

	RecordStore string
	DatabaseDSN string
	BlobStore   string
	UploadDir   string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTSecret     string
	JWTExpiry     time.Duration
	OTPTTL        time.Duration
	BcryptCost    int
	MaxUploadSize int64

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustProxyHeaders lets X-Forwarded-For / X-Real-IP replace the connection address.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users string
	Files string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "5000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnvLevel("LOG_LEVEL", slog.LevelInfo),

		RecordStore: strings.ToLower(getEnv("RECORD_STORE", RecordStoreSQLite)),
		DatabaseDSN: getEnv("DATABASE_DSN", "file:vault.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"),
		BlobStore:   strings.ToLower(getEnv("BLOB_STORE", BlobStoreDisk)),
		UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users: getEnv("DYNAMO_TABLE_USERS", "users"),
			Files: getEnv("DYNAMO_TABLE_FILES", "files"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "file-vault"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpiry:     getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		OTPTTL:        getEnvDuration("OTP_TTL", 10*time.Minute),
		BcryptCost:    getEnvInt("BCRYPT_COST", 12),
		MaxUploadSize: getEnvInt64("MAX_UPLOAD_BYTES", 100<<20),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),

		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
	}
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.RecordStore {
	case RecordStoreSQLite, RecordStorePostgres, RecordStoreDynamo:
	default:
		errs = append(errs, fmt.Errorf("unknown RECORD_STORE %q", c.RecordStore))
	}
	switch c.BlobStore {
	case BlobStoreDisk, BlobStoreS3:
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_STORE %q", c.BlobStore))
	}
	if c.JWTSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.BcryptCost < MinBcryptCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be at least %d", MinBcryptCost))
	}
	if c.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.BlobStore == BlobStoreDisk && c.UploadDir == "" {
		errs = append(errs, errors.New("UPLOAD_DIR is required for the disk blob store"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("24h", "10m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return lvl
}
