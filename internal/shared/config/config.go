package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin []string
	DatabaseURL     string

	// Pool overrides; zero keeps the process default.
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	DBPingTimeout     time.Duration

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucket     string
	MinIOUseSSL     bool

	JWTSecret string

	RulesFile        string
	MinTextLength    int
	PdftoppmPath     string
	TesseractPath    string
	TesseractLang    string
	OCRDPI           int
	OCRTimeout       time.Duration
	OCRMaxConcurrent int64
	OCRTempDir       string

	SQSQueueURL          string
	SQSVisibilitySeconds int
	WorkerConcurrency    int
	ShutdownTimeout      time.Duration

	RedisURL    string
	AuditStream string
	AuditBuffer int

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from the environment. .env files in the working
// directory are loaded first when present; real environment variables win.
func Load() Config {
	for _, path := range []string{".env", ".env.local", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return Config{
		Port:            v.GetString("PORT"),
		Env:             normalizeEnv(v.GetString("ENV")),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		DatabaseURL:     strings.TrimSpace(v.GetString("DATABASE_URL")),

		DBMaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		DBConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		DBPingTimeout:     v.GetDuration("DB_PING_TIMEOUT"),

		ObjectStoreType: normalizeStoreType(v.GetString("OBJECT_STORE")),
		LocalStoreDir:   v.GetString("LOCAL_STORE_DIR"),
		AWSRegion:       v.GetString("AWS_REGION"),
		S3Bucket:        v.GetString("S3_BUCKET"),
		S3Prefix:        v.GetString("S3_PREFIX"),
		SSEKMSKeyID:     v.GetString("SSE_KMS_KEY_ID"),
		MinIOEndpoint:   v.GetString("MINIO_ENDPOINT"),
		MinIOAccessKey:  v.GetString("MINIO_ACCESS_KEY"),
		MinIOSecretKey:  v.GetString("MINIO_SECRET_KEY"),
		MinIOBucket:     v.GetString("MINIO_BUCKET"),
		MinIOUseSSL:     v.GetBool("MINIO_USE_SSL"),

		JWTSecret: v.GetString("JWT_SECRET"),

		RulesFile:        v.GetString("KYC_RULES_FILE"),
		MinTextLength:    v.GetInt("MIN_TEXT_LENGTH"),
		PdftoppmPath:     v.GetString("PDFTOPPM_PATH"),
		TesseractPath:    v.GetString("TESSERACT_PATH"),
		TesseractLang:    v.GetString("TESSERACT_LANG"),
		OCRDPI:           v.GetInt("OCR_DPI"),
		OCRTimeout:       v.GetDuration("OCR_TIMEOUT"),
		OCRMaxConcurrent: v.GetInt64("OCR_MAX_CONCURRENT"),
		OCRTempDir:       v.GetString("OCR_TEMP_DIR"),

		SQSQueueURL:          strings.TrimSpace(v.GetString("SQS_QUEUE_URL")),
		SQSVisibilitySeconds: v.GetInt("SQS_VISIBILITY_TIMEOUT_SECONDS"),
		WorkerConcurrency:    v.GetInt("WORKER_CONCURRENCY"),
		ShutdownTimeout:      v.GetDuration("SHUTDOWN_TIMEOUT"),

		RedisURL:    v.GetString("REDIS_URL"),
		AuditStream: v.GetString("AUDIT_STREAM"),
		AuditBuffer: v.GetInt("AUDIT_BUFFER"),

		RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173")
	v.SetDefault("OBJECT_STORE", "local")
	v.SetDefault("LOCAL_STORE_DIR", "./data")
	v.SetDefault("MINIO_BUCKET", "kyc-documents")
	v.SetDefault("MIN_TEXT_LENGTH", 20)
	v.SetDefault("PDFTOPPM_PATH", "pdftoppm")
	v.SetDefault("TESSERACT_PATH", "tesseract")
	v.SetDefault("TESSERACT_LANG", "eng")
	v.SetDefault("OCR_DPI", 200)
	v.SetDefault("OCR_TIMEOUT", "60s")
	v.SetDefault("OCR_MAX_CONCURRENT", 2)
	v.SetDefault("SQS_VISIBILITY_TIMEOUT_SECONDS", 300)
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("AUDIT_STREAM", "kyc:audit")
	v.SetDefault("AUDIT_BUFFER", 256)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}

// Validate reports configuration that cannot work in the selected environment.
func (c Config) Validate() error {
	if c.Env == "production" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	}
	switch c.ObjectStoreType {
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when OBJECT_STORE=s3")
		}
	case "minio":
		if c.MinIOEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required when OBJECT_STORE=minio")
		}
	}
	if c.MinTextLength < 0 {
		return fmt.Errorf("MIN_TEXT_LENGTH must not be negative")
	}
	if c.OCRTimeout <= 0 {
		return fmt.Errorf("OCR_TIMEOUT must be positive")
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}
