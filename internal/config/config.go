package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string
	MaxFileSize int64

	// Redis Configuration (asynq dispatch + rate limiting)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Qdrant vector index (gRPC port, not the 6333 REST port)
	QdrantHost string
	QdrantPort int

	// Blob vault storage
	BlobRoot   string
	StagingDir string

	// Embeddings / LLM
	EmbeddingsProvider    string // "google" (default), "mock"
	GoogleEmbeddingsModel string
	GeminiAPIKey          string
	TitleModel            string

	// Workspace settings defaults. Immutable fields are fixed per
	// workspace at creation; these seed the "default" workspace.
	DefaultEmbeddingProvider string
	DefaultEmbeddingModel    string
	DefaultEmbeddingDim      int
	DefaultChunkSize         int
	DefaultChunkOverlap      int
	DefaultEngine            string
	DefaultSearchLimit       int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Task retention
	TaskRetentionHours int

	// Per-external-call deadlines. None of the downstream services
	// bound their own calls, so every outbound call gets one of these.
	EmbedTimeout  time.Duration
	BlobTimeout   time.Duration
	ArxivTimeout  time.Duration
	VectorTimeout time.Duration
	MongoTimeout  time.Duration

	// OTLP tracing
	OTLPEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/knowledge_vault"),
		DBName:   getEnv("DB_NAME", "knowledge_vault"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		QdrantHost: getEnv("QDRANT_HOST", "localhost"),
		QdrantPort: getEnvInt("QDRANT_PORT", 6334),

		BlobRoot:   getEnv("BLOB_ROOT", "./data/vault"),
		StagingDir: getEnv("STAGING_DIR", "./data/staging"),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		TitleModel:            getEnv("TITLE_MODEL", "gemini-2.0-flash"),

		DefaultEmbeddingProvider: getEnv("DEFAULT_EMBEDDING_PROVIDER", "google"),
		DefaultEmbeddingModel:    getEnv("DEFAULT_EMBEDDING_MODEL", "text-embedding-004"),
		DefaultEmbeddingDim:      getEnvInt("DEFAULT_EMBEDDING_DIM", 1536),
		DefaultChunkSize:         getEnvInt("DEFAULT_CHUNK_SIZE", 800),
		DefaultChunkOverlap:      getEnvInt("DEFAULT_CHUNK_OVERLAP", 150),
		DefaultEngine:            getEnv("DEFAULT_RETRIEVAL_ENGINE", "basic"),
		DefaultSearchLimit:       getEnvInt("DEFAULT_SEARCH_LIMIT", 5),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		TaskRetentionHours: getEnvInt("TASK_RETENTION_HOURS", 24),

		EmbedTimeout:  getEnvDuration("EMBED_TIMEOUT", 60*time.Second),
		BlobTimeout:   getEnvDuration("BLOB_TIMEOUT", 30*time.Second),
		ArxivTimeout:  getEnvDuration("ARXIV_TIMEOUT", 60*time.Second),
		VectorTimeout: getEnvDuration("VECTOR_TIMEOUT", 30*time.Second),
		MongoTimeout:  getEnvDuration("MONGO_TIMEOUT", 10*time.Second),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
	}

	if cfg.EmbeddingsProvider == "google" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the google embeddings provider - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
