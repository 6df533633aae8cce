package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	RedisURL   string

	// Auth
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetCodeTTL    time.Duration

	// Login rate limiting
	LoginMaxAttempts int
	LoginWindow      time.Duration

	// Generation workers
	WorkerCount int

	// S3/MinIO object storage
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool
	S3UsePathStyle bool

	// CORS
	FrontendOrigin string
}

func Load() *Config {
	workerCount, _ := strconv.Atoi(getEnvOrDefault("WORKER_COUNT", "3"))
	if workerCount <= 0 {
		workerCount = 3
	}

	maxAttempts, _ := strconv.Atoi(getEnvOrDefault("LOGIN_MAX_ATTEMPTS", "5"))
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	s3UseSSL, _ := strconv.ParseBool(getEnvOrDefault("S3_USE_SSL", "false"))
	s3UsePathStyle, _ := strconv.ParseBool(getEnvOrDefault("S3_USE_PATH_STYLE", "true"))

	return &Config{
		ServerAddr: getEnvOrDefault("SERVER_ADDR", ":8080"),
		DBHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DB_PORT", "5432"),
		DBUser:     getEnvOrDefault("DB_USER", "adgenie"),
		DBPassword: getEnvOrDefault("DB_PASSWORD", "adgenie_dev_password"),
		DBName:     getEnvOrDefault("DB_NAME", "adgenie"),
		RedisURL:   getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret:       getEnvOrDefault("JWT_SECRET", generateDefaultSecret()),
		AccessTokenTTL:  durationEnv("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: durationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ResetCodeTTL:    durationEnv("RESET_CODE_TTL", time.Hour),

		LoginMaxAttempts: maxAttempts,
		LoginWindow:      durationEnv("LOGIN_WINDOW", 15*time.Minute),

		WorkerCount: workerCount,

		S3Endpoint:     getEnvOrDefault("S3_ENDPOINT", "localhost:9000"),
		S3Region:       getEnvOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:    getEnvOrDefault("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:    getEnvOrDefault("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:       getEnvOrDefault("S3_BUCKET", "adgenie-assets"),
		S3UseSSL:       s3UseSSL,
		S3UsePathStyle: s3UsePathStyle,

		FrontendOrigin: getEnvOrDefault("FRONTEND_ORIGIN", "http://localhost:3000"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
