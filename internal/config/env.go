package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	AIAPIKey     string
	GenModel     string
	Port         string
	JWTSecret    string
	RedisAddr    string
	LogMode      string
	LogFile      string
	CORSOrigins  []string
	RatePerMin   int
	ChunkSize    int
	ChunkOverlap int
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "lessontutor-materials"),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GenModel:     getEnv("GEN_MODEL", "gemini-1.5-flash"),
		Port:         getEnv("PORT", "8080"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		LogMode:      getEnv("LOG_MODE", "dev"),
		LogFile:      getEnv("LOG_FILE", ""),
		CORSOrigins:  getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		RatePerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		ChunkSize:    getEnvInt("CHUNK_SIZE", 1200),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvList(key string, def []string) []string {
	v := strings.TrimSpace(getEnv(key, ""))
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
