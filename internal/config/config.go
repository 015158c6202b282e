package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all server settings in correct types
type Config struct {
	Port string

	DownloadDir string
	TempDir     string

	MaxConcurrentJobs int
	JobQueueSize      int
	JobRetention      time.Duration
	CleanupInterval   time.Duration

	MaxDownloadSize int64
	DirectMaxSize   int64
	MaxFormats      int

	InfoTimeout   time.Duration
	DirectTimeout time.Duration

	Engine           string
	YtDlpPath        string
	UserAgent        string
	ExtractorRetries int

	CacheTTL  time.Duration
	CacheSize int

	DatabaseURL    string
	AMQPURL        string
	AMQPQueue      string
	JWTSecret      string
	AllowedOrigins []string
}

const (
	EngineYtDlp  = "ytdlp"
	EngineNative = "native"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	mb               = 1024 * 1024
)

// Load: The only way to get config in the app
func Load() *Config {
	cfg := &Config{
		Port:              getEnv("PORT", ":8080"),
		DownloadDir:       getEnv("DOWNLOAD_DIR", "downloads"),
		TempDir:           getEnv("TEMP_DIR", "temp"),
		MaxConcurrentJobs: getEnvAsInt("MAX_CONCURRENT_JOBS", 3),
		JobQueueSize:      getEnvAsInt("JOB_QUEUE_SIZE", 32),
		JobRetention:      getEnvAsMinutes("JOB_RETENTION_MINUTES", 60),
		CleanupInterval:   getEnvAsMinutes("CLEANUP_INTERVAL_MINUTES", 5),
		MaxDownloadSize:   int64(getEnvAsInt("MAX_DOWNLOAD_SIZE_MB", 50)) * mb,
		DirectMaxSize:     int64(getEnvAsInt("DIRECT_MAX_SIZE_MB", 20)) * mb,
		MaxFormats:        getEnvAsInt("MAX_FORMATS", 15),
		InfoTimeout:       getEnvAsSeconds("INFO_TIMEOUT_SECONDS", 30),
		DirectTimeout:     getEnvAsSeconds("DIRECT_TIMEOUT_SECONDS", 60),
		Engine:            strings.ToLower(getEnv("EXTRACTOR_ENGINE", EngineYtDlp)),
		YtDlpPath:         getEnv("YTDLP_PATH", ""),
		UserAgent:         getEnv("USER_AGENT", defaultUserAgent),
		ExtractorRetries:  getEnvAsInt("EXTRACTOR_RETRIES", 3),
		CacheTTL:          getEnvAsMinutes("CACHE_TTL_MINUTES", 10),
		CacheSize:         getEnvAsInt("CACHE_SIZE", 256),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPQueue:         getEnv("AMQP_QUEUE", "download_events"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AllowedOrigins:    getEnvAsList("ALLOWED_ORIGINS"),
	}

	// 🛡️ Post-load Validation
	validate(cfg)

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	str := getEnv(key, "")
	if val, err := strconv.Atoi(str); err == nil {
		return val
	}
	return fallback
}

func getEnvAsMinutes(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Minute
}

func getEnvAsSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Second
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// validate ensures the server won't crash due to misconfiguration
func validate(cfg *Config) {
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	if cfg.MaxConcurrentJobs < 1 {
		log.Println("⚠️ Warning: MAX_CONCURRENT_JOBS must be at least 1. Resetting to 3.")
		cfg.MaxConcurrentJobs = 3
	}
	if cfg.JobQueueSize < 0 {
		log.Println("⚠️ Warning: JOB_QUEUE_SIZE cannot be negative. Resetting to 32.")
		cfg.JobQueueSize = 32
	}
	if cfg.JobRetention < 0 {
		log.Println("⚠️ Warning: JOB_RETENTION_MINUTES cannot be negative. Resetting to 60.")
		cfg.JobRetention = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		log.Println("⚠️ Warning: CLEANUP_INTERVAL_MINUTES must be positive. Resetting to 5.")
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.MaxDownloadSize <= 0 {
		log.Println("⚠️ Warning: MAX_DOWNLOAD_SIZE_MB must be positive. Resetting to 50.")
		cfg.MaxDownloadSize = 50 * mb
	}
	if cfg.DirectMaxSize <= 0 {
		log.Println("⚠️ Warning: DIRECT_MAX_SIZE_MB must be positive. Resetting to 20.")
		cfg.DirectMaxSize = 20 * mb
	}
	if cfg.MaxFormats < 1 {
		log.Println("⚠️ Warning: MAX_FORMATS must be at least 1. Resetting to 15.")
		cfg.MaxFormats = 15
	}
	if cfg.InfoTimeout <= 0 {
		cfg.InfoTimeout = 30 * time.Second
	}
	if cfg.DirectTimeout <= 0 {
		cfg.DirectTimeout = 60 * time.Second
	}
	if cfg.Engine != EngineYtDlp && cfg.Engine != EngineNative {
		log.Printf("⚠️ Warning: unknown EXTRACTOR_ENGINE %q. Falling back to %s.\n", cfg.Engine, EngineYtDlp)
		cfg.Engine = EngineYtDlp
	}
	if cfg.ExtractorRetries < 0 {
		cfg.ExtractorRetries = 0
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 256
	}
}
