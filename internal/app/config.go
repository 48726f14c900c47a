package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the env-var-only configuration shared by the three binaries
// (cmd/monitor, cmd/worker, cmd/server). Each binary reads only the fields
// relevant to it; unused fields are harmless.
type Config struct {
	HTTPAddr        string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	LogLevel        string
	LogFormat       string

	DownloaderRPCURL string
	DownloaderSecret string
	DownloadDataDir  string

	FFMPEGPath  string
	FFProbePath string
	HLSDir      string

	MonitorTickInterval time.Duration
	JobQueuePopTimeout  time.Duration
	HeartbeatInterval   time.Duration

	CORSAllowedOrigins []string // empty = allow all (dev mode)
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DB", "mediapipeline"),
		MongoCollection: getEnv("MONGO_COLLECTION", "media_records"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         int(getEnvInt64("REDIS_DB", 0)),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),

		DownloaderRPCURL: getEnv("DOWNLOADER_RPC_URL", "http://localhost:6800/jsonrpc"),
		DownloaderSecret: getEnv("DOWNLOADER_SECRET", ""),
		DownloadDataDir:  getEnv("DOWNLOAD_DATA_DIR", "data/downloads"),

		FFMPEGPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath: getEnv("FFPROBE_PATH", "ffprobe"),
		HLSDir:      getEnv("HLS_DIR", "data/hls"),

		MonitorTickInterval: getEnvDuration("MONITOR_TICK_INTERVAL", 10*time.Second),
		JobQueuePopTimeout:  getEnvDuration("JOB_QUEUE_POP_TIMEOUT", 10*time.Second),
		HeartbeatInterval:   getEnvDuration("WORKER_HEARTBEAT_INTERVAL", 30*time.Second),

		CORSAllowedOrigins: parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

func parseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
