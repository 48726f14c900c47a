package app

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	envVars := []string{
		"HTTP_ADDR", "MONGO_URI", "MONGO_DB", "MONGO_COLLECTION",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"LOG_LEVEL", "LOG_FORMAT",
		"DOWNLOADER_RPC_URL", "DOWNLOADER_SECRET", "DOWNLOAD_DATA_DIR",
		"FFMPEG_PATH", "FFPROBE_PATH", "HLS_DIR",
		"MONITOR_TICK_INTERVAL", "JOB_QUEUE_POP_TIMEOUT", "WORKER_HEARTBEAT_INTERVAL",
		"CORS_ALLOWED_ORIGINS",
	}
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":8080"},
		{"MongoURI", cfg.MongoURI, "mongodb://localhost:27017"},
		{"MongoDatabase", cfg.MongoDatabase, "mediapipeline"},
		{"MongoCollection", cfg.MongoCollection, "media_records"},
		{"RedisAddr", cfg.RedisAddr, "localhost:6379"},
		{"RedisDB", cfg.RedisDB, 0},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"DownloaderRPCURL", cfg.DownloaderRPCURL, "http://localhost:6800/jsonrpc"},
		{"DownloadDataDir", cfg.DownloadDataDir, "data/downloads"},
		{"FFMPEGPath", cfg.FFMPEGPath, "ffmpeg"},
		{"FFProbePath", cfg.FFProbePath, "ffprobe"},
		{"HLSDir", cfg.HLSDir, "data/hls"},
		{"MonitorTickInterval", cfg.MonitorTickInterval, 10 * time.Second},
		{"JobQueuePopTimeout", cfg.JobQueuePopTimeout, 10 * time.Second},
		{"HeartbeatInterval", cfg.HeartbeatInterval, 30 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("%s: got %v, want %v", tc.name, tc.got, tc.want)
			}
		})
	}

	if cfg.CORSAllowedOrigins != nil {
		t.Errorf("CORSAllowedOrigins: got %v, want nil", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MONGO_DB", "testdb")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MONITOR_TICK_INTERVAL", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := LoadConfig()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr: got %q", cfg.HTTPAddr)
	}
	if cfg.MongoDatabase != "testdb" {
		t.Errorf("MongoDatabase: got %q", cfg.MongoDatabase)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB: got %d", cfg.RedisDB)
	}
	if cfg.MonitorTickInterval != 5*time.Second {
		t.Errorf("MonitorTickInterval: got %v", cfg.MonitorTickInterval)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins: got %v", cfg.CORSAllowedOrigins)
	}
	for i, v := range want {
		if cfg.CORSAllowedOrigins[i] != v {
			t.Errorf("CORSAllowedOrigins[%d]: got %q, want %q", i, cfg.CORSAllowedOrigins[i], v)
		}
	}
}

func TestGetEnvDurationInvalidFallsBack(t *testing.T) {
	t.Setenv("MONITOR_TICK_INTERVAL", "not-a-duration")
	cfg := LoadConfig()
	if cfg.MonitorTickInterval != 10*time.Second {
		t.Errorf("MonitorTickInterval: got %v, want default", cfg.MonitorTickInterval)
	}
}
