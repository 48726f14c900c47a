// Package apihttp is the HLS Serving Surface (§4.4, §6.3): a read-only HTTP
// API over the Media Record Store and the on-disk HLS output tree. It never
// writes to Mongo, Redis, or disk — every handler here is pure read/serve.
package apihttp

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediapipeline/internal/domain/ports"
)

type Server struct {
	store       ports.MediaRecordStore
	liveStatus  ports.LiveStatusStore
	hlsDir      string
	logger      *slog.Logger
	corsOrigins []string
	handler     http.Handler
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) { s.corsOrigins = origins }
}

// NewServer wires the route table and middleware chain. store backs the
// read-only item views; liveStatus is kept on the Server but no route reads
// it. hlsDir is the root directory the Transcode Worker writes "<id>_hls/"
// subdirectories into.
func NewServer(store ports.MediaRecordStore, liveStatus ports.LiveStatusStore, hlsDir string, opts ...ServerOption) *Server {
	s := &Server{store: store, liveStatus: liveStatus, hlsDir: hlsDir}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/items", s.handleItems)
	mux.HandleFunc("/items/", s.handleItemByID)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "mediapipeline-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(200, 400, metricsMiddleware(corsMiddleware(s.corsOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleItemByID disambiguates the most specific suffix first — master
// playlist, then per-rung playlist, then segment, then thumbnail — before
// falling back to the plain item-detail view (§9 design note: a catch-all
// segment pattern must never shadow the playlist routes).
func (s *Server) handleItemByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/items/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 1 {
		s.handleGetItem(w, r, id)
		return
	}

	tail := parts[1]
	switch {
	case tail == "master.m3u8":
		s.handleMasterPlaylist(w, r, id)
	case strings.HasSuffix(tail, ".m3u8"):
		s.handleRungPlaylist(w, r, id, tail)
	case strings.HasSuffix(tail, ".ts"):
		s.handleSegment(w, r, id, tail)
	case strings.HasPrefix(tail, "thumbnails/") && strings.HasSuffix(tail, ".png"):
		s.handleThumbnail(w, r, id, strings.TrimPrefix(tail, "thumbnails/"))
	default:
		http.NotFound(w, r)
	}
}
