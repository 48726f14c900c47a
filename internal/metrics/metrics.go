package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediapipeline",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediapipeline",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	MonitorTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediapipeline",
		Name:      "monitor_ticks_total",
		Help:      "Total number of Download Monitor reconciliation ticks.",
	})

	MonitorTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mediapipeline",
		Name:      "monitor_tick_duration_seconds",
		Help:      "Duration of a single Download Monitor tick.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	MonitorTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediapipeline",
		Name:      "monitor_transitions_total",
		Help:      "Total status transitions performed by the Monitor, by from/to state.",
	}, []string{"from", "to"})

	ActiveDownloads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediapipeline",
		Name:      "active_downloads",
		Help:      "Number of items currently in the DOWNLOADING state.",
	})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediapipeline",
		Name:      "download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second, as reported by the downloader.",
	})

	JobsEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediapipeline",
		Name:      "jobs_enqueued_total",
		Help:      "Total Transcode Jobs pushed onto the queue, by kind.",
	}, []string{"kind"})

	JobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediapipeline",
		Name:      "jobs_in_flight",
		Help:      "Number of items currently held in the Monitor's single-flight set.",
	})

	EncodeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediapipeline",
		Name:      "encode_duration_seconds",
		Help:      "Duration of a single FFmpeg rung encode.",
		Buckets:   []float64{5, 15, 30, 60, 180, 600, 1800, 3600},
	}, []string{"rung"})

	EncodeFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediapipeline",
		Name:      "encode_failures_total",
		Help:      "Total rung encode failures by rung and error category.",
	}, []string{"rung", "category"})

	RungsAvailableTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediapipeline",
		Name:      "rungs_available_total",
		Help:      "Total rungs that became available for streaming.",
	})

	RecoverySweepRequeuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediapipeline",
		Name:      "recovery_sweep_requeued_total",
		Help:      "Total items requeued by a Worker's startup recovery sweep.",
	})

	HeartbeatsPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediapipeline",
		Name:      "heartbeats_published_total",
		Help:      "Total Worker heartbeat publications.",
	})

	HLSPlaylistRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediapipeline",
		Name:      "hls_playlist_requests_total",
		Help:      "Total HLS playlist requests by kind (master, media) and status.",
	}, []string{"kind", "status"})

	HLSSegmentBytesServedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediapipeline",
		Name:      "hls_segment_bytes_served_total",
		Help:      "Total bytes served from HLS segment responses.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		MonitorTicksTotal,
		MonitorTickDuration,
		MonitorTransitionsTotal,
		ActiveDownloads,
		DownloadSpeedBytes,
		JobsEnqueuedTotal,
		JobsInFlight,
		EncodeDuration,
		EncodeFailuresTotal,
		RungsAvailableTotal,
		RecoverySweepRequeuedTotal,
		HeartbeatsPublishedTotal,
		HLSPlaylistRequestsTotal,
		HLSSegmentBytesServedTotal,
	)
}
