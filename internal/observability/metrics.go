package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Drop reasons used as the "reason" label of FramesDropped.
const (
	ReasonUnknownFrame  = "unknown_frame"
	ReasonUnknownDevice = "unknown_device"
	ReasonTruncated     = "truncated"
	ReasonStore         = "store_error"
	ReasonDecode        = "decode_error"
)

var (
	TCPConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jttracker_tcp_connections_total",
		Help: "Accepted TCP connections",
	})
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jttracker_frames_received_total",
		Help: "Frames handed to the dispatcher",
	})
	RecordsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jttracker_records_decoded_total",
		Help: "Position records decoded, by protocol",
	}, []string{"protocol"})
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jttracker_frames_dropped_total",
		Help: "Frames that produced no stored record, by reason",
	}, []string{"reason"})
	AcksSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jttracker_acks_sent_total",
		Help: "Acknowledgment frames written back to terminals",
	})
	PublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jttracker_publish_errors_total",
		Help: "Records that could not be published to the stream",
	})
	DecodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jttracker_decode_latency_seconds",
		Help:    "Time to decode and store one frame",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveDecodeLatency(start time.Time) {
	DecodeLatency.Observe(time.Since(start).Seconds())
}

// NewMetricsHandler serves /metrics and /healthz.
func NewMetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// StartMetricsServer blocks serving the metrics handler on port.
func StartMetricsServer(port string, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewMetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}
