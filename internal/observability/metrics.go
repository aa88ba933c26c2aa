package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mavkit/mavctl/internal/mavlink/stream"
)

var (
	registerOnce sync.Once

	linkBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mavctl",
			Subsystem: "link",
			Name:      "bytes_total",
			Help:      "Raw bytes fed into the framer.",
		},
		[]string{"link"},
	)
	framesAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mavctl",
			Subsystem: "link",
			Name:      "frames_accepted_total",
			Help:      "Frames that passed CRC and signature policy.",
		},
		[]string{"link", "msg"},
	)
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mavctl",
			Subsystem: "link",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped by the framer, by reason.",
		},
		[]string{"link", "reason"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mavctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mavctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(linkBytes, framesAccepted, framesDropped, httpRequests, httpDuration)
	})
}

func RecordBytes(link string, n int) {
	RegisterMetrics()
	linkBytes.WithLabelValues(link).Add(float64(n))
}

func RecordFrameAccepted(link, msg string) {
	RegisterMetrics()
	framesAccepted.WithLabelValues(link, msg).Inc()
}

// RecordDrops publishes the delta between two framer stat snapshots.
func RecordDrops(link string, before, after stream.Stats) {
	RegisterMetrics()
	record := func(reason string, b, a uint64) {
		if a > b {
			framesDropped.WithLabelValues(link, reason).Add(float64(a - b))
		}
	}
	record("bad_crc", before.BadCRC, after.BadCRC)
	record("bad_length", before.BadLength, after.BadLength)
	record("unknown_message", before.UnknownMessage, after.UnknownMessage)
	record("signature", before.SignatureFailures, after.SignatureFailures)
	record("buffer_overflow", before.BufferOverflows, after.BufferOverflows)
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
