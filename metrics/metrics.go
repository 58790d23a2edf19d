// metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Client-side stream metrics
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_stream_connected",
		Help: "1 while the stream connection is established, 0 otherwise.",
	})

	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_stream_reconnect_attempts_total",
		Help: "Reconnect attempts scheduled after unexpected closes.",
	})

	HeartbeatTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_stream_heartbeat_timeouts_total",
		Help: "Connections force-closed after missing peer liveness.",
	})

	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_stream_malformed_frames_total",
		Help: "Inbound frames dropped because they failed to decode.",
	})

	// Notification feed metrics
	NotificationsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_notifications_ingested_total",
		Help: "Notification events accepted into the feed.",
	})

	NotificationsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_notifications_deduplicated_total",
		Help: "Notification events ignored as duplicates.",
	})

	UnreadNotifications = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_notifications_unread",
		Help: "Current unread notification count.",
	})

	// Relay-side metrics
	RelayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_relay_clients",
		Help: "WebSocket clients currently registered on the relay hub.",
	})

	RelayDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_relay_dropped_frames_total",
		Help: "Frames dropped because a relay client was too slow.",
	})
)

// Handler exposes the default registry for the relay's /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
