package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Метрики конвейера
	FixesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "btm_fixes_processed_total",
			Help: "Total number of raw fixes processed by the pipeline",
		},
	)

	FixesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "btm_fixes_rejected_total",
			Help: "Total number of raw fixes rejected before entering the pipeline",
		},
	)

	FixesForReview = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "btm_fixes_review_total",
			Help: "Total number of enriched points with the review recommendation",
		},
	)

	FixesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "btm_fixes_skipped_total",
			Help: "Total number of fixes skipped by the minimum movement gate",
		},
	)

	QualityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "btm_fix_quality_score",
			Help:    "Distribution of per-fix quality scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// Метрики детектора аномалий
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btm_alerts_total",
			Help: "Total number of anomaly alerts by kind",
		},
		[]string{"kind"},
	)

	// HTTP метрики
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "btm_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WebSocket метрики
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "btm_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btm_websocket_messages_out_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	// MQTT метрики
	MQTTMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "btm_mqtt_messages_received_total",
			Help: "Total number of MQTT fix messages received",
		},
	)

	MQTTParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "btm_mqtt_parse_errors_total",
			Help: "Total number of MQTT message parse errors",
		},
	)

	MQTTConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "btm_mqtt_connection_status",
			Help: "MQTT connection status (1 = connected, 0 = disconnected)",
		},
	)

	// Redis метрики
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "btm_redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btm_redis_operation_errors_total",
			Help: "Total number of Redis operation errors",
		},
		[]string{"operation"},
	)

	// MySQL метрики
	MySQLBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "btm_mysql_batch_size",
			Help:    "Size of MySQL point batch inserts",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
		},
	)

	MySQLWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "btm_mysql_write_errors_total",
			Help: "Total number of MySQL write errors",
		},
	)

	// Общие метрики приложения
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "btm_app_info",
			Help: "Application information",
		},
		[]string{"version"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "btm_active_sessions_total",
			Help: "Number of active recording sessions",
		},
	)
)

// SetAppInfo устанавливает информацию о версии приложения
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version).Set(1)
}
