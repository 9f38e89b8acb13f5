package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanbuzz",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "urbanbuzz",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "urbanbuzz",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Exploration pipeline metrics
	ExplorationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanbuzz",
		Subsystem: "explore",
		Name:      "explorations_total",
		Help:      "Explorations finished, by outcome code",
	}, []string{"outcome"})

	ExplorationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "urbanbuzz",
		Subsystem: "explore",
		Name:      "duration_seconds",
		Help:      "End-to-end exploration duration",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
	})

	StopsSampled = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "urbanbuzz",
		Subsystem: "explore",
		Name:      "stops_sampled",
		Help:      "Pit stops per exploration after deduplication",
		Buckets:   []float64{1, 2, 5, 10, 20, 40, 80},
	})

	ImagesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "urbanbuzz",
		Subsystem: "explore",
		Name:      "images_emitted_total",
		Help:      "Street-level image descriptors emitted",
	})

	// DegradedTotal counts best-effort steps that fell back, by stage
	// (reverse_geocode, advisory, safety_geocode).
	DegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanbuzz",
		Subsystem: "explore",
		Name:      "degraded_total",
		Help:      "Best-effort steps that fell back to defaults",
	}, []string{"stage"})

	// EventsDropped counts exploration events not handed to the broker
	// because the publish queue was full.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "urbanbuzz",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Exploration events dropped because the publish queue was full",
	})

	UpstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanbuzz",
		Subsystem: "upstream",
		Name:      "retries_total",
		Help:      "Retried upstream calls on the fatal path",
	}, []string{"operation"})

	RouteAnalysesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "urbanbuzz",
		Subsystem: "analysis",
		Name:      "route_analyses_started_total",
		Help:      "Route analysis workflows started",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "urbanbuzz",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanbuzz",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanbuzz",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "urbanbuzz",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "urbanbuzz",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "urbanbuzz",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics copies pool gauges from a pgxpool.Stat.
func UpdateDBPoolMetrics(stat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}) {
	DBPoolConnsAcquired.Set(float64(stat.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(stat.IdleConns()))
	DBPoolConnsOpen.Set(float64(stat.TotalConns()))
}
