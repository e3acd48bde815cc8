package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdcpmux",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdcpmux",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	dispatchForwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdcpmux",
			Subsystem: "dispatch",
			Name:      "forwards_total",
			Help:      "Data units handed to a bearer entity or upper-layer endpoint.",
		},
		[]string{"route"},
	)
	dispatchDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdcpmux",
			Subsystem: "dispatch",
			Name:      "drops_total",
			Help:      "Data units dropped by the multiplexer, by route and reason.",
		},
		[]string{"route", "reason"},
	)
	bearerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdcpmux",
			Subsystem: "bearer",
			Name:      "events_total",
			Help:      "Bearer lifecycle and configuration events.",
		},
		[]string{"table", "event"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, dispatchForwards, dispatchDrops, bearerEvents)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordDispatchForward(route string) {
	RegisterMetrics()
	dispatchForwards.WithLabelValues(route).Inc()
}

func RecordDispatchDrop(route, reason string) {
	RegisterMetrics()
	dispatchDrops.WithLabelValues(route, reason).Inc()
}

func RecordBearerEvent(table, event string) {
	RegisterMetrics()
	bearerEvents.WithLabelValues(table, event).Inc()
}

// DispatchDrops reads the current drop count for one route and reason.
func DispatchDrops(route, reason string) float64 {
	return counterValue(dispatchDrops.WithLabelValues(route, reason))
}

// DispatchForwards reads the current forward count for one route.
func DispatchForwards(route string) float64 {
	return counterValue(dispatchForwards.WithLabelValues(route))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
