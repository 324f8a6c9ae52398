package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Prefix = "marquee"

// Metrics holds the collectors of the schedule store.
type Metrics struct {
	schedulesCreated  *prometheus.CounterVec
	conflictsDetected *prometheus.CounterVec
	bulkUpdates       *prometheus.CounterVec
	writeDuration     *prometheus.HistogramVec
	notifications     *prometheus.CounterVec
	cacheRefreshes    *prometheus.CounterVec
	cachedMonitors    prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		schedulesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Prefix + "_schedules_created_total",
				Help: "Total number of schedules persisted",
			},
			[]string{"source"},
		),
		conflictsDetected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Prefix + "_conflicts_detected_total",
				Help: "Total number of writes rejected with a conflict",
			},
			[]string{"operation"},
		),
		bulkUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Prefix + "_bulk_updates_total",
				Help: "Total number of bulk schedule updates by result",
			},
			[]string{"result"},
		),
		writeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    Prefix + "_schedule_write_duration_seconds",
				Help:    "Duration of checked schedule writes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Prefix + "_notifications_total",
				Help: "Total number of schedule notifications published",
			},
			[]string{"result"},
		),
		cacheRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Prefix + "_cache_refreshes_total",
				Help: "Total number of daily cache refreshes",
			},
			[]string{"result"},
		),
		cachedMonitors: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: Prefix + "_cached_monitors",
				Help: "Number of monitors in the last daily cache refresh",
			},
		),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordCreated counts n persisted schedules. source is "single" or "bulk".
func (m *Metrics) RecordCreated(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.schedulesCreated.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.conflictsDetected.WithLabelValues(operation).Inc()
}

// RecordBulkUpdate counts one bulk update; conflicted wins over err.
func (m *Metrics) RecordBulkUpdate(conflicted bool, err error) {
	if m == nil {
		return
	}
	label := result(err)
	if conflicted {
		label = "conflict"
	}
	m.bulkUpdates.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveWrite(operation string, since time.Time) {
	if m == nil {
		return
	}
	m.writeDuration.WithLabelValues(operation).Observe(time.Since(since).Seconds())
}

func (m *Metrics) RecordNotification(err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RecordCacheRefresh(monitors int, err error) {
	if m == nil {
		return
	}
	m.cacheRefreshes.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.cachedMonitors.Set(float64(monitors))
	}
}
