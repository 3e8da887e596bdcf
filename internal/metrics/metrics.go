// Package metrics собирает метрики жизненного цикла сессий для Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector реализует session.Recorder поверх Prometheus
type Collector struct {
	entries        *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	charges        *prometheus.CounterVec
	noShows        prometheus.Counter
	terminations   *prometheus.CounterVec
	statusFailures *prometheus.CounterVec
	active         prometheus.Gauge
}

// NewCollector создаёт Collector и регистрирует метрики в реестре
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessonroom_session_entries_total",
			Help: "Sessions entered, by role",
		}, []string{"role"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessonroom_session_rejections_total",
			Help: "Session entries rejected before the room opened, by reason",
		}, []string{"reason"}),
		charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessonroom_charges_total",
			Help: "Lesson charge outcomes, by status",
		}, []string{"status"}),
		noShows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lessonroom_no_shows_total",
			Help: "Lessons cancelled because the teacher did not join",
		}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessonroom_session_terminations_total",
			Help: "Session terminations, by reason",
		}, []string{"reason"}),
		statusFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessonroom_booking_status_failures_total",
			Help: "Booking status updates that failed and were queued for reconciliation",
		}, []string{"status"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lessonroom_active_sessions",
			Help: "Sessions currently live in this process",
		}),
	}

	reg.MustRegister(
		c.entries,
		c.rejections,
		c.charges,
		c.noShows,
		c.terminations,
		c.statusFailures,
		c.active,
	)

	return c
}

func (c *Collector) RecordEntry(role string) {
	c.entries.WithLabelValues(role).Inc()
}

func (c *Collector) RecordRejection(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordCharge(status string) {
	c.charges.WithLabelValues(status).Inc()
}

func (c *Collector) RecordNoShow() {
	c.noShows.Inc()
}

func (c *Collector) RecordTermination(reason string) {
	c.terminations.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordStatusFailure(status string) {
	c.statusFailures.WithLabelValues(status).Inc()
}

func (c *Collector) SetActiveSessions(n int) {
	c.active.Set(float64(n))
}

// Handler HTTP-обработчик для скрейпа Prometheus
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
