package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for collecting room and event metrics
type Collector interface {
	RoomOpened()
	RoomClosed()
	MoveApplied()
	MoveRejected(reason string)
	GameFinished(reason string)
	ConnectionOpened()
	ConnectionClosed()
	RecordEventPublished(eventType string, success bool, duration time.Duration)
	RecordPublishAttempt(eventType string, attempt int, success bool)
	RecordOutboxDropped(eventType string)
}

// NoOp is a no-op implementation for when metrics aren't needed
type NoOp struct{}

func (NoOp) RoomOpened()                                                                 {}
func (NoOp) RoomClosed()                                                                 {}
func (NoOp) MoveApplied()                                                                {}
func (NoOp) MoveRejected(reason string)                                                  {}
func (NoOp) GameFinished(reason string)                                                  {}
func (NoOp) ConnectionOpened()                                                           {}
func (NoOp) ConnectionClosed()                                                           {}
func (NoOp) RecordEventPublished(eventType string, success bool, duration time.Duration) {}
func (NoOp) RecordPublishAttempt(eventType string, attempt int, success bool)            {}
func (NoOp) RecordOutboxDropped(eventType string)                                        {}

// Prometheus implements Collector on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	activeRooms       prometheus.Gauge
	roomsOpened       prometheus.Counter
	activeConnections prometheus.Gauge
	movesApplied      prometheus.Counter
	movesRejected     *prometheus.CounterVec
	gamesFinished     *prometheus.CounterVec
	eventCounter      *prometheus.CounterVec
	eventDuration     *prometheus.HistogramVec
	publishAttempts   *prometheus.CounterVec
	outboxDropped     *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "connectfour",
			Name:      "active_rooms",
			Help:      "Rooms currently registered.",
		}),
		roomsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connectfour",
			Name:      "rooms_opened_total",
			Help:      "Rooms created since start.",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "connectfour",
			Name:      "active_connections",
			Help:      "Open WebSocket connections.",
		}),
		movesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connectfour",
			Name:      "moves_applied_total",
			Help:      "Moves accepted by rooms.",
		}),
		movesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectfour",
			Name:      "moves_rejected_total",
			Help:      "Moves rejected by rooms, by reason.",
		}, []string{"reason"}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectfour",
			Name:      "games_finished_total",
			Help:      "Finished games, by reason.",
		}, []string{"reason"}),
		eventCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectfour",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Match events handed to the publisher.",
		}, []string{"event_type", "status"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "connectfour",
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Time spent publishing one match event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		publishAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectfour",
			Subsystem: "events",
			Name:      "publish_attempts_total",
			Help:      "Individual publish attempts, including retries.",
		}, []string{"event_type", "attempt", "status"}),
		outboxDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectfour",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Match events dropped because the outbox was full.",
		}, []string{"event_type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.activeRooms,
		m.roomsOpened,
		m.activeConnections,
		m.movesApplied,
		m.movesRejected,
		m.gamesFinished,
		m.eventCounter,
		m.eventDuration,
		m.publishAttempts,
		m.outboxDropped,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Prometheus) RoomOpened() {
	m.activeRooms.Inc()
	m.roomsOpened.Inc()
}

func (m *Prometheus) RoomClosed() {
	m.activeRooms.Dec()
}

func (m *Prometheus) MoveApplied() {
	m.movesApplied.Inc()
}

func (m *Prometheus) MoveRejected(reason string) {
	m.movesRejected.WithLabelValues(reason).Inc()
}

func (m *Prometheus) GameFinished(reason string) {
	m.gamesFinished.WithLabelValues(reason).Inc()
}

func (m *Prometheus) ConnectionOpened() {
	m.activeConnections.Inc()
}

func (m *Prometheus) ConnectionClosed() {
	m.activeConnections.Dec()
}

func (m *Prometheus) RecordEventPublished(eventType string, success bool, duration time.Duration) {
	m.eventCounter.WithLabelValues(eventType, status(success)).Inc()
	m.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (m *Prometheus) RecordPublishAttempt(eventType string, attempt int, success bool) {
	m.publishAttempts.WithLabelValues(eventType, strconv.Itoa(attempt), status(success)).Inc()
}

func (m *Prometheus) RecordOutboxDropped(eventType string) {
	m.outboxDropped.WithLabelValues(eventType).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
