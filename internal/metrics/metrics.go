package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"peerprep/interview/internal/models"
	"peerprep/interview/internal/room_management"
)

const namespace = "peerprep"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"service", "method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "path", "status"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	}, []string{"service"})

	roomEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "interview",
		Name:      "room_events_total",
		Help:      "Room lifecycle events by type",
	}, []string{"type"})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "interview",
		Name:      "session_duration_seconds",
		Help:      "Length of finished interview sessions",
		Buckets:   []float64{60, 300, 600, 1200, 1800, 2700, 3600, 5400},
	})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("interview metrics: underlying ResponseWriter does not support hijacking")
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request metrics. Paths are labelled with the chi route
// pattern so room ids do not explode cardinality.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.WithLabelValues(service).Inc()
			defer httpInFlight.WithLabelValues(service).Dec()

			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}
			labels := prometheus.Labels{
				"service": service,
				"method":  r.Method,
				"path":    path,
				"status":  strconv.Itoa(rec.status),
			}
			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatsSource is satisfied by *room_management.RoomManager.
type StatsSource interface {
	Stats() room_management.Stats
}

// RegisterRoomGauges exposes queue depths, active pairs and room count, read
// from src at scrape time.
func RegisterRoomGauges(reg prometheus.Registerer, src StatsSource) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "interview",
			Name:        "waiting_users",
			Help:        "Users waiting for a peer",
			ConstLabels: prometheus.Labels{"role": string(models.RoleAsker)},
		}, func() float64 { return float64(src.Stats().WaitingAskers) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "interview",
			Name:        "waiting_users",
			Help:        "Users waiting for a peer",
			ConstLabels: prometheus.Labels{"role": string(models.RoleRespondent)},
		}, func() float64 { return float64(src.Stats().WaitingRespondents) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "active_pairs",
			Help:      "Pairs currently in session",
		}, func() float64 { return float64(src.Stats().ActivePairs) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "rooms",
			Help:      "Open rooms",
		}, func() float64 { return float64(src.Stats().Rooms) }),
	}
	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// EventCounter counts room events; it is registered as a room listener.
type EventCounter struct{}

func (EventCounter) HandleEvent(_ context.Context, event models.Event) {
	roomEvents.WithLabelValues(string(event.Type)).Inc()
	if event.Type == models.EventFinished && !event.StartedAt.IsZero() {
		sessionDuration.Observe(event.At.Sub(event.StartedAt).Seconds())
	}
}
