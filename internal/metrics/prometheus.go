// Package metrics provides Prometheus metrics for the AdWave adapter
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Load metrics
	LoadsTotal     *prometheus.CounterVec
	LoadDuration   *prometheus.HistogramVec
	LoadCollisions *prometheus.CounterVec

	// Show metrics
	ShowsTotal   *prometheus.CounterVec
	ShowDuration *prometheus.HistogramVec

	// Router metrics
	RouterEvents  *prometheus.CounterVec
	RouterDropped *prometheus.CounterVec

	// Partner metrics
	PartnerErrors *prometheus.CounterVec

	// Privacy metrics
	ConsentSignals *prometheus.CounterVec
}

// New creates all adapter metrics without registering them. Use Default for
// the process-wide registered instance.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "adwave"
	}

	return &Metrics{
		LoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loads_total",
				Help:      "Total number of ad load requests",
			},
			[]string{"ad_format", "result"},
		),
		LoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "load_duration_seconds",
				Help:      "Ad load duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"ad_format"},
		),
		LoadCollisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_collisions_total",
				Help:      "Loads rejected because the placement already had one in flight",
			},
			[]string{"ad_format"},
		),
		ShowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shows_total",
				Help:      "Total number of ad show requests",
			},
			[]string{"ad_format", "result"},
		),
		ShowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "show_duration_seconds",
				Help:      "Time from show call to opened/show-failed in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"ad_format"},
		),
		RouterEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "router_events_total",
				Help:      "Partner callbacks routed to a pending listener",
			},
			[]string{"ad_format", "event"},
		),
		RouterDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "router_dropped_total",
				Help:      "Partner callbacks dropped because no listener owned the placement",
			},
			[]string{"ad_format", "event"},
		),
		PartnerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partner_errors_total",
				Help:      "Errors reported by the AdWave SDK by partner code",
			},
			[]string{"code"},
		),
		ConsentSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consent_signals_total",
				Help:      "Consent signals forwarded to the partner SDK",
			},
			[]string{"signal", "granted"},
		),
	}
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default returns the process-wide metrics instance, registered with the
// default Prometheus registry on first use
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New("adwave")
		prometheus.MustRegister(
			defaultMetrics.LoadsTotal,
			defaultMetrics.LoadDuration,
			defaultMetrics.LoadCollisions,
			defaultMetrics.ShowsTotal,
			defaultMetrics.ShowDuration,
			defaultMetrics.RouterEvents,
			defaultMetrics.RouterDropped,
			defaultMetrics.PartnerErrors,
			defaultMetrics.ConsentSignals,
		)
	})
	return defaultMetrics
}

// Handler returns the Prometheus scrape handler for hosts exposing /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLoad records one resolved load request
func (m *Metrics) RecordLoad(adFormat, result string, duration time.Duration) {
	m.LoadsTotal.WithLabelValues(adFormat, result).Inc()
	m.LoadDuration.WithLabelValues(adFormat).Observe(duration.Seconds())
}

// RecordLoadCollision records a load rejected by the collision guard
func (m *Metrics) RecordLoadCollision(adFormat string) {
	m.LoadCollisions.WithLabelValues(adFormat).Inc()
}

// RecordShow records one resolved show request
func (m *Metrics) RecordShow(adFormat, result string, duration time.Duration) {
	m.ShowsTotal.WithLabelValues(adFormat, result).Inc()
	m.ShowDuration.WithLabelValues(adFormat).Observe(duration.Seconds())
}

// RecordRouterEvent records a partner callback routed to its listener
func (m *Metrics) RecordRouterEvent(adFormat, event string) {
	m.RouterEvents.WithLabelValues(adFormat, event).Inc()
}

// RecordRouterDropped records a partner callback with no owning listener
func (m *Metrics) RecordRouterDropped(adFormat, event string) {
	m.RouterDropped.WithLabelValues(adFormat, event).Inc()
}

// RecordPartnerError records an error reported by the partner SDK
func (m *Metrics) RecordPartnerError(code int) {
	m.PartnerErrors.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RecordConsentSignal records a consent signal forwarded to the partner
func (m *Metrics) RecordConsentSignal(signal string, granted bool) {
	value := "no"
	if granted {
		value = "yes"
	}
	m.ConsentSignals.WithLabelValues(signal, value).Inc()
}
