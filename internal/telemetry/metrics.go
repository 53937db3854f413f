package telemetry

import (
	"strconv"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "helpdesk_settings"

// Metrics holds the prometheus collectors of the settings engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	saves           *prometheus.CounterVec
	toggles         *prometheus.CounterVec
	saveDuration    *prometheus.HistogramVec
	reconciliation  *prometheus.CounterVec
	syncBacks       *prometheus.CounterVec
	dirtySections   *prometheus.GaugeVec
	connectionTests *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		saves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "section_saves_total",
			Help:      "Section saves by outcome (success, invalid, failed, busy).",
		}, []string{"section", "result"}),
		toggles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "section_toggles_total",
			Help:      "Immediate toggles by outcome.",
		}, []string{"section", "result"}),
		saveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_duration_seconds",
			Help:      "Time spent persisting a section.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"section"}),
		reconciliation: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_errors_total",
			Help:      "Background SLA reconciliation failures by operation.",
		}, []string{"op"}),
		syncBacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_sync_backs_total",
			Help:      "Writes of the canonical SLA policy list into the settings store.",
		}, []string{"result"}),
		dirtySections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "section_dirty",
			Help:      "1 while a section has unsaved edits.",
		}, []string{"section"}),
		connectionTests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_tests_total",
			Help:      "Integration connection tests by kind and outcome.",
		}, []string{"kind", "result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
	}
}

func (m *Metrics) Save(section domain.SectionName, result string) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(string(section), result).Inc()
}

func (m *Metrics) Toggle(section domain.SectionName, result string) {
	if m == nil {
		return
	}
	m.toggles.WithLabelValues(string(section), result).Inc()
}

func (m *Metrics) PersistDuration(section domain.SectionName, seconds float64) {
	if m == nil {
		return
	}
	m.saveDuration.WithLabelValues(string(section)).Observe(seconds)
}

func (m *Metrics) ReconciliationError(op string) {
	if m == nil {
		return
	}
	m.reconciliation.WithLabelValues(op).Inc()
}

func (m *Metrics) SyncBack(result string) {
	if m == nil {
		return
	}
	m.syncBacks.WithLabelValues(result).Inc()
}

func (m *Metrics) Dirty(section domain.SectionName, dirty bool) {
	if m == nil {
		return
	}
	v := 0.0
	if dirty {
		v = 1
	}
	m.dirtySections.WithLabelValues(string(section)).Set(v)
}

func (m *Metrics) ConnectionTest(kind string, success bool) {
	if m == nil {
		return
	}
	result := "failed"
	if success {
		result = "success"
	}
	m.connectionTests.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
