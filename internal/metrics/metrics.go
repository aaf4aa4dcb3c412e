// Package metrics holds the Prometheus collectors of the server.
//
// Collectors are registered on a Registry owned by Metrics rather than the
// global default, so tests can build as many instances as they like. Every
// Record method is safe on a nil *Metrics, which lets services run without
// metrics in unit tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePending = "pending"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// GitHub flows
	GitHubLinks      *prometheus.CounterVec
	Installations    *prometheus.CounterVec
	Invitations      *prometheus.CounterVec
	ReposProvisioned *prometheus.CounterVec

	// Background work
	BackgroundTasks *prometheus.CounterVec
	TasksDropped    prometheus.Counter
}

// New creates the collectors under namespace on a fresh registry, together
// with the standard Go runtime and process collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),

		GitHubLinks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "github_links_total",
				Help:      "GitHub account link attempts by slot and outcome",
			},
			[]string{"type", "outcome"},
		),
		Installations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "github_installations_total",
				Help:      "GitHub App installation callbacks by outcome",
			},
			[]string{"outcome"},
		),
		Invitations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "github_invitations_total",
				Help:      "Collaborator invitations by credential used and outcome",
			},
			[]string{"via", "outcome"},
		),
		ReposProvisioned: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repos_provisioned_total",
				Help:      "Repository provisioning attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),

		BackgroundTasks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "background_tasks_total",
				Help:      "Background tasks by name and outcome",
			},
			[]string{"task", "outcome"},
		),
		TasksDropped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "background_tasks_dropped_total",
				Help:      "Background tasks dropped because the queue was full",
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RecordLink(accountType string, ok bool) {
	if m == nil {
		return
	}
	m.GitHubLinks.WithLabelValues(accountType, outcome(ok)).Inc()
}

func (m *Metrics) RecordInstallation(ok bool) {
	if m == nil {
		return
	}
	m.Installations.WithLabelValues(outcome(ok)).Inc()
}

// RecordInvitation counts one collaborator attempt. pending wins over ok.
func (m *Metrics) RecordInvitation(via string, ok, pending bool) {
	if m == nil {
		return
	}
	o := outcome(ok)
	if ok && pending {
		o = OutcomePending
	}
	m.Invitations.WithLabelValues(via, o).Inc()
}

func (m *Metrics) RecordProvision(strategy string, ok bool) {
	if m == nil {
		return
	}
	m.ReposProvisioned.WithLabelValues(strategy, outcome(ok)).Inc()
}

func (m *Metrics) RecordTask(name string, err error) {
	if m == nil {
		return
	}
	m.BackgroundTasks.WithLabelValues(name, outcome(err == nil)).Inc()
}

func (m *Metrics) RecordTaskDropped() {
	if m == nil {
		return
	}
	m.TasksDropped.Inc()
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
