package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Phase outcomes by phase and resulting section status
	PhaseOutcome *prometheus.CounterVec

	// Phase wall-clock duration by phase
	PhaseDuration *prometheus.HistogramVec

	// Phase writes dropped because the record moved on
	PhaseSuperseded *prometheus.CounterVec

	// Duplicate triggers skipped by the phase lock
	PhaseSkipped *prometheus.CounterVec

	// Dependent phases that could not be scheduled
	FollowUpFailures prometheus.Counter

	StalenessEscalations *prometheus.CounterVec

	AdminOverrides *prometheus.CounterVec

	// OCG results by mapped status, plus "unmatched" and "ignored"
	OCGResults *prometheus.CounterVec

	NotificationsSent *prometheus.CounterVec
}

// New registers the verification metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PhaseOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carecheck_phase_outcomes_total",
			Help: "Pipeline phase outcomes by phase and resulting status",
		}, []string{"phase", "status"}),

		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carecheck_phase_duration_seconds",
			Help:    "Duration of pipeline phases including extraction",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"phase"}),

		PhaseSuperseded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carecheck_phase_superseded_total",
			Help: "Phase results dropped because a newer submission or decision arrived",
		}, []string{"phase"}),

		PhaseSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carecheck_phase_skipped_total",
			Help: "Phase triggers skipped because the same phase was already running",
		}, []string{"phase"}),

		FollowUpFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "carecheck_follow_up_failures_total",
			Help: "Dependent phases that could not be scheduled and were marked for follow-up",
		}),

		StalenessEscalations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carecheck_staleness_escalations_total",
			Help: "Automated checks escalated to review after timing out",
		}, []string{"section"}),

		AdminOverrides: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carecheck_admin_overrides_total",
			Help: "Admin override actions by action",
		}, []string{"action"}),

		OCGResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carecheck_ocg_results_total",
			Help: "OCG email results by outcome",
		}, []string{"outcome"}),

		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carecheck_notifications_sent_total",
			Help: "Failure notifications sent by type",
		}, []string{"type"}),
	}
}

func (m *Metrics) ObservePhase(phase, status string, d time.Duration) {
	if m != nil {
		m.PhaseOutcome.WithLabelValues(phase, status).Inc()
		m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementSuperseded(phase string) {
	if m != nil {
		m.PhaseSuperseded.WithLabelValues(phase).Inc()
	}
}

func (m *Metrics) IncrementSkipped(phase string) {
	if m != nil {
		m.PhaseSkipped.WithLabelValues(phase).Inc()
	}
}

func (m *Metrics) IncrementFollowUpFailure() {
	if m != nil {
		m.FollowUpFailures.Inc()
	}
}

func (m *Metrics) IncrementEscalation(section string) {
	if m != nil {
		m.StalenessEscalations.WithLabelValues(section).Inc()
	}
}

func (m *Metrics) IncrementAdminOverride(action string) {
	if m != nil {
		m.AdminOverrides.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncrementOCGResult(outcome string) {
	if m != nil {
		m.OCGResults.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementNotification(typ string) {
	if m != nil {
		m.NotificationsSent.WithLabelValues(typ).Inc()
	}
}
