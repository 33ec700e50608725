package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the credential core.
// All methods are safe on a nil receiver so components can run unmetered.
type Metrics struct {
	IdentitiesCreated  prometheus.Counter
	KeysRotated        prometheus.Counter
	AttendanceRecorded prometheus.Counter
	AttendanceRejected *prometheus.CounterVec
	CredentialsIssued  prometheus.Counter
	IssuanceRejected   *prometheus.CounterVec
	CredentialsRevoked prometheus.Counter
	Verifications      *prometheus.CounterVec
	LedgerLockWait     prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IdentitiesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "presence_identities_created_total",
			Help: "Total number of DIDs created",
		}),
		KeysRotated: f.NewCounter(prometheus.CounterOpts{
			Name: "presence_keys_rotated_total",
			Help: "Total number of key versions appended by rotation",
		}),
		AttendanceRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "presence_attendance_recorded_total",
			Help: "Total number of accepted attendance events",
		}),
		AttendanceRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_attendance_rejected_total",
			Help: "Attendance submissions rejected, by reason",
		}, []string{"reason"}),
		CredentialsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "presence_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		IssuanceRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_issuance_rejected_total",
			Help: "Issuance attempts rejected, by reason",
		}, []string{"reason"}),
		CredentialsRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "presence_credentials_revoked_total",
			Help: "Total number of credentials revoked",
		}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_verifications_total",
			Help: "Credential verifications, by outcome",
		}, []string{"outcome"}),
		LedgerLockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "presence_ledger_shard_lock_wait_seconds",
			Help:    "Time spent waiting for the per-subject ledger lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncIdentitiesCreated() {
	if m != nil {
		m.IdentitiesCreated.Inc()
	}
}

func (m *Metrics) IncKeysRotated() {
	if m != nil {
		m.KeysRotated.Inc()
	}
}

func (m *Metrics) IncAttendanceRecorded() {
	if m != nil {
		m.AttendanceRecorded.Inc()
	}
}

func (m *Metrics) IncAttendanceRejected(reason string) {
	if m != nil {
		m.AttendanceRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncCredentialsIssued() {
	if m != nil {
		m.CredentialsIssued.Inc()
	}
}

func (m *Metrics) IncIssuanceRejected(reason string) {
	if m != nil {
		m.IssuanceRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncCredentialsRevoked() {
	if m != nil {
		m.CredentialsRevoked.Inc()
	}
}

// ObserveVerification counts a verification; outcome is "valid" or the failure reason.
func (m *Metrics) ObserveVerification(outcome string) {
	if m != nil {
		m.Verifications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveLedgerLockWait(seconds float64) {
	if m != nil {
		m.LedgerLockWait.Observe(seconds)
	}
}
