// Package metrics registers the Prometheus instruments shared across the
// application.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestDuration *prometheus.HistogramVec

	DelegatesRegistered  prometheus.Counter
	PaymentsInitiated    prometheus.Counter
	PaymentsCompleted    prometheus.Counter
	PaymentsFailed       prometheus.Counter
	CheckInsRecorded     prometheus.Counter
	SMSMessagesSent      prometheus.Counter
	SMSMessagesFailed    prometheus.Counter
	JournalEntriesPosted prometheus.Counter
	AnnouncementsSent    prometheus.Counter
	AuditEventsDropped   prometheus.Counter
	RemindersSent        prometheus.Counter
	LoginFailures        prometheus.Counter
	PledgesRecorded      prometheus.Counter
	TransfersCompleted   prometheus.Counter
	ExpendituresRecorded prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kayo_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		DelegatesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_delegates_registered_total",
			Help: "Total number of delegates registered",
		}),
		PaymentsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_payments_initiated_total",
			Help: "Total number of payments initiated",
		}),
		PaymentsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_payments_completed_total",
			Help: "Total number of payments marked completed",
		}),
		PaymentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_payments_failed_total",
			Help: "Total number of payments marked failed",
		}),
		CheckInsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_checkins_recorded_total",
			Help: "Total number of delegate check-ins recorded",
		}),
		SMSMessagesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_sms_messages_sent_total",
			Help: "Total number of SMS messages accepted by the gateway",
		}),
		SMSMessagesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_sms_messages_failed_total",
			Help: "Total number of SMS messages rejected or errored",
		}),
		JournalEntriesPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_journal_entries_posted_total",
			Help: "Total number of journal entries posted to the ledger",
		}),
		AnnouncementsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_announcements_sent_total",
			Help: "Total number of announcements dispatched",
		}),
		AuditEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_audit_events_dropped_total",
			Help: "Total number of audit events dropped due to a full buffer",
		}),
		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_payment_reminders_sent_total",
			Help: "Total number of payment reminders sent",
		}),
		LoginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_login_failures_total",
			Help: "Total number of failed login attempts",
		}),
		PledgesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_pledges_recorded_total",
			Help: "Total number of pledges recorded",
		}),
		TransfersCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_fund_transfers_completed_total",
			Help: "Total number of fund transfers completed",
		}),
		ExpendituresRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kayo_budget_expenditures_recorded_total",
			Help: "Total number of budget expenditures recorded",
		}),
	}
}

// ObserveHTTPRequest records one request's latency.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, seconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}
