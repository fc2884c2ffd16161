package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain collectors. Label values come from closed sets (driver codes,
// statuses, callback outcomes) so cardinality stays bounded.
var (
	CapturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_captures_total",
			Help: "Capture attempts by driver and resulting status.",
		},
		[]string{"driver", "status"},
	)

	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_callbacks_total",
			Help: "Inbound terminal callbacks by outcome.",
		},
		[]string{"outcome"},
	)

	LedgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_ledger_entries_total",
			Help: "Card transactions written to the ledger by status.",
		},
		[]string{"status"},
	)
)

// Callback outcomes.
const (
	CallbackApplied      = "applied"
	CallbackProgress     = "progress"
	CallbackDuplicate    = "duplicate"
	CallbackUnauthorized = "unauthorized"
	CallbackNotFound     = "not_found"
)

func init() {
	prometheus.MustRegister(CapturesTotal, CallbacksTotal, LedgerEntriesTotal)
}

// ObserveCapture counts one capture attempt.
func ObserveCapture(driver, status string) {
	if driver == "" {
		driver = "unresolved"
	}
	CapturesTotal.WithLabelValues(driver, status).Inc()
}

// ObserveCallback counts one callback delivery.
func ObserveCallback(outcome string) {
	CallbacksTotal.WithLabelValues(outcome).Inc()
}

// ObserveLedgerEntry counts one ledger insert.
func ObserveLedgerEntry(status string) {
	LedgerEntriesTotal.WithLabelValues(status).Inc()
}
