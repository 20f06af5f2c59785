package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain counters. Labels are small fixed sets.
var (
	// SettlementRuns counts settlement invocations by outcome
	// (settled, already_settled, in_progress, content_exhausted, error).
	SettlementRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_runs_total",
			Help: "Settlement job invocations by outcome.",
		},
		[]string{"outcome"},
	)

	// SettlementPoints counts points paid out to authors.
	SettlementPoints = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_points_paid_total",
			Help: "Points credited to authors by settlement.",
		},
	)

	// VoteChanges counts vote mutations by action (add, remove, noop).
	VoteChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vote_changes_total",
			Help: "Vote mutations by action.",
		},
		[]string{"action"},
	)

	// Notifications counts push notifications by kind (winner, milestone, new_round).
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Push notifications requested by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(SettlementRuns, SettlementPoints, VoteChanges, Notifications)
}
