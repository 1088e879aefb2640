// Package metrics provides Prometheus metrics for ritim.
// Counters, gauges and histograms for XP flow, streak transitions,
// achievements, the weekly pass, persistence and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ritim"

// ─── Progression ────────────────────────────────────────────────────────────

// XPAwarded tracks XP granted, labelled by source (task, habit, pomodoro, achievement, manual).
var XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "xp_awarded_total",
	Help:      "Total XP awarded.",
}, []string{"source"})

// XPSpent tracks XP debited by SpendXP.
var XPSpent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "xp_spent_total",
	Help:      "Total XP spent.",
})

// LevelUps tracks level-up events.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "level_ups_total",
	Help:      "Total level-up events.",
})

// RankUps tracks rank changes by the rank reached.
var RankUps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "rank_ups_total",
	Help:      "Total rank-up events.",
}, []string{"rank"})

// Completions tracks tracked activities by kind (task, habit, pomodoro).
var Completions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "completions_total",
	Help:      "Total tracked completions.",
}, []string{"kind"})

// ─── Streaks & Achievements ────────────────────────────────────────────────

// StreakTransitions tracks day-transition outcomes by streak type and kind.
var StreakTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "streak_transitions_total",
	Help:      "Day-transition rule applications by streak type and transition kind.",
}, []string{"streak", "kind"})

// AchievementsUnlocked tracks unlocks by achievement id.
var AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "achievements_unlocked_total",
	Help:      "Total achievement unlocks.",
}, []string{"id"})

// PassActions tracks weekly pass operations by action (use, undo) and result (ok or a rejection reason).
var PassActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "weekly_pass_actions_total",
	Help:      "Weekly pass use/undo attempts by result.",
}, []string{"action", "result"})

// Rejections tracks expected rejections by reason.
var Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "rejections_total",
	Help:      "Mutations rejected with a user-facing reason.",
}, []string{"reason"})

// ─── Persistence ────────────────────────────────────────────────────────────

// PersistLatency tracks document write duration including retries.
var PersistLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "persist_latency_seconds",
	Help:      "Document write duration in seconds, including retries.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
})

// PersistRetries tracks retried document writes.
var PersistRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "persist_retries_total",
	Help:      "Document write attempts that were retried.",
})

// PersistFailures tracks writes that failed after all retries.
var PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "persist_failures_total",
	Help:      "Document writes that failed after exhausting retries.",
})

// StoreBreakerState is the store circuit breaker state (0 closed, 1 open, 2 half-open).
var StoreBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "store_breaker_state",
	Help:      "Store circuit breaker state: 0 closed, 1 open, 2 half-open.",
})

// StoreBreakerTrips tracks how often the store breaker opened.
var StoreBreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "store_breaker_trips_total",
	Help:      "Times the store circuit breaker tripped open.",
})

// ─── Sessions & Jobs ────────────────────────────────────────────────────────

// ActiveUsers tracks loaded per-user aggregates.
var ActiveUsers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "active_users",
	Help:      "Number of user aggregates loaded in memory.",
})

// RolloverRuns tracks day-rollover job executions by result.
var RolloverRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "rollover_runs_total",
	Help:      "Day-rollover job executions.",
}, []string{"result"})

// NotificationsRecorded tracks notifications by type and outcome (recorded, suppressed, sent, send_failed).
var NotificationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "notifications_total",
	Help:      "Notifications by type and outcome.",
}, []string{"type", "outcome"})

// ─── API ────────────────────────────────────────────────────────────────────

// APIRequestDuration tracks HTTP API request duration.
var APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "api_request_duration_seconds",
	Help:      "HTTP API request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})
