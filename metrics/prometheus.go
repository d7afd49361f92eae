package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "activity"

var (
	startTime = time.Now()

	// UptimeSeconds tracks the service uptime in seconds
	UptimeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "service",
		Name:      "uptime_seconds",
		Help:      "Time passed since the service started in seconds",
	})

	// SubmissionsTotal counts ingested sessions (reason=ok/too_short/score_too_high)
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "submissions_total",
		Help:      "Activity submissions by game, outcome reason and endpoint",
	}, []string{"game", "reason", "endpoint"})

	RewardCreditedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "reward_credited_total",
		Help:      "Reward units credited after caps",
	}, []string{"game"})

	// CapClampsTotal counts submissions whose reward was reduced by the daily cap
	CapClampsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "cap_clamps_total",
		Help:      "Submissions clamped by the per-day cap",
	}, []string{"game"})

	ReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "replays_total",
		Help:      "Resubmissions answered from an existing receipt",
	})

	LegacyReceiptFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "legacy_receipt_failures_total",
		Help:      "Legacy submissions whose receipt could not be written",
	})

	LeaderboardQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "leaderboard",
		Name:      "queries_total",
		Help:      "Leaderboard queries by window, metric and source (rollup/ledger)",
	}, []string{"window", "metric", "source"})

	LeaderboardQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "leaderboard",
		Name:      "query_duration_seconds",
		Help:      "Leaderboard query latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	SnapshotPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "publishes_total",
		Help:      "Leaderboard snapshot uploads (status=success/failure)",
	}, []string{"status"})

	ProfileSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "profile_sync",
		Name:      "upserts_total",
		Help:      "Profile names applied from the identity service (status=success/failure)",
	}, []string{"status"})

	NoncesPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "nonces_purged_total",
		Help:      "Expired sign-in challenges removed",
	})

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// StartMetricsCollection updates uptime every 15 seconds until ctx is done.
func StartMetricsCollection(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				UptimeSeconds.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()
}
