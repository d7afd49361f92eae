package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"activity-reward-system/metrics"

	"go.uber.org/zap"
)

// ObjectUploader stores a JSON object under key and returns its public URL.
type ObjectUploader interface {
	PutJSON(ctx context.Context, key string, body []byte) (string, error)
}

// SnapshotPublisher renders every (window, metric) board without a game
// filter and uploads it as leaderboards/<window>/<metric>.json.
type SnapshotPublisher struct {
	Boards   *LeaderboardService
	Uploader ObjectUploader
	Limit    int
	Now      func() time.Time
}

func NewSnapshotPublisher(boards *LeaderboardService, uploader ObjectUploader) *SnapshotPublisher {
	return &SnapshotPublisher{Boards: boards, Uploader: uploader, Limit: MaxLeaderboardLimit, Now: time.Now}
}

type leaderboardSnapshot struct {
	GeneratedAt time.Time `json:"generatedAt"`
	*LeaderboardResult
}

func SnapshotKey(w Window, m Metric) string {
	return fmt.Sprintf("leaderboards/%s/%s.json", w, m)
}

// PublishAll keeps going after a failed board and returns the first error.
func (p *SnapshotPublisher) PublishAll(ctx context.Context) (int, error) {
	windows := []Window{WindowLifetime, WindowDay, WindowWeek, WindowMonth}
	var (
		published int
		firstErr  error
	)
	for _, w := range windows {
		for _, m := range AllMetrics {
			if err := ctx.Err(); err != nil {
				return published, err
			}
			url, err := p.publish(ctx, w, m)
			if err != nil {
				metrics.SnapshotPublishesTotal.WithLabelValues("failure").Inc()
				zap.L().Warn("[SNAPSHOT] publish failed",
					zap.String("window", string(w)),
					zap.String("metric", string(m)),
					zap.Error(err),
				)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			metrics.SnapshotPublishesTotal.WithLabelValues("success").Inc()
			zap.L().Debug("[SNAPSHOT] published", zap.String("url", url))
			published++
		}
	}
	zap.L().Info("[SNAPSHOT] run finished", zap.Int("published", published))
	return published, firstErr
}

func (p *SnapshotPublisher) publish(ctx context.Context, w Window, m Metric) (string, error) {
	result, err := p.Boards.Query(ctx, LeaderboardQuery{Window: w, Metric: m, Limit: p.Limit})
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(leaderboardSnapshot{GeneratedAt: p.Now().UTC(), LeaderboardResult: result})
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return p.Uploader.PutJSON(ctx, SnapshotKey(w, m), body)
}
