package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"activity-reward-system/metrics"
	"activity-reward-system/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 200
)

const (
	SourceRollup = "rollup"
	SourceLedger = "ledger"
)

type LeaderboardQuery struct {
	Window Window
	Metric Metric
	Game   *models.Game
	Limit  int
}

// ParseLeaderboardQuery normalizes raw query parameters. The game filter is
// strict: unrecognized names are a validation error, not coerced.
func ParseLeaderboardQuery(window, metric, game string, limit int) (LeaderboardQuery, error) {
	w, err := ParseWindow(window)
	if err != nil {
		return LeaderboardQuery{}, err
	}
	m, err := ParseMetric(metric)
	if err != nil {
		return LeaderboardQuery{}, err
	}
	q := LeaderboardQuery{Window: w, Metric: m, Limit: ClampLimit(limit)}
	if game = strings.TrimSpace(game); game != "" && !strings.EqualFold(game, "all") {
		g, ok := models.LookupGame(game)
		if !ok {
			return LeaderboardQuery{}, fmt.Errorf("%w: unknown game %q", ErrValidation, game)
		}
		q.Game = &g
	}
	return q, nil
}

// ClampLimit maps 0 (absent) to the default and clamps everything else to
// [1, MaxLeaderboardLimit].
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLeaderboardLimit
	case limit < 0:
		return 1
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	default:
		return limit
	}
}

type LeaderboardRow struct {
	Rank         int     `json:"rank"`
	Address      string  `json:"address"`
	DisplayName  *string `json:"displayName"`
	Value        float64 `json:"value"`
	Reward       int64   `json:"reward"`
	Score        int64   `json:"score"`
	Distance     float64 `json:"distance"`
	DurationMs   int64   `json:"durationMs"`
	Streak       int64   `json:"streak"`
	Sessions     int64   `json:"sessions"`
	BestDuration float64 `json:"bestDuration,omitempty"`
}

type LeaderboardResult struct {
	Window Window           `json:"window"`
	Metric Metric           `json:"metric"`
	Game   *models.Game     `json:"game,omitempty"`
	Source string           `json:"source"`
	Since  *time.Time       `json:"since,omitempty"`
	Rows   []LeaderboardRow `json:"rows"`
}

// LeaderboardService answers ranked queries. It never writes.
type LeaderboardService struct {
	DB  *gorm.DB
	Loc *time.Location
	Now func() time.Time
}

func NewLeaderboardService(db *gorm.DB, loc *time.Location) *LeaderboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &LeaderboardService{DB: db, Loc: loc, Now: time.Now}
}

// servedFromRollup: lifetime reward/distance without a game filter is
// already maintained on users.
func servedFromRollup(q LeaderboardQuery) bool {
	return q.Window == WindowLifetime && q.Game == nil &&
		(q.Metric == MetricReward || q.Metric == MetricDistance)
}

// Query ranks strictly by value descending. Ties keep whatever order the
// store returns; no secondary sort is applied.
func (s *LeaderboardService) Query(ctx context.Context, q LeaderboardQuery) (*LeaderboardResult, error) {
	q.Limit = ClampLimit(q.Limit)
	start := time.Now()

	result := &LeaderboardResult{Window: q.Window, Metric: q.Metric, Game: q.Game}
	var err error
	if servedFromRollup(q) {
		result.Source = SourceRollup
		result.Rows, err = s.queryRollup(ctx, q)
	} else {
		result.Source = SourceLedger
		since := q.Window.Since(s.Now(), s.Loc)
		if !since.IsZero() {
			result.Since = &since
		}
		result.Rows, err = s.queryLedger(ctx, q, since)
	}
	if err != nil {
		zap.L().Error("[LEADERBOARD] query failed",
			zap.String("window", string(q.Window)),
			zap.String("metric", string(q.Metric)),
			zap.Error(err),
		)
		return nil, err
	}
	for i := range result.Rows {
		result.Rows[i].Rank = i + 1
	}

	metrics.LeaderboardQueriesTotal.WithLabelValues(string(q.Window), string(q.Metric), result.Source).Inc()
	metrics.LeaderboardQueryDuration.WithLabelValues(result.Source).Observe(time.Since(start).Seconds())
	return result, nil
}

func (s *LeaderboardService) queryRollup(ctx context.Context, q LeaderboardQuery) ([]LeaderboardRow, error) {
	column := "reward_total"
	if q.Metric == MetricDistance {
		column = "distance_total"
	}
	var users []models.User
	err := s.DB.WithContext(ctx).
		Where(column + " > 0").
		Order(column + " DESC").
		Limit(q.Limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read rollup leaderboard: %w", err)
	}

	rows := make([]LeaderboardRow, 0, len(users))
	for _, u := range users {
		row := LeaderboardRow{
			Address:      u.Address,
			DisplayName:  u.DisplayName,
			Reward:       u.RewardTotal,
			Distance:     u.DistanceTotal,
			BestDuration: u.BestDuration,
			Value:        float64(u.RewardTotal),
		}
		if q.Metric == MetricDistance {
			row.Value = u.DistanceTotal
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// aggExpr renders a whitelisted aggregate over a whitelisted column.
func aggExpr(agg Aggregation, col Column, sqlType string) string {
	return fmt.Sprintf("CAST(COALESCE(%s(s.%s), 0) AS %s)", agg, col, sqlType)
}

var columnTypes = map[Column]string{
	ColReward:   "BIGINT",
	ColScore:    "BIGINT",
	ColDistance: "DOUBLE PRECISION",
	ColDuration: "BIGINT",
	ColStreak:   "BIGINT",
}

var columnAliases = map[Column]string{
	ColReward:   "reward",
	ColScore:    "score",
	ColDistance: "distance",
	ColDuration: "duration_ms",
	ColStreak:   "streak",
}

func (s *LeaderboardService) queryLedger(ctx context.Context, q LeaderboardQuery, since time.Time) ([]LeaderboardRow, error) {
	rankCol := MetricColumn(q.Metric)

	selects := []string{
		"s.address AS address",
		"u.display_name AS display_name",
		aggExpr(AggregationFor(q.Metric, rankCol, q.Game), rankCol, "DOUBLE PRECISION") + " AS value",
	}
	for _, col := range reportedColumns {
		selects = append(selects, aggExpr(AggregationFor(q.Metric, col, q.Game), col, columnTypes[col])+" AS "+columnAliases[col])
	}
	selects = append(selects, "COUNT(*) AS sessions")

	var (
		where []string
		args  []interface{}
	)
	if !since.IsZero() {
		where = append(where, "s.created_at >= ?")
		args = append(args, since)
	}
	if q.Game != nil {
		where = append(where, "s.game = ?")
		args = append(args, string(*q.Game))
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions s
		LEFT JOIN users u ON u.address = s.address
		%s
		GROUP BY s.address, u.display_name
		ORDER BY value DESC
		LIMIT ?
	`, strings.Join(selects, ",\n\t\t\t"), whereSQL)
	args = append(args, q.Limit)

	var rows []LeaderboardRow
	if err := s.DB.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate ledger leaderboard: %w", err)
	}
	if rows == nil {
		rows = []LeaderboardRow{}
	}
	return rows, nil
}
