package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"activity-reward-system/metrics"
	"activity-reward-system/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxClientRefLen = 128

// ActivityService ingests play sessions: reward calculation, daily cap
// reservation, receipt append and rollup update, all in one transaction.
type ActivityService struct {
	DB      *gorm.DB
	Rules   RulesTable
	Loc     *time.Location
	Now     func() time.Time
	Ledger  *SessionLedger
	Caps    *CapEnforcer
	Rollups *RollupAggregator

	// StreamPoll is how often the receipt stream checks the ledger.
	StreamPoll time.Duration
}

func NewActivityService(db *gorm.DB, rules RulesTable, loc *time.Location) *ActivityService {
	if loc == nil {
		loc = time.UTC
	}
	ledger := NewSessionLedger(db)
	return &ActivityService{
		DB:         db,
		Rules:      rules,
		Loc:        loc,
		Now:        time.Now,
		Ledger:     ledger,
		Caps:       NewCapEnforcer(rules, loc, ledger),
		Rollups:    NewRollupAggregator(db),
		StreamPoll: 2 * time.Second,
	}
}

func (s *ActivityService) now() time.Time {
	return s.Now().UTC()
}

// SessionClaim is the structured submission body.
type SessionClaim struct {
	Game                string   `json:"game"`
	Score               float64  `json:"score"`
	Distance            float64  `json:"distance"`
	BestDurationSeconds float64  `json:"bestDurationSeconds"`
	DurationMs          *float64 `json:"durationMs"`
	Streak              float64  `json:"streak"`
	ClientSessionID     string   `json:"clientSessionId,omitempty"`
}

type SubmitResult struct {
	EarnedAmount   int64                 `json:"earnedAmount"`
	Reason         models.Reason         `json:"reason"`
	Game           models.Game           `json:"game"`
	DailyCap       int64                 `json:"dailyCap"`
	RemainingAfter int64                 `json:"remainingAfter"`
	TodayAggregate DayAggregate          `json:"todayAggregate"`
	LifetimeTotals models.LifetimeTotals `json:"lifetimeTotals"`
	SessionID      *uint64               `json:"sessionId,omitempty"`
	Replayed       bool                  `json:"replayed"`
}

// Submit credits one structured session. Fairness rejections are successful
// results with EarnedAmount 0; they write no receipt and touch no rollup.
func (s *ActivityService) Submit(ctx context.Context, address string, claim SessionClaim) (*SubmitResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidation)
	}
	if claim.DurationMs == nil || math.IsNaN(*claim.DurationMs) || math.IsInf(*claim.DurationMs, 0) || *claim.DurationMs <= 0 {
		return nil, fmt.Errorf("%w: durationMs must be a positive number", ErrValidation)
	}
	ref, err := clientRef(claim.ClientSessionID)
	if err != nil {
		return nil, err
	}

	game := models.ParseGame(claim.Game)
	rules := s.Rules.For(game)
	bounded := BoundTelemetry(rules, claim.Score, claim.Streak, claim.Distance, claim.BestDurationSeconds, *claim.DurationMs)
	// the raw score still drives the rate check
	computed := ComputeReward(rules, claim.Score, bounded.Distance, float64(bounded.DurationMs))
	now := s.now()

	var (
		result  *SubmitResult
		clamped bool
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if computed.Reason.Rejected() {
			r, err := s.rejectedResult(tx, address, game, computed.Reason, now)
			result = r
			return err
		}

		if _, err := s.Rollups.Ensure(tx, address, now); err != nil {
			return err
		}
		// The counter lock also serializes replays of the same client id.
		if _, err := s.Caps.Lock(tx, address, game, now); err != nil {
			return err
		}
		if ref != nil {
			prior, err := s.Ledger.FindByClientRef(tx, address, *ref)
			if err != nil {
				return fmt.Errorf("failed to look up client session: %w", err)
			}
			if prior != nil {
				r, err := s.replayResult(tx, prior, now)
				result = r
				return err
			}
		}

		reservation, err := s.Caps.Reserve(tx, address, game, computed.Amount, now)
		if err != nil {
			return err
		}
		clamped = reservation.Clamped()

		receipt := &models.GameSession{
			Address:      address,
			Game:         game,
			RewardAmount: reservation.Amount,
			Distance:     bounded.Distance,
			BestDuration: bounded.BestDuration,
			Score:        bounded.Score,
			Streak:       bounded.Streak,
			DurationMs:   bounded.DurationMs,
			Reason:       models.ReasonOK,
			ClientRef:    ref,
			CreatedAt:    now,
		}
		if err := s.Ledger.Append(tx, receipt); err != nil {
			if ref != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: client session %q", ErrDuplicateSubmission, *ref)
			}
			return err
		}

		user, err := s.Rollups.Apply(tx, address, receipt.RewardAmount, receipt.Distance, receipt.BestDuration, now)
		if err != nil {
			return err
		}
		today, err := s.Ledger.GameAggregateSince(tx, address, game, WindowDay.Since(now, s.Loc))
		if err != nil {
			return fmt.Errorf("failed to aggregate today's sessions: %w", err)
		}

		id := receipt.ID
		result = &SubmitResult{
			EarnedAmount:   receipt.RewardAmount,
			Reason:         models.ReasonOK,
			Game:           game,
			DailyCap:       reservation.DailyCap,
			RemainingAfter: reservation.RemainingAfter,
			TodayAggregate: today,
			LifetimeTotals: user.Totals(),
			SessionID:      &id,
		}
		return nil
	})
	if err != nil {
		zap.L().Error("[ACTIVITY] submission failed",
			zap.String("address", address),
			zap.String("game", game.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if result.Replayed {
		metrics.ReplaysTotal.Inc()
		zap.L().Info("[ACTIVITY] replayed submission",
			zap.String("address", address),
			zap.Uint64p("session_id", result.SessionID),
		)
		return result, nil
	}

	metrics.SubmissionsTotal.WithLabelValues(game.String(), string(result.Reason), "submit").Inc()
	metrics.RewardCreditedTotal.WithLabelValues(game.String()).Add(float64(result.EarnedAmount))
	if clamped {
		metrics.CapClampsTotal.WithLabelValues(game.String()).Inc()
	}
	zap.L().Info("[ACTIVITY] session processed",
		zap.String("address", address),
		zap.String("game", game.String()),
		zap.String("reason", string(result.Reason)),
		zap.Int64("provisional", computed.Amount),
		zap.Int64("earned", result.EarnedAmount),
		zap.Int64("remaining", result.RemainingAfter),
	)
	return result, nil
}

func (s *ActivityService) rejectedResult(tx *gorm.DB, address string, game models.Game, reason models.Reason, now time.Time) (*SubmitResult, error) {
	user, err := s.Rollups.Ensure(tx, address, now)
	if err != nil {
		return nil, err
	}
	return s.currentResult(tx, user, game, reason, 0, now)
}

func (s *ActivityService) replayResult(tx *gorm.DB, prior *models.GameSession, now time.Time) (*SubmitResult, error) {
	user, err := s.Rollups.load(tx, prior.Address)
	if err != nil {
		return nil, err
	}
	result, err := s.currentResult(tx, user, prior.Game, prior.Reason, prior.RewardAmount, now)
	if err != nil {
		return nil, err
	}
	id := prior.ID
	result.SessionID = &id
	result.Replayed = true
	return result, nil
}

// currentResult reports the stored state without crediting anything.
func (s *ActivityService) currentResult(tx *gorm.DB, user *models.User, game models.Game, reason models.Reason, earned int64, now time.Time) (*SubmitResult, error) {
	_, remaining, err := s.Caps.Headroom(tx, user.Address, game, now)
	if err != nil {
		return nil, fmt.Errorf("failed to read cap headroom: %w", err)
	}
	today, err := s.Ledger.GameAggregateSince(tx, user.Address, game, WindowDay.Since(now, s.Loc))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate today's sessions: %w", err)
	}
	return &SubmitResult{
		EarnedAmount:   earned,
		Reason:         reason,
		Game:           game,
		DailyCap:       s.Rules.For(game).DailyCap,
		RemainingAfter: remaining,
		TodayAggregate: today,
		LifetimeTotals: user.Totals(),
	}, nil
}

// LegacyPayload is accepted by the older add endpoint. It is either the
// structured shape or {addReward, addDistance, bestDurationSeconds}.
type LegacyPayload struct {
	Game                string  `json:"game"`
	Score               float64 `json:"score"`
	Distance            float64 `json:"distance"`
	DurationMs          float64 `json:"durationMs"`
	Streak              float64 `json:"streak"`
	BestDurationSeconds float64 `json:"bestDurationSeconds"`
	AddReward           float64 `json:"addReward"`
	AddDistance         float64 `json:"addDistance"`
}

func (p LegacyPayload) looksStructured() bool {
	return strings.TrimSpace(p.Game) != "" || p.Score > 0 || p.DurationMs > 0
}

type LegacyResult struct {
	EarnedAmount   int64                 `json:"earnedAmount"`
	Reason         models.Reason         `json:"reason"`
	Game           models.Game           `json:"game"`
	DailyCap       int64                 `json:"dailyCap"`
	RemainingAfter int64                 `json:"remainingAfter"`
	LifetimeTotals models.LifetimeTotals `json:"lifetimeTotals"`
	ReceiptWritten bool                  `json:"receiptWritten"`
	SessionID      *uint64               `json:"sessionId,omitempty"`
}

// AddLegacy always updates the rollup. A receipt is written only for
// structured-looking payloads, under a savepoint; if that write fails the
// credit is booked on the cap counter instead and the request still succeeds.
func (s *ActivityService) AddLegacy(ctx context.Context, address string, p LegacyPayload) (*LegacyResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidation)
	}

	structured := p.looksStructured()
	game := models.ParseGame(p.Game)
	rules := s.Rules.For(game)

	distance := nonNegative(p.Distance)
	if distance == 0 {
		distance = nonNegative(p.AddDistance)
	}
	bounded := BoundTelemetry(rules, p.Score, p.Streak, distance, p.BestDurationSeconds, p.DurationMs)
	distance, bestDuration := bounded.Distance, bounded.BestDuration

	provisional := RewardResult{Reason: models.ReasonOK}
	if structured {
		provisional = ComputeReward(rules, p.Score, distance, float64(bounded.DurationMs))
	} else {
		provisional.Amount = wholeUnits(p.AddReward)
		if limit := s.Rules.For(models.GameUnknown).PerRunCap; provisional.Amount > limit {
			provisional.Amount = limit
		}
	}
	now := s.now()

	var result *LegacyResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.Rollups.Ensure(tx, address, now); err != nil {
			return err
		}
		reservation, err := s.Caps.Reserve(tx, address, game, provisional.Amount, now)
		if err != nil {
			return err
		}

		var sessionID *uint64
		if structured && !provisional.Reason.Rejected() {
			receipt := &models.GameSession{
				Address:      address,
				Game:         game,
				RewardAmount: reservation.Amount,
				Distance:     distance,
				BestDuration: bestDuration,
				Score:        bounded.Score,
				Streak:       bounded.Streak,
				DurationMs:   bounded.DurationMs,
				Reason:       models.ReasonOK,
				CreatedAt:    now,
			}
			err := tx.Transaction(func(sp *gorm.DB) error {
				return s.Ledger.Append(sp, receipt)
			})
			if err != nil {
				metrics.LegacyReceiptFailuresTotal.Inc()
				zap.L().Warn("[ACTIVITY] legacy receipt not written, crediting rollup only",
					zap.String("address", address),
					zap.String("game", game.String()),
					zap.Error(err),
				)
			} else {
				id := receipt.ID
				sessionID = &id
			}
		}
		if sessionID == nil {
			if err := s.Caps.RecordReceiptless(tx, address, game, now, reservation.Amount); err != nil {
				return fmt.Errorf("failed to book receiptless credit: %w", err)
			}
		}

		user, err := s.Rollups.Apply(tx, address, reservation.Amount, distance, bestDuration, now)
		if err != nil {
			return err
		}
		result = &LegacyResult{
			EarnedAmount:   reservation.Amount,
			Reason:         provisional.Reason,
			Game:           game,
			DailyCap:       reservation.DailyCap,
			RemainingAfter: reservation.RemainingAfter,
			LifetimeTotals: user.Totals(),
			ReceiptWritten: sessionID != nil,
			SessionID:      sessionID,
		}
		return nil
	})
	if err != nil {
		zap.L().Error("[ACTIVITY] legacy add failed", zap.String("address", address), zap.Error(err))
		return nil, err
	}

	metrics.SubmissionsTotal.WithLabelValues(game.String(), string(result.Reason), "add").Inc()
	metrics.RewardCreditedTotal.WithLabelValues(game.String()).Add(float64(result.EarnedAmount))
	zap.L().Info("[ACTIVITY] legacy add processed",
		zap.String("address", address),
		zap.String("game", game.String()),
		zap.Bool("structured", structured),
		zap.Bool("receipt", result.ReceiptWritten),
		zap.Int64("earned", result.EarnedAmount),
	)
	return result, nil
}

// GameToday is one game's row in the profile view.
type GameToday struct {
	DayAggregate
	DailyCap  int64 `json:"dailyCap"`
	Remaining int64 `json:"remaining"`
}

type Profile struct {
	Address        string                `json:"address"`
	DisplayName    *string               `json:"displayName"`
	LifetimeTotals models.LifetimeTotals `json:"lifetimeTotals"`
	Today          []GameToday           `json:"today"`
	Day            string                `json:"day"`
}

// Profile is read-only; an address never seen before gets zero totals.
func (s *ActivityService) Profile(ctx context.Context, address string) (*Profile, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidation)
	}
	now := s.now()
	db := s.DB.WithContext(ctx)

	profile := &Profile{Address: address, Day: DayKey(now, s.Loc), Today: []GameToday{}}

	var user models.User
	err := db.Where("address = ?", address).Take(&user).Error
	switch {
	case err == nil:
		profile.DisplayName = user.DisplayName
		profile.LifetimeTotals = user.Totals()
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	aggregates, err := s.Ledger.AggregateSince(db, address, WindowDay.Since(now, s.Loc))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate today's sessions: %w", err)
	}
	byGame := make(map[models.Game]DayAggregate, len(aggregates))
	for _, a := range aggregates {
		byGame[a.Game] = a
	}

	var counters []models.DailyCapCounter
	if err := db.Where("address = ? AND day = ?", address, profile.Day).Find(&counters).Error; err != nil {
		return nil, fmt.Errorf("failed to load cap counters: %w", err)
	}
	receiptless := make(map[models.Game]int64, len(counters))
	for _, c := range counters {
		receiptless[c.Game] = c.ReceiptlessCredited
	}

	for _, g := range models.AllGames {
		agg, seen := byGame[g]
		if !seen && receiptless[g] == 0 {
			continue
		}
		agg.Game = g
		dailyCap := s.Rules.For(g).DailyCap
		remaining := dailyCap - agg.Reward - receiptless[g]
		if remaining < 0 {
			remaining = 0
		}
		profile.Today = append(profile.Today, GameToday{DayAggregate: agg, DailyCap: dailyCap, Remaining: remaining})
	}
	return profile, nil
}

func (s *ActivityService) RecentSessions(ctx context.Context, address string, limit int) ([]models.GameSession, error) {
	return s.Ledger.Recent(ctx, address, limit)
}

func clientRef(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if len(raw) > maxClientRefLen {
		return nil, fmt.Errorf("%w: clientSessionId longer than %d bytes", ErrValidation, maxClientRefLen)
	}
	return &raw, nil
}

func wholeUnits(v float64) int64 {
	v = math.Floor(nonNegative(v))
	if v > math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	return int64(v)
}
