package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pacelab/internal/analysis"
	"pacelab/internal/store"
)

// SkillRequest asks for one user's skill tier
type SkillRequest struct {
	UserID       int64 `json:"user_id"`
	LookbackDays int   `json:"lookback_days,omitempty"`
}

// SkillService estimates a user's skill tier relative to the whole population
type SkillService struct {
	history HistoryStore
	params  analysis.SkillParams
	opts    BatchOptions
	logger  *slog.Logger
	now     func() time.Time
}

// NewSkillService creates a skill service
func NewSkillService(history HistoryStore, params analysis.SkillParams, opts BatchOptions, logger *slog.Logger) *SkillService {
	return &SkillService{
		history: history,
		params:  params,
		opts:    opts.withDefaults(),
		logger:  logger.With("component", "skill"),
		now:     time.Now,
	}
}

// Estimate picks the lookback window for the target user, reads the full
// population's runs in that window, and only then scores and clusters it.
// A user with no qualifying runs gets a Beginner no-data result, not an error.
func (s *SkillService) Estimate(ctx context.Context, req SkillRequest) (*analysis.SkillResult, error) {
	start := recordBatchStart(JobSkill)
	defer recordBatchDone(JobSkill, start)

	now := s.now()
	window := func(days int) time.Time { return now.AddDate(0, 0, -days) }

	count := func(days int) (int, error) {
		acts, err := listAll(ctx, s.history, store.ActivityQuery{
			UserID:   &req.UserID,
			From:     window(days),
			RunsOnly: true,
		}, s.opts.PageSize)
		if err != nil {
			return 0, err
		}
		n := 0
		for _, a := range acts {
			if analysis.QualifyingRun(a) {
				n++
			}
		}
		return n, nil
	}

	days, runs, err := analysis.ChooseLookback(req.LookbackDays, s.params, count)
	if err != nil {
		recordSystemicError(JobSkill, StageHistory)
		return nil, fmt.Errorf("choosing lookback window: %w", err)
	}

	if runs == 0 {
		res := analysis.EstimateSkill(nil, req.UserID, days, s.params)
		s.logger.Info("skill estimated", "user_id", req.UserID, "tier", res.Tier, "method", res.Method, "lookback_days", days)
		return &res, nil
	}

	acts, err := listAll(ctx, s.history, store.ActivityQuery{From: window(days), RunsOnly: true}, s.opts.PageSize)
	if err != nil {
		recordSystemicError(JobSkill, StageHistory)
		return nil, fmt.Errorf("reading population: %w", err)
	}

	population := analysis.BuildFeatureVectors(acts, days, s.params)
	res := analysis.EstimateSkill(population, req.UserID, days, s.params)

	s.logger.Info("skill estimated",
		"user_id", req.UserID,
		"tier", res.Tier,
		"percentile_tier", res.PercentileTier,
		"method", res.Method,
		"composite_percentile", res.CompositePercentile,
		"lookback_days", days,
		"population", res.PopulationSize,
	)
	return &res, nil
}
