package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pacelab/internal/analysis"
	"pacelab/internal/store"
)

// VariationRequest selects which activities a variation run covers
type VariationRequest struct {
	UserID    *int64 `json:"user_id,omitempty"`
	Recompute bool   `json:"recompute"`
}

// VariationResult summarizes a variation run
type VariationResult struct {
	RunID    string         `json:"run_id"`
	Users    int            `json:"users"`
	Computed int            `json:"computed"`
	Skipped  int            `json:"skipped"`
	Statuses map[string]int `json:"statuses"`
	Errors   []BatchError   `json:"errors"`
}

// VariationService computes per-activity pace and heart-rate variability from streams
type VariationService struct {
	history    HistoryStore
	streams    StreamSource
	variations VariationStore
	limits     analysis.SampleLimits
	opts       BatchOptions
	logger     *slog.Logger
	now        func() time.Time
}

// NewVariationService creates a variation service
func NewVariationService(history HistoryStore, streams StreamSource, variations VariationStore,
	limits analysis.SampleLimits, opts BatchOptions, logger *slog.Logger) *VariationService {
	return &VariationService{
		history:    history,
		streams:    streams,
		variations: variations,
		limits:     limits,
		opts:       opts.withDefaults(),
		logger:     logger.With("component", "variations"),
		now:        time.Now,
	}
}

// Run computes variation rows for runs that lack one, or for every run with Recompute.
// Activities without usable samples still get an insufficient_data row so they
// are not revisited.
func (s *VariationService) Run(ctx context.Context, req VariationRequest) (*VariationResult, error) {
	start := recordBatchStart(JobVariations)
	defer recordBatchDone(JobVariations, start)

	result := &VariationResult{
		RunID:    uuid.NewString(),
		Statuses: make(map[string]int),
		Errors:   []BatchError{},
	}
	logger := s.logger.With("run_id", result.RunID)
	logger.Info("variation run started", userAttr(req.UserID), "recompute", req.Recompute)

	byUser := make(map[int64][]store.Activity)
	q := store.ActivityQuery{UserID: req.UserID, RunsOnly: true}
	err := forEachPage(ctx, s.history, q, s.opts.PageSize, func(page []store.Activity) error {
		existing := map[int64]*store.Variation{}
		if !req.Recompute {
			var err error
			existing, err = s.variations.GetVariations(ctx, activityIDs(page))
			if err != nil {
				return err
			}
		}
		for _, a := range page {
			if _, ok := existing[a.ID]; ok {
				result.Skipped++
				continue
			}
			byUser[a.UserID] = append(byUser[a.UserID], a)
		}
		return nil
	})
	if err != nil {
		recordSystemicError(JobVariations, StageHistory)
		logger.Error("variation run aborted", "error", err)
		return nil, err
	}

	users := make([]int64, 0, len(byUser))
	for id := range byUser {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	result.Users = len(users)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, userID := range users {
		acts := byUser[userID]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			statuses, errs := s.computeUser(gctx, logger, userID, acts)

			mu.Lock()
			defer mu.Unlock()
			for status, n := range statuses {
				result.Statuses[status] += n
				result.Computed += n
			}
			result.Errors = append(result.Errors, errs...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("variation run aborted", "error", err)
		return nil, err
	}

	sortBatchErrors(result.Errors)
	recordBatchErrors(JobVariations, result.Errors)
	logger.Info("variation run finished",
		"users", result.Users,
		"computed", result.Computed,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (s *VariationService) computeUser(ctx context.Context, logger *slog.Logger, userID int64,
	acts []store.Activity) (map[string]int, []BatchError) {
	statuses := make(map[string]int)
	var errs []BatchError

	for _, a := range acts {
		points, err := s.streams.GetStreams(ctx, a.ID)
		if errors.Is(err, store.ErrActivityNotFound) {
			// no recorded streams
			points, err = nil, nil
		}
		if err != nil {
			logger.Warn("variation failed", "user_id", userID, "activity_id", a.ID, "stage", StageStreams, "error", err)
			errs = append(errs, newBatchError(userID, a.ID, StageStreams, err))
			continue
		}

		v := analysis.ExtractVariability(analysis.SamplesFromStream(points), s.limits)
		row := v.Row(userID, a.ID, s.now())
		if err := s.variations.UpsertVariation(ctx, &row); err != nil {
			logger.Warn("variation failed", "user_id", userID, "activity_id", a.ID, "stage", StageWrite, "error", err)
			errs = append(errs, newBatchError(userID, a.ID, StageWrite, err))
			continue
		}

		logger.Debug("variation computed",
			"user_id", userID,
			"activity_id", a.ID,
			"status", v.Status,
			"pace_samples", v.Pace.Count,
			"hr_samples", v.HeartRate.Count,
		)
		statuses[v.Status]++
	}
	return statuses, errs
}
