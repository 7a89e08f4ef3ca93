package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pacelab/internal/analysis"
	"pacelab/internal/store"
)

// ClassifyRequest selects which activities a classification run covers
type ClassifyRequest struct {
	UserID     *int64 `json:"user_id,omitempty"`
	Reclassify bool   `json:"reclassify"`
}

// ClassifyResult summarizes a classification run
type ClassifyResult struct {
	RunID     string         `json:"run_id"`
	Users     int            `json:"users"`
	Processed int            `json:"processed"`
	Updated   int            `json:"updated"`
	Unchanged int            `json:"unchanged"`
	Skipped   int            `json:"skipped"`
	Labels    map[string]int `json:"labels"`
	Errors    []BatchError   `json:"errors"`
}

// ClassificationService labels running activities with a workout type
type ClassificationService struct {
	history    HistoryStore
	labels     LabelStore
	variations VariationReader
	thresholds analysis.ClassifierThresholds
	opts       BatchOptions
	logger     *slog.Logger
}

// NewClassificationService creates a classification service
func NewClassificationService(history HistoryStore, labels LabelStore, variations VariationReader,
	thresholds analysis.ClassifierThresholds, opts BatchOptions, logger *slog.Logger) *ClassificationService {
	return &ClassificationService{
		history:    history,
		labels:     labels,
		variations: variations,
		thresholds: thresholds,
		opts:       opts.withDefaults(),
		logger:     logger.With("component", "classifier"),
	}
}

// LabelCounts returns how many activities carry each stored workout label,
// optionally for a single user
func (s *ClassificationService) LabelCounts(ctx context.Context, userID *int64) (map[string]int, error) {
	counts, err := s.labels.CountWorkoutLabels(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("counting workout labels: %w", err)
	}
	return counts, nil
}

// userOutcome is the per-user share of a batch result
type userOutcome struct {
	processed int
	updated   int
	unchanged int
	labels    map[string]int
	errors    []BatchError
}

// Run classifies every unlabeled run (or every run, with Reclassify) and writes
// the labels back. A failure reading the candidate set aborts the run; per-user
// failures are collected in the result.
func (s *ClassificationService) Run(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error) {
	start := recordBatchStart(JobClassify)
	defer recordBatchDone(JobClassify, start)

	result := &ClassifyResult{
		RunID:  uuid.NewString(),
		Labels: make(map[string]int),
		Errors: []BatchError{},
	}
	logger := s.logger.With("run_id", result.RunID)
	logger.Info("classification run started", userAttr(req.UserID), "reclassify", req.Reclassify)

	byUser := make(map[int64][]store.Activity)
	q := store.ActivityQuery{UserID: req.UserID, RunsOnly: true}
	err := forEachPage(ctx, s.history, q, s.opts.PageSize, func(page []store.Activity) error {
		existing, err := s.labels.GetWorkoutLabels(ctx, activityIDs(page))
		if err != nil {
			return err
		}
		for _, a := range page {
			if label, ok := existing[a.ID]; ok {
				a.DetectedWorkoutType = &label
			}
			if a.DetectedWorkoutType != nil && !req.Reclassify {
				result.Skipped++
				continue
			}
			byUser[a.UserID] = append(byUser[a.UserID], a)
		}
		return nil
	})
	if err != nil {
		recordSystemicError(JobClassify, StageHistory)
		logger.Error("classification run aborted", "error", err)
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
		candidates := byUser[userID]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := s.classifyUser(gctx, logger, userID, candidates, req.Reclassify)

			mu.Lock()
			defer mu.Unlock()
			result.Processed += out.processed
			result.Updated += out.updated
			result.Unchanged += out.unchanged
			for label, n := range out.labels {
				result.Labels[label] += n
			}
			result.Errors = append(result.Errors, out.errors...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("classification run aborted", "error", err)
		return nil, err
	}

	sortBatchErrors(result.Errors)
	recordBatchErrors(JobClassify, result.Errors)
	logger.Info("classification run finished",
		"users", result.Users,
		"processed", result.Processed,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (s *ClassificationService) classifyUser(ctx context.Context, logger *slog.Logger, userID int64,
	candidates []store.Activity, reclassify bool) userOutcome {
	out := userOutcome{labels: make(map[string]int)}
	fail := func(activityID int64, stage string, err error) {
		logger.Warn("classification failed", "user_id", userID, "activity_id", activityID, "stage", stage, "error", err)
		out.errors = append(out.errors, newBatchError(userID, activityID, stage, err))
	}

	history, err := listAll(ctx, s.history, store.ActivityQuery{UserID: &userID, RunsOnly: true}, s.opts.PageSize)
	if err != nil {
		fail(0, StageBaseline, err)
		return out
	}
	baseline := analysis.ComputeHistoryBaseline(history, s.thresholds)

	variations, err := s.variations.GetVariations(ctx, activityIDs(candidates))
	if err != nil {
		fail(0, StageVariation, err)
		return out
	}

	for _, a := range candidates {
		m := analysis.DeriveMetrics(a, variations[a.ID], s.thresholds)
		d := analysis.Classify(m, baseline, s.thresholds)
		label := string(d.Label)

		attrs := d.LogAttrs()
		if baseline != nil {
			attrs = append(attrs, slog.Float64("best_pace", baseline.BestPace), slog.Float64("p75_pace", baseline.P75Pace))
		}
		logger.Info("activity classified", attrs...)

		out.processed++
		out.labels[label]++
		recordClassification(label)

		if !reclassify && a.DetectedWorkoutType != nil && *a.DetectedWorkoutType == label {
			out.unchanged++
			continue
		}
		if err := s.labels.UpsertWorkoutLabel(ctx, userID, a.ID, label); err != nil {
			fail(a.ID, StageWrite, err)
			continue
		}
		out.updated++
	}
	return out
}
