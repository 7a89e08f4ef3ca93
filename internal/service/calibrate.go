package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pacelab/internal/analysis"
	"pacelab/internal/store"
)

// PaceCheck is a single proposed prescription to validate
type PaceCheck struct {
	Category    string   `json:"category"`
	Pace        float64  `json:"pace"`
	DurationMin *float64 `json:"duration_min,omitempty"`
}

// PaceCheckResult is the clamp outcome together with the baseline it used
type PaceCheckResult struct {
	SafePaces analysis.SafeBaseline `json:"safe_paces"`
	Clamp     analysis.ClampResult  `json:"clamp"`
}

// CalibrationResult is the outcome of recalibrating a stored plan
type CalibrationResult struct {
	PlanID              int64                        `json:"plan_id"`
	UserID              int64                        `json:"user_id"`
	SafePaces           analysis.SafeBaseline        `json:"safe_paces"`
	Corrections         []analysis.WorkoutCorrection `json:"per_workout_corrections"`
	Warnings            []string                     `json:"warnings"`
	CriticalIssuesFixed int                          `json:"critical_issues_fixed"`
	Applied             bool                         `json:"applied"`
}

// PlannedWorkout is a freshly generated workout awaiting sanitization
type PlannedWorkout struct {
	Day         int      `json:"day"`
	WorkoutType string   `json:"workout_type"`
	TargetPace  *float64 `json:"target_pace,omitempty"`
	DurationMin *float64 `json:"duration_min,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// SanitizeRequest carries a plan generator's output for one user
type SanitizeRequest struct {
	UserID   int64            `json:"user_id"`
	Workouts []PlannedWorkout `json:"workouts"`
}

// SanitizeResult is the generator's output with every unsafe pace replaced
type SanitizeResult struct {
	UserID              int64                        `json:"user_id"`
	SafePaces           analysis.SafeBaseline        `json:"safe_paces"`
	Workouts            []PlannedWorkout             `json:"workouts"`
	Corrections         []analysis.WorkoutCorrection `json:"per_workout_corrections"`
	Warnings            []string                     `json:"warnings"`
	CriticalIssuesFixed int                          `json:"critical_issues_fixed"`
}

// CalibrationService derives safe paces and enforces them on prescriptions
type CalibrationService struct {
	history HistoryStore
	users   UserStore
	plans   PlanStore
	params  analysis.CalibratorParams
	opts    BatchOptions
	logger  *slog.Logger
	now     func() time.Time
}

// NewCalibrationService creates a calibration service
func NewCalibrationService(history HistoryStore, users UserStore, plans PlanStore,
	params analysis.CalibratorParams, opts BatchOptions, logger *slog.Logger) *CalibrationService {
	return &CalibrationService{
		history: history,
		users:   users,
		plans:   plans,
		params:  params,
		opts:    opts.withDefaults(),
		logger:  logger.With("component", "calibrator"),
		now:     time.Now,
	}
}

// SafePaces computes the user's safe baseline from the trailing window of runs.
// An unknown user is treated as having no birth date.
func (s *CalibrationService) SafePaces(ctx context.Context, userID int64) (*analysis.SafeBaseline, error) {
	now := s.now()

	var birthDate *time.Time
	user, err := s.users.GetUser(ctx, userID)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
	case err != nil:
		return nil, fmt.Errorf("loading user %d: %w", userID, err)
	default:
		birthDate = user.BirthDate
	}

	acts, err := listAll(ctx, s.history, store.ActivityQuery{
		UserID:   &userID,
		From:     now.AddDate(0, 0, -s.params.WindowDays),
		RunsOnly: true,
	}, s.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("reading runs for user %d: %w", userID, err)
	}

	runs := analysis.FilterValidRuns(acts, now, s.params)
	b := analysis.ComputeSafeBaseline(runs, birthDate, now, s.params)

	s.logger.Info("safe paces computed",
		"user_id", userID,
		"source", b.Source,
		"valid_runs", b.RunCount,
		"pace_10k", b.Pace10K,
		"pace_easy", b.PaceEasy,
	)
	return &b, nil
}

// ClampPace validates one proposed pace against the user's safe baseline
func (s *CalibrationService) ClampPace(ctx context.Context, userID int64, check PaceCheck) (*PaceCheckResult, error) {
	b, err := s.SafePaces(ctx, userID)
	if err != nil {
		return nil, err
	}
	r := analysis.Clamp(*b, check.Category, check.Pace, check.DurationMin, s.params)
	s.recordClamp(userID, r)
	return &PaceCheckResult{SafePaces: *b, Clamp: r}, nil
}

// RecalibratePlan scans every workout of a plan against freshly computed safe
// paces. With apply, unsafe paces and over-long tempo durations are rewritten
// in the plan store.
func (s *CalibrationService) RecalibratePlan(ctx context.Context, planID int64, apply bool) (*CalibrationResult, error) {
	start := recordBatchStart(JobCalibrate)
	defer recordBatchDone(JobCalibrate, start)

	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("loading plan %d: %w", planID, err)
	}

	b, err := s.SafePaces(ctx, plan.UserID)
	if err != nil {
		return nil, err
	}

	workouts, err := s.plans.ListPlanWorkouts(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("loading workouts for plan %d: %w", planID, err)
	}

	corrections, warnings := analysis.RecalibrateWorkouts(*b, workouts, s.params)
	result := &CalibrationResult{
		PlanID:              planID,
		UserID:              plan.UserID,
		SafePaces:           *b,
		Corrections:         corrections,
		Warnings:            warnings,
		CriticalIssuesFixed: len(corrections),
	}
	if result.Corrections == nil {
		result.Corrections = []analysis.WorkoutCorrection{}
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}

	for _, c := range corrections {
		reason := c.Reason
		if c.Field == "duration_min" {
			reason = "duration"
		}
		recordClamp(analysis.NormalizeCategory(c.WorkoutType), reason)
	}

	if apply && len(corrections) > 0 {
		touched := make(map[int64]bool, len(corrections))
		for _, c := range corrections {
			touched[c.WorkoutID] = true
		}
		for i := range workouts {
			if !touched[workouts[i].ID] {
				continue
			}
			if err := s.plans.UpdatePlanWorkout(ctx, &workouts[i]); err != nil {
				return nil, fmt.Errorf("updating workout %d: %w", workouts[i].ID, err)
			}
		}
		result.Applied = true
	}

	s.logger.Info("plan recalibrated",
		"plan_id", planID,
		"user_id", plan.UserID,
		"critical_issues_fixed", result.CriticalIssuesFixed,
		"warnings", len(result.Warnings),
		"applied", result.Applied,
	)
	return result, nil
}

// SanitizePlan clamps freshly generated prescriptions against the user's safe
// paces. Nothing is stored; the caller persists the returned workouts.
func (s *CalibrationService) SanitizePlan(ctx context.Context, req SanitizeRequest) (*SanitizeResult, error) {
	b, err := s.SafePaces(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	workouts := make([]PlannedWorkout, len(req.Workouts))
	copy(workouts, req.Workouts)

	var prescriptions []analysis.Prescription
	var index []int
	var paceless []string
	for i, w := range workouts {
		if w.TargetPace == nil {
			if analysis.NormalizeCategory(w.WorkoutType) == analysis.CategoryTempo &&
				w.DurationMin != nil && *w.DurationMin > s.params.TempoMaxDurationMin {
				paceless = append(paceless, fmt.Sprintf("day %d (%s): tempo duration %.0f min exceeds %.0f min",
					w.Day, w.WorkoutType, *w.DurationMin, s.params.TempoMaxDurationMin))
				recordClamp(analysis.CategoryTempo, "duration")
			}
			continue
		}
		prescriptions = append(prescriptions, analysis.Prescription{
			Category:    w.WorkoutType,
			Pace:        *w.TargetPace,
			DurationMin: w.DurationMin,
		})
		index = append(index, i)
	}
	clamps := analysis.SanitizePrescriptions(*b, prescriptions, s.params)

	result := &SanitizeResult{
		UserID:      req.UserID,
		SafePaces:   *b,
		Workouts:    workouts,
		Corrections: []analysis.WorkoutCorrection{},
		Warnings:    append([]string{}, paceless...),
	}
	for j, r := range clamps {
		w := &workouts[index[j]]
		for _, msg := range r.Warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("day %d (%s): %s", w.Day, w.WorkoutType, msg))
		}
		s.recordClamp(req.UserID, r)
		if !r.Adjusted {
			continue
		}
		result.Corrections = append(result.Corrections, analysis.WorkoutCorrection{
			Day:         w.Day,
			WorkoutType: w.WorkoutType,
			Field:       "target_pace",
			OldValue:    r.ProposedPace,
			NewValue:    r.Pace,
			Reason:      clampReason(r),
		})
		pace := prescriptions[j].Pace
		w.TargetPace = &pace
	}
	result.CriticalIssuesFixed = len(result.Corrections)

	s.logger.Info("prescriptions sanitized", "user_id", req.UserID,
		"workouts", len(workouts), "critical_issues_fixed", result.CriticalIssuesFixed)
	return result, nil
}

func (s *CalibrationService) recordClamp(userID int64, r analysis.ClampResult) {
	if r.DurationWarning {
		recordClamp(r.Category, "duration")
	}
	if !r.Adjusted {
		return
	}
	recordClamp(r.Category, clampReason(r))
	if r.Emergency {
		s.logger.Warn("emergency pace override", "user_id", userID, "category", r.Category,
			"proposed_pace", r.ProposedPace, "pace", r.Pace)
	}
}

func clampReason(r analysis.ClampResult) string {
	if r.Emergency {
		return "emergency override"
	}
	return "pace faster than safe floor"
}
