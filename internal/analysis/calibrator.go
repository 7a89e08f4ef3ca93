package analysis

import (
	"fmt"
	"math"
	"strings"
	"time"

	"pacelab/internal/store"
)

// Workout categories recognized by the clamp rules
const (
	CategoryEasy  = "easy"
	CategoryLong  = "long"
	CategoryTempo = "tempo"
	CategoryOther = "other"
)

// Baseline sources
const (
	SourceHistory             = "history"
	SourceConservativeDefault = "conservative_default"
)

// Race distances in kilometers
const (
	Distance5KKm   = 5.0
	Distance10KKm  = 10.0
	DistanceHalfKm = 21.0975
)

// AgeBracket assigns a conservative base pace to ages below MaxAge.
// A MaxAge of 0 matches any age.
type AgeBracket struct {
	MaxAge int     `json:"max_age"`
	Pace   float64 `json:"pace"` // min/km
}

// CalibratorParams configures run validation, baselines and clamp floors.
type CalibratorParams struct {
	WindowDays     int     `json:"window_days"`
	MaxPace        float64 `json:"max_pace"` // exclusive, min/km
	MinDistanceKm  float64 `json:"min_distance_km"`
	MaxDistanceKm  float64 `json:"max_distance_km"`
	MinDurationMin float64 `json:"min_duration_min"`
	MinRuns        int     `json:"min_runs"`

	DefaultAge  int          `json:"default_age"`
	AgeBrackets []AgeBracket `json:"age_brackets"`

	Default10KFactor   float64 `json:"default_10k_factor"`
	DefaultHalfFactor  float64 `json:"default_half_factor"`
	DefaultEasyFactor  float64 `json:"default_easy_factor"`
	DefaultTempoFactor float64 `json:"default_tempo_factor"`

	EasyMedianFactor float64 `json:"easy_median_factor"`
	RiegelExponent   float64 `json:"riegel_exponent"`

	EasyFloorOffset        float64 `json:"easy_floor_offset"` // min/km above 10K pace
	LongFloorOffset        float64 `json:"long_floor_offset"` // min/km above 10K pace
	TempoMaxDurationMin    float64 `json:"tempo_max_duration_min"`
	TempoCappedDurationMin float64 `json:"tempo_capped_duration_min"`
	AbsoluteMinPace        float64 `json:"absolute_min_pace"`
}

// DefaultCalibratorParams returns the standard safety constants.
func DefaultCalibratorParams() CalibratorParams {
	return CalibratorParams{
		WindowDays:     90,
		MaxPace:        12,
		MinDistanceKm:  2,
		MaxDistanceKm:  50,
		MinDurationMin: 10,
		MinRuns:        3,

		DefaultAge: 35,
		AgeBrackets: []AgeBracket{
			{MaxAge: 25, Pace: 5.5},
			{MaxAge: 35, Pace: 6.0},
			{MaxAge: 45, Pace: 6.5},
			{MaxAge: 0, Pace: 7.0},
		},

		Default10KFactor:   1.08,
		DefaultHalfFactor:  1.15,
		DefaultEasyFactor:  1.5,
		DefaultTempoFactor: 1.08,

		EasyMedianFactor: 1.4,
		RiegelExponent:   1.06,

		EasyFloorOffset:        0.45,
		LongFloorOffset:        0.30,
		TempoMaxDurationMin:    45,
		TempoCappedDurationMin: 30,
		AbsoluteMinPace:        3.0,
	}
}

// SafeBaseline holds a user's safe reference paces in min/km.
type SafeBaseline struct {
	Pace5K           float64 `json:"pace_5k"`
	Pace10K          float64 `json:"pace_10k"`
	PaceHalfMarathon float64 `json:"pace_half_marathon"`
	PaceEasy         float64 `json:"pace_easy"`
	PaceTempo        float64 `json:"pace_tempo"`
	MedianPace       float64 `json:"median_pace,omitempty"`
	P75Pace          float64 `json:"p75_pace,omitempty"`
	Source           string  `json:"source"`
	RunCount         int     `json:"run_count"`
	Age              int     `json:"age,omitempty"`
}

// ClampResult describes what the clamp did to one proposed pace.
type ClampResult struct {
	Category        string   `json:"category"`
	ProposedPace    float64  `json:"proposed_pace"`
	Pace            float64  `json:"pace"`
	Floor           *float64 `json:"floor,omitempty"`
	Adjusted        bool     `json:"adjusted"`
	Emergency       bool     `json:"emergency"`
	DurationWarning bool     `json:"duration_warning"`
	Warnings        []string `json:"warnings"`
}

// Prescription is a freshly generated workout target awaiting sanitization.
type Prescription struct {
	Category    string   `json:"category"`
	Pace        float64  `json:"pace"`
	DurationMin *float64 `json:"duration_min,omitempty"`
}

// WorkoutCorrection records one field rewritten during plan recalibration.
type WorkoutCorrection struct {
	WorkoutID   int64   `json:"workout_id"`
	Day         int     `json:"day"`
	WorkoutType string  `json:"workout_type"`
	Field       string  `json:"field"`
	OldValue    float64 `json:"old_value"`
	NewValue    float64 `json:"new_value"`
	Reason      string  `json:"reason"`
}

// NormalizeCategory maps a workout type to its clamp category.
func NormalizeCategory(workoutType string) string {
	switch strings.ToLower(strings.TrimSpace(workoutType)) {
	case "easy", "recovery", "base", "easy_run", "recovery_run":
		return CategoryEasy
	case "long_run", "long":
		return CategoryLong
	case "tempo", "threshold", "tempo_run":
		return CategoryTempo
	default:
		return CategoryOther
	}
}

// RiegelTime predicts the time for d2 from time t1 over d1: t1 * (d2/d1)^exponent.
func RiegelTime(t1, d1, d2, exponent float64) float64 {
	return t1 * math.Pow(d2/d1, exponent)
}

// FilterValidRuns keeps runs inside the window ending at now that have a plausible
// pace, distance and duration.
func FilterValidRuns(activities []store.Activity, now time.Time, p CalibratorParams) []store.Activity {
	from := now.AddDate(0, 0, -p.WindowDays)
	var valid []store.Activity
	for _, a := range activities {
		if !IsRun(a.ActivityType) {
			continue
		}
		if a.ActivityDate.Before(from) || a.ActivityDate.After(now) {
			continue
		}
		km := a.DistanceKm()
		if !isFinite(km) || km < p.MinDistanceKm || km > p.MaxDistanceKm {
			continue
		}
		dur := activityDurationMin(a)
		if !isFinite(dur) || dur < p.MinDurationMin {
			continue
		}
		pace, ok := runPace(a)
		if !ok || pace <= 0 || pace >= p.MaxPace {
			continue
		}
		valid = append(valid, a)
	}
	return valid
}

// ComputeSafeBaseline derives safe paces from valid runs. With fewer than MinRuns
// runs it falls back to conservative age-bracketed defaults.
func ComputeSafeBaseline(runs []store.Activity, birthDate *time.Time, now time.Time, p CalibratorParams) SafeBaseline {
	var paces []float64
	for _, a := range runs {
		if pace, ok := runPace(a); ok {
			paces = append(paces, pace)
		}
	}

	if len(paces) < p.MinRuns {
		age := p.DefaultAge
		if birthDate != nil {
			age = AgeAt(*birthDate, now)
		}
		base := bracketPace(age, p.AgeBrackets)
		return SafeBaseline{
			Pace5K:           base,
			Pace10K:          base * p.Default10KFactor,
			PaceHalfMarathon: base * p.DefaultHalfFactor,
			PaceEasy:         base * p.DefaultEasyFactor,
			PaceTempo:        base * p.DefaultTempoFactor,
			Source:           SourceConservativeDefault,
			RunCount:         len(paces),
			Age:              age,
		}
	}

	median := Median(paces)
	p75 := Quantile(paces, 0.75)
	t5 := median * Distance5KKm
	pace10k := RiegelTime(t5, Distance5KKm, Distance10KKm, p.RiegelExponent) / Distance10KKm
	paceHalf := RiegelTime(t5, Distance5KKm, DistanceHalfKm, p.RiegelExponent) / DistanceHalfKm

	return SafeBaseline{
		Pace5K:           median,
		Pace10K:          pace10k,
		PaceHalfMarathon: paceHalf,
		PaceEasy:         math.Max(median*p.EasyMedianFactor, p75),
		PaceTempo:        pace10k,
		MedianPace:       median,
		P75Pace:          p75,
		Source:           SourceHistory,
		RunCount:         len(paces),
	}
}

// Clamp enforces the category floor on a proposed pace, then the absolute floor.
// Paces are min/km, so a numerically lower pace is faster.
func Clamp(b SafeBaseline, workoutType string, pace float64, durationMin *float64, p CalibratorParams) ClampResult {
	category := NormalizeCategory(workoutType)
	r := ClampResult{Category: category, ProposedPace: pace, Pace: pace, Warnings: []string{}}

	var floor *float64
	switch category {
	case CategoryEasy:
		floor = floatPtr(math.Max(b.Pace10K+p.EasyFloorOffset, b.PaceEasy))
	case CategoryLong:
		floor = floatPtr(math.Max(b.Pace10K+p.LongFloorOffset, b.PaceEasy))
	case CategoryTempo:
		floor = floatPtr(b.Pace10K)
	}
	r.Floor = floor

	if !isFinite(pace) || pace <= 0 {
		replacement := b.PaceEasy
		if floor != nil {
			replacement = *floor
		}
		r.Pace = replacement
		r.Adjusted = true
		r.Warnings = append(r.Warnings, fmt.Sprintf("invalid %s pace replaced with %.2f min/km", category, replacement))
	} else if floor != nil && pace < *floor {
		r.Pace = *floor
		r.Adjusted = true
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s pace %.2f min/km is faster than safe floor %.2f min/km; clamped", category, pace, *floor))
	}

	if category == CategoryTempo && durationMin != nil && *durationMin > p.TempoMaxDurationMin {
		r.DurationWarning = true
		r.Warnings = append(r.Warnings, fmt.Sprintf("tempo duration %.0f min exceeds %.0f min", *durationMin, p.TempoMaxDurationMin))
	}

	if r.Pace < p.AbsoluteMinPace {
		r.Warnings = append(r.Warnings, fmt.Sprintf("emergency override: pace %.2f min/km forced to %.2f min/km", r.Pace, p.AbsoluteMinPace))
		r.Pace = p.AbsoluteMinPace
		r.Adjusted = true
		r.Emergency = true
	}

	return r
}

// SanitizePrescriptions clamps freshly generated prescriptions in place and
// returns the clamp outcome for each.
func SanitizePrescriptions(b SafeBaseline, prescriptions []Prescription, p CalibratorParams) []ClampResult {
	results := make([]ClampResult, len(prescriptions))
	for i := range prescriptions {
		results[i] = Clamp(b, prescriptions[i].Category, prescriptions[i].Pace, prescriptions[i].DurationMin, p)
		prescriptions[i].Pace = results[i].Pace
	}
	return results
}

// RecalibrateWorkouts rewrites unsafe paces and over-long tempo durations in
// workouts. It returns the corrections and all warnings raised; the number of
// corrections is the count of critical issues fixed.
func RecalibrateWorkouts(b SafeBaseline, workouts []store.PlanWorkout, p CalibratorParams) ([]WorkoutCorrection, []string) {
	var corrections []WorkoutCorrection
	var warnings []string

	for i := range workouts {
		w := &workouts[i]
		category := NormalizeCategory(w.WorkoutType)

		if w.TargetPace != nil {
			r := Clamp(b, w.WorkoutType, *w.TargetPace, w.DurationMin, p)
			for _, msg := range r.Warnings {
				warnings = append(warnings, fmt.Sprintf("day %d (%s): %s", w.Day, w.WorkoutType, msg))
			}
			if r.Adjusted {
				reason := "pace faster than safe floor"
				if r.Emergency {
					reason = "emergency override"
				}
				corrections = append(corrections, WorkoutCorrection{
					WorkoutID:   w.ID,
					Day:         w.Day,
					WorkoutType: w.WorkoutType,
					Field:       "target_pace",
					OldValue:    *w.TargetPace,
					NewValue:    r.Pace,
					Reason:      reason,
				})
				w.TargetPace = floatPtr(r.Pace)
			}
		}

		if category == CategoryTempo && w.DurationMin != nil && *w.DurationMin > p.TempoMaxDurationMin {
			if w.TargetPace == nil {
				warnings = append(warnings, fmt.Sprintf("day %d (%s): tempo duration %.0f min exceeds %.0f min",
					w.Day, w.WorkoutType, *w.DurationMin, p.TempoMaxDurationMin))
			}
			corrections = append(corrections, WorkoutCorrection{
				WorkoutID:   w.ID,
				Day:         w.Day,
				WorkoutType: w.WorkoutType,
				Field:       "duration_min",
				OldValue:    *w.DurationMin,
				NewValue:    p.TempoCappedDurationMin,
				Reason:      "tempo duration too long",
			})
			w.DurationMin = floatPtr(p.TempoCappedDurationMin)
		}
	}

	return corrections, warnings
}

// AgeAt returns the age in whole years at now.
func AgeAt(birthDate, now time.Time) int {
	age := now.Year() - birthDate.Year()
	if now.Month() < birthDate.Month() || (now.Month() == birthDate.Month() && now.Day() < birthDate.Day()) {
		age--
	}
	return age
}

func bracketPace(age int, brackets []AgeBracket) float64 {
	for _, b := range brackets {
		if b.MaxAge == 0 || age < b.MaxAge {
			return b.Pace
		}
	}
	if len(brackets) > 0 {
		return brackets[len(brackets)-1].Pace
	}
	return 0
}

// runPace returns the recorded pace, or derives it from duration and distance.
func runPace(a store.Activity) (float64, bool) {
	if a.PaceMinPerKm != nil {
		return *a.PaceMinPerKm, isFinite(*a.PaceMinPerKm)
	}
	km := a.DistanceKm()
	dur := activityDurationMin(a)
	if km <= 0 || dur <= 0 {
		return 0, false
	}
	pace := dur / km
	return pace, isFinite(pace)
}
