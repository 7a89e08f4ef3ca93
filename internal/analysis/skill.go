package analysis

import (
	"sort"
	"strings"

	"pacelab/internal/store"
)

// Tier is an ordinal skill classification.
type Tier string

const (
	TierBeginner     Tier = "Beginner"
	TierIntermediate Tier = "Intermediate"
	TierAdvanced     Tier = "Advanced"
	TierElite        Tier = "Elite"
)

// tiersByRank maps ascending cluster composite rank to a tier.
var tiersByRank = []Tier{TierBeginner, TierIntermediate, TierAdvanced, TierElite}

// Skill estimation methods
const (
	MethodKMeansPCA          = "kmeans_pca"
	MethodPercentileFallback = "percentile_fallback"
	MethodNoData             = "no_data"
)

// ReasonNoQualifyingRuns is reported when the target user has no runs at the widest window.
const ReasonNoQualifyingRuns = "no qualifying running activities in the maximum lookback window"

// SkillParams configures the skill-level estimator.
type SkillParams struct {
	DefaultLookbackDays int   `json:"default_lookback_days"`
	MinLookbackDays     int   `json:"min_lookback_days"`
	MaxLookbackDays     int   `json:"max_lookback_days"`
	WidenSteps          []int `json:"widen_steps"`
	MinRuns             int   `json:"min_runs"`

	MinValidPace float64 `json:"min_valid_pace"` // min/km
	MaxValidPace float64 `json:"max_valid_pace"` // min/km

	SustainedMinKm          float64 `json:"sustained_min_km"`
	SustainedMinDurationMin float64 `json:"sustained_min_duration_min"`
	FallbackMinKm           float64 `json:"fallback_min_km"`
	FallbackMinDurationMin  float64 `json:"fallback_min_duration_min"`

	Clusters      int     `json:"clusters"`
	MaxIterations int     `json:"max_iterations"`
	PCAIterations int     `json:"pca_iterations"`
	PCATolerance  float64 `json:"pca_tolerance"`
	Seed          uint64  `json:"seed"`

	ElitePercentile        float64 `json:"elite_percentile"`
	AdvancedPercentile     float64 `json:"advanced_percentile"`
	IntermediatePercentile float64 `json:"intermediate_percentile"`
}

// DefaultSkillParams returns the standard estimator configuration.
func DefaultSkillParams() SkillParams {
	return SkillParams{
		DefaultLookbackDays: 90,
		MinLookbackDays:     14,
		MaxLookbackDays:     180,
		WidenSteps:          []int{120, 180},
		MinRuns:             6,

		MinValidPace: 2.5,
		MaxValidPace: 12,

		SustainedMinKm:          3,
		SustainedMinDurationMin: 8,
		FallbackMinKm:           1,
		FallbackMinDurationMin:  4,

		Clusters:      4,
		MaxIterations: 50,
		PCAIterations: 100,
		PCATolerance:  1e-6,
		Seed:          42,

		ElitePercentile:        90,
		AdvancedPercentile:     70,
		IntermediatePercentile: 40,
	}
}

// FeatureVector is one user's weekly training profile inside a lookback window.
type FeatureVector struct {
	UserID            int64    `json:"user_id"`
	WeeklyDistanceKm  float64  `json:"weekly_distance_km"`
	WeeklyFrequency   float64  `json:"weekly_frequency"`
	WeeklyDurationMin float64  `json:"weekly_duration_min"`
	SustainedSpeed    *float64 `json:"sustained_speed_km_per_min"` // nil when no effort qualified
	Runs              int      `json:"runs"`
}

// Vector returns the raw features, substituting imputed for a missing sustained speed.
func (f FeatureVector) Vector(imputed float64) Vector {
	speed := imputed
	if f.SustainedSpeed != nil {
		speed = *f.SustainedSpeed
	}
	return Vector{f.WeeklyDistanceKm, f.WeeklyFrequency, f.WeeklyDurationMin, speed}
}

// SkillResult is the estimator output for one target user.
type SkillResult struct {
	UserID              int64              `json:"user_id"`
	Tier                Tier               `json:"tier"`
	PercentileTier      Tier               `json:"alternate_tier_percentile"`
	FeatureValues       map[string]float64 `json:"feature_values"`
	FeaturePercentiles  map[string]float64 `json:"feature_percentiles"`
	CompositeScore      float64            `json:"composite_score"`
	CompositePercentile float64            `json:"composite_percentile"`
	Method              string             `json:"method"`
	Reason              string             `json:"reason_if_no_data,omitempty"`
	LookbackDays        int                `json:"lookback_days"`
	PopulationSize      int                `json:"population_size"`
	Weights             map[string]float64 `json:"component_weights,omitempty"`
}

// IsRun reports whether an activity type is a running activity.
func IsRun(activityType string) bool {
	return strings.Contains(strings.ToLower(activityType), "run")
}

// ClampLookback bounds a requested window to [MinLookbackDays, MaxLookbackDays].
// A non-positive request uses DefaultLookbackDays.
func ClampLookback(days int, p SkillParams) int {
	if days <= 0 {
		days = p.DefaultLookbackDays
	}
	if days < p.MinLookbackDays {
		return p.MinLookbackDays
	}
	if days > p.MaxLookbackDays {
		return p.MaxLookbackDays
	}
	return days
}

// ChooseLookback widens the window through WidenSteps until the target has at
// least MinRuns qualifying runs or the maximum window is reached.
// count reports the target's qualifying runs for a window size.
func ChooseLookback(requested int, p SkillParams, count func(days int) (int, error)) (days, runs int, err error) {
	days = ClampLookback(requested, p)
	runs, err = count(days)
	if err != nil {
		return 0, 0, err
	}

	for _, step := range p.WidenSteps {
		if runs >= p.MinRuns || days >= p.MaxLookbackDays {
			break
		}
		if step <= days {
			continue
		}
		days = min(step, p.MaxLookbackDays)
		runs, err = count(days)
		if err != nil {
			return 0, 0, err
		}
	}
	return days, runs, nil
}

// QualifyingRun reports whether an activity counts toward skill features.
func QualifyingRun(a store.Activity) bool {
	return IsRun(a.ActivityType) && a.DistanceM > 0 && activityDurationMin(a) > 0
}

// BuildFeatureVectors aggregates qualifying runs per user into weekly features,
// normalized by lookbackDays/7. The result is ordered by user ID.
func BuildFeatureVectors(activities []store.Activity, lookbackDays int, p SkillParams) []FeatureVector {
	weeks := float64(lookbackDays) / 7
	if weeks <= 0 {
		weeks = 1
	}

	type accum struct {
		distanceKm   float64
		durationMin  float64
		runs         int
		bestPrimary  float64
		bestFallback float64
	}
	byUser := make(map[int64]*accum)

	for _, a := range activities {
		if !QualifyingRun(a) {
			continue
		}
		acc, ok := byUser[a.UserID]
		if !ok {
			acc = &accum{}
			byUser[a.UserID] = acc
		}

		km := a.DistanceKm()
		dur := activityDurationMin(a)
		acc.distanceKm += km
		acc.durationMin += dur
		acc.runs++

		pace := dur / km
		if a.PaceMinPerKm != nil && isFinite(*a.PaceMinPerKm) && *a.PaceMinPerKm > 0 {
			pace = *a.PaceMinPerKm
		}
		if pace < p.MinValidPace || pace > p.MaxValidPace {
			continue
		}
		if km >= p.SustainedMinKm && dur >= p.SustainedMinDurationMin {
			if acc.bestPrimary == 0 || pace < acc.bestPrimary {
				acc.bestPrimary = pace
			}
		}
		if km >= p.FallbackMinKm && dur >= p.FallbackMinDurationMin {
			if acc.bestFallback == 0 || pace < acc.bestFallback {
				acc.bestFallback = pace
			}
		}
	}

	vectors := make([]FeatureVector, 0, len(byUser))
	for userID, acc := range byUser {
		fv := FeatureVector{
			UserID:            userID,
			WeeklyDistanceKm:  acc.distanceKm / weeks,
			WeeklyFrequency:   float64(acc.runs) / weeks,
			WeeklyDurationMin: acc.durationMin / weeks,
			Runs:              acc.runs,
		}
		switch {
		case acc.bestPrimary > 0:
			fv.SustainedSpeed = floatPtr(1 / acc.bestPrimary)
		case acc.bestFallback > 0:
			fv.SustainedSpeed = floatPtr(1 / acc.bestFallback)
		}
		vectors = append(vectors, fv)
	}

	sort.Slice(vectors, func(i, j int) bool { return vectors[i].UserID < vectors[j].UserID })
	return vectors
}

// ImputedSustainedSpeed is the mean sustained speed over users that have one, or 0.
func ImputedSustainedSpeed(population []FeatureVector) float64 {
	var speeds []float64
	for _, fv := range population {
		if fv.SustainedSpeed != nil {
			speeds = append(speeds, *fv.SustainedSpeed)
		}
	}
	return Mean(speeds)
}

// EstimateSkill standardizes the whole population, scores it along the first
// principal component, clusters it, and reports the target user's tiers.
// A target without qualifying runs yields a Beginner no-data result.
func EstimateSkill(population []FeatureVector, targetUserID int64, lookbackDays int, p SkillParams) SkillResult {
	result := SkillResult{
		UserID:         targetUserID,
		LookbackDays:   lookbackDays,
		PopulationSize: len(population),
	}

	pop := make([]FeatureVector, len(population))
	copy(pop, population)
	sort.Slice(pop, func(i, j int) bool { return pop[i].UserID < pop[j].UserID })

	target := -1
	for i, fv := range pop {
		if fv.UserID == targetUserID {
			target = i
			break
		}
	}
	if target < 0 || pop[target].Runs == 0 {
		result.Tier = TierBeginner
		result.PercentileTier = TierBeginner
		result.Method = MethodNoData
		result.Reason = ReasonNoQualifyingRuns
		return result
	}

	imputed := ImputedSustainedSpeed(pop)
	raw := make([]Vector, len(pop))
	for i, fv := range pop {
		raw[i] = fv.Vector(imputed)
	}

	z, _, _ := Standardize(raw)
	w := FirstPrincipalComponent(z, p.PCAIterations, p.PCATolerance)

	composites := make([]float64, len(z))
	for i := range z {
		composites[i] = z[i].Dot(w)
	}

	result.CompositeScore = composites[target]
	result.CompositePercentile = PercentileRank(composites, composites[target])
	result.PercentileTier = percentileTier(result.CompositePercentile, p)

	result.FeatureValues = make(map[string]float64, NumFeatures)
	result.FeaturePercentiles = make(map[string]float64, NumFeatures)
	result.Weights = make(map[string]float64, NumFeatures)
	col := make([]float64, len(raw))
	for j := 0; j < NumFeatures; j++ {
		for i := range raw {
			col[i] = raw[i][j]
		}
		result.FeatureValues[FeatureNames[j]] = raw[target][j]
		result.FeaturePercentiles[FeatureNames[j]] = PercentileRank(col, raw[target][j])
		result.Weights[FeatureNames[j]] = w[j]
	}

	if distinctPoints(z) < p.Clusters {
		result.Tier = result.PercentileTier
		result.Method = MethodPercentileFallback
		return result
	}

	km := KMeans(z, p.Clusters, NewXorShift(p.Seed), p.MaxIterations)
	tiers := ClusterTiers(km.Centroids, w)
	result.Tier = tiers[km.Labels[target]]
	result.Method = MethodKMeansPCA
	return result
}

// ClusterTiers orders clusters by ascending centroid composite score and maps
// them onto Beginner..Elite. It expects exactly four centroids.
func ClusterTiers(centroids []Vector, w Vector) []Tier {
	order := make([]int, len(centroids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return centroids[order[a]].Dot(w) < centroids[order[b]].Dot(w)
	})

	tiers := make([]Tier, len(centroids))
	for rank, c := range order {
		tiers[c] = tiersByRank[min(rank, len(tiersByRank)-1)]
	}
	return tiers
}

func percentileTier(pct float64, p SkillParams) Tier {
	switch {
	case pct >= p.ElitePercentile:
		return TierElite
	case pct >= p.AdvancedPercentile:
		return TierAdvanced
	case pct >= p.IntermediatePercentile:
		return TierIntermediate
	default:
		return TierBeginner
	}
}

func distinctPoints(points []Vector) int {
	seen := make(map[Vector]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// activityDurationMin resolves an activity's duration in minutes from whichever field is present.
func activityDurationMin(a store.Activity) float64 {
	switch {
	case positive(a.DurationS):
		return *a.DurationS / 60
	case positive(a.DurationMin):
		return *a.DurationMin
	case positive(a.PaceMinPerKm) && a.DistanceM > 0:
		return *a.PaceMinPerKm * a.DistanceKm()
	}
	return 0
}
