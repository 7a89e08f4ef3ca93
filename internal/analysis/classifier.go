package analysis

import (
	"log/slog"

	"pacelab/internal/store"
)

// WorkoutType is the categorical label assigned to an activity.
type WorkoutType string

const (
	WorkoutWalkOrInvalid WorkoutType = "walk_or_invalid"
	WorkoutLongRun       WorkoutType = "long_run"
	WorkoutInterval      WorkoutType = "interval_or_fartlek"
	WorkoutTempo         WorkoutType = "tempo_run"
	WorkoutEasy          WorkoutType = "easy_run"
	WorkoutRecovery      WorkoutType = "recovery_run"
	WorkoutUnclassified  WorkoutType = "unclassified"
)

// ClassifierThresholds are the empirically chosen cut-offs of the rule cascade.
type ClassifierThresholds struct {
	WalkMaxSpeedMS float64 `json:"walk_max_speed_ms"`
	WalkMaxHR      float64 `json:"walk_max_hr"`

	LongRunMinKm     float64 `json:"long_run_min_km"`
	LongRunMaxPaceCV float64 `json:"long_run_max_pace_cv"`
	LongRunMinHRPct  float64 `json:"long_run_min_hr_pct"`
	LongRunMaxHRPct  float64 `json:"long_run_max_hr_pct"`

	IntervalMinPaceCV    float64 `json:"interval_min_pace_cv"`
	IntervalMaxDurationS float64 `json:"interval_max_duration_s"`

	TempoMinKm    float64 `json:"tempo_min_km"`
	TempoMaxKm    float64 `json:"tempo_max_km"`
	TempoPaceGap  float64 `json:"tempo_pace_gap"` // min/km above best pace
	TempoMinHRPct float64 `json:"tempo_min_hr_pct"`
	TempoMaxHRPct float64 `json:"tempo_max_hr_pct"`

	EasyMinKm   float64 `json:"easy_min_km"`
	EasyMaxKm   float64 `json:"easy_max_km"`
	EasyPaceGap float64 `json:"easy_pace_gap"` // min/km above best pace
	EasyMaxHRCV float64 `json:"easy_max_hr_cv"`

	RecoveryMaxKm    float64 `json:"recovery_max_km"`
	RecoveryMaxHRPct float64 `json:"recovery_max_hr_pct"`
	RecoveryMaxHR    float64 `json:"recovery_max_hr"`

	MaxValidPace  float64 `json:"max_valid_pace"`  // exclusive, min/km
	BaselineMinKm float64 `json:"baseline_min_km"` // exclusive
}

// DefaultClassifierThresholds returns the standard cascade thresholds.
func DefaultClassifierThresholds() ClassifierThresholds {
	return ClassifierThresholds{
		WalkMaxSpeedMS: 1.5,
		WalkMaxHR:      90,

		LongRunMinKm:     14,
		LongRunMaxPaceCV: 0.10,
		LongRunMinHRPct:  0.70,
		LongRunMaxHRPct:  0.85,

		IntervalMinPaceCV:    0.20,
		IntervalMaxDurationS: 4200,

		TempoMinKm:    5,
		TempoMaxKm:    12,
		TempoPaceGap:  0.4,
		TempoMinHRPct: 0.80,
		TempoMaxHRPct: 0.90,

		EasyMinKm:   3,
		EasyMaxKm:   12,
		EasyPaceGap: 1.0,
		EasyMaxHRCV: 0.08,

		RecoveryMaxKm:    6,
		RecoveryMaxHRPct: 0.65,
		RecoveryMaxHR:    125,

		MaxValidPace:  60,
		BaselineMinKm: 1,
	}
}

// HistoryBaseline is a user's pace reference derived from their valid run history.
type HistoryBaseline struct {
	BestPace float64 `json:"best_pace"`
	P75Pace  float64 `json:"p75_pace"`
	Runs     int     `json:"runs"`
}

// ActivityMetrics are the quantities the cascade is evaluated on.
// Nil pointers mean the value could not be derived.
type ActivityMetrics struct {
	ActivityID int64
	UserID     int64
	DistanceKm float64
	DurationS  *float64
	AvgPace    *float64 // min/km
	AvgSpeedMS *float64
	AvgHR      *float64
	MaxHR      *float64
	HRPctMax   *float64
	PaceCV     *float64
	HRCV       *float64
}

// Decision is the outcome of classifying one activity.
type Decision struct {
	Label   WorkoutType
	Reason  string
	Metrics ActivityMetrics
}

// DeriveMetrics computes distance, duration, pace, speed and HR ratios for an activity.
func DeriveMetrics(a store.Activity, v *store.Variation, t ClassifierThresholds) ActivityMetrics {
	m := ActivityMetrics{
		ActivityID: a.ID,
		UserID:     a.UserID,
		DistanceKm: a.DistanceKm(),
	}

	pace := validPace(a.PaceMinPerKm, t.MaxValidPace)

	switch {
	case positive(a.DurationS):
		m.DurationS = floatPtr(*a.DurationS)
	case positive(a.DurationMin):
		m.DurationS = floatPtr(*a.DurationMin * 60)
	case pace != nil && m.DistanceKm > 0:
		m.DurationS = floatPtr(*pace * m.DistanceKm * 60)
	}

	if pace == nil && m.DurationS != nil && m.DistanceKm > 0 {
		derived := *m.DurationS / 60 / m.DistanceKm
		pace = validPace(&derived, t.MaxValidPace)
	}
	m.AvgPace = pace

	switch {
	case pace != nil:
		m.AvgSpeedMS = floatPtr(1000 / (*pace * 60))
	case m.DurationS != nil && a.DistanceM > 0:
		m.AvgSpeedMS = floatPtr(a.DistanceM / *m.DurationS)
	}

	if positive(a.AvgHR) {
		m.AvgHR = floatPtr(*a.AvgHR)
	}
	if positive(a.MaxHR) {
		m.MaxHR = floatPtr(*a.MaxHR)
	}
	if m.AvgHR != nil && m.MaxHR != nil {
		m.HRPctMax = floatPtr(*m.AvgHR / *m.MaxHR)
	}

	if v != nil {
		if v.CVPace != nil && isFinite(*v.CVPace) {
			m.PaceCV = floatPtr(*v.CVPace)
		}
		if v.CVHR != nil && isFinite(*v.CVHR) {
			m.HRCV = floatPtr(*v.CVHR)
		}
	}

	return m
}

// ComputeHistoryBaseline derives best and 75th-percentile pace from a user's runs.
// Only runs with a valid pace and more than BaselineMinKm count.
// Returns nil when no run qualifies.
func ComputeHistoryBaseline(history []store.Activity, t ClassifierThresholds) *HistoryBaseline {
	var paces []float64
	for _, a := range history {
		if a.DistanceKm() <= t.BaselineMinKm {
			continue
		}
		m := DeriveMetrics(a, nil, t)
		if m.AvgPace == nil {
			continue
		}
		paces = append(paces, *m.AvgPace)
	}
	if len(paces) == 0 {
		return nil
	}

	best := paces[0]
	for _, p := range paces[1:] {
		if p < best {
			best = p
		}
	}

	return &HistoryBaseline{
		BestPace: best,
		P75Pace:  Quantile(paces, 0.75),
		Runs:     len(paces),
	}
}

// Classify runs the rule cascade in fixed order; the first matching rule wins.
// Rules that need a derived quantity or a baseline that is missing do not match.
func Classify(m ActivityMetrics, baseline *HistoryBaseline, t ClassifierThresholds) Decision {
	d := Decision{Metrics: m}

	// 1. walk or invalid
	if m.AvgSpeedMS == nil {
		d.Label, d.Reason = WorkoutWalkOrInvalid, "no derivable speed"
		return d
	}
	if *m.AvgSpeedMS < t.WalkMaxSpeedMS {
		d.Label, d.Reason = WorkoutWalkOrInvalid, "speed below walking threshold"
		return d
	}
	if m.AvgHR != nil && *m.AvgHR < t.WalkMaxHR {
		d.Label, d.Reason = WorkoutWalkOrInvalid, "heart rate below running threshold"
		return d
	}

	// 2. long run
	if m.DistanceKm > t.LongRunMinKm &&
		lessThan(m.PaceCV, t.LongRunMaxPaceCV) &&
		within(m.HRPctMax, t.LongRunMinHRPct, t.LongRunMaxHRPct) {
		d.Label, d.Reason = WorkoutLongRun, "long steady aerobic effort"
		return d
	}

	// 3. intervals / fartlek
	if greaterThan(m.PaceCV, t.IntervalMinPaceCV) && lessThan(m.DurationS, t.IntervalMaxDurationS) {
		d.Label, d.Reason = WorkoutInterval, "high pace variability"
		return d
	}

	if baseline != nil && m.AvgPace != nil {
		pace := *m.AvgPace

		// 4. tempo
		if m.DistanceKm >= t.TempoMinKm && m.DistanceKm <= t.TempoMaxKm &&
			pace >= baseline.BestPace && pace <= baseline.BestPace+t.TempoPaceGap &&
			within(m.HRPctMax, t.TempoMinHRPct, t.TempoMaxHRPct) {
			d.Label, d.Reason = WorkoutTempo, "near best pace at threshold heart rate"
			return d
		}

		// 5. easy
		if m.DistanceKm >= t.EasyMinKm && m.DistanceKm <= t.EasyMaxKm &&
			pace > baseline.BestPace+t.EasyPaceGap &&
			lessThan(m.HRCV, t.EasyMaxHRCV) {
			d.Label, d.Reason = WorkoutEasy, "well below best pace with steady heart rate"
			return d
		}

		// 6. recovery
		if m.DistanceKm < t.RecoveryMaxKm && pace > baseline.P75Pace && lowRecoveryHR(m, t) {
			d.Label, d.Reason = WorkoutRecovery, "short and slower than usual at low heart rate"
			return d
		}
	}

	d.Label, d.Reason = WorkoutUnclassified, "no rule matched"
	return d
}

// LogAttrs returns the derived metrics as slog attributes for decision auditing.
func (d Decision) LogAttrs() []any {
	m := d.Metrics
	return []any{
		slog.Int64("user_id", m.UserID),
		slog.Int64("activity_id", m.ActivityID),
		slog.String("label", string(d.Label)),
		slog.String("reason", d.Reason),
		slog.Float64("distance_km", m.DistanceKm),
		optional("duration_s", m.DurationS),
		optional("avg_pace", m.AvgPace),
		optional("avg_speed_m_s", m.AvgSpeedMS),
		optional("avg_hr", m.AvgHR),
		optional("hr_pct_max", m.HRPctMax),
		optional("pace_cv", m.PaceCV),
		optional("hr_cv", m.HRCV),
	}
}

func optional(key string, p *float64) slog.Attr {
	if p == nil {
		return slog.Any(key, nil)
	}
	return slog.Float64(key, *p)
}

func lowRecoveryHR(m ActivityMetrics, t ClassifierThresholds) bool {
	if m.AvgHR == nil {
		return false
	}
	if m.MaxHR != nil && *m.AvgHR < t.RecoveryMaxHRPct**m.MaxHR {
		return true
	}
	return *m.AvgHR < t.RecoveryMaxHR
}

func validPace(p *float64, maxPace float64) *float64 {
	if p == nil || !isFinite(*p) || *p <= 0 || *p >= maxPace {
		return nil
	}
	v := *p
	return &v
}

func positive(p *float64) bool {
	return p != nil && isFinite(*p) && *p > 0
}

func within(p *float64, lo, hi float64) bool {
	return p != nil && *p >= lo && *p <= hi
}

func lessThan(p *float64, limit float64) bool {
	return p != nil && *p < limit
}

func greaterThan(p *float64, limit float64) bool {
	return p != nil && *p > limit
}
