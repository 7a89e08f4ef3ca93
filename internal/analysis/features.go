package analysis

import (
	"time"

	"pacelab/internal/store"
)

// Variability result states
const (
	StatusOK               = "ok"
	StatusPartial          = "partial"
	StatusInsufficientData = "insufficient_data"
)

// SampleLimits bounds what counts as a physiologically plausible sample.
type SampleLimits struct {
	MaxHeartRate float64 `json:"max_heart_rate"` // exclusive, bpm
	MaxPace      float64 `json:"max_pace"`       // exclusive, min/km
}

// DefaultSampleLimits returns the standard sample filters.
func DefaultSampleLimits() SampleLimits {
	return SampleLimits{
		MaxHeartRate: 250,
		MaxPace:      60,
	}
}

// Sample is one raw time-series observation. Pace takes precedence over speed
// when both are present.
type Sample struct {
	HeartRate *float64
	PaceMinKm *float64
	SpeedMS   *float64
}

// SeriesStats summarizes one series of an activity.
// CV is nil whenever Status is insufficient_data.
type SeriesStats struct {
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	StdDev float64  `json:"std_dev"`
	CV     *float64 `json:"cv"`
	Status string   `json:"status"`
}

// Variability holds pace and heart-rate statistics for one activity.
type Variability struct {
	Pace      SeriesStats `json:"pace"`
	HeartRate SeriesStats `json:"heart_rate"`
	Status    string      `json:"status"`
}

// ExtractVariability filters invalid samples and computes mean, standard deviation
// and coefficient of variation independently for pace and heart rate.
func ExtractVariability(samples []Sample, limits SampleLimits) Variability {
	var paces, hrs []float64

	for _, s := range samples {
		if pace, ok := samplePace(s); ok && pace > 0 && pace < limits.MaxPace {
			paces = append(paces, pace)
		}
		if s.HeartRate != nil {
			hr := *s.HeartRate
			if isFinite(hr) && hr > 0 && hr < limits.MaxHeartRate {
				hrs = append(hrs, hr)
			}
		}
	}

	v := Variability{
		Pace:      seriesStats(paces),
		HeartRate: seriesStats(hrs),
	}
	v.Status = combinedStatus(v.Pace, v.HeartRate)
	return v
}

// VariabilityFromSummary builds a result from pre-aggregated means and standard deviations.
// count is the number of samples the summary was computed from.
func VariabilityFromSummary(meanPace, stdPace, meanHR, stdHR float64, count int) Variability {
	v := Variability{
		Pace:      summaryStats(meanPace, stdPace, count),
		HeartRate: summaryStats(meanHR, stdHR, count),
	}
	v.Status = combinedStatus(v.Pace, v.HeartRate)
	return v
}

// SamplesFromStream converts stored stream points into samples.
func SamplesFromStream(points []store.StreamPoint) []Sample {
	samples := make([]Sample, 0, len(points))
	for _, p := range points {
		var s Sample
		if p.VelocitySmooth != nil {
			v := *p.VelocitySmooth
			s.SpeedMS = &v
		}
		if p.Heartrate != nil {
			hr := float64(*p.Heartrate)
			s.HeartRate = &hr
		}
		samples = append(samples, s)
	}
	return samples
}

// Row converts the result into a variation row for the given activity.
func (v Variability) Row(userID, activityID int64, computedAt time.Time) store.Variation {
	row := store.Variation{
		ActivityID:  activityID,
		UserID:      userID,
		CVPace:      v.Pace.CV,
		CVHR:        v.HeartRate.CV,
		SampleCount: max(v.Pace.Count, v.HeartRate.Count),
		Status:      v.Status,
		ComputedAt:  computedAt,
	}
	if v.Pace.Status == StatusOK {
		row.PaceMean = floatPtr(v.Pace.Mean)
	}
	if v.HeartRate.Status == StatusOK {
		row.HRMean = floatPtr(v.HeartRate.Mean)
	}
	return row
}

func samplePace(s Sample) (float64, bool) {
	if s.PaceMinKm != nil {
		p := *s.PaceMinKm
		return p, isFinite(p)
	}
	if s.SpeedMS != nil {
		v := *s.SpeedMS
		if !isFinite(v) || v <= 0 {
			return 0, false
		}
		return 1000 / (v * 60), true
	}
	return 0, false
}

func seriesStats(values []float64) SeriesStats {
	stats := SeriesStats{Count: len(values), Status: StatusInsufficientData}
	if len(values) < 2 {
		return stats
	}
	stats.Mean = Mean(values)
	if stats.Mean == 0 {
		return stats
	}
	stats.StdDev = SampleStdDev(values)
	stats.CV = floatPtr(stats.StdDev / stats.Mean)
	stats.Status = StatusOK
	return stats
}

func summaryStats(mean, std float64, count int) SeriesStats {
	stats := SeriesStats{Count: count, Mean: mean, StdDev: std, Status: StatusInsufficientData}
	if count < 2 || mean <= 0 || std < 0 || !isFinite(mean) || !isFinite(std) {
		return stats
	}
	stats.CV = floatPtr(std / mean)
	stats.Status = StatusOK
	return stats
}

func combinedStatus(pace, hr SeriesStats) string {
	switch {
	case pace.Status == StatusOK && hr.Status == StatusOK:
		return StatusOK
	case pace.Status == StatusOK || hr.Status == StatusOK:
		return StatusPartial
	default:
		return StatusInsufficientData
	}
}
