package analysis

import "math"

// Feature indices of a skill feature vector
const (
	FeatureWeeklyDistance = iota
	FeatureWeeklyFrequency
	FeatureWeeklyDuration
	FeatureSustainedSpeed
	NumFeatures
)

// FeatureNames are the response keys for each feature index.
var FeatureNames = [NumFeatures]string{
	"weekly_distance_km",
	"weekly_frequency",
	"weekly_duration_min",
	"sustained_speed_km_per_min",
}

// Vector is a point in the skill feature space.
type Vector [NumFeatures]float64

// Dot returns the inner product of v and w.
func (v Vector) Dot(w Vector) float64 {
	var s float64
	for i := range v {
		s += v[i] * w[i]
	}
	return s
}

func (v Vector) norm() float64 {
	return math.Sqrt(v.Dot(v))
}

func squaredDistance(a, b Vector) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// Standardize z-scores each feature column across rows using the population
// standard deviation. A degenerate column (zero or non-finite spread) uses 1.
func Standardize(rows []Vector) (z []Vector, means, stds Vector) {
	z = make([]Vector, len(rows))
	if len(rows) == 0 {
		return z, means, stds
	}

	col := make([]float64, len(rows))
	for j := 0; j < NumFeatures; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		means[j] = Mean(col)
		stds[j] = PopulationStdDev(col)
		if stds[j] == 0 || !isFinite(stds[j]) {
			stds[j] = 1
		}
	}

	for i, r := range rows {
		for j := 0; j < NumFeatures; j++ {
			z[i][j] = (r[j] - means[j]) / stds[j]
		}
	}
	return z, means, stds
}
