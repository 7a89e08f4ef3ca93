package history

import (
	"time"

	"pacelab/internal/store"
)

// activityRecord is an activity summary as returned by the history API
type activityRecord struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"user_id"`
	ActivityDate        time.Time `json:"activity_date"`
	ActivityType        string    `json:"activity_type"`
	Distance            float64   `json:"distance"`             // meters
	DurationS           *float64  `json:"duration_s"`           // seconds
	DurationMin         *float64  `json:"duration_min"`         // minutes
	PaceMinPerKm        *float64  `json:"pace_min_per_km"`      // min/km
	AverageHeartrate    *float64  `json:"average_heartrate"`    // bpm
	MaxHeartrate        *float64  `json:"max_heartrate"`        // bpm
	DetectedWorkoutType *string   `json:"detected_workout_type"`
}

func (r activityRecord) toStore() store.Activity {
	return store.Activity{
		ID:                  r.ID,
		UserID:              r.UserID,
		ActivityDate:        r.ActivityDate.UTC(),
		ActivityType:        r.ActivityType,
		DistanceM:           r.Distance,
		DurationS:           r.DurationS,
		DurationMin:         r.DurationMin,
		PaceMinPerKm:        r.PaceMinPerKm,
		AvgHR:               r.AverageHeartrate,
		MaxHR:               r.MaxHeartrate,
		DetectedWorkoutType: r.DetectedWorkoutType,
	}
}

// activityPage is one page of the activity listing
type activityPage struct {
	Activities []activityRecord `json:"activities"`
	HasMore    bool             `json:"has_more"`
}

// userRecord is an athlete profile as returned by the history API
type userRecord struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"` // YYYY-MM-DD
}

// Streams represents activity stream data keyed by stream type
type Streams struct {
	Time           *StreamData[int]     `json:"time"`
	VelocitySmooth *StreamData[float64] `json:"velocity_smooth"`
	Heartrate      *StreamData[int]     `json:"heartrate"`
	Distance       *StreamData[float64] `json:"distance"`
}

// StreamData represents a single stream type
type StreamData[T any] struct {
	Data       []T    `json:"data"`
	SeriesType string `json:"series_type"`
}

// Len returns the length of the stream, or 0 if nil
func (s *Streams) Len() int {
	if s == nil || s.Time == nil {
		return 0
	}
	return len(s.Time.Data)
}

// Points flattens the streams into per-sample points aligned on the time stream
func (s *Streams) Points(activityID int64) []store.StreamPoint {
	n := s.Len()
	points := make([]store.StreamPoint, n)
	for i := 0; i < n; i++ {
		p := store.StreamPoint{ActivityID: activityID, TimeOffset: s.Time.Data[i]}
		if s.VelocitySmooth != nil && i < len(s.VelocitySmooth.Data) {
			v := s.VelocitySmooth.Data[i]
			p.VelocitySmooth = &v
		}
		if s.Heartrate != nil && i < len(s.Heartrate.Data) {
			hr := s.Heartrate.Data[i]
			p.Heartrate = &hr
		}
		if s.Distance != nil && i < len(s.Distance.Data) {
			d := s.Distance.Data[i]
			p.Distance = &d
		}
		points[i] = p
	}
	return points
}
