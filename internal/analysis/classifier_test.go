package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacelab/internal/store"
)

func run(km, pace float64, avgHR, maxHR *float64) store.Activity {
	return store.Activity{
		ID:           1,
		UserID:       1,
		ActivityType: "Run",
		DistanceM:    km * 1000,
		DurationS:    ptr(km * pace * 60),
		PaceMinPerKm: ptr(pace),
		AvgHR:        avgHR,
		MaxHR:        maxHR,
	}
}

func TestClassify(t *testing.T) {
	th := DefaultClassifierThresholds()
	baseline := &HistoryBaseline{BestPace: 4.5, P75Pace: 6.0, Runs: 20}

	tests := []struct {
		name     string
		activity store.Activity
		cvPace   *float64
		cvHR     *float64
		baseline *HistoryBaseline
		want     WorkoutType
	}{
		{
			name:     "steady long run",
			activity: run(16, 5.5, ptr(156), ptr(200)),
			cvPace:   ptr(0.05),
			want:     WorkoutLongRun,
		},
		{
			name: "walking speed",
			activity: store.Activity{
				ActivityType: "Run",
				DistanceM:    3000,
				DurationS:    ptr(2500),
			},
			want: WorkoutWalkOrInvalid,
		},
		{
			name:     "no derivable speed",
			activity: store.Activity{ActivityType: "Run"},
			want:     WorkoutWalkOrInvalid,
		},
		{
			name:     "heart rate below running threshold",
			activity: run(5, 6.0, ptr(85), ptr(190)),
			want:     WorkoutWalkOrInvalid,
		},
		{
			name:     "high pace variability",
			activity: run(8, 5.0, ptr(160), ptr(200)),
			cvPace:   ptr(0.25),
			want:     WorkoutInterval,
		},
		{
			name:     "long but variable falls through to intervals",
			activity: run(15, 4.4, ptr(160), ptr(200)),
			cvPace:   ptr(0.25),
			want:     WorkoutInterval,
		},
		{
			name:     "tempo near best pace",
			activity: run(8, 4.7, ptr(170), ptr(200)),
			cvPace:   ptr(0.05),
			baseline: baseline,
			want:     WorkoutTempo,
		},
		{
			name:     "easy well below best pace",
			activity: run(8, 6.0, ptr(140), ptr(200)),
			cvHR:     ptr(0.05),
			baseline: baseline,
			want:     WorkoutEasy,
		},
		{
			name:     "short slow recovery",
			activity: run(4, 6.5, ptr(120), ptr(200)),
			baseline: baseline,
			want:     WorkoutRecovery,
		},
		{
			name:     "recovery by absolute heart rate",
			activity: run(4, 6.5, ptr(120), nil),
			baseline: baseline,
			want:     WorkoutRecovery,
		},
		{
			name:     "baseline rules skipped without history",
			activity: run(8, 4.7, ptr(170), ptr(200)),
			cvPace:   ptr(0.05),
			want:     WorkoutUnclassified,
		},
		{
			name:     "tempo pace without heart rate",
			activity: run(8, 4.7, nil, nil),
			baseline: baseline,
			want:     WorkoutUnclassified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v *store.Variation
			if tt.cvPace != nil || tt.cvHR != nil {
				v = &store.Variation{CVPace: tt.cvPace, CVHR: tt.cvHR}
			}
			m := DeriveMetrics(tt.activity, v, th)
			d := Classify(m, tt.baseline, th)
			assert.Equal(t, tt.want, d.Label, d.Reason)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestClassifyTotal(t *testing.T) {
	th := DefaultClassifierThresholds()
	valid := map[WorkoutType]bool{
		WorkoutWalkOrInvalid: true, WorkoutLongRun: true, WorkoutInterval: true,
		WorkoutTempo: true, WorkoutEasy: true, WorkoutRecovery: true, WorkoutUnclassified: true,
	}

	for _, km := range []float64{0, 0.5, 3, 6, 10, 20, 42} {
		for _, pace := range []float64{3, 4.5, 6, 9, 15} {
			m := DeriveMetrics(run(km, pace, ptr(150), ptr(190)), &store.Variation{CVPace: ptr(0.12)}, th)
			d := Classify(m, &HistoryBaseline{BestPace: 4, P75Pace: 6}, th)
			assert.True(t, valid[d.Label], "unexpected label %q", d.Label)
		}
	}
}

func TestDeriveMetrics(t *testing.T) {
	th := DefaultClassifierThresholds()

	t.Run("duration from minutes", func(t *testing.T) {
		m := DeriveMetrics(store.Activity{DistanceM: 6000, DurationMin: ptr(30)}, nil, th)
		require.NotNil(t, m.DurationS)
		assert.InDelta(t, 1800.0, *m.DurationS, 1e-9)
		require.NotNil(t, m.AvgPace)
		assert.InDelta(t, 5.0, *m.AvgPace, 1e-9)
		require.NotNil(t, m.AvgSpeedMS)
		assert.InDelta(t, 1000.0/300, *m.AvgSpeedMS, 1e-9)
	})

	t.Run("duration from pace", func(t *testing.T) {
		m := DeriveMetrics(store.Activity{DistanceM: 10000, PaceMinPerKm: ptr(5)}, nil, th)
		require.NotNil(t, m.DurationS)
		assert.InDelta(t, 3000.0, *m.DurationS, 1e-9)
	})

	t.Run("implausible pace ignored", func(t *testing.T) {
		m := DeriveMetrics(store.Activity{DistanceM: 1000, PaceMinPerKm: ptr(75), DurationS: ptr(4500)}, nil, th)
		assert.Nil(t, m.AvgPace)
		require.NotNil(t, m.AvgSpeedMS)
		assert.InDelta(t, 1000.0/4500, *m.AvgSpeedMS, 1e-9)
	})

	t.Run("heart rate ratio", func(t *testing.T) {
		m := DeriveMetrics(run(5, 5, ptr(150), ptr(200)), nil, th)
		require.NotNil(t, m.HRPctMax)
		assert.InDelta(t, 0.75, *m.HRPctMax, 1e-9)
	})
}

func TestComputeHistoryBaseline(t *testing.T) {
	th := DefaultClassifierThresholds()

	assert.Nil(t, ComputeHistoryBaseline(nil, th))

	history := []store.Activity{
		run(5, 4.5, nil, nil),
		run(8, 5.0, nil, nil),
		run(10, 6.0, nil, nil),
		run(12, 7.0, nil, nil),
		run(0.5, 3.0, nil, nil),
		{ActivityType: "Run", DistanceM: 5000, PaceMinPerKm: ptr(70)},
	}
	b := ComputeHistoryBaseline(history, th)
	require.NotNil(t, b)
	assert.Equal(t, 4, b.Runs)
	assert.InDelta(t, 4.5, b.BestPace, 1e-9)
	assert.InDelta(t, 6.25, b.P75Pace, 1e-9)
}

func TestDecisionLogAttrs(t *testing.T) {
	th := DefaultClassifierThresholds()
	d := Classify(DeriveMetrics(run(16, 5.5, ptr(156), ptr(200)), nil, th), nil, th)
	attrs := d.LogAttrs()
	assert.Len(t, attrs, 12)
}
