package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacelab/internal/analysis"
	"pacelab/internal/store"
)

var skillNow = time.Date(2026, 6, 14, 12, 0, 0, 0, time.UTC)

// seedTieredPopulation stores four groups of three identical users whose
// volume, frequency and speed all rise from group to group
func seedTieredPopulation(t *testing.T, db *store.DB) {
	t.Helper()
	id := int64(1)
	for g := 0; g < 4; g++ {
		runs := 6 + 2*g
		km := 5 + 2*float64(g)
		pace := 6.0 - 0.5*float64(g)
		for u := 0; u < 3; u++ {
			userID := int64(g*3 + u + 1)
			for r := 0; r < runs; r++ {
				seedRun(t, db, id, userID, skillNow.AddDate(0, 0, -(r*3 + 1)), km, pace, nil, nil)
				id++
			}
		}
	}
}

func newSkillService(h HistoryStore) *SkillService {
	svc := NewSkillService(h, analysis.DefaultSkillParams(), BatchOptions{PageSize: 25}, testLogger)
	svc.now = func() time.Time { return skillNow }
	return svc
}

func TestSkillEstimateTiers(t *testing.T) {
	db := openTestDB(t)
	seedTieredPopulation(t, db)
	svc := newSkillService(db)

	tests := []struct {
		userID int64
		want   analysis.Tier
	}{
		{1, analysis.TierBeginner},
		{4, analysis.TierIntermediate},
		{7, analysis.TierAdvanced},
		{12, analysis.TierElite},
	}

	for _, tt := range tests {
		res, err := svc.Estimate(context.Background(), SkillRequest{UserID: tt.userID})
		require.NoError(t, err)
		assert.Equal(t, analysis.MethodKMeansPCA, res.Method)
		assert.Equal(t, tt.want, res.Tier, "user %d", tt.userID)
		assert.Equal(t, 90, res.LookbackDays)
		assert.Equal(t, 12, res.PopulationSize)
	}
}

func TestSkillEstimateNoData(t *testing.T) {
	db := openTestDB(t)
	seedTieredPopulation(t, db)

	res, err := newSkillService(db).Estimate(context.Background(), SkillRequest{UserID: 99, LookbackDays: 30})
	require.NoError(t, err)
	assert.Equal(t, analysis.TierBeginner, res.Tier)
	assert.Equal(t, analysis.MethodNoData, res.Method)
	assert.Equal(t, analysis.ReasonNoQualifyingRuns, res.Reason)
	assert.Equal(t, 180, res.LookbackDays)
}

func TestSkillEstimateHistoryFailure(t *testing.T) {
	_, err := newSkillService(failingHistory{}).Estimate(context.Background(), SkillRequest{UserID: 1})
	require.Error(t, err)
}
