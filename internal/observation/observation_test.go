package observation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"fraction scales to percent", 0.92, 92},
		{"zero stays zero", 0, 0},
		{"exactly one scales", 1, 100},
		{"percent passes through", 92, 92},
		{"just above one passes through", 1.5, 1.5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, NormalizeConfidence(tt.in), 1e-9)
		})
	}
}

func TestNormalizeConfidenceIdempotent(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{0, 0.01, 0.5, 0.92, 1} {
		once := NormalizeConfidence(v)
		assert.InDelta(t, once, NormalizeConfidence(once), 1e-9,
			"normalizing twice must not change the value for input %f", v)
	}
}

func TestDisplayScorePrecedence(t *testing.T) {
	t.Parallel()

	t.Run("override wins over AI confidence", func(t *testing.T) {
		t.Parallel()
		override := 60.0
		rec := Recording{
			AI:              AIPrediction{Species: "Spring Peeper", Confidence: 0.92},
			NumericOverride: &override,
		}
		score, ok := rec.DisplayScore()
		require.True(t, ok)
		assert.InDelta(t, 60, score, 1e-9)
	})

	t.Run("AI confidence when no override", func(t *testing.T) {
		t.Parallel()
		rec := Recording{AI: AIPrediction{Species: "Spring Peeper", Confidence: 0.92}}
		score, ok := rec.DisplayScore()
		require.True(t, ok)
		assert.InDelta(t, 92, score, 1e-9)
	})

	t.Run("unavailable without any signal", func(t *testing.T) {
		t.Parallel()
		rec := Recording{}
		_, ok := rec.DisplayScore()
		assert.False(t, ok)
	})

	t.Run("fractional override normalizes", func(t *testing.T) {
		t.Parallel()
		override := 0.6
		rec := Recording{NumericOverride: &override}
		score, ok := rec.DisplayScore()
		require.True(t, ok)
		assert.InDelta(t, 60, score, 1e-9)
	})
}

func TestSpeciesOverride(t *testing.T) {
	t.Parallel()

	rec := Recording{AI: AIPrediction{Species: "Green Frog"}}
	assert.Equal(t, "Green Frog", rec.Species())

	rec.VolunteerSpecies = "Wood Frog"
	assert.Equal(t, "Wood Frog", rec.Species())
}

func TestAppendHistoryClampsTimestamps(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 4, 12, 21, 0, 0, 0, time.UTC)
	rec := Recording{}
	rec.AppendHistory(ActionSubmit, "u1", "", base)
	rec.AppendHistory(ActionApprove, "u2", "", base.Add(-time.Hour))

	require.Len(t, rec.History, 2)
	assert.Equal(t, base, rec.History[1].Timestamp,
		"an earlier wall clock must be clamped to the previous entry")
	assert.NoError(t, rec.Validate())
}

func TestAIPredictionValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid descending top3", func(t *testing.T) {
		t.Parallel()
		p := AIPrediction{
			Species:    "American Bullfrog",
			Confidence: 0.9,
			Top3: []SpeciesGuess{
				{Species: "American Bullfrog", Confidence: 0.9},
				{Species: "Green Frog", Confidence: 0.05},
				{Species: "Wood Frog", Confidence: 0.01},
			},
		}
		assert.NoError(t, p.Validate())
	})

	t.Run("too many candidates", func(t *testing.T) {
		t.Parallel()
		p := AIPrediction{Top3: make([]SpeciesGuess, 4)}
		assert.Error(t, p.Validate())
	})

	t.Run("unsorted candidates", func(t *testing.T) {
		t.Parallel()
		p := AIPrediction{Top3: []SpeciesGuess{
			{Confidence: 0.1},
			{Confidence: 0.5},
		}}
		assert.Error(t, p.Validate())
	})

	t.Run("confidence out of range", func(t *testing.T) {
		t.Parallel()
		p := AIPrediction{Confidence: 1.5}
		assert.Error(t, p.Validate())
	})
}

func TestRecordingValidate(t *testing.T) {
	t.Parallel()

	t.Run("reviewed without reviewer", func(t *testing.T) {
		t.Parallel()
		rec := Recording{ID: "r1", Status: StatusApproved}
		assert.Error(t, rec.Validate())
	})

	t.Run("override out of range", func(t *testing.T) {
		t.Parallel()
		v := 101.0
		rec := Recording{ID: "r1", Status: StatusNeedsReview, NumericOverride: &v}
		assert.Error(t, rec.Validate())
	})

	t.Run("bad volunteer confidence", func(t *testing.T) {
		t.Parallel()
		rec := Recording{ID: "r1", Status: StatusNeedsReview, VolunteerConfidence: "very sure"}
		assert.Error(t, rec.Validate())
	})

	t.Run("complete needs_review recording", func(t *testing.T) {
		t.Parallel()
		rec := Recording{
			ID:      "r1",
			OwnerID: "u1",
			Status:  StatusNeedsReview,
			AI:      AIPrediction{Species: "Gray Treefrog", Confidence: 0.7},
		}
		rec.AppendHistory(ActionSubmit, "u1", "", time.Now())
		assert.NoError(t, rec.Validate())
	})
}
