package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func vector(scores ...float64) ScoreVector {
	labels := []string{"Background Noise", "Cardiologist", "Dermatologist", "Dentist"}
	v := make(ScoreVector, len(scores))
	for i, s := range scores {
		v[i] = LabelScore{Label: labels[i], Score: s}
	}
	return v
}

func TestScoreVector_ArgMax(t *testing.T) {
	tests := []struct {
		name string
		v    ScoreVector
		want int
	}{
		{name: "single max", v: vector(0.1, 0.8, 0.05, 0.05), want: 1},
		{name: "last is max", v: vector(0.1, 0.1, 0.1, 0.7), want: 3},
		{name: "tie goes to first", v: vector(0.1, 0.45, 0.45, 0), want: 1},
		{name: "all equal", v: vector(0.25, 0.25, 0.25, 0.25), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := tt.v.ArgMax()
			require.True(t, ok)
			assert.Equal(t, tt.want, idx)
		})
	}

	_, ok := ScoreVector{}.ArgMax()
	assert.False(t, ok)
}

func TestDebouncer_EmitsArgMaxLabel(t *testing.T) {
	d := NewDebouncer(ConfidenceThreshold, DebounceDelay, t0)

	rec, changed := d.OnScoreVector(vector(0.02, 0.03, 0.9, 0.05), t0.Add(time.Second))

	require.True(t, changed)
	assert.Equal(t, "Dermatologist", rec.Label)
	assert.Equal(t, 0.9, rec.Confidence)
	assert.Equal(t, t0.Add(time.Second), rec.UpdatedAt)

	cur, ok := d.Current()
	require.True(t, ok)
	assert.Equal(t, rec, cur)
}

func TestDebouncer_WindowStartsAtCreation(t *testing.T) {
	d := NewDebouncer(ConfidenceThreshold, DebounceDelay, t0)

	_, changed := d.OnScoreVector(vector(0, 0.9, 0.1, 0), t0.Add(999*time.Millisecond))
	assert.False(t, changed)

	_, ok := d.Current()
	assert.False(t, ok)
}

func TestDebouncer_RateLimitsChanges(t *testing.T) {
	d := NewDebouncer(ConfidenceThreshold, DebounceDelay, t0)

	_, changed := d.OnScoreVector(vector(0, 0.9, 0.1, 0), t0.Add(time.Second))
	require.True(t, changed)

	// less than 1000 ms later: ignored
	_, changed = d.OnScoreVector(vector(0, 0.1, 0, 0.9), t0.Add(1999*time.Millisecond))
	assert.False(t, changed)
	cur, _ := d.Current()
	assert.Equal(t, "Cardiologist", cur.Label)

	// exactly 1000 ms later: accepted
	rec, changed := d.OnScoreVector(vector(0, 0.1, 0, 0.9), t0.Add(2*time.Second))
	assert.True(t, changed)
	assert.Equal(t, "Dentist", rec.Label)
}

func TestDebouncer_RejectsLowConfidence(t *testing.T) {
	d := NewDebouncer(ConfidenceThreshold, DebounceDelay, t0)

	_, changed := d.OnScoreVector(vector(0.3, 0.7, 0, 0), t0.Add(5*time.Second))
	assert.False(t, changed)

	// a rejected vector does not restart the window
	_, changed = d.OnScoreVector(vector(0, 0.75, 0.25, 0), t0.Add(5*time.Second+time.Millisecond))
	assert.True(t, changed)
}

func TestDebouncer_Restore(t *testing.T) {
	d := NewDebouncer(ConfidenceThreshold, DebounceDelay, t0)
	rec := Recommendation{Label: "Dentist", Confidence: 0.8, UpdatedAt: t0}

	d.Restore(&rec, t0)

	cur, ok := d.Current()
	require.True(t, ok)
	assert.Equal(t, rec, cur)
	assert.Equal(t, t0, d.LastUpdate())

	_, changed := d.OnScoreVector(vector(0, 0.9, 0, 0), t0.Add(500*time.Millisecond))
	assert.False(t, changed)
}

func TestFormatConfidence(t *testing.T) {
	assert.Equal(t, "87.5%", FormatConfidence(0.875))
	assert.Equal(t, "100.0%", FormatConfidence(1))
}
