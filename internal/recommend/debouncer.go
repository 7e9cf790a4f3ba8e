// Package recommend turns classification score vectors into the specialist
// recommendation shown to the user.
package recommend

import (
	"fmt"
	"sync"
	"time"

	"github.com/ruralcare/carenav/internal/metrics"
)

const (
	ConfidenceThreshold = 0.75
	DebounceDelay       = 1000 * time.Millisecond
)

// LabelScore is one entry of a ScoreVector.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ScoreVector holds one score per known label, in label order.
type ScoreVector []LabelScore

// ArgMax returns the index of the highest score. Ties go to the earliest
// index. ok is false for an empty vector.
func (v ScoreVector) ArgMax() (idx int, ok bool) {
	if len(v) == 0 {
		return 0, false
	}
	for i := 1; i < len(v); i++ {
		if v[i].Score > v[idx].Score {
			idx = i
		}
	}
	return idx, true
}

// Recommendation is the displayed specialist suggestion. Confidence is the
// raw model score in [0,1].
type Recommendation struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// FormatConfidence renders a [0,1] score as a percentage with one decimal.
func FormatConfidence(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

// Debouncer rate-limits recommendation changes. A vector may replace the
// current recommendation only when its winning score reaches the threshold
// and at least delay has passed since the previous replacement.
type Debouncer struct {
	mu         sync.Mutex
	threshold  float64
	delay      time.Duration
	lastUpdate time.Time
	current    *Recommendation
}

// NewDebouncer starts the debounce window at startedAt, so the first
// recommendation can appear no sooner than delay after it.
func NewDebouncer(threshold float64, delay time.Duration, startedAt time.Time) *Debouncer {
	return &Debouncer{
		threshold:  threshold,
		delay:      delay,
		lastUpdate: startedAt,
	}
}

// OnScoreVector feeds one classification result observed at now. It
// returns the new recommendation and true when the displayed one changed.
func (d *Debouncer) OnScoreVector(v ScoreVector, now time.Time) (Recommendation, bool) {
	idx, ok := v.ArgMax()
	if !ok {
		return Recommendation{}, false
	}
	winner := v[idx]

	d.mu.Lock()
	defer d.mu.Unlock()

	if winner.Score < d.threshold {
		return Recommendation{}, false
	}
	if now.Sub(d.lastUpdate) < d.delay {
		return Recommendation{}, false
	}

	rec := Recommendation{
		Label:      winner.Label,
		Confidence: winner.Score,
		UpdatedAt:  now,
	}
	d.current = &rec
	d.lastUpdate = now
	metrics.RecommendationsEmitted.WithLabelValues(rec.Label).Inc()
	return rec, true
}

// Current returns the displayed recommendation, if any.
func (d *Debouncer) Current() (Recommendation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return Recommendation{}, false
	}
	return *d.current, true
}

// LastUpdate is the start of the current debounce window.
func (d *Debouncer) LastUpdate() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastUpdate
}

// Restore reinstates persisted state.
func (d *Debouncer) Restore(rec *Recommendation, lastUpdate time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rec != nil {
		r := *rec
		d.current = &r
	} else {
		d.current = nil
	}
	d.lastUpdate = lastUpdate
}
