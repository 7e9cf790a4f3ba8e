package recognition

import (
	"context"
	"fmt"
	"math"
	"sync"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/metrics"
	"github.com/ruralcare/carenav/internal/recommend"
)

// StreamEngine is the server side of the in-browser model: the browser
// runs inference and pushes each score array here.
type StreamEngine struct {
	assets *AssetLoader

	mu     sync.Mutex
	labels []string
	cb     ScoreCallback
	cfg    ListenConfig
}

var _ ScoreSource = (*StreamEngine)(nil)

func NewStreamEngine(assets *AssetLoader) *StreamEngine {
	return &StreamEngine{assets: assets}
}

func (e *StreamEngine) Load(ctx context.Context) ([]string, error) {
	info, err := e.assets.Load(ctx)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.labels = append([]string(nil), info.Labels...)
	e.mu.Unlock()
	return info.Labels, nil
}

func (e *StreamEngine) Listen(cb ScoreCallback, cfg ListenConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.labels == nil {
		return apperrors.NewNotReadyError("unloaded")
	}
	e.cb = cb
	e.cfg = cfg
	return nil
}

func (e *StreamEngine) StopListening() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cb = nil
	return nil
}

// Push delivers one score array, ordered like the label set. It reports
// whether the callback was invoked: nothing is delivered when not
// listening, when the winning score is under the probability threshold, or
// when the winner is noise/unknown and the config does not ask for those.
func (e *StreamEngine) Push(scores []float64) (bool, error) {
	e.mu.Lock()
	cb, cfg, labels := e.cb, e.cfg, e.labels
	e.mu.Unlock()

	if cb == nil {
		metrics.ScoreVectors.WithLabelValues("idle").Inc()
		return false, nil
	}
	if len(scores) != len(labels) {
		metrics.ScoreVectors.WithLabelValues("invalid").Inc()
		return false, apperrors.NewInvalidInputError(
			fmt.Sprintf("expected %d scores, got %d", len(labels), len(scores)))
	}

	v := make(recommend.ScoreVector, len(scores))
	for i, s := range scores {
		if math.IsNaN(s) || s < 0 || s > 1 {
			metrics.ScoreVectors.WithLabelValues("invalid").Inc()
			return false, apperrors.NewInvalidInputError(fmt.Sprintf("score %d out of range: %v", i, s))
		}
		v[i] = recommend.LabelScore{Label: labels[i], Score: s}
	}

	idx, _ := v.ArgMax()
	if v[idx].Score < cfg.ProbabilityThreshold {
		metrics.ScoreVectors.WithLabelValues("below_threshold").Inc()
		return false, nil
	}
	if IsNoiseOrUnknown(v[idx].Label) && !cfg.InvokeCallbackOnNoiseAndUnknown {
		metrics.ScoreVectors.WithLabelValues("noise").Inc()
		return false, nil
	}

	metrics.ScoreVectors.WithLabelValues("delivered").Inc()
	cb(v)
	return true, nil
}
