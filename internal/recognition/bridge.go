package recognition

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/recommend"
)

// State is the bridge lifecycle state.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateListening
	StateLoadFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateListening:
		return "listening"
	case StateLoadFailed:
		return "load_failed"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Sink consumes delivered score vectors. *recommend.Debouncer satisfies it.
type Sink interface {
	OnScoreVector(v recommend.ScoreVector, now time.Time) (recommend.Recommendation, bool)
}

// Bridge owns one session's recognizer lifecycle and forwards score
// vectors to its sink while listening.
type Bridge struct {
	engine Engine
	sink   Sink
	cfg    ListenConfig
	now    func() time.Time
	logger logger.Logger

	mu      sync.Mutex
	state   State
	labels  []string
	loadErr error
}

func NewBridge(engine Engine, sink Sink, cfg ListenConfig, now func() time.Time, log logger.Logger) *Bridge {
	if now == nil {
		now = time.Now
	}
	return &Bridge{
		engine: engine,
		sink:   sink,
		cfg:    cfg,
		now:    now,
		logger: log.With(map[string]interface{}{"component": "recognition"}),
	}
}

// Load loads the model once. A failed load is terminal for the bridge:
// later Start and Stop calls do nothing.
func (b *Bridge) Load(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case StateUnloaded:
	case StateLoadFailed:
		err := b.loadErr
		b.mu.Unlock()
		return err
	default:
		b.mu.Unlock()
		return nil
	}
	b.state = StateLoading
	b.mu.Unlock()

	labels, err := b.engine.Load(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateDisposed {
		return nil
	}
	if err != nil {
		if apperrors.CodeOf(err) != apperrors.ErrCodeLoadFailed {
			err = apperrors.NewLoadFailedError("model", err)
		}
		b.state = StateLoadFailed
		b.loadErr = err
		b.logger.Error("recognizer failed to load", map[string]interface{}{"error": err.Error()})
		return err
	}
	b.labels = labels
	b.state = StateReady
	b.logger.Debug("recognizer ready", map[string]interface{}{"labels": len(labels)})
	return nil
}

// Start begins listening. It fails with NOT_READY before the model has
// loaded and is a no-op once listening, after a failed load, or after
// disposal.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateReady:
	case StateUnloaded, StateLoading:
		return apperrors.NewNotReadyError(b.state.String())
	default:
		return nil
	}

	if err := b.engine.Listen(b.deliver, b.cfg); err != nil {
		return err
	}
	b.state = StateListening
	b.logger.Info("listening started", nil)
	return nil
}

// Stop ends listening. Safe to call in any state.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateListening {
		return nil
	}
	b.state = StateReady
	if err := b.engine.StopListening(); err != nil {
		b.logger.Warn("stop listening failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	b.logger.Info("listening stopped", nil)
	return nil
}

// Dispose stops listening and makes the bridge inert.
func (b *Bridge) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateListening {
		if err := b.engine.StopListening(); err != nil {
			b.logger.Warn("stop listening failed", map[string]interface{}{"error": err.Error()})
		}
	}
	b.state = StateDisposed
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) Labels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.labels...)
}

func (b *Bridge) ListenConfig() ListenConfig {
	return b.cfg
}

// deliver runs on the engine's callback path. Vectors arriving after Stop
// are dropped.
func (b *Bridge) deliver(v recommend.ScoreVector) {
	b.mu.Lock()
	listening := b.state == StateListening
	b.mu.Unlock()
	if !listening {
		return
	}
	if rec, changed := b.sink.OnScoreVector(v, b.now()); changed {
		b.logger.Debug("recommendation changed", map[string]interface{}{
			"label":      rec.Label,
			"confidence": rec.Confidence,
		})
	}
}
