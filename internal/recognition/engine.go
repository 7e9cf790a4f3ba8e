// Package recognition bridges the externally hosted speech-commands model
// to the recommendation debouncer.
package recognition

import (
	"context"
	"strings"

	"github.com/ruralcare/carenav/internal/recommend"
)

// ListenConfig mirrors the options the browser passes to the model's
// listen call.
type ListenConfig struct {
	IncludeSpectrogram              bool    `json:"includeSpectrogram"`
	ProbabilityThreshold            float64 `json:"probabilityThreshold"`
	InvokeCallbackOnNoiseAndUnknown bool    `json:"invokeCallbackOnNoiseAndUnknown"`
	OverlapFactor                   float64 `json:"overlapFactor"`
}

// DefaultListenConfig is the fixed configuration used by the symptom checker.
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		IncludeSpectrogram:              false,
		ProbabilityThreshold:            recommend.ConfidenceThreshold,
		InvokeCallbackOnNoiseAndUnknown: true,
		OverlapFactor:                   0.50,
	}
}

// ScoreCallback receives one classification result per invocation.
type ScoreCallback func(recommend.ScoreVector)

// Engine is the audio classification capability. Implementations own model
// loading and deliver score vectors to the registered callback.
type Engine interface {
	Load(ctx context.Context) ([]string, error)
	Listen(cb ScoreCallback, cfg ListenConfig) error
	StopListening() error
}

// ScoreSource is an Engine fed from outside, one score array at a time.
type ScoreSource interface {
	Engine
	Push(scores []float64) (bool, error)
}

// IsNoiseOrUnknown reports whether label is one of the model's catch-all
// classes rather than a specialist.
func IsNoiseOrUnknown(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "_background_noise_", "_unknown_", "background noise", "unknown":
		return true
	}
	return false
}
