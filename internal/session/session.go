// Package session holds per-visitor state: the facility finder, the
// symptom checker and the page's presentation flags.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/ruralcare/carenav/internal/finder"
	"github.com/ruralcare/carenav/internal/places"
	"github.com/ruralcare/carenav/internal/recognition"
	"github.com/ruralcare/carenav/internal/recommend"
)

// UIState is presentation state the pages toggle.
type UIState struct {
	ScrollLocked       bool `json:"scrollLocked"`
	FinderHelpVisible  bool `json:"finderHelpVisible"`
	SymptomHelpVisible bool `json:"symptomHelpVisible"`
}

// UIEdit is a partial UIState update.
type UIEdit struct {
	ScrollLocked *bool `json:"scrollLocked,omitempty"`
	FinderHelp   *bool `json:"finderHelp,omitempty"`
	SymptomHelp  *bool `json:"symptomHelp,omitempty"`
}

// Record is the persisted form of a session.
type Record struct {
	ID             string                    `json:"id"`
	Finder         finder.State              `json:"finder"`
	Recommendation *recommend.Recommendation `json:"recommendation,omitempty"`
	DebounceStart  time.Time                 `json:"debounceStart"`
	UI             UIState                   `json:"ui"`
	CreatedAt      time.Time                 `json:"createdAt"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
}

// SymptomView is the symptom checker as rendered by the API.
type SymptomView struct {
	Recognizer     string                    `json:"recognizer"`
	Labels         []string                  `json:"labels"`
	Listen         recognition.ListenConfig  `json:"listenConfig"`
	Recommendation *recommend.Recommendation `json:"recommendation,omitempty"`
	Confidence     string                    `json:"confidence,omitempty"`
}

// View is the full session as returned by the API.
type View struct {
	ID       string           `json:"id"`
	Finder   finder.State     `json:"finder"`
	Selected *places.Facility `json:"selected,omitempty"`
	Symptoms SymptomView      `json:"symptoms"`
	UI       UIState          `json:"ui"`
}

// Session is one visitor's live state. Its parts carry their own locks;
// mu guards only the presentation flags and timestamps.
type Session struct {
	ID        string
	Finder    *finder.ViewModel
	Debouncer *recommend.Debouncer
	Bridge    *recognition.Bridge

	engine recognition.ScoreSource

	mu        sync.Mutex
	ui        UIState
	createdAt time.Time
	touchedAt time.Time
}

// SetScrollLocked locks or unlocks page scrolling while the menu is open.
func (s *Session) SetScrollLocked(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui.ScrollLocked = locked
}

// UpdateUI merges a presentation edit.
func (s *Session) UpdateUI(edit UIEdit) UIState {
	if edit.ScrollLocked != nil {
		s.SetScrollLocked(*edit.ScrollLocked)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if edit.FinderHelp != nil {
		s.ui.FinderHelpVisible = *edit.FinderHelp
	}
	if edit.SymptomHelp != nil {
		s.ui.SymptomHelpVisible = *edit.SymptomHelp
	}
	return s.ui
}

func (s *Session) UI() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ui
}

// StartListening loads the recognizer on first use and starts it.
func (s *Session) StartListening(ctx context.Context) error {
	if err := s.Bridge.Load(ctx); err != nil {
		return err
	}
	return s.Bridge.Start()
}

func (s *Session) StopListening() error {
	return s.Bridge.Stop()
}

// PushScores hands one browser-side classification result to the engine.
func (s *Session) PushScores(scores []float64) (bool, error) {
	return s.engine.Push(scores)
}

// Touch records activity for idle eviction.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// Record captures the persistable state.
func (s *Session) Record(now time.Time) Record {
	rec := Record{
		ID:            s.ID,
		Finder:        s.Finder.Snapshot(),
		DebounceStart: s.Debouncer.LastUpdate(),
		UpdatedAt:     now,
	}
	if cur, ok := s.Debouncer.Current(); ok {
		rec.Recommendation = &cur
	}
	s.mu.Lock()
	rec.UI = s.ui
	rec.CreatedAt = s.createdAt
	s.mu.Unlock()
	return rec
}

// View renders the session for the API.
func (s *Session) View() View {
	state := s.Finder.Snapshot()
	v := View{
		ID:     s.ID,
		Finder: state,
		UI:     s.UI(),
		Symptoms: SymptomView{
			Recognizer: s.Bridge.State().String(),
			Labels:     s.Bridge.Labels(),
			Listen:     s.Bridge.ListenConfig(),
		},
	}
	if f, ok := state.Selected(); ok {
		v.Selected = &f
	}
	if cur, ok := s.Debouncer.Current(); ok {
		v.Symptoms.Recommendation = &cur
		v.Symptoms.Confidence = recommend.FormatConfidence(cur.Confidence)
	}
	return v
}
