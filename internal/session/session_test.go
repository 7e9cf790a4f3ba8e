package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/finder"
	"github.com/ruralcare/carenav/internal/geo"
	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/places"
	"github.com/ruralcare/carenav/internal/recognition"
	"github.com/ruralcare/carenav/internal/recommend"
)

// pushEngine delivers pushed scores straight to the listener.
type pushEngine struct {
	labels  []string
	loadErr error
	cb      recognition.ScoreCallback
}

func (e *pushEngine) Load(context.Context) ([]string, error) {
	return e.labels, e.loadErr
}

func (e *pushEngine) Listen(cb recognition.ScoreCallback, _ recognition.ListenConfig) error {
	e.cb = cb
	return nil
}

func (e *pushEngine) StopListening() error {
	e.cb = nil
	return nil
}

func (e *pushEngine) Push(scores []float64) (bool, error) {
	if e.cb == nil {
		return false, nil
	}
	v := make(recommend.ScoreVector, len(scores))
	for i, s := range scores {
		v[i] = recommend.LabelScore{Label: e.labels[i], Score: s}
	}
	e.cb(v)
	return true, nil
}

type clock struct{ t time.Time }

// startTime is close to the wall clock so the memory store's TTL, which
// reads real time, does not expire test records.
func startTime() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var sanFrancisco = geo.Coordinate{Lat: 37.7749, Lng: -122.4194}

func testOptions(c *clock, loadErr error) Options {
	return Options{
		Finder: finder.Deps{
			DefaultCenter: sanFrancisco,
			DefaultZoom:   14,
			MapSize:       geo.Size{Width: 640, Height: 500},
		},
		NewEngine: func() recognition.ScoreSource {
			return &pushEngine{labels: []string{"Background Noise", "Cardiologist", "Dentist"}, loadErr: loadErr}
		},
		Listen:        recognition.DefaultListenConfig(),
		Threshold:     recommend.ConfidenceThreshold,
		DebounceDelay: recommend.DebounceDelay,
		IdleTimeout:   time.Hour,
		Now:           c.Now,
	}
}

func newTestManager(t *testing.T, store Store, c *clock) *Manager {
	return NewManager(store, testOptions(c, nil), logger.NewTestLogger(t))
}

func TestManager_CreateAndGet(t *testing.T) {
	c := &clock{t: startTime()}
	m := newTestManager(t, NewMemoryStore("", 24*time.Hour), c)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	view := got.View()
	assert.Equal(t, sanFrancisco, view.Finder.Center)
	assert.Equal(t, 14, view.Finder.Map.Zoom)
	assert.Equal(t, "unloaded", view.Symptoms.Recognizer)
	assert.Nil(t, view.Symptoms.Recommendation)
}

func TestManager_GetUnknown(t *testing.T) {
	c := &clock{t: startTime()}
	m := newTestManager(t, NewMemoryStore("", time.Hour), c)

	_, err := m.Get(context.Background(), "not-a-uuid")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeSessionNotFound))

	_, err = m.Get(context.Background(), "5f0c7c6e-4a38-4c1e-9d5a-2f1d1b9a7c11")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeSessionNotFound))
}

func TestSession_SymptomFlow(t *testing.T) {
	c := &clock{t: startTime()}
	m := newTestManager(t, NewMemoryStore("", time.Hour), c)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	// pushes before start are ignored
	delivered, err := s.PushScores([]float64{0.1, 0.8, 0.1})
	require.NoError(t, err)
	assert.False(t, delivered)

	require.NoError(t, s.StartListening(ctx))
	assert.Equal(t, recognition.StateListening, s.Bridge.State())

	// inside the first debounce window
	c.Advance(500 * time.Millisecond)
	_, err = s.PushScores([]float64{0.05, 0.9, 0.05})
	require.NoError(t, err)
	assert.Nil(t, s.View().Symptoms.Recommendation)

	c.Advance(600 * time.Millisecond)
	_, err = s.PushScores([]float64{0.05, 0.9, 0.05})
	require.NoError(t, err)

	view := s.View()
	require.NotNil(t, view.Symptoms.Recommendation)
	assert.Equal(t, "Cardiologist", view.Symptoms.Recommendation.Label)
	assert.Equal(t, "90.0%", view.Symptoms.Confidence)

	require.NoError(t, s.StopListening())
	assert.Equal(t, "ready", s.View().Symptoms.Recognizer)
	// the recommendation survives stopping
	assert.NotNil(t, s.View().Symptoms.Recommendation)
}

func TestSession_LoadFailure(t *testing.T) {
	c := &clock{t: startTime()}
	m := NewManager(NewMemoryStore("", time.Hour), testOptions(c, errors.New("cdn unreachable")), logger.NewTestLogger(t))
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	err = s.StartListening(ctx)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeLoadFailed))
	assert.Equal(t, "load_failed", s.View().Symptoms.Recognizer)
	assert.NoError(t, s.StopListening())
}

func TestSession_UpdateUI(t *testing.T) {
	c := &clock{t: startTime()}
	m := newTestManager(t, NewMemoryStore("", time.Hour), c)
	s, err := m.Create(context.Background())
	require.NoError(t, err)

	on, off := true, false
	ui := s.UpdateUI(UIEdit{ScrollLocked: &on, FinderHelp: &on})
	assert.Equal(t, UIState{ScrollLocked: true, FinderHelpVisible: true}, ui)

	ui = s.UpdateUI(UIEdit{FinderHelp: &off, SymptomHelp: &on})
	assert.Equal(t, UIState{ScrollLocked: true, SymptomHelpVisible: true}, ui)

	s.SetScrollLocked(false)
	assert.False(t, s.UI().ScrollLocked)
}

func TestManager_RehydratesFromStore(t *testing.T) {
	c := &clock{t: startTime()}
	store := NewMemoryStore("", 24*time.Hour)
	ctx := context.Background()

	first := newTestManager(t, store, c)
	s, err := first.Create(ctx)
	require.NoError(t, err)

	rating := 4.2
	s.Finder.Restore(finder.State{
		Center:     sanFrancisco,
		Map:        geo.Viewport{Center: sanFrancisco, Zoom: 11},
		Filter:     places.SearchFilter{Specialist: "Dentist", RadiusMiles: 5},
		Facilities: []places.Facility{{ID: "p1", Name: "Smile Clinic", Rating: &rating, Categories: []string{"dentist", "health"}}},
		SelectedID: "p1",
	})
	s.Debouncer.Restore(&recommend.Recommendation{Label: "Dentist", Confidence: 0.81, UpdatedAt: c.t}, c.t)
	s.SetScrollLocked(true)
	require.NoError(t, first.Save(ctx, s))

	// a second process sharing the store
	second := newTestManager(t, store, c)
	restored, err := second.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.NotSame(t, s, restored)

	assert.Equal(t, s.Finder.Snapshot(), restored.Finder.Snapshot())
	assert.True(t, restored.UI().ScrollLocked)

	view := restored.View()
	require.NotNil(t, view.Selected)
	assert.Equal(t, "Smile Clinic", view.Selected.Name)
	require.NotNil(t, view.Symptoms.Recommendation)
	assert.Equal(t, "Dentist", view.Symptoms.Recommendation.Label)
	assert.Equal(t, "81.0%", view.Symptoms.Confidence)
	assert.Equal(t, c.t, restored.Debouncer.LastUpdate())
}

func TestManager_SweepEvictsIdle(t *testing.T) {
	c := &clock{t: startTime()}
	store := NewMemoryStore("", 24*time.Hour)
	m := newTestManager(t, store, c)
	ctx := context.Background()

	idle, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, idle.StartListening(ctx))

	c.Advance(50 * time.Minute)
	active, err := m.Create(ctx)
	require.NoError(t, err)

	c.Advance(20 * time.Minute)
	assert.Equal(t, 1, m.Sweep(c.Now()))
	assert.Equal(t, 1, m.Live())
	assert.Equal(t, recognition.StateDisposed, idle.Bridge.State())

	// the record is still in the store and comes back on demand
	back, err := m.Get(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, idle.ID, back.ID)
	assert.Equal(t, recognition.StateUnloaded, back.Bridge.State())

	_, err = m.Get(ctx, active.ID)
	require.NoError(t, err)
}

func TestManager_Delete(t *testing.T) {
	c := &clock{t: startTime()}
	m := newTestManager(t, NewMemoryStore("", time.Hour), c)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, s.ID))

	_, err = m.Get(ctx, s.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeSessionNotFound))
	assert.Equal(t, recognition.StateDisposed, s.Bridge.State())

	err = m.Delete(ctx, s.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeSessionNotFound))
	err = m.Delete(ctx, "not-a-uuid")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeSessionNotFound))
}

func TestManager_DeleteStoredOnly(t *testing.T) {
	c := &clock{t: startTime()}
	store := NewMemoryStore("", time.Hour)
	ctx := context.Background()

	s, err := newTestManager(t, store, c).Create(ctx)
	require.NoError(t, err)

	other := newTestManager(t, store, c)
	require.NoError(t, other.Delete(ctx, s.ID))

	_, err = store.Load(ctx, s.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeSessionNotFound))
}
