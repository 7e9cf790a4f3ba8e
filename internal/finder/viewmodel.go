// Package finder holds the facility finder's view model: search center,
// map viewport, filter, facility list and selection.
package finder

import (
	"context"
	"errors"
	"strings"
	"sync"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/geo"
	"github.com/ruralcare/carenav/internal/geocode"
	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/metrics"
	"github.com/ruralcare/carenav/internal/places"
)

// ErrSuperseded is returned when a response arrives after a newer request
// was issued. The newer request's state is kept.
var ErrSuperseded = errors.New("superseded by a newer search")

// FilterEdit is a partial filter update; nil fields are left as they are.
type FilterEdit struct {
	Specialist *string `json:"specialist,omitempty"`
	Distance   *string `json:"distance,omitempty"`
}

// State is the serializable view model state.
type State struct {
	Center     geo.Coordinate      `json:"center"`
	Map        geo.Viewport        `json:"map"`
	Filter     places.SearchFilter `json:"filter"`
	Facilities []places.Facility   `json:"facilities"`
	SelectedID string              `json:"selectedId,omitempty"`
	Generation uint64              `json:"generation"`
}

// Selected resolves the selection against the current list.
func (s State) Selected() (places.Facility, bool) {
	if s.SelectedID == "" {
		return places.Facility{}, false
	}
	for _, f := range s.Facilities {
		if f.ID == s.SelectedID {
			return f, true
		}
	}
	return places.Facility{}, false
}

// Deps are the collaborators of a ViewModel. ZipSearcher serves
// SubmitZipSearch and FilterSearcher serves ApplyFilters.
type Deps struct {
	Resolver       geocode.Resolver
	ZipSearcher    places.Searcher
	FilterSearcher places.Searcher
	MapSize        geo.Size
	DefaultCenter  geo.Coordinate
	DefaultZoom    int
}

type ViewModel struct {
	deps   Deps
	logger logger.Logger

	mu    sync.Mutex
	state State
}

func NewViewModel(deps Deps, log logger.Logger) *ViewModel {
	if deps.DefaultZoom == 0 {
		deps.DefaultZoom = geo.DefaultZoom
	}
	return &ViewModel{
		deps:   deps,
		logger: log.With(map[string]interface{}{"component": "finder"}),
		state: State{
			Center: deps.DefaultCenter,
			Map: geo.Viewport{
				Center: deps.DefaultCenter,
				Zoom:   deps.DefaultZoom,
				Bounds: geo.NewBounds(deps.DefaultCenter),
			},
			Facilities: []places.Facility{},
		},
	}
}

// Snapshot returns a copy of the current state.
func (vm *ViewModel) Snapshot() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.snapshotLocked()
}

func (vm *ViewModel) snapshotLocked() State {
	s := vm.state
	s.Facilities = make([]places.Facility, len(vm.state.Facilities))
	copy(s.Facilities, vm.state.Facilities)
	return s
}

// Restore replaces the whole state, e.g. after loading a session.
func (vm *ViewModel) Restore(s State) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if s.Facilities == nil {
		s.Facilities = []places.Facility{}
	}
	vm.state = s
}

// SetFilter merges a filter edit. It never triggers a search.
func (vm *ViewModel) SetFilter(edit FilterEdit) State {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if edit.Specialist != nil {
		vm.state.Filter.Specialist = CanonicalSpecialist(*edit.Specialist)
	}
	if edit.Distance != nil {
		vm.state.Filter.RadiusMiles = ParseDistance(*edit.Distance)
	}
	return vm.snapshotLocked()
}

// SubmitZipSearch geocodes zip and searches around it with the current
// filter. The update is all-or-nothing: any failure leaves the state as it
// was. A blank zip does nothing.
func (vm *ViewModel) SubmitZipSearch(ctx context.Context, zip string) (State, error) {
	if strings.TrimSpace(zip) == "" {
		return vm.Snapshot(), nil
	}

	vm.mu.Lock()
	ticket := vm.nextTicketLocked()
	filter := vm.state.Filter
	vm.mu.Unlock()

	log := vm.logger.With(map[string]interface{}{"zip": zip, "ticket": ticket})

	center, err := vm.deps.Resolver.Resolve(ctx, zip)
	if err != nil {
		log.Warn("zip lookup failed", map[string]interface{}{"code": string(apperrors.CodeOf(err))})
		return vm.Snapshot(), err
	}

	facilities, err := vm.deps.ZipSearcher.Search(ctx, center, filter)
	if err != nil {
		log.Warn("facility search failed", map[string]interface{}{"code": string(apperrors.CodeOf(err))})
		return vm.Snapshot(), err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if ticket != vm.state.Generation {
		metrics.SupersededResponses.Inc()
		log.Debug("discarding superseded zip search", nil)
		return vm.snapshotLocked(), ErrSuperseded
	}

	vm.state.Center = center
	vm.state.Map = geo.Viewport{
		Center: center,
		Zoom:   vm.deps.DefaultZoom,
		Bounds: geo.NewBounds(center),
	}
	vm.state.Facilities = facilities
	vm.state.SelectedID = ""

	log.Info("zip search applied", map[string]interface{}{"facilities": len(facilities)})
	return vm.snapshotLocked(), nil
}

// ApplyFilters searches around the current center with the current filter.
// The map is refitted over the results and the center even when nothing
// matched; in that case the facility list is kept.
func (vm *ViewModel) ApplyFilters(ctx context.Context) (State, error) {
	vm.mu.Lock()
	ticket := vm.nextTicketLocked()
	center := vm.state.Center
	filter := vm.state.Filter
	vm.mu.Unlock()

	log := vm.logger.With(map[string]interface{}{"ticket": ticket})

	facilities, err := vm.deps.FilterSearcher.Search(ctx, center, filter)
	noResults := apperrors.Is(err, apperrors.ErrCodeNoResults)
	if err != nil && !noResults {
		log.Warn("filtered search failed", map[string]interface{}{"code": string(apperrors.CodeOf(err))})
		return vm.Snapshot(), err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if ticket != vm.state.Generation {
		metrics.SupersededResponses.Inc()
		log.Debug("discarding superseded filtered search", nil)
		return vm.snapshotLocked(), ErrSuperseded
	}

	points := make([]geo.Coordinate, 0, len(facilities))
	for _, f := range facilities {
		points = append(points, f.Location)
	}
	vm.state.Map = geo.FitViewport(points, center, vm.deps.MapSize)

	if noResults {
		log.Info("filtered search found nothing", nil)
		return vm.snapshotLocked(), err
	}

	vm.state.Facilities = facilities
	vm.state.SelectedID = ""
	log.Info("filtered search applied", map[string]interface{}{
		"facilities": len(facilities),
		"zoom":       vm.state.Map.Zoom,
		"bounds":     vm.state.Map.Bounds.String(),
	})
	return vm.snapshotLocked(), nil
}

// SelectFacility marks the facility with id as selected. Unknown ids are
// ignored.
func (vm *ViewModel) SelectFacility(id string) State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, f := range vm.state.Facilities {
		if f.ID == id {
			vm.state.SelectedID = id
			break
		}
	}
	return vm.snapshotLocked()
}

func (vm *ViewModel) ClearSelection() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.state.SelectedID = ""
	return vm.snapshotLocked()
}

func (vm *ViewModel) nextTicketLocked() uint64 {
	vm.state.Generation++
	return vm.state.Generation
}
