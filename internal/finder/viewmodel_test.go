package finder

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/geo"
	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/places"
)

type resolveFunc func(ctx context.Context, zip string) (geo.Coordinate, error)

func (f resolveFunc) Resolve(ctx context.Context, zip string) (geo.Coordinate, error) {
	return f(ctx, zip)
}

type searchFunc func(ctx context.Context, center geo.Coordinate, filter places.SearchFilter) ([]places.Facility, error)

func (f searchFunc) Search(ctx context.Context, center geo.Coordinate, filter places.SearchFilter) ([]places.Facility, error) {
	return f(ctx, center, filter)
}

var (
	sanFrancisco = geo.Coordinate{Lat: 37.7749, Lng: -122.4194}
	beverlyHills = geo.Coordinate{Lat: 34.0901, Lng: -118.4065}
)

func facility(id string, lat, lng float64) places.Facility {
	return places.Facility{
		ID:         id,
		Name:       "Clinic " + id,
		Location:   geo.Coordinate{Lat: lat, Lng: lng},
		Categories: []string{"doctor"},
	}
}

func fixedResolver(c geo.Coordinate) resolveFunc {
	return func(context.Context, string) (geo.Coordinate, error) { return c, nil }
}

func fixedSearch(fs ...places.Facility) searchFunc {
	return func(context.Context, geo.Coordinate, places.SearchFilter) ([]places.Facility, error) {
		return fs, nil
	}
}

func newTestViewModel(t *testing.T, deps Deps) *ViewModel {
	if deps.MapSize == (geo.Size{}) {
		deps.MapSize = geo.Size{Width: 640, Height: 400}
	}
	if deps.DefaultCenter == (geo.Coordinate{}) {
		deps.DefaultCenter = sanFrancisco
	}
	return NewViewModel(deps, logger.NewTestLogger(t))
}

func ptr(s string) *string { return &s }

func TestNewViewModel_Defaults(t *testing.T) {
	vm := newTestViewModel(t, Deps{})
	s := vm.Snapshot()

	assert.Equal(t, sanFrancisco, s.Center)
	assert.Equal(t, geo.DefaultZoom, s.Map.Zoom)
	assert.Empty(t, s.Facilities)
	assert.Equal(t, places.SearchFilter{}, s.Filter)
}

func TestSetFilter(t *testing.T) {
	vm := newTestViewModel(t, Deps{})

	s := vm.SetFilter(FilterEdit{Specialist: ptr("cardiologist"), Distance: ptr("10")})
	assert.Equal(t, "Cardiologist", s.Filter.Specialist)
	assert.Equal(t, 10.0, s.Filter.RadiusMiles)

	// partial edit keeps the other field
	s = vm.SetFilter(FilterEdit{Distance: ptr("5")})
	assert.Equal(t, "Cardiologist", s.Filter.Specialist)
	assert.Equal(t, 5.0, s.Filter.RadiusMiles)

	s = vm.SetFilter(FilterEdit{Specialist: ptr(""), Distance: ptr("abc")})
	assert.Equal(t, "", s.Filter.Specialist)
	assert.Equal(t, 0.0, s.Filter.RadiusMiles)
}

func TestParseDistance(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"10", 10},
		{" 20 ", 20},
		{"2.5", 2.5},
		{"abc", 0},
		{"-5", 0},
		{"NaN", 0},
		{"Inf", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseDistance(tt.in)
			assert.False(t, math.IsNaN(got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalSpecialist(t *testing.T) {
	assert.Equal(t, "Orthopedic Surgeon", CanonicalSpecialist("  orthopedic SURGEON "))
	assert.Equal(t, "Dentist", CanonicalSpecialist("DENTIST"))
	assert.Equal(t, "pediatrician", CanonicalSpecialist(" pediatrician"))
	assert.Equal(t, "", CanonicalSpecialist("   "))
}

func TestSubmitZipSearch_Success(t *testing.T) {
	var gotZip string
	var gotCenter geo.Coordinate
	var gotFilter places.SearchFilter
	vm := newTestViewModel(t, Deps{
		Resolver: resolveFunc(func(_ context.Context, zip string) (geo.Coordinate, error) {
			gotZip = zip
			return beverlyHills, nil
		}),
		ZipSearcher: searchFunc(func(_ context.Context, c geo.Coordinate, f places.SearchFilter) ([]places.Facility, error) {
			gotCenter, gotFilter = c, f
			return []places.Facility{facility("a", 34.09, -118.40)}, nil
		}),
	})
	vm.SetFilter(FilterEdit{Specialist: ptr("Cardiologist"), Distance: ptr("10")})

	s, err := vm.SubmitZipSearch(context.Background(), "90210")
	require.NoError(t, err)

	assert.Equal(t, "90210", gotZip)
	assert.Equal(t, beverlyHills, gotCenter)
	assert.Equal(t, places.SearchFilter{Specialist: "Cardiologist", RadiusMiles: 10}, gotFilter)

	assert.Equal(t, beverlyHills, s.Center)
	assert.Equal(t, beverlyHills, s.Map.Center)
	assert.Equal(t, 14, s.Map.Zoom)
	require.Len(t, s.Facilities, 1)
	assert.Equal(t, "a", s.Facilities[0].ID)
}

func TestSubmitZipSearch_BlankIsNoop(t *testing.T) {
	called := false
	vm := newTestViewModel(t, Deps{
		Resolver: resolveFunc(func(context.Context, string) (geo.Coordinate, error) {
			called = true
			return geo.Coordinate{}, nil
		}),
	})
	before := vm.Snapshot()

	s, err := vm.SubmitZipSearch(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, before, s)
}

func TestSubmitZipSearch_NotFoundLeavesStateUnchanged(t *testing.T) {
	vm := newTestViewModel(t, Deps{
		Resolver: resolveFunc(func(context.Context, string) (geo.Coordinate, error) {
			return geo.Coordinate{}, apperrors.NewNotFoundError("00000")
		}),
		ZipSearcher: fixedSearch(facility("a", 1, 1)),
	})
	vm.Restore(State{
		Center:     sanFrancisco,
		Map:        geo.Viewport{Center: sanFrancisco, Zoom: 12},
		Facilities: []places.Facility{facility("old", 37.7, -122.4)},
		SelectedID: "old",
	})
	before := vm.Snapshot()

	_, err := vm.SubmitZipSearch(context.Background(), "00000")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	assert.Equal(t, "Invalid zip code", apperrors.Notice(apperrors.CodeOf(err)))

	after := vm.Snapshot()
	after.Generation = before.Generation
	assert.Equal(t, before, after)
}

func TestSubmitZipSearch_SearchFailureIsAtomic(t *testing.T) {
	vm := newTestViewModel(t, Deps{
		Resolver: fixedResolver(beverlyHills),
		ZipSearcher: searchFunc(func(context.Context, geo.Coordinate, places.SearchFilter) ([]places.Facility, error) {
			return nil, apperrors.NewTransportError("places", errors.New("connection reset"))
		}),
	})

	s, err := vm.SubmitZipSearch(context.Background(), "90210")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeTransport))
	assert.Equal(t, sanFrancisco, s.Center)
}

func TestSubmitZipSearch_ClearsSelection(t *testing.T) {
	vm := newTestViewModel(t, Deps{
		Resolver:    fixedResolver(beverlyHills),
		ZipSearcher: fixedSearch(facility("b", 34.1, -118.4)),
	})
	vm.Restore(State{Center: sanFrancisco, Facilities: []places.Facility{facility("a", 1, 1)}, SelectedID: "a"})

	s, err := vm.SubmitZipSearch(context.Background(), "90210")
	require.NoError(t, err)
	assert.Empty(t, s.SelectedID)
}

func TestApplyFilters_FitsViewport(t *testing.T) {
	results := []places.Facility{
		facility("a", 37.80, -122.45),
		facility("b", 37.70, -122.38),
	}
	var gotCenter geo.Coordinate
	vm := newTestViewModel(t, Deps{
		FilterSearcher: searchFunc(func(_ context.Context, c geo.Coordinate, _ places.SearchFilter) ([]places.Facility, error) {
			gotCenter = c
			return results, nil
		}),
	})

	s, err := vm.ApplyFilters(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sanFrancisco, gotCenter)
	assert.Equal(t, results, s.Facilities)
	// the search center is not moved by the fit
	assert.Equal(t, sanFrancisco, s.Center)

	want := geo.FitViewport([]geo.Coordinate{results[0].Location, results[1].Location}, sanFrancisco, geo.Size{Width: 640, Height: 400})
	assert.Equal(t, want, s.Map)
	for _, f := range results {
		assert.True(t, s.Map.Bounds.Contains(f.Location))
	}
	assert.True(t, s.Map.Bounds.Contains(sanFrancisco))
}

func TestApplyFilters_NoResultsKeepsList(t *testing.T) {
	vm := newTestViewModel(t, Deps{
		FilterSearcher: searchFunc(func(context.Context, geo.Coordinate, places.SearchFilter) ([]places.Facility, error) {
			return nil, apperrors.NewNoResultsError("keyword: Dentist")
		}),
	})
	existing := []places.Facility{facility("a", 37.78, -122.41)}
	vm.Restore(State{Center: sanFrancisco, Map: geo.Viewport{Center: sanFrancisco, Zoom: 9}, Facilities: existing})

	s, err := vm.ApplyFilters(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNoResults))
	assert.Equal(t, "No facilities found", apperrors.Notice(apperrors.CodeOf(err)))

	assert.Equal(t, existing, s.Facilities)
	// map refitted around the center alone
	assert.Equal(t, sanFrancisco, s.Map.Center)
	assert.Equal(t, geo.DefaultZoom, s.Map.Zoom)
}

func TestApplyFilters_TransportErrorLeavesState(t *testing.T) {
	vm := newTestViewModel(t, Deps{
		FilterSearcher: searchFunc(func(context.Context, geo.Coordinate, places.SearchFilter) ([]places.Facility, error) {
			return nil, apperrors.NewTransportError("places", errors.New("timeout"))
		}),
	})
	vm.Restore(State{Center: sanFrancisco, Map: geo.Viewport{Center: sanFrancisco, Zoom: 9}})

	s, err := vm.ApplyFilters(context.Background())
	require.Error(t, err)
	assert.Equal(t, 9, s.Map.Zoom)
}

func TestSelectFacility(t *testing.T) {
	vm := newTestViewModel(t, Deps{})
	vm.Restore(State{Center: sanFrancisco, Facilities: []places.Facility{facility("a", 1, 1), facility("b", 2, 2)}})

	s := vm.SelectFacility("b")
	assert.Equal(t, "b", s.SelectedID)
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "Clinic b", sel.Name)

	// unknown id is a no-op
	s = vm.SelectFacility("zzz")
	assert.Equal(t, "b", s.SelectedID)

	s = vm.ClearSelection()
	assert.Empty(t, s.SelectedID)
	_, ok = s.Selected()
	assert.False(t, ok)
}

func TestOutOfOrderResponsesKeepNewest(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	vm := newTestViewModel(t, Deps{
		Resolver:    fixedResolver(beverlyHills),
		ZipSearcher: fixedSearch(facility("new", 34.09, -118.40)),
		FilterSearcher: searchFunc(func(context.Context, geo.Coordinate, places.SearchFilter) ([]places.Facility, error) {
			close(entered)
			<-release
			return []places.Facility{facility("stale", 37.77, -122.41)}, nil
		}),
	})

	type result struct {
		state State
		err   error
	}
	slow := make(chan result, 1)
	go func() {
		s, err := vm.ApplyFilters(context.Background())
		slow <- result{s, err}
	}()
	<-entered

	s, err := vm.SubmitZipSearch(context.Background(), "90210")
	require.NoError(t, err)
	require.Equal(t, "new", s.Facilities[0].ID)

	close(release)
	r := <-slow
	assert.ErrorIs(t, r.err, ErrSuperseded)

	final := vm.Snapshot()
	require.Len(t, final.Facilities, 1)
	assert.Equal(t, "new", final.Facilities[0].ID)
	assert.Equal(t, beverlyHills, final.Center)
	assert.Equal(t, 14, final.Map.Zoom)
}
