package extend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/window"
)

func fiveStationParameters() *pars.Parameters {
	stations := make([]pars.Station, 5)
	for i := range stations {
		stations[i] = pars.Station{Z: float64(10 * (i + 1)), Xmax: 10, Ymax: 10}
	}
	return &pars.Parameters{Stations: stations, NActiveStations: 5, TargetZ: 0}
}

func extHit(id, station int32, x, y float64, front, back int32) pars.Hit {
	return pars.Hit{
		ID: id, Station: station, X: x, Y: y, Z: float64(10 * (station + 1)),
		DX2: 1e-4, DY2: 1e-4, RangeX: 0.5, RangeY: 0.5, RangeT: 10, DT2: 1,
		FrontKey: front, BackKey: back,
	}
}

func looseExtendIteration() *pars.Iteration {
	return &pars.Iteration{
		PickGather:     9,
		ExtendMaxDZ:    5,
		TripletChi2Cut: 1e6,
	}
}

func TestExtendWalksBothDirectionsAlongStraightTrack(t *testing.T) {
	p := fiveStationParameters()
	st := window.New(p, 16)
	hits := []pars.Hit{
		extHit(0, 0, 1, 1, 0, 1),
		extHit(1, 1, 2, 2, 2, 3),
		extHit(2, 2, 3, 3, 4, 5),
		extHit(3, 3, 4, 4, 6, 7),
		extHit(4, 4, 5, 5, 8, 9),
	}
	st.ReadWindowData(hits, 0, 100)
	st.PrepareGrid()

	e := New(p)
	iter := looseExtendIteration()

	// Branch currently owns only the station-1 and station-2 hits.
	result := e.Extend(st, []int32{1, 2}, iter)

	require.Len(t, result, 5)
	assert.Equal(t, int32(0), st.Hits[result[0]].Station)
	assert.Equal(t, int32(1), st.Hits[result[1]].Station)
	assert.Equal(t, int32(2), st.Hits[result[2]].Station)
	assert.Equal(t, int32(3), st.Hits[result[3]].Station)
	assert.Equal(t, int32(4), st.Hits[result[4]].Station)
}

func TestExtendStopsAtFirstStationWithNoMatch(t *testing.T) {
	p := fiveStationParameters()
	st := window.New(p, 16)
	// Only stations 0,1,2 carry hits; stations 3 and 4 are empty, so the
	// forward sweep from station 2 must stop immediately.
	hits := []pars.Hit{
		extHit(0, 0, 1, 1, 0, 1),
		extHit(1, 1, 2, 2, 2, 3),
		extHit(2, 2, 3, 3, 4, 5),
	}
	st.ReadWindowData(hits, 0, 100)
	st.PrepareGrid()

	e := New(p)
	iter := looseExtendIteration()

	result := e.Extend(st, []int32{1, 2}, iter)

	require.Len(t, result, 3)
	assert.Equal(t, int32(0), st.Hits[result[0]].Station)
	assert.Equal(t, int32(1), st.Hits[result[1]].Station)
	assert.Equal(t, int32(2), st.Hits[result[2]].Station)
}

func TestExtendDoesNotMutateInputSlice(t *testing.T) {
	p := fiveStationParameters()
	st := window.New(p, 16)
	hits := []pars.Hit{
		extHit(0, 0, 1, 1, 0, 1),
		extHit(1, 1, 2, 2, 2, 3),
	}
	st.ReadWindowData(hits, 0, 100)
	st.PrepareGrid()

	e := New(p)
	iter := looseExtendIteration()

	input := []int32{0, 1}
	_ = e.Extend(st, input, iter)

	assert.Equal(t, []int32{0, 1}, input)
}

func TestExtendReturnsInputUnchangedWhenEmpty(t *testing.T) {
	p := fiveStationParameters()
	st := window.New(p, 16)
	e := New(p)
	iter := looseExtendIteration()

	result := e.Extend(st, nil, iter)
	assert.Nil(t, result)
}
