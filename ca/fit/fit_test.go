package fit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/track"
	"github.com/cbm-reco/catrack/ca/window"
)

func straightLineParameters() *pars.Parameters {
	return &pars.Parameters{
		Stations: []pars.Station{
			{Z: 10, DetectorID: -1},
			{Z: 20, DetectorID: -1},
			{Z: 30, DetectorID: -1},
		},
		NActiveStations: 3,
		TargetX:         0,
		TargetY:         0,
		TargetZ:         0,
		TargetSigmaX:    0.05,
		TargetSigmaY:    0.05,
	}
}

func fitHit(id, station int32, x, y, z float64) pars.Hit {
	return pars.Hit{
		ID: id, Station: station, X: x, Y: y, Z: z,
		DX2: 1e-4, DY2: 1e-4, RangeX: 0.5, RangeY: 0.5, DT2: 1,
		FrontKey: id * 2, BackKey: id*2 + 1,
	}
}

func TestFitTracksProducesVertexNearOriginForStraightTrack(t *testing.T) {
	p := straightLineParameters()
	st := window.New(p, 16)
	st.Hits = []pars.Hit{
		fitHit(0, 0, 1, 1, 10),
		fitHit(1, 1, 2, 2, 20),
		fitHit(2, 2, 3, 3, 30),
	}
	st.RecoHitIndices = []int32{0, 1, 2}
	st.RecoTracks = []track.Track{{NHits: 3}}

	f := New(p)
	f.FitTracks(st)

	tr := st.RecoTracks[0]
	require.Equal(t, 0, tr.FirstStation)
	require.Equal(t, 2, tr.LastStation)

	assert.InDelta(t, 0, tr.PV.X, 0.2)
	assert.InDelta(t, 0, tr.PV.Y, 0.2)
	assert.InDelta(t, 1, tr.First.X, 0.2)
	assert.InDelta(t, 1, tr.First.Y, 0.2)
	assert.InDelta(t, 3, tr.Last.X, 0.2)
	assert.InDelta(t, 3, tr.Last.Y, 0.2)
}

func TestFitTracksSkipsEmptyTracks(t *testing.T) {
	p := straightLineParameters()
	st := window.New(p, 16)
	st.Hits = []pars.Hit{fitHit(0, 0, 1, 1, 10)}
	st.RecoHitIndices = nil
	st.RecoTracks = []track.Track{{NHits: 0}}

	f := New(p)
	assert.NotPanics(t, func() { f.FitTracks(st) })
	assert.Equal(t, 0, st.RecoTracks[0].FirstStation)
}

func TestFitTracksBatchesIndependently(t *testing.T) {
	// More tracks than a single SIMD batch width must still each get a
	// fit, with offsets correctly accumulated across batch boundaries.
	p := straightLineParameters()
	st := window.New(p, 64)
	hits := make([]pars.Hit, 0, 30)
	indices := make([]int32, 0, 30)
	tracks := make([]track.Track, 0, 10)
	idx := int32(0)
	for tnum := 0; tnum < 10; tnum++ {
		base := float64(tnum)
		hits = append(hits,
			fitHit(idx, 0, 1+base, 1+base, 10),
			fitHit(idx+1, 1, 2+base, 2+base, 20),
			fitHit(idx+2, 2, 3+base, 3+base, 30),
		)
		indices = append(indices, idx, idx+1, idx+2)
		idx += 3
		tracks = append(tracks, track.Track{NHits: 3})
	}
	st.Hits = hits
	st.RecoHitIndices = indices
	st.RecoTracks = tracks

	f := New(p)
	require.NotPanics(t, func() { f.FitTracks(st) })

	for i, tr := range st.RecoTracks {
		base := float64(i)
		assert.InDelta(t, 1+base, tr.First.X, 0.3, "track %d", i)
		assert.False(t, math.IsNaN(tr.PV.X), "track %d PV.X is NaN", i)
	}
}
