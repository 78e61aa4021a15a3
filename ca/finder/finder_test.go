package finder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/window"
)

func fiveStationGeometry() []pars.Station {
	stations := make([]pars.Station, 5)
	for i := range stations {
		stations[i] = pars.Station{Z: float64(10 * (i + 1)), Xmax: 10, Ymax: 10, DetectorID: -1}
	}
	return stations
}

func looseFinderIteration() pars.Iteration {
	return pars.Iteration{
		FirstStationIndex:   0,
		MaxStationGap:       0,
		Primary:             true,
		DoubletChi2Cut:      1e6,
		TripletChi2Cut:      1e6,
		TripletFinalChi2Cut: 1e6,
		TripletLinkChi2:     1e6,
		TrackChi2Cut:        1e6,
		MaxSlope:            10,
		MinNHits:            3,
		MinNHitsStation0:    3,
		TargetSigmaX:        1,
		TargetSigmaY:        1,
		Pick:                9,
		MaxDZ:               5,
		PickGather:          9,
		ExtendMaxDZ:         5,
	}
}

func finderHit(id, station int32, x, y float64, front, back int32) pars.Hit {
	return pars.Hit{
		ID: id, Station: station, X: x, Y: y, Z: float64(10 * (station + 1)), T: 0,
		DX2: 1e-4, DY2: 1e-4, RangeX: 0.5, RangeY: 0.5, RangeT: 10, DT2: 1,
		FrontKey: front, BackKey: back,
	}
}

func newTestWindow(t *testing.T, iterations []pars.Iteration, nHitKeys int) (*Window, *window.State) {
	t.Helper()
	p, err := pars.NewParameters(fiveStationGeometry(), iterations, nHitKeys,
		pars.WithMaxDoublets(50), pars.WithMaxTripletsPerDoublet(10))
	require.NoError(t, err)
	return New(p, nHitKeys), window.New(p, nHitKeys)
}

func TestCaTrackFinderSliceZeroHits(t *testing.T) {
	w, st := newTestWindow(t, []pars.Iteration{looseFinderIteration()}, 8)

	st.ReadWindowData(nil, 0, 100)
	w.CaTrackFinderSlice(st)

	assert.Empty(t, st.RecoTracks)
	assert.Empty(t, st.RecoHitIndices)
}

// Two straight primary tracks through all five stations, sharing no
// keys: both must survive intact, with every key of both consumed.
func TestCaTrackFinderSliceFindsTwoDisjointTracks(t *testing.T) {
	w, st := newTestWindow(t, []pars.Iteration{looseFinderIteration()}, 20)

	var all []pars.Hit
	for s := int32(0); s < 5; s++ {
		all = append(all,
			finderHit(2*s, s, float64(s+1), float64(s+1), 2*s, 2*s+1),
			finderHit(2*s+1, s, -float64(s+1), -float64(s+1), 10+2*s, 11+2*s),
		)
	}

	st.ReadWindowData(all, 0, 100)
	w.CaTrackFinderSlice(st)

	require.Len(t, st.RecoTracks, 2)
	assert.Equal(t, 5, st.RecoTracks[0].NHits)
	assert.Equal(t, 5, st.RecoTracks[1].NHits)
	require.Len(t, st.RecoHitIndices, 10)

	// Every hit appears in exactly one track, and every key is consumed.
	seen := map[int32]bool{}
	for _, h := range st.RecoHitIndices {
		assert.False(t, seen[h], "hit owned by two tracks")
		seen[h] = true
	}
	for k := 0; k < 20; k++ {
		assert.Equal(t, uint8(1), st.HitKeyUsed[k], "key %d not consumed", k)
	}
}

// Two overlapping tracks whose middle-station hits share a front key:
// the competition must keep exactly one (the cleaner fit) and leave the
// loser's remaining keys free.
func TestCompetitionResolvesSharedKeyToOneTrack(t *testing.T) {
	w, st := newTestWindow(t, []pars.Iteration{looseFinderIteration()}, 20)

	var all []pars.Hit
	for s := int32(0); s < 5; s++ {
		all = append(all, finderHit(2*s, s, float64(s+1), float64(s+1), 2*s, 2*s+1))
		b := finderHit(2*s+1, s, -float64(s+1), -float64(s+1), 10+2*s, 11+2*s)
		if s == 2 {
			// Same strip as the first track's middle hit, slightly off
			// its own line so the competition has a strict ordering.
			b.FrontKey = 4
			b.X += 0.05
		}
		all = append(all, b)
	}

	st.ReadWindowData(all, 0, 100)
	w.CaTrackFinderSlice(st)

	require.Len(t, st.RecoTracks, 1)
	assert.Equal(t, 5, st.RecoTracks[0].NHits)

	// Winner's keys consumed, the loser's own keys back in the free pool.
	for k := 0; k < 10; k++ {
		assert.Equal(t, uint8(1), st.HitKeyUsed[k], "winner key %d not consumed", k)
	}
	for _, k := range []int{10, 11, 12, 13, 15, 16, 17, 18, 19} {
		assert.Equal(t, uint8(0), st.HitKeyUsed[k], "loser key %d must stay free", k)
	}
}

// A track consumed by the first iteration must not be rediscovered by a
// second iteration over the same window.
func TestSecondIterationDoesNotRediscoverConsumedTrack(t *testing.T) {
	iters := []pars.Iteration{looseFinderIteration(), looseFinderIteration()}
	w, st := newTestWindow(t, iters, 10)

	var all []pars.Hit
	for s := int32(0); s < 5; s++ {
		all = append(all, finderHit(s, s, float64(s+1), float64(s+1), 2*s, 2*s+1))
	}

	st.ReadWindowData(all, 0, 100)
	w.CaTrackFinderSlice(st)

	require.Len(t, st.RecoTracks, 1)
	assert.Equal(t, 5, st.RecoTracks[0].NHits)
	assert.Len(t, st.RecoHitIndices, 5)
}
