package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbm-reco/catrack/ca/kf"
	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/track"
	"github.com/cbm-reco/catrack/ca/window"
)

func sixStationParameters() *pars.Parameters {
	stations := make([]pars.Station, 6)
	for i := range stations {
		stations[i] = pars.Station{Z: float64(10 * (i + 1))}
	}
	return &pars.Parameters{Stations: stations, NActiveStations: 6}
}

func straightState(x, y, z, tx, ty, qp float64) kf.State {
	s := kf.State{X: x, Y: y, Tx: tx, Ty: ty, Qp: qp}
	s.C[kf.IX][kf.IX] = 1e-2
	s.C[kf.IY][kf.IY] = 1e-2
	s.C[kf.ITx][kf.ITx] = 1e-2
	s.C[kf.ITy][kf.ITy] = 1e-2
	s.C[kf.IQp][kf.IQp] = 1e-2
	s.C[kf.IT][kf.IT] = 1.0
	return s
}

func TestMergeClonesFusesKinematicallyCompatiblePair(t *testing.T) {
	p := sixStationParameters()
	st := window.New(p, 8)
	st.RecoHitIndices = []int32{0, 1, 2, 3, 4, 5}

	upstream := track.Track{
		NHits:        2,
		First:        straightState(1, 1, 10, 0.1, 0.1, 0),
		Last:         straightState(2, 2, 20, 0.1, 0.1, 0),
		FirstStation: 0, LastStation: 1,
		LastHitTime: 5,
	}
	downstream := track.Track{
		NHits:        2,
		First:        straightState(3, 3, 30, 0.1, 0.1, 0),
		Last:         straightState(4, 4, 40, 0.1, 0.1, 0),
		FirstStation: 2, LastStation: 3,
		LastHitTime: 6,
	}
	unrelated := track.Track{
		NHits:        2,
		First:        straightState(100, 100, 30, -0.1, -0.1, 5),
		Last:         straightState(101, 101, 40, -0.1, -0.1, 5),
		FirstStation: 2, LastStation: 3,
		LastHitTime: 6,
	}
	st.RecoTracks = []track.Track{upstream, downstream, unrelated}

	m := New(p)
	m.MergeClones(st)

	require.Len(t, st.RecoTracks, 2)

	var merged, standalone *track.Track
	for i := range st.RecoTracks {
		tr := &st.RecoTracks[i]
		if tr.NHits == 4 {
			merged = tr
		} else {
			standalone = tr
		}
	}
	require.NotNil(t, merged, "upstream/downstream pair should have merged into one 4-hit track")
	require.NotNil(t, standalone)

	assert.Equal(t, 0, merged.FirstStation)
	assert.Equal(t, 3, merged.LastStation)
	assert.Equal(t, 2, standalone.FirstStation)
	assert.Equal(t, 3, standalone.LastStation)
	assert.Len(t, st.RecoHitIndices, 6)
}

func TestMergeClonesNoOpBelowTwoTracks(t *testing.T) {
	p := sixStationParameters()
	st := window.New(p, 8)
	st.RecoHitIndices = []int32{0}
	st.RecoTracks = []track.Track{{NHits: 1, FirstStation: 0, LastStation: 0}}

	m := New(p)
	m.MergeClones(st)

	assert.Len(t, st.RecoTracks, 1)
}

func TestMergeClonesSkipsTracksLongerThanStationBudget(t *testing.T) {
	p := sixStationParameters() // nMax = NActiveStations - 3 = 3
	st := window.New(p, 8)
	st.RecoHitIndices = []int32{0, 1, 2, 3, 4, 5, 6, 7}

	long := track.Track{
		NHits:        4,
		First:        straightState(1, 1, 10, 0.1, 0.1, 0),
		Last:         straightState(2, 2, 40, 0.1, 0.1, 0),
		FirstStation: 0, LastStation: 3,
		LastHitTime: 5,
	}
	short := track.Track{
		NHits:        2,
		First:        straightState(3, 3, 50, 0.1, 0.1, 0),
		Last:         straightState(4, 4, 60, 0.1, 0.1, 0),
		FirstStation: 4, LastStation: 5,
		LastHitTime: 6,
	}
	st.RecoTracks = []track.Track{long, short}

	m := New(p)
	m.MergeClones(st)

	// long exceeds nMax and must never be proposed as a merge candidate.
	require.Len(t, st.RecoTracks, 2)
}
