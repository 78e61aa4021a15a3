package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbm-reco/catrack/ca/pars"
)

func straightTrackGeometry() []pars.Station {
	stations := make([]pars.Station, 5)
	for i := range stations {
		stations[i] = pars.Station{Z: float64(10 * (i + 1)), Xmax: 10, Ymax: 10, DetectorID: -1}
	}
	return stations
}

func looseDriverIteration() pars.Iteration {
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

func driverHit(id, station int32, x, y, z float64, front, back int32) pars.Hit {
	return pars.Hit{
		ID: id, Station: station, X: x, Y: y, Z: z, T: 0,
		DX2: 1e-4, DY2: 1e-4, RangeX: 0.5, RangeY: 0.5, RangeT: 10, DT2: 1,
		FrontKey: front, BackKey: back,
	}
}

func TestNewRejectsNonPositiveWindowConfig(t *testing.T) {
	p, err := pars.NewParameters(straightTrackGeometry(), []pars.Iteration{looseDriverIteration()}, 20)
	require.NoError(t, err)

	_, err = New(p, 20, 0, 50)
	assert.Error(t, err)

	_, err = New(p, 20, 50, 0)
	assert.Error(t, err)

	_, err = New(p, 20, -10, 50)
	assert.Error(t, err)
}

func TestProcessStreamEmptyRangeReturnsEmptyResult(t *testing.T) {
	p, err := pars.NewParameters(straightTrackGeometry(), []pars.Iteration{looseDriverIteration()}, 20)
	require.NoError(t, err)

	tf, err := New(p, 20, 100, 100)
	require.NoError(t, err)

	res := tf.ProcessStream(nil, 0, 0)
	assert.Nil(t, res.Tracks)
	assert.Nil(t, res.HitIndices)
}

// The same straight track with its station-2 hit missing: a one-station
// gap must bridge the hole, yielding a single four-hit track.
func TestProcessStreamBridgesMissingStationWithGap(t *testing.T) {
	geometry := straightTrackGeometry()
	iter := looseDriverIteration()
	iter.MaxStationGap = 1
	p, err := pars.NewParameters(geometry, []pars.Iteration{iter}, 20,
		pars.WithMaxDoublets(50), pars.WithMaxTripletsPerDoublet(10))
	require.NoError(t, err)

	hits := []pars.Hit{
		driverHit(0, 0, 1, 1, 10, 0, 1),
		driverHit(1, 1, 2, 2, 20, 2, 3),
		driverHit(2, 3, 4, 4, 40, 4, 5),
		driverHit(3, 4, 5, 5, 50, 6, 7),
	}

	tf, err := New(p, 20, 100, 100)
	require.NoError(t, err)

	res := tf.ProcessStream(hits, 0, int32(len(hits)))

	require.Len(t, res.Tracks, 1)
	assert.Equal(t, 4, res.Tracks[0].NHits)
	assert.ElementsMatch(t, []int32{0, 1, 2, 3}, res.HitIndices)
}

func TestProcessStreamFindsStraightFiveHitTrack(t *testing.T) {
	geometry := straightTrackGeometry()
	iter := looseDriverIteration()
	p, err := pars.NewParameters(geometry, []pars.Iteration{iter}, 20,
		pars.WithMaxDoublets(50), pars.WithMaxTripletsPerDoublet(10))
	require.NoError(t, err)

	hits := []pars.Hit{
		driverHit(0, 0, 1, 1, 10, 0, 1),
		driverHit(1, 1, 2, 2, 20, 2, 3),
		driverHit(2, 2, 3, 3, 30, 4, 5),
		driverHit(3, 3, 4, 4, 40, 6, 7),
		driverHit(4, 4, 5, 5, 50, 8, 9),
	}

	tf, err := New(p, 20, 100, 100)
	require.NoError(t, err)

	res := tf.ProcessStream(hits, 0, int32(len(hits)))

	require.Len(t, res.Tracks, 1)
	assert.Equal(t, 5, res.Tracks[0].NHits)
	assert.Equal(t, 0, res.Tracks[0].FirstStation)
	assert.Equal(t, 4, res.Tracks[0].LastStation)
	assert.ElementsMatch(t, []int32{0, 1, 2, 3, 4}, res.HitIndices)
}
