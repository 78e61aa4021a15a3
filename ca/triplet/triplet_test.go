package triplet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cbm-reco/catrack/ca/pars"
)

func baseIteration() *pars.Iteration {
	return &pars.Iteration{
		MaxStationGap:   0,
		TripletLinkChi2: 10,
	}
}

func TestLinkNeighboursAssignsLevelsAlongChain(t *testing.T) {
	// Three chained triplets on stations 0,1,2 (sL=0,1,2 respectively);
	// station 2's triplet is a leaf (Level 0), station 1's triplet links
	// to it (Level 1), station 0's triplet links to station 1's (Level 2).
	// Ctx/Cty must be positive (same as a real fitted triplet) so the
	// slope-continuity gate in momentumContinuous doesn't divide by a
	// zero variance sum and reject every pair.
	triplets := []Triplet{
		{HitL: 0, HitM: 1, HitR: 2, StL: 0, StM: 1, StR: 2, Ctx: 0.01, Cty: 0.01}, // station-0 triplet, index 0
		{HitL: 1, HitM: 2, HitR: 3, StL: 1, StM: 2, StR: 3, Ctx: 0.01, Cty: 0.01}, // station-1 triplet, index 1
		{HitL: 2, HitM: 3, HitR: 4, StL: 2, StM: 3, StR: 4, Ctx: 0.01, Cty: 0.01}, // station-2 triplet, index 2 (leaf)
	}
	// stationFirst/stationCount are sized over every station index that
	// may be probed as a neighbour target (sL+1+gap), including the
	// empty sentinel stations past the last real triplet-bearing one
	// (mirroring how ca/finder.Window sizes these arrays to
	// NActiveStations/NActiveStations+1, not just the triplet-bearing
	// range).
	stationFirst := []int32{0, 1, 2, 3, 3, 3}
	stationCount := []int32{1, 1, 1, 0, 0}
	var neighbourIdx []int32
	iter := baseIteration()

	// Process stations in decreasing order, as TrackFinderWindow does.
	LinkNeighbours(triplets, stationFirst, stationCount, 2, iter, &neighbourIdx)
	LinkNeighbours(triplets, stationFirst, stationCount, 1, iter, &neighbourIdx)
	LinkNeighbours(triplets, stationFirst, stationCount, 0, iter, &neighbourIdx)

	assert.Equal(t, int32(0), triplets[2].Level)
	assert.Equal(t, int32(1), triplets[1].Level)
	assert.Equal(t, int32(2), triplets[0].Level)

	assert.Equal(t, int32(1), triplets[1].NNeighbours)
	assert.Equal(t, int32(2), neighbourIdx[triplets[1].FirstNeighbour])
	assert.Equal(t, int32(1), triplets[0].NNeighbours)
	assert.Equal(t, int32(1), neighbourIdx[triplets[0].FirstNeighbour])
}

func TestLinkNeighboursRejectsNonMatchingHits(t *testing.T) {
	triplets := []Triplet{
		{HitL: 0, HitM: 1, HitR: 2, StL: 0, StM: 1, StR: 2},
		{HitL: 9, HitM: 9, HitR: 9, StL: 1, StM: 2, StR: 3}, // no shared hits
	}
	stationFirst := []int32{0, 1, 2, 2, 2}
	stationCount := []int32{1, 1, 0, 0}
	var neighbourIdx []int32
	iter := baseIteration()

	LinkNeighbours(triplets, stationFirst, stationCount, 1, iter, &neighbourIdx)
	LinkNeighbours(triplets, stationFirst, stationCount, 0, iter, &neighbourIdx)

	assert.Equal(t, int32(0), triplets[0].NNeighbours)
	assert.Equal(t, int32(0), triplets[0].Level)
}

func TestLinkNeighboursGatesOnMomentum(t *testing.T) {
	triplets := []Triplet{
		{HitL: 0, HitM: 1, HitR: 2, StL: 0, StM: 1, StR: 2, IsMomentumFitted: true, Qp: 0, Cqp: 0.01},
		{HitL: 1, HitM: 2, HitR: 3, StL: 1, StM: 2, StR: 3, IsMomentumFitted: true, Qp: 10, Cqp: 0.01},
	}
	stationFirst := []int32{0, 1, 2, 2, 2}
	stationCount := []int32{1, 1, 0, 0}
	var neighbourIdx []int32
	iter := baseIteration()

	LinkNeighbours(triplets, stationFirst, stationCount, 1, iter, &neighbourIdx)
	LinkNeighbours(triplets, stationFirst, stationCount, 0, iter, &neighbourIdx)

	assert.Equal(t, int32(0), triplets[0].NNeighbours, "large Qp mismatch must fail the momentum-continuity gate")
}
