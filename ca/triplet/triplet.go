// Package triplet implements the cellular-automaton seed builder
// (spec.md §4.3): TripletConstructor turns one left hit plus a station
// triple (sL,sM,sR) into a set of 3-hit Triplets under the vectorised
// (here: scalar-over-candidates) Kalman track model of ca/kf.
package triplet

import "github.com/cbm-reco/catrack/ca/pars"

// Triplet is a 3-hit seed on stations sL<sM<sR (spec.md §3).
type Triplet struct {
	HitL, HitM, HitR int32 // window-local hit indices
	StL, StM, StR    int32

	Qp, Cqp float64
	Tx, Ctx float64
	Ty, Cty float64

	Chi2             float64
	IsMomentumFitted bool

	// FirstNeighbour/NNeighbours index into a side CSR array of triplet
	// indices (see LinkNeighbours) built by SearchNeighbours (spec.md
	// §4.4c). A triplet's matching neighbours are rarely contiguous in
	// the raw per-station triplet array once station gaps are allowed,
	// so the "compact neighbour descriptor" of spec.md §3 is realised
	// here as an index into a packed CSR buffer rather than a literal
	// sub-range of the triplet array itself.
	FirstNeighbour int32
	NNeighbours    int32

	// Level is the longest triplet-chain length reachable from this
	// triplet (0 for leaves), spec.md §3/§8 property 3.
	Level int32
}

// neighbourOf reports whether u follows t in a chain: u starts where t
// ends (spec.md §4.4c "U.mHit==T.rHit, U.lHit==T.mHit, stations match").
func neighbourOf(t, u *Triplet) bool {
	return u.HitL == t.HitM && u.HitM == t.HitR && u.StL == t.StM && u.StM == t.StR
}

// momentumContinuous applies the link gate of spec.md §4.4c: if both
// triplets carry a fitted momentum, gate on (deltaQp)^2; otherwise gate
// on both slope pairs.
func momentumContinuous(t, u *Triplet, linkChi2 float64) (ok bool, dchi2 float64) {
	if t.IsMomentumFitted && u.IsMomentumFitted {
		d := t.Qp - u.Qp
		sum := t.Cqp + u.Cqp
		if sum <= 0 {
			return false, 0
		}
		dchi2 = d * d / sum
		return d*d <= linkChi2*sum, dchi2
	}
	dtx := t.Tx - u.Tx
	sumTx := t.Ctx + u.Ctx
	dty := t.Ty - u.Ty
	sumTy := t.Cty + u.Cty
	if sumTx <= 0 || sumTy <= 0 {
		return false, 0
	}
	okTx := dtx*dtx <= linkChi2*sumTx
	okTy := dty*dty <= linkChi2*sumTy
	dchi2 = dtx*dtx/sumTx + dty*dty/sumTy
	return okTx && okTy, dchi2
}

// LinkNeighbours implements SearchNeighbours for one station's triplet
// array against the candidate pool of triplets starting at stations
// [sL+1 .. sL+1+maxStationGap] (spec.md §4.4c). triplets is the full,
// per-station-concatenated triplet arena; stationFirst[s] gives the
// first index of station s's triplets within it and stationCount[s]
// their count. neighbourIdx is the shared CSR buffer of matching
// neighbour indices into triplets, appended to by every call; callers
// reset it once per iteration before processing stations in decreasing
// order, so that a triplet's candidate neighbours (on higher stations)
// already have their Level assigned.
func LinkNeighbours(triplets []Triplet, stationFirst, stationCount []int32, sL int, iter *pars.Iteration, neighbourIdx *[]int32) {
	first := stationFirst[sL]
	count := stationCount[sL]

	for i := first; i < first+count; i++ {
		t := &triplets[i]
		bestLevel := int32(-1)
		loFirst := int32(len(*neighbourIdx))
		nFound := int32(0)

		for gap := 0; gap <= iter.MaxStationGap; gap++ {
			us := sL + 1 + gap
			if us < 0 || us >= len(stationCount) {
				continue
			}
			uFirst := stationFirst[us]
			uCount := stationCount[us]
			for j := uFirst; j < uFirst+uCount; j++ {
				u := &triplets[j]
				if !neighbourOf(t, u) {
					continue
				}
				if ok, _ := momentumContinuous(t, u, iter.TripletLinkChi2); !ok {
					continue
				}
				*neighbourIdx = append(*neighbourIdx, j)
				nFound++
				if u.Level > bestLevel {
					bestLevel = u.Level
				}
			}
		}

		if nFound > 0 {
			t.FirstNeighbour = loFirst
			t.NNeighbours = nFound
			t.Level = bestLevel + 1
		} else {
			t.FirstNeighbour = 0
			t.NNeighbours = 0
			t.Level = 0
		}
	}
}
