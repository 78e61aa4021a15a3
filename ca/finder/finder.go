// Package finder implements TrackFinderWindow (spec.md §4.4): the
// per-window orchestration that builds triplets, links neighbours,
// enumerates branch candidates, runs the winner-take-all competition,
// and selects the surviving tracks of one time-window.
package finder

import (
	"github.com/cbm-reco/catrack/ca/branch"
	"github.com/cbm-reco/catrack/ca/extend"
	"github.com/cbm-reco/catrack/ca/kf"
	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/triplet"
	"github.com/cbm-reco/catrack/ca/window"
)

// Window is the reusable, per-thread TrackFinderWindow driver. Its
// scratch arenas (triplets, neighbour CSR buffer, candidate pool) are
// allocated once and reused across windows (spec.md §5).
type Window struct {
	p *pars.Parameters

	triplets     []triplet.Triplet
	stationFirst []int32
	stationCount []int32
	neighbourIdx []int32

	pool     *branch.Pool
	extender *extend.Extender
}

// New returns a Window bound to the shared Parameters, sized for
// nHitKeys.
func New(p *pars.Parameters, nHitKeys int) *Window {
	return &Window{
		p:            p,
		stationFirst: make([]int32, p.NActiveStations+1),
		stationCount: make([]int32, p.NActiveStations),
		pool:         branch.NewPool(nHitKeys),
		extender:     extend.New(p),
	}
}

// CaTrackFinderSlice runs the full per-window pipeline of spec.md §4.4
// against an already ReadWindowData'd state: PrepareGrid, then each
// configured Iteration in order.
func (w *Window) CaTrackFinderSlice(st *window.State) {
	st.PrepareGrid()

	for it := range w.p.Iterations {
		iter := &w.p.Iterations[it]
		if it > 0 {
			st.RebuildGrids()
		}
		w.runIteration(st, iter)
	}
}

// runIteration implements one pass of spec.md §4.4 step 3.
func (w *Window) runIteration(st *window.State, iter *pars.Iteration) {
	w.constructTriplets(st, iter)
	w.searchNeighbours(iter)

	nActive := w.p.NActiveStations
	minLevel := min(iter.MinNHits, iter.MinNHitsStation0) - 3
	if minLevel < 0 {
		minLevel = 0
	}
	for firstLevel := nActive - 3; firstLevel >= minLevel; firstLevel-- {
		w.createTracks(st, iter, int32(firstLevel))
	}

	// hitKeyUsed is updated incrementally by selectTracks as each
	// candidate is promoted; nothing further to propagate here beyond
	// what SelectTracks already wrote (spec.md §4.4 step 3e).
}

// constructTriplets implements spec.md §4.4b: for every left hit on
// every station sL >= FirstStationIndex, for every allowed (gapM, gapR)
// offset pair within MaxStationGap, build triplets via triplet.Constructor.
func (w *Window) constructTriplets(st *window.State, iter *pars.Iteration) {
	w.triplets = w.triplets[:0]
	for i := range w.stationFirst {
		w.stationFirst[i] = 0
	}
	for i := range w.stationCount {
		w.stationCount[i] = 0
	}

	nActive := w.p.NActiveStations
	ctor := triplet.NewConstructor(w.p, iter)

	for sL := iter.FirstStationIndex; sL < nActive-2; sL++ {
		w.stationFirst[sL] = int32(len(w.triplets))
		startL := st.HitStartIndexOnStation[sL]
		nL := st.NofHitsOnStation[sL]
		seedField := w.seedFieldRegion(sL, iter, 0, 0)

		for gapM := 0; gapM <= iter.MaxStationGap; gapM++ {
			sM := sL + 1 + gapM
			if sM >= nActive {
				continue
			}
			for gapR := 0; gapR <= iter.MaxStationGap; gapR++ {
				sR := sM + 1 + gapR
				if sR >= nActive {
					continue
				}

				field := w.fieldRegion(sL, sM, sR, 0, 0)
				for i := startL; i < startL+nL; i++ {
					if st.HitSuppressed[i] != 0 {
						continue
					}
					hitField, hitSeedField := field, seedField
					if w.p.DevUseOriginalField {
						hL := &st.Hits[i]
						hitField = w.fieldRegion(sL, sM, sR, hL.X, hL.Y)
						hitSeedField = w.seedFieldRegion(sL, iter, hL.X, hL.Y)
					}
					w.triplets = ctor.Build(w.triplets, st.Hits, i, int32(sL), int32(sM), int32(sR), st.Grids, hitSeedField, hitField, st.HitSuppressed)
				}
			}
		}
		w.stationCount[sL] = int32(len(w.triplets)) - w.stationFirst[sL]
	}
	w.stationFirst[nActive-2] = int32(len(w.triplets))
}

// fieldRegion builds the 3-station field approximation of spec.md §4.3
// "propagated ... using a 3-station polynomial field approximation"
// from the configured per-station FieldSlice, truncated to
// p.FieldApproxOrder (spec.md §6). By default it samples the field
// origin (x=0,y=0) as a stand-in for the true trajectory point -- the
// per-station material/field map generation is external (spec.md §1) --
// but p.DevUseOriginalField forces the caller to pass the real (x,y) of
// the hit under consideration instead, trading the cheap shared-per-gap
// sample for one recomputed per hit.
func (w *Window) fieldRegion(sL, sM, sR int, x, y float64) kf.FieldRegion {
	sample := func(idx int) kf.FieldPoint {
		s := &w.p.Stations[idx]
		bx, by, bz := s.Field.Value(x, y)
		return kf.FieldPoint{Z: s.Z, Bx: bx, By: by, Bz: bz}
	}
	return kf.FitFieldRegion(sample(sL), sample(sM), sample(sR), w.p.FieldApproxOrder)
}

// seedFieldRegion builds the target->sL field approximation of spec.md
// §9's "(target->left)" region, distinct from the (sL,sM,sR)
// triplet-propagation region built by fieldRegion: it is used solely for
// the primary-vertex seed's target->hL.Z extrapolation in
// triplet.Constructor.Build. iter.UseVertexField selects which end the
// far sample is anchored to: the target itself (true vertex field,
// appropriate once a vertex field map is available) or the first active
// station (a conservative stand-in when the target sits outside any
// instrumented field volume). x,y and p.DevUseOriginalField behave as
// in fieldRegion; the target itself has no field sample regardless.
func (w *Window) seedFieldRegion(sL int, iter *pars.Iteration, x, y float64) kf.FieldRegion {
	stL := &w.p.Stations[sL]
	bxL, byL, bzL := stL.Field.Value(x, y)
	left := kf.FieldPoint{Z: stL.Z, Bx: bxL, By: byL, Bz: bzL}

	var far kf.FieldPoint
	if iter.UseVertexField {
		far = kf.FieldPoint{Z: w.p.TargetZ}
	} else {
		st0 := &w.p.Stations[0]
		bx0, by0, bz0 := st0.Field.Value(x, y)
		far = kf.FieldPoint{Z: st0.Z, Bx: bx0, By: by0, Bz: bz0}
	}

	mid := kf.FieldPoint{
		Z:  0.5 * (far.Z + left.Z),
		Bx: 0.5 * (far.Bx + left.Bx),
		By: 0.5 * (far.By + left.By),
		Bz: 0.5 * (far.Bz + left.Bz),
	}
	return kf.FitFieldRegion(far, mid, left, w.p.FieldApproxOrder)
}

// searchNeighbours implements spec.md §4.4c, processing stations in
// decreasing order so a triplet's neighbours (on higher stations)
// already carry their Level.
func (w *Window) searchNeighbours(iter *pars.Iteration) {
	w.neighbourIdx = w.neighbourIdx[:0]
	nActive := w.p.NActiveStations
	for sL := nActive - 3; sL >= 0; sL-- {
		if w.stationCount[sL] == 0 {
			continue
		}
		triplet.LinkNeighbours(w.triplets, w.stationFirst, w.stationCount, sL, iter, &w.neighbourIdx)
	}
}
