// Package extend implements TrackExtender (spec.md §4.5): given an alive
// branch, extrapolate outward station by station on both ends and
// absorb compatible hits missed during seeding.
package extend

import (
	"math"

	"github.com/cbm-reco/catrack/ca/grid"
	"github.com/cbm-reco/catrack/ca/kf"
	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/window"
)

// Extender is the reusable, per-thread TrackExtender.
type Extender struct {
	p *pars.Parameters
}

// New returns an Extender bound to the shared Parameters.
func New(p *pars.Parameters) *Extender { return &Extender{p: p} }

// Extend seeds a state at each end hit of the branch, then walks outward
// from both ends, appending the nearest compatible unused hit found at
// each station and stopping at the first station with no match (spec.md
// §4.5). Each seed is built from its end hit alone; the branch's other
// hits are not fitted into it. It returns a new, possibly longer,
// hit-index slice; the input is left untouched.
func (e *Extender) Extend(st *window.State, hits []int32, iter *pars.Iteration) []int32 {
	if len(hits) == 0 {
		return hits
	}

	lastState := e.seedAt(st, hits[len(hits)-1])
	result := append([]int32(nil), hits...)
	lastStation := int(st.Hits[hits[len(hits)-1]].Station)
	result = e.walk(st, lastState, lastStation, +1, result, iter)

	firstState := e.seedAt(st, hits[0])
	firstStation := int(st.Hits[hits[0]].Station)
	result = e.walk(st, firstState, firstStation, -1, result, iter)

	return result
}

// seedAt builds the Kalman state at hit h's plane from that single hit
// (its position, covariance and time; slopes and Q/p start at zero),
// used as the outward extrapolation starting point for both sweep
// directions.
func (e *Extender) seedAt(st *window.State, h int32) *kf.State {
	hit := &st.Hits[h]
	s := kf.NewSeedState(hit.X, hit.Y, hit.Z, math.Sqrt(hit.DX2), math.Sqrt(hit.DY2))
	s.Time = hit.T
	s.FilterXY(hit.X, hit.Y, hit.DX2, hit.DY2, hit.DXY)
	return s
}

// walk extrapolates state station by station in direction dir (+1
// downstream, -1 upstream) starting just past fromStation, gathering at
// most one hit per station via a GridArea query sized by pickGather/
// extendMaxDZ, stopping at the first station with no match (spec.md
// §4.5).
func (e *Extender) walk(st *window.State, state *kf.State, fromStation, dir int, result []int32, iter *pars.Iteration) []int32 {
	station := fromStation + dir
	prevStation := fromStation
	prevZ := e.p.Stations[fromStation].Z

	for station >= 0 && station < e.p.NActiveStations {
		sDesc := &e.p.Stations[station]
		x, y := 0.0, 0.0
		if e.p.DevUseOriginalField {
			x, y = state.X, state.Y
		}
		field := e.fieldBetween(prevStation, station, x, y)

		kf.Extrapolate(state, prevZ, sDesc.Z, field)

		dx := math.Sqrt(iter.PickGather*state.C[kf.IX][kf.IX]) + st.Grids[station].MaxRangeX() + iter.ExtendMaxDZ*math.Abs(state.Tx)
		dy := math.Sqrt(iter.PickGather*state.C[kf.IY][kf.IY]) + st.Grids[station].MaxRangeY() + iter.ExtendMaxDZ*math.Abs(state.Ty)
		if e.p.DevUseParametrisedSearchWindow {
			if w, ok := e.p.SearchWindow(station, iter.TrackGroup); ok {
				dx, dy = w.Dx, w.Dy
			}
		}

		best := int32(-1)
		bestChi2 := iter.TripletChi2Cut
		area := grid.NewArea(&st.Grids[station], state.X, state.Y, dx, dy)
		if e.p.DevIgnoreHitSearchAreas {
			area.LoopOverEntireGrid()
		}
		for {
			idx, ok := area.Next()
			if !ok {
				break
			}
			ent := st.Grids[station].Entries()[idx]
			h := &st.Hits[ent.ObjectID]
			if st.HitKeyUsed[h.FrontKey] != 0 || st.HitKeyUsed[h.BackKey] != 0 {
				continue
			}
			chi2 := state.Chi2XY(h.X, h.Y, h.DX2, h.DY2, h.DXY)
			if chi2 < bestChi2 {
				bestChi2 = chi2
				best = ent.ObjectID
			}
		}

		if best == -1 {
			return result
		}

		h := &st.Hits[best]
		kf.ApplyMultipleScattering(state, materialRadiationLength(sDesc))
		state.FilterXY(h.X, h.Y, h.DX2, h.DY2, h.DXY)
		if sDesc.TimeInfo {
			state.FilterTime(h.T, h.DT2)
		}

		if dir > 0 {
			result = append(result, best)
		} else {
			result = append([]int32{best}, result...)
		}

		prevZ = sDesc.Z
		prevStation = station
		station += dir
	}
	return result
}

// fieldBetween builds the 3-point field approximation spanning two
// adjacent stations, matching the per-step field construction used by
// the fitter (spec.md §4.3, §9 "three distinct field regions"),
// truncated to p.FieldApproxOrder (spec.md §6). x,y is the field
// origin (0,0) by default or the current state's position when
// p.DevUseOriginalField forces sampling at the real trajectory point.
func (e *Extender) fieldBetween(sA, sB int, x, y float64) kf.FieldRegion {
	a, b := &e.p.Stations[sA], &e.p.Stations[sB]
	mid := (a.Z + b.Z) / 2
	bxa, bya, bza := a.Field.Value(x, y)
	bxb, byb, bzb := b.Field.Value(x, y)
	return kf.FitFieldRegion(
		kf.FieldPoint{Z: a.Z, Bx: bxa, By: bya, Bz: bza},
		kf.FieldPoint{Z: mid, Bx: (bxa + bxb) / 2, By: (bya + byb) / 2, Bz: (bza + bzb) / 2},
		kf.FieldPoint{Z: b.Z, Bx: bxb, By: byb, Bz: bzb},
		e.p.FieldApproxOrder,
	)
}

func materialRadiationLength(st *pars.Station) float64 {
	if st.FieldPresent {
		return 0.01
	}
	return 0.005
}
