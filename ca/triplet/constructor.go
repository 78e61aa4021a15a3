package triplet

import (
	"math"

	"github.com/dgryski/go-farm"

	"github.com/cbm-reco/catrack/ca/grid"
	"github.com/cbm-reco/catrack/ca/kf"
	"github.com/cbm-reco/catrack/ca/pars"
)

// Constructor builds triplets starting from one left hit on station sL,
// given a station triple (sL,sM,sR) (spec.md §4.3). It is allocated once
// per worker thread and reused across left hits; its scratch slices grow
// to a high-water mark and are truncated (never reallocated smaller)
// between calls.
type Constructor struct {
	p    *pars.Parameters
	iter *pars.Iteration

	doublets []doubletCand
	seen     map[uint64]struct{}
}

type doubletCand struct {
	hitM  int32
	state kf.State
}

// NewConstructor returns a Constructor bound to the shared Parameters
// and configured for one tracking Iteration.
func NewConstructor(p *pars.Parameters, iter *pars.Iteration) *Constructor {
	return &Constructor{p: p, iter: iter, seen: make(map[uint64]struct{}, 64)}
}

// Build runs the doublet and triplet steps of spec.md §4.3 for left hit
// ihL on station sL, middle candidates drawn from grids[sM] and right
// candidates from grids[sR], appending any accepted Triplets to out and
// returning the extended slice. seedField and field are the two distinct
// field regions of spec.md §9: seedField spans target->sL and propagates
// only the primary-vertex seed leg, while field spans the (sL,sM,sR)
// triple and propagates every doublet/triplet leg downstream of hL.
func (c *Constructor) Build(
	out []Triplet,
	hits []pars.Hit,
	ihL int32, sL, sM, sR int32,
	grids []grid.Grid,
	seedField kf.FieldRegion,
	field kf.FieldRegion,
	hitSuppressed []uint8,
) []Triplet {
	hL := &hits[ihL]

	seed := kf.NewSeedState(c.p.TargetX, c.p.TargetY, c.p.TargetZ, c.iter.TargetSigmaX, c.iter.TargetSigmaY)
	if dz := hL.Z - c.p.TargetZ; dz != 0 {
		seed.Tx = (hL.X - c.p.TargetX) / dz
		seed.Ty = (hL.Y - c.p.TargetY) / dz
	}
	kf.Extrapolate(seed, c.p.TargetZ, hL.Z, seedField)
	seed.FilterXY(hL.X, hL.Y, hL.DX2, hL.DY2, hL.DXY)
	if c.p.Stations[sL].TimeInfo {
		seed.FilterTime(hL.T, hL.DT2)
	}

	c.doublets = c.doublets[:0]
	for k := range c.seen {
		delete(c.seen, k)
	}

	pick := c.iter.Pick
	maxDZ := c.iter.MaxDZ

	stM := &c.p.Stations[sM]
	dxM := math.Sqrt(pick*seed.C[kf.IX][kf.IX]) + grids[sM].MaxRangeX() + maxDZ*math.Abs(seed.Tx)
	dyM := math.Sqrt(pick*seed.C[kf.IY][kf.IY]) + grids[sM].MaxRangeY() + maxDZ*math.Abs(seed.Ty)
	if c.p.DevUseParametrisedSearchWindow {
		if w, ok := c.p.SearchWindow(int(sM), c.iter.TrackGroup); ok {
			dxM, dyM = w.Dx, w.Dy
		}
	}

	stateAtM := seed.Clone()
	kf.Extrapolate(stateAtM, hL.Z, stM.Z, field)

	area := grid.NewArea(&grids[sM], stateAtM.X, stateAtM.Y, dxM, dyM)
	if c.p.DevIgnoreHitSearchAreas {
		area.LoopOverEntireGrid()
	}
	nDoublets := uint32(0)
	for nDoublets < c.p.MaxDoubletsPerSinglet {
		idx, ok := area.Next()
		if !ok {
			break
		}
		e := grids[sM].Entries()[idx]
		ihM := e.ObjectID
		if hitSuppressed[ihM] != 0 {
			continue
		}
		hM := &hits[ihM]

		if stM.TimeInfo {
			dt := hM.T - stateAtM.Time
			tol := 3.5*math.Sqrt(stateAtM.C[kf.IT][kf.IT]) + hM.RangeT
			if math.Abs(dt) > tol {
				continue
			}
		}
		rx := math.Sqrt(pick*stateAtM.C[kf.IX][kf.IX]) + hM.RangeX
		ry := math.Sqrt(pick*stateAtM.C[kf.IY][kf.IY]) + hM.RangeY
		if math.Abs(hM.X-stateAtM.X) > rx || math.Abs(hM.Y-stateAtM.Y) > ry {
			continue
		}

		chi2x, chi2u := stateAtM.Chi2XU(hM.X, hM.Y, hM.DX2, hM.DY2, hM.DXY)
		if chi2x >= c.iter.DoubletChi2Cut || chi2u >= c.iter.DoubletChi2Cut {
			continue
		}

		cand := stateAtM.Clone()
		cand.FilterXY(hM.X, hM.Y, hM.DX2, hM.DY2, hM.DXY)
		if stM.TimeInfo {
			cand.FilterTime(hM.T, hM.DT2)
		}
		if negativeDiagonal(cand) {
			continue
		}
		kf.ApplyMultipleScattering(cand, materialRadiationLength(stM))

		if c.duplicate(hM, sM) {
			hitSuppressed[ihM] = 1
			continue
		}

		c.doublets = append(c.doublets, doubletCand{hitM: ihM, state: *cand})
		nDoublets++
	}

	stR := &c.p.Stations[sR]
	for _, d := range c.doublets {
		st := d.state
		kf.Extrapolate(&st, c.p.Stations[sM].Z, stR.Z, field)
		if negativeDiagonal(&st) || math.Abs(st.Tx) > c.iter.MaxSlope || math.Abs(st.Ty) > c.iter.MaxSlope {
			continue
		}

		dxR := math.Sqrt(pick*st.C[kf.IX][kf.IX]) + grids[sR].MaxRangeX() + maxDZ*math.Abs(st.Tx)
		dyR := math.Sqrt(pick*st.C[kf.IY][kf.IY]) + grids[sR].MaxRangeY() + maxDZ*math.Abs(st.Ty)
		if c.p.DevUseParametrisedSearchWindow {
			if w, ok := c.p.SearchWindow(int(sR), c.iter.TrackGroup); ok {
				dxR, dyR = w.Dx, w.Dy
			}
		}
		areaR := grid.NewArea(&grids[sR], st.X, st.Y, dxR, dyR)
		if c.p.DevIgnoreHitSearchAreas {
			areaR.LoopOverEntireGrid()
		}

		nTriplets := uint32(0)
		for nTriplets < c.p.MaxTripletPerDoublets {
			idx, ok := areaR.Next()
			if !ok {
				break
			}
			e := grids[sR].Entries()[idx]
			ihR := e.ObjectID
			hR := &hits[ihR]

			chi2 := st.Chi2XY(hR.X, hR.Y, hR.DX2, hR.DY2, hR.DXY)
			if chi2 >= c.iter.TripletChi2Cut {
				continue
			}

			fitted := c.refitTwice(hits, ihL, d.hitM, ihR, sL, sM, sR, field)
			if fitted == nil {
				continue
			}
			if fitted.Chi2 >= c.iter.TripletFinalChi2Cut*ndfOf(fitted) {
				continue
			}

			out = append(out, Triplet{
				HitL: ihL, HitM: d.hitM, HitR: ihR,
				StL: sL, StM: sM, StR: sR,
				Qp: fitted.Qp, Cqp: fitted.C[kf.IQp][kf.IQp] + pars.MomentumUncertaintyBoost,
				Tx: fitted.Tx, Ctx: fitted.C[kf.ITx][kf.ITx],
				Ty: fitted.Ty, Cty: fitted.C[kf.ITy][kf.ITy],
				Chi2:             fitted.Chi2,
				IsMomentumFitted: c.p.Stations[sL].FieldPresent || c.p.Stations[sM].FieldPresent || c.p.Stations[sR].FieldPresent,
			})
			nTriplets++
		}
	}

	return out
}

// refitTwice performs the downstream-then-upstream double refit of
// spec.md §4.3 ("refit the three-hit track twice ... starting from
// Q/p=0") to obtain a stable momentum estimate, returning nil if the
// covariance degenerates beyond repair.
func (c *Constructor) refitTwice(hits []pars.Hit, ihL, ihM, ihR int32, sL, sM, sR int32, field kf.FieldRegion) *kf.State {
	hL, hM, hR := &hits[ihL], &hits[ihM], &hits[ihR]
	stL := &c.p.Stations[sL]
	stM := &c.p.Stations[sM]
	stR := &c.p.Stations[sR]

	fwd := kf.NewSeedState(hL.X, hL.Y, hL.Z, math.Sqrt(hL.DX2), math.Sqrt(hL.DY2))
	fwd.Qp = 0
	fwd.Time = hL.T
	fwd.FilterXY(hL.X, hL.Y, hL.DX2, hL.DY2, hL.DXY)
	kf.Extrapolate(fwd, stL.Z, stM.Z, field)
	kf.ApplyMultipleScattering(fwd, materialRadiationLength(stM))
	fwd.FilterXY(hM.X, hM.Y, hM.DX2, hM.DY2, hM.DXY)
	if stM.TimeInfo {
		fwd.FilterTime(hM.T, hM.DT2)
	}
	kf.Extrapolate(fwd, stM.Z, stR.Z, field)
	kf.ApplyMultipleScattering(fwd, materialRadiationLength(stR))
	fwd.FilterXY(hR.X, hR.Y, hR.DX2, hR.DY2, hR.DXY)
	if stR.TimeInfo {
		fwd.FilterTime(hR.T, hR.DT2)
	}
	if negativeDiagonal(fwd) {
		return nil
	}

	bwd := kf.NewSeedState(hR.X, hR.Y, hR.Z, math.Sqrt(hR.DX2), math.Sqrt(hR.DY2))
	bwd.Qp = fwd.Qp
	bwd.Time = hR.T
	bwd.FilterXY(hR.X, hR.Y, hR.DX2, hR.DY2, hR.DXY)
	kf.Extrapolate(bwd, stR.Z, stM.Z, field)
	kf.ApplyMultipleScattering(bwd, materialRadiationLength(stM))
	bwd.FilterXY(hM.X, hM.Y, hM.DX2, hM.DY2, hM.DXY)
	if stM.TimeInfo {
		bwd.FilterTime(hM.T, hM.DT2)
	}
	kf.Extrapolate(bwd, stM.Z, stL.Z, field)
	kf.ApplyMultipleScattering(bwd, materialRadiationLength(stL))
	bwd.FilterXY(hL.X, hL.Y, hL.DX2, hL.DY2, hL.DXY)
	if stL.TimeInfo {
		bwd.FilterTime(hL.T, hL.DT2)
	}
	if negativeDiagonal(bwd) {
		return nil
	}

	kf.Extrapolate(bwd, stL.Z, stM.Z, field)
	return bwd
}

func ndfOf(s *kf.State) float64 {
	ndf := s.NDF - 5
	if ndf < 1 {
		ndf = 1
	}
	return ndf
}

func negativeDiagonal(s *kf.State) bool {
	for i := 0; i < kf.NPars; i++ {
		if s.C[i][i] < 0 {
			return true
		}
	}
	return false
}

// materialRadiationLength looks up the thin-scatterer thickness (in X0)
// crossed at a station. The core treats this as part of the geometry
// parameter block (spec.md §1 "geometry/parameter builder" is an
// external collaborator); a constant placeholder keyed off field
// presence stands in for the real material map, which Parameters would
// carry per-station in a full deployment.
func materialRadiationLength(st *pars.Station) float64 {
	if st.FieldPresent {
		return 0.01
	}
	return 0.005
}

// duplicate detects near-duplicate doublet candidates on the same
// station within tight (x,y,t) windows (spec.md §4.3 "Detect
// near-duplicates ... and mark them suppressed"), using a FarmHash
// fingerprint of the quantized coordinates so the check is O(1) instead
// of an O(n^2) pairwise scan against every previously accepted doublet.
func (c *Constructor) duplicate(h *pars.Hit, station int32) bool {
	const quantum = 1e-3
	qx := int64(h.X / quantum)
	qy := int64(h.Y / quantum)
	qt := int64(h.T / quantum)
	var buf [25]byte
	buf[0] = byte(station)
	putI64(buf[1:9], qx)
	putI64(buf[9:17], qy)
	putI64(buf[17:25], qt)
	key := farm.Hash64(buf[:])
	if _, ok := c.seen[key]; ok {
		return true
	}
	c.seen[key] = struct{}{}
	return false
}

func putI64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}
