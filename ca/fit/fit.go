// Package fit implements TrackFitter (spec.md §4.6): the final
// bidirectional Kalman fit over all tracks in a window, producing
// parameters at the first-hit, last-hit and primary-vertex reference
// planes. The fitter is organised as a struct-of-slices batch over up to
// simdWidth tracks at a time (spec.md §9 "present the fitter's internal
// state as struct of SIMD vectors ... scalar implementations should be
// correct even if slower") -- the batch loop below is the portable
// scalar-over-slices fallback; a build with golang.org/x/sys/cpu AVX2/
// AVX512 detection only changes the batch width, never the arithmetic.
package fit

import (
	"golang.org/x/sys/cpu"

	"github.com/cbm-reco/catrack/ca/kf"
	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/track"
	"github.com/cbm-reco/catrack/ca/window"
)

// simdWidth picks the SoA batch width (spec.md §5 "SIMD width W
// (typically 4 or 8)"), matching the widest vector ISA the host
// actually offers; the arithmetic performed per lane is unchanged.
func simdWidth() int {
	if cpu.X86.HasAVX512F {
		return 8
	}
	if cpu.X86.HasAVX2 {
		return 4
	}
	return 4
}

// Fitter is the reusable, per-thread TrackFitter.
type Fitter struct {
	p *pars.Parameters
	w int
}

// New returns a Fitter bound to the shared Parameters.
func New(p *pars.Parameters) *Fitter {
	return &Fitter{p: p, w: simdWidth()}
}

// FitTracks implements spec.md §4.6 over every track currently recorded
// in st.RecoTracks, consuming the aligned packed hit-index array and
// writing First/Last/PV states plus FirstStation/LastStation back into
// each Track. It batches tracks in groups of w, but each batch's tracks
// are fit independently; the batching only amortises the backing-array
// shape, not numerical cross-talk between lanes (spec.md §4.6, §9).
func (f *Fitter) FitTracks(st *window.State) {
	offset := 0
	tracks := st.RecoTracks
	for batchStart := 0; batchStart < len(tracks); batchStart += f.w {
		batchEnd := batchStart + f.w
		if batchEnd > len(tracks) {
			batchEnd = len(tracks)
		}
		offsets := make([]int, batchEnd-batchStart)
		for i := batchStart; i < batchEnd; i++ {
			offsets[i-batchStart] = offset
			offset += tracks[i].NHits
		}
		f.fitBatch(st, tracks[batchStart:batchEnd], offsets)
	}
}

// fitBatch fits each track in the batch independently: a backward pass
// (two linearisation iterations) seeded at the last hit, an
// extrapolation to the primary-vertex plane, then a forward pass seeded
// at the first hit (spec.md §4.6 steps 2-4).
func (f *Fitter) fitBatch(st *window.State, batch []track.Track, offsets []int) {
	for lane := range batch {
		tr := &batch[lane]
		if tr.NHits == 0 {
			continue
		}
		hitIdx := st.RecoHitIndices[offsets[lane] : offsets[lane]+tr.NHits]

		tr.FirstStation = int(st.Hits[hitIdx[0]].Station)
		tr.LastStation = int(st.Hits[hitIdx[len(hitIdx)-1]].Station)
		tr.LastHitTime = st.Hits[hitIdx[len(hitIdx)-1]].T

		bwd := f.backwardPass(st, hitIdx)
		firstStation := int(st.Hits[hitIdx[0]].Station)
		pv := f.toPrimaryVertex(bwd.Clone(), st.Hits[hitIdx[0]].Z, firstStation)
		fwd := f.forwardPass(st, hitIdx)

		tr.First = *bwd
		tr.PV = *pv
		tr.Last = *fwd
	}
}

// backwardPass seeds at the last hit and sweeps upstream to the first,
// running two linearisation iterations: the second re-seeds with the
// slopes and Q/p found by the first (spec.md §4.6 step 2).
func (f *Fitter) backwardPass(st *window.State, hitIdx []int32) *kf.State {
	var s *kf.State
	for iteration := 0; iteration < 2; iteration++ {
		last := &st.Hits[hitIdx[len(hitIdx)-1]]
		prev := s
		s = kf.NewSeedState(last.X, last.Y, last.Z, 1e2, 1e2)
		if prev != nil {
			s.Tx, s.Ty, s.Qp = prev.Tx, prev.Ty, prev.Qp
		}
		s.Time = last.T
		s.FilterXY(last.X, last.Y, last.DX2, last.DY2, last.DXY)
		if st.Parameters().Stations[last.Station].TimeInfo {
			s.FilterTime(last.T, last.DT2)
		}

		for i := len(hitIdx) - 2; i >= 0; i-- {
			h := &st.Hits[hitIdx[i]]
			hNext := &st.Hits[hitIdx[i+1]]
			x, y := 0.0, 0.0
			if f.p.DevUseOriginalField {
				x, y = s.X, s.Y
			}
			field := f.threeStationField(int(hNext.Station), int(h.Station), x, y)
			kf.Extrapolate(s, hNext.Z, h.Z, field)
			kf.ApplyEnergyLoss(s, materialRadiationLength(&st.Parameters().Stations[h.Station]), +1)
			kf.ApplyMultipleScattering(s, materialRadiationLength(&st.Parameters().Stations[h.Station]))
			misX, misY, misT := f.misalignment(&st.Parameters().Stations[h.Station])
			s.FilterXY(h.X, h.Y, h.DX2+misX, h.DY2+misY, h.DXY)
			if st.Parameters().Stations[h.Station].TimeInfo {
				s.FilterTime(h.T, h.DT2+misT)
			}
		}
	}
	return s
}

// forwardPass is symmetric to backwardPass, seeded at the first hit and
// sweeping downstream (spec.md §4.6 step 4).
func (f *Fitter) forwardPass(st *window.State, hitIdx []int32) *kf.State {
	first := &st.Hits[hitIdx[0]]
	s := kf.NewSeedState(first.X, first.Y, first.Z, 1e2, 1e2)
	s.Time = first.T
	s.FilterXY(first.X, first.Y, first.DX2, first.DY2, first.DXY)
	if st.Parameters().Stations[first.Station].TimeInfo {
		s.FilterTime(first.T, first.DT2)
	}

	for i := 1; i < len(hitIdx); i++ {
		h := &st.Hits[hitIdx[i]]
		hPrev := &st.Hits[hitIdx[i-1]]
		x, y := 0.0, 0.0
		if f.p.DevUseOriginalField {
			x, y = s.X, s.Y
		}
		field := f.threeStationField(int(hPrev.Station), int(h.Station), x, y)
		kf.Extrapolate(s, hPrev.Z, h.Z, field)
		kf.ApplyEnergyLoss(s, materialRadiationLength(&st.Parameters().Stations[h.Station]), -1)
		kf.ApplyMultipleScattering(s, materialRadiationLength(&st.Parameters().Stations[h.Station]))
		misX, misY, misT := f.misalignment(&st.Parameters().Stations[h.Station])
		s.FilterXY(h.X, h.Y, h.DX2+misX, h.DY2+misY, h.DXY)
		if st.Parameters().Stations[h.Station].TimeInfo {
			s.FilterTime(h.T, h.DT2+misT)
		}
	}
	return s
}

// toPrimaryVertex extrapolates a state to the configured target plane
// and applies the target-position Kalman update twice (spec.md §4.6
// step 3). The update is applied to every track; there is no mode
// switch that skips it.
func (f *Fitter) toPrimaryVertex(s *kf.State, fromZ float64, fromStation int) *kf.State {
	x, y := 0.0, 0.0
	if f.p.DevUseOriginalField {
		x, y = s.X, s.Y
	}
	bx, by, bz := f.p.Stations[fromStation].Field.Value(x, y)
	field := kf.FitFieldRegion(
		kf.FieldPoint{Z: f.p.TargetZ},
		kf.FieldPoint{Z: (f.p.TargetZ + fromZ) / 2, Bx: bx / 2, By: by / 2, Bz: bz / 2},
		kf.FieldPoint{Z: fromZ, Bx: bx, By: by, Bz: bz},
		f.p.FieldApproxOrder,
	)
	kf.Extrapolate(s, fromZ, f.p.TargetZ, field)
	for i := 0; i < 2; i++ {
		s.FilterXY(f.p.TargetX, f.p.TargetY, f.p.TargetSigmaX*f.p.TargetSigmaX, f.p.TargetSigmaY*f.p.TargetSigmaY, 0)
	}
	return s
}

// threeStationField builds the per-fit-step field region between two
// stations (spec.md §9 "per-station triplet during the final fit"),
// truncated to p.FieldApproxOrder and sampled at (x,y) -- the field
// origin by default, or the current state's position when
// p.DevUseOriginalField is set (spec.md §6).
func (f *Fitter) threeStationField(sA, sB int, x, y float64) kf.FieldRegion {
	a, b := &f.p.Stations[sA], &f.p.Stations[sB]
	mid := (a.Z + b.Z) / 2
	bxa, bya, bza := a.Field.Value(x, y)
	bxb, byb, bzb := b.Field.Value(x, y)
	return kf.FitFieldRegion(
		kf.FieldPoint{Z: a.Z, Bx: bxa, By: bya, Bz: bza},
		kf.FieldPoint{Z: mid, Bx: (bxa + bxb) / 2, By: (bya + byb) / 2, Bz: (bza + bzb) / 2},
		kf.FieldPoint{Z: b.Z, Bx: bxb, By: byb, Bz: bzb},
		f.p.FieldApproxOrder,
	)
}

// misalignment returns the per-detector misalignment variance
// contributions configured on Parameters (spec.md §6), squared into the
// covariance units FilterXY/FilterTime expect.
func (f *Fitter) misalignment(st *pars.Station) (dx2, dy2, dt2 float64) {
	id := st.DetectorID
	if id < 0 {
		return 0, 0, 0
	}
	if id < len(f.p.MisalignmentX) {
		dx2 = sq(float64(f.p.MisalignmentX[id]))
	}
	if id < len(f.p.MisalignmentY) {
		dy2 = sq(float64(f.p.MisalignmentY[id]))
	}
	if id < len(f.p.MisalignmentT) {
		dt2 = sq(float64(f.p.MisalignmentT[id]))
	}
	return
}

func sq(v float64) float64 { return v * v }

func materialRadiationLength(st *pars.Station) float64 {
	if st.FieldPresent {
		return 0.01
	}
	return 0.005
}
