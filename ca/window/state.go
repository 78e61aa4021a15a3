package window

import (
	"math"

	"github.com/cbm-reco/catrack/ca/grid"
	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/track"
)

// State is the per-window scratch buffer (spec.md §3 WindowState). One
// State is allocated per worker thread and reused across windows via
// ResetWindow; only HitKeyUsed persists across windows within a thread
// (spec.md §5) -- everything else is window-local and rebuilt by
// ReadWindowData/PrepareGrid.
type State struct {
	pars *pars.Parameters

	// Hits is the window-local copy of the hits falling inside the
	// window bounds, globally sorted by station (spec.md §3).
	Hits []pars.Hit

	// TsHitIndex maps a window-local hit index back to its
	// time-slice-global index, so TrackFinder can translate owned hit
	// ids back to time-slice space when concatenating windows (§4.8;
	// ported from CaWindowData.h TsHitIndex, SPEC_FULL.md §4).
	TsHitIndex []int32

	// HitStartIndexOnStation and NofHitsOnStation partition Hits by
	// station (spec.md §3).
	HitStartIndexOnStation []int32
	NofHitsOnStation       []int32

	// HitKeyUsed is time-slice-wide within one thread: set(k)==1 iff
	// some already-selected branch owns a hit with FrontKey==k or
	// BackKey==k. Monotonically grows; never reset between windows
	// (spec.md §3, §5).
	HitKeyUsed []uint8

	// HitSuppressed excludes a hit from doublet building, e.g. because
	// it duplicates another candidate adjacent to the same left hit
	// (spec.md §4.3 "Detect near-duplicates ... and mark them
	// suppressed"). Reset at window entry.
	HitSuppressed []uint8

	// Grids holds one Grid per active station, rebuilt by PrepareGrid
	// for every window and compacted in place by RebuildGrids before
	// each later CA iteration.
	Grids []grid.Grid

	// RecoTracks and RecoHitIndices are the window's output: RecoTracks
	// accumulates as SelectTracks runs, RecoHitIndices is the packed,
	// per-track-concatenated array of owned window-local hit indices
	// (spec.md §6 Outputs).
	RecoTracks      []track.Track
	RecoHitIndices  []int32
}

// New allocates a State sized for the given Parameters. HitKeyUsed is
// sized by nHitKeys and must be reused (not reallocated) across windows
// of the same thread to preserve the monotone-used invariant.
func New(p *pars.Parameters, nHitKeys int) *State {
	return &State{
		pars:       p,
		Grids:      make([]grid.Grid, p.NActiveStations),
		HitKeyUsed: make([]uint8, nHitKeys),
	}
}

// Parameters exposes the shared configuration this state was built with.
func (s *State) Parameters() *pars.Parameters { return s.pars }

// ResetWindow clears everything that is window-local: hits, suppression
// flags, and reco output. HitKeyUsed is left untouched (spec.md §5).
func (s *State) ResetWindow() {
	s.Hits = s.Hits[:0]
	s.TsHitIndex = s.TsHitIndex[:0]
	s.HitStartIndexOnStation = resizeI32(s.HitStartIndexOnStation, s.pars.NActiveStations)
	s.NofHitsOnStation = resizeI32(s.NofHitsOnStation, s.pars.NActiveStations)
	s.RecoTracks = s.RecoTracks[:0]
	s.RecoHitIndices = s.RecoHitIndices[:0]
}

func resizeI32(s []int32, n int) []int32 {
	if cap(s) >= n {
		s = s[:n]
		for i := range s {
			s[i] = 0
		}
		return s
	}
	return make([]int32, n)
}

// ReadWindowData copies the time-slice hits whose T lies in
// [windowStart, windowStop) into the window-local Hits array, sorted by
// station, and records per-station start/count (spec.md §4.4 step 1).
// Hits are assumed already sorted by station within the source slice
// (HitStore streams are required to be, spec.md §4.1); ReadWindowData
// performs a single stable bucket pass rather than a full sort.
func (s *State) ReadWindowData(all []pars.Hit, windowStart, windowStop float64) {
	s.ResetWindow()

	nStations := s.pars.NActiveStations
	counts := make([]int32, nStations)
	for i := range all {
		h := &all[i]
		if h.T < windowStart || h.T >= windowStop {
			continue
		}
		counts[h.Station]++
	}

	start := int32(0)
	for st := 0; st < nStations; st++ {
		s.HitStartIndexOnStation[st] = start
		s.NofHitsOnStation[st] = counts[st]
		start += counts[st]
	}
	total := start

	s.Hits = resizeHits(s.Hits, int(total))
	s.TsHitIndex = resizeI32(s.TsHitIndex, int(total))
	cursor := append([]int32(nil), s.HitStartIndexOnStation...)

	for i := range all {
		h := &all[i]
		if h.T < windowStart || h.T >= windowStop {
			continue
		}
		slot := cursor[h.Station]
		cursor[h.Station]++
		s.Hits[slot] = *h
		s.TsHitIndex[slot] = h.ID
	}

	s.HitSuppressed = resizeU8(s.HitSuppressed, int(total))
}

func resizeHits(s []pars.Hit, n int) []pars.Hit {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]pars.Hit, n)
}

func resizeU8(s []uint8, n int) []uint8 {
	if cap(s) >= n {
		s = s[:n]
		for i := range s {
			s[i] = 0
		}
		return s
	}
	return make([]uint8, n)
}

// TimeSliceHitIndex translates a window-local hit index back to its
// time-slice-global id (SPEC_FULL.md §4).
func (s *State) TimeSliceHitIndex(localIdx int32) int32 { return s.TsHitIndex[localIdx] }

// PrepareGrid rebuilds the grid for every active station from the
// current window hits, choosing bin widths per spec.md §4.4 step 2:
// xStep,yStep = clamp(0.3*size/sqrt(1+nHits), 0.01*dz, 0.3*dz) where
// dz = stationZ - targetZ.
func (s *State) PrepareGrid() {
	p := s.pars
	for st := 0; st < p.NActiveStations; st++ {
		start := s.HitStartIndexOnStation[st]
		n := s.NofHitsOnStation[st]
		xMin, xMax, yMin, yMax := boundingBox(s.Hits, start, n, p.Stations[st].Xmax, p.Stations[st].Ymax)

		dz := p.Stations[st].Z - p.TargetZ
		xStep := clampStep(0.3*(xMax-xMin), n, dz)
		yStep := clampStep(0.3*(yMax-yMin), n, dz)

		s.Grids[st].BuildBins(xMin, xMax, yMin, yMax, xStep, yStep)
		s.Grids[st].StoreHits(s.Hits, start, n, s.HitKeyUsed)
	}
}

// RebuildGrids compacts the per-station grids in place ahead of a CA
// iteration after the first, dropping hits that other iterations
// already marked used (spec.md §4.4 step 3a).
func (s *State) RebuildGrids() {
	for st := range s.Grids {
		s.Grids[st].RemoveUsedHits(s.Hits, s.HitKeyUsed)
	}
}

func boundingBox(hits []pars.Hit, start, n int32, fallbackX, fallbackY float64) (xMin, xMax, yMin, yMax float64) {
	if n == 0 {
		return -fallbackX, fallbackX, -fallbackY, fallbackY
	}
	xMin, xMax = hits[start].X, hits[start].X
	yMin, yMax = hits[start].Y, hits[start].Y
	for i := start + 1; i < start+n; i++ {
		h := &hits[i]
		if h.X < xMin {
			xMin = h.X
		}
		if h.X > xMax {
			xMax = h.X
		}
		if h.Y < yMin {
			yMin = h.Y
		}
		if h.Y > yMax {
			yMax = h.Y
		}
	}
	return xMin, xMax, yMin, yMax
}

func clampStep(size float64, n int32, dz float64) float64 {
	lo := 0.01 * dz
	hi := 0.3 * dz
	if lo > hi {
		lo, hi = hi, lo
	}
	step := size / math.Sqrt(1+float64(n))
	if step < lo {
		step = lo
	}
	if step > hi {
		step = hi
	}
	return step
}
