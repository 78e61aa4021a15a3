package finder

import (
	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/track"
	"github.com/cbm-reco/catrack/ca/triplet"
	"github.com/cbm-reco/catrack/ca/window"
)

// createTracks implements spec.md §4.4d for one firstTripletLevel:
// CreateTrackCandidates DFS, DoCompetitionLoop, SelectTracks.
func (w *Window) createTracks(st *window.State, iter *pars.Iteration, firstLevel int32) {
	w.pool.Reset()

	nActive := w.p.NActiveStations
	for sL := 0; sL < nActive-2; sL++ {
		first := w.stationFirst[sL]
		count := w.stationCount[sL]
		for i := first; i < first+count; i++ {
			t := &w.triplets[i]
			if t.Level < firstLevel {
				continue
			}
			if keysUsed(st, t.HitL) || keysUsed(st, t.HitM) || keysUsed(st, t.HitR) {
				continue
			}
			path, chi2 := w.bestChain(st, t, iter)
			if len(path) < int(firstLevel)+2 {
				continue
			}
			if len(path) == 3 && !w.allowThreeHit(iter) {
				continue
			}
			ndf := float64(2*len(path) - 5)
			if ndf < 1 {
				ndf = 1
			}
			if chi2 >= iter.TrackChi2Cut*ndf {
				continue
			}
			w.pool.Push(path, int32(sL), chi2)
		}
	}

	w.pool.DoCompetitionLoop(st.Hits)
	w.selectTracks(st, iter)
}

// allowThreeHit implements the iteration-specific survival policy for
// 3-hit branches (spec.md §4.4d "Suppress 3-hit branches unless they
// satisfy an iteration-specific primary/secondary policy"): primary
// iterations (target-constrained) always allow them; ghost-suppressed
// secondary iterations require the extra confirmation of a 4th hit.
// p.GhostSuppression (spec.md §6) is the run-wide master switch: turning
// it off disables every iteration's ghost-suppression policy regardless
// of iter.GhostSuppressed, for runs that accept the extra ghost rate in
// exchange for never discarding a real short track.
func (w *Window) allowThreeHit(iter *pars.Iteration) bool {
	if iter.Primary {
		return true
	}
	return !w.p.GhostSuppression || !iter.GhostSuppressed
}

func keysUsed(st *window.State, h int32) bool {
	hit := &st.Hits[h]
	return st.HitKeyUsed[hit.FrontKey] != 0 || st.HitKeyUsed[hit.BackKey] != 0
}

// bestChain performs the CreateTrackCandidates DFS from seed triplet t:
// it recursively extends through the triplet's linked neighbours,
// appending each neighbour's new (right) hit when its keys are still
// free, and keeps the best branch found (most hits, else lowest chi2),
// matching Branch.IsBetterThan (spec.md §3, §4.4d).
func (w *Window) bestChain(st *window.State, t *triplet.Triplet, iter *pars.Iteration) ([]int32, float64) {
	path := []int32{t.HitL, t.HitM, t.HitR}
	best := append([]int32(nil), path...)
	bestChi2 := t.Chi2

	var walk func(cur *triplet.Triplet, path []int32, chi2 float64, depth int)
	walk = func(cur *triplet.Triplet, path []int32, chi2 float64, depth int) {
		if depth > pars.MaxStations {
			return
		}
		if better(path, chi2, best, bestChi2) {
			best = append([]int32(nil), path...)
			bestChi2 = chi2
		}
		for k := int32(0); k < cur.NNeighbours; k++ {
			ni := w.neighbourIdx[cur.FirstNeighbour+k]
			u := &w.triplets[ni]
			if keysUsed(st, u.HitR) {
				continue
			}
			if containsHit(path, u.HitR) {
				continue
			}
			extended := make([]int32, len(path)+1)
			copy(extended, path)
			extended[len(path)] = u.HitR
			walk(u, extended, chi2+u.Chi2, depth+1)
		}
	}
	walk(t, path, t.Chi2, 0)
	return best, bestChi2
}

func better(pathA []int32, chi2A float64, pathB []int32, chi2B float64) bool {
	if len(pathA) != len(pathB) {
		return len(pathA) > len(pathB)
	}
	return chi2A <= chi2B
}

func containsHit(path []int32, h int32) bool {
	for _, v := range path {
		if v == h {
			return true
		}
	}
	return false
}

// selectTracks implements spec.md §4.4d SelectTracks: for each alive
// candidate, optionally extend it, mark its keys permanently used, and
// push its hits into the window's reco output.
func (w *Window) selectTracks(st *window.State, iter *pars.Iteration) {
	for i := range w.pool.Branches() {
		b := w.pool.Branch(i)
		if !b.IsAlive {
			continue
		}

		hits := b.Hits
		if iter.ExtendTracks {
			hits = w.extender.Extend(st, hits, iter)
		}

		for _, h := range hits {
			hit := &st.Hits[h]
			st.HitKeyUsed[hit.FrontKey] = 1
			st.HitKeyUsed[hit.BackKey] = 1
		}

		st.RecoHitIndices = append(st.RecoHitIndices, hits...)
		st.RecoTracks = append(st.RecoTracks, track.Track{NHits: len(hits)})
	}
}
