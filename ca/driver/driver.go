// Package driver implements TrackFinder (spec.md §4.8): the per-thread
// driver that slides a time-window across one hit stream, runs the
// window pipeline, and concatenates outputs with deduplication across
// overlapping windows.
package driver

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"

	"github.com/cbm-reco/catrack/ca/finder"
	"github.com/cbm-reco/catrack/ca/fit"
	"github.com/cbm-reco/catrack/ca/hitstore"
	"github.com/cbm-reco/catrack/ca/merge"
	"github.com/cbm-reco/catrack/ca/pars"
	"github.com/cbm-reco/catrack/ca/track"
	"github.com/cbm-reco/catrack/ca/window"
)

// Result is one thread's output for its assigned stream: the
// concatenated tracks and their owned hit ids translated back into
// time-slice-global space (spec.md §6 Outputs).
type Result struct {
	Tracks     []track.Track
	HitIndices []int32
}

// TrackFinder is a per-thread driver (spec.md §4.8, §5). It owns its own
// window.State (and therefore its own HitKeyUsed) and is not safe to
// share across goroutines; callers run one TrackFinder per worker.
type TrackFinder struct {
	p      *pars.Parameters
	win    *finder.Window
	fitter *fit.Fitter
	merger *merge.Merger
	state  *window.State

	windowLength float64
	windowStride float64
}

// New returns a TrackFinder bound to the shared Parameters, configured
// with a window length (ns) and stride (ns) (spec.md §4.8).
func New(p *pars.Parameters, nHitKeys int, windowLength, windowStride float64) (*TrackFinder, error) {
	if windowLength <= 0 || windowStride <= 0 {
		return nil, errors.E(errors.Precondition, "driver.New: windowLength and windowStride must be positive")
	}
	return &TrackFinder{
		p:            p,
		win:          finder.New(p, nHitKeys),
		fitter:       fit.New(p),
		merger:       merge.New(p),
		state:        window.New(p, nHitKeys),
		windowLength: windowLength,
		windowStride: windowStride,
	}, nil
}

// ProcessStream slides a window across hits[streamStart:streamStop),
// running the pipeline on every window and appending to the result any
// track whose last hit falls within the window's "core" region -- the
// region owned by this window's start, so overlapping windows never
// double-count a track (spec.md §4.8, §9 "Time-window overlap").
func (d *TrackFinder) ProcessStream(hits []pars.Hit, streamStart, streamStop int32) Result {
	var res Result
	if streamStop <= streamStart {
		return res
	}

	tMin, tMax := streamBounds(hits[streamStart:streamStop])

	for winStart := tMin; winStart < tMax; winStart += d.windowStride {
		winStop := winStart + d.windowLength
		coreStop := winStart + d.windowStride

		d.state.ReadWindowData(hits[streamStart:streamStop], winStart, winStop)
		d.win.CaTrackFinderSlice(d.state)
		d.fitter.FitTracks(d.state)
		d.merger.MergeClones(d.state)
		d.fitter.FitTracks(d.state) // re-fit after merge (spec.md §9)

		offset := 0
		for _, tr := range d.state.RecoTracks {
			localHits := d.state.RecoHitIndices[offset : offset+tr.NHits]
			offset += tr.NHits

			if tr.LastHitTime < winStart || tr.LastHitTime >= coreStop {
				continue
			}

			globalHits := make([]int32, len(localHits))
			for i, h := range localHits {
				globalHits[i] = d.state.TimeSliceHitIndex(h)
			}

			res.Tracks = append(res.Tracks, tr)
			res.HitIndices = append(res.HitIndices, globalHits...)
		}
	}

	return res
}

func streamBounds(hits []pars.Hit) (tMin, tMax float64) {
	if len(hits) == 0 {
		return 0, 0
	}
	tMin, tMax = hits[0].T, hits[0].T
	for _, h := range hits {
		if h.T < tMin {
			tMin = h.T
		}
		if h.T > tMax {
			tMax = h.T
		}
	}
	return tMin, tMax + 1
}

// RunParallel processes every stream of store with its own TrackFinder
// on a worker pool sized by grailbio/base/traverse (spec.md §5 "coarse-
// grained across windows via worker threads" -- here, across streams;
// each thread owns its own WindowState and hitKeyUsed, with no
// cross-thread mutation). Results are returned in stream order.
func RunParallel(p *pars.Parameters, store *hitstore.HitStore, windowLength, windowStride float64) ([]Result, error) {
	n := store.NStreams()
	results := make([]Result, n)

	err := traverse.Each(n, func(i int) error {
		tf, err := New(p, store.NHitKeys(), windowLength, windowStride)
		if err != nil {
			return err
		}
		start, stop := store.StreamRange(i)
		results[i] = tf.ProcessStream(store.Hits(), start, stop)
		return nil
	})
	if err != nil {
		return nil, errors.E(errors.Other, err, "driver.RunParallel")
	}
	return results, nil
}
