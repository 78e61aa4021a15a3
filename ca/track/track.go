// Package track defines the finalized Track record emitted by the core
// (spec.md §3, §6): hit count plus Kalman states at the first-hit,
// last-hit and primary-vertex reference planes.
package track

import "github.com/cbm-reco/catrack/ca/kf"

// Track is one reconstructed particle trajectory. NHits is the number of
// owned hits; the owned hit ids themselves live in a separate packed
// array aligned to the track array (spec.md §6), not inside Track.
type Track struct {
	NHits int

	First kf.State // parameters at the first-hit plane
	Last  kf.State // parameters at the last-hit plane
	PV    kf.State // parameters at the primary-vertex plane

	// FirstStation and LastStation record the station index of the
	// first/last owned hit, used by CloneMerger's station-gap test
	// (spec.md §4.7) and by TrackFinder's window-overlap filter (§4.8),
	// which keys on the time of the last hit.
	FirstStation, LastStation int
	LastHitTime               float64
}
