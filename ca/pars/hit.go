package pars

// Hit is an immutable space-time measurement produced by one detector
// station (spec.md §3). HitStore owns the backing array for a whole
// time-slice; nothing downstream of HitStore.Builder ever mutates a Hit.
type Hit struct {
	ID      int32 // stable index into the owning time-slice's hit array
	Station int32 // index in [0, NActiveStations)

	X, Y, Z, T float64 // position (cm) and time (ns)

	DX2, DY2, DXY, DT2 float64 // measurement covariance entries

	RangeX, RangeT, RangeY float64 // half-width search tolerances

	// FrontKey and BackKey index into a process-wide hit-key set. Two
	// hits sharing a key are physically incompatible: at most one hit
	// per key may appear in any reconstructed track.
	FrontKey, BackKey int32
}
