package hitstore

import (
	"fmt"

	"github.com/grailbio/base/errors"

	"github.com/cbm-reco/catrack/ca/pars"
)

// HitStore owns one time-slice's hits and stream boundaries, exposing
// immutable random access (spec.md §4.1). It is constructed through
// Builder, which derives stream stop-indices from the start-index
// sequence, or through Decode, which restores the stop-indices recorded
// in an archive.
type HitStore struct {
	hits         []pars.Hit
	streamStart  []int32
	streamStop   []int32
	nHitKeys     int
}

// NHits returns the total number of hits in the time-slice.
func (s *HitStore) NHits() int32 { return int32(len(s.hits)) }

// Hit returns the hit at the given global index.
func (s *HitStore) Hit(i int32) pars.Hit { return s.hits[i] }

// Hits returns the full backing hit array. Callers must not mutate it;
// HitStore.Hit is the intended read path.
func (s *HitStore) Hits() []pars.Hit { return s.hits }

// NStreams returns the number of data streams recorded in the store.
func (s *HitStore) NStreams() int { return len(s.streamStart) }

// StreamRange returns the [start, stop) hit-index range of stream i.
func (s *HitStore) StreamRange(i int) (start, stop int32) {
	return s.streamStart[i], s.streamStop[i]
}

// NHitKeys returns the total number of dense front/back-strip keys used
// by this time-slice's hits, sized for a WindowState.hitKeyUsed array.
func (s *HitStore) NHitKeys() int { return s.nHitKeys }

// Builder constructs a HitStore from hits pushed one at a time, deriving
// stream stop-indices from monotone start indices (spec.md §4.1, §6).
// Decode is the other way to obtain a HitStore.
type Builder struct {
	hits         []pars.Hit
	streamStart  []int32
	lastStreamID int64
	haveStream   bool
	nHitKeys     int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{lastStreamID: -1}
}

// SetNHitKeys records the total dense key count (§6: "must be dense
// integers in [0, nHitKeys)").
func (b *Builder) SetNHitKeys(n int) { b.nHitKeys = n }

// PushHit appends a hit, opening a new stream whenever streamID differs
// from the previously pushed hit's stream id (§4.2 CaDataManager.PushBackHit).
func (b *Builder) PushHit(h pars.Hit, streamID int64) {
	if !b.haveStream || streamID != b.lastStreamID {
		b.lastStreamID = streamID
		b.haveStream = true
		b.streamStart = append(b.streamStart, int32(len(b.hits)))
	}
	h.ID = int32(len(b.hits))
	b.hits = append(b.hits, h)
}

// PushHitNoStream appends a hit without stream tracking; useful for
// single-stream test fixtures.
func (b *Builder) PushHitNoStream(h pars.Hit) {
	b.PushHit(h, 0)
}

// Validate runs the layered input-data QA of CaDataManager::CheckInputData
// (SPEC_FULL.md §4), ported one level per argument:
//
//	0 - no checks
//	1 - hit count and key count sanity
//	2 - hits sorted by station within each stream
//	3 - every hit's front/back keys checked to lie in [0, nHitKeys)
func (b *Builder) Validate(level int) error {
	if level <= 0 {
		return nil
	}
	if len(b.hits) == 0 {
		return errors.E(errors.Precondition, "hitstore.Builder.Validate: empty hit sample")
	}
	if b.nHitKeys < 1 {
		return errors.E(errors.Precondition, "hitstore.Builder.Validate: nHitKeys must be >= 1")
	}
	if level < 2 {
		return nil
	}
	for si := range b.streamStart {
		start := b.streamStart[si]
		stop := int32(len(b.hits))
		if si+1 < len(b.streamStart) {
			stop = b.streamStart[si+1]
		}
		for i := start + 1; i < stop; i++ {
			if b.hits[i].Station < b.hits[i-1].Station {
				return errors.E(errors.Precondition, "hitstore.Builder.Validate: hits not sorted by station within stream")
			}
		}
	}
	if level < 3 {
		return nil
	}
	for i, h := range b.hits {
		if h.FrontKey < 0 || int(h.FrontKey) >= b.nHitKeys || h.BackKey < 0 || int(h.BackKey) >= b.nHitKeys {
			return errors.E(errors.Precondition, fmt.Sprintf("hitstore.Builder.Validate: hit %d key out of [0,nHitKeys) range", i))
		}
	}
	return nil
}

// Build finalises the store: stream stop-indices are derived as the
// next stream's start index, with the last stream's stop set to the
// total hit count (spec.md §4.1, §6).
func (b *Builder) Build() *HitStore {
	stop := make([]int32, len(b.streamStart))
	for i := range b.streamStart {
		if i+1 < len(b.streamStart) {
			stop[i] = b.streamStart[i+1]
		} else {
			stop[i] = int32(len(b.hits))
		}
	}
	return &HitStore{
		hits:        b.hits,
		streamStart: append([]int32(nil), b.streamStart...),
		streamStop:  stop,
		nHitKeys:    b.nHitKeys,
	}
}
