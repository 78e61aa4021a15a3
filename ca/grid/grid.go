package grid

import (
	"math"

	"github.com/cbm-reco/catrack/ca/pars"
)

const minBinWidth = 0.001

// Entry is a flat copy of the fields of one hit needed for grid area
// queries, stored by value so RemoveUsedHits can compact the entry array
// in place without touching the hit array itself (ported from
// CaGridEntry.h, see SPEC_FULL.md §4).
type Entry struct {
	ObjectID int32
	X, Y, Z, T         float64
	RangeX, RangeY, RangeT float64
}

func entryFromHit(h *pars.Hit, id int32) Entry {
	return Entry{
		ObjectID: id,
		X:        h.X,
		Y:        h.Y,
		Z:        h.Z,
		T:        h.T,
		RangeX:   h.RangeX,
		RangeY:   h.RangeY,
		RangeT:   h.RangeT,
	}
}

// Grid is a rectangular bucketisation of one station's (x,y) plane
// (spec.md §4.2). The zero value is an empty, unbuilt grid.
type Grid struct {
	nx, ny, n int

	minX, minY                 float64
	binWidthX, binWidthY       float64
	binWidthXInv, binWidthYInv float64

	maxRangeX, maxRangeY, maxRangeT float64

	firstBinEntry []int32 // length n+1
	nBinEntries   []int32 // scratch, length n+1
	entries       []Entry
}

// BuildBins (re)computes the bin geometry for the rectangle
// [xMin,xMax] x [yMin,yMax] with the requested bin widths, clamping both
// the bin count (>=1) and the bin width (>=0.001) as specified.
func (g *Grid) BuildBins(xMin, xMax, yMin, yMax, binWidthX, binWidthY float64) {
	g.minX = math.Min(xMin, xMax)
	g.minY = math.Min(yMin, yMax)
	xMax = math.Max(xMin, xMax)
	yMax = math.Max(yMin, yMax)

	if binWidthX < minBinWidth {
		binWidthX = minBinWidth
	}
	if binWidthY < minBinWidth {
		binWidthY = minBinWidth
	}
	g.binWidthX = binWidthX
	g.binWidthY = binWidthY
	g.binWidthXInv = 1.0 / binWidthX
	g.binWidthYInv = 1.0 / binWidthY

	g.nx = int(math.Ceil((xMax - g.minX) / binWidthX))
	g.ny = int(math.Ceil((yMax - g.minY) / binWidthY))
	if g.nx < 1 {
		g.nx = 1
	}
	if g.ny < 1 {
		g.ny = 1
	}
	g.n = g.nx * g.ny

	g.entries = g.entries[:0]
	g.firstBinEntry = resize(g.firstBinEntry, g.n+1)
	g.nBinEntries = resize(g.nBinEntries, g.n+1)
}

func resize(s []int32, n int) []int32 {
	if cap(s) >= n {
		s = s[:n]
		for i := range s {
			s[i] = 0
		}
		return s
	}
	return make([]int32, n)
}

// GetBinX returns the clamped x-bin index for coordinate x.
func (g *Grid) GetBinX(x float64) int {
	b := int((x - g.minX) * g.binWidthXInv)
	return clampInt(b, 0, g.nx-1)
}

// GetBinY returns the clamped y-bin index for coordinate y.
func (g *Grid) GetBinY(y float64) int {
	b := int((y - g.minY) * g.binWidthYInv)
	return clampInt(b, 0, g.ny-1)
}

// GetBin returns the clamped flat bin index for (x,y).
func (g *Grid) GetBin(x, y float64) int {
	return g.GetBinY(y)*g.nx + g.GetBinX(x)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NofBins, NofBinsX, NofBinsY expose the grid geometry.
func (g *Grid) NofBins() int  { return g.n }
func (g *Grid) NofBinsX() int { return g.nx }
func (g *Grid) NofBinsY() int { return g.ny }

// MaxRangeX, MaxRangeY, MaxRangeT are the largest hit search tolerances
// among the stored entries (spec.md §4.2).
func (g *Grid) MaxRangeX() float64 { return g.maxRangeX }
func (g *Grid) MaxRangeY() float64 { return g.maxRangeY }
func (g *Grid) MaxRangeT() float64 { return g.maxRangeT }

// FirstBinEntryIndex returns the index of the first entry of bin in
// Entries(); FirstBinEntryIndex(NofBins()) is the total entry count.
func (g *Grid) FirstBinEntryIndex(bin int) int32 {
	if bin > g.n {
		bin = g.n
	}
	return g.firstBinEntry[bin]
}

// Entries exposes the bucket-sorted entry array.
func (g *Grid) Entries() []Entry { return g.entries }

// StoreHits rebuilds the grid from hits[hitStartIndex:hitStartIndex+n],
// skipping any hit whose front or back key is already marked used
// (spec.md §4.2). It performs the two-pass counting-sort construction:
// pass 1 counts live hits per bin, pass 2 prefix-sums and scatters.
func (g *Grid) StoreHits(hits []pars.Hit, hitStartIndex, n int32, keyUsed []uint8) {
	g.firstBinEntry = resize(g.firstBinEntry, g.n+1)
	g.nBinEntries = resize(g.nBinEntries, g.n+1)

	live := func(h *pars.Hit) bool {
		return keyUsed[h.FrontKey] == 0 && keyUsed[h.BackKey] == 0
	}

	nEntries := int32(0)
	for i := int32(0); i < n; i++ {
		h := &hits[hitStartIndex+i]
		if live(h) {
			g.nBinEntries[g.GetBin(h.X, h.Y)]++
			nEntries++
		}
	}

	for bin := 0; bin < g.n; bin++ {
		g.firstBinEntry[bin+1] = g.firstBinEntry[bin] + g.nBinEntries[bin]
		g.nBinEntries[bin] = 0
	}
	g.nBinEntries[g.n] = 0

	g.entries = resizeEntries(g.entries, int(nEntries))
	g.maxRangeX, g.maxRangeY, g.maxRangeT = 0, 0, 0

	for i := int32(0); i < n; i++ {
		h := &hits[hitStartIndex+i]
		if !live(h) {
			continue
		}
		bin := g.GetBin(h.X, h.Y)
		slot := g.firstBinEntry[bin] + g.nBinEntries[bin]
		g.entries[slot] = entryFromHit(h, hitStartIndex+i)
		g.nBinEntries[bin]++
		g.maxRangeX = math.Max(g.maxRangeX, h.RangeX)
		g.maxRangeY = math.Max(g.maxRangeY, h.RangeY)
		g.maxRangeT = math.Max(g.maxRangeT, h.RangeT)
	}
}

func resizeEntries(s []Entry, n int) []Entry {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]Entry, n)
}

// RemoveUsedHits compacts the entry array in place, dropping any entry
// whose backing hit now has a used front or back key, preserving bin
// ordering (spec.md §4.2).
func (g *Grid) RemoveUsedHits(hits []pars.Hit, keyUsed []uint8) {
	nEntries := int32(0)
	g.maxRangeX, g.maxRangeY, g.maxRangeT = 0, 0, 0

	for bin := 0; bin < g.n; bin++ {
		firstOld := g.firstBinEntry[bin]
		stopOld := g.firstBinEntry[bin+1]
		g.firstBinEntry[bin] = nEntries
		g.nBinEntries[bin] = 0
		for i := firstOld; i < stopOld; i++ {
			e := g.entries[i]
			h := &hits[e.ObjectID]
			if keyUsed[h.FrontKey] != 0 || keyUsed[h.BackKey] != 0 {
				continue
			}
			g.entries[nEntries] = e
			nEntries++
			g.nBinEntries[bin]++
			g.maxRangeX = math.Max(g.maxRangeX, e.RangeX)
			g.maxRangeY = math.Max(g.maxRangeY, e.RangeY)
			g.maxRangeT = math.Max(g.maxRangeT, e.RangeT)
		}
	}
	g.firstBinEntry[g.n] = nEntries
	g.nBinEntries[g.n] = 0
	g.entries = g.entries[:nEntries]
}
