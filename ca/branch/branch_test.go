package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbm-reco/catrack/ca/pars"
)

func hitWithKeys(front, back int32) pars.Hit {
	return pars.Hit{FrontKey: front, BackKey: back}
}

func TestIsBetterThanOrdering(t *testing.T) {
	longer := &Branch{Hits: []int32{0, 1, 2}}
	shorter := &Branch{Hits: []int32{0, 1}}
	assert.True(t, longer.IsBetterThan(shorter))
	assert.False(t, shorter.IsBetterThan(longer))

	upstream := &Branch{Hits: []int32{0, 1}, StartStation: 1}
	downstream := &Branch{Hits: []int32{0, 1}, StartStation: 2}
	assert.True(t, upstream.IsBetterThan(downstream))

	lowChi2 := &Branch{Hits: []int32{0, 1}, StartStation: 1, Chi2: 1}
	highChi2 := &Branch{Hits: []int32{0, 1}, StartStation: 1, Chi2: 5}
	assert.True(t, lowChi2.IsBetterThan(highChi2))
	assert.False(t, highChi2.IsBetterThan(lowChi2))
}

func TestDoCompetitionLoopResolvesExclusiveClaim(t *testing.T) {
	// Two branches share hit 1 (keys 2,3); the longer branch should win
	// the shared key and be promoted alive, the loser stays dead.
	hits := []pars.Hit{
		hitWithKeys(0, 1),
		hitWithKeys(2, 3),
		hitWithKeys(4, 5),
	}

	p := NewPool(6)
	winnerID := p.Push([]int32{0, 1, 2}, 0, 1.0) // 3 hits
	loserID := p.Push([]int32{1}, 0, 0.5)         // 1 hit, shares hit 1

	p.DoCompetitionLoop(hits)

	assert.True(t, p.Branch(winnerID).IsAlive)
	assert.False(t, p.Branch(loserID).IsAlive)
}

func TestDoCompetitionLoopPromotesDisjointBranches(t *testing.T) {
	hits := []pars.Hit{
		hitWithKeys(0, 1),
		hitWithKeys(2, 3),
	}
	p := NewPool(4)
	a := p.Push([]int32{0}, 0, 0.1)
	b := p.Push([]int32{1}, 0, 0.1)

	p.DoCompetitionLoop(hits)

	assert.True(t, p.Branch(a).IsAlive)
	assert.True(t, p.Branch(b).IsAlive)
}

func TestDoCompetitionLoopHaltsWithinMaxPasses(t *testing.T) {
	// A large ring of branches each contending for a chain of shared
	// keys must still terminate within CompetitionLoopMaxPasses.
	const n = 50
	hits := make([]pars.Hit, n)
	for i := range hits {
		hits[i] = hitWithKeys(int32(i), int32((i+1)%n))
	}
	p := NewPool(n)
	for i := 0; i < n; i++ {
		p.Push([]int32{int32(i)}, 0, float64(i))
	}

	require.NotPanics(t, func() { p.DoCompetitionLoop(hits) })
	assert.LessOrEqual(t, pars.CompetitionLoopMaxPasses, 100)
}

func TestResetClearsBranchesAndClaims(t *testing.T) {
	p := NewPool(4)
	p.Push([]int32{0}, 0, 0)
	require.Equal(t, 1, len(p.Branches()))

	p.Reset()
	assert.Equal(t, 0, len(p.Branches()))
}
